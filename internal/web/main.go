package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	fiberlogger "github.com/slidetrans/slidetrans/internal/logger/adapter/fiber"
	"github.com/slidetrans/slidetrans/internal/storage"
	"github.com/slidetrans/slidetrans/internal/web/handler/account"
	"github.com/slidetrans/slidetrans/internal/web/handler/admin/files"
	"github.com/slidetrans/slidetrans/internal/web/handler/admin/logs"
	"github.com/slidetrans/slidetrans/internal/web/handler/admin/registration"
	oidchandler "github.com/slidetrans/slidetrans/internal/web/handler/auth/oidc"
	"github.com/slidetrans/slidetrans/internal/web/handler/glossary"
	"github.com/slidetrans/slidetrans/internal/web/handler/ingredient"
	"github.com/slidetrans/slidetrans/internal/web/handler/login"
	"github.com/slidetrans/slidetrans/internal/web/handler/logout"
	"github.com/slidetrans/slidetrans/internal/web/handler/register"
	"github.com/slidetrans/slidetrans/internal/web/handler/stopword"
	"github.com/slidetrans/slidetrans/internal/web/handler/upload"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	// Wait interrupt or shutdown request through /shutdown
	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			// multipart bodies of presentation uploads exceed the fiber
			// default of 4MB
			BodyLimit: (cfg.Storage.MaxUploadMB + 1) * 1024 * 1024,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(fiberrecover.New())
	}

	// access log for every request
	app.Use(fiberlogger.New(fiberlogger.Config{Config: cfg.Log}))

	// Initialize auth service
	authService := auth.NewService(db)

	// session middleware, public paths are allow-listed inside
	app.Use(authmw.New(authService))

	// per user upload store and ingredient dataset store
	store := storage.NewManager(
		cfg.Storage.UploadDir,
		cfg.Storage.MaxUploadMB,
		cfg.Storage.QuotaMB,
		cfg.Storage.AllowedExtensions,
	)
	datastore := storage.NewDatastore(cfg.Ingredient.DataDir, cfg.Ingredient.AllowedExtensions)

	// init web service
	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		authService: authService,
	}
	service.alive.Store(true)

	// liveness endpoint, the load balancer polls it
	app.Get("/checkalive", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	// prometheus registry, includes the log statement counters
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// init handlers (they register their own routes with permission checks)
	login.Handler.Init(app, cfg, db, authService)
	logout.Handler.Init(app, cfg)
	register.Handler.Init(app, cfg, db)
	account.Handler.Init(app, cfg, db, authService)
	oidchandler.Handler.Init(app, cfg, db, authService)
	registration.Handler.Init(app, cfg, db, authService)
	files.Handler.Init(app, cfg, db, authService, store)
	logs.Handler.Init(app, cfg, db, authService)
	glossary.Handler.Init(app, cfg, db, authService)
	stopword.Handler.Init(app, cfg, db, authService)
	upload.Handler.Init(app, cfg, db, authService, store)
	ingredient.Handler.Init(app, cfg, db, authService, datastore)

	return service
}
