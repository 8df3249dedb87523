// Package daemon wires the service together. It opens the configured
// database, migrates and seeds the schema, restores persisted log level
// overrides, probes the LDAP server when one is configured and hands a
// ready web service to the caller.
package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/storage"
	"github.com/gofiber/storage/memory/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/controller/setting"
	"github.com/slidetrans/slidetrans/internal/db/dsn"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/logger"
	"github.com/slidetrans/slidetrans/internal/logger/adapter/gormlogger"
	"github.com/slidetrans/slidetrans/internal/web"
	websess "github.com/slidetrans/slidetrans/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	webService *web.Service
	addr       string
}

// Start starts the Daemon's web service. It blocks until the web service
// stops, usually through WaitShutdown.
func (d *Daemon) Start() error {
	return d.webService.Start(d.addr)
}

// WaitShutdown blocks until an interrupt or term signal arrives, then shuts
// the web service down gracefully.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
		return nil
	}

	if err = migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	if err = seed(db); err != nil {
		log.Fatal().Err(err).Msg("failed to seed database")
		return nil
	}

	restoreLogLevels(db)
	probeLDAP(cfg, db)

	// Initialize fiber session store
	websess.Init(newSessionStorage(cfg))

	return &Daemon{
		webService: web.New(cfg, db),
		addr:       fmt.Sprintf(":%d", cfg.Webserver.Port),
	}
}

// openDatabase opens a gorm handle for the configured engine. SQL statements
// run through the named logger "db.gorm", so their level follows the log
// admin panel.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.Engine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.CreatePostgres(cfg))
	case "sqlite":
		dialector = gormsqlite.Open(cfg.DB.Database)
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormlogger.Config{
			// lookup misses are handled by the controllers
			SkipErrRecordNotFound: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.DB.Engine)
	}

	return db, nil
}

// migrate keeps the schema in sync with the models. Referenced tables come
// first, so the foreign key constraints can be created.
func migrate(db *gorm.DB) error {
	return db.AutoMigrate( //nolint:wrapcheck
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.User{},
		&models.Group{},
		&models.GroupMapping{},
		&models.UserGroup{},
		&models.Translation{},
		&models.StopWord{},
		&models.UploadRecord{},
		&models.Ingredient{},
		&models.Setting{},
	)
}

// restoreLogLevels applies the log level overrides persisted by the log
// admin panel, so a restart does not silently reset tuned loggers. A missing
// setting means nothing was tuned yet.
func restoreLogLevels(db *gorm.DB) {
	row, err := setting.Get(db, setting.KeyLogLevels)
	if err != nil {
		if !errors.Is(err, setting.ErrSettingNotFound) {
			log.Warn().Err(err).Msg("failed to load persisted log levels")
		}

		return
	}

	var overrides map[string]logger.Override
	if err = json.Unmarshal(row.Value, &overrides); err != nil {
		log.Warn().Err(err).Msg("persisted log levels are not valid json, skipping")
		return
	}

	logger.RestoreOverrides(overrides)
}

// probeLDAP checks the configured LDAP server once at startup. A dead server
// is worth a warning, not a refusal to start, the local and OIDC providers
// keep working without it.
func probeLDAP(cfg *config.Config, db *gorm.DB) {
	if !cfg.Auth.LDAP.Enabled {
		return
	}

	provider, err := auth.NewLDAPProvider(&cfg.Auth.LDAP, db)
	if err != nil {
		log.Warn().Err(err).Msg("LDAP provider configuration is invalid")
		return
	}

	if err = provider.TestConnection(); err != nil {
		log.Warn().Err(err).Msg("LDAP server is not reachable")
		return
	}

	log.Info().Str("host", cfg.Auth.LDAP.Host).Msg("LDAP server is reachable")
}

// newSessionStorage picks the session backend matching the database engine,
// so sessions survive restarts wherever the engine allows it.
func newSessionStorage(cfg *config.Config) storage.Storage {
	switch cfg.DB.Engine {
	case "postgres":
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.CreatePostgres(cfg),
			Table:         "sessions",
		})
	case "sqlite":
		// sqlite deployments keep sessions in memory, users sign in again
		// after a restart
		return memory.New()
	default:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	}
}
