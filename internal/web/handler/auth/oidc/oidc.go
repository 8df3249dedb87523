package oidc

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	"github.com/slidetrans/slidetrans/internal/web/session"
)

const (
	// LoginPath is the path to initiate the single sign-on flow.
	LoginPath = handler.RootPath + "auth/sso/login"

	// CallbackPath is the path the identity provider redirects back to.
	CallbackPath = handler.RootPath + "auth/sso/callback"

	// LogoutPath is the path for single sign-on logout.
	LogoutPath = handler.RootPath + "auth/sso/logout"

	// stateTTL bounds how long a pending login may sit at the provider.
	stateTTL = 5 * time.Minute
)

// Service is the single sign-on handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	db          *gorm.DB
	provider    *auth.OIDCProvider
	authService *auth.Service

	// mu guards states, the callback and the cleanup loop race otherwise
	mu     sync.Mutex
	states map[string]time.Time
}

// Handler is the single sign-on handler.
var Handler = Service{
	states: make(map[string]time.Time),
}

// Init initializes the single sign-on handler. The routes register only when
// OIDC is enabled, a failing provider discovery disables single sign-on
// instead of taking the service down.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.authService = authService

	if !cfg.Auth.OIDC.Enabled {
		log.Info().Msg("oidc authentication is disabled by configuration")
		return
	}

	provider, err := auth.NewOIDCProvider(context.Background(), &cfg.Auth.OIDC, db)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize oidc provider, single sign-on stays disabled")
		return
	}

	s.provider = provider

	log.Info().Str("provider", cfg.Auth.OIDC.ProviderName).Msg("oidc authentication provider initialized")

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
	app.Get(LogoutPath, s.Logout)

	go s.cleanupStates()
}

// Login stores a fresh state token and redirects the browser to the identity
// provider.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.provider == nil {
		return fail(c, fiber.StatusServiceUnavailable, "single sign-on is not available")
	}

	state := auth.GenerateStateToken()
	s.putState(state)

	return c.Redirect(s.provider.GetAuthURL(state))
}

// Callback handles the redirect back from the identity provider. It verifies
// the state token, exchanges the code, provisions the user, syncs the
// provider groups and signs the browser in.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.provider == nil {
		return fail(c, fiber.StatusServiceUnavailable, "single sign-on is not available")
	}

	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		log.Error().Msg("missing code or state in oidc callback")
		return fail(c, fiber.StatusBadRequest, "invalid callback parameters")
	}

	if !s.takeState(state) {
		log.Error().Msg("invalid or expired state token in oidc callback")
		return fail(c, fiber.StatusBadRequest, "invalid state token")
	}

	user, groups, rawIDToken, err := s.provider.HandleCallback(c.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("oidc authentication failed")
		return fail(c, fiber.StatusUnauthorized, "authentication failed")
	}

	// Provider groups drive role mappings, stale memberships are cleared
	// even when the token carried none.
	if err = s.authService.SyncUserGroups(user.ID, groups, models.GroupSourceOIDC); err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to sync oidc groups")
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session id")
		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}

	userSession := &session.Data{
		User:    *user,
		IDToken: rawIDToken,
	}

	expiry := time.Duration(s.cfg.Webserver.Session.ExpiryTime) * time.Hour
	if err = userSession.Write(sessionID, expiry); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}

	s.setSessionCookie(c, sessionID)

	log.Info().Str("username", user.Username).Str("provider", s.cfg.Auth.OIDC.ProviderName).
		Msg("user logged in via single sign-on")

	return c.Redirect(s.provider.PostLoginURL())
}

// Logout ends the session and sends the browser to the provider's end
// session endpoint when the provider publishes one.
func (s *Service) Logout(c *fiber.Ctx) error {
	var idToken string

	if sessionID := c.Cookies("session"); sessionID != "" {
		sessData := new(session.Data)
		if err := sessData.Read(sessionID); err == nil {
			idToken = sessData.IDToken
		}

		if err := session.Delete(sessionID); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	s.expireSessionCookie(c)

	if s.provider != nil {
		if logoutURL := s.provider.GetLogoutURL(idToken, s.cfg.Webserver.URL); logoutURL != "" {
			return c.Redirect(logoutURL)
		}
	}

	target := s.cfg.Webserver.URL
	if target == "" {
		target = "/"
	}

	return c.Redirect(target)
}

// putState stores a state token with its expiry.
func (s *Service) putState(state string) {
	s.mu.Lock()
	s.states[state] = time.Now().Add(stateTTL)
	s.mu.Unlock()
}

// takeState redeems a state token. Tokens are single use, a token is removed
// on first sight whether it was still valid or not.
func (s *Service) takeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.states[state]
	if !ok {
		return false
	}

	delete(s.states, state)

	return time.Now().Before(expiry)
}

// cleanupStates periodically drops state tokens of logins that never came
// back from the provider.
func (s *Service) cleanupStates() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		s.mu.Lock()
		for state, expiry := range s.states {
			if now.After(expiry) {
				delete(s.states, state)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Service) setSessionCookie(c *fiber.Ctx, sessionID string) {
	cookie := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   s.cfg.Webserver.Session.ExpiryTime * 3600,
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookie.Secure = false
	}

	c.Cookie(cookie)
}

func (s *Service) expireSessionCookie(c *fiber.Ctx) {
	cookie := &fiber.Cookie{
		Name:     "session",
		Value:    "",
		MaxAge:   -1,
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookie.Secure = false
	}

	c.Cookie(cookie)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
