package login

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
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
	// Path is the path of the login endpoint.
	Path = handler.RootPath + "auth/login"

	authTypeLocal = "local"
	authTypeLDAP  = "ldap"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	db          *gorm.DB
	authService *auth.Service
	localAuth   *auth.LocalProvider
	ldapAuth    *auth.LDAPProvider
	validator   *validator.Validate
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.authService = authService
	s.validator = validator.New()
	s.localAuth = auth.NewLocalProvider(db)

	if cfg.Auth.LDAP.Enabled {
		ldapAuth, err := auth.NewLDAPProvider(&cfg.Auth.LDAP, db)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize LDAP provider")
			return
		}

		s.ldapAuth = ldapAuth
	}

	app.Post(Path, s.Post)
}

// Post handles the login request.
func (s *Service) Post(c *fiber.Ctx) error {
	var in struct {
		Username string `json:"username"  validate:"required"`
		Password string `json:"password"  validate:"required"`
		AuthType string `json:"auth_type" validate:"omitempty,oneof=local ldap"`
	}

	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, ErrInvalidRequestBody.Error())
	}

	if err := s.validator.Struct(in); err != nil {
		return fail(c, fiber.StatusBadRequest, ErrInvalidRequestBody.Error())
	}

	authType, err := s.pickAuthType(in.AuthType)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	user, groups, err := s.authenticate(authType, in.Username, in.Password)
	if err != nil {
		return s.rejectLogin(c, in.Username, err)
	}

	// Directory groups drive role mappings, stale memberships are cleared
	// even when the login returned none.
	if authType == authTypeLDAP {
		if err := s.authService.SyncUserGroups(user.ID, groups, models.GroupSourceLDAP); err != nil {
			log.Error().Err(err).Str("username", user.Username).Msg("failed to sync ldap groups")
		}
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")
		return fail(c, fiber.StatusInternalServerError, ErrInternalServerError.Error())
	}

	userSession := &session.Data{User: *user}

	expiry := time.Duration(s.cfg.Webserver.Session.ExpiryTime) * time.Hour
	if err = userSession.Write(sessionID, expiry); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return fail(c, fiber.StatusInternalServerError, ErrInternalServerError.Error())
	}

	s.setSessionCookie(c, sessionID)

	log.Info().Str("username", user.Username).Str("auth_type", authType).Msg("login successful")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "login successful",
		"user": fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
		},
	})
}

// pickAuthType resolves the requested auth method against the enabled
// providers. An empty request falls back to the first enabled method.
func (s *Service) pickAuthType(requested string) (string, error) {
	switch requested {
	case "":
		if s.cfg.Auth.LocalDB.Enabled {
			return authTypeLocal, nil
		}

		if s.cfg.Auth.LDAP.Enabled {
			return authTypeLDAP, nil
		}

		return "", ErrNoAuthMethod
	case authTypeLocal:
		if !s.cfg.Auth.LocalDB.Enabled {
			return "", ErrLocalAuthDisabled
		}

		return authTypeLocal, nil
	case authTypeLDAP:
		if !s.cfg.Auth.LDAP.Enabled || s.ldapAuth == nil {
			return "", ErrLDAPAuthDisabled
		}

		return authTypeLDAP, nil
	default:
		return "", ErrInvalidAuthMethod
	}
}

// authenticate runs the credential check of the picked method. LDAP logins
// additionally return the directory groups of the user.
func (s *Service) authenticate(authType, username, password string) (*models.User, []string, error) {
	switch authType {
	case authTypeLocal:
		user, err := s.localAuth.Authenticate(username, password)
		if err != nil {
			return nil, nil, normalizeAuthErr(err)
		}

		return user, nil, nil
	case authTypeLDAP:
		user, groups, err := s.ldapAuth.Authenticate(username, password)
		if err != nil {
			return nil, nil, normalizeAuthErr(err)
		}

		return user, groups, nil
	default:
		return nil, nil, ErrInvalidAuthMethod
	}
}

// normalizeAuthErr collapses lookup and password failures into one generic
// error so responses do not reveal whether the username exists.
func normalizeAuthErr(err error) error {
	if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrInvalidPassword) {
		return ErrInvalidCredentials
	}

	return err
}

// rejectLogin maps authentication failures to their response. Account state
// failures are only reported after the password checked out.
func (s *Service) rejectLogin(c *fiber.Ctx, username string, err error) error {
	var (
		status  = fiber.StatusUnauthorized
		message = ErrInvalidCredentials.Error()
	)

	switch {
	case errors.Is(err, auth.ErrUserPending):
		status = fiber.StatusForbidden
		message = "account awaiting approval"
	case errors.Is(err, auth.ErrUserRejected):
		status = fiber.StatusForbidden
		message = "registration rejected"
	case errors.Is(err, auth.ErrUserAccountDisabled):
		status = fiber.StatusForbidden
		message = "account disabled"
	case errors.Is(err, ErrInvalidCredentials):
	default:
		log.Error().Err(err).Str("username", username).Msg("login failed")

		return fail(c, fiber.StatusInternalServerError, ErrInternalServerError.Error())
	}

	log.Info().Str("username", username).Str("reason", message).Msg("login rejected")

	return fail(c, status, message)
}

// setSessionCookie sets the session cookie of a fresh login.
func (s *Service) setSessionCookie(c *fiber.Ctx, sessionID string) {
	cookie := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   s.cfg.Webserver.Session.ExpiryTime * 3600,
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax", // TODO: make this configurable
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
