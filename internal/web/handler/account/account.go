// Package account provides the endpoints of the signed-in account.
package account

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

const (
	// PathChangePassword is the path of the password change endpoint.
	PathChangePassword = handler.RootPath + "auth/change-password"

	// PathUserInfo is the path of the profile endpoint.
	PathUserInfo = handler.RootPath + "auth/user-info"
)

// Service is the account handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	db          *gorm.DB
	authService *auth.Service
	localAuth   *auth.LocalProvider
	validator   *validator.Validate
}

// Handler is the account handler.
var Handler = Service{}

// Init initializes the account handler. Both routes rely on the session
// middleware, any approved account may use them.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.authService = authService
	s.localAuth = auth.NewLocalProvider(db)
	s.validator = validator.New()

	app.Post(PathChangePassword, s.ChangePassword)
	app.Get(PathUserInfo, s.UserInfo)
}

// ChangePassword handles the password change of the signed-in account.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	var in struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password"     validate:"required,min=6"`
	}

	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validator.Struct(in); err != nil {
		return fail(c, fiber.StatusBadRequest, validationMessage(err))
	}

	if err := s.localAuth.ChangePassword(user.ID, in.CurrentPassword, in.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordManagedExternally):
			return fail(c, fiber.StatusBadRequest, "sso accounts cannot change their password here")
		case errors.Is(err, auth.ErrInvalidOldPassword):
			return fail(c, fiber.StatusBadRequest, "current password is incorrect")
		case errors.Is(err, auth.ErrUserNotFound):
			return fail(c, fiber.StatusUnauthorized, "authentication required")
		}

		log.Error().Err(err).Uint64("user_id", user.ID).Msg("password change failed")

		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}

	log.Info().Str("username", user.Username).Msg("password changed")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password changed",
	})
}

// UserInfo returns the profile of the signed-in account.
func (s *Service) UserInfo(c *fiber.Ctx) error {
	user, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	permissions, err := s.authService.GetUserPermissions(user.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to load permissions")
		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}

	var roleName string
	if user.Role != nil {
		roleName = user.Role.Name
	}

	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Username
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":            user.ID,
			"username":      user.Username,
			"email":         user.Email,
			"display_name":  displayName,
			"status":        user.Status,
			"role":          roleName,
			"permissions":   permissions,
			"auth_source":   user.AuthSource,
			"sso_provider":  user.SSOProvider,
			"last_login_at": user.LastLoginAt,
			"created_at":    user.CreatedAt,
		},
	})
}

// validationMessage translates the first failed rule into the response text.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	if verrs[0].Field() == "NewPassword" && verrs[0].Tag() == "min" {
		return "new password must be at least 6 characters"
	}

	return "current password and new password are required"
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
