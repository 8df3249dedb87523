// Package register provides the account registration endpoint.
package register

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/web/handler"
)

// Path is the path of the registration endpoint.
const Path = handler.RootPath + "auth/register"

// Service is the registration handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	localAuth *auth.LocalProvider
	validator *validator.Validate
}

// Handler is the registration handler.
var Handler = Service{}

// Init initializes the registration handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()
	s.localAuth = auth.NewLocalProvider(db)

	app.Post(Path, s.Post)
}

// Post handles the registration request. New accounts start out pending and
// wait for an administrator decision, registration never signs the user in.
func (s *Service) Post(c *fiber.Ctx) error {
	var in struct {
		Username    string `json:"username"     validate:"required,min=3,max=20"`
		Email       string `json:"email"        validate:"required,contains=@"`
		Password    string `json:"password"     validate:"required,min=6"`
		DisplayName string `json:"display_name" validate:"omitempty,max=150"`
	}

	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validator.Struct(in); err != nil {
		return fail(c, fiber.StatusBadRequest, validationMessage(err))
	}

	if _, err := s.localAuth.CreateUser(in.Username, in.Email, in.Password, in.DisplayName, s.defaultRoleID()); err != nil {
		if errors.Is(err, auth.ErrUserNameOrEmailExists) {
			return fail(c, fiber.StatusConflict, "username or email is already taken")
		}

		log.Error().Err(err).Str("username", in.Username).Msg("registration failed")

		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}

	log.Info().Str("username", in.Username).Msg("registration submitted")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "registration submitted, awaiting approval",
	})
}

// defaultRoleID looks up the seeded "user" role. Registrations still go
// through when seeding has not run yet, the role stays unassigned then.
func (s *Service) defaultRoleID() *uint {
	var role models.Role
	if err := s.db.Where("name = ?", models.RoleUser).First(&role).Error; err != nil {
		return nil
	}

	return &role.ID
}

// validationMessage translates the first failed rule into the response text.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	switch verrs[0].Field() {
	case "Username":
		return "username must be between 3 and 20 characters"
	case "Password":
		return "password must be at least 6 characters"
	case "Email":
		return "email address is invalid"
	default:
		return "invalid request body"
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
