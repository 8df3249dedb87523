// Package registration provides the administrator endpoints of the account
// approval workflow. New local registrations queue up as pending until an
// administrator approves or rejects them here, approved accounts can later
// be disabled and enabled again.
package registration

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

const (
	// Path is the base path of the registration review API.
	Path = handler.APIPath + "/registrations"

	// UsersPath is the base path of the account administration API.
	UsersPath = handler.APIPath + "/users"

	// perPage is the fixed page size of the review listings.
	perPage = 10
)

// Service is the registration review handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the registration review handler.
var Handler = Service{}

// Init initializes the registration review handler. Every route requires the
// admin.access and user.manage permissions.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	requireAdmin := auth.RequireAllPermissions(authService, auth.PermAdminAccess, auth.PermUserManage)

	app.Get(Path, requireAdmin, s.List)
	app.Post(Path+"/:id/approve", requireAdmin, s.Approve)
	app.Post(Path+"/:id/reject", requireAdmin, s.Reject)

	app.Get(UsersPath, requireAdmin, s.ListUsers)
	app.Post(UsersPath+"/:id/disable", requireAdmin, s.Disable)
	app.Post(UsersPath+"/:id/enable", requireAdmin, s.Enable)
}

// List returns a page of registrations filtered by status. The default view
// is the pending queue, status=all lists every account.
func (s *Service) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	status := c.Query("status", string(models.StatusPending))

	tx := s.db.Model(&models.User{})
	if status != "all" {
		tx = tx.Where("status = ?", status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("failed to count registrations")
		return fail(c, fiber.StatusInternalServerError, "failed to load registrations")
	}

	pagination := handler.NewPagination(page, perPage, total)
	if page > pagination.TotalPages {
		page = pagination.TotalPages
		pagination.CurrentPage = page
	}

	var users []models.User

	err := tx.Preload("ApproveUser").Order("created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).Find(&users).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to query registrations")
		return fail(c, fiber.StatusInternalServerError, "failed to load registrations")
	}

	items := make([]fiber.Map, 0, len(users))

	for i := range users {
		user := &users[i]

		var approveUser any
		if user.ApproveUser != nil {
			approveUser = user.ApproveUser.Username
		}

		items = append(items, fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"status":       user.Status,
			"auth_source":  user.AuthSource,
			"created_at":   user.CreatedAt,
			"approve_user": approveUser,
			"approved_at":  user.ApprovedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"registrations": items,
		"pagination":    pagination,
	})
}

// Approve approves a pending registration and records who decided when.
func (s *Service) Approve(c *fiber.Ctx) error {
	return s.decide(c, models.StatusApproved, "registration approved")
}

// Reject turns a pending registration down. The decision timestamp and the
// deciding administrator are recorded the same way approvals are.
func (s *Service) Reject(c *fiber.Ctx) error {
	return s.decide(c, models.StatusRejected, "registration rejected")
}

// decide moves a pending registration to its reviewed state.
func (s *Service) decide(c *fiber.Ctx, status models.Status, message string) error {
	admin, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	user, err := s.findUser(c)
	if err != nil {
		return respondLookupError(c, err)
	}

	if user.Status != models.StatusPending {
		return fail(c, fiber.StatusBadRequest, "registration already decided")
	}

	now := time.Now()

	err = s.db.Model(user).Updates(map[string]any{
		"status":          status,
		"approved_at":     now,
		"approve_user_id": admin.ID,
	}).Error
	if err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to update registration")
		return fail(c, fiber.StatusInternalServerError, "failed to update registration")
	}

	log.Info().Str("username", user.Username).Str("status", string(status)).
		Str("decided_by", admin.Username).Msg("registration decided")

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

// ListUsers returns a page of active accounts, the approved and the disabled
// ones. Pending and rejected registrations stay in the review queue.
func (s *Service) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	status := c.Query("status", "all")

	tx := s.db.Model(&models.User{}).
		Where("status IN ?", []models.Status{models.StatusApproved, models.StatusDisabled})
	if status != "all" {
		tx = tx.Where("status = ?", status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("failed to count users")
		return fail(c, fiber.StatusInternalServerError, "failed to load users")
	}

	pagination := handler.NewPagination(page, perPage, total)
	if page > pagination.TotalPages {
		page = pagination.TotalPages
		pagination.CurrentPage = page
	}

	var users []models.User

	err := tx.Preload("Role").Order("created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).Find(&users).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to query users")
		return fail(c, fiber.StatusInternalServerError, "failed to load users")
	}

	items := make([]fiber.Map, 0, len(users))

	for i := range users {
		user := &users[i]

		var roleName any
		if user.Role != nil {
			roleName = user.Role.Name
		}

		items = append(items, fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"status":       user.Status,
			"auth_source":  user.AuthSource,
			"role":         roleName,
			"created_at":   user.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"users":      items,
		"pagination": pagination,
	})
}

// Disable switches an approved account off. Administrators cannot disable
// their own account, someone has to stay able to undo it.
func (s *Service) Disable(c *fiber.Ctx) error {
	admin, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	user, err := s.findUser(c)
	if err != nil {
		return respondLookupError(c, err)
	}

	if user.ID == admin.ID {
		return fail(c, fiber.StatusBadRequest, "you cannot disable your own account")
	}

	if user.Status != models.StatusApproved {
		return fail(c, fiber.StatusBadRequest, "user cannot be disabled")
	}

	if err := s.db.Model(user).Update("status", models.StatusDisabled).Error; err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to disable user")
		return fail(c, fiber.StatusInternalServerError, "failed to disable user")
	}

	log.Info().Str("username", user.Username).Str("disabled_by", admin.Username).Msg("user disabled")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "user disabled",
	})
}

// Enable switches a disabled account back to approved.
func (s *Service) Enable(c *fiber.Ctx) error {
	user, err := s.findUser(c)
	if err != nil {
		return respondLookupError(c, err)
	}

	if user.Status != models.StatusDisabled {
		return fail(c, fiber.StatusBadRequest, "user cannot be enabled")
	}

	if err := s.db.Model(user).Update("status", models.StatusApproved).Error; err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to enable user")
		return fail(c, fiber.StatusInternalServerError, "failed to enable user")
	}

	log.Info().Str("username", user.Username).Msg("user enabled")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "user enabled",
	})
}

// findUser loads the user addressed by the :id route parameter.
func (s *Service) findUser(c *fiber.Ctx) (*models.User, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, errInvalidID
	}

	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

var errInvalidID = errors.New("invalid user id")

func respondLookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidID):
		return fail(c, fiber.StatusBadRequest, errInvalidID.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, fiber.StatusNotFound, "user not found")
	default:
		log.Error().Err(err).Msg("failed to load user")
		return fail(c, fiber.StatusInternalServerError, "failed to load user")
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
