// Package files provides the administrator overview of all uploaded files.
// It lists every upload record across users and can remove an upload, the
// disk file first and then the record.
package files

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/controller/uploadrecord"
	"github.com/slidetrans/slidetrans/internal/storage"
	"github.com/slidetrans/slidetrans/internal/web/handler"
)

// Path is the base path of the admin file overview.
const Path = handler.APIPath + "/admin/files"

// Service is the admin file overview handler service.
type Service struct {
	handler.Service
	cfg   *config.Config
	db    *gorm.DB
	store *storage.Manager
}

// Handler is the admin file overview handler.
var Handler = Service{}

// Init initializes the admin file overview handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service, store *storage.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.store = store

	requireAdmin := auth.RequirePermission(authService, auth.PermAdminAccess)

	app.Get(Path, requireAdmin, s.List)
	app.Delete(Path+"/:id", requireAdmin, s.Delete)
}

// List returns every upload record with its owner and whether the stored
// file is still on disk. Records whose file vanished are how operators spot
// interrupted cleanups.
func (s *Service) List(c *fiber.Ctx) error {
	records, err := uploadrecord.ListAll(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to list upload records")
		return fail(c, fiber.StatusInternalServerError, "failed to load files")
	}

	items := make([]fiber.Map, 0, len(records))

	for i := range records {
		record := &records[i]

		items = append(items, fiber.Map{
			"id":              record.ID,
			"filename":        record.Filename,
			"stored_filename": record.StoredFilename,
			"file_path":       record.FilePath,
			"file_size":       record.FileSize,
			"status":          record.Status,
			"error_message":   record.ErrorMessage,
			"created_at":      record.CreatedAt,
			"user_id":         record.UserID,
			"username":        record.User.Username,
			"file_exists":     s.store.Exists(record.FilePath, record.StoredFilename),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"files":   items,
		"total":   len(items),
	})
}

// Delete removes an upload of any user. The disk file goes first, the record
// stays when the removal fails so the overview keeps pointing at the leak.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fail(c, fiber.StatusBadRequest, "invalid file id")
	}

	record, err := uploadrecord.GetByID(s.db, uint64(id))
	if err != nil {
		if errors.Is(err, uploadrecord.ErrRecordNotFound) {
			return fail(c, fiber.StatusNotFound, "file not found")
		}

		log.Error().Err(err).Msg("failed to load upload record")

		return fail(c, fiber.StatusInternalServerError, "failed to delete file")
	}

	if s.store.Exists(record.FilePath, record.StoredFilename) {
		if err := s.store.Remove(record.FilePath, record.StoredFilename); err != nil {
			log.Error().Err(err).Str("file", record.StoredFilename).Msg("failed to remove stored file")
			return fail(c, fiber.StatusInternalServerError, "failed to delete file")
		}
	}

	if err := uploadrecord.Delete(s.db, record.ID); err != nil {
		log.Error().Err(err).Uint64("record_id", record.ID).Msg("failed to delete upload record")
		return fail(c, fiber.StatusInternalServerError, "failed to delete file")
	}

	log.Info().Str("file", record.Filename).Uint64("owner", record.UserID).
		Msg("upload removed by administrator")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "file deleted",
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
