// Package upload provides the file upload API. Presentations and documents
// land in per-user directories under the storage root, every upload is
// tracked by an UploadRecord row. The endpoints answer with the legacy
// {code, message, data} envelope, zero meaning success, because the upload
// clients branch on the numeric codes.
package upload

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/controller/uploadrecord"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/storage"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

const (
	// UploadPath accepts multipart file uploads.
	UploadPath = handler.RootPath + "upload"

	// FilesPath lists and deletes the requester's uploads.
	FilesPath = handler.RootPath + "files"

	// UsagePath reports storage consumption against the quota.
	UsagePath = handler.RootPath + "storage/usage"

	// defaultPerPage is the page size of the file listing when the client
	// does not ask for one.
	defaultPerPage = 20
)

// Non-zero response codes of the upload API. The numbers are part of the
// client contract and count per endpoint.
const (
	codeOK = 0

	// POST /upload
	codeMissingFile     = 1
	codeEmptyFilename   = 2
	codeMissingFileType = 3
	codeRecordFailed    = 4
	codeRejected        = 5
	codeUploadError     = 6

	// GET /files and GET /storage/usage
	codeQueryError = 1

	// DELETE /files/:id
	codeFileNotFound = 1
	codeRemoveFailed = 2
	codeDeleteError  = 3
)

// Service is the upload handler service.
type Service struct {
	handler.Service
	cfg   *config.Config
	db    *gorm.DB
	store *storage.Manager
}

// Handler is the upload handler.
var Handler = Service{}

// Init initializes the upload handler. Every route requires the file.upload
// permission.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service, store *storage.Manager) {
	if app == nil || cfg == nil || db == nil || store == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.store = store

	requireUpload := auth.RequirePermission(authService, auth.PermFileUpload)

	app.Post(UploadPath, requireUpload, s.Upload)
	app.Get(FilesPath, requireUpload, s.List)
	app.Delete(FilesPath+"/:id", requireUpload, s.Delete)
	app.Get(UsagePath, requireUpload, s.Usage)
}

// Upload stores a multipart file in the requester's upload area. The
// file_type field routes it into the matching subdirectory. The record is
// created pending and flipped to completed once the upload is fully
// bookkept, so interrupted uploads stay visible as pending.
func (s *Service) Upload(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return respond(c, fiber.StatusUnauthorized, codeUploadError, "authentication required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respond(c, fiber.StatusBadRequest, codeMissingFile, "no file uploaded")
	}

	if fileHeader.Filename == "" {
		return respond(c, fiber.StatusBadRequest, codeEmptyFilename, "filename is empty")
	}

	fileType := c.FormValue("file_type")
	if fileType == "" {
		return respond(c, fiber.StatusBadRequest, codeMissingFileType, "file_type is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("failed to open uploaded file")
		return respond(c, fiber.StatusInternalServerError, codeUploadError, "server error")
	}
	defer src.Close()

	stored, err := s.store.Store(current.ID, fileType, fileHeader.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFilename):
			return respond(c, fiber.StatusBadRequest, codeEmptyFilename, err.Error())
		case errors.Is(err, storage.ErrExtensionNotAllowed),
			errors.Is(err, storage.ErrFileTooLarge),
			errors.Is(err, storage.ErrQuotaExceeded):
			return respond(c, fiber.StatusBadRequest, codeRejected, err.Error())
		default:
			log.Error().Err(err).Str("username", current.Username).Msg("failed to store upload")
			return respond(c, fiber.StatusInternalServerError, codeUploadError, "server error")
		}
	}

	record := models.UploadRecord{
		Filename:       stored.Name,
		StoredFilename: stored.StoredName,
		FilePath:       stored.Dir,
		FileSize:       stored.Size,
		Status:         models.UploadStatusPending,
		UserID:         current.ID,
	}

	if err := uploadrecord.Create(s.db, &record); err != nil {
		// the file is on disk but untracked, take it back out
		if removeErr := s.store.Remove(stored.Dir, stored.StoredName); removeErr != nil {
			log.Error().Err(removeErr).Str("file", stored.StoredName).Msg("failed to remove orphaned upload")
		}

		log.Error().Err(err).Str("username", current.Username).Msg("failed to record upload")

		return respond(c, fiber.StatusInternalServerError, codeRecordFailed, "failed to record upload")
	}

	if err := uploadrecord.SetStatus(s.db, record.ID, models.UploadStatusCompleted); err != nil {
		log.Error().Err(err).Uint64("record_id", record.ID).Msg("failed to finish upload record")
		return respond(c, fiber.StatusInternalServerError, codeUploadError, "failed to finish upload")
	}

	record.Status = models.UploadStatusCompleted

	log.Info().Str("username", current.Username).Str("file", stored.StoredName).
		Int64("size", stored.Size).Str("file_type", fileType).Msg("file uploaded")

	return c.JSON(fiber.Map{
		"code":    codeOK,
		"message": "upload successful",
		"data":    recordJSON(&record),
	})
}

// List returns a page of the requester's upload records, newest first.
// file_type narrows to one subdirectory, status to one processing state.
func (s *Service) List(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return respond(c, fiber.StatusUnauthorized, codeQueryError, "authentication required")
	}

	records, total, err := uploadrecord.ListByUser(s.db, uploadrecord.ListParams{
		UserID:   current.ID,
		FileType: c.Query("file_type"),
		Status:   c.Query("status"),
		Page:     c.QueryInt("page", 1),
		PerPage:  c.QueryInt("per_page", defaultPerPage),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to query upload records")
		return respond(c, fiber.StatusInternalServerError, codeQueryError, "server error")
	}

	items := make([]fiber.Map, 0, len(records))
	for i := range records {
		items = append(items, recordJSON(&records[i]))
	}

	return c.JSON(fiber.Map{
		"code":    codeOK,
		"message": "ok",
		"data": fiber.Map{
			"total": total,
			"items": items,
		},
	})
}

// Delete removes one of the requester's uploads, the disk file first and
// then the record. Records of other users are invisible. A record whose
// file already vanished is still removed.
func (s *Service) Delete(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return respond(c, fiber.StatusUnauthorized, codeDeleteError, "authentication required")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return respond(c, fiber.StatusNotFound, codeFileNotFound, "file not found")
	}

	record, err := uploadrecord.GetOwned(s.db, current.ID, uint64(id))
	if err != nil {
		if errors.Is(err, uploadrecord.ErrRecordNotFound) {
			return respond(c, fiber.StatusNotFound, codeFileNotFound, "file not found")
		}

		log.Error().Err(err).Msg("failed to load upload record")

		return respond(c, fiber.StatusInternalServerError, codeDeleteError, "server error")
	}

	if s.store.Exists(record.FilePath, record.StoredFilename) {
		if err := s.store.Remove(record.FilePath, record.StoredFilename); err != nil {
			log.Error().Err(err).Str("file", record.StoredFilename).Msg("failed to remove uploaded file")
			return respond(c, fiber.StatusInternalServerError, codeRemoveFailed, "failed to remove file")
		}
	}

	if err := uploadrecord.Delete(s.db, record.ID); err != nil {
		log.Error().Err(err).Uint64("record_id", record.ID).Msg("failed to delete upload record")
		return respond(c, fiber.StatusInternalServerError, codeDeleteError, "server error")
	}

	log.Info().Str("username", current.Username).Str("file", record.StoredFilename).Msg("upload deleted")

	return c.JSON(fiber.Map{
		"code":    codeOK,
		"message": "file deleted",
	})
}

// Usage reports how many bytes the requester's upload area occupies and
// how that compares to the quota.
func (s *Service) Usage(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return respond(c, fiber.StatusUnauthorized, codeQueryError, "authentication required")
	}

	usage, err := s.store.Usage(current.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to measure storage usage")
		return respond(c, fiber.StatusInternalServerError, codeQueryError, "server error")
	}

	quota := s.store.Quota()

	var percentage float64
	if quota > 0 {
		percentage = math.Round(float64(usage)/float64(quota)*100*100) / 100
	}

	return c.JSON(fiber.Map{
		"code":    codeOK,
		"message": "ok",
		"data": fiber.Map{
			"usage":      usage,
			"quota":      quota,
			"percentage": percentage,
		},
	})
}

func recordJSON(record *models.UploadRecord) fiber.Map {
	return fiber.Map{
		"id":              record.ID,
		"filename":        record.Filename,
		"stored_filename": record.StoredFilename,
		"file_path":       record.FilePath,
		"file_size":       record.FileSize,
		"status":          record.Status,
		"error_message":   record.ErrorMessage,
		"user_id":         record.UserID,
		"created_at":      record.CreatedAt,
	}
}

func respond(c *fiber.Ctx, status, code int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":    code,
		"message": message,
	})
}
