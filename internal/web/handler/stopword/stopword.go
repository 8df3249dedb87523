// Package stopword provides the stop word API. Stop words are terms a user
// wants kept verbatim in translated slides, every user maintains their own
// list.
package stopword

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	controller "github.com/slidetrans/slidetrans/internal/db/controller/stopword"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

const (
	// Path is the base path of the stop word API.
	Path = handler.APIPath + "/stop-words"

	// StatsPath reports how many stop words the requester keeps.
	StatsPath = Path + "/stats"
)

// Service is the stop word handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the stop word handler.
var Handler = Service{}

// Init initializes the stop word handler. Every route requires the
// stopwords.manage permission.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	requireStopWords := auth.RequirePermission(authService, auth.PermStopWordsManage)

	app.Get(Path, requireStopWords, s.List)
	app.Post(Path, requireStopWords, s.Add)
	app.Get(StatsPath, requireStopWords, s.Stats)
	app.Delete(Path+"/:id", requireStopWords, s.Delete)
}

// List returns the requester's stop words, newest first.
func (s *Service) List(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	words, err := controller.List(s.db, current.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to query stop words")
		return fail(c, fiber.StatusInternalServerError, "failed to load stop words")
	}

	items := make([]fiber.Map, 0, len(words))
	for i := range words {
		items = append(items, wordJSON(&words[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"stop_words": items,
	})
}

// Add stores a new stop word for the requester. Words are trimmed and must
// be unique within the requester's list.
func (s *Service) Add(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req struct {
		Word string `json:"word"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	word, err := controller.Add(s.db, current.ID, req.Word)
	if err != nil {
		switch {
		case errors.Is(err, controller.ErrWordEmpty),
			errors.Is(err, controller.ErrWordTooLong),
			errors.Is(err, controller.ErrWordExists):
			return fail(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("failed to store stop word")
			return fail(c, fiber.StatusInternalServerError, "failed to store stop word")
		}
	}

	log.Info().Str("word", word.Word).Str("username", current.Username).Msg("stop word added")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "stop word added",
		"data":    wordJSON(word),
	})
}

// Delete removes one of the requester's stop words. Words of other users
// are invisible and report not found.
func (s *Service) Delete(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fail(c, fiber.StatusBadRequest, "invalid stop word id")
	}

	if err := controller.Delete(s.db, current.ID, uint64(id)); err != nil {
		if errors.Is(err, controller.ErrWordNotFound) {
			return fail(c, fiber.StatusNotFound, "stop word not found")
		}

		log.Error().Err(err).Msg("failed to delete stop word")
		return fail(c, fiber.StatusInternalServerError, "failed to delete stop word")
	}

	log.Info().Uint64("stop_word_id", uint64(id)).Str("username", current.Username).Msg("stop word deleted")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "stop word deleted",
	})
}

// Stats reports how many stop words the requester keeps.
func (s *Service) Stats(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	count, err := controller.Count(s.db, current.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to count stop words")
		return fail(c, fiber.StatusInternalServerError, "failed to load stats")
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"total_stop_words": count,
	})
}

func wordJSON(word *models.StopWord) fiber.Map {
	return fiber.Map{
		"id":         word.ID,
		"word":       word.Word,
		"user_id":    word.UserID,
		"created_at": word.CreatedAt,
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
