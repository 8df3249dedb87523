// Package logs provides the log admin panel. Administrators list the named
// loggers, read statements back from the rolling log files, and tune logger
// levels and sinks at runtime. Level changes are persisted as a setting so
// they survive a restart.
package logs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/controller/setting"
	"github.com/slidetrans/slidetrans/internal/logger"
	"github.com/slidetrans/slidetrans/internal/web/handler"
)

// Route paths of the log admin panel.
const (
	ListPath  = handler.APIPath + "/logs/list"
	QueryPath = handler.APIPath + "/logs/query"
	LevelPath = handler.APIPath + "/logs/level"
	DebugPath = handler.APIPath + "/logs/debug"
)

// queryTimeLayouts are the accepted time bound formats, tried in order.
var queryTimeLayouts = []string{ //nolint:gochecknoglobals
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

const dateOnlyLayout = "2006-01-02"

// Service is the log admin panel handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the log admin panel handler.
var Handler = Service{}

// Init initializes the log admin panel handler. Every route requires the
// logs.view permission.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	requireLogsView := auth.RequirePermission(authService, auth.PermLogsView)

	app.Get(ListPath, requireLogsView, s.List)
	app.Post(QueryPath, requireLogsView, s.Query)
	app.Post(LevelPath, requireLogsView, s.SetLevel)
	app.Get(DebugPath, requireLogsView, s.Debug)
}

// List returns the registered logger names, sorted.
func (s *Service) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"loggers": logger.Names(),
	})
}

// Query reads statements back from the rolling log files. An end bound given
// as a bare date extends to the end of that day.
func (s *Service) Query(c *fiber.Ctx) error {
	var body struct {
		LoggerName string `json:"logger_name"`
		StartTime  string `json:"start_time"`
		EndTime    string `json:"end_time"`
		Level      string `json:"level"`
		Limit      int    `json:"limit"`
	}

	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	params := logger.QueryParams{
		LoggerName: strings.TrimSpace(body.LoggerName),
		Level:      normalizeLevel(body.Level),
		Limit:      body.Limit,
	}

	start, _, err := parseQueryTime(body.StartTime)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid start_time")
	}

	params.StartTime = start

	end, dateOnly, err := parseQueryTime(body.EndTime)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid end_time")
	}

	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}

	params.EndTime = end

	entries, err := logger.Query(s.cfg.Log, params)
	if err != nil {
		if errors.Is(err, logger.ErrFileLogDisabled) {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}

		log.Error().Err(err).Msg("log query failed")

		return fail(c, fiber.StatusInternalServerError, "log query failed")
	}

	if entries == nil {
		entries = []logger.Entry{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"logs":    entries,
		"total":   len(entries),
	})
}

// SetLevel adjusts the minimum level of one named logger at runtime,
// optionally scoped to a single sink, and persists the override.
func (s *Service) SetLevel(c *fiber.Ctx) error {
	var body struct {
		LoggerName  string `json:"logger_name" validate:"required"`
		Level       string `json:"level" validate:"required"`
		HandlerType string `json:"handler_type" validate:"omitempty,oneof=both console file"`
	}

	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validator.Struct(body); err != nil {
		return fail(c, fiber.StatusBadRequest, "logger_name and level are required")
	}

	if err := logger.SetLevel(body.LoggerName, normalizeLevel(body.Level), body.HandlerType); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	s.persistOverrides()

	log.Info().Str("logger", body.LoggerName).Str("level", body.Level).
		Str("handler_type", body.HandlerType).Msg("log level updated")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "log level updated",
	})
}

// Debug reports the manager state, the effective level and sink of every
// registered logger plus the log files present on disk.
func (s *Service) Debug(c *fiber.Ctx) error {
	loggers := make(map[string]fiber.Map)

	for _, name := range logger.Names() {
		loggers[name] = fiber.Map{
			"level": logger.LevelFor(name).String(),
			"sink":  logger.SinkFor(name),
		}
	}

	files := logger.Files(s.cfg.Log)
	if files == nil {
		files = []string{}
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"global_level": logger.LevelFor("").String(),
		"loggers":      loggers,
		"files":        files,
	})
}

// persistOverrides saves the current override set. The runtime change is
// already applied, a failing save only costs it the restart survival.
func (s *Service) persistOverrides() {
	payload, err := json.Marshal(logger.Overrides())
	if err != nil {
		log.Error().Err(err).Msg("failed to encode log level overrides")
		return
	}

	if _, err := setting.Set(s.db, setting.KeyLogLevels, payload); err != nil {
		log.Error().Err(err).Msg("failed to persist log level overrides")
	}
}

// parseQueryTime parses a time bound and reports whether it was a bare date.
// Empty input returns the zero time, meaning unbounded.
func parseQueryTime(value string) (parsed time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, nil
	}

	for _, layout := range queryTimeLayouts {
		t, parseErr := time.ParseInLocation(layout, value, time.Local)
		if parseErr == nil {
			return t, layout == dateOnlyLayout, nil
		}
	}

	return time.Time{}, false, errors.New("unrecognized time format")
}

// normalizeLevel lower-cases a level name and folds the python style
// "warning" onto zerolog's "warn".
func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}

	return level
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
