// Package gormlogger adapts zerolog to gorm's logger interface, so SQL
// statements show up as statements of the named logger "db.gorm" and can be
// tuned through the log admin panel like any other logger.
package gormlogger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	gormlog "gorm.io/gorm/logger"

	"github.com/slidetrans/slidetrans/internal/logger"
)

// LoggerName is the named logger SQL statements are tagged with.
const LoggerName = "db.gorm"

const defaultSlowThreshold = 200 * time.Millisecond

// Config implements the adapter config.
type Config struct {
	// SlowThreshold marks queries running longer as warnings.
	//
	// Optional. Default: 200ms
	SlowThreshold time.Duration

	// SkipErrRecordNotFound drops gorm.ErrRecordNotFound from the error log.
	// Handlers treat it as a regular lookup miss, not a failure.
	SkipErrRecordNotFound bool
}

// Logger implements gorm's logger interface on top of zerolog.
type Logger struct {
	cfg Config
	log zerolog.Logger
}

var _ gormlog.Interface = (*Logger)(nil)

// New creates the adapter. Call after logger.Init, the named logger is
// captured here.
func New(cfg Config) *Logger {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaultSlowThreshold
	}

	return &Logger{
		cfg: cfg,
		log: logger.Named(LoggerName),
	}
}

// LogMode is part of the gorm interface. Levels are controlled through the
// log admin panel instead, so the logger is returned unchanged.
func (l *Logger) LogMode(gormlog.LogLevel) gormlog.Interface {
	return l
}

// Info implements the gorm interface.
func (l *Logger) Info(_ context.Context, msg string, args ...interface{}) {
	l.log.Info().Msgf(msg, args...)
}

// Warn implements the gorm interface.
func (l *Logger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.log.Warn().Msgf(msg, args...)
}

// Error implements the gorm interface.
func (l *Logger) Error(_ context.Context, msg string, args ...interface{}) {
	l.log.Error().Msgf(msg, args...)
}

// Trace implements the gorm interface. Failed queries log as errors, slow
// ones as warnings and everything else at debug level.
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !(l.cfg.SkipErrRecordNotFound && errors.Is(err, gormlog.ErrRecordNotFound)):
		l.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > l.cfg.SlowThreshold:
		l.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	default:
		l.log.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}
