package gormlogger_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gormlog "gorm.io/gorm/logger"

	"github.com/slidetrans/slidetrans/internal/logger"
	"github.com/slidetrans/slidetrans/internal/logger/adapter/gormlogger"
)

func initFileLogger(t *testing.T) logger.Log {
	t.Helper()

	cfg := logger.Log{
		LogLevel:    "info",
		ServiceName: "test",
		AppName:     "test",
		File: logger.LogFile{
			Enabled:  true,
			Path:     t.TempDir(),
			TraceLog: "trace.log",
			InfoLog:  "info.log",
			WarnLog:  "warn.log",
			ErrorLog: "error.log",
		},
	}

	require.NoError(t, logger.Init(cfg))

	return cfg
}

func readLog(t *testing.T, cfg logger.Log, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(cfg.File.Path, name))
	if os.IsNotExist(err) {
		return ""
	}

	require.NoError(t, err)

	return string(data)
}

func queryFunc(sql string) func() (string, int64) {
	return func() (string, int64) {
		return sql, 1
	}
}

func TestTrace(t *testing.T) {
	cfg := initFileLogger(t)

	// raise db.gorm to debug so ordinary queries are written
	require.NoError(t, logger.SetLevel(gormlogger.LoggerName, "debug", ""))

	l := gormlogger.New(gormlogger.Config{})

	ctx := context.Background()

	l.Trace(ctx, time.Now(), queryFunc("SELECT ordinary"), nil)
	l.Trace(ctx, time.Now().Add(-time.Second), queryFunc("SELECT slow"), nil)
	l.Trace(ctx, time.Now(), queryFunc("SELECT broken"), errors.New("boom")) //nolint:goerr113

	require.Contains(t, readLog(t, cfg, cfg.File.InfoLog), "SELECT ordinary")
	require.Contains(t, readLog(t, cfg, cfg.File.WarnLog), "slow query")
	require.Contains(t, readLog(t, cfg, cfg.File.WarnLog), "SELECT slow")
	require.Contains(t, readLog(t, cfg, cfg.File.ErrorLog), "query failed")
	require.Contains(t, readLog(t, cfg, cfg.File.ErrorLog), "boom")
}

func TestTraceSkipsRecordNotFound(t *testing.T) {
	cfg := initFileLogger(t)

	l := gormlogger.New(gormlogger.Config{SkipErrRecordNotFound: true})

	l.Trace(context.Background(), time.Now(), queryFunc("SELECT missing"), gormlog.ErrRecordNotFound)

	require.NotContains(t, readLog(t, cfg, cfg.File.ErrorLog), "SELECT missing")
}

func TestTraceDebugSuppressedAtInfo(t *testing.T) {
	cfg := initFileLogger(t)

	l := gormlogger.New(gormlogger.Config{})

	l.Trace(context.Background(), time.Now(), queryFunc("SELECT quiet"), nil)

	require.NotContains(t, readLog(t, cfg, cfg.File.InfoLog), "SELECT quiet")
}
