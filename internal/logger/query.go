package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Query limits.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000

	maxLogLineSize = 1024 * 1024
)

// ErrFileLogDisabled is returned by Query when no file logging is configured,
// there is nothing to read back then.
var ErrFileLogDisabled = errors.New("file logging is disabled, no log files to query")

// Entry is one statement read back from the rolling log files.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Logger    string    `json:"logger"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// QueryParams narrow down which statements Query returns.
type QueryParams struct {
	LoggerName string    // "" matches all, otherwise exact, child or substring match
	Level      string    // "" matches all levels
	StartTime  time.Time // zero means unbounded
	EndTime    time.Time // zero means unbounded
	Limit      int       // defaults to DefaultQueryLimit, capped at MaxQueryLimit
}

// Query reads statements back from the rolling log files, newest first.
// Rotated backups are included, lines that do not parse as zerolog JSON are
// skipped. Only complete files are read, Query never tails.
func Query(cfg Log, p QueryParams) ([]Entry, error) {
	if !cfg.File.Enabled {
		return nil, ErrFileLogDisabled
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	var entries []Entry

	for _, file := range queryFiles(cfg.File) {
		fileEntries, err := scanLogFile(file, p)
		if err != nil {
			return nil, err
		}

		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// Files lists the log files currently present on disk, the active rolling
// files first, rotated backups after them. It returns nil when file logging
// is disabled.
func Files(cfg Log) []string {
	if !cfg.File.Enabled {
		return nil
	}

	var present []string

	for _, file := range queryFiles(cfg.File) {
		if _, err := os.Stat(file); err == nil {
			present = append(present, file)
		}
	}

	return present
}

// queryFiles lists the rolling files plus their rotated backups.
// lumberjack names backups <stem>-<timestamp><ext>.
func queryFiles(cfg LogFile) []string {
	var (
		files []string
		seen  = make(map[string]struct{})
	)

	add := func(file string) {
		if _, ok := seen[file]; ok {
			return
		}

		seen[file] = struct{}{}

		files = append(files, file)
	}

	for _, name := range []string{cfg.TraceLog, cfg.InfoLog, cfg.WarnLog, cfg.ErrorLog, cfg.AccessLog} {
		if name == "" {
			continue
		}

		add(path.Join(cfg.Path, name))

		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)

		backups, err := filepath.Glob(path.Join(cfg.Path, stem+"-*"+ext))
		if err != nil {
			continue
		}

		for _, backup := range backups {
			add(backup)
		}
	}

	return files
}

func scanLogFile(file string, p QueryParams) ([]Entry, error) {
	f, err := os.Open(file) //nolint:gosec // paths come from the log config, not the request
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "open log file")
	}
	defer f.Close() //nolint:errcheck // read only

	var entries []Entry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineSize) //nolint:mnd

	for scanner.Scan() {
		entry, ok := parseLine(scanner.Bytes())
		if !ok {
			continue
		}

		if !matchEntry(entry, p) {
			continue
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return entries, errors.Wrap(err, "read log file")
	}

	return entries, nil
}

// rawEntry is the zerolog JSON shape of one line.
type rawEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Logger  string `json:"logger"`
	Message string `json:"message"`
}

func parseLine(line []byte) (Entry, bool) {
	var raw rawEntry

	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false
	}

	ts, err := time.Parse(time.RFC3339, raw.Time)
	if err != nil {
		return Entry{}, false
	}

	return Entry{
		Timestamp: ts,
		Logger:    raw.Logger,
		Level:     raw.Level,
		Message:   raw.Message,
	}, true
}

func matchEntry(e Entry, p QueryParams) bool {
	if p.LoggerName != "" && !matchesLogger(e.Logger, p.LoggerName) {
		return false
	}

	if p.Level != "" && !strings.EqualFold(e.Level, p.Level) {
		return false
	}

	if !p.StartTime.IsZero() && e.Timestamp.Before(p.StartTime) {
		return false
	}

	if !p.EndTime.IsZero() && e.Timestamp.After(p.EndTime) {
		return false
	}

	return true
}

// matchesLogger accepts the exact name, child loggers of the name and any
// name containing the query as substring.
func matchesLogger(entryName, query string) bool {
	if entryName == query {
		return true
	}

	if strings.HasPrefix(entryName, query+".") {
		return true
	}

	return strings.Contains(entryName, query)
}
