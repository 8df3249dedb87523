package logger

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FieldKeyLogger is the JSON key carrying the name of a named logger.
const FieldKeyLogger = "logger"

// Sink targets for named logger output.
const (
	SinkBoth    = "both"
	SinkConsole = "console"
	SinkFile    = "file"
)

// Override holds the runtime tuning of one named logger.
type Override struct {
	Level string `json:"level"`
	Sink  string `json:"sink,omitempty"`
}

// manager keeps the registry of named loggers and their runtime overrides.
// The sink router consults it on every write, so level and sink changes
// apply to loggers that were handed out earlier.
type manager struct {
	mu           sync.RWMutex
	defaultLevel zerolog.Level
	levels       map[string]zerolog.Level
	sinks        map[string]string
	names        map[string]struct{}
}

var mgr = newManager() //nolint:gochecknoglobals

func newManager() *manager {
	return &manager{
		defaultLevel: zerolog.NoLevel,
		levels:       make(map[string]zerolog.Level),
		sinks:        make(map[string]string),
		names:        make(map[string]struct{}),
	}
}

// configureManager resets the overrides to the configured defaults.
// Init calls this, persisted overrides are restored afterwards by the daemon.
func configureManager(cfg Log, level zerolog.Level) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.defaultLevel = level
	mgr.levels = make(map[string]zerolog.Level)
	mgr.sinks = make(map[string]string)
	mgr.names = make(map[string]struct{})

	for _, name := range cfg.Loggers {
		if name != "" {
			mgr.names[name] = struct{}{}
		}
	}
}

func (m *manager) register(name string) {
	if name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.names[name] = struct{}{}
}

// Named returns a logger tagged with the given name.
// Its statements carry a "logger" field and honor the runtime level and
// sink overrides of the log admin panel.
func Named(name string) zerolog.Logger {
	mgr.register(name)

	return log.Logger.With().Str(FieldKeyLogger, name).Logger()
}

// Names lists all registered logger names sorted alphabetically.
func Names() []string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	names := make([]string, 0, len(mgr.names))
	for name := range mgr.names {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// SetLevel overrides the level of one named logger and optionally limits its
// output to a single sink. An empty sink means both.
func SetLevel(name, level, sink string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return ErrUnknownLevel
	}

	switch sink {
	case "":
		sink = SinkBoth
	case SinkBoth, SinkConsole, SinkFile:
	default:
		return ErrUnknownSink
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.names[name] = struct{}{}
	mgr.levels[name] = lvl
	mgr.sinks[name] = sink

	return nil
}

// LevelFor returns the effective level of a named logger.
// The root logger and loggers without override use the configured level.
func LevelFor(name string) zerolog.Level {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	if name != "" {
		if lvl, ok := mgr.levels[name]; ok {
			return lvl
		}
	}

	return mgr.defaultLevel
}

// SinkFor returns the sink scope of a named logger.
func SinkFor(name string) string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	if name != "" {
		if sink, ok := mgr.sinks[name]; ok {
			return sink
		}
	}

	return SinkBoth
}

// Overrides returns a copy of the current runtime overrides for persistence.
func Overrides() map[string]Override {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	out := make(map[string]Override, len(mgr.levels))

	for name, lvl := range mgr.levels {
		out[name] = Override{
			Level: lvl.String(),
			Sink:  mgr.sinks[name],
		}
	}

	return out
}

// RestoreOverrides applies persisted overrides, invalid entries are skipped.
func RestoreOverrides(overrides map[string]Override) {
	for name, o := range overrides {
		if err := SetLevel(name, o.Level, o.Sink); err != nil {
			log.Warn().Err(err).Str(FieldKeyLogger, name).Msg("skipping persisted log level override")
		}
	}
}

// loggerNamePrefix is what a named logger statement carries in its JSON body.
var loggerNamePrefix = []byte(`"` + FieldKeyLogger + `":"`) //nolint:gochecknoglobals

// loggerNameFromPayload extracts the logger field from an encoded statement.
// Root logger statements carry no logger field and return "".
func loggerNameFromPayload(p []byte) string {
	i := bytes.Index(p, loggerNamePrefix)
	if i < 0 {
		return ""
	}

	rest := p[i+len(loggerNamePrefix):]

	j := bytes.IndexByte(rest, '"')
	if j < 0 {
		return ""
	}

	return string(rest[:j])
}

// sinkRouter fans statements out to the console and file sinks.
// It drops statements below the effective level of their logger and honors
// per logger sink scoping. Routing at write time keeps loggers handed out
// before an override was set under the control of the admin panel.
type sinkRouter struct {
	console zerolog.LevelWriter
	file    zerolog.LevelWriter
}

func newSinkRouter(console, file io.Writer) *sinkRouter {
	return &sinkRouter{
		console: toLevelWriter(console),
		file:    toLevelWriter(file),
	}
}

func toLevelWriter(w io.Writer) zerolog.LevelWriter {
	if w == nil {
		return nil
	}

	if lw, ok := w.(zerolog.LevelWriter); ok {
		return lw
	}

	return zerolog.MultiLevelWriter(w)
}

func (r *sinkRouter) Write(p []byte) (n int, err error) {
	return r.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (r *sinkRouter) WriteLevel(l zerolog.Level, p []byte) (n int, err error) {
	if l == zerolog.Disabled {
		return 0, nil
	}

	name := loggerNameFromPayload(p)

	effective := LevelFor(name)
	if effective == zerolog.Disabled {
		return len(p), nil
	}

	// NoLevel statements are never filtered.
	if l != zerolog.NoLevel && l < effective {
		return len(p), nil
	}

	sink := SinkFor(name)

	if r.console != nil && sink != SinkFile {
		if _, err = r.console.WriteLevel(l, p); err != nil {
			return 0, err //nolint:wrapcheck
		}
	}

	if r.file != nil && sink != SinkConsole {
		if _, err = r.file.WriteLevel(l, p); err != nil {
			return 0, err //nolint:wrapcheck
		}
	}

	return len(p), nil
}
