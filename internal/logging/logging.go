// internal/logging/logging.go
package logging

import (
	"fmt"
	"strings"

	log "github.com/go-ozzo/ozzo-log"
)

// Logger is the logging contract every component accepts.
// *log.Logger from ozzo-log satisfies it.
type Logger interface {
	Debug(format string, a ...interface{})
	Info(format string, a ...interface{})
	Warning(format string, a ...interface{})
	Error(format string, a ...interface{})
}

// Config selects level and optional file output.
type Config struct {
	Level string // debug | info | warning | error
	File  string // optional; console only when empty
}

// Service owns the root ozzo logger and hands out category loggers.
type Service struct {
	root *log.Logger
}

// Open builds the root logger with a console target and, when set, a file target.
func Open(cfg Config) (*Service, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	root := log.NewLogger()

	console := log.NewConsoleTarget()
	console.MaxLevel = level
	root.Targets = append(root.Targets, console)

	if cfg.File != "" {
		file := log.NewFileTarget()
		file.FileName = cfg.File
		file.MaxLevel = level
		root.Targets = append(root.Targets, file)
	}

	if err := root.Open(); err != nil {
		return nil, fmt.Errorf("logging: open: %w", err)
	}

	return &Service{root: root}, nil
}

// For returns the logger for one category, e.g. "poller.gem1".
func (s *Service) For(category string) Logger {
	return s.root.GetLogger(category)
}

// Close flushes and closes all targets.
func (s *Service) Close() {
	s.root.Close()
}

// ParseLevel maps a config string to an ozzo level. Empty means info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.LevelInfo, nil
	case "debug":
		return log.LevelDebug, nil
	case "notice":
		return log.LevelNotice, nil
	case "warning", "warn":
		return log.LevelWarning, nil
	case "error":
		return log.LevelError, nil
	default:
		return log.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// ---- no-op ----

type nop struct{}

func (nop) Debug(string, ...interface{})   {}
func (nop) Info(string, ...interface{})    {}
func (nop) Warning(string, ...interface{}) {}
func (nop) Error(string, ...interface{})   {}

// Nop discards everything. Used when a component is built without a logger.
func Nop() Logger { return nop{} }
