// Package logging builds the diagnostic logger shared by every component.
// Verbosity comes from PORTSLAYER_LOG (off, error, warn, info, debug, trace).
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// EnvVar names the environment variable holding the verbosity.
const EnvVar = "PORTSLAYER_LOG"

// DefaultLevel is used when neither the environment nor a flag sets one.
const DefaultLevel = "warn"

// Level is a verbosity setting as written by the user.
type Level string

const (
	Off   Level = "off"
	Error Level = "error"
	Warn  Level = "warn"
	Info  Level = "info"
	Debug Level = "debug"
	Trace Level = "trace"
)

// ParseLevel validates s. The empty string yields DefaultLevel.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = DefaultLevel
	}
	switch l := Level(s); l {
	case Off, Error, Warn, Info, Debug, Trace:
		return l, nil
	}
	return "", fmt.Errorf("invalid log level %q (want off, error, warn, info, debug or trace)", s)
}

// FromEnv reads EnvVar. An unrecognised value falls back to DefaultLevel
// so a typo never stops the program.
func FromEnv() Level {
	l, err := ParseLevel(os.Getenv(EnvVar))
	if err != nil {
		return DefaultLevel
	}
	return l
}

// New returns a logger writing to w at the given verbosity.
// Trace is debug output with caller locations.
func New(level Level, w io.Writer) *log.Logger {
	if level == Off || w == nil {
		return Discard()
	}

	opts := log.Options{
		Prefix:          "portslayer",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}
	switch level {
	case Error:
		opts.Level = log.ErrorLevel
	case Info:
		opts.Level = log.InfoLevel
	case Debug:
		opts.Level = log.DebugLevel
	case Trace:
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
	default:
		opts.Level = log.WarnLevel
	}
	return log.NewWithOptions(w, opts)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard lets constructors accept a nil logger.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// FilePath is where the interactive mode sends its log, since stderr
// belongs to the terminal UI.
func FilePath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "state")
		} else {
			dir = os.TempDir()
		}
	}
	return filepath.Join(dir, "portslayer", "portslayer.log")
}

// OpenFile opens (appending) the log file at path, creating its directory.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, nil
}
