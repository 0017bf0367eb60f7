// Package logging provides structured logging for the CLI and the browse shell.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Modes accepted by NewLogger.
const (
	ModeCLI   = "cli"
	ModeShell = "shell"
)

const consoleTimeFormat = "15:04:05"

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog zerolog.Logger
	mode string
}

// NewLogger creates a new logger for the specified mode.
func NewLogger(mode string) *Logger {
	var out io.Writer
	if mode == ModeShell {
		// Shell mode: listings go to stdout, so keep logs out of the way
		out = os.Stderr
	} else {
		// CLI mode: Use stdout for logs (stderr reserved for progress bars)
		out = os.Stdout
	}

	l := &Logger{mode: mode}
	l.SetOutput(out)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI)
}

// NewJSONLogger creates a logger that writes raw JSON lines to w.
// Tests use it to assert on structured fields.
func NewJSONLogger(w io.Writer) *Logger {
	return &Logger{
		zlog: zerolog.New(w).With().Timestamp().Logger(),
		mode: "json",
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "nop"}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// WithFields returns a child Logger carrying the given string fields,
// e.g. the request_id attached to every API call.
func (l *Logger) WithFields(kv map[string]string) *Logger {
	ctx := l.zlog.With()
	for k, v := range kv {
		ctx = ctx.Str(k, v)
	}
	return &Logger{zlog: ctx.Logger(), mode: l.mode}
}

// WithLevel returns a copy of the logger that drops events below level.
func (l *Logger) WithLevel(level zerolog.Level) *Logger {
	return &Logger{zlog: l.zlog.Level(level), mode: l.mode}
}

// SetOutput changes the output writer for the logger.
// This is useful for redirecting logs through progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	if l.mode == "json" {
		l.zlog = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: consoleTimeFormat,
	}).With().Timestamp().Logger()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
