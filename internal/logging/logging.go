package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Base builds the process logger on stderr, leaving stdout to command output.
// format: json|console; level: trace|debug|info|warn|error.
func Base(app, level, format string) zerolog.Logger {
	return New(os.Stderr, app, level, format)
}

// New builds a logger writing to w.
func New(w io.Writer, app, level, format string) zerolog.Logger {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Str("app", app).Logger()
}

// ParseLevel falls back to info for unknown or empty levels.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return lvl
}
