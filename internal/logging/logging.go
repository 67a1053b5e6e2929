// Package logging constructs the one logrus.Logger the CLI front door (C14)
// injects into C1 (credential refresh attempts), C6 (rotation/vacuum
// outcomes), C8 (per-tool start/stop/timeout), and C12 (turn boundaries).
// Fields are always structured (logrus.Fields{...}), never formatted into
// the message string, matching the ambient-logging convention of §4.A.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Option configures the constructed logger.
type Option func(*logrus.Logger)

// WithOutput redirects log output away from stderr, e.g. to a file or
// io.Discard in tests.
func WithOutput(w io.Writer) Option {
	return func(l *logrus.Logger) { l.SetOutput(w) }
}

// WithJSONFormat switches from the default text formatter to JSON, for
// non-interactive/CI invocations where structured log ingestion matters
// more than human readability.
func WithJSONFormat() Option {
	return func(l *logrus.Logger) { l.SetFormatter(&logrus.JSONFormatter{}) }
}

// New builds a logrus.Logger at the given level (case-insensitive level
// name; an unrecognized name falls back to info, matching logrus's own
// ParseLevel error behavior rather than failing startup over a log
// setting). Output defaults to stderr so stdout stays reserved for the
// line editor and tool output.
func New(level string, opts ...Option) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LevelFromEnv resolves CLAUDE_C_LOG_LEVEL (per spec.md §9), defaulting to
// "info" when unset.
func LevelFromEnv() string {
	if v := os.Getenv("CLAUDE_C_LOG_LEVEL"); v != "" {
		return v
	}
	return "info"
}
