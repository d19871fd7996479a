package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// New creates the root logger used by every bottlectl package.
// level is one of trace, debug, info, warn, error; empty falls back to
// BOTTLECTL_LOG_LEVEL and then "info".
func New(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}
	if level == "" {
		level = Level()
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: os.Getenv("BOTTLECTL_JSON_LOG") == "1",
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Level returns the log level configured in the environment.
func Level() string {
	if l := os.Getenv("BOTTLECTL_LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}

// Discard returns a logger that drops everything. Used by tests and by
// silent scans.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
