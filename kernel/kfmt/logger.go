package kfmt

import (
	"io"

	"github.com/hashicorp/go-hclog"
)

// NewLogger returns the root structured logger of the kernel. Subsystems
// derive their own loggers from it with Named. A nil output discards all
// records.
func NewLogger(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		return hclog.NewNullLogger()
	}

	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: output,
	})
}

// ConsoleWriter is an io.Writer that forwards everything to Printf so that
// log records end up on the kernel console.
type ConsoleWriter struct{}

// Write implements io.Writer.
func (ConsoleWriter) Write(p []byte) (int, error) {
	Printf("%s", p)
	return len(p), nil
}
