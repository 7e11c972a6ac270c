package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New creates a timestamped logger writing to w at level.
// Timestamps are formatted as "HH:MM:SS.ms".
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// ParseLevel maps a level name to a log level, defaulting to info
func ParseLevel(name string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Install makes a new logger the slog default and returns it
func Install(w io.Writer, level log.Level) *log.Logger {
	logger := New(w, level)
	slog.SetDefault(slog.New(logger))
	return logger
}

// Progress logs how long an operation took
type Progress struct {
	start time.Time
}

// StartProgress captures the current time
func StartProgress() *Progress {
	return &Progress{start: time.Now()}
}

// Done logs msg with the elapsed time rounded to the millisecond
func (p *Progress) Done(msg string, args ...any) {
	args = append(args, "elapsed", time.Since(p.start).Round(time.Millisecond))
	slog.Info(msg, args...)
}
