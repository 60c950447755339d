// Package rlog configures the process-wide structured logger, in the
// style of go-ethereum's log package: a thin wrapper around log/slog
// with a terminal handler for interactive use and a JSON handler for
// quiet/scripted runs.
package rlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// New returns a logger writing to w. When quiet is true, records are
// emitted as JSON (one object per line) instead of the human-readable
// terminal form; callers use this for --quiet / non-TTY output.
func New(w io.Writer, quiet bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	}
	if quiet {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(&terminalHandler{w: w, opts: opts})
}

// terminalHandler renders records as "HH:MM:SS LEVEL msg key=val ...",
// matching the compact single-line format go-ethereum's terminal
// handler produces for interactive sessions.
type terminalHandler struct {
	w    io.Writer
	opts *slog.HandlerOptions
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 128)
	buf = append(buf, r.Time.Format("15:04:05")...)
	buf = append(buf, ' ')
	buf = append(buf, levelTag(r.Level)...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	r.Attrs(func(a slog.Attr) bool {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = append(buf, a.Value.String()...)
		return true
	})
	buf = append(buf, '\n')
	_, err := h.w.Write(buf)
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Attributes passed through With are not kept: Handle renders only
	// each record's own attributes, and the returned handler is h itself.
	return h
}

func (h *terminalHandler) WithGroup(name string) slog.Handler { return h }

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERRO"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DBUG"
	}
}

// Default is a ready-to-use logger to os.Stderr for library code that
// does not carry its own *slog.Logger (e.g. package-level helpers
// invoked from tests). Driver code should prefer an explicit logger
// threaded through its constructor.
var Default = New(os.Stderr, false)

// Elapsed formats a duration the way progress log lines want it:
// rounded to millisecond precision (e.g. "1.234s", "500ms").
func Elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
