package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/muesli/termenv"
)

const (
	colorWarn  = "#D97706"
	colorError = "#DC2626"
)

// PrettyHandler renders records the way a daemon log wants to be read:
// a faint wall-clock timestamp, a colored tag only on warnings and
// errors, and faint key=value attrs trailing the message. Info lines
// carry no tag so a tail of the log reads like plain text. Styling
// degrades to plain output on dumb terminals and redirected streams via
// termenv's profile detection.
type PrettyHandler struct {
	out *termenv.Output
	min slog.Level

	// prefix holds inherited attrs, already rendered; groups holds the
	// open group names, outermost first.
	prefix string
	groups []string
}

// NewPrettyHandler creates a handler writing to w (stderr when nil).
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	min := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		min = opts.Level.Level()
	}
	return &PrettyHandler{out: termenv.NewOutput(w), min: min}
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler takes the record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(h.faint(r.Time.Format(time.TimeOnly)))
		b.WriteByte(' ')
	}
	switch {
	case r.Level >= slog.LevelError:
		b.WriteString(h.out.String("error:").Foreground(termenv.RGBColor(colorError)).Bold().String())
		b.WriteByte(' ')
	case r.Level >= slog.LevelWarn:
		b.WriteString(h.out.String("warn:").Foreground(termenv.RGBColor(colorWarn)).String())
		b.WriteByte(' ')
	case r.Level < slog.LevelInfo:
		b.WriteString(h.faint("debug:"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)

	if h.prefix != "" {
		b.WriteByte(' ')
		b.WriteString(h.faint(h.prefix))
	}
	r.Attrs(func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(h.faint(h.attrString(a)))
		return true
	})
	b.WriteByte('\n')

	_, err := h.out.WriteString(b.String())
	return err
}

// WithAttrs implements slog.Handler. Inherited attrs are rendered once,
// under the groups open at the time of the call.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, next.attrString(a))
	}
	if p := strings.Join(parts, " "); p != "" {
		if next.prefix != "" {
			next.prefix += " "
		}
		next.prefix += p
	}
	return &next
}

// WithGroup implements slog.Handler. Groups nest; keys render as
// outer.inner.key.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(next.groups[:len(next.groups):len(next.groups)], name)
	return &next
}

func (h *PrettyHandler) attrString(a slog.Attr) string {
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	return key + "=" + a.Value.String()
}

func (h *PrettyHandler) faint(s string) string {
	return h.out.String(s).Faint().String()
}
