package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

const textTimeLayout = "2006-01-02 15:04:05"

// ColorTextHandler is a slog.Handler writing one human readable line per
// record:
//
//	[2006-01-02 15:04:05] [INFO] message key=value group.key=value
//
// Groups become dotted key prefixes. Colors are ANSI escapes and are only
// emitted when enabled.
type ColorTextHandler struct {
	level    slog.Leveler
	w        io.Writer
	mu       *sync.Mutex
	bound    []byte // attrs from WithAttrs, already rendered
	group    string
	useColor bool
}

// NewColorTextHandler creates a handler writing to w. Only opts.Level is
// honoured.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	var lv slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		lv = opts.Level
	}
	return &ColorTextHandler{level: lv, w: w, mu: new(sync.Mutex), useColor: useColor}
}

func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	line := make([]byte, 0, 256)
	line = append(line, '[')
	line = r.Time.AppendFormat(line, textTimeLayout)
	line = append(line, "] ["...)
	line = h.appendLevel(line, r.Level)
	line = append(line, "] "...)
	line = append(line, r.Message...)
	line = append(line, h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		line = h.appendAttr(line, h.group, a)
		return true
	})
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *ColorTextHandler) appendLevel(b []byte, level slog.Level) []byte {
	name, color := "ERROR", ansiRed
	switch {
	case level < slog.LevelInfo:
		name, color = "DEBUG", ansiGray
	case level < slog.LevelWarn:
		name, color = "INFO", ansiGreen
	case level < slog.LevelError:
		name, color = "WARN", ansiYellow
	}
	if !h.useColor {
		return append(b, name...)
	}
	b = append(b, color...)
	b = append(b, name...)
	return append(b, ansiReset...)
}

func (h *ColorTextHandler) appendAttr(b []byte, group string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return b
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			group = dotted(group, a.Key)
		}
		for _, member := range a.Value.Group() {
			b = h.appendAttr(b, group, member)
		}
		return b
	}

	b = append(b, ' ')
	if h.useColor {
		b = append(b, ansiCyan...)
	}
	b = append(b, dotted(group, a.Key)...)
	if h.useColor {
		b = append(b, ansiReset...)
	}
	b = append(b, '=')
	return appendValue(b, a.Value)
}

func dotted(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func appendValue(b []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindInt64:
		return strconv.AppendInt(b, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(b, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(b, v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.AppendBool(b, v.Bool())
	case slog.KindTime:
		return v.Time().AppendFormat(b, time.RFC3339)
	default:
		// Strings, durations and Any values render through their String
		// form, which for Any is fmt's %v.
		return append(b, v.String()...)
	}
}

func (h *ColorTextHandler) clone() *ColorTextHandler {
	c := *h
	return &c
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.bound = append([]byte(nil), h.bound...)
	for _, a := range attrs {
		c.bound = h.appendAttr(c.bound, h.group, a)
	}
	return c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.group = dotted(h.group, name)
	return c
}
