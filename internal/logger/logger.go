package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var slogLevels = [...]slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

func (l Level) slog() slog.Level {
	if l < LevelDebug || l > LevelError {
		return slog.LevelInfo
	}
	return slogLevels[l]
}

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// sink is where records go and how they are rendered.
type sink struct {
	w      io.Writer
	color  bool
	json   bool
	closer io.Closer
}

var (
	// minLevel is shared by every handler built here, so changing the level
	// never requires a rebuild.
	minLevel = new(slog.LevelVar)

	mu      sync.RWMutex
	current = sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}
	root    *slog.Logger
)

func init() {
	minLevel.Set(slog.LevelInfo)
	rebuild()
}

// rebuild must be called with mu held for writing, or during init.
func rebuild() {
	opts := &slog.HandlerOptions{Level: minLevel}
	var h slog.Handler
	if current.json {
		h = slog.NewJSONHandler(current.w, opts)
	} else {
		h = NewColorTextHandler(current.w, opts, current.color)
	}
	root = slog.New(h)
}

// swapSink installs s and returns the previous sink. The previous closer is
// not closed.
func swapSink(s sink) sink {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	current = s
	rebuild()
	return prev
}

func openOutput(dest string) (sink, error) {
	switch strings.ToLower(dest) {
	case "stdout":
		return sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}, nil
	case "stderr":
		return sink{w: os.Stderr, color: isTerminal(os.Stderr.Fd())}, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return sink{}, fmt.Errorf("open log file %q: %w", dest, err)
	}
	return sink{w: f, closer: f}, nil
}

// Init applies cfg. Empty fields keep their current value. Output can be
// "stdout", "stderr" or a file path; a previously opened log file is closed.
func Init(cfg Config) error {
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}

	mu.RLock()
	next := current
	mu.RUnlock()

	if cfg.Output != "" {
		s, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		s.json = next.json
		next = s
	}
	if f := strings.ToLower(cfg.Format); f == "json" || f == "text" {
		next.json = f == "json"
	}

	prev := swapSink(next)
	if prev.closer != nil && prev.closer != next.closer {
		_ = prev.closer.Close()
	}
	return nil
}

// InitWithWriter sends output to w. Used by tests and embedders.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	if level != "" {
		SetLevel(level)
	}
	swapSink(sink{w: w, color: enableColor, json: strings.EqualFold(format, "json")})
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		minLevel.Set(slog.LevelDebug)
	case "INFO":
		minLevel.Set(slog.LevelInfo)
	case "WARN", "WARNING":
		minLevel.Set(slog.LevelWarn)
	case "ERROR":
		minLevel.Set(slog.LevelError)
	}
}

// SetFormat switches between "text" and "json". Other values are ignored.
func SetFormat(format string) {
	f := strings.ToLower(format)
	if f != "text" && f != "json" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	current.json = f == "json"
	rebuild()
}

// Enabled reports whether messages at level would be emitted.
func Enabled(level Level) bool {
	return level.slog() >= minLevel.Level()
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

func emit(ctx context.Context, level Level, msg string, args []any) {
	if !Enabled(level) {
		return
	}
	get().Log(ctx, level.slog(), msg, withContextFields(ctx, args)...)
}

// Debug logs at debug level. args are alternating keys and values.
func Debug(msg string, args ...any) { emit(context.Background(), LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { emit(context.Background(), LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { emit(context.Background(), LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { emit(context.Background(), LevelError, msg, args) }

// DebugCtx logs at debug level, prepending the LogContext fields found in
// ctx. A nil ctx is allowed.
func DebugCtx(ctx context.Context, msg string, args ...any) { emit(ctx, LevelDebug, msg, args) }

// InfoCtx logs at info level with context fields.
func InfoCtx(ctx context.Context, msg string, args ...any) { emit(ctx, LevelInfo, msg, args) }

// WarnCtx logs at warn level with context fields.
func WarnCtx(ctx context.Context, msg string, args ...any) { emit(ctx, LevelWarn, msg, args) }

// ErrorCtx logs at error level with context fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) { emit(ctx, LevelError, msg, args) }

func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := [...]struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyRequestID, lc.RequestID},
		{KeyOperation, lc.Operation},
		{KeyNexus, lc.Nexus},
		{KeyClientIP, lc.ClientIP},
	}
	out := make([]any, 0, 2*len(fields)+len(args))
	for _, f := range fields {
		if f.val != "" {
			out = append(out, f.key, f.val)
		}
	}
	return append(out, args...)
}

// With returns a logger that always carries args.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration returns the time elapsed since start in milliseconds.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
