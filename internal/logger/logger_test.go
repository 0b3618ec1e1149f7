package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput sends uncolored text output to a buffer until the returned
// func restores the previous sink and the INFO level.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)
	prev := swapSink(sink{w: buf})
	return buf, func() {
		swapSink(prev)
		SetLevel("INFO")
	}
}

func TestLevelFiltering(t *testing.T) {
	emitters := []struct {
		level string
		log   func(string, ...any)
	}{
		{"DEBUG", Debug},
		{"INFO", Info},
		{"WARN", Warn},
		{"ERROR", Error},
	}

	for i, min := range emitters {
		t.Run(min.level, func(t *testing.T) {
			buf, cleanup := captureOutput()
			defer cleanup()

			SetLevel(min.level)
			for _, e := range emitters {
				e.log("msg-" + e.level)
			}

			out := buf.String()
			for j, e := range emitters {
				if j >= i {
					assert.Contains(t, out, "["+e.level+"] msg-"+e.level)
				} else {
					assert.NotContains(t, out, "msg-"+e.level)
				}
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	steps := []struct {
		set     string
		enabled Level
		blocked Level
	}{
		{"debug", LevelDebug, -1},
		{"warning", LevelWarn, LevelInfo},
		{"bogus", LevelWarn, LevelInfo}, // ignored, WARN stays
		{"Error", LevelError, LevelWarn},
	}
	for _, st := range steps {
		SetLevel(st.set)
		assert.True(t, Enabled(st.enabled), "after %q", st.set)
		if st.blocked >= 0 {
			assert.False(t, Enabled(st.blocked), "after %q", st.set)
		}
	}
}

func TestTextFormat(t *testing.T) {
	tests := []struct {
		name string
		log  func()
		want []string
	}{
		{
			name: "timestamp",
			log:  func() { Info("hello") },
			want: []string{"] [INFO] hello"},
		},
		{
			name: "fields",
			log:  func() { Info("child faulted", KeyNexus, "nexus-1", KeyCore, 3) },
			want: []string{"child faulted", "nexus=nexus-1", "core=3"},
		},
		{
			name: "groups",
			log:  func() { With(KeyCore, 0).WithGroup("resv").Info("acquired", "rtype", 1) },
			want: []string{"core=0", "resv.rtype=1"},
		},
		{
			name: "durations and floats",
			log:  func() { Info("tick", "every", 1500*time.Millisecond, "ms", 2.5) },
			want: []string{"every=1.5s", "ms=2.500"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, cleanup := captureOutput()
			defer cleanup()

			tt.log()
			out := buf.String()
			assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] `, out)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestColorTextHandler_Color(t *testing.T) {
	buf := new(bytes.Buffer)
	slog.New(NewColorTextHandler(buf, nil, true)).Warn("careful", "k", "v")

	out := buf.String()
	assert.Contains(t, out, ansiYellow+"WARN"+ansiReset)
	assert.Contains(t, out, ansiCyan+"k"+ansiReset+"=v")
}

func TestLevelString(t *testing.T) {
	for l, want := range map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		Level(99):  "UNKNOWN",
	} {
		assert.Equal(t, want, l.String())
	}
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("tick", KeyCore, id, KeyCount, j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 400)
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	Info("nexus created", KeyNexus, "nexus-abc", KeySize, uint64(32<<20))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "nexus created", entry["msg"])
	assert.Equal(t, "nexus-abc", entry["nexus"])
	assert.Equal(t, float64(32<<20), entry["size"])
}

func TestContextLogging(t *testing.T) {
	t.Run("LogContextInjectsFields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetFormat("json")

		lc := &LogContext{
			TraceID:   "abc123",
			SpanID:    "xyz789",
			RequestID: "req-1",
			Operation: "create-nexus",
			Nexus:     "nexus-1",
			ClientIP:  "10.0.0.7",
		}
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "operation completed", "extra_field", "value")

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))

		assert.Equal(t, "abc123", entry[KeyTraceID])
		assert.Equal(t, "xyz789", entry[KeySpanID])
		assert.Equal(t, "req-1", entry[KeyRequestID])
		assert.Equal(t, "create-nexus", entry[KeyOperation])
		assert.Equal(t, "nexus-1", entry[KeyNexus])
		assert.Equal(t, "10.0.0.7", entry[KeyClientIP])
		assert.Equal(t, "value", entry["extra_field"])
	})

	t.Run("NilContextHandled", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		//nolint:staticcheck // nil context on purpose
		require.NotPanics(t, func() { InfoCtx(nil, "test message") })
		assert.Contains(t, buf.String(), "test message")
	})
}

func TestLogContext(t *testing.T) {
	t.Run("Clone", func(t *testing.T) {
		lc := &LogContext{TraceID: "trace123", Operation: "share", ClientIP: "10.0.0.1"}

		clone := lc.Clone()
		assert.Equal(t, lc.TraceID, clone.TraceID)
		clone.Operation = "unshare"
		assert.Equal(t, "share", lc.Operation)
	})

	t.Run("CloneNil", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
	})

	t.Run("WithOperationAndTrace", func(t *testing.T) {
		lc := NewLogContext("10.0.0.1")
		lc2 := lc.WithOperation("DELETE /api/v1/nexuses/{id}").WithTrace("t-1", "s-1")

		assert.Equal(t, "DELETE /api/v1/nexuses/{id}", lc2.Operation)
		assert.Equal(t, "t-1", lc2.TraceID)
		assert.Equal(t, "s-1", lc2.SpanID)
		assert.Empty(t, lc.Operation)
		assert.Empty(t, lc.TraceID)
		assert.GreaterOrEqual(t, lc2.DurationMs(), 0.0)
		assert.Zero(t, (*LogContext)(nil).DurationMs())
	})
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, "0x12345678", ResvKey(0x12345678).Value.String())
	assert.Equal(t, "", Err(nil).Key)
	assert.Equal(t, KeyError, Err(assert.AnError).Key)
}

func TestInit(t *testing.T) {
	t.Run("InitWithWriter", func(t *testing.T) {
		_, cleanup := captureOutput()
		defer cleanup()

		buf := new(bytes.Buffer)
		InitWithWriter(buf, "DEBUG", "json", false)

		Debug("test message")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "test message", entry["msg"])
	})

	t.Run("InitWithFile", func(t *testing.T) {
		path := t.TempDir() + "/nexusd.log"
		require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
		Info("to file")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")

		require.NoError(t, Init(Config{Output: "stdout", Format: "text"}))
	})

	t.Run("InitWithBadPath", func(t *testing.T) {
		err := Init(Config{Output: t.TempDir() + "/missing/nexusd.log"})
		assert.Error(t, err)
	})

	t.Run("InitWithEmptyConfig", func(t *testing.T) {
		require.NoError(t, Init(Config{}))
	})
}

func BenchmarkLogDisabled(b *testing.B) {
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "ERROR", "text", false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Debug("test message", "key", "value")
	}
}

func BenchmarkLogJSON(b *testing.B) {
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "DEBUG", "json", false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info("test message", "key", "value", "count", i)
	}
}
