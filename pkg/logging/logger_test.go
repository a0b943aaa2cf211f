package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
)

func newTestLogger(buf *bytes.Buffer) Logger {
	f := NewTextFormatter()
	f.DisableColors = true
	return New(buf, f)
}

// TestLogger tests the basic logger functionality
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLevel(DebugLevel)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()
	assert.Contains(t, output, "[DEBUG] Debug message")
	assert.Contains(t, output, "[INFO] Info message")
	assert.Contains(t, output, "[WARN] Warning message")
	assert.Contains(t, output, "[ERROR] Error message")

	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "count=42")
	assert.Contains(t, output, "flag=true")
	assert.Contains(t, output, `error="test error"`)
}

// TestLogLevels tests log level filtering
func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLevel(WarnLevel)

	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warning message")
	logger.Error("Error message")

	output := buf.String()
	assert.NotContains(t, output, "Debug message")
	assert.NotContains(t, output, "Info message")
	assert.Contains(t, output, "Warning message")
	assert.Contains(t, output, "Error message")
	assert.Equal(t, WarnLevel, logger.GetLevel())
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "": InfoLevel,
		"warning": WarnLevel, "error": ErrorLevel, " fatal ": FatalLevel,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)
	child := base.WithFields(String("service", "acp-client"))

	base.Info("from base")
	child.Info("from child", Method("session/prompt"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "service=")
	assert.Contains(t, lines[1], "service=acp-client")
	assert.Contains(t, lines[1], "session/prompt: from child")
}

// TestWithContext tests context integration
func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx := ContextWithRequestID(context.Background(), "7")
	ctx = ContextWithSessionID(ctx, "sess_1")
	logger.WithContext(ctx).Info("Test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO] #7 (sess_1): Test message")
	assert.Equal(t, "7", RequestIDFromContext(ctx))
	assert.Equal(t, "", SessionIDFromContext(context.Background()))
}

// TestWithError tests error context integration
func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	reqErr := acperrors.InvalidParams(nil).WithContext(&acperrors.Context{
		RequestID: "3",
		Component: "agent",
		Method:    "session/new",
	})
	logger.WithError(reqErr).Error("Request failed")

	output := buf.String()
	assert.Contains(t, output, "error=")
	assert.Contains(t, output, "error_code=-32602")
	assert.Contains(t, output, "error_category=validation")
	assert.Contains(t, output, "agent session/new #3: Request failed")
	assert.NotContains(t, output, "method=")
}

// TestJSONFormatter tests JSON output formatting
func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("Test message",
		String("key", "value"),
		Int64("id", 42),
		Bool("flag", true),
		Any("line", []byte(`{"jsonrpc":"2.0"}`)),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Test message", entry["message"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, float64(42), entry["id"])
	assert.Equal(t, true, entry["flag"])
	assert.Equal(t, `{"jsonrpc":"2.0"}`, entry["line"])
	assert.Contains(t, entry, "timestamp")
}

func TestTextHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).WithFields(Component("client"))

	logger.Info("Sending", Method("session/prompt"), RequestID("4"), SessionID("sess_9"), Int("bytes", 10))
	logger.Info("Plain", Int64(KeyID, 5))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[INFO] client session/prompt #4 (sess_9): Sending | bytes=10")
	// a non-string id is an ordinary field
	assert.Contains(t, lines[1], "client: Plain | id=5")
}

func TestFrame(t *testing.T) {
	short := Frame([]byte(`{"jsonrpc":"2.0"}`))
	assert.Equal(t, "frame", short.Key)
	assert.Equal(t, `{"jsonrpc":"2.0"}`, short.Value)

	long := Frame(bytes.Repeat([]byte("x"), maxFrameBytes+10))
	s, ok := long.Value.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s, strings.Repeat("x", maxFrameBytes)+"..."))
	assert.True(t, strings.HasSuffix(s, "(+10 bytes)"))
}

func TestColors(t *testing.T) {
	// buffers are not terminals
	var buf bytes.Buffer
	New(&buf, NewTextFormatter()).Warn("plain")
	assert.NotContains(t, buf.String(), "\033[")

	out, err := NewTextFormatter().Format(&Entry{Level: WarnLevel, Message: "colored"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "\033[33m[WARN]\033[0m colored")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "FATAL", FatalLevel.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestNewFormatter(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	f, err = NewFormatter("")
	require.NoError(t, err)
	assert.IsType(t, &TextFormatter{}, f)

	_, err = NewFormatter("xml")
	assert.Error(t, err)
}

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	w := NewLineWriter(logger, WarnLevel, String("component", "agent-stderr"))

	_, err := w.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	_, err = w.Write([]byte("line\n\npartial"))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "[WARN] agent-stderr: first line")
	assert.Contains(t, output, "agent-stderr: second line")
	assert.NotContains(t, output, "partial")

	require.NoError(t, w.Close())
	assert.Contains(t, buf.String(), "agent-stderr: partial")
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Error("dropped")
	assert.Equal(t, FatalLevel+1, logger.GetLevel())
}

// TestGlobalLogger tests the global logger functions
func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLevel(DebugLevel)

	prev := GetGlobalLogger()
	SetGlobalLogger(logger)
	defer SetGlobalLogger(prev)

	Debug("Debug message", String("key", "value"))
	Info("Info message")
	Warn("Warning message")
	LogError("Error message")

	output := buf.String()
	assert.Contains(t, output, "Debug message")
	assert.Contains(t, output, "Info message")
	assert.Contains(t, output, "Warning message")
	assert.Contains(t, output, "Error message")
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var seen string
	handler := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/acp", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "bytes=15")
}
