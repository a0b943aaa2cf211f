// Package logging provides structured logging for ACP connections.
// Loggers write to stderr unless told otherwise, since stdout usually
// carries the protocol stream of an agent process.
//
// Four keys are treated as the entry header rather than ordinary fields:
// the component (which peer or subsystem logged), the JSON-RPC method,
// the JSON-RPC id and the ACP session id. Text output renders them in
// front of the message so a conversation can be followed by eye.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	// FatalLevel entries terminate the program after being written
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if i := int(l - DebugLevel); i >= 0 && i < len(levelNames) {
		return levelNames[i]
	}
	return "UNKNOWN"
}

// ParseLevel parses a level name such as "debug" or "WARN". The empty
// string means info.
func ParseLevel(name string) (Level, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch upper {
	case "":
		return InfoLevel, nil
	case "WARNING":
		return WarnLevel, nil
	}
	for i, n := range levelNames {
		if n == upper {
			return DebugLevel + Level(i), nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// Header keys
const (
	KeyComponent = "component"
	KeyMethod    = "method"
	KeyID        = "id"
	KeySession   = "session_id"
)

// maxFrameBytes bounds how much of a wire frame ends up in a log entry
const maxFrameBytes = 256

// Field is a key-value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{key, value} }
func Int(key string, value int) Field { return Field{key, value} }
func Int64(key string, value int64) Field { return Field{key, value} }
func Bool(key string, value bool) Field { return Field{key, value} }
func Duration(key string, d time.Duration) Field { return Field{key, d} }
func Time(key string, t time.Time) Field { return Field{key, t} }
func Any(key string, value interface{}) Field { return Field{key, value} }
func ErrorField(err error) Field { return Field{"error", err} }

// Component names the peer or subsystem producing the entry
func Component(name string) Field { return Field{KeyComponent, name} }

// Method names the JSON-RPC method an entry is about
func Method(method string) Field { return Field{KeyMethod, method} }

// RequestID carries the raw JSON-RPC id, e.g. `7` or `"abc"`
func RequestID(id string) Field { return Field{KeyID, id} }

// SessionID names the ACP session an entry is about
func SessionID(id string) Field { return Field{KeySession, id} }

// Frame attaches a wire frame under "frame", cut to a readable length
func Frame(line []byte) Field {
	if len(line) <= maxFrameBytes {
		return Field{"frame", string(line)}
	}
	return Field{"frame", fmt.Sprintf("%s...(+%d bytes)", line[:maxFrameBytes], len(line)-maxFrameBytes)}
}

// Logger is the structured logging interface used across the module
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and exits the process
	Fatal(msg string, fields ...Field)

	// WithFields returns a child logger; the receiver is not modified
	WithFields(fields ...Field) Logger
	// WithContext attaches the request and session ids found in ctx
	WithContext(ctx context.Context) Logger
	// WithError attaches err and, for request errors, their code and origin
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Header is the conversational position of an entry
type Header struct {
	Component string
	Method    string
	ID        string
	Session   string
}

func (h Header) empty() bool {
	return h == Header{}
}

// Entry is a single record handed to a Formatter. Header keys are
// present in both Header and Fields.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Header  Header
	Fields  map[string]interface{}
}

// Formatter renders entries
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// sink is shared by a logger and all of its children
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
	level     Level
}

type baseLogger struct {
	sink   *sink
	fields []Field
}

// New creates a logger writing to output, or to stderr when output is nil.
// A text formatter drops colors unless output is a terminal.
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}
	if tf, ok := formatter.(*TextFormatter); ok && !tf.DisableColors && !isTerminal(output) {
		plain := *tf
		plain.DisableColors = true
		formatter = &plain
	}
	return &baseLogger{sink: &sink{out: output, formatter: formatter, level: InfoLevel}}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	l := New(io.Discard, NewJSONFormatter())
	l.SetLevel(FatalLevel + 1)
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *baseLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields) }
func (l *baseLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *baseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	os.Exit(1)
}

func (l *baseLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &baseLogger{sink: l.sink, fields: merged}
}

func (l *baseLogger) WithContext(ctx context.Context) Logger {
	var fields []Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, RequestID(id))
	}
	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, SessionID(id))
	}
	return l.WithFields(fields...)
}

func (l *baseLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}
	reqErr, ok := acperrors.AsRequestError(err)
	if !ok {
		return l.WithFields(fields...)
	}
	fields = append(fields,
		String("error_code", strconv.Itoa(reqErr.Code())),
		String("error_category", string(reqErr.Category())),
	)
	if ec := reqErr.Context(); ec != nil {
		for _, f := range []Field{
			RequestID(ec.RequestID), SessionID(ec.SessionID),
			Component(ec.Component), Method(ec.Method),
		} {
			if f.Value != "" {
				fields = append(fields, f)
			}
		}
	}
	return l.WithFields(fields...)
}

func (l *baseLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *baseLogger) GetLevel() Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

func (l *baseLogger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}

	entry := &Entry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	// later fields win, so call-site fields override inherited ones
	for _, f := range l.fields {
		entry.Fields[f.Key] = f.Value
	}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}
	str := func(key string) string {
		s, _ := entry.Fields[key].(string)
		return s
	}
	entry.Header = Header{
		Component: str(KeyComponent),
		Method:    str(KeyMethod),
		ID:        str(KeyID),
		Session:   str(KeySession),
	}

	data, err := l.sink.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format: %v\n", err)
		return
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if _, err := l.sink.out.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "logging: write: %v\n", err)
	}
}

type contextKey int

const (
	requestIDKey contextKey = iota
	sessionIDKey
)

// ContextWithRequestID returns a context carrying the id of the request
// being handled
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithSessionID returns a context carrying an ACP session id
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
