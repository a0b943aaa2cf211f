package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TextFormatter renders one line per entry:
//
//	2024-05-01 10:00:00.000 [INFO] agent session/prompt #3 (sess_1): message | k=v
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "2006-01-02 15:04:05.000"}
}

var levelColors = map[Level]string{
	DebugLevel: "\033[90m",
	InfoLevel:  "\033[34m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
	FatalLevel: "\033[31m",
}

func (f *TextFormatter) Format(e *Entry) ([]byte, error) {
	var b bytes.Buffer
	if !f.DisableTimestamp {
		b.WriteString(e.Time.Format(f.TimestampFormat))
		b.WriteByte(' ')
	}

	level := "[" + e.Level.String() + "]"
	if color, ok := levelColors[e.Level]; ok && !f.DisableColors {
		level = color + level + "\033[0m"
	}
	b.WriteString(level)
	b.WriteByte(' ')

	if !e.Header.empty() {
		writeHeader(&b, e.Header)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	if rest := textFields(e); len(rest) > 0 {
		b.WriteString(" | ")
		b.WriteString(strings.Join(rest, " "))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeHeader(b *bytes.Buffer, h Header) {
	var parts []string
	if h.Component != "" {
		parts = append(parts, h.Component)
	}
	if h.Method != "" {
		parts = append(parts, h.Method)
	}
	if h.ID != "" {
		parts = append(parts, "#"+h.ID)
	}
	if h.Session != "" {
		parts = append(parts, "("+h.Session+")")
	}
	b.WriteString(strings.Join(parts, " "))
}

// textFields returns the sorted key=value pairs that are not header keys
func textFields(e *Entry) []string {
	pairs := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		switch k {
		case KeyComponent, KeyMethod, KeyID, KeySession:
			if _, ok := v.(string); ok {
				continue
			}
		}
		pairs = append(pairs, k+"="+textValue(v))
	}
	sort.Strings(pairs)
	return pairs
}

func textValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	case error:
		s = val.Error()
	case time.Duration:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// JSONFormatter renders one JSON object per line. Header keys appear as
// ordinary members.
type JSONFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

func (f *JSONFormatter) Format(e *Entry) ([]byte, error) {
	obj := make(map[string]interface{}, len(e.Fields)+3)
	for k, v := range e.Fields {
		switch val := v.(type) {
		case error:
			obj[k] = val.Error()
		case []byte:
			obj[k] = string(val)
		case time.Duration:
			obj[k] = val.String()
		default:
			obj[k] = v
		}
	}
	obj["level"] = e.Level.String()
	obj["message"] = e.Message
	if !f.DisableTimestamp {
		obj["timestamp"] = e.Time.Format(f.TimestampFormat)
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode log entry: %w", err)
	}
	return append(out, '\n'), nil
}

// NewFormatter returns the formatter named by a log.format setting
func NewFormatter(name string) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return NewTextFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	}
	return nil, fmt.Errorf("unknown log format %q", name)
}
