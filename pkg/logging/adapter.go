package logging

import (
	"bytes"
	"log"
	"sync"
)

// LineWriter logs every complete line written to it. It is used to forward
// the stderr of an agent subprocess and the error log of net/http servers.
type LineWriter struct {
	mu     sync.Mutex
	logger Logger
	level  Level
	buf    bytes.Buffer
}

// NewLineWriter returns a writer that logs lines at level
func NewLineWriter(logger Logger, level Level, fields ...Field) *LineWriter {
	return &LineWriter{logger: logger.WithFields(fields...), level: level}
}

// Write implements io.Writer
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// partial line stays buffered until its newline arrives
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		w.emit(bytes.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Close flushes a trailing partial line
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
	return nil
}

func (w *LineWriter) emit(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	msg := string(line)
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
}

// NewStdLogger returns a standard library logger backed by logger, for APIs
// such as http.Server.ErrorLog that only accept *log.Logger
func NewStdLogger(logger Logger, level Level) *log.Logger {
	return log.New(NewLineWriter(logger, level), "", 0)
}

var (
	globalMu     sync.RWMutex
	globalLogger = New(nil, nil)
)

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debug logs a debug message to the global logger
func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

// Info logs an info message to the global logger
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs a warning message to the global logger
func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// LogError logs an error message to the global logger
func LogError(msg string, fields ...Field) {
	GetGlobalLogger().Error(msg, fields...)
}

// Fatal logs a fatal message to the global logger and exits
func Fatal(msg string, fields ...Field) {
	GetGlobalLogger().Fatal(msg, fields...)
}
