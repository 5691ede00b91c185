package observability

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

type Logger struct {
	base *log.Logger
	now  func() time.Time
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout)
}

func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{base: log.New(w, "", 0), now: time.Now}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write("info", message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write("warn", message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		payload[k] = v
	}
	payload["timestamp"] = l.now().UTC().Format(time.RFC3339Nano)
	payload["level"] = level
	payload["message"] = message

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","message":"failed to encode log"}`)
		return
	}

	l.base.Println(string(encoded))
}

type loggerKey struct{}

var fallbackLogger = NewLogger()

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the request logger, or a stdout logger when none was attached.
func LoggerFrom(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return fallbackLogger
}
