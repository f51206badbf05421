package store

import (
	"fmt"
	"time"

	"github.com/hyperalpha/arena/internal/model"
)

// EventLogger is the producer side of the system log pipeline. Services
// push operational events through it; the LogWriter drains them into
// the database where the dashboard log viewer reads them.
type EventLogger struct {
	buf    *Buffer[model.SystemLog]
	source string
}

// NewEventLogger creates an event logger writing into buf.
func NewEventLogger(buf *Buffer[model.SystemLog], source string) *EventLogger {
	return &EventLogger{buf: buf, source: source}
}

// WithSource returns a logger tagged with a different source.
func (e *EventLogger) WithSource(source string) *EventLogger {
	return &EventLogger{buf: e.buf, source: source}
}

func (e *EventLogger) emit(level, message, detail string) {
	if e == nil || e.buf == nil {
		return
	}
	e.buf.Send(model.SystemLog{
		Level:     level,
		Source:    e.source,
		Message:   message,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
}

// Info records an informational event.
func (e *EventLogger) Info(message string, args ...any) {
	e.emit("info", fmt.Sprintf(message, args...), "")
}

// Warn records a warning event.
func (e *EventLogger) Warn(message string, args ...any) {
	e.emit("warn", fmt.Sprintf(message, args...), "")
}

// Error records an error event with the error text as detail.
func (e *EventLogger) Error(message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	e.emit("error", message, detail)
}
