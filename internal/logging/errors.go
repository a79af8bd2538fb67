package logging

import (
	"sync"
	"time"

	"github.com/cs2interlink/cs2-int/internal/events"
)

// ErrorLevel is the user-facing severity of a reported error.
type ErrorLevel int

const (
	// LevelHigh errors interrupt the user (modal in the TUI).
	LevelHigh ErrorLevel = iota
	// LevelMedium errors are highlighted but do not interrupt.
	LevelMedium
	// LevelLow errors are only logged.
	LevelLow
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelHigh:
		return "High"
	case LevelMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// ErrorReporter receives errors along with their severity.
type ErrorReporter interface {
	ShowError(level ErrorLevel, errs ...error)
}

// ErrorEntry is one reported error.
type ErrorEntry struct {
	Time    time.Time
	Level   ErrorLevel
	Message string
}

type errorHistory struct {
	mu      sync.Mutex
	entries []ErrorEntry
	max     int
}

func newErrorHistory(max int) *errorHistory {
	return &errorHistory{max: max}
}

func (h *errorHistory) add(e ErrorEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

func (h *errorHistory) list() []ErrorEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ErrorEntry, len(h.entries))
	// newest first
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

// ShowError logs errs at a level matching their severity, records them in the
// error history and publishes an ErrorEvent for each one.
func (l *Logger) ShowError(level ErrorLevel, errs ...error) {
	l.mu.RLock()
	bus := l.eventBus
	l.mu.RUnlock()

	for _, err := range errs {
		if err == nil {
			continue
		}

		if level == LevelLow {
			l.Warn().Str("severity", level.String()).Msg(err.Error())
		} else {
			l.Error().Str("severity", level.String()).Msg(err.Error())
		}

		now := time.Now()
		l.history.add(ErrorEntry{Time: now, Level: level, Message: err.Error()})

		if bus != nil {
			bus.Publish(&events.ErrorEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventError, Time: now},
				Level:     level.String(),
				Error:     err,
			})
		}
	}
}

// Errors returns the reported errors, newest first.
func (l *Logger) Errors() []ErrorEntry {
	return l.history.list()
}
