package logging

import "sync"

// ── Sink ───────────────────────────────────────────────────
// Every pipeline component reports through a Sink instead of a
// process-wide logger, which makes components independently
// testable with a MemorySink.

// Severity is the level attached to an emitted event.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Critical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Fields carries structured key/value context for an event.
type Fields map[string]any

// Sink receives severity-leveled events from pipeline components.
type Sink interface {
	Emit(sev Severity, msg string, fields Fields)
}

// ── MemorySink ─────────────────────────────────────────────

// Event is a single recorded emission for test assertions.
type Event struct {
	Severity Severity
	Message  string
	Fields   Fields
}

// MemorySink is a test-friendly Sink that records all emissions.
type MemorySink struct {
	mu     sync.Mutex
	Events []Event
}

func (m *MemorySink) Emit(sev Severity, msg string, fields Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, Event{Severity: sev, Message: msg, Fields: fields})
}

// BySeverity returns the recorded events matching sev.
func (m *MemorySink) BySeverity(sev Severity) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.Events {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}

// Nop is a Sink that drops everything.
type Nop struct{}

func (Nop) Emit(Severity, string, Fields) {}
