package observability

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/rand/goalsolver/internal/solver"
)

// EventLevel is the severity attached to a solver event.
type EventLevel int

const (
	LevelDebug EventLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l EventLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LevelOf returns the severity of an event type.
func LevelOf(t solver.EventType) EventLevel {
	switch t {
	case solver.EventResolved:
		return LevelInfo
	case solver.EventAttemptFailed:
		return LevelWarn
	case solver.EventUnresolved:
		return LevelError
	default:
		return LevelDebug
	}
}

// Record is the serialised form of a solver event.
type Record struct {
	solver.Event
	Level string `json:"level"`
	Error string `json:"error,omitempty"`
}

// EventLog writes solver events as JSON lines and keeps the most recent
// ones in memory. It implements solver.Observer.
type EventLog struct {
	mu        sync.Mutex
	writer    io.Writer
	level     EventLevel
	buffer    []Record
	maxBuffer int
	dropped   int
}

// EventLogOption configures an EventLog.
type EventLogOption func(*EventLog)

// WithWriter sets the output writer. Nil disables output.
func WithWriter(w io.Writer) EventLogOption {
	return func(l *EventLog) {
		l.writer = w
	}
}

// WithLevel sets the minimum level that is recorded.
func WithLevel(level EventLevel) EventLogOption {
	return func(l *EventLog) {
		l.level = level
	}
}

// WithBuffer keeps up to size recent records in memory.
func WithBuffer(size int) EventLogOption {
	return func(l *EventLog) {
		l.maxBuffer = size
		l.buffer = make([]Record, 0, size)
	}
}

// NewEventLog creates an event log. Without options it records nothing
// below LevelInfo and writes nowhere.
func NewEventLog(opts ...EventLogOption) *EventLog {
	l := &EventLog{level: LevelInfo}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Observe implements solver.Observer.
func (l *EventLog) Observe(e solver.Event) {
	level := LevelOf(e.Type)
	if level < l.level {
		return
	}

	rec := Record{Event: e, Level: level.String()}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buffer != nil {
		l.buffer = append(l.buffer, rec)
		if over := len(l.buffer) - l.maxBuffer; over > 0 {
			l.dropped += over
			l.buffer = l.buffer[over:]
		}
	}

	if l.writer != nil {
		data, err := json.Marshal(rec)
		if err == nil {
			data = append(data, '\n')
			_, _ = l.writer.Write(data)
		}
	}
}

// Recent returns up to n buffered records, oldest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buffer == nil {
		return nil
	}
	if n <= 0 || n > len(l.buffer) {
		n = len(l.buffer)
	}

	out := make([]Record, n)
	copy(out, l.buffer[len(l.buffer)-n:])
	return out
}

// Dropped returns how many records have been evicted from the buffer.
func (l *EventLog) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Fanout forwards each event to every non-nil observer in order.
type Fanout []solver.Observer

// Observe implements solver.Observer.
func (f Fanout) Observe(e solver.Event) {
	for _, o := range f {
		if o != nil {
			o.Observe(e)
		}
	}
}
