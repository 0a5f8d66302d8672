// Package trace defines the trace-sink collaborator the drivers report
// wire activity to. The sink itself (file, ring buffer, operator
// channel) lives outside this module.
package trace

import "sync"

// Kind tags a trace event with the direction and layer it came from.
type Kind int

const (
	CommandWrite Kind = iota
	CommandRead
	BulkWrite
	BulkRead
	ListRead
	Connect
)

func (k Kind) String() string {
	switch k {
	case CommandWrite:
		return "W"
	case CommandRead:
		return "R"
	case BulkWrite:
		return "w"
	case BulkRead:
		return "r"
	case ListRead:
		return "l"
	case Connect:
		return "C"
	default:
		return "?"
	}
}

// Sink receives one event per traced wire operation. Password-bearing
// command lines are redacted by the drivers before they reach the sink.
// Implementations must be cheap; they are called on the transfer path.
type Sink interface {
	Trace(kind Kind, n int, line string)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Trace(Kind, int, string) {}

// Event is one recorded trace entry.
type Event struct {
	Kind Kind
	N    int
	Line string
}

// Recorder is a Sink that keeps every event, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Trace(kind Kind, n int, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, N: n, Line: line})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
