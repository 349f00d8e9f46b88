package subshell

import "github.com/google/uuid"

// EventType names a scope transition.
type EventType string

const (
	EventEnter   EventType = "enter"
	EventJournal EventType = "journal"
	EventRestore EventType = "restore"
	EventExit    EventType = "exit"
	EventFork    EventType = "fork"
)

// Event describes one transition. Node and Mode are set for journal and
// restore events.
type Event struct {
	Type    EventType
	FrameID string
	Depth   int
	Node    string
	Mode    string
}

// Tracer receives scope events as they happen.
type Tracer interface {
	Trace(Event)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(Event)

// Trace implements Tracer.
func (f TracerFunc) Trace(e Event) { f(e) }

type nopTracer struct{}

func (nopTracer) Trace(Event) {}

// IDGenerator produces frame identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable frame IDs.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
