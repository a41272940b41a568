package supervisor

import (
	"time"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// EventType names a lifecycle change
type EventType string

const (
	EventLaunched    EventType = "launched"
	EventMoved       EventType = "moved"
	EventResized     EventType = "resized"
	EventClosed      EventType = "closed"
	EventCrashed     EventType = "crashed"
	EventPermissions EventType = "permissions"
)

// Event is published to subscribers after a lifecycle change
type Event struct {
	Type     EventType            `json:"type"`
	Instance types.WidgetInstance `json:"instance"`
	Reason   string               `json:"reason,omitempty"`
	At       time.Time            `json:"at"`
}

// Subscribe registers fn for lifecycle events. fn runs synchronously on the
// goroutine that made the change and must not block.
func (s *Supervisor) Subscribe(fn func(Event)) {
	s.listenMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenMu.Unlock()
}

func (s *Supervisor) emit(t EventType, inst types.WidgetInstance, reason string) {
	ev := Event{Type: t, Instance: inst, Reason: reason, At: time.Now()}

	s.listenMu.RLock()
	listeners := append([]func(Event){}, s.listeners...)
	s.listenMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
