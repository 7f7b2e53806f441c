package testsupport

import (
	"sync"

	"github.com/karloscodes/liquidview/signals"
)

// Recorder collects render notifications published on a bus.
type Recorder struct {
	mu     sync.Mutex
	events []signals.Event
}

// NewRecorder subscribes a Recorder to both render events on bus.
// The subscriptions are dropped when the test ends.
func NewRecorder(t interface{ Cleanup(func()) }, bus *signals.Bus) *Recorder {
	r := &Recorder{}
	for _, name := range []string{signals.BeforeRenderTemplate, signals.TemplateRendered} {
		unsubscribe := bus.Subscribe(name, r.record)
		t.Cleanup(unsubscribe)
	}
	return r
}

func (r *Recorder) record(ev signals.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events in delivery order.
func (r *Recorder) Events() []signals.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signals.Event(nil), r.events...)
}

// Names returns the recorded event names in delivery order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
