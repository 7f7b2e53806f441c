// Package signals is a small observer list for render lifecycle events.
//
// A Bus keeps observers per event name and calls them in subscription order.
// A failing or panicking observer is logged and skipped; the publisher only
// ever sees the collected errors.
package signals

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event names published around every render.
const (
	BeforeRenderTemplate = "before_render_template"
	TemplateRendered     = "template_rendered"
)

// Event is the payload delivered to observers.
type Event struct {
	Name string

	// Sender is the application the render ran for.
	Sender any

	// Template is the template identity: its name, or the anonymous path for
	// templates compiled from strings.
	Template string

	// Context is the merged render context. Observers must not modify it.
	Context map[string]any

	// Output and Duration are only set on TemplateRendered.
	Output   string
	Duration time.Duration
}

// Observer handles an event. A returned error is logged by the bus.
type Observer func(Event) error

type subscription struct {
	id uint64
	fn Observer
}

// Bus is a set of observer lists keyed by event name. The zero value is not
// usable; create one with New.
type Bus struct {
	mu        sync.RWMutex
	observers map[string][]subscription
	nextID    uint64
	logger    *slog.Logger
}

// New creates a Bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		observers: make(map[string][]subscription),
		logger:    logger,
	}
}

// Subscribe registers fn for event and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(event string, fn Observer) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.observers[event] = append(b.observers[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.observers[event]
	for i, s := range subs {
		if s.id == id {
			// copy so in-flight Publish calls keep their snapshot intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.observers, event)
			} else {
				b.observers[event] = next
			}
			return
		}
	}
}

// Observers returns how many observers are subscribed to event.
func (b *Bus) Observers(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers[event])
}

// Publish delivers ev to every observer of ev.Name and returns the errors
// they produced, panics included. Observers subscribed during delivery are
// not called for this event.
func (b *Bus) Publish(ev Event) []error {
	b.mu.RLock()
	subs := b.observers[ev.Name]
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := b.deliver(s.fn, ev); err != nil {
			b.logger.Warn("signal observer failed",
				"event", ev.Name,
				"template", ev.Template,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *Bus) deliver(fn Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signals: observer panic: %v", r)
		}
	}()
	return fn(ev)
}
