package liquidview

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/liquidview/config"
	"github.com/karloscodes/liquidview/engine"
	"github.com/karloscodes/liquidview/signals"
)

// Registry maps applications to their attached Handle.
//
// Entries are written by Extension.Attach, read by every render and removed
// by Delete, which Attach arranges to run when the application shuts down.
type Registry struct {
	mu      sync.RWMutex
	handles map[*fiber.App]*Handle
}

// DefaultRegistry is the process-wide registry used by the package-level
// render functions and by extensions created without WithRegistry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[*fiber.App]*Handle)}
}

// Store sets the handle for app, replacing any previous one. Readers see
// either the old handle or the new one.
func (r *Registry) Store(app *fiber.App, h *Handle) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced = r.handles[app]
	r.handles[app] = h
	return replaced
}

// Lookup returns the handle attached to app, or ErrNotAttached.
func (r *Registry) Lookup(app *fiber.App) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[app]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotAttached
	}
	return h, nil
}

// Delete forgets app.
func (r *Registry) Delete(app *fiber.App) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, app)
}

// Len returns the number of attached applications.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Handle is the Liquid environment attached to one application.
// It is immutable once stored; re-attaching builds a new Handle.
type Handle struct {
	app    *fiber.App
	opts   config.Options
	env    *engine.Environment
	ext    *Extension
	bus    *signals.Bus
	logger *slog.Logger
}

// App returns the application the handle is attached to.
func (h *Handle) App() *fiber.App { return h.app }

// Options returns the resolved options the environment was built from.
func (h *Handle) Options() config.Options { return h.opts }

// Environment returns the underlying Liquid environment.
func (h *Handle) Environment() *engine.Environment { return h.env }
