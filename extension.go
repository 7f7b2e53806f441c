package liquidview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/osteele/liquid"
	"github.com/spf13/viper"

	"github.com/karloscodes/liquidview/config"
	"github.com/karloscodes/liquidview/engine"
	"github.com/karloscodes/liquidview/loader"
	"github.com/karloscodes/liquidview/signals"
)

// DefaultViewExtension is appended by Views to template names that have no
// extension.
const DefaultViewExtension = ".liquid"

// ContextProcessor returns extra values for the render context. It runs once
// per render when context processors are enabled; RequestFrom(ctx) returns
// the current request for renders started from a handler.
type ContextProcessor func(ctx context.Context) map[string]any

type processor struct {
	prefix string
	fn     ContextProcessor
}

// Extension holds the explicit options for the Liquid integration and the
// hooks (context processors, notification bus) shared by every application
// it is attached to.
type Extension struct {
	explicit config.Explicit
	loader   loader.Loader
	registry *Registry
	bus      *signals.Bus
	logger   *slog.Logger
	viewExt  string

	mu         sync.RWMutex
	processors []processor

	// most recently attached application, used by Views
	app atomic.Pointer[fiber.App]
}

// Option configures an Extension. Options set explicit arguments; values in
// the settings store passed to Attach take precedence over them.
type Option func(*Extension)

// WithTemplateFolder sets the root of the default file system loader.
func WithTemplateFolder(dir string) Option {
	return func(e *Extension) { e.explicit.TemplateFolder = config.Ptr(dir) }
}

// WithCacheSize sets how many compiled templates are kept. Zero disables the
// cache.
func WithCacheSize(n int) Option {
	return func(e *Extension) { e.explicit.CacheSize = config.Ptr(n) }
}

// WithExpressionCacheSize sets how many string templates are kept, keyed by
// source. Zero disables the cache.
func WithExpressionCacheSize(n int) Option {
	return func(e *Extension) { e.explicit.ExpressionCacheSize = config.Ptr(n) }
}

func WithAutoescape(on bool) Option {
	return func(e *Extension) { e.explicit.Autoescape = config.Ptr(on) }
}

func WithAutoReload(on bool) Option {
	return func(e *Extension) { e.explicit.AutoReload = config.Ptr(on) }
}

func WithContextProcessors(on bool) Option {
	return func(e *Extension) { e.explicit.ContextProcessors = config.Ptr(on) }
}

func WithSignals(on bool) Option {
	return func(e *Extension) { e.explicit.Signals = config.Ptr(on) }
}

func WithStrictVariables(on bool) Option {
	return func(e *Extension) { e.explicit.StrictVariables = config.Ptr(on) }
}

// WithTemplateComments enables comment syntax between start and end.
func WithTemplateComments(start, end string) Option {
	return func(e *Extension) {
		e.explicit.TemplateComments = config.Ptr(true)
		e.explicit.CommentStart = config.Ptr(start)
		e.explicit.CommentEnd = config.Ptr(end)
	}
}

// WithTagDelims sets the {% %} delimiters.
func WithTagDelims(start, end string) Option {
	return func(e *Extension) {
		e.explicit.TagStart = config.Ptr(start)
		e.explicit.TagEnd = config.Ptr(end)
	}
}

// WithStatementDelims sets the {{ }} delimiters.
func WithStatementDelims(start, end string) Option {
	return func(e *Extension) {
		e.explicit.StatementStart = config.Ptr(start)
		e.explicit.StatementEnd = config.Ptr(end)
	}
}

// WithLoader replaces the file system loader built from the template folder.
func WithLoader(l loader.Loader) Option {
	return func(e *Extension) { e.loader = l }
}

// WithFilter registers a Liquid filter. fn must be a function taking the
// filtered value first and returning a value and optionally an error.
func WithFilter(name string, fn any) Option {
	return func(e *Extension) {
		if e.explicit.Filters == nil {
			e.explicit.Filters = make(map[string]any)
		}
		e.explicit.Filters[name] = fn
	}
}

// WithFilters registers several filters at once.
func WithFilters(filters map[string]any) Option {
	return func(e *Extension) {
		for name, fn := range filters {
			WithFilter(name, fn)(e)
		}
	}
}

// WithTag registers a simple Liquid tag.
func WithTag(name string, r liquid.Renderer) Option {
	return func(e *Extension) {
		if e.explicit.Tags == nil {
			e.explicit.Tags = make(map[string]liquid.Renderer)
		}
		e.explicit.Tags[name] = r
	}
}

// WithGlobals adds values visible to every template. Render data shadows them.
func WithGlobals(globals map[string]any) Option {
	return func(e *Extension) {
		if e.explicit.Globals == nil {
			e.explicit.Globals = make(map[string]any, len(globals))
		}
		maps.Copy(e.explicit.Globals, globals)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithRegistry stores handles in r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(e *Extension) { e.registry = r }
}

// WithBus publishes notifications on bus instead of a private one.
func WithBus(bus *signals.Bus) Option {
	return func(e *Extension) { e.bus = bus }
}

// WithViewExtension sets the extension Views appends to bare template names.
func WithViewExtension(ext string) Option {
	return func(e *Extension) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.viewExt = ext
	}
}

// New creates an Extension. Nothing is built until Attach.
func New(opts ...Option) *Extension {
	e := &Extension{viewExt: DefaultViewExtension}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.registry == nil {
		e.registry = DefaultRegistry
	}
	if e.bus == nil {
		e.bus = signals.New(e.logger)
	}
	return e
}

// Signals returns the bus render notifications are published on.
func (e *Extension) Signals() *signals.Bus { return e.bus }

// Registry returns the registry handles are stored in.
func (e *Extension) Registry() *Registry { return e.registry }

// ContextProcessor registers fn for every render. Processors only run when
// LIQUID_CONTEXT_PROCESSORS is on.
func (e *Extension) ContextProcessor(fn ContextProcessor) {
	e.ScopedContextProcessor("", fn)
}

// ScopedContextProcessor registers fn for renders started by requests whose
// path starts with prefix. An empty prefix matches every render.
func (e *Extension) ScopedContextProcessor(prefix string, fn ContextProcessor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processors = append(e.processors, processor{prefix: prefix, fn: fn})
}

// Attach resolves the options against settings, builds the Liquid
// environment and stores it for app, replacing any earlier handle. A nil
// settings store behaves as an empty one.
//
// Attach must complete before app serves requests.
func (e *Extension) Attach(app *fiber.App, settings *viper.Viper) (*Handle, error) {
	if app == nil {
		return nil, errors.New("liquidview: attach: nil application")
	}

	opts, err := config.Resolve(e.explicit, settings)
	if err != nil {
		return nil, fmt.Errorf("liquidview: attach: %w", err)
	}

	ld := e.loader
	if ld == nil {
		ld = loader.NewFileSystemLoader(opts.TemplateFolder)
	}

	env, err := engine.New(opts, ld)
	if err != nil {
		return nil, fmt.Errorf("liquidview: attach: %w", err)
	}

	h := &Handle{
		app:    app,
		opts:   opts,
		env:    env,
		ext:    e,
		bus:    e.bus,
		logger: e.logger,
	}

	replaced := e.registry.Store(app, h)
	if !replaced {
		registry := e.registry
		app.Hooks().OnShutdown(func() error {
			registry.Delete(app)
			return nil
		})
	}
	e.app.Store(app)

	e.logger.Info("liquid environment attached",
		"template_folder", opts.TemplateFolder,
		"cache_size", opts.CacheSize,
		"autoescape", opts.Autoescape,
		"auto_reload", opts.AutoReload,
		"signals", opts.Signals,
		"replaced", replaced,
	)
	return h, nil
}

// processorsFor returns the processors that apply to a render started from
// path. An empty path (no request) only matches unscoped processors.
func (e *Extension) processorsFor(path string) []ContextProcessor {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var fns []ContextProcessor
	for _, p := range e.processors {
		if p.prefix == "" || (path != "" && strings.HasPrefix(path, p.prefix)) {
			fns = append(fns, p.fn)
		}
	}
	return fns
}
