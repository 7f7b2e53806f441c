package liquidview

import (
	"context"
	"maps"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/liquidview/engine"
	"github.com/karloscodes/liquidview/signals"
)

// TemplateLocal is the fiber.Ctx local the Fiber helpers set to the identity
// of the template they rendered.
const TemplateLocal = "liquidview.template"

type requestKey struct{}

// WithRequest returns a context carrying the current request so context
// processors can read it. c is only valid until the handler returns.
func WithRequest(ctx context.Context, c *fiber.Ctx) context.Context {
	return context.WithValue(ctx, requestKey{}, c)
}

// RequestFrom returns the request stored by WithRequest, or nil.
func RequestFrom(ctx context.Context) *fiber.Ctx {
	c, _ := ctx.Value(requestKey{}).(*fiber.Ctx)
	return c
}

// Render renders the template called name with data.
func (h *Handle) Render(ctx context.Context, name string, data map[string]any) (string, error) {
	tpl, err := h.env.GetTemplate(ctx, name)
	if err != nil {
		return "", err
	}
	return h.execute(tpl, h.contextFor(ctx, data))
}

// RenderString compiles source as an anonymous template and renders it.
func (h *Handle) RenderString(ctx context.Context, source string, data map[string]any) (string, error) {
	tpl, err := h.env.FromString(source)
	if err != nil {
		return "", err
	}
	return h.execute(tpl, h.contextFor(ctx, data))
}

// RenderAsync is Render on the Scheduler carried by ctx. Context processors
// run before it returns; loading and executing the template happen on the
// scheduler.
func (h *Handle) RenderAsync(ctx context.Context, name string, data map[string]any) (*Future, error) {
	s, ok := SchedulerFrom(ctx)
	if !ok {
		return nil, ErrUnsupportedMode
	}
	merged := h.contextFor(ctx, data)
	return s.Go(ctx, func(ctx context.Context) (string, error) {
		tpl, err := h.env.GetTemplate(ctx, name)
		if err != nil {
			return "", err
		}
		return h.execute(tpl, merged)
	}), nil
}

// RenderStringAsync is RenderString on the Scheduler carried by ctx.
func (h *Handle) RenderStringAsync(ctx context.Context, source string, data map[string]any) (*Future, error) {
	s, ok := SchedulerFrom(ctx)
	if !ok {
		return nil, ErrUnsupportedMode
	}
	merged := h.contextFor(ctx, data)
	return s.Go(ctx, func(context.Context) (string, error) {
		tpl, err := h.env.FromString(source)
		if err != nil {
			return "", err
		}
		return h.execute(tpl, merged)
	}), nil
}

// contextFor builds the render context: processor values first, then data.
// Environment globals sit below both and are applied by the template.
func (h *Handle) contextFor(ctx context.Context, data map[string]any) map[string]any {
	merged := make(map[string]any, len(data))
	if h.opts.ContextProcessors {
		path := ""
		if c := RequestFrom(ctx); c != nil {
			path = c.Path()
		}
		for _, fn := range h.ext.processorsFor(path) {
			maps.Copy(merged, fn(ctx))
		}
	}
	maps.Copy(merged, data)
	return merged
}

func (h *Handle) execute(tpl *engine.Template, data map[string]any) (string, error) {
	if h.opts.Signals {
		h.bus.Publish(signals.Event{
			Name:     signals.BeforeRenderTemplate,
			Sender:   h.app,
			Template: tpl.Identity(),
			Context:  data,
		})
	}

	start := time.Now()
	out, err := tpl.Render(data)
	if err != nil {
		h.logger.Debug("template render failed", "template", tpl.Identity(), "error", err)
		return "", err
	}
	elapsed := time.Since(start)
	h.logger.Debug("template rendered", "template", tpl.Identity(), "duration", elapsed)

	if h.opts.Signals {
		h.bus.Publish(signals.Event{
			Name:     signals.TemplateRendered,
			Sender:   h.app,
			Template: tpl.Identity(),
			Context:  data,
			Output:   out,
			Duration: elapsed,
		})
	}
	return out, nil
}

// Render renders name for app.
func (r *Registry) Render(ctx context.Context, app *fiber.App, name string, data map[string]any) (string, error) {
	h, err := r.Lookup(app)
	if err != nil {
		return "", err
	}
	return h.Render(ctx, name, data)
}

// RenderString renders source for app.
func (r *Registry) RenderString(ctx context.Context, app *fiber.App, source string, data map[string]any) (string, error) {
	h, err := r.Lookup(app)
	if err != nil {
		return "", err
	}
	return h.RenderString(ctx, source, data)
}

// RenderAsync starts rendering name for app on the Scheduler in ctx.
func (r *Registry) RenderAsync(ctx context.Context, app *fiber.App, name string, data map[string]any) (*Future, error) {
	h, err := r.Lookup(app)
	if err != nil {
		return nil, err
	}
	return h.RenderAsync(ctx, name, data)
}

// RenderStringAsync starts rendering source for app on the Scheduler in ctx.
func (r *Registry) RenderStringAsync(ctx context.Context, app *fiber.App, source string, data map[string]any) (*Future, error) {
	h, err := r.Lookup(app)
	if err != nil {
		return nil, err
	}
	return h.RenderStringAsync(ctx, source, data)
}

// Render renders name for app using DefaultRegistry.
func Render(ctx context.Context, app *fiber.App, name string, data map[string]any) (string, error) {
	return DefaultRegistry.Render(ctx, app, name, data)
}

// RenderString renders source for app using DefaultRegistry.
func RenderString(ctx context.Context, app *fiber.App, source string, data map[string]any) (string, error) {
	return DefaultRegistry.RenderString(ctx, app, source, data)
}

// RenderAsync starts rendering name for app using DefaultRegistry.
func RenderAsync(ctx context.Context, app *fiber.App, name string, data map[string]any) (*Future, error) {
	return DefaultRegistry.RenderAsync(ctx, app, name, data)
}

// RenderStringAsync starts rendering source for app using DefaultRegistry.
func RenderStringAsync(ctx context.Context, app *fiber.App, source string, data map[string]any) (*Future, error) {
	return DefaultRegistry.RenderStringAsync(ctx, app, source, data)
}

// RenderTemplate renders name for the application serving c and sends it as
// the HTML response. Handles are looked up in DefaultRegistry.
func RenderTemplate(c *fiber.Ctx, name string, data map[string]any) error {
	out, err := DefaultRegistry.Render(requestContext(c), c.App(), name, data)
	if err != nil {
		return err
	}
	c.Locals(TemplateLocal, name)
	return sendHTML(c, out)
}

// RenderTemplateString is RenderTemplate for a template source string.
func RenderTemplateString(c *fiber.Ctx, source string, data map[string]any) error {
	out, err := DefaultRegistry.RenderString(requestContext(c), c.App(), source, data)
	if err != nil {
		return err
	}
	c.Locals(TemplateLocal, engine.AnonymousPath)
	return sendHTML(c, out)
}

// RenderTemplateAsync starts rendering name on the Scheduler installed in
// c.UserContext(). Use Future.Send to write the response.
func RenderTemplateAsync(c *fiber.Ctx, name string, data map[string]any) (*Future, error) {
	f, err := DefaultRegistry.RenderAsync(requestContext(c), c.App(), name, data)
	if err != nil {
		return nil, err
	}
	c.Locals(TemplateLocal, name)
	return f, nil
}

// RenderTemplateStringAsync starts rendering source on the Scheduler
// installed in c.UserContext().
func RenderTemplateStringAsync(c *fiber.Ctx, source string, data map[string]any) (*Future, error) {
	f, err := DefaultRegistry.RenderStringAsync(requestContext(c), c.App(), source, data)
	if err != nil {
		return nil, err
	}
	c.Locals(TemplateLocal, engine.AnonymousPath)
	return f, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	return WithRequest(c.UserContext(), c)
}

func sendHTML(c *fiber.Ctx, out string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(out)
}
