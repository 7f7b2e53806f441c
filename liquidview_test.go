package liquidview_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/osteele/liquid/render"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/liquidview"
	"github.com/karloscodes/liquidview/config"
	"github.com/karloscodes/liquidview/loader"
	"github.com/karloscodes/liquidview/signals"
	"github.com/karloscodes/liquidview/testsupport"
)

// attach builds an extension over an in-memory loader with its own registry
// and attaches it to a new app.
func attach(t *testing.T, templates map[string]string, settings map[string]any, opts ...liquidview.Option) (*fiber.App, *liquidview.Extension, *liquidview.Handle) {
	t.Helper()

	base := []liquidview.Option{
		liquidview.WithLoader(loader.NewMapLoader(templates)),
		liquidview.WithRegistry(liquidview.NewRegistry()),
		liquidview.WithLogger(testsupport.NewTestLogger()),
	}
	ext := liquidview.New(append(base, opts...)...)

	store := viper.New()
	for k, v := range settings {
		store.Set(k, v)
	}

	app := fiber.New()
	h, err := ext.Attach(app, store)
	require.NoError(t, err)
	return app, ext, h
}

func TestRender_HelloWorld(t *testing.T) {
	app, ext, _ := attach(t, map[string]string{"hello": "Hello, {{ name }}!"}, nil)

	out, err := ext.Registry().Render(context.Background(), app, "hello", map[string]any{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", out)
}

func TestRenderString(t *testing.T) {
	app, ext, _ := attach(t, nil, nil)

	out, err := ext.Registry().RenderString(context.Background(), app, "{{ 1 | plus: 2 }}", nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestRender_NotAttached(t *testing.T) {
	app := fiber.New()
	ctx := context.Background()

	_, err := liquidview.Render(ctx, app, "hello", nil)
	assert.ErrorIs(t, err, liquidview.ErrNotAttached)

	_, err = liquidview.RenderString(ctx, app, "x", nil)
	assert.ErrorIs(t, err, liquidview.ErrNotAttached)

	_, err = liquidview.RenderAsync(liquidview.WithScheduler(ctx, liquidview.NewScheduler(1)), app, "hello", nil)
	assert.ErrorIs(t, err, liquidview.ErrNotAttached)
}

func TestRender_TemplateNotFound(t *testing.T) {
	_, _, h := attach(t, nil, nil)

	_, err := h.Render(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, liquidview.ErrTemplateNotFound)

	var nf *liquidview.TemplateNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
}

func TestRender_Autoescape(t *testing.T) {
	templates := map[string]string{"t": "{{ html }}"}
	data := map[string]any{"html": "<b>x</b>"}

	t.Run("enabled by default", func(t *testing.T) {
		_, _, h := attach(t, templates, nil)
		out, err := h.Render(context.Background(), "t", data)
		require.NoError(t, err)
		assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", out)
	})

	t.Run("disabled in settings", func(t *testing.T) {
		_, _, h := attach(t, templates, map[string]any{config.KeyAutoescape: false})
		out, err := h.Render(context.Background(), "t", data)
		require.NoError(t, err)
		assert.Equal(t, "<b>x</b>", out)
	})
}

func TestAttach_SettingsOverrideExplicit(t *testing.T) {
	_, _, h := attach(t, nil,
		map[string]any{config.KeyCacheSize: 0, config.KeyAutoReload: false},
		liquidview.WithCacheSize(50),
		liquidview.WithAutoReload(true),
		liquidview.WithExpressionCacheSize(7),
	)

	opts := h.Options()
	assert.Equal(t, 0, opts.CacheSize)
	assert.False(t, opts.AutoReload)
	assert.Equal(t, 7, opts.ExpressionCacheSize, "explicit value used when the store is silent")
	assert.True(t, opts.Autoescape, "default used when nothing is set")
}

func TestAttach_ConfigurationError(t *testing.T) {
	ext := liquidview.New(
		liquidview.WithLoader(loader.NewMapLoader(nil)),
		liquidview.WithRegistry(liquidview.NewRegistry()),
		liquidview.WithLogger(testsupport.NewTestLogger()),
	)
	store := viper.New()
	store.Set(config.KeyCacheSize, "lots")
	app := fiber.New()

	_, err := ext.Attach(app, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, liquidview.ErrConfiguration)

	var cfgErr *liquidview.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.KeyCacheSize, cfgErr.Key)

	_, err = ext.Registry().Lookup(app)
	assert.ErrorIs(t, err, liquidview.ErrNotAttached, "failed attach stores nothing")
}

func TestAttach_NilApp(t *testing.T) {
	ext := liquidview.New(liquidview.WithRegistry(liquidview.NewRegistry()))
	_, err := ext.Attach(nil, nil)
	assert.Error(t, err)
}

func TestAttach_ReplacesHandle(t *testing.T) {
	registry := liquidview.NewRegistry()
	ld := loader.NewMapLoader(map[string]string{"t": "{{ html }}"})
	ext := liquidview.New(
		liquidview.WithLoader(ld),
		liquidview.WithRegistry(registry),
		liquidview.WithLogger(testsupport.NewTestLogger()),
	)
	app := fiber.New()
	ctx := context.Background()
	data := map[string]any{"html": "<i>"}

	first, err := ext.Attach(app, nil)
	require.NoError(t, err)
	out, err := registry.Render(ctx, app, "t", data)
	require.NoError(t, err)
	assert.Equal(t, "&lt;i&gt;", out)

	store := viper.New()
	store.Set(config.KeyAutoescape, false)
	store.Set(config.KeyCacheSize, 0)
	second, err := ext.Attach(app, store)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, registry.Len())

	current, err := registry.Lookup(app)
	require.NoError(t, err)
	assert.Same(t, second, current)
	assert.False(t, current.Options().Autoescape)
	assert.Equal(t, 0, current.Options().CacheSize)

	out, err = registry.Render(ctx, app, "t", data)
	require.NoError(t, err)
	assert.Equal(t, "<i>", out)
}

func TestAttach_ShutdownDetaches(t *testing.T) {
	_, ext, h := attach(t, nil, nil)
	app := h.App()
	require.Equal(t, 1, ext.Registry().Len())

	_ = app.Shutdown()

	_, err := ext.Registry().Lookup(app)
	assert.ErrorIs(t, err, liquidview.ErrNotAttached)
}

func TestNotifications(t *testing.T) {
	templates := map[string]string{"page": "Hi {{ name }}"}

	t.Run("before then after for each render", func(t *testing.T) {
		_, ext, h := attach(t, templates, nil)
		rec := testsupport.NewRecorder(t, ext.Signals())

		out, err := h.Render(context.Background(), "page", map[string]any{"name": "Ada"})
		require.NoError(t, err)

		assert.Equal(t, []string{signals.BeforeRenderTemplate, signals.TemplateRendered}, rec.Names())
		events := rec.Events()
		assert.Equal(t, "page", events[0].Template)
		assert.Equal(t, "Ada", events[0].Context["name"])
		assert.Empty(t, events[0].Output)
		assert.Equal(t, out, events[1].Output)
		assert.Same(t, h.App(), events[1].Sender)
	})

	t.Run("string templates report the anonymous path", func(t *testing.T) {
		_, ext, h := attach(t, nil, nil)
		rec := testsupport.NewRecorder(t, ext.Signals())

		_, err := h.RenderString(context.Background(), "x", nil)
		require.NoError(t, err)

		events := rec.Events()
		require.Len(t, events, 2)
		assert.Equal(t, "<string>", events[1].Template)
	})

	t.Run("disabled", func(t *testing.T) {
		_, ext, h := attach(t, templates, map[string]any{config.KeySignals: false})
		rec := testsupport.NewRecorder(t, ext.Signals())

		_, err := h.Render(context.Background(), "page", nil)
		require.NoError(t, err)
		assert.Empty(t, rec.Events())
	})

	t.Run("not emitted for missing templates", func(t *testing.T) {
		_, ext, h := attach(t, templates, nil)
		rec := testsupport.NewRecorder(t, ext.Signals())

		_, err := h.Render(context.Background(), "nope", nil)
		require.Error(t, err)
		assert.Empty(t, rec.Events())
	})

	t.Run("observer failures do not fail the render", func(t *testing.T) {
		_, ext, h := attach(t, templates, nil)
		ext.Signals().Subscribe(signals.BeforeRenderTemplate, func(signals.Event) error {
			return errors.New("listener broke")
		})
		ext.Signals().Subscribe(signals.TemplateRendered, func(signals.Event) error {
			panic("listener panicked")
		})

		out, err := h.Render(context.Background(), "page", map[string]any{"name": "Ada"})
		require.NoError(t, err)
		assert.Equal(t, "Hi Ada", out)
	})
}

func TestGlobals(t *testing.T) {
	_, _, h := attach(t, map[string]string{"t": "{{ site }}:{{ title }}"}, nil,
		liquidview.WithGlobals(map[string]any{"site": "Blog", "title": "Home"}))

	out, err := h.Render(context.Background(), "t", map[string]any{"title": "Post"})
	require.NoError(t, err)
	assert.Equal(t, "Blog:Post", out)
}

func TestFiltersAndTags(t *testing.T) {
	_, _, h := attach(t, nil, nil,
		liquidview.WithFilter("twice", func(s string) string { return s + s }),
		liquidview.WithTag("greeting", func(render.Context) (string, error) { return "hello", nil }),
	)

	out, err := h.RenderString(context.Background(), "{{ 'ab' | twice }} {% greeting %}", nil)
	require.NoError(t, err)
	assert.Equal(t, "abab hello", out)
}

func TestContextProcessors(t *testing.T) {
	templates := map[string]string{"t": "{{ user }}/{{ theme }}"}
	processor := func(context.Context) map[string]any {
		return map[string]any{"user": "processor", "theme": "dark"}
	}

	t.Run("ignored unless enabled", func(t *testing.T) {
		_, ext, h := attach(t, templates, nil)
		ext.ContextProcessor(processor)

		out, err := h.Render(context.Background(), "t", nil)
		require.NoError(t, err)
		assert.Equal(t, "/", out)
	})

	t.Run("caller data wins", func(t *testing.T) {
		_, ext, h := attach(t, templates, map[string]any{config.KeyContextProcessors: true})
		ext.ContextProcessor(processor)

		out, err := h.Render(context.Background(), "t", map[string]any{"user": "caller"})
		require.NoError(t, err)
		assert.Equal(t, "caller/dark", out)
	})

	t.Run("processors override globals", func(t *testing.T) {
		_, ext, h := attach(t, templates, nil,
			liquidview.WithContextProcessors(true),
			liquidview.WithGlobals(map[string]any{"theme": "light"}),
		)
		ext.ContextProcessor(processor)

		out, err := h.Render(context.Background(), "t", nil)
		require.NoError(t, err)
		assert.Equal(t, "processor/dark", out)
	})
}

func TestRegistry(t *testing.T) {
	r := liquidview.NewRegistry()
	app := fiber.New()

	_, err := r.Lookup(app)
	assert.ErrorIs(t, err, liquidview.ErrNotAttached)

	h := &liquidview.Handle{}
	assert.False(t, r.Store(app, h))
	assert.True(t, r.Store(app, h))
	assert.Equal(t, 1, r.Len())

	got, err := r.Lookup(app)
	require.NoError(t, err)
	assert.Same(t, h, got)

	r.Delete(app)
	assert.Equal(t, 0, r.Len())
}

func TestRender_PartialsUseConfiguredLoader(t *testing.T) {
	_, _, h := attach(t, map[string]string{
		"page":   "<nav>{% include 'nav' %}</nav>{% render 'footer', year: year %}",
		"nav":    "{{ user }}",
		"footer": "{{ user }}{{ year }}",
	}, nil)

	out, err := h.Render(context.Background(), "page", map[string]any{"user": "<ann>", "year": 2026})
	require.NoError(t, err)
	assert.Equal(t, "<nav>&lt;ann&gt;</nav>2026", out)
}
