// Package engine builds a Liquid environment from resolved options: a
// github.com/osteele/liquid engine, a template loader and the template and
// expression caches in front of it.
//
// With autoescape on, string values reaching a template are HTML-escaped
// before rendering, so {{ }} output of render data and globals is safe.
// Literal text and string literals in the template are not escaped.
package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/osteele/liquid"
	"golang.org/x/sync/singleflight"

	"github.com/karloscodes/liquidview/cache"
	"github.com/karloscodes/liquidview/config"
	"github.com/karloscodes/liquidview/loader"
)

// AnonymousPath is the path reported for templates compiled from strings.
const AnonymousPath = "<string>"

// Environment compiles and caches templates. Safe for concurrent use once
// constructed.
type Environment struct {
	opts        config.Options
	engine      *liquid.Engine
	loader      loader.Loader
	templates   *cache.Cache[string, *Template] // nil when caching is off
	expressions *cache.Cache[string, *Template] // nil when expression caching is off
	loads       singleflight.Group
}

// New builds an Environment. The loader must not be nil.
func New(opts config.Options, ld loader.Loader) (*Environment, error) {
	if ld == nil {
		return nil, fmt.Errorf("engine: loader is required")
	}

	eng := liquid.NewEngine()
	eng.Delims(opts.StatementStart, opts.StatementEnd, opts.TagStart, opts.TagEnd)

	if opts.StrictVariables {
		eng.StrictVariables()
	}

	env := &Environment{
		opts:   opts,
		engine: eng,
		loader: ld,
	}

	// partials load through ld, not the file system
	eng.RegisterTag("include", env.partialTag(false))
	eng.RegisterTag("render", env.partialTag(true))

	for name, fn := range opts.Filters {
		if err := checkFilter(name, fn); err != nil {
			return nil, err
		}
		eng.RegisterFilter(name, fn)
	}
	for name, tag := range opts.Tags {
		if tag == nil {
			return nil, &config.ConfigurationError{Key: "tag " + name, Value: tag, Reason: "tag renderer is nil"}
		}
		eng.RegisterTag(name, tag)
	}
	if opts.CacheSize > 0 {
		env.templates = cache.New[string, *Template](opts.CacheSize)
	}
	if opts.ExpressionCacheSize > 0 {
		env.expressions = cache.New[string, *Template](opts.ExpressionCacheSize)
	}
	return env, nil
}

// checkFilter rejects values the liquid engine would panic on.
func checkFilter(name string, fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return &config.ConfigurationError{Key: "filter " + name, Value: fn, Reason: "filter must be a function"}
	}
	if t.NumIn() < 1 || t.NumOut() < 1 || t.NumOut() > 2 {
		return &config.ConfigurationError{Key: "filter " + name, Value: fn, Reason: "filter must take at least one argument and return one or two values"}
	}
	return nil
}

// Options returns the options the environment was built with.
func (e *Environment) Options() config.Options { return e.opts }

// Loader returns the template loader.
func (e *Environment) Loader() loader.Loader { return e.loader }

// GetTemplate returns the compiled template called name. Cached templates are
// reused; with auto reload on, a cached template whose source went stale is
// loaded again.
func (e *Environment) GetTemplate(ctx context.Context, name string) (*Template, error) {
	if e.templates != nil {
		if tpl, ok := e.templates.Get(name); ok {
			if !e.opts.AutoReload || tpl.source.Fresh(ctx) {
				return tpl, nil
			}
		}
	}

	v, err, _ := e.loads.Do(name, func() (any, error) {
		return e.load(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

func (e *Environment) load(ctx context.Context, name string) (*Template, error) {
	src, err := e.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	tpl, err := e.compile(src.Text, src.Path)
	if err != nil {
		return nil, err
	}
	tpl.Name = name
	tpl.source = src

	if e.templates != nil {
		e.templates.Set(name, tpl)
	}
	return tpl, nil
}

// FromString compiles source as an anonymous template. Anonymous templates
// are never cached by name; with an expression cache they are cached by
// their source text.
func (e *Environment) FromString(source string) (*Template, error) {
	if e.expressions != nil {
		if tpl, ok := e.expressions.Get(source); ok {
			return tpl, nil
		}
	}

	tpl, err := e.compile(source, AnonymousPath)
	if err != nil {
		return nil, err
	}
	tpl.source = &loader.Source{Path: AnonymousPath, Text: source}

	if e.expressions != nil {
		e.expressions.Set(source, tpl)
	}
	return tpl, nil
}

func (e *Environment) compile(text, path string) (*Template, error) {
	text, err := stripComments(text, path, e.opts.CommentStart, e.opts.CommentEnd)
	if err != nil {
		return nil, err
	}

	parsed, perr := e.engine.ParseTemplateLocation([]byte(text), path, 1)
	if perr != nil {
		return nil, fmt.Errorf("engine: parse %s: %w", path, perr)
	}

	return &Template{
		Path:       path,
		tpl:        parsed,
		globals:    e.opts.Globals,
		autoescape: e.opts.Autoescape,
	}, nil
}

// ClearCache drops every cached template.
func (e *Environment) ClearCache() {
	if e.templates != nil {
		e.templates.Clear()
	}
	if e.expressions != nil {
		e.expressions.Clear()
	}
}

// CachedTemplates returns the names currently in the template cache, most
// recently used first.
func (e *Environment) CachedTemplates() []string {
	if e.templates == nil {
		return nil
	}
	return e.templates.Keys()
}

// stripComments removes text between start and end markers, keeping the
// newlines so parse errors still point at the right line.
func stripComments(text, path, start, end string) (string, error) {
	if start == "" || end == "" || !strings.Contains(text, start) {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	line := 1
	for {
		i := strings.Index(text, start)
		if i < 0 {
			b.WriteString(text)
			return b.String(), nil
		}
		b.WriteString(text[:i])
		line += strings.Count(text[:i], "\n")

		rest := text[i+len(start):]
		j := strings.Index(rest, end)
		if j < 0 {
			return "", fmt.Errorf("engine: parse %s: line %d: unterminated comment, expected %q", path, line, end)
		}

		newlines := strings.Count(rest[:j], "\n")
		b.WriteString(strings.Repeat("\n", newlines))
		line += newlines
		text = rest[j+len(end):]
	}
}
