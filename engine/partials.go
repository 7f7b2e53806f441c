package engine

import (
	"context"
	"maps"
	"strings"

	"github.com/osteele/liquid"
	"github.com/osteele/liquid/render"
)

// includeDepthKey counts nested partials in the render bindings. Liquid
// variable names cannot contain spaces, so templates never see it.
const includeDepthKey = "liquidview include depth"

// maxIncludeDepth stops self-including partials.
const maxIncludeDepth = 32

// partialTag renders another template from the loader:
//
//	{% include "header" %}
//	{% include "card", title: post.title %}
//	{% render "card", title: post.title %}
//
// include sees the caller's variables; render (isolated) sees only globals
// and its arguments.
func (e *Environment) partialTag(isolated bool) liquid.Renderer {
	return func(ctx render.Context) (string, error) {
		args := splitArgs(ctx.TagArgs())
		if len(args) == 0 {
			return "", ctx.Errorf("%s requires a template name", ctx.TagName())
		}

		value, err := ctx.EvaluateString(args[0])
		if err != nil {
			return "", err
		}
		name, ok := value.(string)
		if !ok || name == "" {
			return "", ctx.Errorf("%s requires a template name; got %v", ctx.TagName(), value)
		}

		depth, _ := ctx.Get(includeDepthKey).(int)
		if depth >= maxIncludeDepth {
			return "", ctx.Errorf("%s %q: partials nested deeper than %d", ctx.TagName(), name, maxIncludeDepth)
		}

		var bindings map[string]any
		if isolated {
			bindings = e.globalBindings()
		} else {
			bindings = maps.Clone(ctx.Bindings())
		}
		for _, arg := range args[1:] {
			key, expr, ok := strings.Cut(arg, ":")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return "", ctx.Errorf("%s %q: invalid argument %q, want key: value", ctx.TagName(), name, arg)
			}
			v, err := ctx.EvaluateString(strings.TrimSpace(expr))
			if err != nil {
				return "", err
			}
			bindings[key] = v
		}
		bindings[includeDepthKey] = depth + 1

		tpl, err := e.GetTemplate(context.Background(), name)
		if err != nil {
			return "", err
		}
		out, err := tpl.tpl.Render(bindings)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// globalBindings returns a fresh copy of the globals, escaped when
// autoescape is on.
func (e *Environment) globalBindings() map[string]any {
	b := make(map[string]any, len(e.opts.Globals)+1)
	maps.Copy(b, e.opts.Globals)
	if e.opts.Autoescape {
		escapeBindings(b)
	}
	return b
}

// splitArgs splits tag arguments on commas outside quoted strings.
func splitArgs(s string) []string {
	var (
		args  []string
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ',':
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(args) > 0 {
		args = append(args, last)
	}
	return args
}
