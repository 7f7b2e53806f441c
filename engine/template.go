package engine

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/karloscodes/liquidview/loader"
)

// Template is a compiled Liquid template.
type Template struct {
	// Name is the name the template was loaded by; empty for templates
	// compiled from strings.
	Name string

	// Path is where the source came from, or AnonymousPath.
	Path string

	source     *loader.Source
	tpl        *liquid.Template
	globals    map[string]any
	autoescape bool
}

// Identity names the template for logs and notifications.
func (t *Template) Identity() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Path
}

// Anonymous reports whether the template was compiled from a string.
func (t *Template) Anonymous() bool { return t.Name == "" }

// Source returns the text the template was compiled from.
func (t *Template) Source() string {
	if t.source == nil {
		return ""
	}
	return t.source.Text
}

// Render executes the template. Environment globals are visible unless data
// shadows them. With autoescape on, every string in globals and data is
// HTML-escaped first.
func (t *Template) Render(data map[string]any) (string, error) {
	bindings := make(liquid.Bindings, len(t.globals)+len(data))
	for k, v := range t.globals {
		bindings[k] = v
	}
	for k, v := range data {
		bindings[k] = v
	}
	if t.autoescape {
		escapeBindings(bindings)
	}

	out, err := t.tpl.Render(bindings)
	if err != nil {
		return "", fmt.Errorf("engine: render %s: %w", t.Identity(), err)
	}
	return string(out), nil
}
