// Package loader resolves Liquid template names to template source text.
//
// A Loader is consulted by the engine on every cache miss, and the returned
// Source tells the engine whether a cached template is still fresh.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound is matched by every TemplateNotFoundError.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateNotFoundError reports a template name no loader could resolve.
type TemplateNotFoundError struct {
	Name       string
	SearchPath []string
}

func (e *TemplateNotFoundError) Error() string {
	if len(e.SearchPath) == 0 {
		return fmt.Sprintf("template not found: %q", e.Name)
	}
	return fmt.Sprintf("template not found: %q (searched %s)", e.Name, strings.Join(e.SearchPath, ", "))
}

// Is reports whether target is ErrTemplateNotFound.
func (e *TemplateNotFoundError) Is(target error) bool {
	return target == ErrTemplateNotFound
}

// NotFound builds a TemplateNotFoundError.
func NotFound(name string, searchPath ...string) error {
	return &TemplateNotFoundError{Name: name, SearchPath: searchPath}
}

// Source is the raw text of a template plus freshness information.
type Source struct {
	// Name is the name the template was requested by.
	Name string

	// Path identifies where the text came from. Used in error messages.
	Path string

	// Text is the template source.
	Text string

	// UpToDate reports whether Text still matches the backing store.
	// A nil UpToDate means the source never goes stale.
	UpToDate func(ctx context.Context) bool
}

// Fresh reports whether the source is still current.
func (s *Source) Fresh(ctx context.Context) bool {
	if s.UpToDate == nil {
		return true
	}
	return s.UpToDate(ctx)
}

// Loader loads template sources by name.
// Implementations must be safe for concurrent use.
type Loader interface {
	Load(ctx context.Context, name string) (*Source, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, name string) (*Source, error)

// Load calls f(ctx, name).
func (f LoaderFunc) Load(ctx context.Context, name string) (*Source, error) {
	return f(ctx, name)
}

// ChoiceLoader tries each loader in order and returns the first match.
type ChoiceLoader struct {
	loaders []Loader
}

// NewChoiceLoader creates a ChoiceLoader over loaders.
func NewChoiceLoader(loaders ...Loader) *ChoiceLoader {
	return &ChoiceLoader{loaders: loaders}
}

// Load implements Loader.
func (c *ChoiceLoader) Load(ctx context.Context, name string) (*Source, error) {
	var searched []string
	for _, l := range c.loaders {
		src, err := l.Load(ctx, name)
		if err == nil {
			return src, nil
		}
		var nf *TemplateNotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
		searched = append(searched, nf.SearchPath...)
	}
	return nil, NotFound(name, searched...)
}
