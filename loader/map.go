package loader

import (
	"context"
	"sync"
)

// MapLoader serves templates from memory. Useful in tests and for
// templates assembled at startup.
type MapLoader struct {
	mu        sync.RWMutex
	templates map[string]string
	versions  map[string]int
}

// NewMapLoader creates a MapLoader seeded with templates.
func NewMapLoader(templates map[string]string) *MapLoader {
	l := &MapLoader{
		templates: make(map[string]string, len(templates)),
		versions:  make(map[string]int, len(templates)),
	}
	for name, src := range templates {
		l.templates[name] = src
	}
	return l
}

// Set adds or replaces a template. Previously loaded sources for the same
// name report themselves stale.
func (l *MapLoader) Set(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = source
	l.versions[name]++
}

// Load implements Loader.
func (l *MapLoader) Load(ctx context.Context, name string) (*Source, error) {
	l.mu.RLock()
	src, ok := l.templates[name]
	version := l.versions[name]
	l.mu.RUnlock()

	if !ok {
		return nil, NotFound(name)
	}

	return &Source{
		Name: name,
		Path: name,
		Text: src,
		UpToDate: func(context.Context) bool {
			l.mu.RLock()
			defer l.mu.RUnlock()
			return l.versions[name] == version
		},
	}, nil
}
