package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileSystemLoader loads templates from one or more directories.
// The first directory containing the template wins.
type FileSystemLoader struct {
	searchPath []string
}

// NewFileSystemLoader creates a loader rooted at the given directories.
func NewFileSystemLoader(searchPath ...string) *FileSystemLoader {
	return &FileSystemLoader{searchPath: searchPath}
}

// SearchPath returns the directories searched, in order.
func (l *FileSystemLoader) SearchPath() []string {
	return append([]string(nil), l.searchPath...)
}

// Load implements Loader.
func (l *FileSystemLoader) Load(ctx context.Context, name string) (*Source, error) {
	rel := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(rel) {
		return nil, NotFound(name, l.searchPath...)
	}

	for _, dir := range l.searchPath {
		path := filepath.Join(dir, rel)

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("loader: stat %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loader: read %s: %w", path, err)
		}

		return &Source{
			Name:     name,
			Path:     path,
			Text:     string(data),
			UpToDate: modTimeChecker(path, info.ModTime()),
		}, nil
	}

	return nil, NotFound(name, l.searchPath...)
}

func modTimeChecker(path string, loaded time.Time) func(context.Context) bool {
	return func(context.Context) bool {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		return info.ModTime().Equal(loaded)
	}
}

// FSLoader loads templates from an fs.FS such as an embed.FS.
// Embedded files never change, so sources are always up to date.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader creates a loader reading from fsys.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

// Load implements Loader.
func (l *FSLoader) Load(ctx context.Context, name string) (*Source, error) {
	if !fs.ValidPath(name) {
		return nil, NotFound(name)
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound(name)
		}
		return nil, fmt.Errorf("loader: read %s: %w", name, err)
	}

	return &Source{Name: name, Path: name, Text: string(data)}, nil
}
