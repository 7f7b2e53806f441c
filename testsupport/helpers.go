package testsupport

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// NewTestLogger creates a slog.Logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TemplateDir writes files (name -> contents) into a fresh temporary
// directory and returns its path. Names may contain slashes.
func TemplateDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("testsupport: failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("testsupport: failed to write %s: %v", path, err)
		}
	}
	return dir
}
