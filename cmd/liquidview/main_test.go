package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/liquidview"
	"github.com/karloscodes/liquidview/logging"
	"github.com/karloscodes/liquidview/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--env", logging.Test))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRender_NamedTemplate(t *testing.T) {
	dir := testsupport.TemplateDir(t, map[string]string{"hello.liquid": "Hello, {{ name }}!"})

	out, err := runCLI(t, "render", "hello.liquid", "--dir", dir, "--var", "name=World")
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", out)
}

func TestRender_String(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, "render", "--dir", dir, "--string", "{{ 1 | plus: 2 }}")
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestRender_DataFile(t *testing.T) {
	dir := testsupport.TemplateDir(t, map[string]string{
		"list.liquid": "{% for p in posts %}[{{ p.title }}]{% endfor %} {{ site }}",
	})
	data := writeFile(t, t.TempDir(), "data.yaml", "site: Blog\nposts:\n  - title: One\n  - title: Two\n")

	t.Run("yaml", func(t *testing.T) {
		out, err := runCLI(t, "render", "list.liquid", "--dir", dir, "--data", data)
		require.NoError(t, err)
		assert.Equal(t, "[One][Two] Blog", out)
	})

	t.Run("var overrides file", func(t *testing.T) {
		out, err := runCLI(t, "render", "list.liquid", "--dir", dir, "--data", data, "--var", "site=Notes")
		require.NoError(t, err)
		assert.Equal(t, "[One][Two] Notes", out)
	})
}

func TestRender_SettingsFile(t *testing.T) {
	dir := testsupport.TemplateDir(t, map[string]string{"t.liquid": "{{ html }}"})
	settings := writeFile(t, t.TempDir(), "liquid.yaml", "LIQUID_AUTOESCAPE: false\n")

	out, err := runCLI(t, "render", "t.liquid", "--dir", dir, "--config", settings, "--var", "html=<b>x</b>")
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", out)

	out, err = runCLI(t, "render", "t.liquid", "--dir", dir, "--var", "html=<b>x</b>")
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", out)
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"no template", []string{"render", "--dir", dir}},
		{"name and string", []string{"render", "x", "--string", "y", "--dir", dir}},
		{"missing template", []string{"render", "nope.liquid", "--dir", dir}},
		{"bad var", []string{"render", "--string", "x", "--var", "novalue", "--dir", dir}},
		{"missing dir", []string{"render", "--string", "x", "--dir", filepath.Join(dir, "absent")}},
		{"missing data file", []string{"render", "--string", "x", "--dir", dir, "--data", filepath.Join(dir, "absent.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}

	_, err := runCLI(t, "render", "nope.liquid", "--dir", dir)
	assert.ErrorIs(t, err, liquidview.ErrTemplateNotFound)
}

func TestTemplates_StoredInDatabase(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(t.TempDir(), "templates.db")
	src := writeFile(t, t.TempDir(), "welcome.liquid", "Welcome, {{ user }}")

	out, err := runCLI(t, "templates", "migrate", "--db", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	_, err = runCLI(t, "templates", "put", "welcome", src, "--db", dsn)
	require.NoError(t, err)

	out, err = runCLI(t, "templates", "ls", "--db", dsn)
	require.NoError(t, err)
	assert.Equal(t, "welcome\n", out)

	out, err = runCLI(t, "render", "welcome", "--dir", dir, "--db", dsn, "--var", "user=ada")
	require.NoError(t, err)
	assert.Equal(t, "Welcome, ada", out)

	_, err = runCLI(t, "templates", "rm", "welcome", "--db", dsn)
	require.NoError(t, err)

	_, err = runCLI(t, "render", "welcome", "--dir", dir, "--db", dsn)
	assert.ErrorIs(t, err, liquidview.ErrTemplateNotFound)
}

func TestTemplates_FolderWinsOverDatabase(t *testing.T) {
	dir := testsupport.TemplateDir(t, map[string]string{"page": "from disk"})
	dsn := filepath.Join(t.TempDir(), "templates.db")
	src := writeFile(t, t.TempDir(), "page.liquid", "from db")

	_, err := runCLI(t, "templates", "put", "page", src, "--db", dsn)
	require.NoError(t, err)

	out, err := runCLI(t, "render", "page", "--dir", dir, "--db", dsn)
	require.NoError(t, err)
	assert.Equal(t, "from disk", out)
}

func TestTemplates_RequiresDatabase(t *testing.T) {
	_, err := runCLI(t, "templates", "ls")
	assert.ErrorContains(t, err, "--db is required")
}

func TestTemplateName(t *testing.T) {
	tests := map[string]string{
		"/":            "index",
		"":             "index",
		"/about":       "about",
		"/docs/":       "docs/index",
		"/docs/intro":  "docs/intro",
		"/../etc/pass": "etc/pass",
	}
	for in, want := range tests {
		assert.Equal(t, want, templateName(in), in)
	}
}

func newTestServe(t *testing.T, templates map[string]string) *workspace {
	t.Helper()
	flags := &globalFlags{
		dir:     testsupport.TemplateDir(t, templates),
		appName: "liquidview",
		env:     logging.Test,
	}
	cmd := &cobra.Command{}
	cmd.SetErr(io.Discard)

	ws, err := flags.setup(cmd)
	require.NoError(t, err)
	t.Cleanup(ws.close)
	return ws
}

func TestServe_RendersPaths(t *testing.T) {
	ws := newTestServe(t, map[string]string{
		"index.liquid":      "home {{ path }}",
		"docs/index.liquid": "docs",
		"about.liquid":      "about {{ query.q }}",
	})

	app, scheduler, err := newServer(ws, serveOptions{concurrency: 2})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Shutdown()
		scheduler.Wait()
	})

	tests := []struct {
		path, body string
		status     int
	}{
		{"/", "home /", 200},
		{"/docs/", "docs", 200},
		{"/about?q=go", "about go", 200},
		{"/missing", "", 404},
		{"/_health", "ok", 200},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				assert.Equal(t, tt.body, testsupport.Body(t, resp))
			}
		})
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	body := testsupport.Body(t, resp)
	assert.Contains(t, body, `liquidview_liquid_renders_total{template="index.liquid"} 1`)
	assert.Contains(t, body, "liquidview_liquid_render_duration_seconds")
}

func TestServe_Layout(t *testing.T) {
	ws := newTestServe(t, map[string]string{
		"base.liquid":  "<main>{{ content }}</main>",
		"index.liquid": "<h1>{{ path }}</h1>",
	})

	app, _, err := newServer(ws, serveOptions{layout: "base"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown() })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "<main><h1>/</h1></main>", testsupport.Body(t, resp))
}
