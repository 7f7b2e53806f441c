package testsupport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"

	"github.com/karloscodes/liquidview"
	"github.com/karloscodes/liquidview/middleware"
)

// TestServerOptions configures test server creation.
type TestServerOptions struct {
	// Templates are written to a temporary template folder.
	Templates map[string]string

	// Settings are loaded into the settings store passed to Attach.
	Settings map[string]any

	// Extension options, applied after the template folder and logger.
	Options []liquidview.Option

	// Scheduler, when set, is installed into every request's user context.
	Scheduler *liquidview.Scheduler

	// Route mounting function
	Routes func(app *fiber.App, ext *liquidview.Extension)
}

// TestServer is a Fiber app with a Liquid extension attached.
type TestServer struct {
	t           *testing.T
	App         *fiber.App
	Extension   *liquidview.Extension
	Handle      *liquidview.Handle
	Recorder    *Recorder
	TemplateDir string
}

// NewTestServer creates a Fiber app, attaches a Liquid extension to it in
// DefaultRegistry and mounts the routes. The app is detached when the test
// ends.
func NewTestServer(t *testing.T, opts ...TestServerOptions) *TestServer {
	t.Helper()

	var options TestServerOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	logger := NewTestLogger()
	dir := TemplateDir(t, options.Templates)

	extOpts := append([]liquidview.Option{
		liquidview.WithTemplateFolder(dir),
		liquidview.WithLogger(logger),
	}, options.Options...)
	ext := liquidview.New(extOpts...)

	app := fiber.New(fiber.Config{
		Views:                 ext.Views(),
		ErrorHandler:          liquidview.ErrorHandler(logger, true),
		DisableStartupMessage: true,
	})
	if options.Scheduler != nil {
		app.Use(middleware.AsyncRender(options.Scheduler))
	}

	settings := viper.New()
	for key, value := range options.Settings {
		settings.Set(key, value)
	}

	handle, err := ext.Attach(app, settings)
	if err != nil {
		t.Fatalf("testsupport: failed to attach extension: %v", err)
	}
	t.Cleanup(func() { ext.Registry().Delete(app) })

	if options.Routes != nil {
		options.Routes(app, ext)
	}

	return &TestServer{
		t:           t,
		App:         app,
		Extension:   ext,
		Handle:      handle,
		Recorder:    NewRecorder(t, ext.Signals()),
		TemplateDir: dir,
	}
}

// Request performs a test request and returns the response.
func (ts *TestServer) Request(method, path string, body ...string) *http.Response {
	ts.t.Helper()

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(body[0])
	}

	req := httptest.NewRequest(method, path, bodyReader)
	resp, err := ts.App.Test(req, -1)
	if err != nil {
		ts.t.Fatalf("testsupport: request failed: %v", err)
	}
	return resp
}

// Get performs a GET request.
func (ts *TestServer) Get(path string) *http.Response {
	return ts.Request(http.MethodGet, path)
}

// Body reads and closes the response body.
func Body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("testsupport: failed to read body: %v", err)
	}
	return string(b)
}
