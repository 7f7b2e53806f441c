// Package liquidview renders Liquid templates in Fiber applications.
//
// An Extension collects explicit options, then Attach resolves them against
// the application's settings store and builds one Liquid environment per
// *fiber.App:
//
//	ext := liquidview.New(
//	    liquidview.WithTemplateFolder("views"),
//	    liquidview.WithGlobals(map[string]any{"site": "Blog"}),
//	)
//	app := fiber.New(fiber.Config{Views: ext.Views()})
//	if _, err := ext.Attach(app, settings); err != nil {
//	    log.Fatal(err)
//	}
//
// Settings store values win over explicit options, which win over the
// documented defaults. See the config package for the LIQUID_* keys.
//
// # Rendering
//
// Handlers render by name or from a string:
//
//	app.Get("/", func(c *fiber.Ctx) error {
//	    return liquidview.RenderTemplate(c, "index.liquid", fiber.Map{"name": "World"})
//	})
//
// The async variants run the render on a Scheduler carried by the request
// context (see middleware.AsyncRender) and return a Future. Outside such a
// context they fail with ErrUnsupportedMode.
//
// # Notifications
//
// With LIQUID_SIGNALS on (the default) every successful render publishes
// before_render_template and template_rendered on the extension's
// signals.Bus. Observer failures are logged and never fail the render.
package liquidview
