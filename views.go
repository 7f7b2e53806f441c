package liquidview

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/liquidview/structs"
)

// contentMarker stands in for the page body while a layout renders, so the
// body is spliced in after autoescaping instead of being escaped again.
const contentMarker = "\x1eliquidview:content\x1e"

// Views returns a fiber.Views backed by the application this extension was
// last attached to, for use in fiber.Config:
//
//	app := fiber.New(fiber.Config{Views: ext.Views()})
//	ext.Attach(app, settings)
//
//	c.Render("posts/show", fiber.Map{"post": post}, "layouts/main")
//
// Names without an extension get the view extension (".liquid" by default).
// A layout receives the rendered page as content. Bindings may be maps or
// structs; struct fields are keyed by their json tags.
//
// fiber.Views never sees the request, so renders through c.Render run with
// a background context: processors registered with ScopedContextProcessor
// (and any processor reading RequestFrom) see no request. Use RenderTemplate
// when processors need it. The views also follow the app the extension was
// last attached to; give each app its own Extension.
func (e *Extension) Views() fiber.Views {
	return &views{ext: e}
}

type views struct {
	ext *Extension
}

// Load is called by fiber.New before Attach; templates load lazily.
func (v *views) Load() error { return nil }

func (v *views) Render(w io.Writer, name string, binding interface{}, layouts ...string) error {
	app := v.ext.app.Load()
	if app == nil {
		return ErrNotAttached
	}
	h, err := v.ext.registry.Lookup(app)
	if err != nil {
		return err
	}

	data, err := bindingData(binding)
	if err != nil {
		return err
	}

	ctx := context.Background()
	out, err := h.Render(ctx, v.name(name), data)
	if err != nil {
		return err
	}

	if len(layouts) > 0 && layouts[0] != "" {
		layoutData := maps.Clone(data)
		if layoutData == nil {
			layoutData = make(map[string]any, 1)
		}
		layoutData["content"] = contentMarker

		page, err := h.Render(ctx, v.name(layouts[0]), layoutData)
		if err != nil {
			return err
		}
		out = strings.ReplaceAll(page, contentMarker, out)
	}

	_, err = io.WriteString(w, out)
	return err
}

func (v *views) name(name string) string {
	if v.ext.viewExt == "" || path.Ext(name) != "" {
		return name
	}
	return name + v.ext.viewExt
}

func bindingData(binding interface{}) (map[string]any, error) {
	switch b := binding.(type) {
	case nil:
		return nil, nil
	case fiber.Map:
		return b, nil
	case map[string]any:
		return b, nil
	case map[string]string:
		data := make(map[string]any, len(b))
		for k, val := range b {
			data[k] = val
		}
		return data, nil
	default:
		data, err := structs.Map(binding)
		if err != nil {
			return nil, fmt.Errorf("liquidview: unsupported view binding %T", binding)
		}
		return data, nil
	}
}
