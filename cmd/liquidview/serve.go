package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/karloscodes/liquidview"
	"github.com/karloscodes/liquidview/metrics"
	"github.com/karloscodes/liquidview/middleware"
)

type serveOptions struct {
	addr            string
	layout          string
	concurrency     int64
	shutdownTimeout time.Duration
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the template directory over HTTP",
		Long: `Starts a Fiber server that renders the template matching each request
path: / renders index, /about renders about, /docs/ renders docs/index.
Query parameters are passed to the template as "query". Prometheus metrics
are exposed on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer ws.close()

			app, scheduler, err := newServer(ws, opts)
			if err != nil {
				return err
			}
			return run(app, scheduler, ws, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&opts.layout, "layout", "", "Layout template wrapping every page")
	cmd.Flags().Int64Var(&opts.concurrency, "concurrency", 0, "Maximum concurrent renders (0 = GOMAXPROCS)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
	return cmd
}

// newServer builds the Fiber app, attaches the extension and mounts routes.
func newServer(ws *workspace, opts serveOptions) (*fiber.App, *liquidview.Scheduler, error) {
	isDev := ws.settings.GetBool("debug")

	app := fiber.New(fiber.Config{
		Views:                 ws.extension.Views(),
		ErrorHandler:          liquidview.ErrorHandler(ws.logger, isDev),
		DisableStartupMessage: true,
	})

	if _, err := ws.extension.Attach(app, ws.settings); err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New("liquidview")
	reg.MustRegister(collector, collectors.NewGoCollector())
	collector.Observe(ws.extension.Signals())

	scheduler := liquidview.NewScheduler(opts.concurrency)

	app.Use(middleware.Recover(ws.logger))
	app.Use(middleware.RequestLogger(ws.logger))
	app.Use(middleware.AsyncRender(scheduler))

	app.Get("/_health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Get("/*", pageHandler(opts.layout))

	return app, scheduler, nil
}

// pageHandler renders the template named by the request path.
func pageHandler(layout string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := templateName(c.Path())
		data := map[string]any{
			"path":  c.Path(),
			"query": c.Queries(),
		}

		if layout != "" {
			return c.Render(name, data, layout)
		}

		f, err := liquidview.RenderTemplateAsync(c, name+liquidview.DefaultViewExtension, data)
		if err != nil {
			return err
		}
		return f.Send(c)
	}
}

// templateName maps a request path to a template name without extension.
func templateName(p string) string {
	dir := strings.HasSuffix(p, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || dir {
		return path.Join(p, "index")
	}
	return p
}

// run serves until SIGINT or SIGTERM, then shuts down gracefully.
func run(app *fiber.App, scheduler *liquidview.Scheduler, ws *workspace, opts serveOptions) error {
	serverErrors := make(chan error, 1)
	go func() {
		ws.logger.Info("listening", "addr", opts.addr)
		serverErrors <- app.Listen(opts.addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		ws.logger.Info("shutting down gracefully", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		ws.logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	scheduler.Wait()

	ws.logger.Info("shutdown complete")
	return nil
}
