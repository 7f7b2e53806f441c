package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/karloscodes/liquidview"
	"github.com/karloscodes/liquidview/config"
	"github.com/karloscodes/liquidview/database"
	"github.com/karloscodes/liquidview/filters"
	"github.com/karloscodes/liquidview/loader"
	"github.com/karloscodes/liquidview/logging"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	dir      string
	configs  []string
	appName  string
	dbDSN    string
	env      string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "liquidview",
		Short:         "Render Liquid templates",
		Long:          `liquidview renders Liquid templates from a directory (and optionally a database) using the same settings a Fiber application would.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.dir, "dir", "", "Template directory (overrides LIQUID_TEMPLATE_FOLDER when set)")
	pf.StringSliceVar(&flags.configs, "config", nil, "Settings files (YAML, JSON or TOML), merged in order")
	pf.StringVar(&flags.appName, "app", "liquidview", "Application name, used as the environment variable prefix")
	pf.StringVar(&flags.dbDSN, "db", "", "Template database DSN (SQLite path or postgres:// URL)")
	pf.StringVar(&flags.env, "env", logging.Development, "Environment: development or production")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRenderCmd(&flags),
		newServeCmd(&flags),
		newTemplatesCmd(&flags),
	)
	return rootCmd
}

// workspace is what the commands share once flags are parsed.
type workspace struct {
	logger    *slog.Logger
	settings  *viper.Viper
	extension *liquidview.Extension
	db        *database.Manager
}

func (f *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(logging.Config{
		Environment: f.env,
		Level:       f.logLevel,
		AppName:     f.appName,
		Output:      cmd.ErrOrStderr(),
	})
}

func (f *globalFlags) database(logger *slog.Logger) *database.Manager {
	if f.dbDSN == "" {
		return nil
	}
	return database.NewManager(database.DefaultConfig(f.dbDSN), logger)
}

// setup loads settings and builds the extension. Templates come from the
// template folder, then from the database when --db is given.
func (f *globalFlags) setup(cmd *cobra.Command, opts ...liquidview.Option) (*workspace, error) {
	logger := f.logger(cmd)

	settings, err := config.Load(f.appName, f.configs...)
	if err != nil {
		return nil, err
	}

	folder := settings.GetString(config.KeyTemplateFolder)
	if f.dir != "" {
		folder = f.dir
		settings.Set(config.KeyTemplateFolder, folder)
	}
	if folder == "" {
		folder = config.DefaultTemplateFolder
	}
	if _, err := os.Stat(folder); err != nil && f.dbDSN == "" {
		return nil, fmt.Errorf("template folder: %w", err)
	}

	var ld loader.Loader = loader.NewFileSystemLoader(folder)
	db := f.database(logger)
	if db != nil {
		conn, err := db.Connect()
		if err == nil {
			err = loader.Migrate(conn)
		}
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		ld = loader.NewChoiceLoader(ld, loader.NewDBLoader(conn))
	}

	base := []liquidview.Option{
		liquidview.WithLogger(logger),
		liquidview.WithLoader(ld),
		liquidview.WithFilters(filters.Defaults()),
	}
	return &workspace{
		logger:    logger,
		settings:  settings,
		extension: liquidview.New(append(base, opts...)...),
		db:        db,
	}, nil
}

func (w *workspace) close() {
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.logger.Warn("closing template database", "error", err)
		}
	}
}
