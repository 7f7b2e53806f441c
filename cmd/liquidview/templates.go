package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karloscodes/liquidview/loader"
)

func newTemplatesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage templates stored in the template database",
		Long:  `Stores, lists and removes templates in the liquid_templates table of the database given with --db.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the liquid_templates table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTemplateDB(cmd, flags, func(*loader.DBLoader) error {
					fmt.Fprintln(cmd.OutOrStdout(), "liquid_templates is up to date")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "put NAME FILE",
			Short: "Store FILE as template NAME",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				source, err := os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("read template: %w", err)
				}
				return withTemplateDB(cmd, flags, func(db *loader.DBLoader) error {
					return db.Put(cmd.Context(), args[0], string(source))
				})
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List stored templates",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTemplateDB(cmd, flags, func(db *loader.DBLoader) error {
					names, err := db.Names(cmd.Context())
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rm NAME",
			Short: "Remove template NAME",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTemplateDB(cmd, flags, func(db *loader.DBLoader) error {
					return db.Remove(cmd.Context(), args[0])
				})
			},
		},
	)
	return cmd
}

// withTemplateDB connects to --db, migrates the table and runs fn.
func withTemplateDB(cmd *cobra.Command, flags *globalFlags, fn func(*loader.DBLoader) error) error {
	if flags.dbDSN == "" {
		return errors.New("templates: --db is required")
	}

	db := flags.database(flags.logger(cmd))
	defer db.Close()

	conn, err := db.Connect()
	if err != nil {
		return err
	}
	if err := loader.Migrate(conn); err != nil {
		return err
	}
	return fn(loader.NewDBLoader(conn))
}
