package main

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
)

func newRenderCmd(flags *globalFlags) *cobra.Command {
	var (
		source   string
		dataFile string
		vars     []string
	)

	cmd := &cobra.Command{
		Use:   "render [NAME]",
		Short: "Render a template to stdout",
		Long: `Renders the template NAME from the template directory (or the template
database), or the literal source given with --string.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (source == "") {
				return errors.New("give either a template NAME or --string")
			}

			data, err := loadData(dataFile)
			if err != nil {
				return err
			}
			if data, err = applyVars(data, vars); err != nil {
				return err
			}

			ws, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer ws.close()

			app := fiber.New(fiber.Config{DisableStartupMessage: true})
			h, err := ws.extension.Attach(app, ws.settings)
			if err != nil {
				return err
			}
			defer ws.extension.Registry().Delete(app)

			var out string
			if source != "" {
				out, err = h.RenderString(cmd.Context(), source, data)
			} else {
				out, err = h.Render(cmd.Context(), args[0], data)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVarP(&source, "string", "s", "", "Render this template source instead of a named template")
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "YAML or JSON file with the render data")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Extra data as key=value (repeatable)")
	return cmd
}
