package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCompileCmd(a *app) *cobra.Command {
	var (
		output string
		from   string
	)
	cmd := &cobra.Command{
		Use:   "compile [letter-id]",
		Short: "Render a letter to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override *string
			if from != "" {
				data, err := os.ReadFile(from)
				if err != nil {
					return err
				}
				s := string(data)
				override = &s
			}
			out, err := a.api.Compile(cmd.Context(), args[0], override)
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = out.FileName
			}
			if err := os.WriteFile(path, out.PDF, 0o644); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}
			if out.Pages >= 0 {
				cmd.Printf("Wrote %s (%d bytes, %d pages)\n", path, len(out.PDF), out.Pages)
			} else {
				cmd.Printf("Wrote %s (%d bytes)\n", path, len(out.PDF))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults to the letter title)")
	cmd.Flags().StringVar(&from, "from", "", "compile this .tex file instead of the stored body")
	return cmd
}
