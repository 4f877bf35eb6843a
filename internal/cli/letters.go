package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coverletter-backend/internal/letters"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List letters, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.refresh(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				cmd.Println("No letters yet.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tTITLE\tDATE\tUPDATED")
			tpl := a.ws.Template()
			for _, l := range list {
				mark := ""
				if l.ID == tpl {
					mark = "T"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, l.ID, l.Title(), deref(l.Date), l.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var bodyOnly bool
	cmd := &cobra.Command{
		Use:   "show [letter-id]",
		Short: "Show a letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if bodyOnly {
				_, err := io.WriteString(cmd.OutOrStdout(), l.ContentLatex)
				return err
			}
			printLetter(cmd, l)
			cmd.Println()
			cmd.Print(l.ContentLatex)
			return nil
		},
	}
	cmd.Flags().BoolVar(&bodyOnly, "body", false, "print only the LaTeX body")
	return cmd
}

func printLetter(cmd *cobra.Command, l letters.Letter) {
	cmd.Printf("ID:        %s\n", l.ID)
	cmd.Printf("Title:     %s\n", deref(l.JobInfo.FileTitle))
	cmd.Printf("Company:   %s\n", deref(l.JobInfo.CompanyName))
	cmd.Printf("Position:  %s\n", deref(l.JobInfo.PositionTitle))
	cmd.Printf("Date:      %s\n", deref(l.Date))
	cmd.Printf("Template:  %s\n", deref(l.TemplateID))
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload [file.tex|-]",
		Short: "Upload a .tex file, or LaTeX from stdin with -",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				l   letters.Letter
				err error
			)
			if args[0] == "-" {
				data, rerr := io.ReadAll(cmd.InOrStdin())
				if rerr != nil {
					return fmt.Errorf("read stdin: %w", rerr)
				}
				l, err = a.api.Upload(cmd.Context(), string(data))
			} else {
				f, oerr := os.Open(args[0])
				if oerr != nil {
					return oerr
				}
				defer f.Close()
				l, err = a.api.UploadFile(cmd.Context(), filepath.Base(args[0]), f)
			}
			if err != nil {
				return err
			}
			a.ws.Add(l)
			cmd.Printf("Uploaded %s\n", l.ID)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [letter-id]",
		Short: "Delete a letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.refresh(cmd.Context()); err != nil {
				return err
			}
			id := args[0]
			wasTemplate := a.ws.Template() == id
			if err := a.ws.Delete(cmd.Context(), a.api, id); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", id)
			if wasTemplate {
				cmd.Println("Template cleared; choose a new one with 'template set'.")
			}
			return nil
		},
	}
}

func newTemplateCmd(a *app) *cobra.Command {
	tpl := &cobra.Command{
		Use:   "template",
		Short: "Show or change the template letter",
	}
	tpl.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the current template",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := a.refresh(cmd.Context()); err != nil {
					return err
				}
				id := a.ws.Template()
				if id == "" {
					cmd.Println("No template set.")
					return nil
				}
				l, _ := a.ws.Find(id)
				cmd.Printf("%s\t%s\n", id, l.Title())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set [letter-id]",
			Short: "Use a letter as the template for generation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := a.refresh(cmd.Context()); err != nil {
					return err
				}
				if err := a.ws.SetTemplate(args[0]); err != nil {
					return err
				}
				cmd.Printf("Template set to %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the template",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a.ws.ClearTemplate()
				cmd.Println("Template cleared.")
				return nil
			},
		},
	)
	return tpl
}
