package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		templateID string
		jobFile    string
		jobText    string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Derive a new letter from the template and a job description",
		Long: `Rewrites the template letter for a job description and stores the result.
The job description is read from --job, --job-file, or stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.refresh(cmd.Context()); err != nil {
				return err
			}
			tid := templateID
			if tid == "" {
				tid = a.ws.Template()
			}
			if tid == "" {
				return errors.New("no template set; use 'template set' or --template")
			}

			jd, err := readJobDescription(cmd, jobText, jobFile)
			if err != nil {
				return err
			}
			if strings.TrimSpace(jd) == "" {
				return errors.New("job description is empty")
			}

			cmd.PrintErrln("Generating...")
			l, err := a.api.Generate(cmd.Context(), tid, jd)
			if err != nil {
				return err
			}
			a.ws.Add(l)
			cmd.Printf("Created %s\n", l.ID)
			printLetter(cmd, l)
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "template letter id (defaults to the saved template)")
	cmd.Flags().StringVarP(&jobFile, "job-file", "f", "", "file with the job description")
	cmd.Flags().StringVar(&jobText, "job", "", "job description text")
	return cmd
}

func readJobDescription(cmd *cobra.Command, text, file string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read job description: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read job description: %w", err)
		}
		return string(data), nil
	}
}
