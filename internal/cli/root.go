// Package cli implements the lettersctl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coverletter-backend/internal/client"
	"coverletter-backend/internal/editor"
	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/workspace"
)

// API is the subset of *client.Client the commands use.
type API interface {
	List(ctx context.Context) ([]letters.Letter, error)
	Get(ctx context.Context, id string) (letters.Letter, error)
	Upload(ctx context.Context, contentLatex string) (letters.Letter, error)
	UploadFile(ctx context.Context, fileName string, r io.Reader) (letters.Letter, error)
	Update(ctx context.Context, id string, patch letters.Patch) (letters.Letter, error)
	UpdateContent(ctx context.Context, id, contentLatex string) error
	Delete(ctx context.Context, id string) error
	Generate(ctx context.Context, templateID, jobDescription string) (letters.Letter, error)
	Compile(ctx context.Context, id string, override *string) (client.Rendered, error)
}

// Deps overrides what the root command would otherwise build from flags.
type Deps struct {
	API   API
	Hints workspace.HintStore
	Clock editor.Clock
}

type app struct {
	api   API
	ws    *workspace.Workspace
	clock editor.Clock
}

type rootFlags struct {
	apiURL    string
	token     string
	guestID   string
	stateFile string
	timeout   time.Duration
}

// NewRootCmd builds the command tree. A nil deps builds everything from flags.
func NewRootCmd(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = &Deps{}
	}
	flags := &rootFlags{}
	a := &app{}

	root := &cobra.Command{
		Use:           "lettersctl",
		Short:         "Manage LaTeX cover letters",
		Long:          `Upload, edit, derive and compile cover letters stored by the letters API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(flags, deps)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", envOr("LETTERS_API_URL", "http://localhost:8080"), "letters API base URL")
	pf.StringVar(&flags.token, "token", os.Getenv("LETTERS_TOKEN"), "bearer token issued by the identity provider")
	pf.StringVar(&flags.guestID, "guest-id", os.Getenv("LETTERS_GUEST_ID"), "guest identity (generated and remembered when empty)")
	pf.StringVar(&flags.stateFile, "state-file", workspace.DefaultStatePath(), "client state file")
	pf.DurationVar(&flags.timeout, "timeout", 3*time.Minute, "request timeout")

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newUploadCmd(a),
		newDeleteCmd(a),
		newTemplateCmd(a),
		newGenerateCmd(a),
		newCompileCmd(a),
		newEditCmd(a),
	)
	return root
}

// Execute runs the CLI against os.Args.
func Execute() int {
	cmd := NewRootCmd(nil)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", describe(err))
		return 1
	}
	return 0
}

func (a *app) init(f *rootFlags, deps *Deps) error {
	if a.api != nil {
		return nil
	}
	hints := deps.Hints
	var fileHints *workspace.FileHintStore
	if hints == nil {
		fileHints = workspace.NewFileHintStore(f.stateFile)
		hints = fileHints
	}
	a.clock = deps.Clock

	if deps.API != nil {
		a.api = deps.API
	} else {
		guest := f.guestID
		if strings.TrimSpace(f.token) == "" && strings.TrimSpace(guest) == "" {
			if fileHints == nil {
				return errors.New("--token or --guest-id is required")
			}
			id, err := fileHints.GuestID()
			if err != nil {
				return err
			}
			guest = id
		}
		c, err := client.New(client.Options{BaseURL: f.apiURL, Token: f.token, GuestID: guest, Timeout: f.timeout})
		if err != nil {
			return err
		}
		a.api = c
	}
	a.ws = workspace.New(hints)
	return nil
}

// refresh loads the list into the workspace.
func (a *app) refresh(ctx context.Context) ([]letters.Letter, error) {
	list, err := a.api.List(ctx)
	if err != nil {
		return nil, err
	}
	a.ws.SetLetters(list)
	return list, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (%s, HTTP %d)", apiErr.Message, apiErr.Code, apiErr.Status)
	}
	return err.Error()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
