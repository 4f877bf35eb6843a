package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"coverletter-backend/internal/editor"
)

func newEditCmd(a *app) *cobra.Command {
	var (
		dir      string
		debounce time.Duration
		onSwitch string
	)
	cmd := &cobra.Command{
		Use:   "edit [letter-id]",
		Short: "Edit a letter with autosave",
		Long: `Writes the letter to <dir>/<id>.tex and autosaves whenever the file changes.
Commands on stdin: save, status, open <id>, quit, quit! (discard unsaved edits).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := editor.SwitchFlush
			switch onSwitch {
			case "flush":
			case "discard":
				policy = editor.SwitchDiscard
			default:
				return fmt.Errorf("--on-switch must be flush or discard, got %q", onSwitch)
			}
			if dir == "" {
				dir = "."
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			loop := &editLoop{app: a, dir: abs, out: cmd.OutOrStdout()}
			return loop.run(cmd.Context(), args[0], cmd.InOrStdin(), editor.Options{
				Debounce: debounce,
				Clock:    a.clock,
				Policy:   policy,
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory for working .tex files")
	cmd.Flags().DurationVar(&debounce, "debounce", editor.DefaultDebounce, "quiet period before autosave")
	cmd.Flags().StringVar(&onSwitch, "on-switch", "flush", "unsaved edits when opening another letter: flush or discard")
	return cmd
}

type editLoop struct {
	app  *app
	dir  string
	out  io.Writer
	sess *editor.Session
	path string
}

func (l *editLoop) run(ctx context.Context, id string, in io.Reader, opts editor.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := l.app.refresh(ctx); err != nil {
		return err
	}
	letter, err := l.app.api.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.app.ws.Select(id); err != nil {
		return err
	}

	opts.Context = ctx
	opts.OnState = func(id string, s editor.State) {
		fmt.Fprintf(l.out, "[%s] %s\n", id, s)
	}
	opts.OnError = func(id string, err error) {
		fmt.Fprintf(l.out, "[%s] autosave failed: %s\n", id, describe(err))
	}
	l.sess = editor.NewSession(l.app.api, id, letter.ContentLatex, opts)
	defer l.sess.Close()

	if err := l.writeWorkingFile(id, letter.ContentLatex); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}
	fmt.Fprintf(l.out, "Editing %s. Type save, status, open <id>, quit or quit!.\n", l.path)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return l.sess.Flush(context.Background())
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			l.onFileEvent(ev)
		case werr, ok := <-watcher.Errors:
			if ok {
				fmt.Fprintf(l.out, "watch error: %v\n", werr)
			}
		case line, ok := <-lines:
			if !ok {
				// stdin closed: leave, keeping edits safe.
				return l.sess.Flush(ctx)
			}
			done, err := l.handle(ctx, line)
			if err != nil {
				fmt.Fprintf(l.out, "%s\n", describe(err))
			}
			if done {
				return nil
			}
		}
	}
}

func (l *editLoop) onFileEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != l.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
		return
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	if text := string(data); text != l.sess.Text() {
		l.sess.Edit(text)
	}
}

// handle runs one stdin command and reports whether the loop should end.
func (l *editLoop) handle(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "save":
		data, err := os.ReadFile(l.path)
		if err != nil {
			return false, err
		}
		if err := l.sess.Save(ctx, string(data)); err != nil {
			return false, err
		}
		fmt.Fprintln(l.out, "Saved.")
		return false, nil
	case "status":
		fmt.Fprintf(l.out, "%s %s\n", l.sess.LetterID(), l.sess.State())
		return false, nil
	case "open":
		if len(fields) != 2 {
			return false, errors.New("usage: open <id>")
		}
		return false, l.open(ctx, fields[1])
	case "quit":
		if err := l.sess.CheckLeave(); err != nil {
			return false, fmt.Errorf("%w: type save first, or quit! to discard", err)
		}
		return true, nil
	case "quit!":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

func (l *editLoop) open(ctx context.Context, id string) error {
	next, err := l.app.api.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.sess.Switch(ctx, id, next.ContentLatex); err != nil {
		return fmt.Errorf("stay on %s: %w", l.sess.LetterID(), err)
	}
	if err := l.app.ws.Select(id); err != nil {
		// The list may be stale; refresh once.
		if _, rerr := l.app.refresh(ctx); rerr != nil {
			err = rerr
		} else {
			err = l.app.ws.Select(id)
		}
		if err != nil {
			fmt.Fprintf(l.out, "warning: %s is open but not selected: %s\n", id, describe(err))
		}
	}
	return l.writeWorkingFile(id, next.ContentLatex)
}

func (l *editLoop) writeWorkingFile(id, body string) error {
	l.path = filepath.Join(l.dir, id+".tex")
	if err := os.WriteFile(l.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write working file: %w", err)
	}
	return nil
}
