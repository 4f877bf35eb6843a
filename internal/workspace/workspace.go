// Package workspace is the client-side application state: the fetched
// letter list, the selected letter and the template designation.
package workspace

import (
	"context"
	"fmt"
	"sync"

	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/shared/telemetry"
)

// Deleter removes a letter from the store.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Workspace is safe for concurrent use.
type Workspace struct {
	mu       sync.RWMutex
	letters  []letters.Letter
	selected string
	template string
	hints    HintStore
}

// New returns an empty workspace. If hints is non-nil the persisted
// template id is restored and every template change is written back.
func New(hints HintStore) *Workspace {
	w := &Workspace{hints: hints}
	if hints != nil {
		id, err := hints.LoadTemplate()
		if err != nil {
			telemetry.Warn("workspace.hint_load_failed", map[string]any{"err": err})
		}
		w.template = id
	}
	return w
}

// SetLetters replaces the list (newest first). Selection and template ids
// that no longer exist are dropped.
func (w *Workspace) SetLetters(list []letters.Letter) {
	w.mu.Lock()
	w.letters = append([]letters.Letter(nil), list...)
	if w.indexOfLocked(w.selected) < 0 {
		w.selected = ""
	}
	clearTemplate := w.template != "" && w.indexOfLocked(w.template) < 0
	if clearTemplate {
		w.template = ""
	}
	w.mu.Unlock()
	if clearTemplate {
		w.persistTemplate("")
	}
}

// Letters returns a copy of the list.
func (w *Workspace) Letters() []letters.Letter {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]letters.Letter(nil), w.letters...)
}

// Find returns the letter with id from the list.
func (w *Workspace) Find(id string) (letters.Letter, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if i := w.indexOfLocked(id); i >= 0 {
		return w.letters[i], true
	}
	return letters.Letter{}, false
}

// Select marks id as the open letter. An empty id clears the selection.
func (w *Workspace) Select(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id != "" && w.indexOfLocked(id) < 0 {
		return fmt.Errorf("select %s: %w", id, letters.ErrNotFound)
	}
	w.selected = id
	return nil
}

// Selected returns the open letter id, or "".
func (w *Workspace) Selected() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.selected
}

// SetTemplate designates id as the template and persists the hint.
func (w *Workspace) SetTemplate(id string) error {
	w.mu.Lock()
	if w.indexOfLocked(id) < 0 {
		w.mu.Unlock()
		return fmt.Errorf("template %s: %w", id, letters.ErrNotFound)
	}
	w.template = id
	w.mu.Unlock()
	w.persistTemplate(id)
	return nil
}

// ClearTemplate removes the template designation.
func (w *Workspace) ClearTemplate() {
	w.mu.Lock()
	w.template = ""
	w.mu.Unlock()
	w.persistTemplate("")
}

// Template returns the template id, or "".
func (w *Workspace) Template() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.template
}

// Add inserts a newly created letter at the head and selects it.
func (w *Workspace) Add(l letters.Letter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexOfLocked(l.ID); i >= 0 {
		w.letters = append(w.letters[:i:i], w.letters[i+1:]...)
	}
	w.letters = append([]letters.Letter{l}, w.letters...)
	w.selected = l.ID
}

// Replace swaps in a fresh copy of a letter already in the list.
func (w *Workspace) Replace(l letters.Letter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexOfLocked(l.ID); i >= 0 {
		w.letters[i] = l
	}
}

// Delete removes id from the store and reconciles the state in the same step.
// On store failure nothing changes locally.
func (w *Workspace) Delete(ctx context.Context, store Deleter, id string) error {
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	w.ReconcileDelete(id)
	return nil
}

// ReconcileDelete drops id from the list. If it was selected, the letter
// that took its index is selected, else the previous one, else nothing.
// If it was the template, the template is cleared and never reassigned.
func (w *Workspace) ReconcileDelete(id string) {
	w.mu.Lock()
	i := w.indexOfLocked(id)
	if i >= 0 {
		w.letters = append(w.letters[:i:i], w.letters[i+1:]...)
	}
	if w.selected == id {
		switch {
		case i >= 0 && i < len(w.letters):
			w.selected = w.letters[i].ID
		case i > 0:
			w.selected = w.letters[i-1].ID
		case i < 0 && len(w.letters) > 0:
			w.selected = w.letters[0].ID
		default:
			w.selected = ""
		}
	}
	clearTemplate := w.template == id
	if clearTemplate {
		w.template = ""
	}
	w.mu.Unlock()
	if clearTemplate {
		w.persistTemplate("")
	}
}

func (w *Workspace) indexOfLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, l := range w.letters {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (w *Workspace) persistTemplate(id string) {
	if w.hints == nil {
		return
	}
	if err := w.hints.SaveTemplate(id); err != nil {
		telemetry.Warn("workspace.hint_save_failed", map[string]any{"err": err, "template_id": id})
	}
}
