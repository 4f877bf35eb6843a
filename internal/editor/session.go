// Package editor holds the autosave state machine for one open letter.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coverletter-backend/internal/shared/metrics"
	"coverletter-backend/internal/shared/telemetry"
)

// DefaultDebounce is the quiet period after the last edit before autosaving.
const DefaultDebounce = 800 * time.Millisecond

var (
	// ErrUnsavedChanges is returned by CheckLeave while edits are unpersisted.
	ErrUnsavedChanges = errors.New("unsaved changes")
	// ErrNoLetter is returned when saving with no letter open.
	ErrNoLetter = errors.New("no letter open")
)

// State is the observable autosave state.
type State int

const (
	Clean State = iota
	Dirty
	Saving
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SwitchPolicy decides what happens to unsaved edits when another letter is opened.
type SwitchPolicy int

const (
	// SwitchFlush persists dirty text before switching and refuses the switch if that fails.
	SwitchFlush SwitchPolicy = iota
	// SwitchDiscard drops dirty text and cancels the pending save.
	SwitchDiscard
)

// Saver persists a letter body.
type Saver interface {
	UpdateContent(ctx context.Context, letterID, contentLatex string) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, letterID, contentLatex string) error

// UpdateContent implements Saver.
func (f SaverFunc) UpdateContent(ctx context.Context, letterID, contentLatex string) error {
	return f(ctx, letterID, contentLatex)
}

// Options configures a Session. Zero values pick defaults.
type Options struct {
	Debounce time.Duration
	Clock    Clock
	Policy   SwitchPolicy
	// Context is used for timer-driven saves.
	Context context.Context
	// OnState is called after every state change, outside the session lock.
	OnState func(letterID string, s State)
	// OnError receives failures of timer-driven saves.
	OnError func(letterID string, err error)
}

// Session tracks one open letter. Edits are buffered and persisted after
// the debounce period; an explicit Save persists immediately and cancels
// the pending timer. A failed save leaves the session dirty.
type Session struct {
	saver    Saver
	clock    Clock
	debounce time.Duration
	policy   SwitchPolicy
	ctx      context.Context
	onState  func(string, State)
	onError  func(string, error)

	// saveMu orders store writes; mu is never held across a store call.
	saveMu sync.Mutex

	mu       sync.Mutex
	letterID string
	live     string
	dirty    bool
	saving   int
	gen      uint64
	timer    Timer
}

// NewSession opens letterID with its persisted body.
func NewSession(saver Saver, letterID, body string, opts Options) *Session {
	s := &Session{
		saver:    saver,
		clock:    opts.Clock,
		debounce: opts.Debounce,
		policy:   opts.Policy,
		ctx:      opts.Context,
		onState:  opts.OnState,
		onError:  opts.OnError,
		letterID: letterID,
		live:     body,
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	return s
}

// LetterID returns the open letter.
func (s *Session) LetterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.letterID
}

// Text returns the live buffer.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// State reports the current state. Saving wins over Dirty.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.saving > 0:
		return Saving
	case s.dirty:
		return Dirty
	default:
		return Clean
	}
}

// IsDirty reports whether edits are not yet confirmed persisted.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// CheckLeave returns ErrUnsavedChanges while dirty.
func (s *Session) CheckLeave() error {
	if s.IsDirty() {
		return ErrUnsavedChanges
	}
	return nil
}

// Edit buffers text and restarts the debounce timer.
func (s *Session) Edit(text string) {
	s.mu.Lock()
	s.live = text
	s.dirty = true
	s.gen++
	gen := s.gen
	s.stopTimerLocked()
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(gen) })
	id, st := s.letterID, s.stateLocked()
	s.mu.Unlock()
	s.notify(id, st)
}

func (s *Session) fire(gen uint64) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || !s.dirty || s.letterID == "" {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	id, text := s.letterID, s.live
	s.saving++
	s.mu.Unlock()
	s.notify(id, Saving)

	err := s.persist(s.ctx, id, text, gen)
	if err != nil && s.onError != nil {
		s.onError(id, err)
	}
}

// Save cancels any pending autosave and persists current right away.
// current becomes the live buffer.
func (s *Session) Save(ctx context.Context, current string) error {
	s.mu.Lock()
	id := s.letterID
	if id == "" {
		s.mu.Unlock()
		return ErrNoLetter
	}
	s.stopTimerLocked()
	s.live = current
	s.dirty = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if gen != s.gen {
		// A newer edit or save took over; it owns persistence now.
		s.mu.Unlock()
		return nil
	}
	s.saving++
	s.mu.Unlock()
	s.notify(id, Saving)

	return s.persist(ctx, id, current, gen)
}

// Flush saves the live buffer if dirty.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	dirty, text := s.dirty, s.live
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	return s.Save(ctx, text)
}

// persist runs with saveMu held and the saving counter raised.
func (s *Session) persist(ctx context.Context, id, text string, gen uint64) error {
	err := s.saver.UpdateContent(ctx, id, text)

	s.mu.Lock()
	s.saving--
	if err == nil && gen == s.gen && id == s.letterID {
		s.dirty = false
	}
	st := s.stateLocked()
	s.mu.Unlock()

	if err != nil {
		metrics.IncAutosaveFailed()
		telemetry.Error("autosave.failed", map[string]any{"letter_id": id, "err": err})
		err = fmt.Errorf("save letter %s: %w", id, err)
	}
	s.notify(id, st)
	return err
}

// Switch opens another letter. Under SwitchFlush dirty text is saved first
// and a failed save keeps the current letter open.
func (s *Session) Switch(ctx context.Context, letterID, body string) error {
	if s.policy == SwitchFlush {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	} else if s.IsDirty() {
		telemetry.Warn("autosave.discarded", map[string]any{"letter_id": s.LetterID()})
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	s.letterID = letterID
	s.live = body
	s.dirty = false
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(letterID, st)
	return nil
}

// Close cancels the pending timer without saving.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.gen++
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) notify(id string, st State) {
	if s.onState != nil {
		s.onState(id, st)
	}
}
