package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type call struct {
	id   string
	text string
	at   time.Duration
}

type recordingSaver struct {
	mu    sync.Mutex
	clock *manualClock
	calls []call
	err   error
}

func (r *recordingSaver) UpdateContent(_ context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var at time.Duration
	if r.clock != nil {
		r.clock.mu.Lock()
		at = r.clock.now
		r.clock.mu.Unlock()
	}
	r.calls = append(r.calls, call{id: id, text: text, at: at})
	return r.err
}

func (r *recordingSaver) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func newTestSession(t *testing.T, debounce time.Duration, policy SwitchPolicy) (*Session, *manualClock, *recordingSaver) {
	t.Helper()
	clock := &manualClock{}
	saver := &recordingSaver{clock: clock}
	s := NewSession(saver, "letter-a", "original", Options{Debounce: debounce, Clock: clock, Policy: policy})
	return s, clock, saver
}

func TestDebounceCoalescesEdits(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchFlush)

	s.Edit("E1")
	clock.Advance(100 * time.Millisecond)
	s.Edit("E2")
	clock.Advance(time.Second)

	calls := saver.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one save, got %d: %+v", len(calls), calls)
	}
	if calls[0].text != "E2" || calls[0].at != 400*time.Millisecond {
		t.Fatalf("unexpected save %+v", calls[0])
	}
	if s.IsDirty() || s.State() != Clean {
		t.Fatalf("expected clean after save, got %v", s.State())
	}
}

func TestNoSaveBeforeQuietPeriod(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchFlush)
	s.Edit("E1")
	clock.Advance(299 * time.Millisecond)
	if len(saver.snapshot()) != 0 {
		t.Fatalf("saved too early")
	}
	if s.State() != Dirty {
		t.Fatalf("expected dirty, got %v", s.State())
	}
	clock.Advance(time.Millisecond)
	if len(saver.snapshot()) != 1 {
		t.Fatalf("expected save at deadline")
	}
}

func TestExplicitSaveCancelsPendingTimer(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchFlush)

	s.Edit("draft")
	clock.Advance(50 * time.Millisecond)
	if err := s.Save(context.Background(), "draft plus"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if clock.pending() != 0 {
		t.Fatalf("expected timer cancelled")
	}
	clock.Advance(time.Second)

	calls := saver.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one save, got %+v", calls)
	}
	if calls[0].text != "draft plus" || calls[0].at != 50*time.Millisecond {
		t.Fatalf("unexpected save %+v", calls[0])
	}
	if s.IsDirty() {
		t.Fatalf("expected clean")
	}
}

func TestFailedSaveStaysDirty(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchFlush)
	saver.err = errors.New("network down")
	var reported error
	s.onError = func(_ string, err error) { reported = err }

	s.Edit("E1")
	clock.Advance(300 * time.Millisecond)
	if !s.IsDirty() {
		t.Fatalf("failed autosave must leave session dirty")
	}
	if reported == nil {
		t.Fatalf("expected error hook")
	}
	if err := s.CheckLeave(); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("expected guard, got %v", err)
	}

	// No automatic retry.
	clock.Advance(10 * time.Second)
	if n := len(saver.snapshot()); n != 1 {
		t.Fatalf("expected no retry, got %d calls", n)
	}

	if err := s.Save(context.Background(), "E1"); err == nil {
		t.Fatalf("expected explicit save error")
	}
	saver.err = nil
	if err := s.Save(context.Background(), "E1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.IsDirty() || s.CheckLeave() != nil {
		t.Fatalf("expected clean after successful retry")
	}
}

func TestGuardClearWhenClean(t *testing.T) {
	s, _, _ := newTestSession(t, 0, SwitchFlush)
	if err := s.CheckLeave(); err != nil {
		t.Fatalf("fresh session must be clean, got %v", err)
	}
	if s.debounce != DefaultDebounce {
		t.Fatalf("expected default debounce, got %v", s.debounce)
	}
}

// A save that completes after a newer edit must not mark the session clean.
func TestSupersededSaveKeepsDirty(t *testing.T) {
	clock := &manualClock{}
	var s *Session
	saver := SaverFunc(func(_ context.Context, _, text string) error {
		if text == "E1" {
			s.Edit("E2")
		}
		return nil
	})
	s = NewSession(saver, "letter-a", "", Options{Debounce: 100 * time.Millisecond, Clock: clock})

	s.Edit("E1")
	clock.Advance(100 * time.Millisecond)
	if !s.IsDirty() {
		t.Fatalf("edit during in-flight save must keep dirty")
	}
	clock.Advance(100 * time.Millisecond)
	if s.IsDirty() {
		t.Fatalf("expected clean after second save")
	}
}

func TestSwitchFlushSavesBeforeSwitching(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchFlush)
	s.Edit("unsaved")
	clock.Advance(100 * time.Millisecond)

	if err := s.Switch(context.Background(), "letter-b", "b body"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	calls := saver.snapshot()
	if len(calls) != 1 || calls[0].id != "letter-a" || calls[0].text != "unsaved" {
		t.Fatalf("expected flush of letter-a, got %+v", calls)
	}
	clock.Advance(time.Second)
	if len(saver.snapshot()) != 1 {
		t.Fatalf("old timer must not fire after switch")
	}
	if s.LetterID() != "letter-b" || s.Text() != "b body" || s.IsDirty() {
		t.Fatalf("unexpected session after switch: %s %q dirty=%v", s.LetterID(), s.Text(), s.IsDirty())
	}
}

func TestSwitchFlushRefusesOnFailure(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchFlush)
	saver.err = errors.New("boom")
	s.Edit("unsaved")
	clock.Advance(10 * time.Millisecond)

	if err := s.Switch(context.Background(), "letter-b", "b"); err == nil {
		t.Fatalf("expected switch to be refused")
	}
	if s.LetterID() != "letter-a" || s.Text() != "unsaved" || !s.IsDirty() {
		t.Fatalf("session must stay on letter-a with edits")
	}
}

func TestSwitchDiscardDropsEdits(t *testing.T) {
	s, clock, saver := newTestSession(t, 300*time.Millisecond, SwitchDiscard)
	s.Edit("unsaved")
	clock.Advance(100 * time.Millisecond)

	if err := s.Switch(context.Background(), "letter-b", "b"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	clock.Advance(time.Second)
	if n := len(saver.snapshot()); n != 0 {
		t.Fatalf("expected discarded edits, got %d saves", n)
	}
	if s.IsDirty() {
		t.Fatalf("expected clean after discard")
	}
}

func TestStateHookSequence(t *testing.T) {
	s, clock, _ := newTestSession(t, 100*time.Millisecond, SwitchFlush)
	var states []State
	s.onState = func(_ string, st State) { states = append(states, st) }

	s.Edit("x")
	clock.Advance(100 * time.Millisecond)

	want := []State{Dirty, Saving, Clean}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestSaveWithoutLetter(t *testing.T) {
	s := NewSession(&recordingSaver{}, "", "", Options{Clock: &manualClock{}})
	if err := s.Save(context.Background(), "x"); !errors.Is(err, ErrNoLetter) {
		t.Fatalf("expected ErrNoLetter, got %v", err)
	}
	if s.IsDirty() {
		t.Fatalf("rejected save must not mark the session dirty")
	}
	if err := s.CheckLeave(); err != nil {
		t.Fatalf("CheckLeave after rejected save: %v", err)
	}
	if s.Text() != "" {
		t.Fatalf("rejected save must not replace the buffer, got %q", s.Text())
	}
}

func TestCloseCancelsTimer(t *testing.T) {
	s, clock, saver := newTestSession(t, 100*time.Millisecond, SwitchFlush)
	s.Edit("x")
	s.Close()
	clock.Advance(time.Second)
	if len(saver.snapshot()) != 0 {
		t.Fatalf("closed session must not save")
	}
}
