package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// HintStore persists the last designated template across sessions.
type HintStore interface {
	LoadTemplate() (string, error)
	SaveTemplate(id string) error
}

type state struct {
	TemplateLetterID string `toml:"template_letter_id"`
	GuestID          string `toml:"guest_id,omitempty"`
}

// FileHintStore keeps the hint in a TOML file.
type FileHintStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileHintStore returns a store at path.
func NewFileHintStore(path string) *FileHintStore {
	return &FileHintStore{Path: path}
}

// DefaultStatePath is $LETTERS_STATE_FILE or ~/.config/lettersctl/state.toml.
func DefaultStatePath() string {
	if p := strings.TrimSpace(os.Getenv("LETTERS_STATE_FILE")); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "lettersctl", "state.toml")
}

// LoadTemplate returns "" when no state file exists.
func (s *FileHintStore) LoadTemplate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	return strings.TrimSpace(st.TemplateLetterID), err
}

// SaveTemplate records id. An empty id clears the hint.
func (s *FileHintStore) SaveTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.TemplateLetterID = id
	return s.write(st)
}

// GuestID returns the persisted guest id, creating and saving one on first use.
func (s *FileHintStore) GuestID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return "", err
	}
	if id := strings.TrimSpace(st.GuestID); id != "" {
		return id, nil
	}
	st.GuestID = uuid.NewString()
	if err := s.write(st); err != nil {
		return "", err
	}
	return st.GuestID, nil
}

func (s *FileHintStore) read() (state, error) {
	var st state
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read state: %w", err)
	}
	if err := toml.Unmarshal(data, &st); err != nil {
		return state{}, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	return st, nil
}

// write replaces the file atomically.
func (s *FileHintStore) write(st state) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
