package letters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"coverletter-backend/internal/shared/faults"
	"coverletter-backend/internal/shared/storage/object"
	"coverletter-backend/internal/shared/telemetry"
)

const maxLatexBytes = 1 << 20 // 1MB

// Service implements letter CRUD on top of a Repo.
type Service struct {
	Repo Repo
	// Store archives raw uploaded files; nil disables archiving.
	Store object.ObjectStore
}

// List returns the user's letters, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Letter, error) {
	out, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, faults.Persistence("list letters", err)
	}
	return out, nil
}

// Get returns one letter.
func (s *Service) Get(ctx context.Context, userID, id string) (Letter, error) {
	letter, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return Letter{}, storeErr("get letter", err)
	}
	return letter, nil
}

// Upload creates a letter from pasted LaTeX. The body is stored verbatim
// and metadata starts out unknown.
func (s *Service) Upload(ctx context.Context, userID, contentLatex string) (Letter, error) {
	if err := validateLatex(contentLatex); err != nil {
		return Letter{}, err
	}
	letter, err := s.Repo.Create(ctx, Letter{UserID: userID, ContentLatex: contentLatex})
	if err != nil {
		return Letter{}, faults.Persistence("create letter", err)
	}
	return letter, nil
}

// UploadFile creates a letter from an uploaded .tex file and archives the
// raw file when a Store is configured.
func (s *Service) UploadFile(ctx context.Context, userID, fileName string, r io.Reader) (Letter, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxLatexBytes+1))
	if err != nil {
		return Letter{}, fmt.Errorf("%w: unable to read file", ErrInvalidInput)
	}
	content := string(data)
	if err := validateLatex(content); err != nil {
		return Letter{}, err
	}

	letter := Letter{UserID: userID, ContentLatex: content}
	if s.Store != nil {
		key, _, _, err := s.Store.Save(ctx, userID, fileName, bytes.NewReader(data))
		if err != nil {
			return Letter{}, faults.Persistence("archive upload", err)
		}
		letter.SourceKey = &key
	}

	created, err := s.Repo.Create(ctx, letter)
	if err != nil {
		return Letter{}, faults.Persistence("create letter", err)
	}
	return created, nil
}

// Update merges patch into the letter.
func (s *Service) Update(ctx context.Context, userID, id string, patch Patch) (Letter, error) {
	if patch.IsEmpty() {
		return Letter{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if patch.ContentLatex != nil {
		// An emptied body is a legitimate autosave.
		if err := validateLatexBody(*patch.ContentLatex); err != nil {
			return Letter{}, err
		}
	}
	if patch.TemplateID != nil {
		if *patch.TemplateID == id {
			return Letter{}, fmt.Errorf("%w: a letter cannot be its own template", ErrInvalidInput)
		}
		if _, err := s.Repo.GetByID(ctx, userID, *patch.TemplateID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Letter{}, fmt.Errorf("%w: template not found", ErrInvalidInput)
			}
			return Letter{}, faults.Persistence("get template", err)
		}
	}
	letter, err := s.Repo.Update(ctx, userID, id, patch)
	if err != nil {
		return Letter{}, storeErr("update letter", err)
	}
	return letter, nil
}

// Delete removes the letter and, best effort, its archived source file.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	letter, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return storeErr("get letter", err)
	}
	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return storeErr("delete letter", err)
	}
	if s.Store != nil && letter.SourceKey != nil {
		if err := s.Store.Delete(ctx, *letter.SourceKey); err != nil {
			telemetry.Warn("letters.source_delete_failed", map[string]any{
				"letter_id": id,
				"error":     err,
			})
		}
	}
	return nil
}

func validateLatex(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: contentLatex is required", ErrInvalidInput)
	}
	return validateLatexBody(content)
}

func validateLatexBody(content string) error {
	switch {
	case len(content) > maxLatexBytes:
		return fmt.Errorf("%w: contentLatex too large", ErrInvalidInput)
	case !utf8.ValidString(content):
		return fmt.Errorf("%w: contentLatex must be UTF-8 text", ErrInvalidInput)
	}
	return nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return faults.Persistence(op, err)
}
