package letters

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Letter // userID -> letters in creation order
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string][]Letter),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new letter.
func (r *MemoryRepo) Create(ctx context.Context, letter Letter) (Letter, error) {
	if err := ctx.Err(); err != nil {
		return Letter{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if letter.ID == "" {
		letter.ID = uuid.NewString()
	}
	for _, existing := range r.data[letter.UserID] {
		if existing.ID == letter.ID {
			return Letter{}, ErrInvalidInput
		}
	}
	now := r.now()
	letter.CreatedAt = now
	letter.UpdatedAt = now
	r.data[letter.UserID] = append(r.data[letter.UserID], letter)
	return letter, nil
}

// GetByID returns a letter by id for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Letter, error) {
	if err := ctx.Err(); err != nil {
		return Letter{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(userID, id)
	if i < 0 {
		return Letter{}, ErrNotFound
	}
	return r.data[userID][i], nil
}

// ListByUser returns a user's letters, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Letter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.data[userID]
	out := make([]Letter, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// Update merges patch into the stored letter.
func (r *MemoryRepo) Update(ctx context.Context, userID, id string, patch Patch) (Letter, error) {
	if err := ctx.Err(); err != nil {
		return Letter{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(userID, id)
	if i < 0 {
		return Letter{}, ErrNotFound
	}
	updated := r.data[userID][i].Apply(patch)
	updated.UpdatedAt = r.now()
	r.data[userID][i] = updated
	return updated, nil
}

// Delete removes a letter.
func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(userID, id)
	if i < 0 {
		return ErrNotFound
	}
	src := r.data[userID]
	r.data[userID] = append(src[:i:i], src[i+1:]...)
	return nil
}

func (r *MemoryRepo) indexOf(userID, id string) int {
	for i, l := range r.data[userID] {
		if l.ID == id {
			return i
		}
	}
	return -1
}

var _ Repo = (*MemoryRepo)(nil)
