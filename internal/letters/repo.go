package letters

import "context"

// Repo persists letters. Every call is scoped to the owning user.
// Create assigns the id when empty and sets both timestamps; Update is a
// merge and bumps UpdatedAt.
type Repo interface {
	Create(ctx context.Context, letter Letter) (Letter, error)
	GetByID(ctx context.Context, userID, id string) (Letter, error)
	ListByUser(ctx context.Context, userID string) ([]Letter, error)
	Update(ctx context.Context, userID, id string, patch Patch) (Letter, error)
	Delete(ctx context.Context, userID, id string) error
}
