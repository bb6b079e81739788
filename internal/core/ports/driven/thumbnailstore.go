package driven

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

// ThumbnailStore persists cached previews. The cache service owns all
// in-flight bookkeeping; stores only hold completed records.
//
// Implementations may include:
//   - In-memory LRU (per-process, evicting)
//   - SQLite (persistent across runs)
type ThumbnailStore interface {
	// Get retrieves a record by unit id.
	// Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, unitID string) (*domain.ThumbnailRecord, error)

	// Put stores or supersedes a record.
	Put(ctx context.Context, record domain.ThumbnailRecord) error

	// Delete removes a record. Deleting an absent record is not an
	// error.
	Delete(ctx context.Context, unitID string) error
}
