package driving

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

// ThumbnailService serves visual previews of document units.
// It is decoupled from the edit path and safe for concurrent use.
type ThumbnailService interface {
	// Get returns the cached payload, or nil when absent.
	// It never triggers generation.
	Get(ctx context.Context, unitID string) []byte

	// GetOrGenerate returns the cached payload if present. When a
	// generation for the id is already in flight it returns an
	// immediate low-fidelity fallback without blocking or starting a
	// duplicate. Otherwise it renders, caches and returns the result;
	// on failure it returns the fallback without caching.
	GetOrGenerate(ctx context.Context, unitID string, unit domain.DocumentUnit) []byte

	// Invalidate removes any cached entry. An in-flight generation is
	// unaffected and may re-populate the cache when it completes.
	Invalidate(ctx context.Context, unitID string)

	// BatchGenerate runs GetOrGenerate for every unit concurrently.
	// The returned map contains only units that ultimately succeeded.
	BatchGenerate(ctx context.Context, units []domain.ThumbnailUnit) map[string][]byte
}
