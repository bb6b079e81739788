package driven

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

// ThumbnailRenderer rasterizes a document unit into preview image
// bytes. Rendering is local and synchronous; the cache service above
// it decides when rendering happens at all.
type ThumbnailRenderer interface {
	// Render produces the preview image bytes for a unit.
	Render(ctx context.Context, unit domain.DocumentUnit) ([]byte, error)

	// Fallback returns the low-fidelity payload served while a
	// generation is in flight or after a failure. It must be cheap
	// and must never fail.
	Fallback() []byte
}
