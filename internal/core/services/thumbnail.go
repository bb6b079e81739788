package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
	"github.com/pagecraft/pagecraft/internal/logger"
)

// Ensure ThumbnailCache implements the interface.
var _ driving.ThumbnailService = (*ThumbnailCache)(nil)

// ThumbnailCache serves cached previews of document units and
// guarantees at most one concurrent generation per unit id.
//
// The in-flight set guarded by the mutex is the sole mutual-exclusion
// mechanism: a caller that finds the id in flight receives the
// fallback payload immediately instead of blocking or starting a
// duplicate. The cache is constructed explicitly and injected rather
// than shared as a global, so independent caches per session are
// possible.
type ThumbnailCache struct {
	store    driven.ThumbnailStore
	renderer driven.ThumbnailRenderer

	mu       sync.Mutex
	inFlight map[string]struct{}

	now func() time.Time
}

// NewThumbnailCache creates a thumbnail cache over the given store
// and renderer.
func NewThumbnailCache(store driven.ThumbnailStore, renderer driven.ThumbnailRenderer) *ThumbnailCache {
	return &ThumbnailCache{
		store:    store,
		renderer: renderer,
		inFlight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Get returns the cached payload, or nil when absent. It never
// triggers generation.
func (t *ThumbnailCache) Get(ctx context.Context, unitID string) []byte {
	record, err := t.store.Get(ctx, unitID)
	if err != nil {
		return nil
	}
	return record.Payload
}

// GetOrGenerate returns the cached payload if present; otherwise it
// renders and caches one, unless a generation for this id is already
// in flight, in which case the fallback payload is returned
// immediately. A failed generation returns the fallback and caches
// nothing.
func (t *ThumbnailCache) GetOrGenerate(ctx context.Context, unitID string, unit domain.DocumentUnit) []byte {
	payload, _ := t.getOrGenerate(ctx, unitID, unit)
	return payload
}

// getOrGenerate reports whether the returned payload is a real
// preview (cached or freshly rendered) rather than the fallback.
func (t *ThumbnailCache) getOrGenerate(ctx context.Context, unitID string, unit domain.DocumentUnit) ([]byte, bool) {
	if record, err := t.store.Get(ctx, unitID); err == nil {
		return record.Payload, true
	}

	t.mu.Lock()
	if _, running := t.inFlight[unitID]; running {
		t.mu.Unlock()
		logger.Debug("thumbnail: generation for %s already in flight, serving fallback", unitID)
		return t.renderer.Fallback(), false
	}
	t.inFlight[unitID] = struct{}{}
	t.mu.Unlock()

	payload, err := t.renderer.Render(ctx, unit)

	t.mu.Lock()
	delete(t.inFlight, unitID)
	t.mu.Unlock()

	if err != nil {
		logger.Warn("thumbnail: generation for %s failed: %v", unitID, err)
		return t.renderer.Fallback(), false
	}

	record := domain.ThumbnailRecord{
		UnitID:      unitID,
		Payload:     payload,
		GeneratedAt: t.now(),
	}
	if err := t.store.Put(ctx, record); err != nil {
		logger.Warn("thumbnail: caching %s failed: %v", unitID, err)
	}
	return payload, true
}

// Invalidate removes any cached entry. An in-flight generation is
// unaffected and may re-populate the cache when it completes; this
// is intended behavior.
func (t *ThumbnailCache) Invalidate(ctx context.Context, unitID string) {
	if err := t.store.Delete(ctx, unitID); err != nil {
		logger.Warn("thumbnail: invalidating %s failed: %v", unitID, err)
	}
}

// BatchGenerate runs GetOrGenerate for every unit concurrently. A
// failure for one unit does not affect others; the returned map
// contains only units that ultimately succeeded.
func (t *ThumbnailCache) BatchGenerate(ctx context.Context, units []domain.ThumbnailUnit) map[string][]byte {
	previews := make(map[string][]byte, len(units))
	var previewsMu sync.Mutex

	var group errgroup.Group
	for _, unit := range units {
		group.Go(func() error {
			payload, ok := t.getOrGenerate(ctx, unit.ID, unit.Unit)
			if !ok {
				return nil
			}
			previewsMu.Lock()
			previews[unit.ID] = payload
			previewsMu.Unlock()
			return nil
		})
	}
	// Failures are reflected by absence from the map, never as errors.
	_ = group.Wait()
	return previews
}
