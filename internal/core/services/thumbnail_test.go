package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/internal/adapters/driven/storage/memory"
	"github.com/pagecraft/pagecraft/internal/core/domain"
)

var fallbackPayload = []byte("FALLBACK")

// fakeRenderer renders a deterministic payload per unit id and can be
// made to block until released, or to fail.
type fakeRenderer struct {
	mu      sync.Mutex
	renders int
	fail    bool

	// When set, Render blocks until release is closed.
	block   chan struct{}
	started chan struct{}
}

func (r *fakeRenderer) Render(_ context.Context, unit domain.DocumentUnit) ([]byte, error) {
	r.mu.Lock()
	r.renders++
	started := r.started
	r.started = nil
	r.mu.Unlock()

	if started != nil {
		close(started)
	}
	if r.block != nil {
		<-r.block
	}
	if r.fail {
		return nil, errors.New("render failed")
	}
	return []byte("PNG_" + unit.ID()), nil
}

func (r *fakeRenderer) Fallback() []byte { return fallbackPayload }

func (r *fakeRenderer) renderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

func pageUnit(id string) domain.DocumentUnit {
	return domain.PageUnit(domain.Page{PageID: id, Title: "Worksheet"})
}

func newTestStore(t *testing.T) *memory.ThumbnailStore {
	t.Helper()
	store, err := memory.NewThumbnailStore(0)
	require.NoError(t, err)
	return store
}

func TestThumbnailCache_Get_NeverGenerates(t *testing.T) {
	renderer := &fakeRenderer{}
	cache := NewThumbnailCache(newTestStore(t), renderer)

	payload := cache.Get(context.Background(), "page-1")

	assert.Nil(t, payload)
	assert.Equal(t, 0, renderer.renderCount())
}

func TestThumbnailCache_GetOrGenerate_RendersAndCaches(t *testing.T) {
	renderer := &fakeRenderer{}
	store := newTestStore(t)
	cache := NewThumbnailCache(store, renderer)
	ctx := context.Background()

	payload := cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))
	require.Equal(t, []byte("PNG_page-1"), payload)

	// Second call is served from cache
	payload = cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))
	assert.Equal(t, []byte("PNG_page-1"), payload)
	assert.Equal(t, 1, renderer.renderCount())
}

func TestThumbnailCache_GetOrGenerate_FallbackWhileInFlight(t *testing.T) {
	renderer := &fakeRenderer{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	started := renderer.started
	cache := NewThumbnailCache(newTestStore(t), renderer)
	ctx := context.Background()

	var first []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		first = cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))
	}()
	<-started

	// A second request for the same unit gets the fallback right away
	// and never starts a duplicate render.
	second := cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))
	assert.Equal(t, fallbackPayload, second)
	assert.Equal(t, 1, renderer.renderCount())

	close(renderer.block)
	<-done
	assert.Equal(t, []byte("PNG_page-1"), first)
}

func TestThumbnailCache_GetOrGenerate_FailureCachesNothing(t *testing.T) {
	renderer := &fakeRenderer{fail: true}
	store := newTestStore(t)
	cache := NewThumbnailCache(store, renderer)
	ctx := context.Background()

	payload := cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))

	assert.Equal(t, fallbackPayload, payload)
	_, err := store.Get(ctx, "page-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The failed attempt released the in-flight slot
	renderer.fail = false
	payload = cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))
	assert.Equal(t, []byte("PNG_page-1"), payload)
}

func TestThumbnailCache_Invalidate(t *testing.T) {
	renderer := &fakeRenderer{}
	store := newTestStore(t)
	cache := NewThumbnailCache(store, renderer)
	ctx := context.Background()

	cache.GetOrGenerate(ctx, "page-1", pageUnit("page-1"))
	cache.Invalidate(ctx, "page-1")

	assert.Nil(t, cache.Get(ctx, "page-1"))

	// Invalidating an absent entry is not an error
	cache.Invalidate(ctx, "never-cached")
}

func TestThumbnailCache_BatchGenerate(t *testing.T) {
	renderer := &fakeRenderer{}
	cache := NewThumbnailCache(newTestStore(t), renderer)

	previews := cache.BatchGenerate(context.Background(), []domain.ThumbnailUnit{
		{ID: "page-1", Unit: pageUnit("page-1")},
		{ID: "page-2", Unit: pageUnit("page-2")},
	})

	require.Len(t, previews, 2)
	assert.Equal(t, []byte("PNG_page-1"), previews["page-1"])
	assert.Equal(t, []byte("PNG_page-2"), previews["page-2"])
}

func TestThumbnailCache_BatchGenerate_OmitsFailures(t *testing.T) {
	renderer := &fakeRenderer{fail: true}
	cache := NewThumbnailCache(newTestStore(t), renderer)

	previews := cache.BatchGenerate(context.Background(), []domain.ThumbnailUnit{
		{ID: "page-1", Unit: pageUnit("page-1")},
	})

	assert.Empty(t, previews)
}

func TestLinearBackoff(t *testing.T) {
	backoff := LinearBackoff(time.Second)

	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, time.Second, backoff(0))
}

func TestSleepWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepWithContext(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
}
