// Package memory provides in-memory implementations of driven storage ports.
package memory

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

// Ensure ThumbnailStore implements the interface.
var _ driven.ThumbnailStore = (*ThumbnailStore)(nil)

// DefaultThumbnailCacheSize bounds the number of cached previews.
const DefaultThumbnailCacheSize = 256

// ThumbnailStore is an in-memory, LRU-evicting implementation of
// driven.ThumbnailStore. Eviction supersedes explicit invalidation
// for units that fall out of the working set.
type ThumbnailStore struct {
	cache *lru.Cache[string, domain.ThumbnailRecord]
}

// NewThumbnailStore creates an in-memory store holding at most size
// records. A non-positive size falls back to the default.
func NewThumbnailStore(size int) (*ThumbnailStore, error) {
	if size <= 0 {
		size = DefaultThumbnailCacheSize
	}
	cache, err := lru.New[string, domain.ThumbnailRecord](size)
	if err != nil {
		return nil, fmt.Errorf("create thumbnail cache: %w", err)
	}
	return &ThumbnailStore{cache: cache}, nil
}

// Get retrieves a record by unit id.
func (s *ThumbnailStore) Get(_ context.Context, unitID string) (*domain.ThumbnailRecord, error) {
	record, ok := s.cache.Get(unitID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// Put stores or supersedes a record.
func (s *ThumbnailStore) Put(_ context.Context, record domain.ThumbnailRecord) error {
	s.cache.Add(record.UnitID, record)
	return nil
}

// Delete removes a record.
func (s *ThumbnailStore) Delete(_ context.Context, unitID string) error {
	s.cache.Remove(unitID)
	return nil
}

// Len returns the number of cached records.
func (s *ThumbnailStore) Len() int {
	return s.cache.Len()
}
