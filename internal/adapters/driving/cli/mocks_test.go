package cli

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
)

// setupTestServices replaces the package services with mocks and
// returns a cleanup that restores the originals.
func setupTestServices() func() {
	oldEdit := editService
	oldThumbnail := thumbnailService
	oldConfig := configStore

	editService = &mockEditService{
		result: &driving.EditResult{
			Success: true,
			Unit: domain.ComponentUnit(domain.Component{
				ID:         "el-1",
				Type:       "text",
				Properties: map[string]any{"content": "updated"},
			}),
			Changes: []domain.EditChange{
				{TargetID: "el-1", Description: "Rewrote the text"},
			},
		},
	}
	thumbnailService = &mockThumbnailService{payload: []byte("PNGDATA")}
	configStore = newMockConfigStore()

	return func() {
		editService = oldEdit
		thumbnailService = oldThumbnail
		configStore = oldConfig
	}
}

type mockEditService struct {
	result  *driving.EditResult
	err     error
	lastReq driving.EditRequest
}

var _ driving.EditService = (*mockEditService)(nil)

func (m *mockEditService) ApplyEdit(_ context.Context, req driving.EditRequest) (*driving.EditResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockThumbnailService struct {
	payload     []byte
	lastUnitID  string
	invalidated []string
}

var _ driving.ThumbnailService = (*mockThumbnailService)(nil)

func (m *mockThumbnailService) Get(_ context.Context, unitID string) []byte {
	m.lastUnitID = unitID
	return m.payload
}

func (m *mockThumbnailService) GetOrGenerate(_ context.Context, unitID string, _ domain.DocumentUnit) []byte {
	m.lastUnitID = unitID
	return m.payload
}

func (m *mockThumbnailService) Invalidate(_ context.Context, unitID string) {
	m.invalidated = append(m.invalidated, unitID)
}

func (m *mockThumbnailService) BatchGenerate(_ context.Context, units []domain.ThumbnailUnit) map[string][]byte {
	out := make(map[string][]byte, len(units))
	for _, u := range units {
		out[u.ID] = m.payload
	}
	return out
}

type mockConfigStore struct {
	data map[string]any
}

var _ driven.ConfigStore = (*mockConfigStore)(nil)

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{data: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	if s, ok := m.data[key].(string); ok {
		return s
	}
	return ""
}

func (m *mockConfigStore) GetInt(key string) int {
	if i, ok := m.data[key].(int); ok {
		return i
	}
	return 0
}

func (m *mockConfigStore) GetBool(key string) bool {
	if b, ok := m.data[key].(bool); ok {
		return b
	}
	return false
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string {
	return "/tmp/mock-config.toml"
}
