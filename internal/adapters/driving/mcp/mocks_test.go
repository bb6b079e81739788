package mcp

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
)

// mockEditService is a mock implementation of driving.EditService.
type mockEditService struct {
	result  *driving.EditResult
	err     error
	lastReq driving.EditRequest
}

func (m *mockEditService) ApplyEdit(_ context.Context, req driving.EditRequest) (*driving.EditResult, error) {
	m.lastReq = req
	return m.result, m.err
}

// mockThumbnailService is a mock implementation of driving.ThumbnailService.
type mockThumbnailService struct {
	payload    []byte
	lastUnitID string
}

func (m *mockThumbnailService) Get(_ context.Context, _ string) []byte {
	return m.payload
}

func (m *mockThumbnailService) GetOrGenerate(_ context.Context, unitID string, _ domain.DocumentUnit) []byte {
	m.lastUnitID = unitID
	return m.payload
}

func (m *mockThumbnailService) Invalidate(_ context.Context, _ string) {}

func (m *mockThumbnailService) BatchGenerate(_ context.Context, units []domain.ThumbnailUnit) map[string][]byte {
	previews := make(map[string][]byte, len(units))
	for _, unit := range units {
		previews[unit.ID] = m.payload
	}
	return previews
}
