package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
)

func componentUnitJSON(t *testing.T) json.RawMessage {
	t.Helper()
	unit := domain.ComponentUnit(domain.Component{
		ID:         "el-1",
		Type:       "text",
		Properties: map[string]any{"content": "Hello"},
	})
	raw, err := json.Marshal(unit)
	require.NoError(t, err)
	return raw
}

func TestServer_handleApplyEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("returns edit result", func(t *testing.T) {
		merged := domain.ComponentUnit(domain.Component{
			ID:         "el-1",
			Type:       "text",
			Properties: map[string]any{"content": "Goodbye"},
		})
		mockEdit := &mockEditService{
			result: &driving.EditResult{
				Success: true,
				Unit:    merged,
				Changes: []domain.EditChange{{TargetID: "el-1", Description: "Replaced greeting"}},
			},
		}

		server, err := NewServer(&Ports{Edit: mockEdit})
		require.NoError(t, err)

		input := ApplyEditInput{
			UnitType:    "component",
			PageID:      "page-1",
			ElementID:   "el-1",
			Unit:        componentUnitJSON(t),
			Instruction: "change the greeting",
			Topic:       "Dinosaurs",
			AgeGroup:    "6-8",
		}
		_, output, err := server.handleApplyEdit(ctx, nil, input)

		require.NoError(t, err)
		assert.True(t, output.Success)
		require.NotNil(t, output.Unit)
		assert.Equal(t, "Goodbye", output.Unit.Component.Properties["content"])
		require.Len(t, output.Changes, 1)

		// The request was faithfully translated
		assert.Equal(t, domain.UnitComponent, mockEdit.lastReq.Target.UnitType)
		assert.Equal(t, "el-1", mockEdit.lastReq.Target.ElementID)
		assert.Equal(t, "Dinosaurs", mockEdit.lastReq.Context.Topic)
	})

	t.Run("reports image failures", func(t *testing.T) {
		mockEdit := &mockEditService{
			result: &driving.EditResult{
				Success: true,
				ImageFailures: []driving.ImageFailure{
					{RequestID: "0:el-1", Prompt: "a red ball", Reason: "image synthesis failed"},
				},
			},
		}

		server, err := NewServer(&Ports{Edit: mockEdit})
		require.NoError(t, err)

		input := ApplyEditInput{
			UnitType:    "component",
			Unit:        componentUnitJSON(t),
			Instruction: "anything",
			Topic:       "Space",
			AgeGroup:    "9-11",
		}
		_, output, err := server.handleApplyEdit(ctx, nil, input)

		require.NoError(t, err)
		require.Len(t, output.ImageFailures, 1)
		assert.Equal(t, "a red ball", output.ImageFailures[0].Prompt)
	})

	t.Run("returns error on edit failure", func(t *testing.T) {
		mockEdit := &mockEditService{err: errors.New("edit proposer unavailable")}

		server, err := NewServer(&Ports{Edit: mockEdit})
		require.NoError(t, err)

		input := ApplyEditInput{
			UnitType:    "component",
			Unit:        componentUnitJSON(t),
			Instruction: "anything",
		}
		_, _, err = server.handleApplyEdit(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "edit proposer unavailable")
	})

	t.Run("rejects undecodable unit", func(t *testing.T) {
		server, err := NewServer(&Ports{Edit: &mockEditService{}})
		require.NoError(t, err)

		input := ApplyEditInput{Unit: json.RawMessage(`not json`)}
		_, _, err = server.handleApplyEdit(ctx, nil, input)

		assert.Error(t, err)
	})
}

func TestServer_handleRenderThumbnail(t *testing.T) {
	ctx := context.Background()

	t.Run("returns preview as base64", func(t *testing.T) {
		mockThumbnail := &mockThumbnailService{payload: []byte("PNG_DATA")}

		server, err := NewServer(&Ports{Edit: &mockEditService{}, Thumbnail: mockThumbnail})
		require.NoError(t, err)

		input := RenderThumbnailInput{UnitID: "page-1", Unit: componentUnitJSON(t)}
		_, output, err := server.handleRenderThumbnail(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("PNG_DATA")), output.PNG)
		assert.Equal(t, "page-1", mockThumbnail.lastUnitID)
	})

	t.Run("falls back to the unit's own id", func(t *testing.T) {
		mockThumbnail := &mockThumbnailService{payload: []byte("PNG_DATA")}

		server, err := NewServer(&Ports{Edit: &mockEditService{}, Thumbnail: mockThumbnail})
		require.NoError(t, err)

		input := RenderThumbnailInput{Unit: componentUnitJSON(t)}
		_, _, err = server.handleRenderThumbnail(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "el-1", mockThumbnail.lastUnitID)
	})

	t.Run("empty payload is an error", func(t *testing.T) {
		server, err := NewServer(&Ports{Edit: &mockEditService{}, Thumbnail: &mockThumbnailService{}})
		require.NoError(t, err)

		input := RenderThumbnailInput{UnitID: "page-1", Unit: componentUnitJSON(t)}
		_, _, err = server.handleRenderThumbnail(ctx, nil, input)

		assert.ErrorIs(t, err, domain.ErrRendererUnavailable)
	})
}
