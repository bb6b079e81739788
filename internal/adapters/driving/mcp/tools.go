package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
)

// ApplyEditInput is the input schema for the apply_edit tool.
type ApplyEditInput struct {
	UnitType    string          `json:"unit_type" jsonschema:"the kind of unit being edited: component or page"`
	PageID      string          `json:"page_id" jsonschema:"the page the edit applies to"`
	ElementID   string          `json:"element_id,omitempty" jsonschema:"the element being edited (component edits only)"`
	Unit        json.RawMessage `json:"unit" jsonschema:"the current unit state as JSON"`
	Instruction string          `json:"instruction" jsonschema:"the natural-language edit instruction"`
	Topic       string          `json:"topic" jsonschema:"the worksheet topic"`
	AgeGroup    string          `json:"age_group" jsonschema:"the target age group"`
	Difficulty  string          `json:"difficulty,omitempty" jsonschema:"the difficulty level"`
	Language    string          `json:"language,omitempty" jsonschema:"the worksheet language"`
	CallerID    string          `json:"caller_id,omitempty" jsonschema:"opaque caller identity for audit"`
}

// ApplyEditOutput is the output schema for the apply_edit tool.
type ApplyEditOutput struct {
	Success       bool                 `json:"success"`
	Unit          *domain.DocumentUnit `json:"unit,omitempty"`
	Changes       []domain.EditChange  `json:"changes,omitempty"`
	ImageFailures []ImageFailureOutput `json:"image_failures,omitempty"`
}

// ImageFailureOutput reports one image that could not be synthesized.
type ImageFailureOutput struct {
	Prompt string `json:"prompt"`
	Reason string `json:"reason"`
}

// RenderThumbnailInput is the input schema for the render_thumbnail tool.
type RenderThumbnailInput struct {
	UnitID string          `json:"unit_id" jsonschema:"the unit id the preview is cached under"`
	Unit   json.RawMessage `json:"unit" jsonschema:"the unit state to render as JSON"`
}

// RenderThumbnailOutput is the output schema for the render_thumbnail tool.
type RenderThumbnailOutput struct {
	// PNG is the preview image, base64 encoded.
	PNG string `json:"png"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "apply_edit",
		Description: "Apply a natural-language edit to a worksheet component or page, synthesizing any images the edit introduces",
	}, s.handleApplyEdit)

	if s.ports.Thumbnail != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "render_thumbnail",
			Description: "Render a small PNG preview of a worksheet component or page",
		}, s.handleRenderThumbnail)
	}
}

// handleApplyEdit handles the apply_edit tool invocation.
func (s *Server) handleApplyEdit(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ApplyEditInput,
) (*mcp.CallToolResult, ApplyEditOutput, error) {
	var unit domain.DocumentUnit
	if err := json.Unmarshal(input.Unit, &unit); err != nil {
		return nil, ApplyEditOutput{}, fmt.Errorf("decode unit: %w", err)
	}

	result, err := s.ports.Edit.ApplyEdit(ctx, driving.EditRequest{
		Target: domain.EditTarget{
			UnitType:  domain.UnitType(input.UnitType),
			PageID:    input.PageID,
			ElementID: input.ElementID,
			Unit:      unit,
		},
		Instruction: input.Instruction,
		Context: domain.EditContext{
			Topic:      input.Topic,
			AgeGroup:   input.AgeGroup,
			Difficulty: input.Difficulty,
			Language:   input.Language,
			CallerID:   input.CallerID,
		},
	})
	if err != nil {
		return nil, ApplyEditOutput{}, err
	}

	output := ApplyEditOutput{
		Success: result.Success,
		Unit:    &result.Unit,
		Changes: result.Changes,
	}
	for _, failure := range result.ImageFailures {
		output.ImageFailures = append(output.ImageFailures, ImageFailureOutput{
			Prompt: failure.Prompt,
			Reason: failure.Reason,
		})
	}

	return nil, output, nil
}

// handleRenderThumbnail handles the render_thumbnail tool invocation.
func (s *Server) handleRenderThumbnail(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RenderThumbnailInput,
) (*mcp.CallToolResult, RenderThumbnailOutput, error) {
	var unit domain.DocumentUnit
	if err := json.Unmarshal(input.Unit, &unit); err != nil {
		return nil, RenderThumbnailOutput{}, fmt.Errorf("decode unit: %w", err)
	}

	unitID := input.UnitID
	if unitID == "" {
		unitID = unit.ID()
	}

	payload := s.ports.Thumbnail.GetOrGenerate(ctx, unitID, unit)
	if len(payload) == 0 {
		return nil, RenderThumbnailOutput{}, fmt.Errorf("render thumbnail: %w", domain.ErrRendererUnavailable)
	}

	return nil, RenderThumbnailOutput{
		PNG: base64.StdEncoding.EncodeToString(payload),
	}, nil
}
