package driving

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

// EditRequest is one natural-language edit applied to a document unit.
type EditRequest struct {
	// Target identifies what is being edited and carries its
	// current state.
	Target domain.EditTarget

	// Instruction is the natural-language edit instruction.
	Instruction string

	// Context carries the worksheet domain fields.
	Context domain.EditContext
}

// ImageFailure reports one image that could not be synthesized.
// The edit itself still succeeded; the placeholder keeps its previous
// payload when it had one, or no url at all.
type ImageFailure struct {
	// RequestID is the synthesis request that failed.
	RequestID string

	// Prompt is the image description that could not be fulfilled.
	Prompt string

	// Reason is the terminal failure after exhausted retries.
	Reason string
}

// EditResult is the outcome of one edit request. The caller can
// distinguish "edit failed, nothing changed" (Success false) from
// "edit applied, N of M new images could not be generated"
// (Success true with a non-empty ImageFailures list).
type EditResult struct {
	// Success reports whether the edit was applied.
	Success bool

	// Patch is the merged partial edit that was applied.
	Patch domain.EditPatch

	// Unit is the fully merged unit after image results were
	// written back.
	Unit domain.DocumentUnit

	// Changes describe the modifications for audit/display.
	Changes []domain.EditChange

	// ImageFailures lists images that kept no payload.
	ImageFailures []ImageFailure

	// Error holds the pipeline-level failure when Success is false.
	Error string
}

// EditService applies natural-language edits to worksheet units.
type EditService interface {
	// ApplyEdit runs the full edit-and-image-synthesis pipeline.
	// Required-field validation happens before any I/O; a validation
	// failure returns Success=false with no I/O performed.
	ApplyEdit(ctx context.Context, req EditRequest) (*EditResult, error)
}
