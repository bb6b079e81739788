package driven

import (
	"context"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

// ProposeRequest is the input to one Edit Proposer call. The unit is
// already encoded: embedded image payloads have been replaced with
// compact textual markers so the proposer never sees payload bytes.
type ProposeRequest struct {
	// EncodedUnit is the JSON-serialized unit with image markers.
	EncodedUnit string

	// UnitType tells the proposer which patch shape to produce.
	UnitType domain.UnitType

	// Instruction is the natural-language edit instruction.
	Instruction string

	// Context carries topic, age group, difficulty, language and the
	// opaque caller identity.
	Context domain.EditContext
}

// EditProposer turns an instruction plus an encoded document unit
// into a proposed partial edit.
//
// The response is raw text: a JSON envelope {patch, changes} that may
// be embedded in free text and may contain the codec's image markers.
// The codec decodes/restores markers before the patch is treated as
// structured data, so the upstream text channel is never assumed
// reliable.
//
// Implementations may include:
//   - OpenAI (chat completions)
//   - Any compatible completion API
type EditProposer interface {
	// Propose returns the proposer's raw response text.
	Propose(ctx context.Context, req ProposeRequest) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
