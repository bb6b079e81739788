package driven

import "context"

// SynthesisSpec describes one image to synthesize. Dimensions are
// normalized (rounded and clamped to the provider's accepted range)
// by the orchestrator before the spec reaches an implementation.
type SynthesisSpec struct {
	// Prompt describes the image, already augmented with the fixed
	// style qualifiers.
	Prompt string

	// Width and Height are the requested dimensions.
	Width  int
	Height int
}

// SynthesizedImage is a successful synthesis outcome.
type SynthesizedImage struct {
	// Payload is the image payload (URL or data URI).
	Payload string

	// Width and Height are the dimensions the provider actually
	// used, which may differ from the spec after provider-side
	// rounding.
	Width  int
	Height int
}

// ImageSynthesizer turns a prompt into an image payload.
//
// Implementations may include:
//   - OpenAI (images API)
//   - Any compatible generation endpoint
type ImageSynthesizer interface {
	// Synthesize generates one image. A provider error is returned
	// as-is; retry policy belongs to the orchestrator, not here.
	Synthesize(ctx context.Context, spec SynthesisSpec) (*SynthesizedImage, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
