package domain

// Default dimensions used when a placeholder carries no explicit size.
const (
	DefaultImageWidth  = 640
	DefaultImageHeight = 480
)

// ImagePlaceholderRecord is created by the codec for every embedded
// image payload found in a unit before encoding. Its lifetime is
// exactly one edit-request round trip; it is owned by the codec
// invocation that created it and is never persisted or shared.
type ImagePlaceholderRecord struct {
	// ID is unique within one encode call.
	ID string

	// OriginalPayload is the image payload that was hidden.
	OriginalPayload string

	// Prompt is the human-readable description extracted from the
	// component (imagePrompt, falling back to alt/caption, falling
	// back to "image").
	Prompt string

	// Width and Height are the image dimensions.
	Width  int
	Height int

	// SourceMarkup is the original markup fragment the marker
	// replaced, restored verbatim for unchanged images.
	SourceMarkup string
}

// ImageSynthesisRequest is a pending image generation. It is produced
// either by the orchestrator (scanning a patch for placeholders
// lacking a payload) or by the codec (new prompts introduced by the
// Edit Proposer), and consumed exactly once.
type ImageSynthesisRequest struct {
	// ID maps the eventual result back to its origin.
	ID string `json:"id"`

	// Prompt describes the image to synthesize.
	Prompt string `json:"prompt"`

	// Width and Height are the requested dimensions before
	// provider-side normalization.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageSynthesisResult is the terminal outcome for one request.
// Success and Payload are mutually required.
type ImageSynthesisResult struct {
	// ID matches the originating request.
	ID string `json:"id"`

	// Success reports whether a payload was produced.
	Success bool `json:"success"`

	// Payload is the image payload (URL or data URI) on success.
	Payload string `json:"payload,omitempty"`

	// Err describes the terminal failure after exhausted retries.
	Err string `json:"error,omitempty"`

	// Width and Height are the dimensions the provider actually
	// used, which may differ from the request after rounding.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}
