package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Validation failures are surfaced before any I/O is performed.
	ErrInvalidInput = errors.New("invalid input")

	// Edit Proposer errors. A failure here fails the whole edit:
	// no partial patch is ever applied.

	// ErrProposerUnavailable indicates the Edit Proposer is not
	// configured or unreachable.
	ErrProposerUnavailable = errors.New("edit proposer unavailable")

	// ErrUnusableProposal indicates the Edit Proposer returned text
	// that could not be parsed into a structurally valid patch.
	ErrUnusableProposal = errors.New("unusable edit proposal")

	// Image Synthesizer errors. These are recovered locally: the edit
	// still succeeds and the failure is reported per image.

	// ErrSynthesizerUnavailable indicates the Image Synthesizer is
	// not configured.
	ErrSynthesizerUnavailable = errors.New("image synthesizer unavailable")

	// ErrSynthesisFailed indicates a request exhausted all attempts.
	ErrSynthesisFailed = errors.New("image synthesis failed")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Thumbnail errors.

	// ErrRendererUnavailable indicates no thumbnail renderer is
	// configured.
	ErrRendererUnavailable = errors.New("thumbnail renderer unavailable")
)
