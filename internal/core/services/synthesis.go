package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
	"github.com/pagecraft/pagecraft/internal/logger"
)

// Retry policy for one synthesis request. Attempts beyond the first
// wait according to the backoff policy; retries for one request are
// strictly sequential while sibling requests stay independent.
const (
	synthesisMaxAttempts = 3
	synthesisBaseDelay   = time.Second
)

// Provider dimension constraints. Requested sizes are rounded to the
// step and clamped to the accepted range before dispatch.
const (
	dimensionStep = 64
	dimensionMin  = 256
	dimensionMax  = 2048
)

// styleQualifiers are appended to every prompt that does not already
// carry them, keeping output child-appropriate and visually
// consistent across a worksheet.
const styleQualifiers = "child-friendly, bright flat illustration, no embedded text"

// SynthesisOrchestrator discovers which patch elements need a freshly
// synthesized image, dispatches those requests concurrently with
// bounded retry, and writes successful results back into the patch.
type SynthesisOrchestrator struct {
	synthesizer driven.ImageSynthesizer
	maxAttempts int
	backoff     BackoffPolicy
	sleep       func(context.Context, time.Duration) error
}

// NewSynthesisOrchestrator creates an orchestrator with the default
// retry policy of 3 attempts and linearly increasing backoff.
func NewSynthesisOrchestrator(synthesizer driven.ImageSynthesizer) *SynthesisOrchestrator {
	return &SynthesisOrchestrator{
		synthesizer: synthesizer,
		maxAttempts: synthesisMaxAttempts,
		backoff:     LinearBackoff(synthesisBaseDelay),
		sleep:       sleepWithContext,
	}
}

// CollectRequests scans a patch for image placeholders that have a
// prompt but no payload. For pages, each request id encodes the
// element's array index and id so results map back unambiguously.
func (o *SynthesisOrchestrator) CollectRequests(patch domain.EditPatch, unitType domain.UnitType) []domain.ImageSynthesisRequest {
	var requests []domain.ImageSynthesisRequest

	switch unitType {
	case domain.UnitComponent:
		prompt := domain.PropString(patch.Properties, domain.PropImagePrompt)
		url := domain.PropString(patch.Properties, domain.PropURL)
		if prompt != "" && url == "" {
			requests = append(requests, domain.ImageSynthesisRequest{
				ID:     requestID(0, "component"),
				Prompt: prompt,
				Width:  dimensionOrDefault(patch.Properties, domain.PropWidth, domain.DefaultImageWidth),
				Height: dimensionOrDefault(patch.Properties, domain.PropHeight, domain.DefaultImageHeight),
			})
		}

	case domain.UnitPage:
		for i, el := range patch.Elements {
			if el.Type != domain.TypeImagePlaceholder {
				continue
			}
			prompt := domain.PropString(el.Properties, domain.PropImagePrompt)
			url := domain.PropString(el.Properties, domain.PropURL)
			if prompt == "" || url != "" {
				continue
			}
			requests = append(requests, domain.ImageSynthesisRequest{
				ID:     requestID(i, el.ID),
				Prompt: prompt,
				Width:  dimensionOrDefault(el.Properties, domain.PropWidth, domain.DefaultImageWidth),
				Height: dimensionOrDefault(el.Properties, domain.PropHeight, domain.DefaultImageHeight),
			})
		}
	}

	return requests
}

// Generate dispatches all requests concurrently and resolves every
// one of them: each input request is paired with either a success or
// a terminal failure after exhausted retries. One request's failure
// never aborts or delays its siblings.
func (o *SynthesisOrchestrator) Generate(ctx context.Context, requests []domain.ImageSynthesisRequest) []domain.ImageSynthesisResult {
	if len(requests) == 0 {
		return nil
	}
	if o.synthesizer == nil {
		results := make([]domain.ImageSynthesisResult, len(requests))
		for i, req := range requests {
			results[i] = domain.ImageSynthesisResult{ID: req.ID, Err: domain.ErrSynthesizerUnavailable.Error()}
		}
		return results
	}

	results := make([]domain.ImageSynthesisResult, len(requests))
	var group errgroup.Group
	for i, req := range requests {
		group.Go(func() error {
			results[i] = o.generateOne(ctx, req)
			return nil
		})
	}
	// Goroutines only record results, so the group never errors.
	_ = group.Wait()
	return results
}

// generateOne runs the retry loop for a single request.
func (o *SynthesisOrchestrator) generateOne(ctx context.Context, req domain.ImageSynthesisRequest) domain.ImageSynthesisResult {
	spec := driven.SynthesisSpec{
		Prompt: AugmentPrompt(req.Prompt),
		Width:  NormalizeDimension(req.Width),
		Height: NormalizeDimension(req.Height),
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		image, err := o.synthesizer.Synthesize(ctx, spec)
		if err == nil {
			logger.Debug("synthesis: request %s succeeded on attempt %d", req.ID, attempt)
			return domain.ImageSynthesisResult{
				ID:      req.ID,
				Success: true,
				Payload: image.Payload,
				Width:   image.Width,
				Height:  image.Height,
			}
		}
		lastErr = err
		logger.Warn("synthesis: request %s attempt %d failed: %v", req.ID, attempt, err)

		if attempt < o.maxAttempts {
			if err := o.sleep(ctx, o.backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	return domain.ImageSynthesisResult{
		ID:  req.ID,
		Err: fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, lastErr).Error(),
	}
}

// ApplyResults writes successful payloads back into the patch.
// Results that failed or cannot be mapped are skipped, leaving the
// placeholder without a url; the caller surfaces the partial failure.
func (o *SynthesisOrchestrator) ApplyResults(patch domain.EditPatch, unitType domain.UnitType, results []domain.ImageSynthesisResult) domain.EditPatch {
	switch unitType {
	case domain.UnitComponent:
		for _, result := range results {
			if !result.Success {
				continue
			}
			patch.Properties = setProperty(patch.Properties, domain.PropURL, result.Payload)
			break
		}

	case domain.UnitPage:
		for _, result := range results {
			if !result.Success {
				continue
			}
			index, elementID, ok := parseRequestID(result.ID)
			if !ok || index < 0 || index >= len(patch.Elements) {
				logger.Warn("synthesis: result %s has no matching element", result.ID)
				continue
			}
			if elementID != "" && patch.Elements[index].ID != elementID {
				logger.Warn("synthesis: result %s element id mismatch", result.ID)
				continue
			}
			patch.Elements[index].Properties = setProperty(
				patch.Elements[index].Properties, domain.PropURL, result.Payload)
		}
	}

	return patch
}

// AugmentPrompt appends the fixed style qualifiers unless equivalent
// qualifiers are already present. Augmenting twice never duplicates.
func AugmentPrompt(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "child-friendly") {
		return prompt
	}
	if prompt == "" {
		return styleQualifiers
	}
	return prompt + ", " + styleQualifiers
}

// NormalizeDimension rounds to the provider's step and clamps to its
// accepted range.
func NormalizeDimension(value int) int {
	if value <= 0 {
		value = dimensionMin
	}
	rounded := ((value + dimensionStep/2) / dimensionStep) * dimensionStep
	if rounded < dimensionMin {
		return dimensionMin
	}
	if rounded > dimensionMax {
		return dimensionMax
	}
	return rounded
}

// requestID encodes an element's array index and id.
func requestID(index int, elementID string) string {
	return strconv.Itoa(index) + ":" + elementID
}

// parseRequestID decodes a request id back into index and element id.
func parseRequestID(id string) (int, string, bool) {
	indexPart, elementID, found := strings.Cut(id, ":")
	if !found {
		return 0, "", false
	}
	index, err := strconv.Atoi(indexPart)
	if err != nil {
		return 0, "", false
	}
	return index, elementID, true
}

func setProperty(props map[string]any, key string, value any) map[string]any {
	if props == nil {
		props = make(map[string]any)
	}
	props[key] = value
	return props
}
