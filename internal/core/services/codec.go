package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/logger"
)

// Image marker grammar. Markers are compact textual stand-ins for
// embedded image payloads so the Edit Proposer never sees payload
// bytes:
//
//	{{img:<id>|<prompt>|<w>x<h>}}      existing image, keep as-is
//	{{new-img:<prompt>|<w>x<h>}}       synthesize a new image here
//
// A kept marker referencing an id the codec never issued is treated
// as needing regeneration, never as an error: the upstream text
// channel cannot be assumed reliable.
var (
	keptMarkerRe = regexp.MustCompile(`\{\{img:([^|{}]+)\|([^|{}]*)\|(\d+)x(\d+)\}\}`)
	newMarkerRe  = regexp.MustCompile(`\{\{new-img:([^|{}]*)\|(\d+)x(\d+)\}\}`)

	// Inline markdown images with an embedded data URI payload,
	// e.g. ![Old dinosaur](data:image/png;base64,....)
	inlineImageRe = regexp.MustCompile(`!\[([^\]]*)\]\((data:image/[^)]+)\)`)
)

// ImageCodec hides embedded image payloads behind textual markers
// before a unit is sent to the Edit Proposer, and restores them
// afterwards for any marker the proposer left untouched.
//
// The codec is a pure text/metadata transform: it never calls the
// Image Synthesizer and holds no state beyond the placeholder map it
// returns, which is owned by the caller for one edit round trip.
type ImageCodec struct {
	// newID generates placeholder and request ids. Unique per call
	// is sufficient; ids are never reused across round trips.
	newID func() string
}

// NewImageCodec creates a codec with UUID-based id generation.
func NewImageCodec() *ImageCodec {
	return &ImageCodec{newID: func() string { return uuid.New().String() }}
}

// Encode replaces every embedded image payload in the unit with a
// marker and returns the encoded copy plus the placeholder records.
// The input unit is never mutated.
func (c *ImageCodec) Encode(unit domain.DocumentUnit) (domain.DocumentUnit, map[string]domain.ImagePlaceholderRecord) {
	placeholders := make(map[string]domain.ImagePlaceholderRecord)
	encoded := unit.Clone()

	switch encoded.Type {
	case domain.UnitComponent:
		if encoded.Component != nil {
			c.encodeComponent(encoded.Component, placeholders)
		}
	case domain.UnitPage:
		if encoded.Page != nil {
			for i := range encoded.Page.Elements {
				c.encodeComponent(&encoded.Page.Elements[i], placeholders)
			}
		}
	}

	logger.Debug("codec: encoded %d image payload(s)", len(placeholders))
	return encoded, placeholders
}

// encodeComponent hides the component's url payload and any inline
// data-URI images embedded in its string properties.
func (c *ImageCodec) encodeComponent(comp *domain.Component, placeholders map[string]domain.ImagePlaceholderRecord) {
	if comp.Properties == nil {
		return
	}

	if payload := domain.PropString(comp.Properties, domain.PropURL); payload != "" {
		record := domain.ImagePlaceholderRecord{
			ID:              c.newID(),
			OriginalPayload: payload,
			Prompt:          promptForComponent(*comp),
			Width:           dimensionOrDefault(comp.Properties, domain.PropWidth, domain.DefaultImageWidth),
			Height:          dimensionOrDefault(comp.Properties, domain.PropHeight, domain.DefaultImageHeight),
			SourceMarkup:    payload,
		}
		placeholders[record.ID] = record
		comp.Properties[domain.PropURL] = keptMarker(record)
	}

	for key, value := range comp.Properties {
		if key == domain.PropURL {
			continue
		}
		text, ok := value.(string)
		if !ok || !strings.Contains(text, "data:image/") {
			continue
		}
		comp.Properties[key] = inlineImageRe.ReplaceAllStringFunc(text, func(match string) string {
			parts := inlineImageRe.FindStringSubmatch(match)
			prompt := parts[1]
			if prompt == "" {
				prompt = "image"
			}
			record := domain.ImagePlaceholderRecord{
				ID:              c.newID(),
				OriginalPayload: parts[2],
				Prompt:          prompt,
				Width:           domain.DefaultImageWidth,
				Height:          domain.DefaultImageHeight,
				SourceMarkup:    match,
			}
			placeholders[record.ID] = record
			return keptMarker(record)
		})
	}
}

// Decode scans the Edit Proposer's raw response for markers and
// reports which placeholders to keep and which images must be newly
// synthesized. A kept marker with an unknown id degrades to a new
// synthesis request rather than failing the edit.
func (c *ImageCodec) Decode(rawText string, placeholders map[string]domain.ImagePlaceholderRecord) (map[string]struct{}, []domain.ImageSynthesisRequest) {
	keep := make(map[string]struct{})
	var requests []domain.ImageSynthesisRequest

	for _, match := range keptMarkerRe.FindAllStringSubmatch(rawText, -1) {
		id := match[1]
		if _, known := placeholders[id]; known {
			keep[id] = struct{}{}
			continue
		}
		logger.Warn("codec: unknown placeholder id %q, scheduling regeneration", id)
		requests = append(requests, domain.ImageSynthesisRequest{
			ID:     c.newID(),
			Prompt: match[2],
			Width:  atoiOr(match[3], domain.DefaultImageWidth),
			Height: atoiOr(match[4], domain.DefaultImageHeight),
		})
	}

	for _, match := range newMarkerRe.FindAllStringSubmatch(rawText, -1) {
		requests = append(requests, domain.ImageSynthesisRequest{
			ID:     c.newID(),
			Prompt: match[1],
			Width:  atoiOr(match[2], domain.DefaultImageWidth),
			Height: atoiOr(match[3], domain.DefaultImageHeight),
		})
	}

	return keep, requests
}

// Restore substitutes the original markup back for every kept marker
// whose id is known. Markers with unknown ids are left untouched for
// the merge step to treat as missing; payloads are never invented.
// The raw text is still JSON at this point, so the markup is escaped
// for a JSON string context; plain data URIs pass through unchanged.
func (c *ImageCodec) Restore(rawText string, placeholders map[string]domain.ImagePlaceholderRecord) string {
	return keptMarkerRe.ReplaceAllStringFunc(rawText, func(match string) string {
		id := keptMarkerRe.FindStringSubmatch(match)[1]
		record, known := placeholders[id]
		if !known {
			return match
		}
		return jsonEscapeString(record.SourceMarkup)
	})
}

// jsonEscapeString escapes s for embedding inside a JSON string
// literal. Strings with nothing to escape come back unchanged.
func jsonEscapeString(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(encoded[1 : len(encoded)-1])
}

// NormalizePatch rewrites marker strings that survived into parsed
// patch fields. A new-image marker becomes {imagePrompt, width,
// height} with an empty url; a kept marker that survived Restore has
// an unknown id and is likewise cleared for regeneration. After
// normalization the orchestrator's request collection is the single
// source of synthesis needs.
func (c *ImageCodec) NormalizePatch(patch *domain.EditPatch) {
	if patch == nil {
		return
	}
	normalizeProperties(patch.Properties)
	for i := range patch.Elements {
		normalizeProperties(patch.Elements[i].Properties)
	}
}

func normalizeProperties(props map[string]any) {
	if props == nil {
		return
	}
	url := domain.PropString(props, domain.PropURL)
	if url == "" {
		return
	}

	if match := newMarkerRe.FindStringSubmatch(url); match != nil {
		props[domain.PropURL] = ""
		props[domain.PropImagePrompt] = match[1]
		props[domain.PropWidth] = atoiOr(match[2], domain.DefaultImageWidth)
		props[domain.PropHeight] = atoiOr(match[3], domain.DefaultImageHeight)
		return
	}

	if match := keptMarkerRe.FindStringSubmatch(url); match != nil {
		// Known ids were already restored to real payloads, so this
		// marker is a hallucinated reference. Regenerate.
		props[domain.PropURL] = ""
		if match[2] != "" {
			props[domain.PropImagePrompt] = match[2]
		}
		props[domain.PropWidth] = atoiOr(match[3], domain.DefaultImageWidth)
		props[domain.PropHeight] = atoiOr(match[4], domain.DefaultImageHeight)
	}
}

// ExtractInlineRequests scans the patch's string properties for image
// markers the proposer embedded in running text (as opposed to url
// fields, which NormalizePatch handles) and returns one synthesis
// request per marker. New-image markers are rewritten in place into
// id-bearing markers so ApplyInlineResults can find them again; a kept
// marker still present in a string after Restore has an unknown id and
// is rescheduled under its own id.
func (c *ImageCodec) ExtractInlineRequests(patch *domain.EditPatch) []domain.ImageSynthesisRequest {
	if patch == nil {
		return nil
	}
	var requests []domain.ImageSynthesisRequest
	requests = c.extractInline(patch.Properties, requests)
	for i := range patch.Elements {
		requests = c.extractInline(patch.Elements[i].Properties, requests)
	}
	return requests
}

func (c *ImageCodec) extractInline(props map[string]any, requests []domain.ImageSynthesisRequest) []domain.ImageSynthesisRequest {
	if props == nil {
		return requests
	}
	for key, value := range props {
		if key == domain.PropURL {
			continue
		}
		text, ok := value.(string)
		if !ok || !strings.Contains(text, "{{") {
			continue
		}

		// Unknown kept markers first: they already carry an id, and
		// scanning them before the rewrite below keeps freshly issued
		// ids out of this pass.
		for _, match := range keptMarkerRe.FindAllStringSubmatch(text, -1) {
			requests = append(requests, domain.ImageSynthesisRequest{
				ID:     match[1],
				Prompt: match[2],
				Width:  atoiOr(match[3], domain.DefaultImageWidth),
				Height: atoiOr(match[4], domain.DefaultImageHeight),
			})
		}

		props[key] = newMarkerRe.ReplaceAllStringFunc(text, func(match string) string {
			m := newMarkerRe.FindStringSubmatch(match)
			request := domain.ImageSynthesisRequest{
				ID:     c.newID(),
				Prompt: m[1],
				Width:  atoiOr(m[2], domain.DefaultImageWidth),
				Height: atoiOr(m[3], domain.DefaultImageHeight),
			}
			requests = append(requests, request)
			return keptMarker(domain.ImagePlaceholderRecord{
				ID:     request.ID,
				Prompt: request.Prompt,
				Width:  request.Width,
				Height: request.Height,
			})
		})
	}
	return requests
}

// ApplyInlineResults substitutes synthesis results for the id-bearing
// markers ExtractInlineRequests left in string properties. A success
// becomes an inline markdown image; a failure strips the marker so
// marker text never reaches user-visible content. The caller surfaces
// failures through the request/result pairing.
func (c *ImageCodec) ApplyInlineResults(patch *domain.EditPatch, results []domain.ImageSynthesisResult) {
	if patch == nil || len(results) == 0 {
		return
	}
	byID := make(map[string]domain.ImageSynthesisResult, len(results))
	for _, result := range results {
		byID[result.ID] = result
	}
	applyInline(patch.Properties, byID)
	for i := range patch.Elements {
		applyInline(patch.Elements[i].Properties, byID)
	}
}

func applyInline(props map[string]any, results map[string]domain.ImageSynthesisResult) {
	if props == nil {
		return
	}
	for key, value := range props {
		if key == domain.PropURL {
			continue
		}
		text, ok := value.(string)
		if !ok || !strings.Contains(text, "{{img:") {
			continue
		}
		props[key] = keptMarkerRe.ReplaceAllStringFunc(text, func(match string) string {
			m := keptMarkerRe.FindStringSubmatch(match)
			result, ok := results[m[1]]
			if !ok {
				return match
			}
			if !result.Success {
				return ""
			}
			return fmt.Sprintf("![%s](%s)", m[2], result.Payload)
		})
	}
}

// keptMarker renders the marker text for an encoded placeholder.
func keptMarker(record domain.ImagePlaceholderRecord) string {
	return fmt.Sprintf("{{img:%s|%s|%dx%d}}",
		record.ID, sanitizePrompt(record.Prompt), record.Width, record.Height)
}

// NewImageMarker renders a new-image marker. Exposed for prompt
// templates that teach the Edit Proposer the marker grammar.
func NewImageMarker(prompt string, width, height int) string {
	return fmt.Sprintf("{{new-img:%s|%dx%d}}", sanitizePrompt(prompt), width, height)
}

// promptForComponent extracts a human-readable prompt: imagePrompt,
// falling back to alt, then caption, then the literal "image".
func promptForComponent(comp domain.Component) string {
	for _, key := range []string{domain.PropImagePrompt, domain.PropAlt, domain.PropCaption} {
		if prompt := domain.PropString(comp.Properties, key); prompt != "" {
			return prompt
		}
	}
	return "image"
}

// sanitizePrompt strips marker syntax characters from a prompt so it
// cannot break the marker grammar.
func sanitizePrompt(prompt string) string {
	return strings.NewReplacer("|", " ", "{", "", "}", "").Replace(prompt)
}

func dimensionOrDefault(props map[string]any, key string, fallback int) int {
	if v := domain.PropInt(props, key); v > 0 {
		return v
	}
	return fallback
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
