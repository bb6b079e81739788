package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
	"github.com/pagecraft/pagecraft/internal/logger"
)

// Ensure EditPipeline implements the interface.
var _ driving.EditService = (*EditPipeline)(nil)

// EditPipeline runs one edit request end to end: encode images out of
// the unit, obtain a proposal, restore unchanged images, merge the
// patch without losing payloads, synthesize the images the edit now
// needs, and return the final merged unit.
//
// Proposer failures fail the whole edit with nothing applied; image
// synthesis failures are recovered locally and reported per request.
type EditPipeline struct {
	proposer     driven.EditProposer
	codec        *ImageCodec
	merger       *PatchMerger
	orchestrator *SynthesisOrchestrator
}

// NewEditPipeline creates the pipeline over an Edit Proposer and a
// synthesis orchestrator.
func NewEditPipeline(proposer driven.EditProposer, orchestrator *SynthesisOrchestrator) *EditPipeline {
	return &EditPipeline{
		proposer:     proposer,
		codec:        NewImageCodec(),
		merger:       NewPatchMerger(),
		orchestrator: orchestrator,
	}
}

// proposalEnvelope is the structured payload expected inside the Edit
// Proposer's response text.
type proposalEnvelope struct {
	Patch   domain.EditPatch    `json:"patch"`
	Changes []domain.EditChange `json:"changes"`
}

// ApplyEdit applies one natural-language edit to the targeted unit.
// Required-field validation happens before any I/O.
func (p *EditPipeline) ApplyEdit(ctx context.Context, req driving.EditRequest) (*driving.EditResult, error) {
	if err := validateEditRequest(req); err != nil {
		return &driving.EditResult{Success: false, Error: err.Error()}, err
	}
	if p.proposer == nil {
		err := fmt.Errorf("apply edit: %w", domain.ErrProposerUnavailable)
		return &driving.EditResult{Success: false, Error: err.Error()}, err
	}

	// 1. Hide image payloads behind markers.
	encoded, placeholders := p.codec.Encode(req.Target.Unit)
	encodedJSON, err := json.Marshal(encoded)
	if err != nil {
		return p.fail(fmt.Errorf("encode unit: %w", err))
	}

	// 2. Ask the Edit Proposer for a patch.
	rawText, err := p.proposer.Propose(ctx, driven.ProposeRequest{
		EncodedUnit: string(encodedJSON),
		UnitType:    req.Target.UnitType,
		Instruction: req.Instruction,
		Context:     req.Context,
	})
	if err != nil {
		return p.fail(fmt.Errorf("%w: %v", domain.ErrProposerUnavailable, err))
	}

	// 3. Account for kept and newly requested images, then restore
	// original payloads for everything the proposer left unchanged.
	keepIDs, newRequests := p.codec.Decode(rawText, placeholders)
	logger.Debug("pipeline: proposer kept %d image(s), introduced %d new", len(keepIDs), len(newRequests))
	restored := p.codec.Restore(rawText, placeholders)

	// 4. Parse the proposal envelope.
	envelope, err := parseProposal(restored, req.Target.UnitType)
	if err != nil {
		return p.fail(err)
	}
	patch := envelope.Patch
	p.codec.NormalizePatch(&patch)

	// 5. Synthesize the images the patch still lacks: url-field
	// placeholders and markers embedded in string properties. Results
	// are index-aligned with requests, so the combined slice splits
	// back apart for application.
	fieldRequests := p.orchestrator.CollectRequests(patch, req.Target.UnitType)
	requests := append(fieldRequests, p.codec.ExtractInlineRequests(&patch)...)
	results := p.orchestrator.Generate(ctx, requests)
	patch = p.orchestrator.ApplyResults(patch, req.Target.UnitType, results[:len(fieldRequests)])
	p.codec.ApplyInlineResults(&patch, results[len(fieldRequests):])

	// 6. Merge, preserving any image field the patch omitted.
	merged, err := p.merger.Merge(req.Target.Unit, patch)
	if err != nil {
		return p.fail(fmt.Errorf("%w: %v", domain.ErrUnusableProposal, err))
	}

	result := &driving.EditResult{
		Success: true,
		Patch:   patch,
		Unit:    merged,
		Changes: envelope.Changes,
	}
	for i, generated := range results {
		if generated.Success {
			continue
		}
		result.ImageFailures = append(result.ImageFailures, driving.ImageFailure{
			RequestID: generated.ID,
			Prompt:    requests[i].Prompt,
			Reason:    generated.Err,
		})
	}
	if len(result.ImageFailures) > 0 {
		logger.Info("pipeline: edit applied, %d of %d image(s) failed",
			len(result.ImageFailures), len(requests))
	}
	return result, nil
}

// fail reports a pipeline-level failure: nothing was applied.
func (p *EditPipeline) fail(err error) (*driving.EditResult, error) {
	logger.Warn("pipeline: %v", err)
	return &driving.EditResult{Success: false, Error: err.Error()}, err
}

// validateEditRequest checks all required fields before any I/O.
func validateEditRequest(req driving.EditRequest) error {
	if err := req.Target.Validate(); err != nil {
		return fmt.Errorf("edit target: %w", err)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return fmt.Errorf("instruction: %w", domain.ErrInvalidInput)
	}
	if err := req.Context.Validate(); err != nil {
		return fmt.Errorf("edit context: %w", err)
	}
	return nil
}

// parseProposal extracts and decodes the proposal envelope from the
// restored response text. AI output is not reliably valid JSON, so a
// failed decode is retried once through jsonrepair before the
// proposal is declared unusable.
func parseProposal(text string, unitType domain.UnitType) (*proposalEnvelope, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrUnusableProposal)
	}
	raw := text[start : end+1]

	var envelope proposalEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnusableProposal, err)
		}
		logger.Debug("pipeline: proposal JSON repaired")
		if err := json.Unmarshal([]byte(repaired), &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnusableProposal, err)
		}
	}

	envelope.Patch.UnitType = unitType
	return &envelope, nil
}
