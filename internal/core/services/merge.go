package services

import (
	"fmt"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

// PatchMerger applies a proposed partial edit onto the original
// document unit, producing the next document state. It never mutates
// its inputs and never silently drops an image payload: an image the
// patch omitted keeps its original payload.
type PatchMerger struct{}

// NewPatchMerger creates a patch merger.
func NewPatchMerger() *PatchMerger {
	return &PatchMerger{}
}

// Merge dispatches on the unit type tag. It fails only when the patch
// tag does not match the unit; missing optional fields never fail.
func (m *PatchMerger) Merge(unit domain.DocumentUnit, patch domain.EditPatch) (domain.DocumentUnit, error) {
	if patch.UnitType != unit.Type {
		return domain.DocumentUnit{}, fmt.Errorf("merge %s patch onto %s unit: %w",
			patch.UnitType, unit.Type, domain.ErrInvalidInput)
	}

	switch unit.Type {
	case domain.UnitComponent:
		if unit.Component == nil {
			return domain.DocumentUnit{}, fmt.Errorf("merge: %w", domain.ErrInvalidInput)
		}
		merged := unit.Component.Clone()
		merged.Properties = m.MergeComponent(merged.Properties, patch.Properties)
		merged.Properties = mergeElementProperties(*unit.Component, merged)
		return domain.ComponentUnit(merged), nil

	case domain.UnitPage:
		if unit.Page == nil {
			return domain.DocumentUnit{}, fmt.Errorf("merge: %w", domain.ErrInvalidInput)
		}
		return domain.PageUnit(m.MergePage(*unit.Page, patch)), nil

	default:
		return domain.DocumentUnit{}, fmt.Errorf("merge: unknown unit type %q: %w",
			unit.Type, domain.ErrInvalidInput)
	}
}

// MergeComponent shallow-merges patch fields over original fields.
// Fields absent from the patch are retained; nested objects present
// in the patch replace the original value wholesale.
func (m *PatchMerger) MergeComponent(original, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(original)+len(patch))
	for k, v := range original {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// MergePage merges a page patch. The title is replaced when the patch
// sets one. When the patch supplies an element array, it is
// authoritative for membership: patched elements are matched to
// originals by id, patch-only ids are inserted as-is, and original
// elements absent from the patch are dropped. A nil element array
// leaves the original elements untouched.
//
// For each matched element, an absent or empty url in the patch whose
// original counterpart has a non-empty url is forced back to the
// original value. This is what prevents the Edit Proposer from
// silently deleting an image by omitting the field.
func (m *PatchMerger) MergePage(original domain.Page, patch domain.EditPatch) domain.Page {
	merged := original.Clone()
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Elements == nil {
		return merged
	}

	originalByID := make(map[string]domain.Component, len(original.Elements))
	for _, el := range original.Elements {
		originalByID[el.ID] = el
	}

	elements := make([]domain.Component, 0, len(patch.Elements))
	for _, patched := range patch.Elements {
		el := patched.Clone()
		if orig, ok := originalByID[el.ID]; ok {
			el.Properties = mergeElementProperties(orig, el)
		}
		elements = append(elements, el)
	}
	merged.Elements = elements
	return merged
}

// mergeElementProperties keeps a matched element's original image
// payload when the patch omitted or emptied it.
func mergeElementProperties(original, patched domain.Component) map[string]any {
	props := patched.Properties
	if props == nil {
		props = make(map[string]any)
	}

	patchedURL := domain.PropString(props, domain.PropURL)
	originalURL := domain.PropString(original.Properties, domain.PropURL)
	if patchedURL == "" && originalURL != "" {
		// Copy before writing so the caller's patch stays untouched.
		restored := make(map[string]any, len(props)+1)
		for k, v := range props {
			restored[k] = v
		}
		restored[domain.PropURL] = originalURL
		return restored
	}
	return props
}
