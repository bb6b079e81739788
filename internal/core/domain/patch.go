package domain

// EditPatch is a partial document unit returned by the Edit Proposer.
// Only fields that change are present; absence means "no change",
// never "clear this field".
type EditPatch struct {
	// UnitType discriminates which fields are meaningful.
	UnitType UnitType `json:"unitType"`

	// Title replaces the page title when non-nil. Page patches only.
	Title *string `json:"title,omitempty"`

	// Properties overrides component properties key-by-key.
	// Component patches only.
	Properties map[string]any `json:"properties,omitempty"`

	// Elements is the page's new element list. A nil slice means the
	// original list is untouched; a non-nil slice is authoritative for
	// membership (but not for individual field presence, see merge).
	// Page patches only.
	Elements []Component `json:"elements,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p EditPatch) IsZero() bool {
	return p.Title == nil && p.Properties == nil && p.Elements == nil
}

// EditChange is a human-readable description of one discrete
// modification, returned alongside the patch for audit and display.
// It has no effect on merge semantics.
type EditChange struct {
	// TargetID is the id of the affected element or page, when known.
	TargetID string `json:"targetId,omitempty"`

	// Description explains the modification in plain language.
	Description string `json:"description"`
}

// EditContext carries the domain fields the Edit Proposer needs to
// stay on-topic, plus an opaque caller identity used only for usage
// accounting by the collaborator.
type EditContext struct {
	// Topic is the subject of the worksheet (e.g. "dinosaurs").
	Topic string `json:"topic"`

	// AgeGroup is the target audience (e.g. "6-8").
	AgeGroup string `json:"ageGroup"`

	// Difficulty is the exercise difficulty (e.g. "easy").
	Difficulty string `json:"difficulty,omitempty"`

	// Language is the content language (e.g. "en").
	Language string `json:"language,omitempty"`

	// CallerID is an opaque identity forwarded for accounting.
	CallerID string `json:"callerId,omitempty"`
}

// Validate checks the context fields required before any I/O.
func (c EditContext) Validate() error {
	if c.Topic == "" || c.AgeGroup == "" {
		return ErrInvalidInput
	}
	return nil
}
