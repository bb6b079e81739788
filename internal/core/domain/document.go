package domain

import "strconv"

// UnitType discriminates the two granularities at which edits occur.
type UnitType string

const (
	// UnitComponent targets a single component within a page.
	UnitComponent UnitType = "component"

	// UnitPage targets a whole page including its element list.
	UnitPage UnitType = "page"
)

// Well-known component property keys.
// Components carry an open property bag; these are the keys the
// edit pipeline itself inspects.
const (
	// PropURL holds the image payload (a URL or data URI).
	PropURL = "url"

	// PropImagePrompt holds the human-readable image description.
	PropImagePrompt = "imagePrompt"

	// PropAlt is the accessibility text, used as a prompt fallback.
	PropAlt = "alt"

	// PropCaption is the display caption, used as a prompt fallback.
	PropCaption = "caption"

	// PropWidth and PropHeight are the requested image dimensions.
	PropWidth  = "width"
	PropHeight = "height"
)

// TypeImagePlaceholder is the component type that participates in
// image synthesis.
const TypeImagePlaceholder = "image-placeholder"

// Component is a typed visual element with a property bag.
// Examples: a text block, a question box, an image placeholder with
// imagePrompt/url/width/height properties.
type Component struct {
	// ID is the unique identifier within a page.
	ID string `json:"id"`

	// Type is the component kind (e.g. "text", "image-placeholder").
	Type string `json:"type"`

	// Properties is an open key-value bag. Nested values are treated
	// as opaque: merges replace them wholesale.
	Properties map[string]any `json:"properties"`
}

// Clone returns a copy of the component with a shallow-copied
// property bag, so callers can mutate the copy's top-level keys
// without affecting the original.
func (c Component) Clone() Component {
	clone := c
	if c.Properties != nil {
		clone.Properties = make(map[string]any, len(c.Properties))
		for k, v := range c.Properties {
			clone.Properties[k] = v
		}
	}
	return clone
}

// Page is an ordered sequence of components plus a title.
type Page struct {
	// PageID is the unique identifier for the page.
	PageID string `json:"pageId"`

	// Title is the human-readable page title.
	Title string `json:"title"`

	// Elements are the page's components in display order.
	Elements []Component `json:"elements"`
}

// Clone returns a copy of the page with cloned elements.
func (p Page) Clone() Page {
	clone := p
	if p.Elements != nil {
		clone.Elements = make([]Component, len(p.Elements))
		for i := range p.Elements {
			clone.Elements[i] = p.Elements[i].Clone()
		}
	}
	return clone
}

// DocumentUnit is the tagged union of the two edit granularities.
// Exactly one of Component or Page is set, matching Type.
type DocumentUnit struct {
	// Type discriminates which branch is populated.
	Type UnitType `json:"unitType"`

	// Component is set when Type is UnitComponent.
	Component *Component `json:"component,omitempty"`

	// Page is set when Type is UnitPage.
	Page *Page `json:"page,omitempty"`
}

// ComponentUnit wraps a component as a document unit.
func ComponentUnit(c Component) DocumentUnit {
	return DocumentUnit{Type: UnitComponent, Component: &c}
}

// PageUnit wraps a page as a document unit.
func PageUnit(p Page) DocumentUnit {
	return DocumentUnit{Type: UnitPage, Page: &p}
}

// ID returns the identity of the unit: the component id or the page id.
func (u DocumentUnit) ID() string {
	switch u.Type {
	case UnitComponent:
		if u.Component != nil {
			return u.Component.ID
		}
	case UnitPage:
		if u.Page != nil {
			return u.Page.PageID
		}
	}
	return ""
}

// Clone returns a deep copy of the unit.
func (u DocumentUnit) Clone() DocumentUnit {
	clone := u
	if u.Component != nil {
		c := u.Component.Clone()
		clone.Component = &c
	}
	if u.Page != nil {
		p := u.Page.Clone()
		clone.Page = &p
	}
	return clone
}

// Valid reports whether the populated branch matches the type tag.
func (u DocumentUnit) Valid() bool {
	switch u.Type {
	case UnitComponent:
		return u.Component != nil && u.Page == nil
	case UnitPage:
		return u.Page != nil && u.Component == nil
	default:
		return false
	}
}

// EditTarget identifies what is being edited.
type EditTarget struct {
	// UnitType is the granularity of the edit.
	UnitType UnitType `json:"unitType"`

	// PageID is the page that contains (or is) the target.
	PageID string `json:"pageId"`

	// ElementID identifies the component when UnitType is
	// UnitComponent. It must be empty for page targets.
	ElementID string `json:"elementId,omitempty"`

	// Unit is the current state of the targeted unit.
	Unit DocumentUnit `json:"data"`
}

// Validate checks the EditTarget invariants: a well-formed unit whose
// tag matches UnitType, and ElementID set iff the target is a component.
func (t EditTarget) Validate() error {
	if t.UnitType != UnitComponent && t.UnitType != UnitPage {
		return ErrInvalidInput
	}
	if t.PageID == "" {
		return ErrInvalidInput
	}
	if t.UnitType == UnitComponent && t.ElementID == "" {
		return ErrInvalidInput
	}
	if t.UnitType == UnitPage && t.ElementID != "" {
		return ErrInvalidInput
	}
	if !t.Unit.Valid() || t.Unit.Type != t.UnitType {
		return ErrInvalidInput
	}
	return nil
}

// PropString reads a string property, returning "" when absent or
// of a different type.
func PropString(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}

// PropInt reads a numeric property, accepting the representations
// JSON decoding and TOML parsing produce. Returns 0 when absent.
func PropInt(props map[string]any, key string) int {
	if props == nil {
		return 0
	}
	switch v := props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
