package domain

import "time"

// ThumbnailRecord is a cached preview of a document unit. A
// regeneration supersedes the record rather than appending to it;
// records are removed by explicit invalidation or cache eviction.
type ThumbnailRecord struct {
	// UnitID identifies the previewed unit.
	UnitID string

	// Payload is the rendered preview image bytes.
	Payload []byte

	// GeneratedAt is when the preview was rendered.
	GeneratedAt time.Time
}

// ThumbnailUnit pairs a unit id with the content to render for it.
// Used by batch generation.
type ThumbnailUnit struct {
	// ID is the unit id the preview is cached under.
	ID string

	// Unit is the renderable content.
	Unit DocumentUnit
}
