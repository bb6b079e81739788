// Package domain defines the core business entities for Pagecraft.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Component: A typed visual element with a property bag
//   - Page: An ordered sequence of components plus a title
//   - DocumentUnit: The tagged union of the two edit granularities
//   - EditPatch: A partial unit describing only changed fields
//   - ImageSynthesisRequest: A pending image generation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
