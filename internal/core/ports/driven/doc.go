// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
//
// The two AI collaborators (Edit Proposer and Image Synthesizer) are
// specified only at their boundary here; everything behind them is an
// external service. Storage and rendering ports back the thumbnail
// cache. Implementations live in internal/adapters/driven.
package driven
