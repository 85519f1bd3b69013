// Package ift holds the core value types of the incremental font transfer
// encoder: compatibility ids, axis ranges, subset definitions, and the
// patch map with its binary "format 2" serialization.
package ift

import "errors"

// Error kinds surfaced by the encoder core. Concrete failures wrap one of
// these so callers can classify with errors.Is.
var (
	// ErrConfig reports an invalid input configuration: a bad axis
	// range, an unknown glyph id, a double-set base subset, an id of
	// the wrong length.
	ErrConfig = errors.New("ift: invalid configuration")

	// ErrClosure reports a refused or failed glyph closure computation.
	ErrClosure = errors.New("ift: glyph closure failed")

	// ErrInvariant reports an internal invariant violation; encoding
	// fails fast when one is detected.
	ErrInvariant = errors.New("ift: invariant violation")

	// ErrFormat reports malformed binary data on decode paths: a bad
	// patch tag, compatibility id mismatch, truncation, a reserved
	// field that is not zero, or a field value that overflows its
	// width on write.
	ErrFormat = errors.New("ift: malformed data")

	// ErrResource reports a failure from an external collaborator
	// (subsetter, differ, WOFF2 codec).
	ErrResource = errors.New("ift: collaborator failure")
)
