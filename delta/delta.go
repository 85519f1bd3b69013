// Package delta implements the binary differ used for patch payloads: a
// shared-dictionary compressed delta where the base bytes prime the
// compression window. Diff and Patch are exact inverses.
package delta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

var (
	// ErrCorrupt is returned when a patch cannot be decoded.
	ErrCorrupt = errors.New("delta: corrupt patch")

	// ErrBaseMismatch is returned when a patch is applied to a base it
	// was not produced against.
	ErrBaseMismatch = errors.New("delta: base mismatch")
)

// Differ produces and applies shared-dictionary deltas between byte
// strings. Implementations must be deterministic and must not mutate
// their inputs.
type Differ interface {
	Diff(base, derived []byte) ([]byte, error)
	Patch(base, patch []byte) ([]byte, error)
}

// Brotli is the default Differ. The delta stream is the brotli
// compression of base followed by derived, so the base acts as a shared
// dictionary; applying strips the base prefix after decompression and
// verifies it matched.
type Brotli struct {
	// Quality is the brotli quality level, 0-11. The zero value selects
	// the maximum.
	Quality int
}

const headerSize = 8 // two big-endian uint32 lengths

// Diff produces a patch that transforms base into derived.
func (b Brotli) Diff(base, derived []byte) ([]byte, error) {
	quality := b.Quality
	if quality == 0 {
		quality = brotli.BestCompression
	}

	var buf bytes.Buffer
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:], uint32(len(base)))
	binary.BigEndian.PutUint32(header[4:], uint32(len(derived)))
	buf.Write(header)

	w := brotli.NewWriterLevel(&buf, quality)
	if _, err := w.Write(base); err != nil {
		return nil, fmt.Errorf("delta: compressing base: %w", err)
	}
	if _, err := w.Write(derived); err != nil {
		return nil, fmt.Errorf("delta: compressing derived: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("delta: finishing stream: %w", err)
	}

	return buf.Bytes(), nil
}

// Patch applies a patch produced by Diff against base and returns the
// derived bytes.
func (b Brotli) Patch(base, patch []byte) ([]byte, error) {
	if len(patch) < headerSize {
		return nil, ErrCorrupt
	}
	baseLen := binary.BigEndian.Uint32(patch[0:])
	derivedLen := binary.BigEndian.Uint32(patch[4:])

	if int(baseLen) != len(base) {
		return nil, fmt.Errorf("%w: patch expects base of %d bytes, have %d",
			ErrBaseMismatch, baseLen, len(base))
	}

	r := brotli.NewReader(bytes.NewReader(patch[headerSize:]))
	full := make([]byte, int(baseLen)+int(derivedLen))
	if _, err := io.ReadFull(r, full); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	// The stream must end exactly here.
	var trailer [1]byte
	if n, _ := r.Read(trailer[:]); n != 0 {
		return nil, ErrCorrupt
	}

	if !bytes.Equal(full[:baseLen], base) {
		return nil, ErrBaseMismatch
	}

	return full[baseLen:], nil
}
