package ift

import (
	"fmt"

	"github.com/boxesandglue/ift/ot"
)

// CompatId is the 128-bit compatibility identifier binding a patch to the
// exact base it was diffed against. Stored as four big-endian uint32 words
// in the IFT table header and in every patch.
type CompatId struct {
	Words [4]uint32
}

// NewCompatId creates a CompatId from four words.
func NewCompatId(a, b, c, d uint32) CompatId {
	return CompatId{Words: [4]uint32{a, b, c, d}}
}

// CompatIdFromSlice creates a CompatId from a slice, which must have
// exactly four elements.
func CompatIdFromSlice(words []uint32) (CompatId, error) {
	if len(words) != 4 {
		return CompatId{}, fmt.Errorf("%w: id must have length 4, got %d", ErrConfig, len(words))
	}
	return CompatId{Words: [4]uint32{words[0], words[1], words[2], words[3]}}, nil
}

// WriteTo appends the big-endian serialization to w.
func (id CompatId) WriteTo(w *ot.Writer) {
	for _, v := range id.Words {
		w.U32(v)
	}
}

// ReadCompatId reads a CompatId from p.
func ReadCompatId(p *ot.Parser) (CompatId, error) {
	var id CompatId
	for i := range id.Words {
		v, err := p.U32()
		if err != nil {
			return CompatId{}, fmt.Errorf("%w: truncated compat id", ErrFormat)
		}
		id.Words[i] = v
	}
	return id, nil
}

func (id CompatId) String() string {
	return fmt.Sprintf("%08x:%08x:%08x:%08x", id.Words[0], id.Words[1], id.Words[2], id.Words[3])
}
