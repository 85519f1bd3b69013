package ift

import (
	"fmt"

	"github.com/boxesandglue/ift/ot"
)

// Sparse bit sets encode a set of uint32 values as a branch-factor-8 tree
// of bitmask bytes, breadth first. The first byte is the tree height (0
// for the empty set); a height-h tree covers values below 8^h. A set bit
// in a non-leaf node contributes one child node byte on the next level;
// leaf bits mark individual values. The stream is self-delimiting, so it
// can be embedded without a length prefix.

const sparseBranch = 8

// EncodeSparseBitSet serializes the given set of values.
func EncodeSparseBitSet(values map[uint32]bool) []byte {
	if len(values) == 0 {
		return []byte{0}
	}

	max := uint32(0)
	for v := range values {
		if v > max {
			max = v
		}
	}

	height := 1
	span := uint64(sparseBranch)
	for uint64(max) >= span {
		span *= sparseBranch
		height++
	}

	out := []byte{byte(height)}

	// Walk level by level. A node is identified by the range of values it
	// covers; the root covers [0, 8^height).
	type node struct{ start, span uint64 }
	level := []node{{0, span}}

	for depth := 0; depth < height; depth++ {
		var next []node
		for _, n := range level {
			childSpan := n.span / sparseBranch
			var mask byte
			for bit := uint64(0); bit < sparseBranch; bit++ {
				lo := n.start + bit*childSpan
				hi := lo + childSpan
				if anyInRange(values, lo, hi) {
					mask |= 1 << bit
					if childSpan > 1 {
						next = append(next, node{lo, childSpan})
					}
				}
			}
			out = append(out, mask)
		}
		level = next
	}

	return out
}

func anyInRange(values map[uint32]bool, lo, hi uint64) bool {
	// Ranges get narrow quickly; scan the range when it is smaller than
	// the set.
	if hi-lo <= uint64(len(values)) {
		for v := lo; v < hi; v++ {
			if values[uint32(v)] {
				return true
			}
		}
		return false
	}
	for v := range values {
		if uint64(v) >= lo && uint64(v) < hi {
			return true
		}
	}
	return false
}

// ParseSparseBitSet decodes a sparse bit set from the parser, consuming
// exactly the encoded bytes.
func ParseSparseBitSet(p *ot.Parser) (map[uint32]bool, error) {
	height, err := p.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated sparse bit set", ErrFormat)
	}

	values := make(map[uint32]bool)
	if height == 0 {
		return values, nil
	}

	span := uint64(1)
	for i := 0; i < int(height); i++ {
		span *= sparseBranch
	}

	type node struct{ start, span uint64 }
	level := []node{{0, span}}

	for depth := 0; depth < int(height); depth++ {
		var next []node
		for _, n := range level {
			mask, err := p.U8()
			if err != nil {
				return nil, fmt.Errorf("%w: truncated sparse bit set", ErrFormat)
			}
			childSpan := n.span / sparseBranch
			for bit := uint64(0); bit < sparseBranch; bit++ {
				if mask&(1<<bit) == 0 {
					continue
				}
				lo := n.start + bit*childSpan
				if childSpan == 1 {
					values[uint32(lo)] = true
				} else {
					next = append(next, node{lo, childSpan})
				}
			}
		}
		level = next
	}

	return values, nil
}
