package ot

import (
	"encoding/binary"
)

// Gvar provides per-glyph access to the glyph variations table.
type Gvar struct {
	data         []byte
	axisCount    int
	sharedTuples []byte
	glyphCount   int
	arrayOffset  uint32
	offsets      []uint32 // glyphCount+1 entries, relative to arrayOffset
}

// ParseGvar parses a gvar table.
func ParseGvar(data []byte) (*Gvar, error) {
	if len(data) < 20 {
		return nil, ErrInvalidTable
	}

	p := NewParser(data)
	major, _ := p.U16()
	minor, _ := p.U16()
	if major != 1 || minor != 0 {
		return nil, ErrInvalidFormat
	}

	axisCount, _ := p.U16()
	sharedTupleCount, _ := p.U16()
	sharedTuplesOffset, _ := p.U32()
	glyphCount, _ := p.U16()
	flags, _ := p.U16()
	arrayOffset, err := p.U32()
	if err != nil {
		return nil, ErrInvalidTable
	}

	longOffsets := flags&0x0001 != 0

	offsets := make([]uint32, int(glyphCount)+1)
	if longOffsets {
		for i := range offsets {
			v, err := p.U32()
			if err != nil {
				return nil, ErrInvalidTable
			}
			offsets[i] = v
		}
	} else {
		for i := range offsets {
			v, err := p.U16()
			if err != nil {
				return nil, ErrInvalidTable
			}
			offsets[i] = uint32(v) * 2
		}
	}

	// Shared tuples are F2DOT14 pairs per axis.
	tuplesLen := int(sharedTupleCount) * int(axisCount) * 4
	if int(sharedTuplesOffset)+tuplesLen > len(data) {
		return nil, ErrInvalidOffset
	}
	sharedTuples := data[sharedTuplesOffset : int(sharedTuplesOffset)+tuplesLen]

	return &Gvar{
		data:         data,
		axisCount:    int(axisCount),
		sharedTuples: sharedTuples,
		glyphCount:   int(glyphCount),
		arrayOffset:  arrayOffset,
		offsets:      offsets,
	}, nil
}

// AxisCount returns the number of variation axes.
func (g *Gvar) AxisCount() int {
	return g.axisCount
}

// GlyphCount returns the number of glyphs covered.
func (g *Gvar) GlyphCount() int {
	return g.glyphCount
}

// GlyphBytes returns the raw variation data for a glyph. Glyphs with no
// variation data (and out of range glyph ids) return nil.
func (g *Gvar) GlyphBytes(gid GlyphID) []byte {
	if int(gid) >= g.glyphCount {
		return nil
	}
	start := uint64(g.arrayOffset) + uint64(g.offsets[gid])
	end := uint64(g.arrayOffset) + uint64(g.offsets[gid+1])
	if start >= end || end > uint64(len(g.data)) {
		return nil
	}
	return g.data[start:end]
}

// Rebuild assembles a gvar table with the same header and shared tuples but
// per-glyph variation data taken from glyphs (indexed by glyph id, nil for
// no data). Long offsets are always used so the offset array length is
// independent of the data.
func (g *Gvar) Rebuild(glyphs [][]byte) []byte {
	sharedTupleCount := 0
	if g.axisCount > 0 {
		sharedTupleCount = len(g.sharedTuples) / (g.axisCount * 4)
	}

	headerSize := 20
	offsetsSize := (len(glyphs) + 1) * 4
	tuplesOffset := headerSize + offsetsSize
	arrayOffset := tuplesOffset + len(g.sharedTuples)

	dataSize := 0
	for _, gl := range glyphs {
		dataSize += len(gl)
		if dataSize%2 != 0 {
			dataSize++
		}
	}

	out := make([]byte, arrayOffset+dataSize)
	binary.BigEndian.PutUint16(out[0:], 1) // majorVersion
	binary.BigEndian.PutUint16(out[2:], 0) // minorVersion
	binary.BigEndian.PutUint16(out[4:], uint16(g.axisCount))
	binary.BigEndian.PutUint16(out[6:], uint16(sharedTupleCount))
	binary.BigEndian.PutUint32(out[8:], uint32(tuplesOffset))
	binary.BigEndian.PutUint16(out[12:], uint16(len(glyphs)))
	binary.BigEndian.PutUint16(out[14:], 0x0001) // flags: long offsets
	binary.BigEndian.PutUint32(out[16:], uint32(arrayOffset))

	off := uint32(0)
	for i, gl := range glyphs {
		binary.BigEndian.PutUint32(out[headerSize+i*4:], off)
		copy(out[arrayOffset+int(off):], gl)
		off += uint32(len(gl))
		if off%2 != 0 {
			off++
		}
	}
	binary.BigEndian.PutUint32(out[headerSize+len(glyphs)*4:], off)

	copy(out[tuplesOffset:], g.sharedTuples)

	return out
}

// ParseGvarFromFont parses the gvar table from a font.
func ParseGvarFromFont(font *Font) (*Gvar, error) {
	data, err := font.TableData(TagGvar)
	if err != nil {
		return nil, err
	}
	return ParseGvar(data)
}
