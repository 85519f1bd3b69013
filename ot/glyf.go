package ot

import (
	"encoding/binary"
)

// Glyf represents the parsed glyf table (glyph data).
type Glyf struct {
	data []byte
	loca *Loca
}

// Loca represents the parsed loca table (index to location).
type Loca struct {
	offsets   []uint32 // Glyph offsets into glyf table
	numGlyphs int
	isShort   bool // true for short format (16-bit offsets)
}

// ParseLoca parses the loca table.
// indexToLocFormat: 0 = short (16-bit), 1 = long (32-bit)
func ParseLoca(data []byte, numGlyphs int, indexToLocFormat int16) (*Loca, error) {
	l := &Loca{
		numGlyphs: numGlyphs,
		isShort:   indexToLocFormat == 0,
	}

	// loca has numGlyphs+1 entries
	numEntries := numGlyphs + 1

	if l.isShort {
		// Short format: 16-bit offsets (actual offset = value * 2)
		if len(data) < numEntries*2 {
			return nil, ErrInvalidOffset
		}
		l.offsets = make([]uint32, numEntries)
		for i := 0; i < numEntries; i++ {
			l.offsets[i] = uint32(binary.BigEndian.Uint16(data[i*2:])) * 2
		}
	} else {
		// Long format: 32-bit offsets
		if len(data) < numEntries*4 {
			return nil, ErrInvalidOffset
		}
		l.offsets = make([]uint32, numEntries)
		for i := 0; i < numEntries; i++ {
			l.offsets[i] = binary.BigEndian.Uint32(data[i*4:])
		}
	}

	return l, nil
}

// GetOffset returns the offset and length for a glyph.
// Returns (offset, length, ok)
func (l *Loca) GetOffset(gid GlyphID) (uint32, uint32, bool) {
	idx := int(gid)
	if idx < 0 || idx >= l.numGlyphs {
		return 0, 0, false
	}
	start := l.offsets[idx]
	end := l.offsets[idx+1]
	if end < start {
		return 0, 0, false
	}
	return start, end - start, true
}

// NumGlyphs returns the number of glyphs.
func (l *Loca) NumGlyphs() int {
	return l.numGlyphs
}

// IsShort returns true if using short (16-bit) format.
func (l *Loca) IsShort() bool {
	return l.isShort
}

// ParseGlyf parses the glyf table using a loca table.
func ParseGlyf(data []byte, loca *Loca) (*Glyf, error) {
	return &Glyf{
		data: data,
		loca: loca,
	}, nil
}

// GlyphBytes returns the raw bytes for a glyph. Empty glyphs (and out of
// range glyph ids) return nil.
func (g *Glyf) GlyphBytes(gid GlyphID) []byte {
	offset, length, ok := g.loca.GetOffset(gid)
	if !ok || length == 0 {
		return nil
	}
	if int(offset)+int(length) > len(g.data) {
		return nil
	}
	return g.data[offset : offset+length]
}

// NumGlyphs returns the number of glyphs covered by the loca table.
func (g *Glyf) NumGlyphs() int {
	return g.loca.NumGlyphs()
}

// Composite glyph flags
const (
	argAreWords    uint16 = 0x0001 // Args are words (otherwise bytes)
	weHaveAScale   uint16 = 0x0008 // Scale value present
	moreComponents uint16 = 0x0020 // More components follow
	weHaveXYScale  uint16 = 0x0040 // Separate X and Y scale
	weHave2x2      uint16 = 0x0080 // 2x2 transform matrix
)

// Components returns the component glyph IDs for a composite glyph.
// For simple and empty glyphs, returns nil.
func (g *Glyf) Components(gid GlyphID) []GlyphID {
	data := g.GlyphBytes(gid)
	if len(data) < 10 {
		return nil
	}
	if int16(binary.BigEndian.Uint16(data)) >= 0 {
		// Simple glyph.
		return nil
	}

	// Skip glyph header (numberOfContours, xMin, yMin, xMax, yMax).
	offset := 10
	var components []GlyphID

	for {
		if offset+4 > len(data) {
			break
		}

		flags := binary.BigEndian.Uint16(data[offset:])
		components = append(components, GlyphID(binary.BigEndian.Uint16(data[offset+2:])))
		offset += 4

		if flags&argAreWords != 0 {
			offset += 4
		} else {
			offset += 2
		}

		// Transform components carry no glyph ids.
		if flags&weHaveAScale != 0 {
			offset += 2 // F2Dot14
		} else if flags&weHaveXYScale != 0 {
			offset += 4
		} else if flags&weHave2x2 != 0 {
			offset += 8
		}

		if flags&moreComponents == 0 {
			break
		}
	}

	return components
}

// BuildGlyf assembles glyf and long-format loca tables from per-glyph data.
// glyphs[i] is the raw data for glyph i (nil for an empty slot). Glyph data
// is stored back to back without padding, which long offsets permit, so
// GlyphBytes returns exactly the bytes passed in.
func BuildGlyf(glyphs [][]byte) (glyf, loca []byte) {
	offsets := make([]uint32, len(glyphs)+1)
	size := 0
	for i, g := range glyphs {
		offsets[i] = uint32(size)
		size += len(g)
	}
	offsets[len(glyphs)] = uint32(size)

	glyf = make([]byte, size)
	for i, g := range glyphs {
		copy(glyf[offsets[i]:], g)
	}

	loca = make([]byte, len(offsets)*4)
	for i, off := range offsets {
		binary.BigEndian.PutUint32(loca[i*4:], off)
	}
	return glyf, loca
}

// ParseGlyfFromFont parses both glyf and loca tables from a font.
func ParseGlyfFromFont(font *Font) (*Glyf, error) {
	numGlyphs := font.NumGlyphs()
	if numGlyphs == 0 {
		return nil, ErrInvalidTable
	}

	indexToLocFormat, err := font.IndexToLocFormat()
	if err != nil {
		return nil, err
	}

	locaData, err := font.TableData(TagLoca)
	if err != nil {
		return nil, err
	}
	loca, err := ParseLoca(locaData, numGlyphs, indexToLocFormat)
	if err != nil {
		return nil, err
	}

	glyfData, err := font.TableData(TagGlyf)
	if err != nil {
		return nil, err
	}

	return ParseGlyf(glyfData, loca)
}
