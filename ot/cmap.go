package ot

import (
	"encoding/binary"
	"sort"
)

// Cmap represents a parsed cmap table, restricted to the subtable formats
// used for Unicode lookups (4 and 12).
type Cmap struct {
	mappings map[Codepoint]GlyphID
}

// ParseCmap parses a cmap table, selecting the best Unicode subtable.
func ParseCmap(data []byte) (*Cmap, error) {
	if len(data) < 4 {
		return nil, ErrInvalidTable
	}

	numTables := int(binary.BigEndian.Uint16(data[2:]))
	if 4+numTables*8 > len(data) {
		return nil, ErrInvalidTable
	}

	// Pick the best subtable: a full-repertoire format 12 if present,
	// otherwise a BMP format 4.
	bestOffset := -1
	bestScore := -1
	for i := 0; i < numTables; i++ {
		rec := 4 + i*8
		platformID := binary.BigEndian.Uint16(data[rec:])
		encodingID := binary.BigEndian.Uint16(data[rec+2:])
		offset := int(binary.BigEndian.Uint32(data[rec+4:]))
		if offset+2 > len(data) {
			continue
		}

		score := -1
		switch {
		case platformID == 3 && encodingID == 10:
			score = 3
		case platformID == 0 && encodingID >= 4:
			score = 3
		case platformID == 3 && encodingID == 1:
			score = 2
		case platformID == 0:
			score = 1
		}
		if score > bestScore {
			bestScore = score
			bestOffset = offset
		}
	}

	if bestOffset < 0 {
		return nil, ErrInvalidFormat
	}

	c := &Cmap{mappings: make(map[Codepoint]GlyphID)}

	format := binary.BigEndian.Uint16(data[bestOffset:])
	switch format {
	case 4:
		if err := c.parseFormat4(data[bestOffset:]); err != nil {
			return nil, err
		}
	case 12:
		if err := c.parseFormat12(data[bestOffset:]); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidFormat
	}

	return c, nil
}

func (c *Cmap) parseFormat4(data []byte) error {
	if len(data) < 14 {
		return ErrInvalidTable
	}
	length := int(binary.BigEndian.Uint16(data[2:]))
	if length > len(data) {
		return ErrInvalidTable
	}
	data = data[:length]

	segCount := int(binary.BigEndian.Uint16(data[6:])) / 2
	if 16+segCount*8 > len(data) {
		return ErrInvalidTable
	}

	endCodes := 14
	startCodes := endCodes + segCount*2 + 2 // +2 reservedPad
	idDeltas := startCodes + segCount*2
	idRangeOffsets := idDeltas + segCount*2

	for seg := 0; seg < segCount; seg++ {
		endCode := binary.BigEndian.Uint16(data[endCodes+seg*2:])
		startCode := binary.BigEndian.Uint16(data[startCodes+seg*2:])
		idDelta := binary.BigEndian.Uint16(data[idDeltas+seg*2:])
		idRangeOffset := binary.BigEndian.Uint16(data[idRangeOffsets+seg*2:])

		if startCode == 0xFFFF {
			continue
		}

		for cp := int(startCode); cp <= int(endCode) && cp < 0xFFFF; cp++ {
			var gid GlyphID
			if idRangeOffset == 0 {
				gid = GlyphID(uint16(cp) + idDelta)
			} else {
				idx := idRangeOffsets + seg*2 + int(idRangeOffset) + (cp-int(startCode))*2
				if idx+2 > len(data) {
					continue
				}
				raw := binary.BigEndian.Uint16(data[idx:])
				if raw == 0 {
					continue
				}
				gid = GlyphID(raw + idDelta)
			}
			if gid != 0 {
				c.mappings[Codepoint(cp)] = gid
			}
		}
	}
	return nil
}

func (c *Cmap) parseFormat12(data []byte) error {
	if len(data) < 16 {
		return ErrInvalidTable
	}
	numGroups := int(binary.BigEndian.Uint32(data[12:]))
	if 16+numGroups*12 > len(data) {
		return ErrInvalidTable
	}

	for i := 0; i < numGroups; i++ {
		off := 16 + i*12
		startChar := binary.BigEndian.Uint32(data[off:])
		endChar := binary.BigEndian.Uint32(data[off+4:])
		startGlyph := binary.BigEndian.Uint32(data[off+8:])

		for cp := startChar; cp <= endChar; cp++ {
			gid := GlyphID(startGlyph + (cp - startChar))
			if gid != 0 {
				c.mappings[cp] = gid
			}
			if cp == 0xFFFFFFFF {
				break
			}
		}
	}
	return nil
}

// Lookup returns the glyph ID for a codepoint.
func (c *Cmap) Lookup(cp Codepoint) (GlyphID, bool) {
	gid, ok := c.mappings[cp]
	return gid, ok
}

// Mappings returns the full codepoint to glyph mapping.
func (c *Cmap) Mappings() map[Codepoint]GlyphID {
	return c.mappings
}

// Codepoints returns all mapped codepoints sorted ascending.
func (c *Cmap) Codepoints() []Codepoint {
	cps := make([]Codepoint, 0, len(c.mappings))
	for cp := range c.mappings {
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i] < cps[j] })
	return cps
}

// ParseCmapFromFont parses the cmap table from a font.
func ParseCmapFromFont(font *Font) (*Cmap, error) {
	data, err := font.TableData(TagCmap)
	if err != nil {
		return nil, err
	}
	return ParseCmap(data)
}

// BuildCmap serializes a cmap table for the given mapping. A format 4
// subtable (3,1) is always emitted; when any codepoint lies outside the
// BMP a format 12 subtable (3,10) is added as well.
func BuildCmap(mappings map[Codepoint]GlyphID) []byte {
	cps := make([]Codepoint, 0, len(mappings))
	needsFormat12 := false
	for cp := range mappings {
		cps = append(cps, cp)
		if cp > 0xFFFF {
			needsFormat12 = true
		}
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i] < cps[j] })

	sub4 := buildCmapFormat4(cps, mappings)

	numTables := 1
	if needsFormat12 {
		numTables = 2
	}

	w := NewWriter()
	w.U16(0) // version
	w.U16(uint32(numTables))

	headerSize := 4 + numTables*8
	w.U16(3)
	w.U16(1)
	w.U32(uint32(headerSize))
	if needsFormat12 {
		w.U16(3)
		w.U16(10)
		w.U32(uint32(headerSize + len(sub4)))
	}
	w.Raw(sub4)
	if needsFormat12 {
		w.Raw(buildCmapFormat12(cps, mappings))
	}
	return w.Bytes()
}

// buildCmapFormat4 writes one segment per contiguous codepoint run whose
// glyph ids are also contiguous, plus the required 0xFFFF terminator.
func buildCmapFormat4(cps []Codepoint, mappings map[Codepoint]GlyphID) []byte {
	type segment struct {
		start, end uint16
		delta      uint16
	}
	var segs []segment
	for _, cp := range cps {
		if cp > 0xFFFF {
			continue
		}
		gid := mappings[cp]
		delta := uint16(gid) - uint16(cp)
		if n := len(segs); n > 0 && segs[n-1].end+1 == uint16(cp) && segs[n-1].delta == delta && uint16(cp) != 0xFFFF {
			segs[n-1].end = uint16(cp)
			continue
		}
		segs = append(segs, segment{start: uint16(cp), end: uint16(cp), delta: delta})
	}
	// Terminator segment.
	segs = append(segs, segment{start: 0xFFFF, end: 0xFFFF, delta: 1})

	segCount := len(segs)
	searchRange, entrySelector := 2, 0
	for searchRange*2 <= segCount*2 {
		searchRange *= 2
		entrySelector++
	}

	w := NewWriter()
	w.U16(4) // format
	w.U16(uint32(16 + segCount*8))
	w.U16(0) // language
	w.U16(uint32(segCount * 2))
	w.U16(uint32(searchRange))
	w.U16(uint32(entrySelector))
	w.U16(uint32(segCount*2 - searchRange))
	for _, s := range segs {
		w.U16(uint32(s.end))
	}
	w.U16(0) // reservedPad
	for _, s := range segs {
		w.U16(uint32(s.start))
	}
	for _, s := range segs {
		w.U16(uint32(s.delta))
	}
	for range segs {
		w.U16(0) // idRangeOffset
	}
	return w.Bytes()
}

func buildCmapFormat12(cps []Codepoint, mappings map[Codepoint]GlyphID) []byte {
	type group struct {
		start, end Codepoint
		gid        GlyphID
	}
	var groups []group
	for _, cp := range cps {
		gid := mappings[cp]
		if n := len(groups); n > 0 && groups[n-1].end+1 == cp &&
			GlyphID(uint32(groups[n-1].gid)+(cp-groups[n-1].start)) == gid {
			groups[n-1].end = cp
			continue
		}
		groups = append(groups, group{start: cp, end: cp, gid: gid})
	}

	w := NewWriter()
	w.U16(12) // format
	w.U16(0)  // reserved
	w.U32(uint32(16 + len(groups)*12))
	w.U32(0) // language
	w.U32(uint32(len(groups)))
	for _, g := range groups {
		w.U32(g.start)
		w.U32(g.end)
		w.U32(uint32(g.gid))
	}
	return w.Bytes()
}
