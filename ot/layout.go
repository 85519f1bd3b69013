package ot

import (
	"encoding/binary"
	"sort"
)

// Layout gives access to the parts of a GSUB or GPOS table the subsetter
// and encoder need: the feature list, the lookup list, and (for GSUB) the
// substitution subtables that feed glyph closure. Lookups are parsed
// lazily per call; the table bytes are never copied.
type Layout struct {
	data          []byte
	isGSUB        bool
	featureList   int // offset of FeatureList
	lookupList    int // offset of LookupList
	featureCount  int
	lookupCount   int
}

// ParseLayout parses the common structure of a GSUB or GPOS table.
func ParseLayout(data []byte, isGSUB bool) (*Layout, error) {
	if len(data) < 10 {
		return nil, ErrInvalidTable
	}
	major := binary.BigEndian.Uint16(data[0:])
	if major != 1 {
		return nil, ErrInvalidFormat
	}

	featureList := int(binary.BigEndian.Uint16(data[6:]))
	lookupList := int(binary.BigEndian.Uint16(data[8:]))
	if featureList+2 > len(data) || lookupList+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	l := &Layout{
		data:        data,
		isGSUB:      isGSUB,
		featureList: featureList,
		lookupList:  lookupList,
	}
	l.featureCount = int(binary.BigEndian.Uint16(data[featureList:]))
	l.lookupCount = int(binary.BigEndian.Uint16(data[lookupList:]))

	if featureList+2+l.featureCount*6 > len(data) {
		return nil, ErrInvalidTable
	}
	if lookupList+2+l.lookupCount*2 > len(data) {
		return nil, ErrInvalidTable
	}
	return l, nil
}

// featureRecord returns the tag and FeatureTable offset (absolute) of the
// i-th feature record.
func (l *Layout) featureRecord(i int) (Tag, int) {
	rec := l.featureList + 2 + i*6
	tag := Tag(binary.BigEndian.Uint32(l.data[rec:]))
	off := l.featureList + int(binary.BigEndian.Uint16(l.data[rec+4:]))
	return tag, off
}

// FeatureTags returns the tags of all features that reference at least one
// lookup, sorted ascending without duplicates. Features that have been
// emptied by filtering are not reported.
func (l *Layout) FeatureTags() []Tag {
	seen := make(map[Tag]bool)
	for i := 0; i < l.featureCount; i++ {
		tag, off := l.featureRecord(i)
		if off+4 > len(l.data) {
			continue
		}
		lookupCount := int(binary.BigEndian.Uint16(l.data[off+2:]))
		if lookupCount > 0 {
			seen[tag] = true
		}
	}
	tags := make([]Tag, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// LookupIndices returns the set of lookup indices referenced by features
// accepted by keep. A nil keep accepts every feature.
func (l *Layout) LookupIndices(keep func(Tag) bool) map[int]bool {
	result := make(map[int]bool)
	for i := 0; i < l.featureCount; i++ {
		tag, off := l.featureRecord(i)
		if keep != nil && !keep(tag) {
			continue
		}
		if off+4 > len(l.data) {
			continue
		}
		lookupCount := int(binary.BigEndian.Uint16(l.data[off+2:]))
		if off+4+lookupCount*2 > len(l.data) {
			continue
		}
		for j := 0; j < lookupCount; j++ {
			result[int(binary.BigEndian.Uint16(l.data[off+4+j*2:]))] = true
		}
	}
	return result
}

// lookupOffset returns the absolute offset of lookup i.
func (l *Layout) lookupOffset(i int) int {
	return l.lookupList + int(binary.BigEndian.Uint16(l.data[l.lookupList+2+i*2:]))
}

// GSUB lookup types relevant to glyph closure.
const (
	gsubSingle    = 1
	gsubMultiple  = 2
	gsubAlternate = 3
	gsubLigature  = 4
	gsubExtension = 7
)

// ClosureGlyphs returns the glyphs produced by the given GSUB lookups when
// applied to glyphSet. Only substitution types that introduce new glyphs
// are considered (single, multiple, alternate, ligature); contextual
// lookups contribute through the lookups they dispatch to, which features
// reference directly in the lookup list.
func (l *Layout) ClosureGlyphs(glyphSet map[GlyphID]bool, lookups map[int]bool) map[GlyphID]bool {
	result := make(map[GlyphID]bool)
	if !l.isGSUB {
		return result
	}

	for i := 0; i < l.lookupCount; i++ {
		if lookups != nil && !lookups[i] {
			continue
		}
		off := l.lookupOffset(i)
		if off+6 > len(l.data) {
			continue
		}
		lookupType := int(binary.BigEndian.Uint16(l.data[off:]))
		subCount := int(binary.BigEndian.Uint16(l.data[off+4:]))

		for s := 0; s < subCount; s++ {
			if off+6+s*2+2 > len(l.data) {
				break
			}
			subOff := off + int(binary.BigEndian.Uint16(l.data[off+6+s*2:]))
			l.closureSubtable(lookupType, subOff, glyphSet, result)
		}
	}
	return result
}

func (l *Layout) closureSubtable(lookupType, off int, glyphSet, result map[GlyphID]bool) {
	if off+4 > len(l.data) {
		return
	}
	format := int(binary.BigEndian.Uint16(l.data[off:]))

	switch lookupType {
	case gsubExtension:
		if format != 1 || off+8 > len(l.data) {
			return
		}
		extType := int(binary.BigEndian.Uint16(l.data[off+2:]))
		extOff := off + int(binary.BigEndian.Uint32(l.data[off+4:]))
		l.closureSubtable(extType, extOff, glyphSet, result)

	case gsubSingle:
		covered := l.coverage(off + int(binary.BigEndian.Uint16(l.data[off+2:])))
		switch format {
		case 1:
			if off+6 > len(l.data) {
				return
			}
			delta := int16(binary.BigEndian.Uint16(l.data[off+4:]))
			for _, g := range covered {
				if glyphSet[g] {
					result[GlyphID(int32(g)+int32(delta))] = true
				}
			}
		case 2:
			if off+6 > len(l.data) {
				return
			}
			count := int(binary.BigEndian.Uint16(l.data[off+4:]))
			for i, g := range covered {
				if i >= count || off+6+i*2+2 > len(l.data) {
					break
				}
				if glyphSet[g] {
					result[GlyphID(binary.BigEndian.Uint16(l.data[off+6+i*2:]))] = true
				}
			}
		}

	case gsubMultiple, gsubAlternate:
		// Both share the same shape: coverage + sequence/alternate-set
		// offsets, each holding a glyph count and glyph ids.
		if format != 1 || off+6 > len(l.data) {
			return
		}
		covered := l.coverage(off + int(binary.BigEndian.Uint16(l.data[off+2:])))
		count := int(binary.BigEndian.Uint16(l.data[off+4:]))
		for i, g := range covered {
			if i >= count || off+6+i*2+2 > len(l.data) {
				break
			}
			if !glyphSet[g] {
				continue
			}
			setOff := off + int(binary.BigEndian.Uint16(l.data[off+6+i*2:]))
			if setOff+2 > len(l.data) {
				continue
			}
			glyphCount := int(binary.BigEndian.Uint16(l.data[setOff:]))
			for j := 0; j < glyphCount; j++ {
				if setOff+2+j*2+2 > len(l.data) {
					break
				}
				result[GlyphID(binary.BigEndian.Uint16(l.data[setOff+2+j*2:]))] = true
			}
		}

	case gsubLigature:
		if format != 1 || off+6 > len(l.data) {
			return
		}
		covered := l.coverage(off + int(binary.BigEndian.Uint16(l.data[off+2:])))
		count := int(binary.BigEndian.Uint16(l.data[off+4:]))
		for i, first := range covered {
			if i >= count || off+6+i*2+2 > len(l.data) {
				break
			}
			if !glyphSet[first] {
				continue
			}
			setOff := off + int(binary.BigEndian.Uint16(l.data[off+6+i*2:]))
			if setOff+2 > len(l.data) {
				continue
			}
			ligCount := int(binary.BigEndian.Uint16(l.data[setOff:]))
			for j := 0; j < ligCount; j++ {
				if setOff+2+j*2+2 > len(l.data) {
					break
				}
				ligOff := setOff + int(binary.BigEndian.Uint16(l.data[setOff+2+j*2:]))
				if ligOff+4 > len(l.data) {
					continue
				}
				ligGlyph := GlyphID(binary.BigEndian.Uint16(l.data[ligOff:]))
				compCount := int(binary.BigEndian.Uint16(l.data[ligOff+2:]))
				allPresent := true
				for k := 0; k < compCount-1; k++ {
					if ligOff+4+k*2+2 > len(l.data) {
						allPresent = false
						break
					}
					comp := GlyphID(binary.BigEndian.Uint16(l.data[ligOff+4+k*2:]))
					if !glyphSet[comp] {
						allPresent = false
						break
					}
				}
				if allPresent {
					result[ligGlyph] = true
				}
			}
		}
	}
}

// coverage returns the glyphs listed by a coverage table in coverage
// index order.
func (l *Layout) coverage(off int) []GlyphID {
	if off+4 > len(l.data) {
		return nil
	}
	format := int(binary.BigEndian.Uint16(l.data[off:]))
	count := int(binary.BigEndian.Uint16(l.data[off+2:]))

	var glyphs []GlyphID
	switch format {
	case 1:
		for i := 0; i < count; i++ {
			if off+4+i*2+2 > len(l.data) {
				break
			}
			glyphs = append(glyphs, GlyphID(binary.BigEndian.Uint16(l.data[off+4+i*2:])))
		}
	case 2:
		for i := 0; i < count; i++ {
			rec := off + 4 + i*6
			if rec+6 > len(l.data) {
				break
			}
			start := binary.BigEndian.Uint16(l.data[rec:])
			end := binary.BigEndian.Uint16(l.data[rec+2:])
			for g := int(start); g <= int(end); g++ {
				glyphs = append(glyphs, GlyphID(g))
			}
		}
	}
	return glyphs
}

// FilterFeatures returns a copy of a GSUB or GPOS table where every
// feature record whose tag is rejected by keep points at an empty feature
// table (zero lookups). Lookup data, script data and all indices are left
// in place, so offsets elsewhere in the table stay valid.
func FilterFeatures(data []byte, keep func(Tag) bool) ([]byte, error) {
	l, err := ParseLayout(data, true)
	if err != nil {
		return nil, err
	}

	anyDropped := false
	for i := 0; i < l.featureCount; i++ {
		tag, _ := l.featureRecord(i)
		if !keep(tag) {
			anyDropped = true
			break
		}
	}
	if !anyDropped {
		return data, nil
	}

	out := make([]byte, len(data), len(data)+4)
	copy(out, data)

	// Append the shared empty feature table and redirect dropped records
	// to it. The record offset is relative to the FeatureList.
	emptyOff := len(out) - l.featureList
	if emptyOff > 0xFFFF {
		return nil, ErrOverflow
	}
	out = append(out, 0, 0, 0, 0) // featureParams = 0, lookupIndexCount = 0

	for i := 0; i < l.featureCount; i++ {
		rec := l.featureList + 2 + i*6
		tag := Tag(binary.BigEndian.Uint32(out[rec:]))
		if !keep(tag) {
			binary.BigEndian.PutUint16(out[rec+4:], uint16(emptyOff))
		}
	}

	return out, nil
}

// ParseLayoutFromFont parses the GSUB or GPOS table from a font.
func ParseLayoutFromFont(font *Font, tag Tag) (*Layout, error) {
	data, err := font.TableData(tag)
	if err != nil {
		return nil, err
	}
	return ParseLayout(data, tag == TagGSUB)
}
