// Package testutil builds small synthetic TrueType fonts in memory for
// tests: a handful of glyphs, a cmap, optionally a ligature GSUB, an fvar
// axis and gvar data. The glyph outlines are structurally valid but carry
// marker bytes instead of real contours so tests can identify glyph data
// after subsetting and patching.
package testutil

import (
	"github.com/boxesandglue/ift/ot"
)

// Font describes a synthetic test font.
type Font struct {
	// Glyphs holds raw glyf data per glyph id; nil entries are empty
	// glyphs.
	Glyphs [][]byte

	// CmapEntries maps codepoints to glyph ids.
	CmapEntries map[ot.Codepoint]ot.GlyphID

	// Optional tables.
	GSUB []byte
	Fvar []byte
	Gvar []byte

	// Extra tables are added as-is.
	Extra map[ot.Tag][]byte
}

// Build assembles the font binary.
func (f *Font) Build() []byte {
	numGlyphs := len(f.Glyphs)

	builder := ot.NewFontBuilder()
	builder.AddTable(ot.TagHead, buildHead())
	builder.AddTable(ot.TagMaxp, buildMaxp(numGlyphs))
	builder.AddTable(ot.TagHhea, buildHhea(numGlyphs))
	builder.AddTable(ot.TagHmtx, buildHmtx(numGlyphs))
	builder.AddTable(ot.TagCmap, ot.BuildCmap(f.CmapEntries))

	glyf, loca := ot.BuildGlyf(f.Glyphs)
	builder.AddTable(ot.TagGlyf, glyf)
	builder.AddTable(ot.TagLoca, loca)

	if f.GSUB != nil {
		builder.AddTable(ot.TagGSUB, f.GSUB)
	}
	if f.Fvar != nil {
		builder.AddTable(ot.TagFvar, f.Fvar)
	}
	if f.Gvar != nil {
		builder.AddTable(ot.TagGvar, f.Gvar)
	}
	for tag, data := range f.Extra {
		builder.AddTable(tag, data)
	}

	data, err := builder.Build()
	if err != nil {
		panic("testutil: building font: " + err.Error())
	}
	return data
}

// Parse builds the font and parses it back.
func (f *Font) Parse() *ot.Font {
	font, err := ot.ParseFont(f.Build(), 0)
	if err != nil {
		panic("testutil: parsing font: " + err.Error())
	}
	return font
}

// SimpleGlyph returns glyf data for a one-point glyph whose last byte is
// the marker.
func SimpleGlyph(marker byte) []byte {
	w := ot.NewWriter()
	w.I16(1) // numberOfContours
	w.I16(0) // xMin
	w.I16(0) // yMin
	w.I16(100)
	w.I16(100)
	w.U16(0)           // endPtsOfContours[0]
	w.U16(0)           // instructionLength
	w.U8(0x07)         // flags: on curve, x short, y short
	w.U8(1)            // x coordinate
	w.U8(uint32(marker)) // y coordinate doubles as marker
	return w.Bytes()
}

// CompositeGlyph returns glyf data referencing the given component
// glyphs.
func CompositeGlyph(components ...ot.GlyphID) []byte {
	w := ot.NewWriter()
	w.I16(-1) // composite
	w.I16(0)
	w.I16(0)
	w.I16(100)
	w.I16(100)
	for i, comp := range components {
		flags := uint32(0x0001 | 0x0002) // words, xy values
		if i < len(components)-1 {
			flags |= 0x0020 // more components
		}
		w.U16(flags)
		w.U16(uint32(comp))
		w.I16(0) // arg1
		w.I16(0) // arg2
	}
	return w.Bytes()
}

// LigatureGSUB builds a GSUB table with one "liga" feature substituting
// the glyph pair (first, second) by lig.
func LigatureGSUB(first, second, lig ot.GlyphID) []byte {
	w := ot.NewWriter()
	w.U16(1)  // majorVersion
	w.U16(0)  // minorVersion
	w.U16(10) // scriptListOffset
	w.U16(12) // featureListOffset
	w.U16(26) // lookupListOffset

	// ScriptList (empty) at 10.
	w.U16(0)

	// FeatureList at 12: one record, feature table right behind it.
	w.U16(1)
	w.Tag(ot.TagFromString("liga"))
	w.U16(8) // offset from FeatureList start
	// FeatureTable at 20.
	w.U16(0) // featureParams
	w.U16(1) // lookupIndexCount
	w.U16(0) // lookup 0

	// LookupList at 26.
	w.U16(1)
	w.U16(4) // offset from LookupList start
	// Lookup at 30.
	w.U16(4) // lookupType ligature
	w.U16(0) // lookupFlag
	w.U16(1) // subTableCount
	w.U16(8) // subtable offset from lookup start

	// Ligature substitution subtable at 38.
	w.U16(1)  // format
	w.U16(8)  // coverage offset from subtable start
	w.U16(1)  // ligatureSetCount
	w.U16(14) // ligatureSet offset
	// Coverage at 46.
	w.U16(1) // format 1
	w.U16(1)
	w.U16(uint32(first))
	// LigatureSet at 52.
	w.U16(1)
	w.U16(4) // ligature offset from set start
	// Ligature at 56.
	w.U16(uint32(lig))
	w.U16(2) // componentCount
	w.U16(uint32(second))

	return w.Bytes()
}

// AxisDef describes one fvar axis.
type AxisDef struct {
	Tag           ot.Tag
	Min, Def, Max float32
}

// BuildFvar builds an fvar table with the given axes and no named
// instances.
func BuildFvar(axes ...AxisDef) []byte {
	w := ot.NewWriter()
	w.U16(1)  // majorVersion
	w.U16(0)  // minorVersion
	w.U16(16) // axesArrayOffset
	w.U16(2)  // reserved
	w.U16(uint32(len(axes)))
	w.U16(20) // axisSize
	w.U16(0)  // instanceCount
	w.U16(uint32(len(axes)*4 + 4))
	for _, axis := range axes {
		w.Tag(axis.Tag)
		w.Fixed(axis.Min)
		w.Fixed(axis.Def)
		w.Fixed(axis.Max)
		w.U16(0)   // flags
		w.U16(256) // nameID
	}
	return w.Bytes()
}

// BuildGvar builds a gvar table with per-glyph variation data and no
// shared tuples.
func BuildGvar(axisCount int, glyphs [][]byte) []byte {
	w := ot.NewWriter()
	headerSize := 20
	offsetsSize := (len(glyphs) + 1) * 4
	arrayOffset := headerSize + offsetsSize

	w.U16(1) // majorVersion
	w.U16(0) // minorVersion
	w.U16(uint32(axisCount))
	w.U16(0) // sharedTupleCount
	w.U32(uint32(arrayOffset))
	w.U16(uint32(len(glyphs)))
	w.U16(0x0001) // long offsets
	w.U32(uint32(arrayOffset))

	off := uint32(0)
	for _, g := range glyphs {
		w.U32(off)
		off += uint32(len(g))
		if off%2 != 0 {
			off++
		}
	}
	w.U32(off)
	for _, g := range glyphs {
		w.Raw(g)
		if len(g)%2 != 0 {
			w.U8(0)
		}
	}
	return w.Bytes()
}

func buildHead() []byte {
	w := ot.NewWriter()
	w.U32(0x00010000) // version
	w.U32(0x00010000) // fontRevision
	w.U32(0)          // checksumAdjustment
	w.U32(0x5F0F3CF5) // magicNumber
	w.U16(0)          // flags
	w.U16(1000)       // unitsPerEm
	w.Raw(make([]byte, 16)) // created, modified
	w.I16(0)          // xMin
	w.I16(0)          // yMin
	w.I16(1000)       // xMax
	w.I16(1000)       // yMax
	w.U16(0)          // macStyle
	w.U16(8)          // lowestRecPPEM
	w.I16(2)          // fontDirectionHint
	w.I16(1)          // indexToLocFormat: long
	w.I16(0)          // glyphDataFormat
	return w.Bytes()
}

func buildMaxp(numGlyphs int) []byte {
	w := ot.NewWriter()
	w.U32(0x00010000)
	w.U16(uint32(numGlyphs))
	w.Raw(make([]byte, 26)) // remaining maxp 1.0 fields
	return w.Bytes()
}

func buildHhea(numGlyphs int) []byte {
	w := ot.NewWriter()
	w.U32(0x00010000)
	w.I16(800)  // ascender
	w.I16(-200) // descender
	w.I16(0)    // lineGap
	w.U16(1000) // advanceWidthMax
	w.Raw(make([]byte, 22)) // bearings, slope, reserved, metricDataFormat
	w.U16(uint32(numGlyphs)) // numberOfHMetrics
	return w.Bytes()
}

func buildHmtx(numGlyphs int) []byte {
	w := ot.NewWriter()
	for i := 0; i < numGlyphs; i++ {
		w.U16(500) // advance
		w.I16(0)   // left side bearing
	}
	return w.Bytes()
}
