// Package subset provides incremental-transfer-compatible font
// subsetting: glyph ids and the glyph count are always retained, so a
// subset font can later be grown back toward the original by splicing in
// glyph data. Unrecognized tables pass through unchanged.
package subset

import "github.com/boxesandglue/ift/ot"

// Input configures which glyphs and tables to include in the subset.
type Input struct {
	// unicodes specifies Unicode codepoints to retain.
	unicodes map[ot.Codepoint]bool

	// glyphs specifies explicit glyph IDs to retain.
	glyphs map[ot.GlyphID]bool

	// dropTables specifies tables to exclude from output.
	dropTables map[ot.Tag]bool

	// passThroughTables specifies tables to copy unchanged even when
	// the subsetter would otherwise rebuild them.
	passThroughTables map[ot.Tag]bool

	// layoutFeatures specifies OpenType features to retain when
	// restrictFeatures is set; otherwise all features are retained.
	layoutFeatures   map[ot.Tag]bool
	restrictFeatures bool

	// axisRanges restricts variation axes to sub-ranges of the font's
	// design space.
	axisRanges map[ot.Tag][2]float32

	// Flags controls subsetting behavior.
	Flags Flags
}

// Flags controls various subsetting options.
type Flags uint32

const (
	// FlagNoLayoutClosure skips the GSUB glyph closure.
	FlagNoLayoutClosure Flags = 1 << iota

	// FlagNotdefOutline retains the .notdef glyph outline.
	FlagNotdefOutline

	// FlagPassThroughCmap copies the cmap table unchanged instead of
	// rebuilding it from the retained codepoints.
	FlagPassThroughCmap
)

// NewInput creates a new subset input configuration.
func NewInput() *Input {
	return &Input{
		unicodes:          make(map[ot.Codepoint]bool),
		glyphs:            make(map[ot.GlyphID]bool),
		dropTables:        make(map[ot.Tag]bool),
		passThroughTables: make(map[ot.Tag]bool),
		layoutFeatures:    make(map[ot.Tag]bool),
		axisRanges:        make(map[ot.Tag][2]float32),
	}
}

// AddUnicode adds a Unicode codepoint to retain.
func (i *Input) AddUnicode(cp ot.Codepoint) {
	i.unicodes[cp] = true
}

// AddString adds all codepoints from a string.
func (i *Input) AddString(s string) {
	for _, r := range s {
		i.unicodes[ot.Codepoint(r)] = true
	}
}

// AddGlyph adds a glyph ID to retain.
func (i *Input) AddGlyph(gid ot.GlyphID) {
	i.glyphs[gid] = true
}

// DropTable marks a table to be excluded from output.
func (i *Input) DropTable(tag ot.Tag) {
	i.dropTables[tag] = true
}

// PassThroughTable marks a table to be copied unchanged.
func (i *Input) PassThroughTable(tag ot.Tag) {
	i.passThroughTables[tag] = true
}

// KeepFeature restricts the layout features to an explicit set and adds
// tag to it. Without any restriction all features are retained.
func (i *Input) KeepFeature(tag ot.Tag) {
	i.restrictFeatures = true
	i.layoutFeatures[tag] = true
}

// RestrictFeatures switches to an explicit feature set without adding
// any feature, so every feature is filtered out.
func (i *Input) RestrictFeatures() {
	i.restrictFeatures = true
}

// SetAxisRange restricts a variation axis to [min, max] in design-space
// coordinates.
func (i *Input) SetAxisRange(tag ot.Tag, min, max float32) {
	i.axisRanges[tag] = [2]float32{min, max}
}

// Unicodes returns the set of Unicode codepoints to retain.
func (i *Input) Unicodes() map[ot.Codepoint]bool {
	return i.unicodes
}

// Glyphs returns the set of glyph IDs to retain.
func (i *Input) Glyphs() map[ot.GlyphID]bool {
	return i.glyphs
}

// ShouldDropTable returns true if the table should be excluded.
func (i *Input) ShouldDropTable(tag ot.Tag) bool {
	return i.dropTables[tag]
}

// ShouldPassThrough returns true if the table should be copied unchanged.
func (i *Input) ShouldPassThrough(tag ot.Tag) bool {
	return i.passThroughTables[tag]
}

// HasLayoutFeatures returns true if the feature set is restricted.
func (i *Input) HasLayoutFeatures() bool {
	return i.restrictFeatures
}

// ShouldKeepFeature returns true if the feature should be retained.
func (i *Input) ShouldKeepFeature(tag ot.Tag) bool {
	if !i.restrictFeatures {
		return true // Keep all unless restricted
	}
	return i.layoutFeatures[tag]
}

// AxisRanges returns the configured axis restrictions.
func (i *Input) AxisRanges() map[ot.Tag][2]float32 {
	return i.axisRanges
}
