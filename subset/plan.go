package subset

import (
	"github.com/boxesandglue/ift/ot"
)

// Plan holds the computed glyph closure and parsed tables for subsetting.
// Glyph ids are never remapped: the output font keeps the source's glyph
// count and every glyph outside the closure becomes an empty slot.
type Plan struct {
	source *ot.Font
	input  *Input

	// glyphSet contains all glyph IDs to retain.
	glyphSet map[ot.GlyphID]bool

	// Parsed tables (cached for subsetting)
	cmap *ot.Cmap
	glyf *ot.Glyf
	gvar *ot.Gvar
	fvar *ot.Fvar
	gsub *ot.Layout
}

// CreatePlan creates a subset plan from a font and input configuration.
func CreatePlan(font *ot.Font, input *Input) (*Plan, error) {
	p := &Plan{
		source:   font,
		input:    input,
		glyphSet: make(map[ot.GlyphID]bool),
	}

	if err := p.parseTables(); err != nil {
		return nil, err
	}

	p.computeGlyphClosure()

	return p, nil
}

// parseTables parses the font tables needed for subsetting.
func (p *Plan) parseTables() error {
	if p.source.HasTable(ot.TagCmap) {
		data, err := p.source.TableData(ot.TagCmap)
		if err != nil {
			return err
		}
		p.cmap, err = ot.ParseCmap(data)
		if err != nil {
			return err
		}
	}

	if p.source.HasTable(ot.TagGlyf) && p.source.HasTable(ot.TagLoca) {
		glyf, err := ot.ParseGlyfFromFont(p.source)
		if err != nil {
			return err
		}
		p.glyf = glyf
	}

	if p.source.HasTable(ot.TagGSUB) {
		data, _ := p.source.TableData(ot.TagGSUB)
		p.gsub, _ = ot.ParseLayout(data, true)
	}
	if p.source.HasTable(ot.TagFvar) {
		data, _ := p.source.TableData(ot.TagFvar)
		p.fvar, _ = ot.ParseFvar(data)
	}
	if p.source.HasTable(ot.TagGvar) {
		data, _ := p.source.TableData(ot.TagGvar)
		p.gvar, _ = ot.ParseGvar(data)
	}

	return nil
}

// computeGlyphClosure computes all glyphs that need to be retained.
func (p *Plan) computeGlyphClosure() {
	// Always keep .notdef (GID 0)
	p.glyphSet[0] = true

	// Add glyphs for requested Unicode codepoints
	if p.cmap != nil {
		for cp := range p.input.unicodes {
			if gid, ok := p.cmap.Lookup(cp); ok {
				p.glyphSet[gid] = true
			}
		}
	}

	// Add explicitly requested glyphs
	for gid := range p.input.glyphs {
		p.glyphSet[gid] = true
	}

	// Substitution closure first: ligatures etc. may be composites
	// whose components only the glyf closure picks up.
	if p.input.Flags&FlagNoLayoutClosure == 0 {
		p.computeGSUBClosure()
	}

	p.computeCompositeGlyphClosure()
}

// computeCompositeGlyphClosure adds component glyphs from composites.
func (p *Plan) computeCompositeGlyphClosure() {
	if p.glyf == nil {
		return
	}

	// Iterate until no new glyphs are added (for nested composites)
	for {
		added := false

		for gid := range p.glyphSet {
			for _, comp := range p.glyf.Components(gid) {
				if !p.glyphSet[comp] {
					p.glyphSet[comp] = true
					added = true
				}
			}
		}

		if !added {
			break
		}
	}
}

// computeGSUBClosure adds glyphs reachable through GSUB substitutions
// from lookups referenced by retained features.
func (p *Plan) computeGSUBClosure() {
	if p.gsub == nil {
		return
	}

	var lookups map[int]bool
	if p.input.HasLayoutFeatures() {
		lookups = p.gsub.LookupIndices(p.input.ShouldKeepFeature)
	} else {
		lookups = p.gsub.LookupIndices(nil)
	}

	// Iterate until no new glyphs are added
	for {
		added := false

		for gid := range p.gsub.ClosureGlyphs(p.glyphSet, lookups) {
			if !p.glyphSet[gid] {
				p.glyphSet[gid] = true
				added = true
			}
		}

		if !added {
			break
		}
	}
}

// GlyphSet returns the set of glyph IDs to retain.
func (p *Plan) GlyphSet() map[ot.GlyphID]bool {
	return p.glyphSet
}

// NumOutputGlyphs returns the number of glyph slots in the output font,
// which always equals the source glyph count.
func (p *Plan) NumOutputGlyphs() int {
	return p.source.NumGlyphs()
}

// Source returns the source font.
func (p *Plan) Source() *ot.Font {
	return p.source
}

// Input returns the input configuration.
func (p *Plan) Input() *Input {
	return p.input
}
