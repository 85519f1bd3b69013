package subset

import (
	"github.com/boxesandglue/ift/ot"
)

// Execute performs the subsetting operation and returns the new font data.
func (p *Plan) Execute() ([]byte, error) {
	builder := ot.NewFontBuilder()

	for _, tag := range p.source.Tags() {
		if p.input.ShouldDropTable(tag) {
			continue
		}

		data, err := p.source.TableData(tag)
		if err != nil {
			return nil, err
		}

		if p.input.ShouldPassThrough(tag) {
			builder.AddTable(tag, data)
			continue
		}

		switch tag {
		case ot.TagGlyf:
			glyf, loca, err := p.subsetGlyf()
			if err != nil {
				return nil, err
			}
			builder.AddTable(ot.TagGlyf, glyf)
			builder.AddTable(ot.TagLoca, loca)

		case ot.TagLoca:
			// Built together with glyf.

		case ot.TagHead:
			builder.AddTable(ot.TagHead, p.subsetHead(data))

		case ot.TagCmap:
			if p.input.Flags&FlagPassThroughCmap != 0 {
				builder.AddTable(ot.TagCmap, data)
			} else {
				builder.AddTable(ot.TagCmap, p.subsetCmap())
			}

		case ot.TagGvar:
			if p.gvar != nil {
				builder.AddTable(ot.TagGvar, p.subsetGvar())
			} else {
				builder.AddTable(tag, data)
			}

		case ot.TagFvar:
			if p.fvar != nil && len(p.input.axisRanges) > 0 {
				builder.AddTable(ot.TagFvar, p.fvar.ClampAxes(p.input.axisRanges))
			} else {
				builder.AddTable(tag, data)
			}

		case ot.TagGSUB, ot.TagGPOS:
			if p.input.HasLayoutFeatures() {
				filtered, err := ot.FilterFeatures(data, p.input.ShouldKeepFeature)
				if err != nil {
					return nil, err
				}
				builder.AddTable(tag, filtered)
			} else {
				builder.AddTable(tag, data)
			}

		default:
			// head/maxp/hhea/hmtx/name/OS2/post, hinting tables,
			// HVAR/avar and anything unrecognized pass through; glyph
			// ids and the glyph count never change.
			builder.AddTable(tag, data)
		}
	}

	return builder.Build()
}

// subsetHead returns a head table forced to the long loca format.
func (p *Plan) subsetHead(data []byte) []byte {
	if len(data) < 54 || p.glyf == nil {
		return data
	}
	out := make([]byte, len(data))
	copy(out, data)
	out[50] = 0
	out[51] = 1 // indexToLocFormat = long
	return out
}

// subsetGlyf builds the glyf and loca tables carrying only the closure
// glyphs. The glyph count is unchanged; excluded glyphs get empty slots.
func (p *Plan) subsetGlyf() (glyf, loca []byte, err error) {
	if p.glyf == nil {
		return nil, nil, ErrMissingTable
	}

	numGlyphs := p.glyf.NumGlyphs()
	glyphs := make([][]byte, numGlyphs)
	for gid := range p.glyphSet {
		if int(gid) >= numGlyphs {
			return nil, nil, ErrInvalidGlyph
		}
		if gid == 0 && p.input.Flags&FlagNotdefOutline == 0 {
			continue
		}
		glyphs[gid] = p.glyf.GlyphBytes(gid)
	}

	glyf, loca = ot.BuildGlyf(glyphs)
	return glyf, loca, nil
}

// subsetCmap rebuilds the cmap covering exactly the requested codepoints
// that the source maps.
func (p *Plan) subsetCmap() []byte {
	mappings := make(map[ot.Codepoint]ot.GlyphID)
	if p.cmap != nil {
		for cp := range p.input.unicodes {
			if gid, ok := p.cmap.Lookup(cp); ok {
				mappings[cp] = gid
			}
		}
	}
	return ot.BuildCmap(mappings)
}

// subsetGvar rebuilds gvar with variation data only for closure glyphs.
func (p *Plan) subsetGvar() []byte {
	glyphs := make([][]byte, p.gvar.GlyphCount())
	for gid := range p.glyphSet {
		if int(gid) < len(glyphs) {
			glyphs[gid] = p.gvar.GlyphBytes(gid)
		}
	}
	return p.gvar.Rebuild(glyphs)
}
