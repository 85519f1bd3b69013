package client

import (
	"fmt"

	"github.com/boxesandglue/ift/delta"
	"github.com/boxesandglue/ift/encoder"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

// applyTableKeyed applies a table-keyed patch: every sub-patch delivers a
// new version of one table as a delta against the current one, a
// replacement, or a removal. The font is rebuilt and the patch map
// reloaded, so a patch that carries a new IFT table swaps the whole map.
func (s *Session) applyTableKeyed(patch []byte) error {
	parsed, err := encoder.ParseTableKeyedPatch(patch)
	if err != nil {
		return err
	}
	if parsed.CompatId != s.patchMap.Id {
		return fmt.Errorf("%w: patch compat id %s does not match font %s",
			ift.ErrFormat, parsed.CompatId, s.patchMap.Id)
	}

	builder, err := ot.NewFontBuilderFrom(s.font)
	if err != nil {
		return fmt.Errorf("%w: %v", ift.ErrFormat, err)
	}

	differ := delta.Brotli{}
	for _, tp := range parsed.Tables {
		if tp.Remove {
			builder.RemoveTable(tp.Tag)
			continue
		}

		var base []byte
		if !tp.Replace && s.font.HasTable(tp.Tag) {
			base, err = s.font.TableData(tp.Tag)
			if err != nil {
				return fmt.Errorf("%w: %v", ift.ErrFormat, err)
			}
		}

		derived, err := differ.Patch(base, tp.Payload)
		if err != nil {
			return fmt.Errorf("%w: table %s: %v", ift.ErrFormat, tp.Tag, err)
		}
		if uint32(len(derived)) > tp.MaxLen {
			return fmt.Errorf("%w: table %s exceeds declared length", ift.ErrFormat, tp.Tag)
		}
		builder.AddTable(tp.Tag, derived)
	}

	rebuilt, err := builder.Build()
	if err != nil {
		return fmt.Errorf("%w: %v", ift.ErrFormat, err)
	}
	return s.reload(rebuilt)
}

// applyGlyphKeyed splices the patch's per-glyph data into the glyf (and
// gvar) tables without touching anything else. The glyph count and loca
// length are unchanged by construction.
func (s *Session) applyGlyphKeyed(patch []byte) error {
	parsed, err := encoder.ParseGlyphKeyedPatch(patch)
	if err != nil {
		return err
	}
	if parsed.CompatId != s.patchMap.Id {
		return fmt.Errorf("%w: patch compat id %s does not match font %s",
			ift.ErrFormat, parsed.CompatId, s.patchMap.Id)
	}

	builder, err := ot.NewFontBuilderFrom(s.font)
	if err != nil {
		return fmt.Errorf("%w: %v", ift.ErrFormat, err)
	}

	for t, tag := range parsed.Tables {
		switch tag {
		case ot.TagGlyf:
			glyf, err := ot.ParseGlyfFromFont(s.font)
			if err != nil {
				return fmt.Errorf("%w: %v", ift.ErrFormat, err)
			}
			glyphs := make([][]byte, glyf.NumGlyphs())
			for gid := range glyphs {
				glyphs[gid] = glyf.GlyphBytes(ot.GlyphID(gid))
			}
			if err := spliceGlyphs(glyphs, parsed.Gids, parsed.Data[t]); err != nil {
				return err
			}
			newGlyf, newLoca := ot.BuildGlyf(glyphs)
			builder.AddTable(ot.TagGlyf, newGlyf)
			builder.AddTable(ot.TagLoca, newLoca)

		case ot.TagGvar:
			gvar, err := ot.ParseGvarFromFont(s.font)
			if err != nil {
				return fmt.Errorf("%w: %v", ift.ErrFormat, err)
			}
			glyphs := make([][]byte, gvar.GlyphCount())
			for gid := range glyphs {
				glyphs[gid] = gvar.GlyphBytes(ot.GlyphID(gid))
			}
			if err := spliceGlyphs(glyphs, parsed.Gids, parsed.Data[t]); err != nil {
				return err
			}
			builder.AddTable(ot.TagGvar, gvar.Rebuild(glyphs))

		default:
			return fmt.Errorf("%w: glyph-keyed patch targets unsupported table %s", ift.ErrFormat, tag)
		}
	}

	rebuilt, err := builder.Build()
	if err != nil {
		return fmt.Errorf("%w: %v", ift.ErrFormat, err)
	}
	return s.reload(rebuilt)
}

func spliceGlyphs(glyphs [][]byte, gids []ot.GlyphID, data [][]byte) error {
	for i, gid := range gids {
		if int(gid) >= len(glyphs) {
			return fmt.Errorf("%w: glyph %d outside the font's glyph count", ift.ErrFormat, gid)
		}
		glyphs[gid] = data[i]
	}
	return nil
}
