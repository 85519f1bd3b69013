package subset

import (
	"github.com/boxesandglue/ift/ot"
)

// GlyphClosure computes the glyph closure for an input configuration
// without cutting a subset: the glyphs that must be present so that the
// requested codepoints, features and variations render as in the source.
func GlyphClosure(font *ot.Font, input *Input) (map[ot.GlyphID]bool, error) {
	plan, err := CreatePlan(font, input)
	if err != nil {
		return nil, err
	}
	return plan.GlyphSet(), nil
}

// Cut subsets the font according to input and returns the new binary.
func Cut(font *ot.Font, input *Input) ([]byte, error) {
	plan, err := CreatePlan(font, input)
	if err != nil {
		return nil, err
	}
	return plan.Execute()
}
