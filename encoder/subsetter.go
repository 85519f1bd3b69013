package encoder

import (
	"fmt"

	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/subset"
)

// SubsetOptions carries encoder policy into a subsetting call.
type SubsetOptions struct {
	// PassThroughCmap keeps the original cmap so codepoints whose
	// glyphs arrive later via glyph-keyed patches stay resolvable.
	PassThroughCmap bool

	// RetainFeatures lists the layout features to keep; nil keeps all.
	RetainFeatures map[ot.Tag]bool
}

// Subsetter cuts subsets of a font and computes glyph closures. The
// encoder calls it at most once per distinct input; implementations must
// not mutate the font.
type Subsetter interface {
	Subset(font *ot.Font, def ift.SubsetDefinition, opts SubsetOptions) ([]byte, error)
	GlyphClosure(font *ot.Font, def ift.SubsetDefinition) (map[ot.GlyphID]bool, error)
}

// DefaultSubsetter implements Subsetter with the subset package. Glyph
// ids are retained, unrecognized tables pass through, and the .notdef
// outline is kept, as incremental transfer requires.
type DefaultSubsetter struct{}

func (DefaultSubsetter) newInput(def ift.SubsetDefinition, opts SubsetOptions) *subset.Input {
	in := subset.NewInput()
	in.Flags = subset.FlagNotdefOutline
	if opts.PassThroughCmap {
		in.Flags |= subset.FlagPassThroughCmap
	}

	for cp := range def.Codepoints {
		in.AddUnicode(cp)
	}
	for gid := range def.Gids {
		in.AddGlyph(gid)
	}
	if opts.RetainFeatures != nil {
		// A non-nil empty set filters every feature out.
		in.RestrictFeatures()
		for tag := range opts.RetainFeatures {
			in.KeepFeature(tag)
		}
	}
	for tag, r := range def.DesignSpace {
		in.SetAxisRange(tag, r.Start(), r.End())
	}
	return in
}

// Subset cuts the font down to the given definition.
func (s DefaultSubsetter) Subset(font *ot.Font, def ift.SubsetDefinition, opts SubsetOptions) ([]byte, error) {
	data, err := subset.Cut(font, s.newInput(def, opts))
	if err != nil {
		return nil, fmt.Errorf("%w: subsetter: %v", ift.ErrResource, err)
	}
	return data, nil
}

// GlyphClosure computes the closure of the definition over the font.
func (s DefaultSubsetter) GlyphClosure(font *ot.Font, def ift.SubsetDefinition) (map[ot.GlyphID]bool, error) {
	set, err := subset.GlyphClosure(font, s.newInput(def, SubsetOptions{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ift.ErrClosure, err)
	}
	return set, nil
}
