package subset_test

import (
	"bytes"
	"testing"

	"github.com/boxesandglue/ift/internal/testutil"
	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/subset"
)

// fixture: gid 1..4 map a..d, gid 5 is a composite using gid 2.
func fixtureFont() *ot.Font {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1),
			testutil.SimpleGlyph(2),
			testutil.SimpleGlyph(3),
			testutil.SimpleGlyph(4),
			testutil.CompositeGlyph(2),
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{
			'a': 1, 'b': 2, 'c': 3, 'd': 4, 'e': 5,
		},
	}
	return tf.Parse()
}

func TestCutRetainsGlyphIds(t *testing.T) {
	font := fixtureFont()

	in := subset.NewInput()
	in.Flags = subset.FlagNotdefOutline
	in.AddString("ad")

	data, err := subset.Cut(font, in)
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}

	cut, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("ParseFont: %v", err)
	}

	if cut.NumGlyphs() != font.NumGlyphs() {
		t.Errorf("NumGlyphs = %d, want %d", cut.NumGlyphs(), font.NumGlyphs())
	}

	glyf, err := ot.ParseGlyfFromFont(cut)
	if err != nil {
		t.Fatalf("ParseGlyfFromFont: %v", err)
	}
	orig, _ := ot.ParseGlyfFromFont(font)

	// Kept glyphs carry their original data; dropped ones are empty.
	for _, gid := range []ot.GlyphID{0, 1, 4} {
		if !bytes.Equal(glyf.GlyphBytes(gid), orig.GlyphBytes(gid)) {
			t.Errorf("glyph %d data changed", gid)
		}
	}
	for _, gid := range []ot.GlyphID{2, 3, 5} {
		if glyf.GlyphBytes(gid) != nil {
			t.Errorf("glyph %d should be empty", gid)
		}
	}

	// The cmap covers exactly the requested codepoints.
	cmap, err := ot.ParseCmapFromFont(cut)
	if err != nil {
		t.Fatalf("ParseCmapFromFont: %v", err)
	}
	if len(cmap.Mappings()) != 2 {
		t.Errorf("cmap maps %v, want a and d", cmap.Codepoints())
	}
	if gid, ok := cmap.Lookup('a'); !ok || gid != 1 {
		t.Errorf("cmap a = %d, %v; want 1", gid, ok)
	}

	// The loca format is long.
	if format, _ := cut.IndexToLocFormat(); format != 1 {
		t.Errorf("indexToLocFormat = %d, want 1", format)
	}
}

func TestCompositeClosure(t *testing.T) {
	font := fixtureFont()

	in := subset.NewInput()
	in.AddString("e") // composite glyph 5 referencing glyph 2

	set, err := subset.GlyphClosure(font, in)
	if err != nil {
		t.Fatalf("GlyphClosure: %v", err)
	}
	for _, gid := range []ot.GlyphID{0, 2, 5} {
		if !set[gid] {
			t.Errorf("closure misses glyph %d: %v", gid, set)
		}
	}
	if set[3] {
		t.Error("closure contains unrelated glyph 3")
	}
}

func TestLigatureClosure(t *testing.T) {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1), // f
			testutil.SimpleGlyph(2), // i
			testutil.SimpleGlyph(3), // fi
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{'f': 1, 'i': 2},
		GSUB:        testutil.LigatureGSUB(1, 2, 3),
	}
	font := tf.Parse()

	in := subset.NewInput()
	in.AddString("fi")
	set, err := subset.GlyphClosure(font, in)
	if err != nil {
		t.Fatalf("GlyphClosure: %v", err)
	}
	if !set[3] {
		t.Errorf("closure of f+i misses the ligature: %v", set)
	}

	in = subset.NewInput()
	in.AddString("f")
	set, err = subset.GlyphClosure(font, in)
	if err != nil {
		t.Fatalf("GlyphClosure: %v", err)
	}
	if set[3] {
		t.Errorf("closure of f alone must not pull the ligature: %v", set)
	}

	// With layout closure disabled the ligature never appears.
	in = subset.NewInput()
	in.AddString("fi")
	in.Flags = subset.FlagNoLayoutClosure
	set, _ = subset.GlyphClosure(font, in)
	if set[3] {
		t.Error("FlagNoLayoutClosure must skip the GSUB closure")
	}
}

func TestFeatureFilter(t *testing.T) {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1),
			testutil.SimpleGlyph(2),
			testutil.SimpleGlyph(3),
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{'f': 1, 'i': 2},
		GSUB:        testutil.LigatureGSUB(1, 2, 3),
	}
	font := tf.Parse()

	// Retaining an unrelated feature drops liga, so the ligature glyph
	// leaves the closure and the cut GSUB reports no features.
	in := subset.NewInput()
	in.AddString("fi")
	in.KeepFeature(ot.TagFromString("smcp"))

	set, err := subset.GlyphClosure(font, in)
	if err != nil {
		t.Fatalf("GlyphClosure: %v", err)
	}
	if set[3] {
		t.Error("filtered feature still contributes glyphs")
	}

	data, err := subset.Cut(font, in)
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	cut, _ := ot.ParseFont(data, 0)
	layout, err := ot.ParseLayoutFromFont(cut, ot.TagGSUB)
	if err != nil {
		t.Fatalf("ParseLayoutFromFont: %v", err)
	}
	if tags := layout.FeatureTags(); len(tags) != 0 {
		t.Errorf("cut font still exposes features %v", tags)
	}
}

func TestPassThroughCmap(t *testing.T) {
	font := fixtureFont()

	in := subset.NewInput()
	in.AddString("a")
	in.Flags = subset.FlagPassThroughCmap

	data, err := subset.Cut(font, in)
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	cut, _ := ot.ParseFont(data, 0)

	want, _ := font.TableData(ot.TagCmap)
	got, _ := cut.TableData(ot.TagCmap)
	if !bytes.Equal(want, got) {
		t.Error("cmap should pass through unchanged")
	}
}

func TestDesignSpaceClamp(t *testing.T) {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1),
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{'a': 1},
		Fvar: testutil.BuildFvar(
			testutil.AxisDef{Tag: ot.TagAxisWidth, Min: 50, Def: 100, Max: 200},
		),
		Gvar: testutil.BuildGvar(1, [][]byte{nil, {1, 2, 3, 4}}),
	}
	font := tf.Parse()

	in := subset.NewInput()
	in.AddString("a")
	in.SetAxisRange(ot.TagAxisWidth, 100, 100)

	data, err := subset.Cut(font, in)
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	cut, _ := ot.ParseFont(data, 0)

	fvar, err := ot.ParseFvarFromFont(cut)
	if err != nil {
		t.Fatalf("ParseFvarFromFont: %v", err)
	}
	axis, _ := fvar.FindAxis(ot.TagAxisWidth)
	if axis.MinValue != 100 || axis.MaxValue != 100 {
		t.Errorf("wdth = [%g, %g], want pinned to 100", axis.MinValue, axis.MaxValue)
	}

	// gvar survives with data only for retained glyphs.
	gvar, err := ot.ParseGvarFromFont(cut)
	if err != nil {
		t.Fatalf("ParseGvarFromFont: %v", err)
	}
	if !bytes.Equal(gvar.GlyphBytes(1), []byte{1, 2, 3, 4}) {
		t.Error("gvar data for glyph 1 lost")
	}
}
