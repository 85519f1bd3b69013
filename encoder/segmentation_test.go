package encoder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxesandglue/ift/encoder"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/internal/testutil"
	"github.com/boxesandglue/ift/ot"
)

// ligatureFont: a=1, f=2, i=3, fi ligature=4 via GSUB.
func ligatureFont() *ot.Font {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1),
			testutil.SimpleGlyph(2),
			testutil.SimpleGlyph(3),
			testutil.SimpleGlyph(4),
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{
			'a': 1, 'f': 2, 'i': 3,
		},
		GSUB: testutil.LigatureGSUB(2, 3, 4),
	}
	return tf.Parse()
}

// The fi ligature glyph must land in a patch guarded by an AND condition
// over the f and i segments.
func TestLigatureSegmentation(t *testing.T) {
	font := ligatureFont()

	seg, err := encoder.SegmentGlyphs(font, encoder.DefaultSubsetter{},
		ift.CodepointString("a"),
		[]ift.SubsetDefinition{
			ift.CodepointString("f"),
			ift.CodepointString("i"),
		})
	require.NoError(t, err)

	require.Len(t, seg.Conditions, 3)

	// Two single-segment conditions first.
	c0, c1, c2 := seg.Conditions[0], seg.Conditions[1], seg.Conditions[2]
	assert.Equal(t, encoder.ConditionSingleSegment, c0.Kind)
	assert.Equal(t, 0, c0.Segment)
	assert.True(t, seg.Patches[c0.Activated][2], "f glyph in segment 0 patch")

	assert.Equal(t, encoder.ConditionSingleSegment, c1.Kind)
	assert.Equal(t, 1, c1.Segment)
	assert.True(t, seg.Patches[c1.Activated][3], "i glyph in segment 1 patch")

	assert.Equal(t, encoder.ConditionAnd, c2.Kind)
	assert.Equal(t, []uint32{c0.Activated, c1.Activated}, c2.Patches)
	assert.True(t, seg.Patches[c2.Activated][4], "ligature glyph under AND condition")
	assert.Len(t, seg.Patches[c2.Activated], 1)

	// Initial font glyphs: notdef and a.
	assert.True(t, seg.InitFontGlyphs[0])
	assert.True(t, seg.InitFontGlyphs[1])

	// Everything is mapped.
	assert.Empty(t, seg.UnmappedGlyphs)

	want := "initial font: {gid0, gid1}\n" +
		"unmapped: {}\n" +
		"p0: {gid2}\n" +
		"p1: {gid3}\n" +
		"p2: {gid4}\n" +
		"if (s0) then p0\n" +
		"if (s1) then p1\n" +
		"if (p0 AND p1) then p2\n"
	assert.Equal(t, want, seg.String())
}

// Independent segments produce only single-segment conditions.
func TestIndependentSegmentation(t *testing.T) {
	font := abcdFont()

	seg, err := encoder.SegmentGlyphs(font, encoder.DefaultSubsetter{},
		ift.CodepointString("a"),
		[]ift.SubsetDefinition{
			ift.CodepointString("b"),
			ift.CodepointString("c"),
		})
	require.NoError(t, err)

	require.Len(t, seg.Conditions, 2)
	for i, cond := range seg.Conditions {
		assert.Equal(t, encoder.ConditionSingleSegment, cond.Kind)
		assert.Equal(t, i, cond.Segment)
	}
	assert.True(t, seg.Patches[seg.Conditions[0].Activated][2])
	assert.True(t, seg.Patches[seg.Conditions[1].Activated][3])
}
