package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxesandglue/ift/client"
	"github.com/boxesandglue/ift/encoder"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/internal/testutil"
	"github.com/boxesandglue/ift/ot"
)

// An optional feature group travels as an IFTX extension entry: the
// initial font has liga filtered out (and the ligature glyph absent);
// loading the feature patch brings both back.
func TestExtendOptionalFeature(t *testing.T) {
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
	liga := ot.TagFromString("liga")

	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{2, 4, 6, 8}))
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("fi")))
	enc.AddOptionalFeatureGroup(liga)

	initial, err := enc.Encode()
	require.NoError(t, err)
	require.Len(t, enc.Patches(), 1)

	// The initial font filters liga and drops the ligature glyph.
	initialFont := mustParse(t, initial)
	require.True(t, initialFont.HasTable(ot.TagIFTX))

	glyf, err := ot.ParseGlyfFromFont(initialFont)
	require.NoError(t, err)
	assert.Nil(t, glyf.GlyphBytes(3), "ligature must not ship in the base")

	layout, err := ot.ParseLayoutFromFont(initialFont, ot.TagGSUB)
	require.NoError(t, err)
	assert.Empty(t, layout.FeatureTags(), "liga must be filtered in the base")

	// A client that never asks for liga fetches nothing.
	session, err := client.NewSession(initial, fetcherFor(enc))
	require.NoError(t, err)
	require.NoError(t, session.Extend(ift.CodepointString("fi")))
	glyf, _ = ot.ParseGlyfFromFont(mustParse(t, session.FontBytes()))
	assert.Nil(t, glyf.GlyphBytes(3))

	// Asking for the feature activates the extension entry.
	request := ift.CodepointString("fi")
	request.FeatureTags[liga] = true
	require.NoError(t, session.Extend(request))

	extended := mustParse(t, session.FontBytes())
	glyf, err = ot.ParseGlyfFromFont(extended)
	require.NoError(t, err)
	assert.NotNil(t, glyf.GlyphBytes(3), "ligature glyph delivered")

	layout, err = ot.ParseLayoutFromFont(extended, ot.TagGSUB)
	require.NoError(t, err)
	assert.Equal(t, []ot.Tag{liga}, layout.FeatureTags(), "liga restored")
}

// Mixed mode on a variable font: glyph-keyed patches splice gvar data
// alongside glyf.
func TestExtendGlyphKeyedGvar(t *testing.T) {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1), // a
			testutil.SimpleGlyph(2), // b
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{'a': 1, 'b': 2},
		Fvar: testutil.BuildFvar(
			testutil.AxisDef{Tag: ot.TagAxisWeight, Min: 300, Def: 400, Max: 700},
		),
		Gvar: testutil.BuildGvar(1, [][]byte{nil, {1, 1}, {2, 2, 2, 2}}),
	}
	font := tf.Parse()
	origGvar, err := ot.ParseGvarFromFont(font)
	require.NoError(t, err)

	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{3, 3, 3, 3}))
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, enc.AddGlyphSegment(ift.CodepointString("b")))

	initial, err := enc.Encode()
	require.NoError(t, err)

	// The initial font carries no variation data for b.
	gvar, err := ot.ParseGvarFromFont(mustParse(t, initial))
	require.NoError(t, err)
	assert.Nil(t, gvar.GlyphBytes(2))

	session, err := client.NewSession(initial, fetcherFor(enc))
	require.NoError(t, err)
	require.NoError(t, session.Extend(ift.CodepointString("b")))

	gvar, err = ot.ParseGvarFromFont(mustParse(t, session.FontBytes()))
	require.NoError(t, err)
	assert.Equal(t, origGvar.GlyphBytes(2), gvar.GlyphBytes(2),
		"gvar data for b spliced in")
}
