package client_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxesandglue/ift/client"
	"github.com/boxesandglue/ift/encoder"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/internal/testutil"
	"github.com/boxesandglue/ift/ot"
)

func abcdFont() *ot.Font {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1),
			testutil.SimpleGlyph(2),
			testutil.SimpleGlyph(3),
			testutil.SimpleGlyph(4),
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{
			'a': 1, 'b': 2, 'c': 3, 'd': 4,
		},
	}
	return tf.Parse()
}

// fetcherFor exposes an encoder's patches under their expanded URLs.
func fetcherFor(enc *encoder.Encoder) client.MapFetcher {
	m := make(client.MapFetcher)
	for index, patch := range enc.Patches() {
		m[enc.PatchURL(index)] = patch
	}
	return m
}

// Extending the two-node graph with codepoint b must deliver the full
// font, bit for bit identical to the encoder's leaf node.
func TestExtendTwoSubsets(t *testing.T) {
	font := abcdFont()
	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{1, 2, 3, 4}))
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("ad")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bc")))

	initial, err := enc.Encode()
	require.NoError(t, err)

	session, err := client.NewSession(initial, fetcherFor(enc))
	require.NoError(t, err)

	require.NoError(t, session.Extend(ift.CodepointString("b")))

	extended, err := ot.ParseFont(session.FontBytes(), 0)
	require.NoError(t, err)

	cmap, err := ot.ParseCmapFromFont(extended)
	require.NoError(t, err)
	for _, cp := range []ot.Codepoint{'a', 'b', 'c', 'd'} {
		_, ok := cmap.Lookup(cp)
		assert.True(t, ok, "cmap must cover %c", rune(cp))
	}

	// The leaf node carries no patch map, so its bytes are exactly the
	// subsetter's output for the union coverage. Applying the patch
	// must reproduce them bit for bit.
	want, err := encoder.DefaultSubsetter{}.Subset(font,
		ift.CodepointString("abcd"), encoder.SubsetOptions{})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, session.FontBytes()),
		"patch application must be bit-exact")
}

// Walking two levels: a -> abc -> abcd.
func TestExtendOverlappingSubsets(t *testing.T) {
	font := abcdFont()
	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{1, 2, 3, 4}))
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bc")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bd")))

	initial, err := enc.Encode()
	require.NoError(t, err)

	session, err := client.NewSession(initial, fetcherFor(enc))
	require.NoError(t, err)

	// Requesting c and d needs both graph steps.
	require.NoError(t, session.Extend(ift.CodepointString("cd")))

	cmap, err := ot.ParseCmapFromFont(mustParse(t, session.FontBytes()))
	require.NoError(t, err)
	for _, cp := range []ot.Codepoint{'a', 'b', 'c', 'd'} {
		_, ok := cmap.Lookup(cp)
		assert.True(t, ok, "cmap must cover %c", rune(cp))
	}
}

// Glyph-keyed scenario: the fi ligature travels only under the AND
// condition; a client asking for f alone never fetches it.
func TestExtendGlyphKeyed(t *testing.T) {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1), // a
			testutil.SimpleGlyph(2), // f
			testutil.SimpleGlyph(3), // i
			testutil.SimpleGlyph(4), // fi
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{
			'a': 1, 'f': 2, 'i': 3,
		},
		GSUB: testutil.LigatureGSUB(2, 3, 4),
	}
	font := tf.Parse()
	origGlyf, _ := ot.ParseGlyfFromFont(font)

	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{5, 6, 7, 8}))
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, enc.AddGlyphSegment(ift.CodepointString("f")))
	require.NoError(t, enc.AddGlyphSegment(ift.CodepointString("i")))

	initial, err := enc.Encode()
	require.NoError(t, err)
	require.Len(t, enc.Patches(), 3)

	fetcher := fetcherFor(enc)

	// Request only f: the ligature patch must not be fetched.
	session, err := client.NewSession(initial, fetcher)
	require.NoError(t, err)
	require.NoError(t, session.Extend(ift.CodepointString("f")))

	glyf, err := ot.ParseGlyfFromFont(mustParse(t, session.FontBytes()))
	require.NoError(t, err)
	assert.NotNil(t, glyf.GlyphBytes(2), "f glyph spliced in")
	assert.Nil(t, glyf.GlyphBytes(4), "ligature must not be present")

	// Request f and i: all three patches apply.
	session, err = client.NewSession(initial, fetcher)
	require.NoError(t, err)
	require.NoError(t, session.Extend(ift.CodepointString("fi")))

	glyf, err = ot.ParseGlyfFromFont(mustParse(t, session.FontBytes()))
	require.NoError(t, err)
	for gid := ot.GlyphID(2); gid <= 4; gid++ {
		assert.True(t, bytes.Equal(glyf.GlyphBytes(gid), origGlyf.GlyphBytes(gid)),
			"glyph %d must match the original", gid)
	}

	// The pass-through cmap keeps f and i resolvable from the start.
	cmap, err := ot.ParseCmapFromFont(mustParse(t, initial))
	require.NoError(t, err)
	_, ok := cmap.Lookup('f')
	assert.True(t, ok)
}

// Design-space extension: the patch map entry lives in IFTX and extends
// the fvar range.
func TestExtendDesignSpace(t *testing.T) {
	tf := &testutil.Font{
		Glyphs: [][]byte{
			testutil.SimpleGlyph(0),
			testutil.SimpleGlyph(1),
		},
		CmapEntries: map[ot.Codepoint]ot.GlyphID{'a': 1},
		Fvar: testutil.BuildFvar(
			testutil.AxisDef{Tag: ot.TagAxisWidth, Min: 75, Def: 100, Max: 100},
		),
		Gvar: testutil.BuildGvar(1, [][]byte{nil, {1, 2, 3, 4}}),
	}
	font := tf.Parse()

	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{1, 1, 1, 1}))

	base := ift.CodepointString("a")
	base.DesignSpace[ot.TagAxisWidth] = ift.Point(100)
	require.NoError(t, enc.SetBaseSubset(base))

	wider, err := ift.Range(75, 100)
	require.NoError(t, err)
	enc.AddOptionalDesignSpace(map[ot.Tag]ift.AxisRange{ot.TagAxisWidth: wider})

	initial, err := enc.Encode()
	require.NoError(t, err)

	// The initial font is pinned to wdth 100 and carries an IFTX table.
	initialFont := mustParse(t, initial)
	require.True(t, initialFont.HasTable(ot.TagIFTX))
	fvar, err := ot.ParseFvarFromFont(initialFont)
	require.NoError(t, err)
	axis, _ := fvar.FindAxis(ot.TagAxisWidth)
	assert.Equal(t, float32(100), axis.MinValue)

	session, err := client.NewSession(initial, fetcherFor(enc))
	require.NoError(t, err)

	request := ift.NewSubsetDefinition()
	request.Codepoints['a'] = true
	request.DesignSpace[ot.TagAxisWidth] = ift.Point(80)
	require.NoError(t, session.Extend(request))

	fvar, err = ot.ParseFvarFromFont(mustParse(t, session.FontBytes()))
	require.NoError(t, err)
	axis, _ = fvar.FindAxis(ot.TagAxisWidth)
	assert.Equal(t, float32(75), axis.MinValue, "fvar range must widen to 75")
}

// A patch whose compatibility id does not match the font is rejected.
func TestCompatIdMismatch(t *testing.T) {
	font := abcdFont()
	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{1, 2, 3, 4}))
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("b")))
	initial, err := enc.Encode()
	require.NoError(t, err)

	// Re-encode the same graph under a different id and serve those
	// patches instead.
	other := encoder.NewEncoder(font)
	require.NoError(t, other.SetId([]uint32{9, 9, 9, 9}))
	require.NoError(t, other.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, other.AddExtensionSubset(ift.CodepointString("b")))
	_, err = other.Encode()
	require.NoError(t, err)

	session, err := client.NewSession(initial, fetcherFor(other))
	require.NoError(t, err)

	err = session.Extend(ift.CodepointString("b"))
	assert.ErrorIs(t, err, ift.ErrFormat)
}

func mustParse(t *testing.T, data []byte) *ot.Font {
	t.Helper()
	font, err := ot.ParseFont(data, 0)
	require.NoError(t, err)
	return font
}
