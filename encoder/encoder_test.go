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

// abcdFont maps a..d to glyphs 1..4.
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

func newEncoder(t *testing.T, font *ot.Font) *encoder.Encoder {
	t.Helper()
	enc := encoder.NewEncoder(font)
	require.NoError(t, enc.SetId([]uint32{1, 2, 3, 4}))
	return enc
}

// Scenario: base {a, d} with one extension {b, c} produces a two node
// graph with a single patch.
func TestTwoSubsets(t *testing.T) {
	enc := newEncoder(t, abcdFont())
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("ad")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bc")))

	initial, err := enc.Encode()
	require.NoError(t, err)
	require.Len(t, enc.Patches(), 1)

	font, err := ot.ParseFont(initial, 0)
	require.NoError(t, err)

	cmap, err := ot.ParseCmapFromFont(font)
	require.NoError(t, err)
	assert.Len(t, cmap.Mappings(), 2)

	// The embedded patch map announces the single edge.
	iftData, err := font.TableData(ot.TagIFT)
	require.NoError(t, err)
	table, err := ift.ParsePatchMapTable(iftData, false)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, uint32(0), table.Entries[0].PatchIndex)
	assert.True(t, table.Entries[0].Coverage.Codepoints['b'])
	assert.True(t, table.Entries[0].Coverage.Codepoints['c'])
	assert.Equal(t, ift.NewCompatId(1, 2, 3, 4), table.Id)
}

// Scenario: three independent single codepoint extensions. With jump
// ahead 1 the power set graph has 12 edges, with jump ahead 2 it has 18.
func TestThreeSubsetsJumpAhead(t *testing.T) {
	for _, tt := range []struct {
		jump    int
		patches int
	}{
		{1, 12},
		{2, 18},
	} {
		enc := newEncoder(t, abcdFont())
		enc.JumpAhead = tt.jump
		require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
		require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("b")))
		require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("c")))
		require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("d")))

		_, err := enc.Encode()
		require.NoError(t, err)
		assert.Len(t, enc.Patches(), tt.patches, "jump ahead %d", tt.jump)
	}
}

// Scenario: overlapping extensions {b, c} and {b, d}. Both children
// lead to the full font; no edge adds only b.
func TestOverlappingSubsets(t *testing.T) {
	enc := newEncoder(t, abcdFont())
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bc")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bd")))

	initial, err := enc.Encode()
	require.NoError(t, err)
	// a -> abc, a -> abd, abc -> abcd, abd -> abcd.
	assert.Len(t, enc.Patches(), 4)

	font, err := ot.ParseFont(initial, 0)
	require.NoError(t, err)
	iftData, err := font.TableData(ot.TagIFT)
	require.NoError(t, err)
	table, err := ift.ParsePatchMapTable(iftData, false)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	for _, e := range table.Entries {
		assert.True(t, e.Coverage.Codepoints['b'],
			"every root edge includes b, none adds b alone")
		assert.Len(t, e.Coverage.Codepoints, 2)
	}
}

// Equal subset definitions must share one canonical set of bytes.
func TestDeduplication(t *testing.T) {
	enc := newEncoder(t, abcdFont())
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("b")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("c")))

	_, err := enc.Encode()
	require.NoError(t, err)

	// Nodes: a, ab, ac, abc. Edges: a->ab, a->ac, ab->abc, ac->abc.
	// Without deduplication the abc node would be cut twice and the
	// graph would emit more than 4 patches.
	assert.Len(t, enc.Patches(), 4)
}

func TestConfigurationErrors(t *testing.T) {
	enc := encoder.NewEncoder(abcdFont())

	assert.ErrorIs(t, enc.SetId([]uint32{1, 2}), ift.ErrConfig)

	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("a")))
	assert.ErrorIs(t, enc.SetBaseSubset(ift.CodepointString("b")), ift.ErrConfig,
		"double-set base subset")

	bad := ift.NewSubsetDefinition()
	bad.Gids[99] = true
	assert.ErrorIs(t, enc.AddGlyphSegment(bad), ift.ErrConfig,
		"glyph id not present in the source font")
}

// Every emitted patch starts with its format tag and carries the
// encoder's compatibility id.
func TestPatchHeaders(t *testing.T) {
	enc := newEncoder(t, abcdFont())
	require.NoError(t, enc.SetBaseSubset(ift.CodepointString("ad")))
	require.NoError(t, enc.AddExtensionSubset(ift.CodepointString("bc")))

	_, err := enc.Encode()
	require.NoError(t, err)

	for index, patch := range enc.Patches() {
		parsed, err := encoder.ParseTableKeyedPatch(patch)
		require.NoError(t, err, "patch %d", index)
		assert.Equal(t, ift.NewCompatId(1, 2, 3, 4), parsed.CompatId)
	}
}

func TestPatchURL(t *testing.T) {
	enc := encoder.NewEncoder(abcdFont())
	enc.URLTemplate = "//foo.bar/{id}"
	assert.Equal(t, "//foo.bar/00", enc.PatchURL(0))
	assert.Equal(t, "//foo.bar/FC", enc.PatchURL(123))
}
