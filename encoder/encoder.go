package encoder

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/woff2"
)

// Encoder converts a font into an incremental transfer encoding: an
// initial font covering the configured base subset plus a set of patches
// through which a client can reach any combination of the configured
// extension subsets.
//
// An Encoder is single use: configure it, call Encode once, then read the
// patches. State is not rolled back on error; discard the encoder.
type Encoder struct {
	// URLTemplate is embedded in the patch map and expanded per patch
	// index by clients.
	URLTemplate string

	// JumpAhead is how many extension subsets an edge may combine.
	JumpAhead int

	// Subsetter cuts subsets; defaults to DefaultSubsetter.
	Subsetter Subsetter

	// Logger receives progress output; nil disables logging.
	Logger logrus.FieldLogger

	font *ot.Font
	id   ift.CompatId

	baseSubset       ift.SubsetDefinition
	baseSet          bool
	extensionSubsets []ift.SubsetDefinition
	optionalFeatures map[ot.Tag]bool
	glyphSegments    []ift.SubsetDefinition

	nextID            uint32
	built             map[string][]byte
	patches           map[uint32][]byte
	glyphKeyedEntries []ift.Entry
	mixed             bool
	fontFeatures      map[ot.Tag]bool
}

// NewEncoder creates an encoder for the given font.
func NewEncoder(font *ot.Font) *Encoder {
	return &Encoder{
		URLTemplate: "patch{id}.br",
		JumpAhead:   1,
		Subsetter:   DefaultSubsetter{},
		font:        font,
		built:       make(map[string][]byte),
		patches:     make(map[uint32][]byte),
	}
}

// SetId sets the compatibility id; words must have length 4.
func (e *Encoder) SetId(words []uint32) error {
	id, err := ift.CompatIdFromSlice(words)
	if err != nil {
		return err
	}
	e.id = id
	return nil
}

// Id returns the configured compatibility id.
func (e *Encoder) Id() ift.CompatId {
	return e.id
}

// SetBaseSubset configures the coverage of the initial font. Setting it
// twice is a configuration error.
func (e *Encoder) SetBaseSubset(def ift.SubsetDefinition) error {
	if e.baseSet {
		return fmt.Errorf("%w: base subset has already been set", ift.ErrConfig)
	}
	if err := e.validateGids(def); err != nil {
		return err
	}
	e.baseSubset = def.Clone()
	e.baseSet = true
	return nil
}

// AddExtensionSubset adds a subset reachable via table-keyed patches.
func (e *Encoder) AddExtensionSubset(def ift.SubsetDefinition) error {
	if err := e.validateGids(def); err != nil {
		return err
	}
	e.extensionSubsets = append(e.extensionSubsets, def.Clone())
	return nil
}

// AddOptionalFeatureGroup makes a group of layout features loadable via a
// patch. Fonts cut without the group have the features filtered out.
func (e *Encoder) AddOptionalFeatureGroup(tags ...ot.Tag) {
	def := ift.NewSubsetDefinition()
	if e.optionalFeatures == nil {
		e.optionalFeatures = make(map[ot.Tag]bool)
	}
	for _, tag := range tags {
		def.FeatureTags[tag] = true
		e.optionalFeatures[tag] = true
	}
	e.extensionSubsets = append(e.extensionSubsets, def)
}

// AddOptionalDesignSpace makes a design-space region loadable via a
// patch.
func (e *Encoder) AddOptionalDesignSpace(space map[ot.Tag]ift.AxisRange) {
	def := ift.NewSubsetDefinition()
	for tag, r := range space {
		def.DesignSpace[tag] = r
	}
	e.extensionSubsets = append(e.extensionSubsets, def)
}

// AddGlyphSegment adds a codepoint segment whose glyphs are delivered by
// glyph-keyed patches under closure-derived activation conditions.
func (e *Encoder) AddGlyphSegment(def ift.SubsetDefinition) error {
	if err := e.validateGids(def); err != nil {
		return err
	}
	e.glyphSegments = append(e.glyphSegments, def.Clone())
	return nil
}

// Patches returns the emitted patches keyed by patch index. Valid after
// Encode.
func (e *Encoder) Patches() map[uint32][]byte {
	return e.patches
}

// PatchURL expands the encoder's URL template for a patch index.
func (e *Encoder) PatchURL(index uint32) string {
	return ift.ExpandURLTemplate(e.URLTemplate, index)
}

func (e *Encoder) validateGids(def ift.SubsetDefinition) error {
	numGlyphs := e.font.NumGlyphs()
	for gid := range def.Gids {
		if int(gid) >= numGlyphs {
			return fmt.Errorf("%w: glyph %d not present in the source font", ift.ErrConfig, gid)
		}
	}
	return nil
}

func (e *Encoder) logger() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Encode builds the graph and returns the initial font. The emitted
// patches are available from Patches afterwards.
func (e *Encoder) Encode() ([]byte, error) {
	base := e.baseSubset.Clone()
	e.mixed = len(e.glyphSegments) > 0

	if e.mixed {
		if err := e.encodeGlyphSegments(base); err != nil {
			return nil, err
		}
	}

	return e.encodeNode(base, true)
}

// encodeGlyphSegments runs the glyph-closure analysis, emits the
// glyph-keyed patches, and prepares their patch map entries. Unmapped
// glyphs are folded into the base subset so the closure property holds.
func (e *Encoder) encodeGlyphSegments(base ift.SubsetDefinition) error {
	log := e.logger()

	seg, err := SegmentGlyphs(e.font, e.subsetter(), base, e.glyphSegments)
	if err != nil {
		return err
	}

	tags := []ot.Tag{ot.TagGlyf}
	if e.font.HasTable(ot.TagGvar) {
		tags = append(tags, ot.TagGvar)
	}
	diff, err := NewGlyphKeyedDiff(e.font, e.id, tags)
	if err != nil {
		return err
	}

	// Patch ids were assigned by the segmentation starting at zero, in
	// condition order; entry positions within the table match them.
	for _, cond := range seg.Conditions {
		gids := make([]ot.GlyphID, 0, len(seg.Patches[cond.Activated]))
		for gid := range seg.Patches[cond.Activated] {
			gids = append(gids, gid)
		}

		patch, err := diff.CreatePatch(gids)
		if err != nil {
			return err
		}
		e.patches[cond.Activated] = patch

		entry := ift.Entry{
			PatchIndex: cond.Activated,
			Encoding:   ift.GlyphKeyed,
		}
		switch cond.Kind {
		case ConditionSingleSegment:
			entry.Coverage = e.glyphSegments[cond.Segment].ToCoverage()
		case ConditionAnd:
			entry.Mode = ift.ConditionAnd
			entry.CopiedIndices = patchPositions(cond.Patches)
		case ConditionOr:
			entry.Mode = ift.ConditionOr
			entry.CopiedIndices = patchPositions(cond.Patches)
		}
		e.glyphKeyedEntries = append(e.glyphKeyedEntries, entry)

		log.WithFields(logrus.Fields{
			"patch":  cond.Activated,
			"glyphs": len(gids),
		}).Debug("emitted glyph-keyed patch")
	}
	e.nextID = uint32(len(seg.Conditions))

	// Unmapped glyphs stay in the initial font.
	for gid := range seg.UnmappedGlyphs {
		base.Gids[gid] = true
	}

	return nil
}

// patchPositions converts glyph-keyed patch ids to entry positions; the
// two coincide because ids are assigned in entry order from zero.
func patchPositions(ids []uint32) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// encodeNode cuts the subset for def, embeds the patch map for its
// outgoing edges, and recursively encodes and diffs every child.
func (e *Encoder) encodeNode(def ift.SubsetDefinition, isRoot bool) ([]byte, error) {
	key := def.Key()
	if cached, ok := e.built[key]; ok {
		return cached, nil
	}

	log := e.logger()

	baseBytes, err := e.subsetter().Subset(e.font, def, e.subsetOptions(def))
	if err != nil {
		return nil, err
	}

	edges := e.outgoingEdges(def)

	entries := append([]ift.Entry(nil), e.glyphKeyedEntries...)
	edgeIDs := make([]uint32, len(edges))
	for i, edge := range edges {
		id := e.nextID
		e.nextID++
		edgeIDs[i] = id
		entries = append(entries, ift.Entry{
			Coverage:   edge.ToCoverage(),
			PatchIndex: id,
			Encoding:   ift.TableKeyedPartial,
			Extension:  isExtensionEdge(edge),
		})
	}

	if len(entries) > 0 {
		baseBytes, err = e.addPatchMap(baseBytes, entries)
		if err != nil {
			return nil, err
		}
	}

	if isRoot {
		// The root is round-tripped through WOFF2 so the base for
		// patching is what a client sees after WOFF2 decoding.
		baseBytes, err = woff2.RoundTrip(baseBytes, false)
		if err != nil {
			return nil, fmt.Errorf("%w: woff2 round trip: %v", ift.ErrResource, err)
		}
	}

	e.built[key] = baseBytes
	log.WithFields(logrus.Fields{
		"subset": key,
		"bytes":  len(baseBytes),
		"edges":  len(edges),
	}).Debug("encoded node")

	for i, edge := range edges {
		child := def.Union(edge)
		childBytes, err := e.encodeNode(child, false)
		if err != nil {
			return nil, err
		}

		patch, err := e.tableKeyedDiff().Diff(baseBytes, childBytes)
		if err != nil {
			return nil, err
		}
		e.patches[edgeIDs[i]] = patch

		log.WithFields(logrus.Fields{
			"patch": edgeIDs[i],
			"bytes": len(patch),
		}).Debug("emitted table-keyed patch")
	}

	return baseBytes, nil
}

// addPatchMap serializes the IFT (and if needed IFTX) tables and splices
// them into the font.
func (e *Encoder) addPatchMap(fontBytes []byte, entries []ift.Entry) ([]byte, error) {
	pm := &ift.PatchMap{
		Entries:     entries,
		URLTemplate: e.URLTemplate,
		Id:          e.id,
	}

	font, err := ot.ParseFont(fontBytes, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
	}
	builder, err := ot.NewFontBuilderFrom(font)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
	}

	iftData, err := ift.SerializePatchMap(pm, false)
	if err != nil {
		return nil, err
	}
	builder.AddTable(ot.TagIFT, iftData)

	if pm.HasExtensionEntries() {
		iftxData, err := ift.SerializePatchMap(pm, true)
		if err != nil {
			return nil, err
		}
		builder.AddTable(ot.TagIFTX, iftxData)
	}

	out, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
	}
	return out, nil
}

// outgoingEdges enumerates the unions of 1..JumpAhead extension subsets
// not already covered by base, in configuration order, deduplicated by
// the coverage they add.
func (e *Encoder) outgoingEdges(base ift.SubsetDefinition) []ift.SubsetDefinition {
	var candidates []ift.SubsetDefinition
	for _, s := range e.extensionSubsets {
		reduced := s.Subtract(base)
		if !reduced.IsEmpty() {
			candidates = append(candidates, reduced)
		}
	}

	jump := e.JumpAhead
	if jump < 1 {
		jump = 1
	}

	var out []ift.SubsetDefinition
	seen := make(map[string]bool)

	var build func(start int, acc ift.SubsetDefinition, chosen, size int)
	build = func(start int, acc ift.SubsetDefinition, chosen, size int) {
		if chosen == size {
			if key := acc.Key(); !seen[key] {
				seen[key] = true
				out = append(out, acc)
			}
			return
		}
		for i := start; i < len(candidates); i++ {
			build(i+1, acc.Union(candidates[i]), chosen+1, size)
		}
	}

	for size := 1; size <= jump && size <= len(candidates); size++ {
		build(0, ift.NewSubsetDefinition(), 0, size)
	}

	return out
}

// isExtensionEdge reports whether an edge's entry belongs in the IFTX
// table: it adds features or design space but no codepoints.
func isExtensionEdge(edge ift.SubsetDefinition) bool {
	return len(edge.Codepoints) == 0 && len(edge.Gids) == 0 &&
		(len(edge.FeatureTags) > 0 || len(edge.DesignSpace) > 0)
}

func (e *Encoder) subsetter() Subsetter {
	if e.Subsetter != nil {
		return e.Subsetter
	}
	return DefaultSubsetter{}
}

func (e *Encoder) subsetOptions(def ift.SubsetDefinition) SubsetOptions {
	return SubsetOptions{
		PassThroughCmap: e.mixed,
		RetainFeatures:  e.resolveFeatures(def),
	}
}

// resolveFeatures computes the feature set a node retains: every font
// feature except optional ones the node has not yet loaded. Without
// optional feature groups all features are kept (nil).
func (e *Encoder) resolveFeatures(def ift.SubsetDefinition) map[ot.Tag]bool {
	if len(e.optionalFeatures) == 0 {
		return nil
	}

	if e.fontFeatures == nil {
		e.fontFeatures = make(map[ot.Tag]bool)
		for _, tableTag := range []ot.Tag{ot.TagGSUB, ot.TagGPOS} {
			layout, err := ot.ParseLayoutFromFont(e.font, tableTag)
			if err != nil {
				continue
			}
			for _, tag := range layout.FeatureTags() {
				e.fontFeatures[tag] = true
			}
		}
	}

	retain := make(map[ot.Tag]bool)
	for tag := range e.fontFeatures {
		if e.optionalFeatures[tag] && !def.FeatureTags[tag] {
			continue
		}
		retain[tag] = true
	}
	for tag := range def.FeatureTags {
		retain[tag] = true
	}
	return retain
}

func (e *Encoder) tableKeyedDiff() *TableKeyedDiff {
	var excluded []ot.Tag
	if e.mixed {
		// Glyph-keyed patches deliver the outline tables, and clients
		// maintain the main patch map themselves.
		excluded = []ot.Tag{ot.TagIFT, ot.TagGlyf, ot.TagLoca}
	}
	return NewTableKeyedDiff(e.id, excluded, nil)
}
