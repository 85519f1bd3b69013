package encoder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

// ConditionKind distinguishes the three activation condition shapes.
type ConditionKind uint8

const (
	// ConditionSingleSegment activates a patch when one codepoint
	// segment intersects the request.
	ConditionSingleSegment ConditionKind = iota

	// ConditionAnd activates a patch when all referenced patches are
	// activated.
	ConditionAnd

	// ConditionOr activates a patch when any referenced patch is
	// activated.
	ConditionOr
)

// ActivationCondition states when the client must fetch a glyph-keyed
// patch.
type ActivationCondition struct {
	Kind      ConditionKind
	Activated uint32 // patch id being activated

	// Segment is the segment index for ConditionSingleSegment.
	Segment int

	// Patches are the referenced patch ids for ConditionAnd and
	// ConditionOr, sorted ascending.
	Patches []uint32
}

// GlyphSegmentation is the result of the glyph-closure analysis: an
// assignment of every closure glyph to either the initial font, a
// glyph-keyed patch with an activation condition, or the unmapped
// remainder.
type GlyphSegmentation struct {
	// InitFontGlyphs are the glyphs of the initial segment's closure.
	InitFontGlyphs map[ot.GlyphID]bool

	// UnmappedGlyphs are closure glyphs not attributable to any segment
	// group; the encoder carries them in the initial font.
	UnmappedGlyphs map[ot.GlyphID]bool

	// Patches maps each patch id to the glyphs it delivers.
	Patches map[uint32]map[ot.GlyphID]bool

	// Conditions lists the activation conditions, single-segment ones
	// first.
	Conditions []ActivationCondition
}

// glyphConditions accumulates, per glyph, the segments it depends on.
type glyphConditions struct {
	andSegments map[int]bool
	orSegments  map[int]bool
}

// SegmentGlyphs derives the glyph segmentation for a partition of
// codepoints into an initial segment and n extension segments. For each
// segment the closure difference analysis determines which glyphs are
// exclusively reachable from it (single-segment condition), which require
// it together with others (AND), and which are reachable through several
// segments independently (OR).
func SegmentGlyphs(font *ot.Font, sub Subsetter, initial ift.SubsetDefinition, segments []ift.SubsetDefinition) (*GlyphSegmentation, error) {
	all := initial.Clone()
	for _, s := range segments {
		all = all.Union(s)
	}

	initialClosure, err := sub.GlyphClosure(font, initial)
	if err != nil {
		return nil, fmt.Errorf("%w: initial segment: %v", ift.ErrClosure, err)
	}
	fullClosure, err := sub.GlyphClosure(font, all)
	if err != nil {
		return nil, fmt.Errorf("%w: full partition: %v", ift.ErrClosure, err)
	}

	numGlyphs := font.NumGlyphs()
	conditions := make([]glyphConditions, numGlyphs)

	for idx, segment := range segments {
		// Closure of everything except this segment: what disappears is
		// what depends on it.
		exceptClosure, err := sub.GlyphClosure(font, all.Subtract(segment))
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %v", ift.ErrClosure, idx, err)
		}

		// Closure of the initial segment plus only this segment.
		onlyClosure, err := sub.GlyphClosure(font, initial.Union(segment))
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %v", ift.ErrClosure, idx, err)
		}

		// onlyNew = closure(initial + segment) - closure(initial)
		onlyNew := subtractSet(onlyClosure, initialClosure)
		// dropped = closure(all) - closure(all - segment)
		dropped := subtractSet(fullClosure, exceptClosure)

		for gid := range intersectSet(onlyNew, dropped) {
			// Exclusively reachable from this segment.
			addCondition(conditions, gid, idx, true)
		}
		for gid := range subtractSet(dropped, onlyNew) {
			// Needed only when this segment appears with others.
			addCondition(conditions, gid, idx, true)
		}
		for gid := range subtractSet(onlyNew, dropped) {
			// Reachable from several segments independently.
			addCondition(conditions, gid, idx, false)
		}
	}

	return buildSegmentation(conditions, initialClosure, fullClosure)
}

func addCondition(conditions []glyphConditions, gid ot.GlyphID, segment int, and bool) {
	if int(gid) >= len(conditions) {
		return
	}
	c := &conditions[gid]
	if and {
		if c.andSegments == nil {
			c.andSegments = make(map[int]bool)
		}
		c.andSegments[segment] = true
	} else {
		if c.orSegments == nil {
			c.orSegments = make(map[int]bool)
		}
		c.orSegments[segment] = true
	}
}

// buildSegmentation groups glyphs by their segment sets and assigns patch
// ids: one patch per single-segment group first, then AND groups, then OR
// groups.
func buildSegmentation(conditions []glyphConditions, initialClosure, fullClosure map[ot.GlyphID]bool) (*GlyphSegmentation, error) {
	andGroups := make(map[string]*segmentGroup)
	orGroups := make(map[string]*segmentGroup)

	for gid := range conditions {
		c := conditions[gid]
		if len(c.andSegments) > 0 {
			addToGroup(andGroups, c.andSegments, ot.GlyphID(gid))
		}
		if len(c.orSegments) > 0 {
			addToGroup(orGroups, c.orSegments, ot.GlyphID(gid))
		}
	}

	seg := &GlyphSegmentation{
		InitFontGlyphs: copySet(initialClosure),
		UnmappedGlyphs: subtractSet(fullClosure, initialClosure),
		Patches:        make(map[uint32]map[ot.GlyphID]bool),
	}

	nextID := uint32(0)
	segmentToPatch := make(map[int]uint32)

	// Single-segment groups produce one patch per segment.
	for _, g := range sortedGroups(andGroups) {
		if len(g.segments) != 1 {
			continue
		}
		id := nextID
		nextID++
		seg.Patches[id] = g.glyphs
		seg.Conditions = append(seg.Conditions, ActivationCondition{
			Kind:      ConditionSingleSegment,
			Activated: id,
			Segment:   g.segments[0],
		})
		segmentToPatch[g.segments[0]] = id
		removeAll(seg.UnmappedGlyphs, g.glyphs)
	}

	// Multi-segment AND groups reference the single-segment patches.
	for _, g := range sortedGroups(andGroups) {
		if len(g.segments) == 1 {
			continue
		}
		patches, err := patchesFor(g.segments, segmentToPatch)
		if err != nil {
			return nil, err
		}
		id := nextID
		nextID++
		seg.Patches[id] = g.glyphs
		seg.Conditions = append(seg.Conditions, ActivationCondition{
			Kind:      ConditionAnd,
			Activated: id,
			Patches:   patches,
		})
		removeAll(seg.UnmappedGlyphs, g.glyphs)
	}

	for _, g := range sortedGroups(orGroups) {
		patches, err := patchesFor(g.segments, segmentToPatch)
		if err != nil {
			return nil, err
		}
		id := nextID
		nextID++
		seg.Patches[id] = g.glyphs
		seg.Conditions = append(seg.Conditions, ActivationCondition{
			Kind:      ConditionOr,
			Activated: id,
			Patches:   patches,
		})
		removeAll(seg.UnmappedGlyphs, g.glyphs)
	}

	return seg, nil
}

// String renders the segmentation in a compact text form, one line per
// patch and condition, for debugging and test setup.
func (s *GlyphSegmentation) String() string {
	var b strings.Builder

	b.WriteString("initial font: ")
	writeGidSet(&b, s.InitFontGlyphs)
	b.WriteString("\nunmapped: ")
	writeGidSet(&b, s.UnmappedGlyphs)
	b.WriteByte('\n')

	ids := make([]uint32, 0, len(s.Patches))
	for id := range s.Patches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(&b, "p%d: ", id)
		writeGidSet(&b, s.Patches[id])
		b.WriteByte('\n')
	}

	for _, cond := range s.Conditions {
		switch cond.Kind {
		case ConditionSingleSegment:
			fmt.Fprintf(&b, "if (s%d) then p%d\n", cond.Segment, cond.Activated)
		case ConditionAnd:
			b.WriteString("if (")
			for i, p := range cond.Patches {
				if i > 0 {
					b.WriteString(" AND ")
				}
				fmt.Fprintf(&b, "p%d", p)
			}
			fmt.Fprintf(&b, ") then p%d\n", cond.Activated)
		case ConditionOr:
			b.WriteString("if (")
			for i, p := range cond.Patches {
				if i > 0 {
					b.WriteString(" OR ")
				}
				fmt.Fprintf(&b, "p%d", p)
			}
			fmt.Fprintf(&b, ") then p%d\n", cond.Activated)
		}
	}

	return b.String()
}

func writeGidSet(b *strings.Builder, set map[ot.GlyphID]bool) {
	gids := make([]int, 0, len(set))
	for gid := range set {
		gids = append(gids, int(gid))
	}
	sort.Ints(gids)

	b.WriteByte('{')
	for i, gid := range gids {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "gid%d", gid)
	}
	b.WriteByte('}')
}

type segmentGroup struct {
	segments []int // sorted
	glyphs   map[ot.GlyphID]bool
}

func addToGroup(groups map[string]*segmentGroup, segments map[int]bool, gid ot.GlyphID) {
	sorted := make([]int, 0, len(segments))
	for s := range segments {
		sorted = append(sorted, s)
	}
	sort.Ints(sorted)

	var key strings.Builder
	for _, s := range sorted {
		fmt.Fprintf(&key, "%d,", s)
	}

	g, ok := groups[key.String()]
	if !ok {
		g = &segmentGroup{segments: sorted, glyphs: make(map[ot.GlyphID]bool)}
		groups[key.String()] = g
	}
	g.glyphs[gid] = true
}

// sortedGroups orders groups by their segment lists so patch id
// assignment is deterministic.
func sortedGroups(groups map[string]*segmentGroup) []*segmentGroup {
	out := make([]*segmentGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].segments, out[j].segments
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
	return out
}

// patchesFor maps segment indices to their single-segment patch ids. A
// composite condition may only reference segments that produced one;
// anything else indicates the closure analysis is inconsistent.
func patchesFor(segments []int, segmentToPatch map[int]uint32) ([]uint32, error) {
	out := make([]uint32, 0, len(segments))
	for _, s := range segments {
		id, ok := segmentToPatch[s]
		if !ok {
			return nil, fmt.Errorf("%w: condition references segment %d which has no exclusive patch", ift.ErrInvariant, s)
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func copySet(set map[ot.GlyphID]bool) map[ot.GlyphID]bool {
	out := make(map[ot.GlyphID]bool, len(set))
	for gid := range set {
		out[gid] = true
	}
	return out
}

func subtractSet(a, b map[ot.GlyphID]bool) map[ot.GlyphID]bool {
	out := make(map[ot.GlyphID]bool)
	for gid := range a {
		if !b[gid] {
			out[gid] = true
		}
	}
	return out
}

func intersectSet(a, b map[ot.GlyphID]bool) map[ot.GlyphID]bool {
	out := make(map[ot.GlyphID]bool)
	for gid := range a {
		if b[gid] {
			out[gid] = true
		}
	}
	return out
}

func removeAll(set, remove map[ot.GlyphID]bool) {
	for gid := range remove {
		delete(set, gid)
	}
}
