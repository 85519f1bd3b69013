package ift

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boxesandglue/ift/ot"
)

// SubsetDefinition describes the coverage of one node in the encoder's
// graph: a set of codepoints, an optional explicit set of glyph ids, a set
// of layout feature tags, and a design-space region (one range per axis).
// The zero value covers nothing. SubsetDefinitions are value objects;
// operations return new values and never alias the operands' sets.
type SubsetDefinition struct {
	Codepoints  map[ot.Codepoint]bool
	Gids        map[ot.GlyphID]bool
	FeatureTags map[ot.Tag]bool
	DesignSpace map[ot.Tag]AxisRange
}

// NewSubsetDefinition creates an empty definition with allocated sets.
func NewSubsetDefinition() SubsetDefinition {
	return SubsetDefinition{
		Codepoints:  make(map[ot.Codepoint]bool),
		Gids:        make(map[ot.GlyphID]bool),
		FeatureTags: make(map[ot.Tag]bool),
		DesignSpace: make(map[ot.Tag]AxisRange),
	}
}

// CodepointSubset creates a definition covering only the given codepoints.
func CodepointSubset(cps ...ot.Codepoint) SubsetDefinition {
	def := NewSubsetDefinition()
	for _, cp := range cps {
		def.Codepoints[cp] = true
	}
	return def
}

// CodepointString creates a definition covering the codepoints of s.
func CodepointString(s string) SubsetDefinition {
	def := NewSubsetDefinition()
	for _, r := range s {
		def.Codepoints[ot.Codepoint(r)] = true
	}
	return def
}

// IsEmpty reports whether the definition covers nothing.
func (s SubsetDefinition) IsEmpty() bool {
	return len(s.Codepoints) == 0 && len(s.Gids) == 0 &&
		len(s.FeatureTags) == 0 && len(s.DesignSpace) == 0
}

// Clone returns a deep copy.
func (s SubsetDefinition) Clone() SubsetDefinition {
	out := NewSubsetDefinition()
	for cp := range s.Codepoints {
		out.Codepoints[cp] = true
	}
	for gid := range s.Gids {
		out.Gids[gid] = true
	}
	for tag := range s.FeatureTags {
		out.FeatureTags[tag] = true
	}
	for tag, r := range s.DesignSpace {
		out.DesignSpace[tag] = r
	}
	return out
}

// Union returns the coverage of s extended by other. Component sets are
// united independently; an axis present on both sides gets the smallest
// range covering both.
func (s SubsetDefinition) Union(other SubsetDefinition) SubsetDefinition {
	out := s.Clone()
	for cp := range other.Codepoints {
		out.Codepoints[cp] = true
	}
	for gid := range other.Gids {
		out.Gids[gid] = true
	}
	for tag := range other.FeatureTags {
		out.FeatureTags[tag] = true
	}
	for tag, r := range other.DesignSpace {
		if existing, ok := out.DesignSpace[tag]; ok {
			out.DesignSpace[tag] = existing.Merge(r)
		} else {
			out.DesignSpace[tag] = r
		}
	}
	return out
}

// Subtract returns s with other's coverage removed. For the design space
// an axis is removed only when other's range fully contains it; partial
// overlap drops nothing since ranges are not split.
func (s SubsetDefinition) Subtract(other SubsetDefinition) SubsetDefinition {
	out := s.Clone()
	for cp := range other.Codepoints {
		delete(out.Codepoints, cp)
	}
	for gid := range other.Gids {
		delete(out.Gids, gid)
	}
	for tag := range other.FeatureTags {
		delete(out.FeatureTags, tag)
	}
	for tag, r := range other.DesignSpace {
		if existing, ok := out.DesignSpace[tag]; ok && r.Contains(existing) {
			delete(out.DesignSpace, tag)
		}
	}
	return out
}

// Equal reports whether two definitions cover exactly the same space.
func (s SubsetDefinition) Equal(other SubsetDefinition) bool {
	return s.Key() == other.Key()
}

// Key returns a canonical string representation, stable across runs.
// Usable as a map key for memoization and deduplication.
func (s SubsetDefinition) Key() string {
	var b strings.Builder

	b.WriteString("cp:")
	for _, cp := range s.SortedCodepoints() {
		fmt.Fprintf(&b, "%x,", cp)
	}
	b.WriteString(";g:")
	for _, gid := range s.SortedGids() {
		fmt.Fprintf(&b, "%x,", gid)
	}
	b.WriteString(";f:")
	for _, tag := range s.SortedFeatureTags() {
		fmt.Fprintf(&b, "%s,", tag)
	}
	b.WriteString(";d:")
	for _, tag := range s.SortedAxes() {
		r := s.DesignSpace[tag]
		fmt.Fprintf(&b, "%s=%g:%g,", tag, r.Start(), r.End())
	}
	return b.String()
}

// SortedCodepoints returns the codepoints in ascending order.
func (s SubsetDefinition) SortedCodepoints() []ot.Codepoint {
	cps := make([]ot.Codepoint, 0, len(s.Codepoints))
	for cp := range s.Codepoints {
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i] < cps[j] })
	return cps
}

// SortedGids returns the glyph ids in ascending order.
func (s SubsetDefinition) SortedGids() []ot.GlyphID {
	gids := make([]ot.GlyphID, 0, len(s.Gids))
	for gid := range s.Gids {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return gids
}

// SortedFeatureTags returns the feature tags in ascending order.
func (s SubsetDefinition) SortedFeatureTags() []ot.Tag {
	tags := make([]ot.Tag, 0, len(s.FeatureTags))
	for tag := range s.FeatureTags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// SortedAxes returns the design-space axis tags in ascending order.
func (s SubsetDefinition) SortedAxes() []ot.Tag {
	tags := make([]ot.Tag, 0, len(s.DesignSpace))
	for tag := range s.DesignSpace {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// ToCoverage converts the definition into a patch map coverage record.
// Explicit gids do not appear in coverage; they are an encoder-side input.
func (s SubsetDefinition) ToCoverage() Coverage {
	c := s.Clone()
	return Coverage{
		Codepoints:  c.Codepoints,
		FeatureTags: c.FeatureTags,
		DesignSpace: c.DesignSpace,
	}
}

func (s SubsetDefinition) String() string {
	return s.Key()
}
