package ift

import (
	"github.com/boxesandglue/ift/ot"
)

// PatchEncoding identifies one of the three patch formats the encoder
// emits.
type PatchEncoding uint8

const (
	// GlyphKeyed patches carry per-glyph data spliced into the
	// receiver's font ("ifgk").
	GlyphKeyed PatchEncoding = 0

	// TableKeyedFull patches replace table contents wholesale (each
	// sub-patch diffed against an empty base).
	TableKeyedFull PatchEncoding = 1

	// TableKeyedPartial patches carry per-table deltas against the
	// receiver's current tables ("iftk").
	TableKeyedPartial PatchEncoding = 2
)

func (e PatchEncoding) String() string {
	switch e {
	case GlyphKeyed:
		return "glyph-keyed"
	case TableKeyedFull:
		return "table-keyed-full"
	case TableKeyedPartial:
		return "table-keyed-partial"
	}
	return "unknown"
}

// ConditionMode selects how a composite entry combines the match results
// of the entries it references.
type ConditionMode uint8

const (
	// ConditionNone marks an entry matched by its own coverage.
	ConditionNone ConditionMode = iota

	// ConditionAnd matches when every referenced entry matches.
	ConditionAnd

	// ConditionOr matches when any referenced entry matches.
	ConditionOr
)

// Coverage is the subset-coverage predicate of a patch map entry.
type Coverage struct {
	Codepoints  map[ot.Codepoint]bool
	FeatureTags map[ot.Tag]bool
	DesignSpace map[ot.Tag]AxisRange
}

// IsEmpty reports whether the coverage constrains nothing.
func (c Coverage) IsEmpty() bool {
	return len(c.Codepoints) == 0 && len(c.FeatureTags) == 0 && len(c.DesignSpace) == 0
}

// SmallestCodepoint returns the smallest covered codepoint.
func (c Coverage) SmallestCodepoint() ot.Codepoint {
	first := true
	min := ot.Codepoint(0)
	for cp := range c.Codepoints {
		if first || cp < min {
			min = cp
			first = false
		}
	}
	return min
}

// Matches reports whether the coverage intersects a client request. Empty
// coverage matches unconditionally. Otherwise the codepoint sets must
// intersect when the entry lists codepoints, the feature sets must
// intersect when the entry lists features (an entry without features
// accepts any), and every axis listed by the entry must overlap the
// request's range for that axis.
func (c Coverage) Matches(request SubsetDefinition) bool {
	if c.IsEmpty() {
		return true
	}

	if len(c.Codepoints) > 0 {
		found := false
		for cp := range c.Codepoints {
			if request.Codepoints[cp] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.FeatureTags) > 0 {
		found := false
		for tag := range c.FeatureTags {
			if request.FeatureTags[tag] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for tag, r := range c.DesignSpace {
		req, ok := request.DesignSpace[tag]
		if !ok || !r.Intersects(req) {
			return false
		}
	}

	return true
}

// Entry maps a coverage predicate (or a composite condition over earlier
// entries) to a patch index and encoding.
type Entry struct {
	Coverage   Coverage
	PatchIndex uint32
	Encoding   PatchEncoding
	Extension  bool

	// Composite condition; Mode is ConditionNone for plain entries.
	Mode          ConditionMode
	CopiedIndices []int // positions of referenced entries within the same table
}

// PatchMap is the ordered list of entries serialized into the IFT and
// IFTX tables, together with the URL template and compatibility id shared
// by both.
type PatchMap struct {
	Entries     []Entry
	URLTemplate string
	Id          CompatId
}

// AddEntry appends a plain coverage entry.
func (m *PatchMap) AddEntry(coverage Coverage, patchIndex uint32, encoding PatchEncoding, extension bool) {
	m.Entries = append(m.Entries, Entry{
		Coverage:   coverage,
		PatchIndex: patchIndex,
		Encoding:   encoding,
		Extension:  extension,
	})
}

// RemoveEntries deletes every entry mapped to the given patch index.
func (m *PatchMap) RemoveEntries(patchIndex uint32) {
	out := m.Entries[:0]
	for _, e := range m.Entries {
		if e.PatchIndex != patchIndex {
			out = append(out, e)
		}
	}
	m.Entries = out
}

// TableEntries returns the entries destined for one table (extension =
// IFTX) preserving order.
func (m *PatchMap) TableEntries(extension bool) []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Extension == extension {
			out = append(out, e)
		}
	}
	return out
}

// HasExtensionEntries reports whether an IFTX table is needed.
func (m *PatchMap) HasExtensionEntries() bool {
	for _, e := range m.Entries {
		if e.Extension {
			return true
		}
	}
	return false
}

// MatchingEntries evaluates all entries of one table against a request
// and returns the matching ones. Composite entries see the match results
// of the entries they reference by table position.
func (m *PatchMap) MatchingEntries(extension bool, request SubsetDefinition) []Entry {
	entries := m.TableEntries(extension)
	matched := make([]bool, len(entries))
	var out []Entry

	for i, e := range entries {
		switch e.Mode {
		case ConditionAnd:
			ok := len(e.CopiedIndices) > 0
			for _, idx := range e.CopiedIndices {
				if idx < 0 || idx >= i || !matched[idx] {
					ok = false
					break
				}
			}
			matched[i] = ok
		case ConditionOr:
			ok := false
			for _, idx := range e.CopiedIndices {
				if idx >= 0 && idx < i && matched[idx] {
					ok = true
					break
				}
			}
			matched[i] = ok
		default:
			matched[i] = e.Coverage.Matches(request)
		}
		if matched[i] {
			out = append(out, entries[i])
		}
	}
	return out
}
