package ift

import (
	"testing"

	"github.com/boxesandglue/ift/ot"
)

func TestCoverageMatches(t *testing.T) {
	request := CodepointString("abc")
	request.FeatureTags[ot.TagFromString("liga")] = true
	request.DesignSpace[ot.TagAxisWidth] = Point(80)

	// Empty coverage matches unconditionally.
	if !(Coverage{}).Matches(request) {
		t.Error("empty coverage must match")
	}

	// Codepoint intersection.
	cov := CodepointString("cde").ToCoverage()
	if !cov.Matches(request) {
		t.Error("intersecting codepoints must match")
	}
	if CodepointString("xyz").ToCoverage().Matches(request) {
		t.Error("disjoint codepoints must not match")
	}

	// An entry without features accepts any request; one with features
	// needs an intersection.
	withFeature := NewSubsetDefinition()
	withFeature.FeatureTags[ot.TagFromString("smcp")] = true
	if withFeature.ToCoverage().Matches(request) {
		t.Error("disjoint features must not match")
	}
	withFeature.FeatureTags[ot.TagFromString("liga")] = true
	if !withFeature.ToCoverage().Matches(request) {
		t.Error("intersecting features must match")
	}

	// Every axis in the entry must overlap the request.
	ds := NewSubsetDefinition()
	ds.DesignSpace[ot.TagAxisWidth] = mustRange(t, 75, 100)
	if !ds.ToCoverage().Matches(request) {
		t.Error("overlapping design space must match")
	}
	ds.DesignSpace[ot.TagAxisWeight] = mustRange(t, 300, 700)
	if ds.ToCoverage().Matches(request) {
		t.Error("an axis missing from the request must not match")
	}
}

func TestMatchingEntriesConditions(t *testing.T) {
	m := &PatchMap{}
	m.AddEntry(CodepointString("f").ToCoverage(), 0, GlyphKeyed, false)
	m.AddEntry(CodepointString("i").ToCoverage(), 1, GlyphKeyed, false)
	m.Entries = append(m.Entries, Entry{
		PatchIndex:    2,
		Encoding:      GlyphKeyed,
		Mode:          ConditionAnd,
		CopiedIndices: []int{0, 1},
	})
	m.Entries = append(m.Entries, Entry{
		PatchIndex:    3,
		Encoding:      GlyphKeyed,
		Mode:          ConditionOr,
		CopiedIndices: []int{0, 1},
	})

	got := m.MatchingEntries(false, CodepointString("f"))
	if !hasPatch(got, 0) || hasPatch(got, 1) || hasPatch(got, 2) || !hasPatch(got, 3) {
		t.Errorf("request f: matched %v", patchIndices(got))
	}

	got = m.MatchingEntries(false, CodepointString("fi"))
	for _, want := range []uint32{0, 1, 2, 3} {
		if !hasPatch(got, want) {
			t.Errorf("request fi: missing patch %d (matched %v)", want, patchIndices(got))
		}
	}

	got = m.MatchingEntries(false, CodepointString("z"))
	if len(got) != 0 {
		t.Errorf("request z: matched %v, want none", patchIndices(got))
	}
}

func TestRemoveEntries(t *testing.T) {
	m := &PatchMap{}
	m.AddEntry(CodepointString("a").ToCoverage(), 0, GlyphKeyed, false)
	m.AddEntry(CodepointString("b").ToCoverage(), 1, GlyphKeyed, false)
	m.RemoveEntries(0)
	if len(m.Entries) != 1 || m.Entries[0].PatchIndex != 1 {
		t.Errorf("RemoveEntries left %v", patchIndices(m.Entries))
	}
}

func hasPatch(entries []Entry, index uint32) bool {
	for _, e := range entries {
		if e.PatchIndex == index {
			return true
		}
	}
	return false
}

func patchIndices(entries []Entry) []uint32 {
	out := make([]uint32, len(entries))
	for i, e := range entries {
		out[i] = e.PatchIndex
	}
	return out
}
