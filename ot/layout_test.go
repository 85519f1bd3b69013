package ot_test

import (
	"testing"

	"github.com/boxesandglue/ift/internal/testutil"
	"github.com/boxesandglue/ift/ot"
)

const (
	gidF  = ot.GlyphID(1)
	gidI  = ot.GlyphID(2)
	gidFi = ot.GlyphID(3)
)

func ligatureLayout(t *testing.T) *ot.Layout {
	t.Helper()
	layout, err := ot.ParseLayout(testutil.LigatureGSUB(gidF, gidI, gidFi), true)
	if err != nil {
		t.Fatalf("ParseLayout: %v", err)
	}
	return layout
}

func TestFeatureTags(t *testing.T) {
	layout := ligatureLayout(t)
	tags := layout.FeatureTags()
	if len(tags) != 1 || tags[0] != ot.TagFromString("liga") {
		t.Errorf("FeatureTags = %v, want [liga]", tags)
	}
}

func TestLigatureClosure(t *testing.T) {
	layout := ligatureLayout(t)
	lookups := layout.LookupIndices(nil)
	if !lookups[0] {
		t.Fatalf("LookupIndices = %v, want lookup 0", lookups)
	}

	// Both components present: the ligature becomes reachable.
	got := layout.ClosureGlyphs(map[ot.GlyphID]bool{gidF: true, gidI: true}, lookups)
	if !got[gidFi] {
		t.Errorf("closure of {f, i} = %v, want fi glyph", got)
	}

	// Only the first component: no ligature.
	got = layout.ClosureGlyphs(map[ot.GlyphID]bool{gidF: true}, lookups)
	if got[gidFi] {
		t.Errorf("closure of {f} = %v, must not contain the ligature", got)
	}
}

func TestFilterFeatures(t *testing.T) {
	data := testutil.LigatureGSUB(gidF, gidI, gidFi)

	filtered, err := ot.FilterFeatures(data, func(tag ot.Tag) bool { return false })
	if err != nil {
		t.Fatalf("FilterFeatures: %v", err)
	}

	layout, err := ot.ParseLayout(filtered, true)
	if err != nil {
		t.Fatalf("ParseLayout(filtered): %v", err)
	}
	if tags := layout.FeatureTags(); len(tags) != 0 {
		t.Errorf("FeatureTags after filter = %v, want none", tags)
	}

	// The filtered feature no longer reaches its lookup.
	lookups := layout.LookupIndices(func(tag ot.Tag) bool { return true })
	if len(lookups) != 0 {
		t.Errorf("LookupIndices after filter = %v, want none", lookups)
	}

	// Keeping every feature must leave the table untouched.
	same, err := ot.FilterFeatures(data, func(tag ot.Tag) bool { return true })
	if err != nil {
		t.Fatalf("FilterFeatures(keep all): %v", err)
	}
	if &same[0] != &data[0] {
		t.Error("keep-all filtering should return the input unchanged")
	}
}
