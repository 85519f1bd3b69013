package ift

import (
	"testing"

	"github.com/boxesandglue/ift/ot"
)

func TestSubsetDefinitionUnion(t *testing.T) {
	a := CodepointString("ab")
	a.FeatureTags[ot.TagFromString("liga")] = true
	a.DesignSpace[ot.TagAxisWidth] = mustRange(t, 80, 100)

	b := CodepointString("bc")
	b.Gids[7] = true
	b.DesignSpace[ot.TagAxisWidth] = mustRange(t, 50, 90)
	b.DesignSpace[ot.TagAxisWeight] = Point(400)

	u := a.Union(b)

	if len(u.Codepoints) != 3 {
		t.Errorf("codepoints = %v, want a, b, c", u.SortedCodepoints())
	}
	if !u.Gids[7] || !u.FeatureTags[ot.TagFromString("liga")] {
		t.Error("gids / features not united")
	}
	if r := u.DesignSpace[ot.TagAxisWidth]; r.Start() != 50 || r.End() != 100 {
		t.Errorf("wdth = %v, want [50, 100]", r)
	}
	if r := u.DesignSpace[ot.TagAxisWeight]; !r.IsPoint() || r.Start() != 400 {
		t.Errorf("wght = %v, want point 400", r)
	}

	// Union must not alias the operands.
	u.Codepoints['z'] = true
	if a.Codepoints['z'] || b.Codepoints['z'] {
		t.Error("union aliases its operands")
	}
}

func TestSubsetDefinitionSubtract(t *testing.T) {
	s := CodepointString("abcd")
	s.DesignSpace[ot.TagAxisWidth] = mustRange(t, 80, 100)
	s.DesignSpace[ot.TagAxisWeight] = mustRange(t, 300, 700)

	o := CodepointString("cd")
	// Fully contains wdth: the axis is dropped.
	o.DesignSpace[ot.TagAxisWidth] = mustRange(t, 75, 100)
	// Partially overlaps wght: ranges are not split, the axis stays.
	o.DesignSpace[ot.TagAxisWeight] = mustRange(t, 400, 500)

	d := s.Subtract(o)

	if len(d.Codepoints) != 2 || !d.Codepoints['a'] || !d.Codepoints['b'] {
		t.Errorf("codepoints = %v, want a, b", d.SortedCodepoints())
	}
	if _, ok := d.DesignSpace[ot.TagAxisWidth]; ok {
		t.Error("fully covered axis must be dropped")
	}
	if _, ok := d.DesignSpace[ot.TagAxisWeight]; !ok {
		t.Error("partially covered axis must be kept")
	}
}

func TestSubsetDefinitionKeyStable(t *testing.T) {
	a := CodepointString("abc")
	a.FeatureTags[ot.TagFromString("smcp")] = true

	b := CodepointString("cba")
	b.FeatureTags[ot.TagFromString("smcp")] = true

	if a.Key() != b.Key() {
		t.Errorf("equal definitions have different keys:\n%s\n%s", a.Key(), b.Key())
	}
	if !a.Equal(b) {
		t.Error("Equal should hold")
	}

	b.Codepoints['d'] = true
	if a.Equal(b) {
		t.Error("Equal should not hold after mutation")
	}
}

func TestSubsetDefinitionEmpty(t *testing.T) {
	var zero SubsetDefinition
	if !zero.IsEmpty() {
		t.Error("zero value must be empty")
	}
	if !NewSubsetDefinition().IsEmpty() {
		t.Error("fresh definition must be empty")
	}
	d := NewSubsetDefinition()
	d.DesignSpace[ot.TagAxisWidth] = Point(80)
	if d.IsEmpty() {
		t.Error("design space alone makes a definition non-empty")
	}
}

func mustRange(t *testing.T, start, end float32) AxisRange {
	t.Helper()
	r, err := Range(start, end)
	if err != nil {
		t.Fatalf("Range(%g, %g): %v", start, end, err)
	}
	return r
}
