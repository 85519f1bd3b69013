package ot

import (
	"bytes"
	"testing"
)

func simpleGlyphData(marker byte) []byte {
	w := NewWriter()
	w.I16(1) // numberOfContours
	w.I16(0)
	w.I16(0)
	w.I16(100)
	w.I16(100)
	w.U16(0)
	w.U16(0)
	w.U8(0x07)
	w.U8(1)
	w.U8(uint32(marker))
	return w.Bytes()
}

func compositeGlyphData(components ...GlyphID) []byte {
	w := NewWriter()
	w.I16(-1)
	w.I16(0)
	w.I16(0)
	w.I16(100)
	w.I16(100)
	for i, comp := range components {
		flags := uint32(0x0001 | 0x0002)
		if i < len(components)-1 {
			flags |= 0x0020
		}
		w.U16(flags)
		w.U16(uint32(comp))
		w.I16(0)
		w.I16(0)
	}
	return w.Bytes()
}

func TestBuildGlyfRoundTrip(t *testing.T) {
	glyphs := [][]byte{
		simpleGlyphData(0),
		simpleGlyphData(1),
		nil, // empty slot
		simpleGlyphData(3),
	}

	glyfData, locaData := BuildGlyf(glyphs)
	loca, err := ParseLoca(locaData, len(glyphs), 1)
	if err != nil {
		t.Fatalf("ParseLoca: %v", err)
	}
	glyf, err := ParseGlyf(glyfData, loca)
	if err != nil {
		t.Fatalf("ParseGlyf: %v", err)
	}

	for gid, want := range glyphs {
		got := glyf.GlyphBytes(GlyphID(gid))
		if !bytes.Equal(got, want) {
			t.Errorf("glyph %d: got % x, want % x", gid, got, want)
		}
	}
	if glyf.NumGlyphs() != 4 {
		t.Errorf("NumGlyphs = %d, want 4", glyf.NumGlyphs())
	}
}

func TestGlyfComponents(t *testing.T) {
	glyphs := [][]byte{
		simpleGlyphData(0),
		simpleGlyphData(1),
		simpleGlyphData(2),
		compositeGlyphData(1, 2),
	}

	glyfData, locaData := BuildGlyf(glyphs)
	loca, _ := ParseLoca(locaData, len(glyphs), 1)
	glyf, _ := ParseGlyf(glyfData, loca)

	comps := glyf.Components(3)
	if len(comps) != 2 || comps[0] != 1 || comps[1] != 2 {
		t.Errorf("Components(3) = %v, want [1 2]", comps)
	}
	if comps := glyf.Components(1); comps != nil {
		t.Errorf("Components(1) = %v for a simple glyph, want nil", comps)
	}
	if comps := glyf.Components(2); comps != nil && len(comps) != 0 {
		t.Errorf("Components(2) = %v, want none", comps)
	}
}

func TestShortLoca(t *testing.T) {
	// Short loca stores halved offsets.
	data := []byte{0x00, 0x00, 0x00, 0x05, 0x00, 0x08}
	loca, err := ParseLoca(data, 2, 0)
	if err != nil {
		t.Fatalf("ParseLoca: %v", err)
	}
	off, length, ok := loca.GetOffset(0)
	if !ok || off != 0 || length != 10 {
		t.Errorf("GetOffset(0) = %d, %d, %v; want 0, 10", off, length, ok)
	}
	if !loca.IsShort() {
		t.Error("IsShort should be true")
	}
}
