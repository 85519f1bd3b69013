package encoder

import (
	"fmt"
	"sort"

	"github.com/boxesandglue/ift/delta"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

// TagGlyphKeyed is the format tag of glyph-keyed patches.
var TagGlyphKeyed = ot.MakeTag('i', 'f', 'g', 'k')

const glyphKeyedFlagWideGids = 1 << 0 // 24-bit glyph ids

// GlyphKeyedDiff produces glyph-keyed patches: self-describing containers
// of per-glyph data for one or more tables, spliced into the receiver's
// font without replacing whole tables. Supported tables are glyf and
// gvar; CFF and CFF2 are reserved for later.
type GlyphKeyedDiff struct {
	font     *ot.Font
	compatId ift.CompatId
	tags     []ot.Tag
	differ   delta.Differ
}

// NewGlyphKeyedDiff creates a differ reading glyph data from font. The
// patches carry the given compatibility id.
func NewGlyphKeyedDiff(font *ot.Font, compatId ift.CompatId, tags []ot.Tag) (*GlyphKeyedDiff, error) {
	for _, tag := range tags {
		if tag != ot.TagGlyf && tag != ot.TagGvar {
			return nil, fmt.Errorf("%w: unsupported table %s for glyph keyed diff", ift.ErrConfig, tag)
		}
	}
	sorted := append([]ot.Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &GlyphKeyedDiff{
		font:     font,
		compatId: compatId,
		tags:     sorted,
		differ:   delta.Brotli{},
	}, nil
}

// CreatePatch emits the patch carrying the data of the given glyphs.
func (d *GlyphKeyedDiff) CreatePatch(gids []ot.GlyphID) ([]byte, error) {
	if len(gids) == 0 {
		return nil, fmt.Errorf("%w: glyph keyed patch needs at least one glyph", ift.ErrConfig)
	}

	sorted := append([]ot.GlyphID(nil), gids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	maxGid := uint32(sorted[len(sorted)-1])
	wideGids := maxGid > 0xFFFF

	stream, err := d.createDataStream(sorted, wideGids)
	if err != nil {
		return nil, err
	}

	compressed, err := d.differ.Diff(nil, stream)
	if err != nil {
		return nil, fmt.Errorf("%w: compressing glyph data: %v", ift.ErrResource, err)
	}

	w := ot.NewWriter()
	w.Tag(TagGlyphKeyed)
	w.U32(0) // reserved
	flags := uint32(0)
	if wideGids {
		flags = glyphKeyedFlagWideGids
	}
	w.U8(flags)
	d.compatId.WriteTo(w)
	w.U32(uint32(len(stream))) // max uncompressed length
	w.Raw(compressed)

	return w.Bytes(), nil
}

// createDataStream builds the uncompressed stream: glyph count, table
// count, glyph ids, table tags, offsets, then per-glyph data concatenated
// table-major.
func (d *GlyphKeyedDiff) createDataStream(gids []ot.GlyphID, wideGids bool) ([]byte, error) {
	var glyf *ot.Glyf
	var gvar *ot.Gvar
	var tags []ot.Tag
	for _, tag := range d.tags {
		switch tag {
		case ot.TagGlyf:
			if d.font.HasTable(ot.TagGlyf) && d.font.HasTable(ot.TagLoca) {
				g, err := ot.ParseGlyfFromFont(d.font)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
				}
				glyf = g
				tags = append(tags, tag)
			}
		case ot.TagGvar:
			if d.font.HasTable(ot.TagGvar) {
				g, err := ot.ParseGvarFromFont(d.font)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
				}
				gvar = g
				tags = append(tags, tag)
			}
		}
	}

	numGlyphs := d.font.NumGlyphs()

	w := ot.NewWriter()
	w.U32(uint32(len(gids)))
	if err := w.U8(uint32(len(tags))); err != nil {
		return nil, fmt.Errorf("%w: too many tables", ift.ErrFormat)
	}

	for _, gid := range gids {
		if int(gid) >= numGlyphs {
			return nil, fmt.Errorf("%w: glyph %d not present in the source font", ift.ErrConfig, gid)
		}
		if wideGids {
			if err := w.U24(uint32(gid)); err != nil {
				return nil, fmt.Errorf("%w: glyph id %d exceeds 24 bits", ift.ErrConfig, gid)
			}
		} else {
			if err := w.U16(uint32(gid)); err != nil {
				return nil, fmt.Errorf("%w: glyph id %d exceeds 16 bits", ift.ErrConfig, gid)
			}
		}
	}

	for _, tag := range tags {
		w.Tag(tag)
	}

	// Offsets are relative to the start of the data region; one per
	// (table, glyph) pair plus the trailing end offset.
	var data []byte
	for _, tag := range tags {
		for _, gid := range gids {
			w.U32(uint32(len(data)))
			switch tag {
			case ot.TagGlyf:
				data = append(data, glyf.GlyphBytes(gid)...)
			case ot.TagGvar:
				data = append(data, gvar.GlyphBytes(gid)...)
			}
		}
	}
	w.U32(uint32(len(data)))
	w.Raw(data)

	return w.Bytes(), nil
}

// GlyphKeyedPatch is a decoded glyph-keyed patch.
type GlyphKeyedPatch struct {
	CompatId ift.CompatId
	Gids     []ot.GlyphID
	Tables   []ot.Tag

	// Data[t][i] is the payload of glyph Gids[i] for table Tables[t].
	Data [][][]byte
}

// ParseGlyphKeyedPatch decodes and decompresses a glyph-keyed patch blob.
func ParseGlyphKeyedPatch(blob []byte) (*GlyphKeyedPatch, error) {
	p := ot.NewParser(blob)

	tag, err := p.Tag()
	if err != nil || tag != TagGlyphKeyed {
		return nil, fmt.Errorf("%w: bad glyph-keyed patch tag", ift.ErrFormat)
	}
	reserved, err := p.U32()
	if err != nil || reserved != 0 {
		return nil, fmt.Errorf("%w: reserved field is not zero", ift.ErrFormat)
	}
	flags, err := p.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated patch header", ift.ErrFormat)
	}
	if flags&^byte(glyphKeyedFlagWideGids) != 0 {
		return nil, fmt.Errorf("%w: unknown patch flags %#x", ift.ErrFormat, flags)
	}
	wideGids := flags&glyphKeyedFlagWideGids != 0

	compatId, err := ift.ReadCompatId(p)
	if err != nil {
		return nil, err
	}
	maxLen, err := p.U32()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated patch header", ift.ErrFormat)
	}

	compressed, _ := p.Bytes(p.Remaining())
	stream, err := delta.Brotli{}.Patch(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing glyph data: %v", ift.ErrFormat, err)
	}
	if uint32(len(stream)) > maxLen {
		return nil, fmt.Errorf("%w: glyph data exceeds declared length", ift.ErrFormat)
	}

	sp := ot.NewParser(stream)
	glyphCount, err := sp.U32()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated glyph data stream", ift.ErrFormat)
	}
	tableCount, err := sp.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated glyph data stream", ift.ErrFormat)
	}

	out := &GlyphKeyedPatch{CompatId: compatId}
	for i := 0; i < int(glyphCount); i++ {
		var gid uint32
		if wideGids {
			gid, err = sp.U24()
		} else {
			var v uint16
			v, err = sp.U16()
			gid = uint32(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: truncated glyph id array", ift.ErrFormat)
		}
		out.Gids = append(out.Gids, ot.GlyphID(gid))
	}

	for t := 0; t < int(tableCount); t++ {
		tableTag, err := sp.Tag()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated table tag array", ift.ErrFormat)
		}
		out.Tables = append(out.Tables, tableTag)
	}

	numOffsets := int(tableCount)*int(glyphCount) + 1
	offsets := make([]uint32, numOffsets)
	for i := range offsets {
		offsets[i], err = sp.U32()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated offset array", ift.ErrFormat)
		}
	}

	dataRegion := stream[sp.Offset():]
	out.Data = make([][][]byte, int(tableCount))
	for t := 0; t < int(tableCount); t++ {
		out.Data[t] = make([][]byte, int(glyphCount))
		for i := 0; i < int(glyphCount); i++ {
			start := offsets[t*int(glyphCount)+i]
			end := offsets[t*int(glyphCount)+i+1]
			if start > end || int(end) > len(dataRegion) {
				return nil, fmt.Errorf("%w: glyph data offsets out of order", ift.ErrFormat)
			}
			out.Data[t][i] = dataRegion[start:end]
		}
	}

	return out, nil
}
