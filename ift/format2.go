package ift

import (
	"fmt"
	"sort"

	"github.com/boxesandglue/ift/ot"
)

// Binary serialization of the "format 2" patch map embedded in fonts as
// the IFT (main) and IFTX (extension) tables. Both tables share one
// layout; they differ only in which entries they carry.

const (
	format2Version      = 0x02
	format2HeaderLength = 34 // through uriTemplateLength

	entryHasFeatures      = 1 << 0
	entryHasDesignSpace   = 1 << 1
	entryHasCopyIndices   = 1 << 2
	entryHasDelta         = 1 << 3
	entryHasEncoding      = 1 << 4
	entryHasCodepoints    = 1 << 5
)

// SerializePatchMap serializes the entries of one table (extension false =
// IFT, true = IFTX) into format 2.
func SerializePatchMap(m *PatchMap, extension bool) ([]byte, error) {
	entries := m.TableEntries(extension)
	defaultEncoding := pickDefaultEncoding(entries)

	w := ot.NewWriter()
	w.U8(format2Version)
	w.U32(0) // reserved
	m.Id.WriteTo(w)
	w.U8(uint32(defaultEncoding))
	if err := w.U16(uint32(len(entries))); err != nil {
		return nil, fmt.Errorf("%w: too many patch map entries (%d)", ErrFormat, len(entries))
	}
	w.U32(uint32(format2HeaderLength + len(m.URLTemplate))) // mappings offset
	w.U32(0)                                                // idStrings offset
	if err := w.U16(uint32(len(m.URLTemplate))); err != nil {
		return nil, fmt.Errorf("%w: URL template too long", ErrFormat)
	}
	w.Raw([]byte(m.URLTemplate))

	lastIndex := uint32(0)
	for _, e := range entries {
		if err := serializeEntry(w, e, lastIndex, defaultEncoding); err != nil {
			return nil, err
		}
		lastIndex = e.PatchIndex
	}

	return w.Bytes(), nil
}

func pickDefaultEncoding(entries []Entry) PatchEncoding {
	var counts [3]int
	for _, e := range entries {
		if int(e.Encoding) < len(counts) {
			counts[e.Encoding]++
		}
	}
	best := GlyphKeyed
	for enc := TableKeyedFull; enc <= TableKeyedPartial; enc++ {
		if counts[enc] > counts[best] {
			best = enc
		}
	}
	return best
}

func serializeEntry(w *ot.Writer, e Entry, lastIndex uint32, defaultEncoding PatchEncoding) error {
	cov := e.Coverage
	delta := int64(e.PatchIndex) - int64(lastIndex)

	var flags uint32
	if len(cov.FeatureTags) > 0 {
		flags |= entryHasFeatures
	}
	if len(cov.DesignSpace) > 0 {
		flags |= entryHasDesignSpace
	}
	if e.Mode != ConditionNone {
		flags |= entryHasCopyIndices
	}
	if delta != 1 {
		flags |= entryHasDelta
	}
	if e.Encoding != defaultEncoding {
		flags |= entryHasEncoding
	}
	if len(cov.Codepoints) > 0 {
		flags |= entryHasCodepoints
	}
	w.U8(flags)

	if flags&entryHasFeatures != 0 {
		tags := sortedTagSet(cov.FeatureTags)
		if err := w.U8(uint32(len(tags))); err != nil {
			return fmt.Errorf("%w: too many feature tags (%d)", ErrFormat, len(tags))
		}
		for _, tag := range tags {
			w.Tag(tag)
		}
	}

	if flags&entryHasDesignSpace != 0 {
		axes := make([]ot.Tag, 0, len(cov.DesignSpace))
		for tag := range cov.DesignSpace {
			axes = append(axes, tag)
		}
		sortTags(axes)
		if err := w.U16(uint32(len(axes))); err != nil {
			return fmt.Errorf("%w: too many design space axes", ErrFormat)
		}
		for _, tag := range axes {
			r := cov.DesignSpace[tag]
			w.Tag(tag)
			w.Fixed(r.Start())
			w.Fixed(r.End())
		}
	}

	if flags&entryHasCopyIndices != 0 {
		mode := uint32(0)
		if e.Mode == ConditionOr {
			mode = 1
		}
		w.U8(mode)
		if err := w.U8(uint32(len(e.CopiedIndices))); err != nil {
			return fmt.Errorf("%w: too many copied indices", ErrFormat)
		}
		for _, idx := range e.CopiedIndices {
			if err := w.U16(uint32(idx)); err != nil {
				return fmt.Errorf("%w: copied index %d overflows", ErrFormat, idx)
			}
		}
	}

	if flags&entryHasDelta != 0 {
		if err := w.I16(delta); err != nil {
			return fmt.Errorf("%w: entry index delta %d overflows int16", ErrFormat, delta)
		}
	}

	if flags&entryHasEncoding != 0 {
		w.U8(uint32(e.Encoding))
	}

	if flags&entryHasCodepoints != 0 {
		bias := cov.SmallestCodepoint()
		biased := make(map[uint32]bool, len(cov.Codepoints))
		for cp := range cov.Codepoints {
			biased[cp-bias] = true
		}
		w.U32(bias)
		w.Raw(EncodeSparseBitSet(biased))
	}

	return nil
}

// PatchMapTable is the decoded content of a single IFT or IFTX table.
type PatchMapTable struct {
	Id          CompatId
	URLTemplate string
	Entries     []Entry
}

// ParsePatchMapTable decodes one format 2 table. The extension flag is
// recorded on every decoded entry.
func ParsePatchMapTable(data []byte, extension bool) (PatchMapTable, error) {
	var out PatchMapTable
	p := ot.NewParser(data)

	version, err := p.U8()
	if err != nil || version != format2Version {
		return out, fmt.Errorf("%w: unsupported patch map format", ErrFormat)
	}
	reserved, err := p.U32()
	if err != nil || reserved != 0 {
		return out, fmt.Errorf("%w: patch map reserved field is not zero", ErrFormat)
	}
	out.Id, err = ReadCompatId(p)
	if err != nil {
		return out, err
	}
	defaultEncodingRaw, err := p.U8()
	if err != nil || defaultEncodingRaw > uint8(TableKeyedPartial) {
		return out, fmt.Errorf("%w: bad default patch encoding", ErrFormat)
	}
	defaultEncoding := PatchEncoding(defaultEncodingRaw)
	mappingCount, err := p.U16()
	if err != nil {
		return out, fmt.Errorf("%w: truncated patch map header", ErrFormat)
	}
	mappingsOffset, err := p.U32()
	if err != nil {
		return out, fmt.Errorf("%w: truncated patch map header", ErrFormat)
	}
	if _, err := p.U32(); err != nil { // idStrings offset, unused
		return out, fmt.Errorf("%w: truncated patch map header", ErrFormat)
	}
	templateLen, err := p.U16()
	if err != nil {
		return out, fmt.Errorf("%w: truncated patch map header", ErrFormat)
	}
	template, err := p.Bytes(int(templateLen))
	if err != nil {
		return out, fmt.Errorf("%w: truncated URL template", ErrFormat)
	}
	out.URLTemplate = string(template)

	if err := p.SetOffset(int(mappingsOffset)); err != nil {
		return out, fmt.Errorf("%w: bad mappings offset", ErrFormat)
	}

	lastIndex := uint32(0)
	for i := 0; i < int(mappingCount); i++ {
		entry, err := parseEntry(p, lastIndex, defaultEncoding)
		if err != nil {
			return out, err
		}
		entry.Extension = extension
		out.Entries = append(out.Entries, entry)
		lastIndex = entry.PatchIndex
	}

	return out, nil
}

func parseEntry(p *ot.Parser, lastIndex uint32, defaultEncoding PatchEncoding) (Entry, error) {
	var e Entry
	e.Encoding = defaultEncoding
	e.Coverage = Coverage{
		Codepoints:  make(map[ot.Codepoint]bool),
		FeatureTags: make(map[ot.Tag]bool),
		DesignSpace: make(map[ot.Tag]AxisRange),
	}

	flags, err := p.U8()
	if err != nil {
		return e, fmt.Errorf("%w: truncated patch map entry", ErrFormat)
	}
	if flags&^uint8(entryHasFeatures|entryHasDesignSpace|entryHasCopyIndices|
		entryHasDelta|entryHasEncoding|entryHasCodepoints) != 0 {
		return e, fmt.Errorf("%w: unknown entry format flags %#x", ErrFormat, flags)
	}

	if flags&entryHasFeatures != 0 {
		count, err := p.U8()
		if err != nil {
			return e, fmt.Errorf("%w: truncated feature list", ErrFormat)
		}
		for i := 0; i < int(count); i++ {
			tag, err := p.Tag()
			if err != nil {
				return e, fmt.Errorf("%w: truncated feature list", ErrFormat)
			}
			e.Coverage.FeatureTags[tag] = true
		}
	}

	if flags&entryHasDesignSpace != 0 {
		count, err := p.U16()
		if err != nil {
			return e, fmt.Errorf("%w: truncated design space table", ErrFormat)
		}
		for i := 0; i < int(count); i++ {
			tag, err := p.Tag()
			if err != nil {
				return e, fmt.Errorf("%w: truncated design space table", ErrFormat)
			}
			start, err := p.Fixed()
			if err != nil {
				return e, fmt.Errorf("%w: truncated design space table", ErrFormat)
			}
			end, err := p.Fixed()
			if err != nil {
				return e, fmt.Errorf("%w: truncated design space table", ErrFormat)
			}
			r, rerr := Range(start, end)
			if rerr != nil {
				return e, fmt.Errorf("%w: inverted design space range", ErrFormat)
			}
			e.Coverage.DesignSpace[tag] = r
		}
	}

	if flags&entryHasCopyIndices != 0 {
		mode, err := p.U8()
		if err != nil || mode > 1 {
			return e, fmt.Errorf("%w: bad copy index mode", ErrFormat)
		}
		if mode == 0 {
			e.Mode = ConditionAnd
		} else {
			e.Mode = ConditionOr
		}
		count, err := p.U8()
		if err != nil {
			return e, fmt.Errorf("%w: truncated copy indices", ErrFormat)
		}
		for i := 0; i < int(count); i++ {
			idx, err := p.U16()
			if err != nil {
				return e, fmt.Errorf("%w: truncated copy indices", ErrFormat)
			}
			e.CopiedIndices = append(e.CopiedIndices, int(idx))
		}
	}

	delta := int64(1)
	if flags&entryHasDelta != 0 {
		d, err := p.I16()
		if err != nil {
			return e, fmt.Errorf("%w: truncated entry index delta", ErrFormat)
		}
		delta = int64(d)
	}
	e.PatchIndex = uint32(int64(lastIndex) + delta)

	if flags&entryHasEncoding != 0 {
		enc, err := p.U8()
		if err != nil || enc > uint8(TableKeyedPartial) {
			return e, fmt.Errorf("%w: bad patch encoding override", ErrFormat)
		}
		e.Encoding = PatchEncoding(enc)
	}

	if flags&entryHasCodepoints != 0 {
		bias, err := p.U32()
		if err != nil {
			return e, fmt.Errorf("%w: truncated codepoint set", ErrFormat)
		}
		biased, err := ParseSparseBitSet(p)
		if err != nil {
			return e, err
		}
		for v := range biased {
			e.Coverage.Codepoints[v+bias] = true
		}
	}

	return e, nil
}

// ParsePatchMap assembles a PatchMap from the IFT table bytes and the
// optional IFTX table bytes (nil when the font has no extension table).
func ParsePatchMap(ift, iftx []byte) (*PatchMap, error) {
	main, err := ParsePatchMapTable(ift, false)
	if err != nil {
		return nil, err
	}

	m := &PatchMap{
		Entries:     main.Entries,
		URLTemplate: main.URLTemplate,
		Id:          main.Id,
	}

	if iftx != nil {
		ext, err := ParsePatchMapTable(iftx, true)
		if err != nil {
			return nil, err
		}
		if ext.Id != main.Id {
			return nil, fmt.Errorf("%w: extension table compat id mismatch", ErrFormat)
		}
		m.Entries = append(m.Entries, ext.Entries...)
	}

	return m, nil
}

func sortedTagSet(set map[ot.Tag]bool) []ot.Tag {
	tags := make([]ot.Tag, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sortTags(tags)
	return tags
}

func sortTags(tags []ot.Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
}
