// Package encoder builds incremental font transfer encodings: it walks
// the configured subset graph, cuts subsets, emits table-keyed and
// glyph-keyed patches along the edges, and embeds the patch map into each
// node's font.
package encoder

import (
	"fmt"
	"sort"

	"github.com/boxesandglue/ift/delta"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

// TagTableKeyed is the format tag of table-keyed patches.
var TagTableKeyed = ot.MakeTag('i', 'f', 't', 'k')

// Sub-patch flag bits.
const (
	tableFlagReplace = 1 << 0 // diff against an empty base
	tableFlagRemove  = 1 << 1 // drop the table, no data follows
)

// TableKeyedDiff produces table-keyed patches: a serialized list of
// per-table sub-patches, each a shared-dictionary delta against the
// corresponding table of the base font.
type TableKeyedDiff struct {
	differ   delta.Differ
	compatId ift.CompatId
	excluded map[ot.Tag]bool
	replaced map[ot.Tag]bool
}

// NewTableKeyedDiff creates a differ binding patches to the given
// compatibility id. Tables in excluded are not diffed at all; tables in
// replaced are diffed against an empty base.
func NewTableKeyedDiff(compatId ift.CompatId, excluded, replaced []ot.Tag) *TableKeyedDiff {
	d := &TableKeyedDiff{
		differ:   delta.Brotli{},
		compatId: compatId,
		excluded: make(map[ot.Tag]bool),
		replaced: make(map[ot.Tag]bool),
	}
	for _, tag := range excluded {
		d.excluded[tag] = true
	}
	for _, tag := range replaced {
		d.replaced[tag] = true
	}
	return d
}

// Diff produces a table-keyed patch transforming fontBase into
// fontDerived.
func (d *TableKeyedDiff) Diff(fontBase, fontDerived []byte) ([]byte, error) {
	base, err := ot.ParseFont(fontBase, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: base font: %v", ift.ErrResource, err)
	}
	derived, err := ot.ParseFont(fontDerived, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: derived font: %v", ift.ErrResource, err)
	}

	tags := d.tagsToDiff(base, derived)

	type subPatch struct {
		flags   byte
		maxLen  uint32
		payload []byte
	}
	patches := make(map[ot.Tag]subPatch, len(tags))

	for _, tag := range tags {
		inBase := base.HasTable(tag)
		inDerived := derived.HasTable(tag)

		if inBase && !inDerived {
			patches[tag] = subPatch{flags: tableFlagRemove}
			continue
		}
		if !inDerived {
			continue
		}

		var baseTable []byte
		flags := byte(0)
		if d.replaced[tag] {
			flags = tableFlagReplace
		} else if inBase {
			baseTable, err = base.TableData(tag)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
			}
		}

		derivedTable, err := derived.TableData(tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
		}

		payload, err := d.differ.Diff(baseTable, derivedTable)
		if err != nil {
			return nil, fmt.Errorf("%w: diffing %s: %v", ift.ErrResource, tag, err)
		}

		patches[tag] = subPatch{
			flags:   flags,
			maxLen:  uint32(len(derivedTable)),
			payload: payload,
		}
	}

	// Drop tags that produced nothing (absent on both relevant sides).
	emit := tags[:0]
	for _, tag := range tags {
		if _, ok := patches[tag]; ok {
			emit = append(emit, tag)
		}
	}

	w := ot.NewWriter()
	w.Tag(TagTableKeyed)
	w.U32(0) // reserved
	d.compatId.WriteTo(w)
	if err := w.U16(uint32(len(emit))); err != nil {
		return nil, fmt.Errorf("%w: too many tables (%d)", ift.ErrFormat, len(emit))
	}

	// Offsets to each sub-patch plus the end offset.
	offset := uint32(w.Len() + (len(emit)+1)*4)
	for _, tag := range emit {
		w.U32(offset)
		offset += 4 + 1 + 4 // tag + flags + max length
		offset += uint32(len(patches[tag].payload))
	}
	w.U32(offset)

	for _, tag := range emit {
		sp := patches[tag]
		w.Tag(tag)
		w.U8(uint32(sp.flags))
		w.U32(sp.maxLen) // zero for removals
		w.Raw(sp.payload)
	}

	return w.Bytes(), nil
}

// tagsToDiff returns the union of both fonts' table tags, minus excluded
// ones, sorted lexicographically.
func (d *TableKeyedDiff) tagsToDiff(base, derived *ot.Font) []ot.Tag {
	seen := make(map[ot.Tag]bool)
	for _, tag := range base.Tags() {
		seen[tag] = true
	}
	for _, tag := range derived.Tags() {
		seen[tag] = true
	}

	tags := make([]ot.Tag, 0, len(seen))
	for tag := range seen {
		if !d.excluded[tag] {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// TableKeyedPatch is a decoded table-keyed patch.
type TableKeyedPatch struct {
	CompatId ift.CompatId
	Tables   []TablePatch
}

// TablePatch is one per-table sub-patch.
type TablePatch struct {
	Tag     ot.Tag
	Replace bool
	Remove  bool
	MaxLen  uint32
	Payload []byte
}

// ParseTableKeyedPatch decodes a table-keyed patch blob.
func ParseTableKeyedPatch(data []byte) (*TableKeyedPatch, error) {
	p := ot.NewParser(data)

	tag, err := p.Tag()
	if err != nil || tag != TagTableKeyed {
		return nil, fmt.Errorf("%w: bad table-keyed patch tag", ift.ErrFormat)
	}
	reserved, err := p.U32()
	if err != nil || reserved != 0 {
		return nil, fmt.Errorf("%w: reserved field is not zero", ift.ErrFormat)
	}
	compatId, err := ift.ReadCompatId(p)
	if err != nil {
		return nil, err
	}

	count, err := p.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated patch header", ift.ErrFormat)
	}
	offsets := make([]uint32, int(count)+1)
	for i := range offsets {
		offsets[i], err = p.U32()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated offset array", ift.ErrFormat)
		}
	}

	out := &TableKeyedPatch{CompatId: compatId}
	for i := 0; i < int(count); i++ {
		if offsets[i] > offsets[i+1] || int(offsets[i+1]) > len(data) {
			return nil, fmt.Errorf("%w: sub-patch offsets out of order", ift.ErrFormat)
		}
		sp, err := p.SubParser(int(offsets[i]), int(offsets[i+1]-offsets[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ift.ErrFormat, err)
		}

		var tp TablePatch
		tableTag, err := sp.Tag()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated sub-patch", ift.ErrFormat)
		}
		tp.Tag = tableTag
		flags, err := sp.U8()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated sub-patch", ift.ErrFormat)
		}
		if flags&^byte(tableFlagReplace|tableFlagRemove) != 0 {
			return nil, fmt.Errorf("%w: unknown sub-patch flags %#x", ift.ErrFormat, flags)
		}
		tp.Replace = flags&tableFlagReplace != 0
		tp.Remove = flags&tableFlagRemove != 0

		tp.MaxLen, err = sp.U32()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated sub-patch", ift.ErrFormat)
		}
		if !tp.Remove {
			tp.Payload, _ = sp.Bytes(sp.Remaining())
		}

		out.Tables = append(out.Tables, tp)
	}

	return out, nil
}
