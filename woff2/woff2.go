// Package woff2 encodes and decodes untransformed WOFF2 containers. It
// exists to round-trip the encoder's root initial font so that the base
// for patching is a decoded WOFF2 file with a stable table order; glyf and
// loca are always stored with the null transform.
package woff2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/andybalholm/brotli"

	"github.com/boxesandglue/ift/ot"
)

var (
	// ErrInvalid is returned for data that is not a WOFF2 container.
	ErrInvalid = errors.New("woff2: invalid data")
)

const (
	signature   = 0x774F4632 // 'wOF2'
	headerSize  = 48
	arbitraryTag = 0x3F
)

// knownTags is the WOFF2 known table tag list; a table's position is its
// directory flag value.
var knownTags = []string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

func knownTagIndex(tag ot.Tag) int {
	s := tag.String()
	for i, k := range knownTags {
		if k == s {
			return i
		}
	}
	return arbitraryTag
}

// Encode converts an sfnt binary into a WOFF2 container. Tables are
// stored in their physical order without preprocessing transforms; a true
// allowGlyfTransform is accepted and ignored.
func Encode(font []byte, allowGlyfTransform bool) ([]byte, error) {
	f, err := ot.ParseFont(font, 0)
	if err != nil {
		return nil, fmt.Errorf("woff2: %w", err)
	}

	tags := f.PhysicalOrder()

	// Table directory and uncompressed stream.
	var dir bytes.Buffer
	var stream bytes.Buffer
	totalSfntSize := 12 + 16*len(tags)
	for _, tag := range tags {
		data, err := f.TableData(tag)
		if err != nil {
			return nil, fmt.Errorf("woff2: %w", err)
		}

		flags := byte(knownTagIndex(tag))
		if tag == ot.TagGlyf || tag == ot.TagLoca {
			flags |= 3 << 6 // null transform
		}
		dir.WriteByte(flags)
		if flags&0x3F == arbitraryTag {
			var tagBytes [4]byte
			binary.BigEndian.PutUint32(tagBytes[:], uint32(tag))
			dir.Write(tagBytes[:])
		}
		writeUintBase128(&dir, uint32(len(data)))

		stream.Write(data)
		totalSfntSize += (len(data) + 3) &^ 3
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := bw.Write(stream.Bytes()); err != nil {
		return nil, fmt.Errorf("woff2: compressing: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("woff2: compressing: %w", err)
	}

	flavor := binary.BigEndian.Uint32(font[0:4])
	length := headerSize + dir.Len() + compressed.Len()

	out := make([]byte, 0, length)
	w := ot.NewWriter()
	w.U32(signature)
	w.U32(flavor)
	w.U32(uint32(length))
	w.U16(uint32(len(tags)))
	w.U16(0) // reserved
	w.U32(uint32(totalSfntSize))
	w.U32(uint32(compressed.Len()))
	w.U16(1) // majorVersion
	w.U16(0) // minorVersion
	w.U32(0) // metaOffset
	w.U32(0) // metaLength
	w.U32(0) // metaOrigLength
	w.U32(0) // privOffset
	w.U32(0) // privLength
	out = append(out, w.Bytes()...)
	out = append(out, dir.Bytes()...)
	out = append(out, compressed.Bytes()...)
	return out, nil
}

// Decode converts a WOFF2 container back into an sfnt binary. Table data
// is laid out in directory order; table records are sorted by tag and
// checksums (including head.checksumAdjustment) are recomputed.
func Decode(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, ErrInvalid
	}
	p := ot.NewParser(data)
	sig, _ := p.U32()
	if sig != signature {
		return nil, ErrInvalid
	}
	flavor, _ := p.U32()
	if _, err := p.U32(); err != nil { // length
		return nil, ErrInvalid
	}
	numTables, _ := p.U16()
	p.Skip(2) // reserved
	p.Skip(4) // totalSfntSize
	compressedSize, _ := p.U32()
	if err := p.Skip(24); err != nil { // versions, meta, priv
		return nil, ErrInvalid
	}

	type entry struct {
		tag    ot.Tag
		length uint32
	}
	entries := make([]entry, int(numTables))
	for i := range entries {
		flags, err := p.U8()
		if err != nil {
			return nil, ErrInvalid
		}
		var tag ot.Tag
		if flags&0x3F == arbitraryTag {
			t, err := p.Tag()
			if err != nil {
				return nil, ErrInvalid
			}
			tag = t
		} else {
			tag = ot.TagFromString(knownTags[flags&0x3F])
		}

		origLength, err := readUintBase128(p)
		if err != nil {
			return nil, err
		}

		// A transformed table carries a transform length; only the
		// null transform is supported here.
		transform := (flags >> 6) & 3
		isGlyfLoca := tag == ot.TagGlyf || tag == ot.TagLoca
		if (isGlyfLoca && transform != 3) || (!isGlyfLoca && transform != 0) {
			return nil, fmt.Errorf("%w: unsupported table transform", ErrInvalid)
		}

		entries[i] = entry{tag: tag, length: origLength}
	}

	if p.Remaining() < int(compressedSize) {
		return nil, ErrInvalid
	}
	compressed, _ := p.Bytes(int(compressedSize))

	streamSize := 0
	for _, e := range entries {
		streamSize += int(e.length)
	}
	stream := make([]byte, streamSize)
	br := brotli.NewReader(bytes.NewReader(compressed))
	if _, err := io.ReadFull(br, stream); err != nil {
		return nil, fmt.Errorf("%w: decompressing: %v", ErrInvalid, err)
	}

	// Reassemble the sfnt: data in directory order, records sorted by
	// tag.
	tables := make([]sfntTable, len(entries))
	off := 0
	for i, e := range entries {
		tables[i] = sfntTable{tag: e.tag, data: stream[off : off+int(e.length)]}
		off += int(e.length)
	}

	return buildSfnt(flavor, tables)
}

// RoundTrip encodes then decodes, normalizing the font's layout.
func RoundTrip(font []byte, allowGlyfTransform bool) ([]byte, error) {
	enc, err := Encode(font, allowGlyfTransform)
	if err != nil {
		return nil, err
	}
	return Decode(enc)
}

type sfntTable struct {
	tag  ot.Tag
	data []byte
}

func buildSfnt(flavor uint32, tables []sfntTable) ([]byte, error) {
	numTables := len(tables)
	hdrSize := 12 + numTables*16

	dataSize := 0
	for _, t := range tables {
		dataSize += (len(t.data) + 3) &^ 3
	}
	out := make([]byte, hdrSize+dataSize)

	// Offsets follow directory order.
	offsets := make([]int, numTables)
	off := hdrSize
	for i, t := range tables {
		offsets[i] = off
		copy(out[off:], t.data)
		off += (len(t.data) + 3) &^ 3
	}

	// Records sorted by tag.
	order := make([]int, numTables)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return tables[order[a]].tag < tables[order[b]].tag })

	searchRange, entrySelector, rangeShift := searchParams(numTables)
	binary.BigEndian.PutUint32(out[0:], flavor)
	binary.BigEndian.PutUint16(out[4:], uint16(numTables))
	binary.BigEndian.PutUint16(out[6:], searchRange)
	binary.BigEndian.PutUint16(out[8:], entrySelector)
	binary.BigEndian.PutUint16(out[10:], rangeShift)

	headOffset := -1
	rec := 12
	for _, i := range order {
		t := tables[i]
		sum := checksum(t.data)
		if t.tag == ot.TagHead && len(t.data) >= 12 {
			// The head checksum is taken with checksumAdjustment zeroed.
			sum -= binary.BigEndian.Uint32(t.data[8:])
			headOffset = offsets[i]
		}
		binary.BigEndian.PutUint32(out[rec:], uint32(t.tag))
		binary.BigEndian.PutUint32(out[rec+4:], sum)
		binary.BigEndian.PutUint32(out[rec+8:], uint32(offsets[i]))
		binary.BigEndian.PutUint32(out[rec+12:], uint32(len(t.data)))
		rec += 16
	}

	if headOffset >= 0 {
		binary.BigEndian.PutUint32(out[headOffset+8:], 0)
		binary.BigEndian.PutUint32(out[headOffset+8:], 0xB1B0AFBA-checksum(out))
	}

	return out, nil
}

func searchParams(numTables int) (searchRange, entrySelector, rangeShift uint16) {
	entrySelector = 0
	power := 1
	for power*2 <= numTables {
		power *= 2
		entrySelector++
	}
	searchRange = uint16(power * 16)
	rangeShift = uint16(numTables*16) - searchRange
	return
}

func checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i+4 <= len(data); i += 4 {
		sum += binary.BigEndian.Uint32(data[i:])
	}
	if rem := len(data) % 4; rem > 0 {
		var last uint32
		off := len(data) - rem
		for i := 0; i < rem; i++ {
			last |= uint32(data[off+i]) << (24 - i*8)
		}
		sum += last
	}
	return sum
}
