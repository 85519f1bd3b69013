package ot

import (
	"encoding/binary"
	"errors"
	"sort"
)

// ErrNoTables is returned when building a font with no tables.
var ErrNoTables = errors.New("no tables to build")

// FontBuilder assembles a font binary from a set of tables. Output is
// deterministic: table records and table data are laid out in ascending tag
// order, each table padded to a 4-byte boundary, and head.checksumAdjustment
// is recomputed.
type FontBuilder struct {
	tables map[Tag][]byte
}

// NewFontBuilder creates a new FontBuilder.
func NewFontBuilder() *FontBuilder {
	return &FontBuilder{
		tables: make(map[Tag][]byte),
	}
}

// NewFontBuilderFrom creates a builder pre-populated with every table of an
// existing font.
func NewFontBuilderFrom(font *Font) (*FontBuilder, error) {
	b := NewFontBuilder()
	for _, tag := range font.Tags() {
		data, err := font.TableData(tag)
		if err != nil {
			return nil, err
		}
		b.AddTable(tag, data)
	}
	return b, nil
}

// AddTable adds or replaces a table in the font.
func (b *FontBuilder) AddTable(tag Tag, data []byte) {
	b.tables[tag] = data
}

// RemoveTable removes a table if present.
func (b *FontBuilder) RemoveTable(tag Tag) {
	delete(b.tables, tag)
}

// HasTable returns true if the table exists.
func (b *FontBuilder) HasTable(tag Tag) bool {
	_, ok := b.tables[tag]
	return ok
}

// Build produces the final font binary.
func (b *FontBuilder) Build() ([]byte, error) {
	if len(b.tables) == 0 {
		return nil, ErrNoTables
	}

	tags := make([]Tag, 0, len(b.tables))
	for tag := range b.tables {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	numTables := len(tags)
	searchRange, entrySelector, rangeShift := calcSearchParams(numTables)

	// Offset table: 12 bytes; table records: 16 bytes each.
	headerSize := 12 + numTables*16

	dataSize := 0
	for _, tag := range tags {
		tableLen := len(b.tables[tag])
		dataSize += tableLen
		if tableLen%4 != 0 {
			dataSize += 4 - (tableLen % 4)
		}
	}

	out := make([]byte, headerSize+dataSize)

	sfntVersion := uint32(0x00010000)
	if _, ok := b.tables[TagCFF]; ok {
		sfntVersion = 0x4F54544F // OTTO
	} else if _, ok := b.tables[TagCFF2]; ok {
		sfntVersion = 0x4F54544F
	}

	binary.BigEndian.PutUint32(out[0:], sfntVersion)
	binary.BigEndian.PutUint16(out[4:], uint16(numTables))
	binary.BigEndian.PutUint16(out[6:], searchRange)
	binary.BigEndian.PutUint16(out[8:], entrySelector)
	binary.BigEndian.PutUint16(out[10:], rangeShift)

	offset := headerSize
	recordOff := 12
	headOffset := -1

	for _, tag := range tags {
		data := b.tables[tag]

		sum := calcChecksum(data)
		if tag == TagHead && len(data) >= 12 {
			// The head checksum is taken with checksumAdjustment zeroed.
			sum -= binary.BigEndian.Uint32(data[8:])
			headOffset = offset
		}

		binary.BigEndian.PutUint32(out[recordOff:], uint32(tag))
		binary.BigEndian.PutUint32(out[recordOff+4:], sum)
		binary.BigEndian.PutUint32(out[recordOff+8:], uint32(offset))
		binary.BigEndian.PutUint32(out[recordOff+12:], uint32(len(data)))
		recordOff += 16

		copy(out[offset:], data)
		offset += len(data)
		for offset%4 != 0 {
			out[offset] = 0
			offset++
		}
	}

	if headOffset >= 0 {
		// Zero checksumAdjustment, checksum the whole font, then set
		// adjustment = 0xB1B0AFBA - checksum.
		binary.BigEndian.PutUint32(out[headOffset+8:], 0)
		fontChecksum := calcChecksum(out)
		binary.BigEndian.PutUint32(out[headOffset+8:], 0xB1B0AFBA-fontChecksum)
	}

	return out, nil
}

// calcSearchParams calculates the search range parameters for the offset table.
func calcSearchParams(numTables int) (searchRange, entrySelector, rangeShift uint16) {
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

// calcChecksum calculates the OpenType table checksum.
func calcChecksum(data []byte) uint32 {
	var sum uint32
	length := len(data)
	for i := 0; i+4 <= length; i += 4 {
		sum += binary.BigEndian.Uint32(data[i:])
	}
	remaining := length % 4
	if remaining > 0 {
		var last uint32
		offset := length - remaining
		for i := 0; i < remaining; i++ {
			last |= uint32(data[offset+i]) << (24 - i*8)
		}
		sum += last
	}
	return sum
}
