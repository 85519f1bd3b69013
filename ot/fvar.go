package ot

import (
	"encoding/binary"
)

// Registered variation axis tags.
var (
	TagAxisWeight      = MakeTag('w', 'g', 'h', 't')
	TagAxisWidth       = MakeTag('w', 'd', 't', 'h')
	TagAxisSlant       = MakeTag('s', 'l', 'n', 't')
	TagAxisItalic      = MakeTag('i', 't', 'a', 'l')
	TagAxisOpticalSize = MakeTag('o', 'p', 's', 'z')
)

// AxisFlags for variation axes.
type AxisFlags uint16

const (
	// AxisFlagHidden indicates the axis should not be exposed in user interfaces.
	AxisFlagHidden AxisFlags = 0x0001
)

// AxisInfo describes a variation axis.
type AxisInfo struct {
	Index        int
	Tag          Tag
	NameID       uint16
	Flags        AxisFlags
	MinValue     float32
	DefaultValue float32
	MaxValue     float32
}

// Fvar represents a parsed fvar (Font Variations) table.
type Fvar struct {
	data          []byte
	axisCount     int
	instanceCount int
	axisOffset    int
	instanceSize  int
}

// ParseFvar parses an fvar table.
func ParseFvar(data []byte) (*Fvar, error) {
	if len(data) < 16 {
		return nil, ErrInvalidTable
	}

	major := binary.BigEndian.Uint16(data[0:])
	minor := binary.BigEndian.Uint16(data[2:])
	if major != 1 || minor != 0 {
		return nil, ErrInvalidFormat
	}

	axisOffset := int(binary.BigEndian.Uint16(data[4:]))
	axisCount := int(binary.BigEndian.Uint16(data[8:]))
	axisSize := int(binary.BigEndian.Uint16(data[10:]))
	instanceCount := int(binary.BigEndian.Uint16(data[12:]))
	instanceSize := int(binary.BigEndian.Uint16(data[14:]))

	if axisSize != 20 {
		return nil, ErrInvalidFormat
	}

	axesEnd := axisOffset + axisCount*20
	instancesEnd := axesEnd + instanceCount*instanceSize
	if instancesEnd > len(data) {
		return nil, ErrInvalidOffset
	}

	return &Fvar{
		data:          data,
		axisCount:     axisCount,
		instanceCount: instanceCount,
		axisOffset:    axisOffset,
		instanceSize:  instanceSize,
	}, nil
}

// HasData returns true if the fvar table has variation data.
func (f *Fvar) HasData() bool {
	return f != nil && f.axisCount > 0
}

// AxisCount returns the number of variation axes.
func (f *Fvar) AxisCount() int {
	if f == nil {
		return 0
	}
	return f.axisCount
}

// AxisInfos returns descriptions of all variation axes.
func (f *Fvar) AxisInfos() []AxisInfo {
	axes := make([]AxisInfo, f.axisCount)
	for i := 0; i < f.axisCount; i++ {
		off := f.axisOffset + i*20
		axes[i] = AxisInfo{
			Index:        i,
			Tag:          Tag(binary.BigEndian.Uint32(f.data[off:])),
			MinValue:     fixedToFloat(int32(binary.BigEndian.Uint32(f.data[off+4:]))),
			DefaultValue: fixedToFloat(int32(binary.BigEndian.Uint32(f.data[off+8:]))),
			MaxValue:     fixedToFloat(int32(binary.BigEndian.Uint32(f.data[off+12:]))),
			Flags:        AxisFlags(binary.BigEndian.Uint16(f.data[off+16:])),
			NameID:       binary.BigEndian.Uint16(f.data[off+18:]),
		}
	}
	return axes
}

// FindAxis returns the axis with the given tag.
func (f *Fvar) FindAxis(tag Tag) (AxisInfo, bool) {
	for _, axis := range f.AxisInfos() {
		if axis.Tag == tag {
			return axis, true
		}
	}
	return AxisInfo{}, false
}

// ClampAxes returns a copy of the fvar table with each listed axis's
// min/max clamped to the given range. The default value is moved to the
// nearest bound when it falls outside the new range. Axes not listed are
// left untouched.
func (f *Fvar) ClampAxes(ranges map[Tag][2]float32) []byte {
	out := make([]byte, len(f.data))
	copy(out, f.data)

	for i := 0; i < f.axisCount; i++ {
		off := f.axisOffset + i*20
		tag := Tag(binary.BigEndian.Uint32(out[off:]))
		r, ok := ranges[tag]
		if !ok {
			continue
		}

		min := fixedToFloat(int32(binary.BigEndian.Uint32(out[off+4:])))
		def := fixedToFloat(int32(binary.BigEndian.Uint32(out[off+8:])))
		max := fixedToFloat(int32(binary.BigEndian.Uint32(out[off+12:])))

		if r[0] > min {
			min = r[0]
		}
		if r[1] < max {
			max = r[1]
		}
		if max < min {
			max = min
		}
		if def < min {
			def = min
		}
		if def > max {
			def = max
		}

		binary.BigEndian.PutUint32(out[off+4:], uint32(floatToFixed(min)))
		binary.BigEndian.PutUint32(out[off+8:], uint32(floatToFixed(def)))
		binary.BigEndian.PutUint32(out[off+12:], uint32(floatToFixed(max)))
	}

	return out
}

// ParseFvarFromFont parses the fvar table from a font.
func ParseFvarFromFont(font *Font) (*Fvar, error) {
	data, err := font.TableData(TagFvar)
	if err != nil {
		return nil, err
	}
	return ParseFvar(data)
}

func fixedToFloat(v int32) float32 {
	return float32(v) / 65536
}

func floatToFixed(v float32) int32 {
	if v >= 0 {
		return int32(v*65536 + 0.5)
	}
	return int32(v*65536 - 0.5)
}
