package woff2

import (
	"bytes"
	"fmt"

	"github.com/boxesandglue/ift/ot"
)

// UIntBase128: a big-endian variable-length encoding of uint32, 7 bits
// per byte with the high bit as continuation flag, no leading zero bytes,
// at most 5 bytes.

func writeUintBase128(buf *bytes.Buffer, v uint32) {
	var tmp [5]byte
	n := 0
	for {
		tmp[n] = byte(v & 0x7F)
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		b := tmp[i]
		if i > 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}

func readUintBase128(p *ot.Parser) (uint32, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		b, err := p.U8()
		if err != nil {
			return 0, ErrInvalid
		}
		if i == 0 && b == 0x80 {
			return 0, fmt.Errorf("%w: leading zero in UIntBase128", ErrInvalid)
		}
		if v > 0x1FFFFFF {
			return 0, fmt.Errorf("%w: UIntBase128 overflow", ErrInvalid)
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: UIntBase128 too long", ErrInvalid)
}
