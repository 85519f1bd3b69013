package ift

import (
	"strconv"
	"strings"
)

// URL template expansion for patch indices. Supported variables inside a
// {...} token: "id", the patch index encoded in unpadded base32hex over
// its minimal big-endian byte string (so the digit count is always even
// and at least 2), and "d1".."dN", the N-th digit of that encoding
// counting from the end ("_" when the encoding is too short). A leading
// "/" operator prefixes every expanded variable with a slash. Tokens that
// cannot be interpreted pass through unchanged.

const base32hexAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUV"

// PatchIndexDigits returns the base32hex digit string for a patch index.
func PatchIndexDigits(id uint32) string {
	// Minimal big-endian byte string; id 0 is a single zero byte.
	var bytes []byte
	if id == 0 {
		bytes = []byte{0}
	} else {
		for shift := 24; shift >= 0; shift -= 8 {
			b := byte(id >> shift)
			if len(bytes) == 0 && b == 0 {
				continue
			}
			bytes = append(bytes, b)
		}
	}

	// 5-bit groups, MSB first, final group zero-padded.
	var out strings.Builder
	acc := uint32(0)
	bits := 0
	for _, b := range bytes {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out.WriteByte(base32hexAlphabet[(acc>>bits)&0x1F])
		}
	}
	if bits > 0 {
		out.WriteByte(base32hexAlphabet[(acc<<(5-bits))&0x1F])
	}
	return out.String()
}

// ExpandURLTemplate expands a URL template for the given patch index.
func ExpandURLTemplate(template string, id uint32) string {
	var out strings.Builder
	digits := PatchIndexDigits(id)

	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' {
			out.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			out.WriteString(template[i:])
			break
		}
		token := template[i+1 : i+end]
		expanded, ok := expandToken(token, digits)
		if ok {
			out.WriteString(expanded)
		} else {
			out.WriteString(template[i : i+end+1])
		}
		i += end + 1
	}

	return out.String()
}

func expandToken(token, digits string) (string, bool) {
	prefix := ""
	if strings.HasPrefix(token, "/") {
		prefix = "/"
		token = token[1:]
	}

	var out strings.Builder
	for _, name := range strings.Split(token, ",") {
		var value string
		switch {
		case name == "id":
			value = digits
		case len(name) > 1 && name[0] == 'd':
			n, err := strconv.Atoi(name[1:])
			if err != nil || n < 1 {
				return "", false
			}
			if n <= len(digits) {
				value = string(digits[len(digits)-n])
			} else {
				value = "_"
			}
		default:
			return "", false
		}
		out.WriteString(prefix)
		out.WriteString(value)
	}
	return out.String(), true
}
