// Package serialize implements the binary module container format of
// spec.md §6.3: a magic header and version followed by seven
// length-prefixed sections. It is the one place in this module that
// hand-rolls a wire format rather than reaching for an encoding
// library, because the format is a bespoke MSB-first-prefix Varint the
// spec defines byte-for-byte — distinct from both the teacher's
// LEB128-style varint (lang/compiler/asm.go addUint32) and any
// off-the-shelf protobuf-style varint library, so no third-party codec
// in the retrieval pack actually implements it; see DESIGN.md.
package serialize

import (
	"bufio"
	"io"

	"github.com/mna/bfcore/diag"
)

// WriteVarint writes n as an MSB-first prefix Varint: the first byte's
// leading one-bits (not zero-bits) count the number of additional bytes
// (0-7, or 8 when the first byte is 0xFF), then the value as a big-endian
// payload; 0-127 fits in one byte.
func WriteVarint(w *bufio.Writer, n uint64) error {
	switch {
	case n < 1<<7:
		return w.WriteByte(byte(n))
	case n < 1<<14:
		return writeN(w, 0x80, 1, n)
	case n < 1<<21:
		return writeN(w, 0xC0, 2, n)
	case n < 1<<28:
		return writeN(w, 0xE0, 3, n)
	case n < 1<<35:
		return writeN(w, 0xF0, 4, n)
	case n < 1<<42:
		return writeN(w, 0xF8, 5, n)
	case n < 1<<49:
		return writeN(w, 0xFC, 6, n)
	case n < 1<<56:
		return writeN(w, 0xFE, 7, n)
	default:
		return writeN(w, 0xFF, 8, n)
	}
}

// writeN writes a prefix byte (with the top bits set per the leading
// one-count convention) OR'd with the high bits of n that fit in its
// remaining low bits, followed by extra big-endian bytes of payload.
func writeN(w *bufio.Writer, prefix byte, extra int, n uint64) error {
	headerBits := 7 - extra
	high := byte(n >> uint(extra*8))
	if err := w.WriteByte(prefix | (high & (1<<uint(headerBits) - 1))); err != nil {
		return err
	}
	for i := extra - 1; i >= 0; i-- {
		if err := w.WriteByte(byte(n >> uint(i*8))); err != nil {
			return err
		}
	}
	return nil
}

// ReadVarint reads one Varint per spec.md §6.3.
func ReadVarint(r *bufio.Reader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	extra := leadingZeros(first)
	if extra == 0 {
		return uint64(first), nil
	}
	headerBits := 7 - extra
	n := uint64(first) & (1<<uint(headerBits) - 1)
	for i := 0; i < extra; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		n = n<<8 | uint64(b)
	}
	return n, nil
}

// leadingZeros counts the leading one bits of an 8-bit Varint prefix
// byte, which is its number of additional bytes (0-7; 8 for the maximal
// form where the whole first byte is 0xFF).
func leadingZeros(b byte) int {
	if b == 0xFF {
		return 8
	}
	n := 0
	for mask := byte(0x80); mask != 0 && b&mask != 0; mask >>= 1 {
		n++
	}
	return n
}

// WriteString writes a length-prefixed UTF-8 string: length Varint then
// raw bytes, the shape shared by the ident/string/metadata table
// entries of spec.md §6.3.
func WriteString(w *bufio.Writer, s string) error {
	if err := WriteVarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// ReadString reads a length-prefixed UTF-8 string.
func ReadString(r *bufio.Reader) (string, error) {
	n, err := ReadVarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	return diag.SerializationFailure(err)
}

func wrapReadErr(err error) error {
	if err == nil {
		return nil
	}
	return diag.SerializationFailure(err)
}
