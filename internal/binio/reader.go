// Package binio provides bounds-checked decoding of vendor binary headers
// and bulk sample payloads.
package binio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader decodes fixed-width values from an in-memory buffer at a moving
// offset. Every read is bounds-checked and fails with io.ErrUnexpectedEOF.
type Reader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	return &Reader{buf: buf, order: order}
}

// SetOrder switches byte order for subsequent reads.
func (r *Reader) SetOrder(order binary.ByteOrder) { r.order = order }

func (r *Reader) Order() binary.ByteOrder { return r.order }

func (r *Reader) Offset() int { return r.off }

func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Seek moves to an absolute offset.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.buf) {
		return fmt.Errorf("seek to %d outside %d-byte buffer: %w", off, len(r.buf), io.ErrUnexpectedEOF)
	}
	r.off = off
	return nil
}

// Skip advances by n bytes.
func (r *Reader) Skip(n int) error { return r.Seek(Sum(r.off, n)) }

// ReadN returns the next n bytes without copying.
func (r *Reader) ReadN(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid read length %d", n)
	}
	if n > len(r.buf)-r.off {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.ReadN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.ReadN(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.ReadN(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.ReadN(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) F32() (float32, error) {
	u, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

func (r *Reader) F64() (float64, error) {
	u, err := r.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// Uint reads an unsigned integer of the given width (1, 2, 4 or 8 bytes).
func (r *Reader) Uint(width int) (uint64, error) {
	switch width {
	case 1:
		v, err := r.U8()
		return uint64(v), err
	case 2:
		v, err := r.U16()
		return uint64(v), err
	case 4:
		v, err := r.U32()
		return uint64(v), err
	case 8:
		return r.U64()
	}
	return 0, fmt.Errorf("unsupported integer width %d", width)
}

// String reads n bytes and trims trailing NUL and space padding.
func (r *Reader) String(n int) (string, error) {
	b, err := r.ReadN(n)
	if err != nil {
		return "", err
	}
	return TrimPadding(b), nil
}

// TrimPadding strips trailing NUL and space bytes.
func TrimPadding(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}
