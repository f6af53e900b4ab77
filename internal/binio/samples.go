package binio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleType names the encoding of one real sample in a payload.
type SampleType uint8

const (
	Int16 SampleType = iota
	Int32
	Float32
	Float64
)

// Size returns the width of one sample in bytes.
func (t SampleType) Size() int {
	switch t {
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func (t SampleType) String() string {
	switch t {
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("SampleType(%d)", uint8(t))
}

// Decode converts a whole buffer of samples to float64. Trailing bytes that
// do not form a complete sample are ignored.
func Decode(b []byte, t SampleType, order binary.ByteOrder) []float64 {
	size := t.Size()
	if size == 0 {
		return nil
	}
	n := len(b) / size
	out := make([]float64, n)
	switch t {
	case Int16:
		for i := range out {
			out[i] = float64(int16(order.Uint16(b[i*2:])))
		}
	case Int32:
		for i := range out {
			out[i] = float64(int32(order.Uint32(b[i*4:])))
		}
	case Float32:
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(b[i*4:])))
		}
	case Float64:
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
		}
	}
	return out
}

// DecodeN decodes exactly n samples starting at byte offset off.
func DecodeN(b []byte, off, n int, t SampleType, order binary.ByteOrder) ([]float64, error) {
	size, _ := Product(n, t.Size())
	end := Sum(off, size)
	if off < 0 || n < 0 || t.Size() == 0 || end > len(b) {
		return nil, fmt.Errorf("need %d samples of %s at offset %d, have %d bytes", n, t, off, len(b))
	}
	return Decode(b[off:end], t, order), nil
}

// Product multiplies sizes read from file headers. The result saturates at
// math.MaxInt instead of wrapping, so it can be compared against a payload
// length directly. ok is false when any factor is negative.
func Product(factors ...int) (n int, ok bool) {
	n = 1
	for _, f := range factors {
		if f < 0 {
			return 0, false
		}
	}
	for _, f := range factors {
		if f == 0 {
			return 0, true
		}
	}
	for _, f := range factors {
		if n > math.MaxInt/f {
			return math.MaxInt, true
		}
		n *= f
	}
	return n, true
}

// Sum adds non-negative sizes, saturating at math.MaxInt. Negative terms
// are treated as math.MaxInt so they never pass a bounds check.
func Sum(terms ...int) int {
	n := 0
	for _, v := range terms {
		if v < 0 || n > math.MaxInt-v {
			return math.MaxInt
		}
		n += v
	}
	return n
}

// Encode writes float64 values as samples of type t.
func Encode(vals []float64, t SampleType, order binary.ByteOrder) []byte {
	size := t.Size()
	out := make([]byte, len(vals)*size)
	for i, v := range vals {
		switch t {
		case Int16:
			order.PutUint16(out[i*2:], uint16(int16(v)))
		case Int32:
			order.PutUint32(out[i*4:], uint32(int32(v)))
		case Float32:
			order.PutUint32(out[i*4:], math.Float32bits(float32(v)))
		case Float64:
			order.PutUint64(out[i*8:], math.Float64bits(v))
		}
	}
	return out
}
