package binio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReaderBoundsAndOrder(t *testing.T) {
	t.Parallel()

	buf := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 'a', 'b', 0, 0}
	r := NewReader(buf, binary.BigEndian)
	v16, err := r.U16()
	if err != nil || v16 != 1 {
		t.Fatalf("U16: got %d, %v", v16, err)
	}
	v32, err := r.I32()
	if err != nil || v32 != 2 {
		t.Fatalf("I32: got %d, %v", v32, err)
	}
	s, err := r.String(4)
	if err != nil || s != "ab" {
		t.Fatalf("String: got %q, %v", s, err)
	}
	if _, err := r.U8(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected EOF, got %v", err)
	}

	r.SetOrder(binary.LittleEndian)
	if err := r.Seek(0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if v, _ := r.U16(); v != 0x0100 {
		t.Fatalf("little-endian U16: got %#x", v)
	}
	if err := r.Seek(11); err == nil {
		t.Fatalf("seek past end should fail")
	}
	if _, err := r.ReadN(math.MaxInt); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("huge ReadN: got %v", err)
	}
	if err := r.Skip(math.MaxInt); err == nil {
		t.Fatalf("huge Skip should fail")
	}
}

func TestDecodeEncode(t *testing.T) {
	t.Parallel()

	vals := []float64{1, -2, 3.5}
	for _, typ := range []SampleType{Float32, Float64} {
		got := Decode(Encode(vals, typ, binary.LittleEndian), typ, binary.LittleEndian)
		if !reflect.DeepEqual(got, vals) {
			t.Fatalf("%s: got %v want %v", typ, got, vals)
		}
	}
	ints := []float64{1, -2, 300}
	for _, typ := range []SampleType{Int16, Int32} {
		got := Decode(Encode(ints, typ, binary.BigEndian), typ, binary.BigEndian)
		if !reflect.DeepEqual(got, ints) {
			t.Fatalf("%s: got %v want %v", typ, got, ints)
		}
	}
	if _, err := DecodeN(make([]byte, 7), 0, 2, Float32, binary.BigEndian); err == nil {
		t.Fatalf("short DecodeN should fail")
	}
}

func TestDecodeNRejectsBadCounts(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 64)
	tests := []struct {
		name   string
		off, n int
	}{
		{"negative count", 0, -1},
		{"negative offset", -4, 1},
		{"count overflows", 0, math.MaxInt/2 + 1},
		{"end overflows", math.MaxInt - 2, 1},
		{"past end", 60, 2},
	}
	for _, tc := range tests {
		if _, err := DecodeN(buf, tc.off, tc.n, Float32, binary.LittleEndian); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if got, err := DecodeN(buf, 60, 1, Float32, binary.LittleEndian); err != nil || len(got) != 1 {
		t.Fatalf("last sample: got %v, %v", got, err)
	}
}

func TestProductAndSum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		factors []int
		want    int
		ok      bool
	}{
		{[]int{2, 3, 4}, 24, true},
		{nil, 1, true},
		{[]int{0, math.MaxInt}, 0, true},
		{[]int{0x7fffffff, 0x7fffffff, 0x7fffffff}, math.MaxInt, true},
		{[]int{4, -1}, 0, false},
	}
	for _, tc := range tests {
		got, ok := Product(tc.factors...)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Product(%v): got %d, %v want %d, %v", tc.factors, got, ok, tc.want, tc.ok)
		}
	}
	if got := Sum(1, 2, 3); got != 6 {
		t.Fatalf("Sum: got %d want 6", got)
	}
	if got := Sum(math.MaxInt, 1); got != math.MaxInt {
		t.Fatalf("Sum overflow: got %d", got)
	}
	if got := Sum(4, -1); got != math.MaxInt {
		t.Fatalf("Sum negative: got %d", got)
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fid")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := Map(path)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !reflect.DeepEqual(f.Bytes(), []byte{1, 2, 3}) {
		t.Fatalf("contents: got %v", f.Data)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if f.Data != nil {
		t.Fatalf("close should drop data")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ef, err := Map(empty)
	if err != nil || len(ef.Data) != 0 {
		t.Fatalf("empty map: %v", err)
	}
}
