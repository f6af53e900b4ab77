package matfile

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleStruct() *Array {
	s := NewStruct(
		[]string{"data", "sw", "history", "xaxArray", "note"},
		[]*Array{
			NewDouble([]int{2, 2}, []float64{1, 2, 3, 4}, []float64{-1, -2, -3, -4}),
			NewRow([]float64{1000, 250}),
			NewCharMatrix([]string{"loaded", "ok"}),
			NewCell([]int{1, 2}, []*Array{NewRow([]float64{0, 1}), NewRow([]float64{5})}),
			NewChar("héllo"),
		},
	)
	s.Name = "spectrum"
	return s
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		if err := Write(&buf, []*Array{sampleStruct(), func() *Array { a := NewScalar(3); a.Name = "x"; return a }()}, compress); err != nil {
			t.Fatalf("write (compress=%v): %v", compress, err)
		}
		vars, err := Read(&buf)
		if err != nil {
			t.Fatalf("read (compress=%v): %v", compress, err)
		}
		if len(vars) != 2 || vars[0].Name != "spectrum" || vars[1].Name != "x" {
			t.Fatalf("vars: got %d", len(vars))
		}
		s := vars[0]
		if s.Class != ClassStruct || !reflect.DeepEqual(s.Fields, []string{"data", "sw", "history", "xaxArray", "note"}) {
			t.Fatalf("struct: got %s %v", s.Class, s.Fields)
		}
		data := s.Field("data")
		if !data.IsComplex() || !reflect.DeepEqual(data.Imag, []float64{-1, -2, -3, -4}) || !reflect.DeepEqual(data.Dims, []int{2, 2}) {
			t.Fatalf("data: got %+v", data)
		}
		if got := s.Field("history").Lines(); !reflect.DeepEqual(got, []string{"loaded", "ok"}) {
			t.Fatalf("history: got %q", got)
		}
		cells := s.Field("xaxArray").Cells
		if len(cells) != 2 || !reflect.DeepEqual(cells[1].Real, []float64{5}) {
			t.Fatalf("cells: got %+v", cells)
		}
		if got := s.Field("note").String(); got != "héllo" {
			t.Fatalf("note: got %q", got)
		}
		if vars[1].Real[0] != 3 {
			t.Fatalf("x: got %v", vars[1].Real)
		}
	}
}

func TestWriteFileReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.mat")
	if err := WriteFile(path, []*Array{sampleStruct()}, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	vars, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := vars[0].Field("sw").Real; !reflect.DeepEqual(got, []float64{1000, 250}) {
		t.Fatalf("sw: got %v", got)
	}
}

func TestCharMatrixPadding(t *testing.T) {
	t.Parallel()

	a := NewCharMatrix([]string{"ab", "c"})
	// column-major: a c b ' '
	want := []float64{'a', 'c', 'b', ' '}
	if !reflect.DeepEqual(a.Real, want) || !reflect.DeepEqual(a.Dims, []int{2, 2}) {
		t.Fatalf("got %v %v", a.Real, a.Dims)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte("short")); !errors.Is(err, ErrNotMAT) {
		t.Fatalf("short: got %v", err)
	}
	hdr := make([]byte, headerSize)
	copy(hdr, "MATLAB 7.3 MAT-file, Platform: GLNXA64")
	if _, err := Decode(hdr); !errors.Is(err, ErrHDF5) {
		t.Fatalf("7.3: got %v", err)
	}
	if !IsHDF5Header(hdr) {
		t.Fatalf("7.3 header not detected")
	}
	bad := make([]byte, headerSize)
	copy(bad[126:], "XX")
	if _, err := Decode(bad); !errors.Is(err, ErrNotMAT) {
		t.Fatalf("bad endian: got %v", err)
	}
}

func TestWriteRejectsMismatchedDims(t *testing.T) {
	t.Parallel()

	a := NewDouble([]int{2, 2}, []float64{1}, nil)
	a.Name = "bad"
	if err := Write(&bytes.Buffer{}, []*Array{a}, false); err == nil {
		t.Fatalf("expected error")
	}
}
