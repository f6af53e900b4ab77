package spectrum

import (
	"errors"
	"reflect"
	"testing"

	"github.com/samcharles93/specio/pkg/hypercomplex"
)

func TestNewRejectsAxisCountMismatch(t *testing.T) {
	t.Parallel()

	data := hypercomplex.MustPlain([]int{2, 4}, make([]complex128, 8))
	_, err := New(data, []Axis{{SW: 1000}})
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dm.Want != 2 || dm.Got != 1 {
		t.Fatalf("got want=%d got=%d", dm.Want, dm.Got)
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("error should unwrap to ErrDimensionMismatch")
	}
}

func TestNewRejectsCoordinateLength(t *testing.T) {
	t.Parallel()

	data := hypercomplex.MustPlain([]int{3}, make([]complex128, 3))
	_, err := New(data, []Axis{{SW: 1, XAxis: []float64{1, 2}}})
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) || dm.Axis != 0 {
		t.Fatalf("expected axis 0 mismatch, got %v", err)
	}
}

func TestHistoryAndMeta(t *testing.T) {
	t.Parallel()

	data := hypercomplex.MustPlain([]int{1}, []complex128{1})
	s, err := New(data, []Axis{{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.AddHistory("loaded %s", "x")
	s.AddHistory("second")
	if want := []string{"loaded x", "second"}; !reflect.DeepEqual(s.History, want) {
		t.Fatalf("history: got %v want %v", s.History, want)
	}
	s.SetMeta(MetaScans, "16")
	s.SetMeta(MetaSample, "glycine")
	if want := []string{MetaScans, MetaSample}; !reflect.DeepEqual(s.MetaKeys(), want) {
		t.Fatalf("meta keys: got %v want %v", s.MetaKeys(), want)
	}
}

func TestXAxisOrDefault(t *testing.T) {
	t.Parallel()

	data := hypercomplex.MustPlain([]int{4}, make([]complex128, 4))
	s, _ := New(data, []Axis{{SW: 4}})
	if got, want := s.XAxisOrDefault(0), []float64{0, 0.25, 0.5, 0.75}; !reflect.DeepEqual(got, want) {
		t.Fatalf("time axis: got %v want %v", got, want)
	}
	s.Axes[0].Spec = true
	if got, want := s.XAxisOrDefault(0), []float64{-2, -1, 0, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("freq axis: got %v want %v", got, want)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	errs := []error{
		&FileFormatError{Format: "varian", Path: "x", Reason: "missing procpar"},
		&TruncatedDataError{Format: "bruker", Path: "fid", Want: 10, Got: 4},
		&UnsupportedVariantError{Format: "jeol", Path: "a.jdf", Variant: "3D"},
	}
	for _, err := range errs {
		if !errors.Is(err, ErrSampleData) {
			t.Fatalf("%T should unwrap to ErrSampleData", err)
		}
	}
	if !errors.Is(&SchemaError{Container: "json", Field: "freq"}, ErrSchema) {
		t.Fatalf("SchemaError should unwrap to ErrSchema")
	}
}
