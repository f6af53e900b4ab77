package h5_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/samcharles93/specio/internal/h5"
	"github.com/samcharles93/specio/internal/h5/h5test"
)

func sample() *h5test.Group {
	target := &h5test.Dataset{Type: h5test.Float64, Dims: []uint64{3, 1}, Data: []float64{7, 8, 9}}
	return &h5test.Group{
		Members: []h5test.Member{
			{Name: "#refs#", Node: &h5test.Group{Members: []h5test.Member{{Name: "a", Node: target}}}},
			{Name: "spectrum", Node: &h5test.Group{
				Attrs: []h5test.Attr{{Name: "MATLAB_class", Value: "struct"}},
				Members: []h5test.Member{
					{Name: "sw", Node: &h5test.Dataset{Type: h5test.Float64, Dims: []uint64{2, 1}, Data: []float64{1000, 250}}},
					{Name: "data", Node: &h5test.Dataset{Type: h5test.Complex128, Dims: []uint64{2}, Data: []float64{1, -2, 3, -4}}},
					{Name: "name", Node: &h5test.Dataset{
						Type:  h5test.Uint16,
						Dims:  []uint64{2, 1},
						Data:  []float64{'h', 'i'},
						Attrs: []h5test.Attr{{Name: "MATLAB_class", Value: "char"}},
					}},
					{Name: "axes", Node: &h5test.Dataset{Type: h5test.Reference, Dims: []uint64{1, 1}, Refs: []h5test.Node{target}}},
					{Name: "big", Node: &h5test.Dataset{Type: h5test.Float64, Dims: []uint64{2, 3}, Data: []float64{0, 1, 2, 3, 4, 5}, Chunked: true}},
				},
			}},
		},
	}
}

func TestReadGroupsAndDatasets(t *testing.T) {
	t.Parallel()

	f, err := h5.Open(h5test.Build(sample(), []byte("MATLAB 7.3 MAT-file")))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	root, err := f.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	links, err := root.Links()
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 2 || links[0].Name != "#refs#" || links[1].Name != "spectrum" {
		t.Fatalf("links: got %+v", links)
	}

	s, err := root.Child("spectrum")
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if !s.IsGroup() || s.IsDataset() {
		t.Fatalf("spectrum should be a group")
	}
	if got := s.AttrString("MATLAB_class"); got != "struct" {
		t.Fatalf("MATLAB_class: got %q", got)
	}

	sw, err := s.Child("sw")
	if err != nil {
		t.Fatalf("sw: %v", err)
	}
	v, err := sw.Read()
	if err != nil {
		t.Fatalf("read sw: %v", err)
	}
	if !reflect.DeepEqual(v.Real, []float64{1000, 250}) || !reflect.DeepEqual(v.Dims, []uint64{2, 1}) {
		t.Fatalf("sw: got %+v", v)
	}

	data, err := s.Lookup("data")
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	v, err = data.Read()
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if v.Kind != h5.KindComplex || !reflect.DeepEqual(v.Real, []float64{1, 3}) || !reflect.DeepEqual(v.Imag, []float64{-2, -4}) {
		t.Fatalf("data: got %+v", v)
	}

	name, _ := s.Child("name")
	v, err = name.Read()
	if err != nil || !reflect.DeepEqual(v.Real, []float64{'h', 'i'}) {
		t.Fatalf("name: got %+v, %v", v, err)
	}
	if name.AttrString("MATLAB_class") != "char" {
		t.Fatalf("name class missing")
	}

	axes, _ := s.Child("axes")
	v, err = axes.Read()
	if err != nil || v.Kind != h5.KindReference || len(v.Refs) != 1 {
		t.Fatalf("axes: got %+v, %v", v, err)
	}
	target, err := f.Object(v.Refs[0])
	if err != nil {
		t.Fatalf("deref: %v", err)
	}
	v, err = target.Read()
	if err != nil || !reflect.DeepEqual(v.Real, []float64{7, 8, 9}) {
		t.Fatalf("target: got %+v, %v", v, err)
	}

	big, _ := s.Child("big")
	v, err = big.Read()
	if err != nil || !reflect.DeepEqual(v.Real, []float64{0, 1, 2, 3, 4, 5}) {
		t.Fatalf("chunked: got %+v, %v", v, err)
	}
}

func TestLinkMessageGroup(t *testing.T) {
	t.Parallel()

	g := &h5test.Group{
		Links: true,
		Members: []h5test.Member{
			{Name: "x", Node: &h5test.Dataset{Type: h5test.Uint8, Dims: []uint64{2}, Data: []float64{1, 255}}},
		},
	}
	f, err := h5.Open(h5test.Build(g, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	root, _ := f.Root()
	x, err := root.Lookup("/x")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	v, err := x.Read()
	if err != nil || !reflect.DeepEqual(v.Real, []float64{1, 255}) {
		t.Fatalf("x: got %+v, %v", v, err)
	}
	if _, err := root.Child("y"); !errors.Is(err, h5.ErrNotFound) {
		t.Fatalf("missing child: got %v", err)
	}
	if _, err := x.Attr("MATLAB_class"); !errors.Is(err, h5.ErrNotFound) {
		t.Fatalf("missing attribute: got %v", err)
	}
}

func TestOpenRejectsOtherFiles(t *testing.T) {
	t.Parallel()

	if _, err := h5.Open([]byte("MATLAB 5.0 MAT-file")); !errors.Is(err, h5.ErrNotHDF5) {
		t.Fatalf("got %v", err)
	}
}
