package serial

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/samcharles93/specio/internal/h5"
	"github.com/samcharles93/specio/internal/matfile"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// MATVariable is the variable name SaveMAT stores the spectrum under.
const MATVariable = "spectrum"

// SaveMAT writes s to path as a level 5 MAT-file holding one struct.
func SaveMAT(path string, s *spectrum.Spectrum, compress bool) error {
	v, err := EncodeMAT(s)
	if err != nil {
		return err
	}
	return matfile.WriteFile(path, []*matfile.Array{v}, compress)
}

// EncodeMAT converts s to the struct SaveMAT writes.
func EncodeMAT(s *spectrum.Spectrum) (*matfile.Array, error) {
	r := flatten(s)
	ncomp := len(r.masks)
	dims := append([]int{ncomp}, r.shape...)
	re := columnMajor(r.re, dims)
	im := columnMajor(r.im, dims)

	hyper := make([]float64, ncomp)
	for i, m := range r.masks {
		hyper[i] = float64(m)
	}
	xax := make([]*matfile.Array, len(r.xax))
	for i, x := range r.xax {
		xax[i] = matfile.NewRow(x)
	}
	keys := s.MetaKeys()
	values := make([]*matfile.Array, len(keys))
	for i, k := range keys {
		values[i] = matfile.NewChar(r.meta[k])
	}
	names, renamed := matFieldNames(keys)

	fields := []string{"dim", "data", "hyper", "freq", "sw", "spec", "wholeEcho", "ref", "history", "xaxArray", "metaData"}
	vals := []*matfile.Array{
		matfile.NewScalar(float64(len(r.shape))),
		matfile.NewDouble(dims, re, im),
		matfile.NewRow(hyper),
		matfile.NewRow(r.freq),
		matfile.NewRow(r.sw),
		matfile.NewRow(boolFloats(r.spec)),
		matfile.NewRow(boolFloats(r.wholeEcho)),
		matfile.NewRow(r.ref),
		matfile.NewCharMatrix(r.history),
		matfile.NewCell([]int{1, len(xax)}, xax),
		matfile.NewStruct(names, values),
	}
	if renamed {
		// original keys of shortened field names
		cells := make([]*matfile.Array, len(keys))
		for i, k := range keys {
			cells[i] = matfile.NewChar(k)
		}
		fields = append(fields, "metaNames")
		vals = append(vals, matfile.NewCell([]int{1, len(cells)}, cells))
	}
	if r.dFilter != nil {
		fields = append(fields, "dFilter")
		vals = append(vals, matfile.NewScalar(*r.dFilter))
	}
	st := matfile.NewStruct(fields, vals)
	st.Name = MATVariable
	return st, nil
}

// LoadMAT reads a MAT-file holding a spectrum struct. Version 7.3 files
// are read through the HDF5 reader.
func LoadMAT(path string) (*spectrum.Spectrum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeMAT(b, path)
}

// DecodeMAT parses an in-memory MAT-file of either generation.
func DecodeMAT(b []byte, path string) (*spectrum.Spectrum, error) {
	var root *matfile.Array
	vars, err := matfile.Decode(b)
	switch {
	case errors.Is(err, matfile.ErrHDF5):
		if root, err = readHDF5Struct(b); err != nil {
			return nil, &spectrum.FileFormatError{Format: ContainerMAT, Path: path, Reason: "malformed v7.3 file", Err: err}
		}
	case err != nil:
		return nil, &spectrum.FileFormatError{Format: ContainerMAT, Path: path, Reason: "malformed", Err: err}
	default:
		for _, v := range vars {
			if v.Class == matfile.ClassStruct {
				root = v
				break
			}
		}
	}
	if root == nil {
		return nil, schemaMissing(ContainerMAT, MATVariable)
	}
	r, err := decodeStruct(root)
	if err != nil {
		return nil, err
	}
	return r.build(ContainerMAT, path)
}

func decodeStruct(st *matfile.Array) (*record, error) {
	for _, key := range []string{"data", "freq", "sw", "spec", "ref"} {
		if st.Field(key) == nil {
			return nil, schemaMissing(ContainerMAT, key)
		}
	}
	r := &record{
		freq: st.Field("freq").Real,
		sw:   st.Field("sw").Real,
		ref:  st.Field("ref").Real,
		spec: positive(st.Field("spec").Real),
	}
	if we := st.Field("wholeEcho"); we != nil {
		r.wholeEcho = positive(we.Real)
	}
	ndim := len(r.freq)
	if dim := st.Field("dim"); dim != nil && len(dim.Real) == 1 {
		ndim = int(dim.Real[0])
	}
	if ndim < 1 {
		return nil, schemaBad(ContainerMAT, "dim", "%d dimensions", ndim)
	}

	data := st.Field("data")
	if !data.Class.Numeric() {
		return nil, schemaBad(ContainerMAT, "data", "class %s", data.Class)
	}
	im := data.Imag
	if im == nil {
		im = make([]float64, len(data.Real))
	}
	if h := st.Field("hyper"); h != nil {
		for _, m := range h.Real {
			r.masks = append(r.masks, uint32(m))
		}
		if len(r.masks) == 0 {
			r.masks = []uint32{0}
		}
		dims := padDims(data.Dims, 1+ndim)
		if dims == nil || dims[0] != len(r.masks) {
			return nil, schemaBad(ContainerMAT, "data", "dims %v do not hold %d components of %d dimensions", data.Dims, len(r.masks), ndim)
		}
		r.shape = dims[1:]
		r.re = rowMajor(data.Real, dims)
		r.im = rowMajor(im, dims)
	} else {
		r.masks = []uint32{0}
		dims := data.Dims
		if ndim == 1 {
			dims = []int{data.Len()}
		}
		if dims = padDims(dims, ndim); dims == nil {
			return nil, schemaBad(ContainerMAT, "data", "dims %v for %d dimensions", data.Dims, ndim)
		}
		r.shape = dims
		r.re = rowMajor(data.Real, dims)
		r.im = rowMajor(im, dims)
	}

	if h := st.Field("history"); h != nil {
		switch h.Class {
		case matfile.ClassChar:
			r.history = h.Lines()
		case matfile.ClassCell:
			for _, c := range h.Cells {
				r.history = append(r.history, c.String())
			}
		}
	}
	if x := st.Field("xaxArray"); x != nil {
		switch {
		case x.Class == matfile.ClassCell:
			for _, c := range x.Cells {
				r.xax = append(r.xax, c.Real)
			}
		case x.Class.Numeric() && ndim == 1:
			r.xax = [][]float64{x.Real}
		case x.Class.Numeric() && len(x.Dims) == 2 && x.Dims[0] == ndim:
			// equal-length axes saved as one matrix, one row per axis
			rows := rowMajor(x.Real, x.Dims)
			n := x.Dims[1]
			for i := range ndim {
				r.xax = append(r.xax, rows[i*n:(i+1)*n])
			}
		}
	}
	if m := st.Field("metaData"); m != nil && m.Class == matfile.ClassStruct {
		r.meta = map[string]string{}
		var original []string
		if n := st.Field("metaNames"); n != nil && n.Class == matfile.ClassCell && len(n.Cells) == len(m.Fields) {
			for _, c := range n.Cells {
				original = append(original, c.String())
			}
		}
		for i, name := range m.Fields {
			if i >= len(m.Values) {
				break
			}
			if original != nil {
				name = original[i]
			}
			v := m.Values[i].String()
			if m.Values[i].Len() == 0 {
				v = "-"
			}
			r.meta[name] = v
		}
	}
	if d := st.Field("dFilter"); d != nil && len(d.Real) > 0 {
		r.dFilter = spectrum.Float(d.Real[0])
	}
	return r, nil
}

func positive(v []float64) []bool {
	out := make([]bool, len(v))
	for i, x := range v {
		out[i] = x > 0
	}
	return out
}

// padDims drops or adds trailing singleton dimensions to reach rank n, as
// MATLAB stores at least two dimensions and drops trailing ones.
func padDims(dims []int, n int) []int {
	out := slices.Clone(dims)
	for len(out) > n && out[len(out)-1] == 1 {
		out = out[:len(out)-1]
	}
	for len(out) < n {
		out = append(out, 1)
	}
	if len(out) != n {
		return nil
	}
	return out
}

// columnMajor reorders row-major values over dims into column-major order.
func columnMajor(v []float64, dims []int) []float64 {
	out := make([]float64, len(v))
	permute(dims, func(row, col int) { out[col] = v[row] })
	return out
}

// rowMajor reorders column-major values over dims into row-major order.
func rowMajor(v []float64, dims []int) []float64 {
	out := make([]float64, len(v))
	permute(dims, func(row, col int) {
		if col < len(v) {
			out[row] = v[col]
		}
	})
	return out
}

// permute calls fn with the row-major and column-major offsets of every
// element of an array with the given dims.
func permute(dims []int, fn func(row, col int)) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n == 0 {
		return
	}
	idx := make([]int, len(dims))
	for row := range n {
		rem := row
		for d := len(dims) - 1; d >= 0; d-- {
			idx[d] = rem % dims[d]
			rem /= dims[d]
		}
		col := 0
		for d := len(dims) - 1; d >= 0; d-- {
			col = col*dims[d] + idx[d]
		}
		fn(row, col)
	}
}

// readHDF5Struct converts the first non-reference variable of a v7.3 file
// into the same tree the level 5 reader produces.
func readHDF5Struct(b []byte) (*matfile.Array, error) {
	f, err := h5.Open(b)
	if err != nil {
		return nil, err
	}
	root, err := f.Root()
	if err != nil {
		return nil, err
	}
	links, err := root.Links()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Name == "#refs#" {
			continue
		}
		obj, err := f.Object(l.Addr)
		if err != nil {
			return nil, err
		}
		a, err := hdf5Array(f, obj, 0)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", l.Name, err)
		}
		a.Name = l.Name
		return a, nil
	}
	return nil, fmt.Errorf("%w: no variables", h5.ErrNotFound)
}

const maxDepth = 16

func hdf5Array(f *h5.File, obj *h5.Object, depth int) (*matfile.Array, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", h5.ErrCorrupt, maxDepth)
	}
	class := obj.AttrString("MATLAB_class")
	if obj.IsGroup() {
		links, err := obj.Links()
		if err != nil {
			return nil, err
		}
		st := matfile.NewStruct(nil, nil)
		for _, l := range links {
			child, err := f.Object(l.Addr)
			if err != nil {
				return nil, err
			}
			v, err := hdf5Array(f, child, depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", l.Name, err)
			}
			v.Name = l.Name
			st.Fields = append(st.Fields, l.Name)
			st.Values = append(st.Values, v)
		}
		return st, nil
	}
	if _, err := obj.Attr("MATLAB_empty"); err == nil {
		a := matfile.NewDouble([]int{0, 0}, nil, nil)
		if class == "char" {
			a.Class = matfile.ClassChar
		}
		return a, nil
	}
	v, err := obj.Read()
	if err != nil {
		return nil, err
	}
	dims := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		dims[len(dims)-1-i] = int(d)
	}
	switch {
	case v.Kind == h5.KindReference:
		cells := make([]*matfile.Array, len(v.Refs))
		for i, ref := range v.Refs {
			target, err := f.Object(ref)
			if err != nil {
				return nil, err
			}
			if cells[i], err = hdf5Array(f, target, depth+1); err != nil {
				return nil, err
			}
		}
		return matfile.NewCell(dims, cells), nil
	case v.Kind == h5.KindComplex:
		return matfile.NewDouble(dims, v.Real, v.Imag), nil
	case v.Kind == h5.KindNumber && class == "char":
		return &matfile.Array{Class: matfile.ClassChar, Dims: dims, Real: v.Real}, nil
	case v.Kind == h5.KindNumber:
		return matfile.NewDouble(dims, v.Real, nil), nil
	case v.Kind == h5.KindString:
		var text bytes.Buffer
		for _, s := range v.Strings {
			text.WriteString(s)
		}
		return matfile.NewChar(text.String()), nil
	}
	return nil, fmt.Errorf("%w: dataset kind %d", h5.ErrUnsupported, v.Kind)
}

// matFieldNames shortens metadata keys to the MATLAB field name limit and
// keeps them unique with a numeric suffix. renamed reports whether any
// name differs from its key.
func matFieldNames(keys []string) (names []string, renamed bool) {
	names = make([]string, len(keys))
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		name := truncateName(k, matfile.MaxNameLength)
		for n := 1; seen[name]; n++ {
			suffix := "_" + strconv.Itoa(n)
			name = truncateName(k, matfile.MaxNameLength-len(suffix)) + suffix
		}
		seen[name] = true
		names[i] = name
		renamed = renamed || name != k
	}
	return names, renamed
}

// truncateName cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
