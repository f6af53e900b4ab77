package h5

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/samcharles93/specio/internal/binio"
)

// Kind names the shape of a decoded Value.
type Kind int

const (
	KindNumber Kind = iota
	KindComplex
	KindString
	KindReference
)

// Value is the decoded content of a dataset or attribute. Elements are in
// row-major order over Dims.
type Value struct {
	Kind Kind
	Dims []uint64
	// Real holds numeric elements and the real parts of complex ones.
	Real []float64
	// Imag holds the imaginary parts of complex elements.
	Imag []float64
	// Refs holds object reference addresses.
	Refs []uint64
	// Strings holds fixed-length string elements with padding removed.
	Strings []string
	// Width is the element size in bytes.
	Width int
}

// Len returns the number of elements.
func (v *Value) Len() int { return count(v.Dims) }

// Read decodes the data of a dataset.
func (o *Object) Read() (*Value, error) {
	typ, dims, err := o.shape()
	if err != nil {
		return nil, err
	}
	if dims == nil {
		return decode(typ, nil, nil, o.f.osize)
	}
	raw, err := o.raw(typ, dims)
	if err != nil {
		return nil, err
	}
	return decode(typ, dims, raw, o.f.osize)
}

func (o *Object) shape() (*datatype, []uint64, error) {
	tm, ok := o.find(msgDatatype)
	if !ok {
		return nil, nil, fmt.Errorf("%w: object at %#x has no datatype", ErrCorrupt, o.Addr)
	}
	if tm.flags&msgShared != 0 {
		return nil, nil, fmt.Errorf("%w: shared datatype", ErrUnsupported)
	}
	typ, _, err := parseDatatype(tm.data)
	if err != nil {
		return nil, nil, err
	}
	sm, ok := o.find(msgDataspace)
	if !ok {
		return nil, nil, fmt.Errorf("%w: object at %#x has no dataspace", ErrCorrupt, o.Addr)
	}
	dims, ok, err := parseDataspace(sm.data, o.f.lsize)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return typ, nil, nil
	}
	return typ, dims, nil
}

// raw returns the row-major element bytes of a dataset.
func (o *Object) raw(typ *datatype, dims []uint64) ([]byte, error) {
	lm, ok := o.find(msgLayout)
	if !ok {
		return nil, fmt.Errorf("%w: object at %#x is not a dataset", ErrCorrupt, o.Addr)
	}
	want, _ := binio.Product(count(dims), typ.size)
	if want == math.MaxInt {
		return nil, fmt.Errorf("%w: dataset dimensions %v overflow", ErrCorrupt, dims)
	}
	r := binio.NewReader(lm.data, binary.LittleEndian)
	version, _ := r.U8()
	if version != 3 {
		return nil, fmt.Errorf("%w: layout version %d", ErrUnsupported, version)
	}
	class, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: layout: %v", ErrCorrupt, err)
	}
	switch class {
	case 0:
		size, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("%w: compact layout: %v", ErrCorrupt, err)
		}
		data, err := r.ReadN(int(size))
		if err != nil || len(data) < want {
			return nil, fmt.Errorf("%w: compact data holds %d bytes, need %d", ErrCorrupt, len(data), want)
		}
		return data[:want], nil
	case 1:
		addr, err := o.f.offset(r)
		if err != nil {
			return nil, fmt.Errorf("%w: contiguous layout: %v", ErrCorrupt, err)
		}
		if o.f.undefined(addr) {
			return make([]byte, want), nil
		}
		return o.f.bytesAt(addr, want)
	case 2:
		return o.chunked(r, typ, dims, want)
	}
	return nil, fmt.Errorf("%w: layout class %d", ErrUnsupported, class)
}

type filter struct {
	id     uint16
	client []uint32
}

func (o *Object) filters() ([]filter, error) {
	m, ok := o.find(msgFilters)
	if !ok {
		return nil, nil
	}
	r := binio.NewReader(m.data, binary.LittleEndian)
	version, _ := r.U8()
	n, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: filter pipeline: %v", ErrCorrupt, err)
	}
	if version == 1 {
		if err := r.Skip(6); err != nil {
			return nil, err
		}
	}
	out := make([]filter, 0, n)
	for range n {
		var f filter
		if f.id, err = r.U16(); err != nil {
			return nil, fmt.Errorf("%w: filter pipeline: %v", ErrCorrupt, err)
		}
		var nameLen uint16
		if version == 1 || f.id >= 256 {
			nameLen, _ = r.U16()
		}
		_, _ = r.U16() // flags
		nvals, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("%w: filter pipeline: %v", ErrCorrupt, err)
		}
		if err := r.Skip(int(nameLen)); err != nil {
			return nil, fmt.Errorf("%w: filter name: %v", ErrCorrupt, err)
		}
		for range nvals {
			v, err := r.U32()
			if err != nil {
				return nil, fmt.Errorf("%w: filter values: %v", ErrCorrupt, err)
			}
			f.client = append(f.client, v)
		}
		if version == 1 && nvals%2 == 1 {
			_ = r.Skip(4)
		}
		switch f.id {
		case filterDeflate, filterShuffle, filterFletcher:
		default:
			return nil, fmt.Errorf("%w: filter %d", ErrUnsupported, f.id)
		}
		out = append(out, f)
	}
	return out, nil
}

const (
	filterDeflate  = 1
	filterShuffle  = 2
	filterFletcher = 3
)

// unfilter reverses the pipeline on one chunk. Bit i of mask set means
// filter i was skipped when the chunk was written.
func unfilter(b []byte, pipeline []filter, mask uint32, elem int) ([]byte, error) {
	for i := len(pipeline) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		switch pipeline[i].id {
		case filterDeflate:
			zr, err := zlib.NewReader(bytes.NewReader(b))
			if err != nil {
				return nil, fmt.Errorf("%w: deflate: %v", ErrCorrupt, err)
			}
			out, err := io.ReadAll(zr)
			_ = zr.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: deflate: %v", ErrCorrupt, err)
			}
			b = out
		case filterShuffle:
			b = unshuffle(b, elem)
		case filterFletcher:
			if len(b) < 4 {
				return nil, fmt.Errorf("%w: fletcher32 chunk too short", ErrCorrupt)
			}
			b = b[:len(b)-4]
		}
	}
	return b, nil
}

// unshuffle undoes the byte transposition of the shuffle filter.
func unshuffle(b []byte, elem int) []byte {
	if elem <= 1 {
		return b
	}
	n := len(b) / elem
	out := make([]byte, len(b))
	for j := range elem {
		for i := range n {
			out[i*elem+j] = b[j*n+i]
		}
	}
	copy(out[n*elem:], b[n*elem:])
	return out
}

func (o *Object) chunked(r *binio.Reader, typ *datatype, dims []uint64, want int) ([]byte, error) {
	rank, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: chunked layout: %v", ErrCorrupt, err)
	}
	tree, err := o.f.offset(r)
	if err != nil {
		return nil, fmt.Errorf("%w: chunked layout: %v", ErrCorrupt, err)
	}
	if int(rank) != len(dims)+1 {
		return nil, fmt.Errorf("%w: chunk rank %d for %d-D data", ErrCorrupt, rank, len(dims))
	}
	chunk := make([]int, len(dims))
	for i := range chunk {
		v, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("%w: chunk dimensions: %v", ErrCorrupt, err)
		}
		chunk[i] = int(v)
	}
	pipeline, err := o.filters()
	if err != nil {
		return nil, err
	}
	out := make([]byte, want)
	if o.f.undefined(tree) {
		return out, nil
	}
	keySize := 4 + 4 + 8*int(rank)
	elem := typ.size
	chunkLen := elem
	for _, c := range chunk {
		chunkLen *= c
	}
	err = o.f.walkTree(tree, 1, keySize, func(addr uint64, key []byte) error {
		size := binary.LittleEndian.Uint32(key)
		mask := binary.LittleEndian.Uint32(key[4:])
		origin := make([]int, len(dims))
		for i := range origin {
			origin[i] = int(binary.LittleEndian.Uint64(key[8+8*i:]))
		}
		stored, err := o.f.bytesAt(addr, int(size))
		if err != nil {
			return err
		}
		data, err := unfilter(stored, pipeline, mask, elem)
		if err != nil {
			return err
		}
		if len(data) < chunkLen {
			return fmt.Errorf("%w: chunk at %v holds %d bytes, need %d", ErrCorrupt, origin, len(data), chunkLen)
		}
		place(out, data, dims, chunk, origin, elem)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// place copies the part of a chunk that falls inside the dataset.
func place(dst, src []byte, dims []uint64, chunk, origin []int, elem int) {
	nd := len(dims)
	if nd == 0 {
		copy(dst, src[:elem])
		return
	}
	idx := make([]int, nd)
	total := 1
	for _, c := range chunk {
		total *= c
	}
	for k := range total {
		rem := k
		inside := true
		for d := nd - 1; d >= 0; d-- {
			idx[d] = rem % chunk[d]
			rem /= chunk[d]
			if origin[d]+idx[d] >= int(dims[d]) {
				inside = false
			}
		}
		if !inside {
			continue
		}
		off := 0
		for d := range nd {
			off = off*int(dims[d]) + origin[d] + idx[d]
		}
		copy(dst[off*elem:(off+1)*elem], src[k*elem:(k+1)*elem])
	}
}

// decode converts raw element bytes into a Value.
func decode(typ *datatype, dims []uint64, raw []byte, osize int) (*Value, error) {
	v := &Value{Dims: dims, Width: typ.size}
	n := len(raw) / max(typ.size, 1)
	switch {
	case typ.numeric():
		v.Kind = KindNumber
		v.Real = make([]float64, n)
		for i := range v.Real {
			x, err := typ.number(raw[i*typ.size:])
			if err != nil {
				return nil, err
			}
			v.Real[i] = x
		}
	case typ.class == classCompound:
		re, im, ok := typ.complexParts()
		if !ok {
			return nil, fmt.Errorf("%w: compound type without real and imag members", ErrUnsupported)
		}
		v.Kind = KindComplex
		v.Real = make([]float64, n)
		v.Imag = make([]float64, n)
		for i := range n {
			el := raw[i*typ.size:]
			var err error
			if v.Real[i], err = re.typ.number(el[re.offset:]); err != nil {
				return nil, err
			}
			if v.Imag[i], err = im.typ.number(el[im.offset:]); err != nil {
				return nil, err
			}
		}
	case typ.class == classString:
		v.Kind = KindString
		v.Strings = make([]string, n)
		for i := range v.Strings {
			v.Strings[i] = binio.TrimPadding(raw[i*typ.size : (i+1)*typ.size])
		}
	case typ.class == classReference:
		v.Kind = KindReference
		v.Refs = make([]uint64, n)
		for i := range v.Refs {
			el := binio.NewReader(raw[i*typ.size:], binary.LittleEndian)
			ref, err := el.Uint(osize)
			if err != nil {
				return nil, fmt.Errorf("%w: reference: %v", ErrCorrupt, err)
			}
			v.Refs[i] = ref
		}
	default:
		return nil, fmt.Errorf("%w: datatype class %d", ErrUnsupported, typ.class)
	}
	return v, nil
}
