package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/samcharles93/specio/internal/binio"
)

// IsHDF5Header reports whether a MAT-file header announces version 7.3.
func IsHDF5Header(b []byte) bool {
	return len(b) >= 10 && string(b[:10]) == "MATLAB 7.3"
}

// ReadFile reads every variable in the file at path.
func ReadFile(path string) ([]*Array, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Read reads every variable from r.
func Read(r io.Reader) ([]*Array, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Decode parses an in-memory MAT-file.
func Decode(b []byte) ([]*Array, error) {
	if len(b) < headerSize {
		return nil, ErrNotMAT
	}
	if IsHDF5Header(b) {
		return nil, ErrHDF5
	}
	var order binary.ByteOrder
	switch string(b[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, ErrNotMAT
	}
	r := binio.NewReader(b, order)
	_ = r.Seek(headerSize)
	var out []*Array
	for r.Remaining() >= 8 {
		typ, data, err := readElement(r)
		if err != nil {
			return nil, err
		}
		if typ == miCOMPRESSED {
			inner, err := inflate(data)
			if err != nil {
				return nil, err
			}
			ir := binio.NewReader(inner, order)
			if typ, data, err = readElement(ir); err != nil {
				return nil, err
			}
		}
		if typ != miMATRIX {
			continue
		}
		a, err := parseMatrix(data, order)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: compressed element: %v", ErrCorrupt, err)
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: compressed element: %v", ErrCorrupt, err)
	}
	return out, nil
}

// readElement reads one tagged element and skips its padding.
func readElement(r *binio.Reader) (uint32, []byte, error) {
	typ, err := r.U32()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: element tag: %v", ErrCorrupt, err)
	}
	if small := typ >> 16; small != 0 {
		word, err := r.ReadN(4)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: small element: %v", ErrCorrupt, err)
		}
		if small > 4 {
			return 0, nil, fmt.Errorf("%w: small element of %d bytes", ErrCorrupt, small)
		}
		return typ & 0xFFFF, word[:small], nil
	}
	n, err := r.U32()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: element tag: %v", ErrCorrupt, err)
	}
	data, err := r.ReadN(int(n))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: element of type %d needs %d bytes", ErrCorrupt, typ, n)
	}
	if typ != miCOMPRESSED {
		if pad := (8 - int(n)%8) % 8; pad > 0 && r.Remaining() >= pad {
			_ = r.Skip(pad)
		}
	}
	return typ, data, nil
}

func parseMatrix(b []byte, order binary.ByteOrder) (*Array, error) {
	if len(b) == 0 {
		return NewDouble([]int{0, 0}, nil, nil), nil
	}
	r := binio.NewReader(b, order)
	typ, fb, err := readElement(r)
	if err != nil {
		return nil, err
	}
	if typ != miUINT32 || len(fb) < 8 {
		return nil, fmt.Errorf("%w: array flags", ErrCorrupt)
	}
	flags := order.Uint32(fb)
	a := &Array{
		Class:   Class(flags & 0xFF),
		Logical: flags&flagLogical != 0,
	}
	complexFlag := flags&flagComplex != 0

	typ, db, err := readElement(r)
	if err != nil {
		return nil, err
	}
	dims, err := numbers(typ, db, order)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	a.Dims = make([]int, len(dims))
	for i, d := range dims {
		a.Dims[i] = int(d)
	}
	_, nb, err := readElement(r)
	if err != nil {
		return nil, err
	}
	a.Name = string(nb)
	n := a.Len()

	switch {
	case a.Class.Numeric():
		typ, data, err := readElement(r)
		if err != nil {
			return nil, err
		}
		if a.Real, err = numbers(typ, data, order); err != nil {
			return nil, fmt.Errorf("%q real part: %w", a.Name, err)
		}
		if complexFlag {
			typ, data, err := readElement(r)
			if err != nil {
				return nil, err
			}
			if a.Imag, err = numbers(typ, data, order); err != nil {
				return nil, fmt.Errorf("%q imaginary part: %w", a.Name, err)
			}
		}
		if len(a.Real) != n || (a.Imag != nil && len(a.Imag) != n) {
			return nil, fmt.Errorf("%w: %q holds %d values for dims %v", ErrCorrupt, a.Name, len(a.Real), a.Dims)
		}
	case a.Class == ClassChar:
		typ, data, err := readElement(r)
		if err != nil {
			return nil, err
		}
		if a.Real, err = chars(typ, data, order); err != nil {
			return nil, fmt.Errorf("%q: %w", a.Name, err)
		}
		if len(a.Real) != n {
			return nil, fmt.Errorf("%w: %q holds %d characters for dims %v", ErrCorrupt, a.Name, len(a.Real), a.Dims)
		}
	case a.Class == ClassCell:
		a.Cells = make([]*Array, n)
		for i := range a.Cells {
			if a.Cells[i], err = subMatrix(r, order); err != nil {
				return nil, err
			}
		}
	case a.Class == ClassStruct:
		_, wb, err := readElement(r)
		if err != nil {
			return nil, err
		}
		if len(wb) < 4 {
			return nil, fmt.Errorf("%w: field name length", ErrCorrupt)
		}
		width := int(order.Uint32(wb))
		_, names, err := readElement(r)
		if err != nil {
			return nil, err
		}
		if width <= 0 || len(names)%width != 0 {
			return nil, fmt.Errorf("%w: field names of width %d", ErrCorrupt, width)
		}
		for i := 0; i < len(names); i += width {
			a.Fields = append(a.Fields, binio.TrimPadding(names[i:i+width]))
		}
		a.Values = make([]*Array, n*len(a.Fields))
		for i := range a.Values {
			if a.Values[i], err = subMatrix(r, order); err != nil {
				return nil, err
			}
			a.Values[i].Name = a.Fields[i%len(a.Fields)]
		}
	default:
		return nil, fmt.Errorf("%w: %s array %q", ErrUnsupported, a.Class, a.Name)
	}
	return a, nil
}

func subMatrix(r *binio.Reader, order binary.ByteOrder) (*Array, error) {
	typ, data, err := readElement(r)
	if err != nil {
		return nil, err
	}
	if typ != miMATRIX {
		return nil, fmt.Errorf("%w: nested element of type %d", ErrCorrupt, typ)
	}
	return parseMatrix(data, order)
}

// numbers decodes a numeric data element.
func numbers(typ uint32, b []byte, order binary.ByteOrder) ([]float64, error) {
	var size int
	switch typ {
	case miINT8, miUINT8:
		size = 1
	case miINT16, miUINT16:
		size = 2
	case miINT32, miUINT32, miSINGLE:
		size = 4
	case miDOUBLE, miINT64, miUINT64:
		size = 8
	default:
		return nil, fmt.Errorf("%w: numeric element type %d", ErrUnsupported, typ)
	}
	out := make([]float64, len(b)/size)
	for i := range out {
		p := b[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(p[0]))
		case miUINT8:
			out[i] = float64(p[0])
		case miINT16:
			out[i] = float64(int16(order.Uint16(p)))
		case miUINT16:
			out[i] = float64(order.Uint16(p))
		case miINT32:
			out[i] = float64(int32(order.Uint32(p)))
		case miUINT32:
			out[i] = float64(order.Uint32(p))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(order.Uint32(p)))
		case miDOUBLE:
			out[i] = math.Float64frombits(order.Uint64(p))
		case miINT64:
			out[i] = float64(int64(order.Uint64(p)))
		case miUINT64:
			out[i] = float64(order.Uint64(p))
		}
	}
	return out, nil
}

// chars decodes character data to UTF-16 code units.
func chars(typ uint32, b []byte, order binary.ByteOrder) ([]float64, error) {
	switch typ {
	case miUTF8:
		var units []uint16
		for len(b) > 0 {
			r, n := utf8.DecodeRune(b)
			b = b[n:]
			units = append(units, utf16.Encode([]rune{r})...)
		}
		out := make([]float64, len(units))
		for i, u := range units {
			out[i] = float64(u)
		}
		return out, nil
	case miUTF16:
		return numbers(miUINT16, b, order)
	}
	return numbers(typ, b, order)
}
