package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16
	miUTF16      = 17
	miUTF32      = 18
)

// Array flag bits.
const (
	flagComplex = 0x0800
	flagGlobal  = 0x0400
	flagLogical = 0x0200
)

const headerSize = 128

var le = binary.LittleEndian

// Write encodes vars as a MAT-file. With compress set each variable is
// stored zlib-compressed.
func Write(w io.Writer, vars []*Array, compress bool) error {
	hdr := bytes.Repeat([]byte{' '}, headerSize)
	text := fmt.Sprintf("MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: %s", time.Now().UTC().Format("Mon Jan 2 15:04:05 2006"))
	copy(hdr, text)
	for i := 116; i < 124; i++ {
		hdr[i] = 0
	}
	le.PutUint16(hdr[124:], 0x0100)
	copy(hdr[126:], "IM")
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	for _, v := range vars {
		if v.Name == "" {
			return fmt.Errorf("matfile: top-level variable without a name")
		}
		var el bytes.Buffer
		if err := writeMatrix(&el, v); err != nil {
			return fmt.Errorf("matfile: variable %q: %w", v.Name, err)
		}
		out := el.Bytes()
		if compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			if _, err := zw.Write(out); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			tag := make([]byte, 8)
			le.PutUint32(tag, miCOMPRESSED)
			le.PutUint32(tag[4:], uint32(z.Len()))
			out = append(tag, z.Bytes()...)
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes vars to path.
func WriteFile(path string, vars []*Array, compress bool) error {
	var buf bytes.Buffer
	if err := Write(&buf, vars, compress); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// element writes one tagged data element. Payloads of four bytes or less
// use the small element format.
func element(b *bytes.Buffer, typ uint32, data []byte) {
	if len(data) <= 4 {
		var tag [8]byte
		le.PutUint32(tag[:], uint32(len(data))<<16|typ)
		copy(tag[4:], data)
		b.Write(tag[:])
		return
	}
	var tag [8]byte
	le.PutUint32(tag[:], typ)
	le.PutUint32(tag[4:], uint32(len(data)))
	b.Write(tag[:])
	b.Write(data)
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		b.Write(make([]byte, pad))
	}
}

func writeMatrix(b *bytes.Buffer, a *Array) error {
	var body bytes.Buffer
	flags := uint32(a.Class)
	if a.Imag != nil {
		flags |= flagComplex
	}
	if a.Logical {
		flags |= flagLogical
	}
	fw := make([]byte, 8)
	le.PutUint32(fw, flags)
	element(&body, miUINT32, fw)

	dims := a.Dims
	if len(dims) == 0 {
		dims = []int{0, 0}
	}
	if len(dims) == 1 {
		dims = []int{1, dims[0]}
	}
	n := 1
	db := make([]byte, 0, 4*len(dims))
	for _, d := range dims {
		db = le.AppendUint32(db, uint32(int32(d)))
		n *= d
	}
	element(&body, miINT32, db)
	element(&body, miINT8, []byte(a.Name))

	switch {
	case a.Class.Numeric():
		if len(a.Real) != n || (a.Imag != nil && len(a.Imag) != n) {
			return fmt.Errorf("%d elements for dims %v", len(a.Real), dims)
		}
		element(&body, miDOUBLE, doubles(a.Real))
		if a.Imag != nil {
			element(&body, miDOUBLE, doubles(a.Imag))
		}
	case a.Class == ClassChar:
		if len(a.Real) != n {
			return fmt.Errorf("%d characters for dims %v", len(a.Real), dims)
		}
		cb := make([]byte, 0, 2*n)
		for _, v := range a.Real {
			cb = le.AppendUint16(cb, uint16(v))
		}
		element(&body, miUINT16, cb)
	case a.Class == ClassCell:
		if len(a.Cells) != n {
			return fmt.Errorf("%d cells for dims %v", len(a.Cells), dims)
		}
		for _, c := range a.Cells {
			inner := *c
			inner.Name = ""
			if err := writeMatrix(&body, &inner); err != nil {
				return err
			}
		}
	case a.Class == ClassStruct:
		if len(a.Values) != n*len(a.Fields) {
			return fmt.Errorf("%d field values for %d fields and dims %v", len(a.Values), len(a.Fields), dims)
		}
		width := 1
		for _, f := range a.Fields {
			width = max(width, len(f)+1)
		}
		if width > MaxNameLength+1 {
			return fmt.Errorf("field name longer than %d characters", MaxNameLength)
		}
		element(&body, miINT32, le.AppendUint32(nil, uint32(width)))
		names := make([]byte, width*len(a.Fields))
		for i, f := range a.Fields {
			copy(names[i*width:], f)
		}
		element(&body, miINT8, names)
		for _, v := range a.Values {
			inner := *v
			inner.Name = ""
			if err := writeMatrix(&body, &inner); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: writing %s arrays", ErrUnsupported, a.Class)
	}

	var tag [8]byte
	le.PutUint32(tag[:], miMATRIX)
	le.PutUint32(tag[4:], uint32(body.Len()))
	b.Write(tag[:])
	b.Write(body.Bytes())
	return nil
}

func doubles(v []float64) []byte {
	out := make([]byte, 0, 8*len(v))
	for _, x := range v {
		out = le.AppendUint64(out, math.Float64bits(x))
	}
	return out
}
