package h5

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/specio/internal/binio"
)

// Datatype classes.
const (
	classFixed     = 0
	classFloat     = 1
	classString    = 3
	classCompound  = 6
	classReference = 7
)

type datatype struct {
	class   uint8
	size    int
	order   binary.ByteOrder
	signed  bool
	members []member
}

type member struct {
	name   string
	offset int
	typ    *datatype
}

// parseDatatype decodes a datatype message and returns the number of
// bytes it occupied.
func parseDatatype(b []byte) (*datatype, int, error) {
	r := binio.NewReader(b, binary.LittleEndian)
	head, err := r.U8()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: datatype: %v", ErrCorrupt, err)
	}
	class, version := head&0x0F, head>>4
	bits, err := r.ReadN(3)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: datatype: %v", ErrCorrupt, err)
	}
	size, err := r.U32()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: datatype: %v", ErrCorrupt, err)
	}
	t := &datatype{class: class, size: int(size), order: binary.LittleEndian}
	if bits[0]&0x01 != 0 {
		t.order = binary.BigEndian
	}
	switch class {
	case classFixed:
		t.signed = bits[0]&0x08 != 0
		err = r.Skip(4)
	case classFloat:
		err = r.Skip(12)
	case classString, classReference:
	case classCompound:
		n := int(bits[0]) | int(bits[1])<<8
		err = t.parseMembers(r, b, version, n)
	default:
		return nil, 0, fmt.Errorf("%w: datatype class %d", ErrUnsupported, class)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: datatype: %v", ErrCorrupt, err)
	}
	return t, r.Offset(), nil
}

func (t *datatype) parseMembers(r *binio.Reader, b []byte, version uint8, n int) error {
	for range n {
		rest := b[r.Offset():]
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			return fmt.Errorf("unterminated member name")
		}
		name := string(rest[:end])
		used := end + 1
		if version < 3 {
			// names are padded to a multiple of eight bytes
			used = (used + 7) / 8 * 8
		}
		if err := r.Skip(used); err != nil {
			return err
		}
		var off uint64
		var err error
		switch version {
		case 1:
			off, err = r.Uint(4)
			if err == nil {
				err = r.Skip(1 + 3 + 4 + 4 + 16) // array dimensions are ignored
			}
		case 2:
			off, err = r.Uint(4)
		default:
			off, err = readVarUint(r, offsetWidth(t.size))
		}
		if err != nil {
			return err
		}
		mt, used, err := parseDatatype(b[r.Offset():])
		if err != nil {
			return err
		}
		if err := r.Skip(used); err != nil {
			return err
		}
		t.members = append(t.members, member{name: name, offset: int(off), typ: mt})
	}
	return nil
}

// offsetWidth is the byte count of a version 3 compound member offset.
func offsetWidth(size int) int {
	n := 1
	for v := size >> 8; v > 0; v >>= 8 {
		n++
	}
	return n
}

func readVarUint(r *binio.Reader, width int) (uint64, error) {
	b, err := r.ReadN(width)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// number decodes one numeric element.
func (t *datatype) number(b []byte) (float64, error) {
	switch t.class {
	case classFloat:
		switch t.size {
		case 4:
			return float64(math.Float32frombits(t.order.Uint32(b))), nil
		case 8:
			return math.Float64frombits(t.order.Uint64(b)), nil
		}
	case classFixed:
		var u uint64
		switch t.size {
		case 1:
			u = uint64(b[0])
			if t.signed {
				return float64(int8(u)), nil
			}
		case 2:
			u = uint64(t.order.Uint16(b))
			if t.signed {
				return float64(int16(u)), nil
			}
		case 4:
			u = uint64(t.order.Uint32(b))
			if t.signed {
				return float64(int32(u)), nil
			}
		case 8:
			u = t.order.Uint64(b)
			if t.signed {
				return float64(int64(u)), nil
			}
		default:
			return 0, fmt.Errorf("%w: %d-byte integer", ErrUnsupported, t.size)
		}
		return float64(u), nil
	}
	return 0, fmt.Errorf("%w: datatype class %d is not numeric", ErrUnsupported, t.class)
}

func (t *datatype) numeric() bool { return t.class == classFixed || t.class == classFloat }

// complexParts returns the real and imaginary members of a compound type.
func (t *datatype) complexParts() (re, im member, ok bool) {
	var haveRe, haveIm bool
	for _, m := range t.members {
		if !m.typ.numeric() {
			continue
		}
		switch m.name {
		case "real":
			re, haveRe = m, true
		case "imag":
			im, haveIm = m, true
		}
	}
	return re, im, haveRe && haveIm
}

// parseDataspace returns the dimensions of a dataspace message. A scalar
// space has no dimensions; a null space returns ok false.
func parseDataspace(b []byte, lsize int) (dims []uint64, ok bool, err error) {
	r := binio.NewReader(b, binary.LittleEndian)
	version, _ := r.U8()
	rank, _ := r.U8()
	if _, err = r.U8(); err != nil { // flags
		return nil, false, fmt.Errorf("%w: dataspace: %v", ErrCorrupt, err)
	}
	switch version {
	case 1:
		err = r.Skip(5)
	case 2:
		var kind uint8
		kind, err = r.U8()
		if kind == 2 {
			return nil, false, nil
		}
	default:
		return nil, false, fmt.Errorf("%w: dataspace version %d", ErrUnsupported, version)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: dataspace: %v", ErrCorrupt, err)
	}
	dims = make([]uint64, rank)
	for i := range dims {
		if dims[i], err = r.Uint(lsize); err != nil {
			return nil, false, fmt.Errorf("%w: dataspace: %v", ErrCorrupt, err)
		}
	}
	return dims, true, nil
}

// count returns the element count of dims, saturating at math.MaxInt.
func count(dims []uint64) int {
	sizes := make([]int, len(dims))
	for i, d := range dims {
		if d > math.MaxInt {
			return math.MaxInt
		}
		sizes[i] = int(d)
	}
	n, _ := binio.Product(sizes...)
	return n
}
