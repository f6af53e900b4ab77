package h5

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/samcharles93/specio/internal/binio"
)

// Attr decodes the named attribute of an object.
func (o *Object) Attr(name string) (*Value, error) {
	for _, m := range o.msgs {
		if m.typ != msgAttribute {
			continue
		}
		got, v, err := o.attribute(m.data, name)
		if err != nil {
			return nil, err
		}
		if got {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: attribute %q", ErrNotFound, name)
}

// AttrString returns a string attribute, or "" when it is absent.
func (o *Object) AttrString(name string) string {
	v, err := o.Attr(name)
	if err != nil || v.Kind != KindString || len(v.Strings) == 0 {
		return ""
	}
	return v.Strings[0]
}

func pad8(n int) int { return (n + 7) / 8 * 8 }

// attribute decodes an attribute message if its name matches.
func (o *Object) attribute(b []byte, want string) (bool, *Value, error) {
	r := binio.NewReader(b, binary.LittleEndian)
	version, _ := r.U8()
	if version < 1 || version > 3 {
		return false, nil, fmt.Errorf("%w: attribute version %d", ErrUnsupported, version)
	}
	_, _ = r.U8() // reserved or flags
	nameSize, _ := r.U16()
	typeSize, _ := r.U16()
	spaceSize, err := r.U16()
	if err != nil {
		return false, nil, fmt.Errorf("%w: attribute: %v", ErrCorrupt, err)
	}
	if version == 3 {
		_, _ = r.U8() // name encoding
	}
	padded := func(n uint16) int {
		if version == 1 {
			return pad8(int(n))
		}
		return int(n)
	}
	nameRaw, err := r.ReadN(padded(nameSize))
	if err != nil {
		return false, nil, fmt.Errorf("%w: attribute name: %v", ErrCorrupt, err)
	}
	name := nameRaw
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if string(name) != want {
		return false, nil, nil
	}
	tb, err := r.ReadN(padded(typeSize))
	if err != nil {
		return false, nil, fmt.Errorf("%w: attribute type: %v", ErrCorrupt, err)
	}
	sb, err := r.ReadN(padded(spaceSize))
	if err != nil {
		return false, nil, fmt.Errorf("%w: attribute space: %v", ErrCorrupt, err)
	}
	typ, _, err := parseDatatype(tb)
	if err != nil {
		return false, nil, err
	}
	dims, ok, err := parseDataspace(sb, o.f.lsize)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		v, err := decode(typ, nil, nil, o.f.osize)
		return true, v, err
	}
	size, _ := binio.Product(count(dims), typ.size)
	raw, err := r.ReadN(size)
	if err != nil {
		return false, nil, fmt.Errorf("%w: attribute %q data: %v", ErrCorrupt, want, err)
	}
	v, err := decode(typ, dims, raw, o.f.osize)
	return true, v, err
}
