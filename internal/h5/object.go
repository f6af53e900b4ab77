package h5

import (
	"encoding/binary"
	"fmt"

	"github.com/samcharles93/specio/internal/binio"
)

// Header message types.
const (
	msgDataspace    = 0x0001
	msgLinkInfo     = 0x0002
	msgDatatype     = 0x0003
	msgLink         = 0x0006
	msgLayout       = 0x0008
	msgFilters      = 0x000B
	msgAttribute    = 0x000C
	msgContinuation = 0x0010
	msgSymbolTable  = 0x0011
)

const msgShared = 0x02

type message struct {
	typ   uint16
	flags uint8
	data  []byte
}

// Object is a group or dataset located by its object header.
type Object struct {
	f    *File
	Addr uint64
	msgs []message
}

// Object parses the object header at a file-relative address.
func (f *File) Object(addr uint64) (*Object, error) {
	r, err := f.at(addr)
	if err != nil {
		return nil, err
	}
	o := &Object{f: f, Addr: addr}
	peek, err := r.ReadN(4)
	if err != nil {
		return nil, fmt.Errorf("%w: object header at %#x: %v", ErrCorrupt, addr, err)
	}
	if string(peek) == "OHDR" {
		err = o.parseV2(r)
	} else {
		_ = r.Seek(r.Offset() - 4)
		err = o.parseV1(r)
	}
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	return o, nil
}

func (o *Object) parseV1(r *binio.Reader) error {
	version, _ := r.U8()
	if version != 1 {
		return fmt.Errorf("%w: object header version %d", ErrUnsupported, version)
	}
	if err := r.Skip(1); err != nil {
		return err
	}
	n, err := r.U16()
	if err != nil {
		return err
	}
	if err := r.Skip(4); err != nil { // reference count
		return err
	}
	size, err := r.U32()
	if err != nil {
		return err
	}
	if err := r.Skip(4); err != nil { // alignment
		return err
	}
	blocks := []span{{uint64(r.Offset()) - o.f.base, uint64(size)}}
	for len(blocks) > 0 && len(o.msgs) < int(n) {
		b := blocks[0]
		blocks = blocks[1:]
		data, err := o.f.bytesAt(b.start, int(b.size))
		if err != nil {
			return err
		}
		br := binio.NewReader(data, r.Order())
		for br.Remaining() >= 8 && len(o.msgs) < int(n) {
			typ, _ := br.U16()
			sz, _ := br.U16()
			flags, _ := br.U8()
			_ = br.Skip(3)
			body, err := br.ReadN(int(sz))
			if err != nil {
				return fmt.Errorf("%w: message %#x overruns header", ErrCorrupt, typ)
			}
			m := message{typ: typ, flags: flags, data: body}
			o.msgs = append(o.msgs, m)
			if typ == msgContinuation {
				cont, err := o.continuation(m)
				if err != nil {
					return err
				}
				blocks = append(blocks, cont)
			}
		}
	}
	return nil
}

func (o *Object) parseV2(r *binio.Reader) error {
	version, _ := r.U8()
	if version != 2 {
		return fmt.Errorf("%w: object header version %d", ErrUnsupported, version)
	}
	flags, err := r.U8()
	if err != nil {
		return err
	}
	if flags&0x20 != 0 { // access, modification, change and birth times
		if err := r.Skip(16); err != nil {
			return err
		}
	}
	if flags&0x10 != 0 { // attribute phase change values
		if err := r.Skip(4); err != nil {
			return err
		}
	}
	size, err := r.Uint(1 << (flags & 0x03))
	if err != nil {
		return err
	}
	order := flags&0x04 != 0
	data, err := r.ReadN(int(size))
	if err != nil {
		return fmt.Errorf("%w: object header chunk: %v", ErrCorrupt, err)
	}
	pending := [][]byte{data}
	for len(pending) > 0 {
		chunk := pending[0]
		pending = pending[1:]
		cr := binio.NewReader(chunk, r.Order())
		head := 4
		if order {
			head = 6
		}
		for cr.Remaining() >= head {
			typ, _ := cr.U8()
			sz, _ := cr.U16()
			mflags, _ := cr.U8()
			if order {
				_ = cr.Skip(2)
			}
			body, err := cr.ReadN(int(sz))
			if err != nil {
				return fmt.Errorf("%w: message %#x overruns header", ErrCorrupt, typ)
			}
			m := message{typ: uint16(typ), flags: mflags, data: body}
			o.msgs = append(o.msgs, m)
			if m.typ != msgContinuation {
				continue
			}
			cont, err := o.continuation(m)
			if err != nil {
				return err
			}
			cb, err := o.f.bytesAt(cont.start, int(cont.size))
			if err != nil {
				return err
			}
			if len(cb) < 8 || string(cb[:4]) != "OCHK" {
				return fmt.Errorf("%w: continuation block without OCHK signature", ErrCorrupt)
			}
			pending = append(pending, cb[4:len(cb)-4])
		}
	}
	return nil
}

type span struct{ start, size uint64 }

func (o *Object) continuation(m message) (span, error) {
	r := binio.NewReader(m.data, binary.LittleEndian)
	start, err := o.f.offset(r)
	if err != nil {
		return span{}, fmt.Errorf("%w: continuation message: %v", ErrCorrupt, err)
	}
	size, err := o.f.length(r)
	if err != nil {
		return span{}, fmt.Errorf("%w: continuation message: %v", ErrCorrupt, err)
	}
	return span{start, size}, nil
}

// find returns the first message of the given type.
func (o *Object) find(typ uint16) (message, bool) {
	for _, m := range o.msgs {
		if m.typ == typ {
			return m, true
		}
	}
	return message{}, false
}

// IsGroup reports whether the object holds links rather than data.
func (o *Object) IsGroup() bool {
	for _, m := range o.msgs {
		switch m.typ {
		case msgSymbolTable, msgLink, msgLinkInfo:
			return true
		}
	}
	return false
}

// IsDataset reports whether the object stores data.
func (o *Object) IsDataset() bool {
	_, ok := o.find(msgLayout)
	return ok
}
