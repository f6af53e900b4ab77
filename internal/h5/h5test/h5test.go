// Package h5test writes small HDF5 files for tests. Files use superblock
// version 0, version 1 object headers and 8-byte offsets and lengths.
package h5test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
)

// Node is a Group or a Dataset.
type Node interface{ node() }

// Type selects the element type of a Dataset.
type Type int

const (
	Float64 Type = iota
	Uint16
	Uint8
	// Complex128 is a compound of float64 "real" and "imag" members. Data
	// holds interleaved real and imaginary parts.
	Complex128
	// Reference holds object references to the nodes in Refs.
	Reference
)

// Attr is a fixed-length string attribute.
type Attr struct {
	Name  string
	Value string
}

// Member is a named group member.
type Member struct {
	Name string
	Node Node
}

type Group struct {
	Attrs   []Attr
	Members []Member
	// Links stores members as link messages instead of a symbol table.
	Links bool
}

type Dataset struct {
	Type  Type
	Dims  []uint64
	Data  []float64
	Refs  []Node
	Attrs []Attr
	// Chunked stores the data as a single deflate-compressed chunk.
	Chunked bool
}

func (*Group) node()   {}
func (*Dataset) node() {}

const undef = math.MaxUint64

type writer struct {
	buf   []byte
	base  int
	addrs map[Node]uint64
}

var le = binary.LittleEndian

// Build serializes root as a complete file. A non-empty userBlock is
// padded to 512 bytes and placed before the superblock.
func Build(root *Group, userBlock []byte) []byte {
	w := &writer{addrs: map[Node]uint64{}}
	if len(userBlock) > 0 {
		ub := make([]byte, 512)
		copy(ub, userBlock)
		w.buf = ub
		w.base = 512
	}
	sb := w.base
	w.buf = append(w.buf, make([]byte, 96)...)
	rootAddr := w.write(root)

	b := w.buf[sb:]
	copy(b, "\x89HDF\r\n\x1a\n")
	b[13], b[14] = 8, 8
	le.PutUint16(b[16:], 4)
	le.PutUint16(b[18:], 16)
	le.PutUint64(b[24:], 0)
	le.PutUint64(b[32:], undef)
	le.PutUint64(b[40:], uint64(len(w.buf)-w.base))
	le.PutUint64(b[48:], undef)
	le.PutUint64(b[56:], 0)
	le.PutUint64(b[64:], rootAddr)
	return w.buf
}

func (w *writer) pos() uint64 { return uint64(len(w.buf) - w.base) }

func (w *writer) align() {
	for len(w.buf)%8 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) put(b []byte) uint64 {
	w.align()
	at := w.pos()
	w.buf = append(w.buf, b...)
	return at
}

// write emits n and everything it refers to, returning its header address.
func (w *writer) write(n Node) uint64 {
	if a, ok := w.addrs[n]; ok {
		return a
	}
	var a uint64
	switch n := n.(type) {
	case *Group:
		a = w.group(n)
	case *Dataset:
		a = w.dataset(n)
	}
	w.addrs[n] = a
	return a
}

type message struct {
	typ  uint16
	data []byte
}

func (w *writer) header(msgs []message) uint64 {
	var body []byte
	for _, m := range msgs {
		data := pad(m.data)
		h := make([]byte, 8)
		le.PutUint16(h, m.typ)
		le.PutUint16(h[2:], uint16(len(data)))
		body = append(body, h...)
		body = append(body, data...)
	}
	h := make([]byte, 16)
	h[0] = 1
	le.PutUint16(h[2:], uint16(len(msgs)))
	le.PutUint32(h[4:], 1)
	le.PutUint32(h[8:], uint32(len(body)))
	return w.put(append(h, body...))
}

func pad(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	le.PutUint64(b, v)
	return b
}

func attrMessages(attrs []Attr) []message {
	var out []message
	for _, a := range attrs {
		name := append([]byte(a.Name), 0)
		typ := stringType(len(a.Value))
		space := []byte{1, 0, 0, 0, 0, 0, 0, 0}
		m := []byte{1, 0}
		m = le.AppendUint16(m, uint16(len(name)))
		m = le.AppendUint16(m, uint16(len(typ)))
		m = le.AppendUint16(m, uint16(len(space)))
		m = append(m, pad(name)...)
		m = append(m, pad(typ)...)
		m = append(m, space...)
		m = append(m, a.Value...)
		out = append(out, message{0x000C, m})
	}
	return out
}

func stringType(n int) []byte {
	b := []byte{0x13, 0, 0, 0}
	return le.AppendUint32(b, uint32(n))
}

func float64Type() []byte {
	b := []byte{0x11, 0x20, 0x3f, 0, 8, 0, 0, 0}
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, 64)
	b = append(b, 52, 11, 0, 52)
	return le.AppendUint32(b, 1023)
}

func uintType(size int) []byte {
	b := []byte{0x10, 0, 0, 0}
	b = le.AppendUint32(b, uint32(size))
	b = le.AppendUint16(b, 0)
	return le.AppendUint16(b, uint16(8*size))
}

func complexType() []byte {
	b := []byte{0x16, 2, 0, 0, 16, 0, 0, 0}
	for i, name := range []string{"real", "imag"} {
		b = append(b, pad(append([]byte(name), 0))...)
		b = le.AppendUint32(b, uint32(8*i))
		b = append(b, make([]byte, 1+3+4+4+16)...)
		b = append(b, float64Type()...)
	}
	return b
}

func (d *Dataset) datatype() ([]byte, int) {
	switch d.Type {
	case Uint16:
		return uintType(2), 2
	case Uint8:
		return uintType(1), 1
	case Complex128:
		return complexType(), 16
	case Reference:
		return []byte{0x17, 0, 0, 0, 8, 0, 0, 0}, 8
	}
	return float64Type(), 8
}

func (w *writer) encode(d *Dataset) []byte {
	var out []byte
	switch d.Type {
	case Float64, Complex128:
		for _, v := range d.Data {
			out = le.AppendUint64(out, math.Float64bits(v))
		}
	case Uint16:
		for _, v := range d.Data {
			out = le.AppendUint16(out, uint16(v))
		}
	case Uint8:
		for _, v := range d.Data {
			out = append(out, uint8(v))
		}
	case Reference:
		for _, n := range d.Refs {
			out = le.AppendUint64(out, w.write(n))
		}
	}
	return out
}

func (w *writer) dataset(d *Dataset) uint64 {
	raw := w.encode(d)
	typ, size := d.datatype()

	space := []byte{1, byte(len(d.Dims)), 0, 0, 0, 0, 0, 0}
	for _, n := range d.Dims {
		space = le.AppendUint64(space, n)
	}

	msgs := []message{{0x0001, space}, {0x0003, typ}}
	if d.Chunked {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, _ = zw.Write(raw)
		_ = zw.Close()
		chunk := w.put(z.Bytes())

		rank := len(d.Dims) + 1
		node := []byte("TREE")
		node = append(node, 1, 0)
		node = le.AppendUint16(node, 1)
		node = append(node, u64(undef)...)
		node = append(node, u64(undef)...)
		node = le.AppendUint32(node, uint32(z.Len()))
		node = le.AppendUint32(node, 0)
		node = append(node, make([]byte, 8*rank)...)
		node = append(node, u64(chunk)...)
		node = le.AppendUint32(node, 0)
		node = le.AppendUint32(node, 0)
		for _, n := range d.Dims {
			node = append(node, u64(n)...)
		}
		node = append(node, make([]byte, 8)...)
		tree := w.put(node)

		layout := []byte{3, 2, byte(rank)}
		layout = append(layout, u64(tree)...)
		for _, n := range d.Dims {
			layout = le.AppendUint32(layout, uint32(n))
		}
		layout = le.AppendUint32(layout, uint32(size))
		msgs = append(msgs, message{0x0008, layout})

		filters := []byte{1, 1, 0, 0, 0, 0, 0, 0}
		filters = le.AppendUint16(filters, 1)
		filters = le.AppendUint16(filters, 8)
		filters = le.AppendUint16(filters, 0)
		filters = le.AppendUint16(filters, 1)
		filters = append(filters, "deflate\x00"...)
		filters = le.AppendUint32(filters, 6)
		filters = append(filters, 0, 0, 0, 0)
		msgs = append(msgs, message{0x000B, filters})
	} else {
		data := uint64(undef)
		if len(raw) > 0 {
			data = w.put(raw)
		}
		layout := []byte{3, 1}
		layout = append(layout, u64(data)...)
		layout = append(layout, u64(uint64(len(raw)))...)
		msgs = append(msgs, message{0x0008, layout})
	}
	msgs = append(msgs, attrMessages(d.Attrs)...)
	return w.header(msgs)
}

func (w *writer) group(g *Group) uint64 {
	addrs := make([]uint64, len(g.Members))
	for i, m := range g.Members {
		addrs[i] = w.write(m.Node)
	}
	var msgs []message
	if g.Links {
		for i, m := range g.Members {
			l := []byte{1, 0, byte(len(m.Name))}
			l = append(l, m.Name...)
			l = append(l, u64(addrs[i])...)
			msgs = append(msgs, message{0x0006, l})
		}
	} else {
		msgs = append(msgs, message{0x0011, w.symbolTable(g.Members, addrs)})
	}
	msgs = append(msgs, attrMessages(g.Attrs)...)
	return w.header(msgs)
}

func (w *writer) symbolTable(members []Member, addrs []uint64) []byte {
	heapData := make([]byte, 8)
	offsets := make([]uint64, len(members))
	for i, m := range members {
		offsets[i] = uint64(len(heapData))
		heapData = append(heapData, pad(append([]byte(m.Name), 0))...)
	}
	dataAddr := w.put(heapData)
	heap := []byte("HEAP")
	heap = append(heap, 0, 0, 0, 0)
	heap = append(heap, u64(uint64(len(heapData)))...)
	heap = append(heap, u64(undef)...)
	heap = append(heap, u64(dataAddr)...)
	heapAddr := w.put(heap)

	snod := []byte("SNOD")
	snod = append(snod, 1, 0)
	snod = le.AppendUint16(snod, uint16(len(members)))
	for i := range members {
		snod = append(snod, u64(offsets[i])...)
		snod = append(snod, u64(addrs[i])...)
		snod = append(snod, make([]byte, 4+4+16)...)
	}
	snodAddr := w.put(snod)

	last := uint64(0)
	if len(offsets) > 0 {
		last = offsets[len(offsets)-1]
	}
	tree := []byte("TREE")
	tree = append(tree, 0, 0)
	tree = le.AppendUint16(tree, 1)
	tree = append(tree, u64(undef)...)
	tree = append(tree, u64(undef)...)
	tree = append(tree, u64(0)...)
	tree = append(tree, u64(snodAddr)...)
	tree = append(tree, u64(last)...)
	treeAddr := w.put(tree)

	return append(u64(treeAddr), u64(heapAddr)...)
}
