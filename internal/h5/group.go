package h5

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/samcharles93/specio/internal/binio"
)

// Link names one member of a group.
type Link struct {
	Name string
	Addr uint64
}

// Links lists the hard links of a group in storage order.
func (o *Object) Links() ([]Link, error) {
	var out []Link
	for _, m := range o.msgs {
		switch m.typ {
		case msgSymbolTable:
			links, err := o.symbolTable(m.data)
			if err != nil {
				return nil, err
			}
			out = append(out, links...)
		case msgLink:
			l, ok, err := o.f.parseLink(m.data)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, l)
			}
		case msgLinkInfo:
			if err := o.f.checkCompactLinks(m.data); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Child opens the member of a group with the given name.
func (o *Object) Child(name string) (*Object, error) {
	links, err := o.Links()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Name == name {
			return o.f.Object(l.Addr)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Lookup walks a slash-separated path from o.
func (o *Object) Lookup(path string) (*Object, error) {
	cur := o
	for _, part := range bytes.Split([]byte(path), []byte("/")) {
		if len(part) == 0 {
			continue
		}
		next, err := cur.Child(string(part))
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (f *File) parseLink(b []byte) (Link, bool, error) {
	r := binio.NewReader(b, binary.LittleEndian)
	version, _ := r.U8()
	if version != 1 {
		return Link{}, false, fmt.Errorf("%w: link message version %d", ErrUnsupported, version)
	}
	flags, err := r.U8()
	if err != nil {
		return Link{}, false, fmt.Errorf("%w: link message: %v", ErrCorrupt, err)
	}
	var kind uint8
	if flags&0x08 != 0 {
		kind, _ = r.U8()
	}
	if flags&0x04 != 0 {
		_ = r.Skip(8) // creation order
	}
	if flags&0x10 != 0 {
		_ = r.Skip(1) // character set
	}
	n, err := r.Uint(1 << (flags & 0x03))
	if err != nil {
		return Link{}, false, fmt.Errorf("%w: link message: %v", ErrCorrupt, err)
	}
	name, err := r.ReadN(int(n))
	if err != nil {
		return Link{}, false, fmt.Errorf("%w: link name: %v", ErrCorrupt, err)
	}
	if kind != 0 {
		// soft and external links point outside this reader's reach
		return Link{}, false, nil
	}
	addr, err := f.offset(r)
	if err != nil {
		return Link{}, false, fmt.Errorf("%w: link address: %v", ErrCorrupt, err)
	}
	return Link{Name: string(name), Addr: addr}, true, nil
}

// checkCompactLinks rejects groups whose links live in a fractal heap.
func (f *File) checkCompactLinks(b []byte) error {
	r := binio.NewReader(b, binary.LittleEndian)
	if _, err := r.U8(); err != nil {
		return fmt.Errorf("%w: link info: %v", ErrCorrupt, err)
	}
	flags, _ := r.U8()
	if flags&0x01 != 0 {
		_ = r.Skip(8)
	}
	heap, err := f.offset(r)
	if err != nil {
		return fmt.Errorf("%w: link info: %v", ErrCorrupt, err)
	}
	if !f.undefined(heap) {
		return fmt.Errorf("%w: dense link storage", ErrUnsupported)
	}
	return nil
}

func (o *Object) symbolTable(b []byte) ([]Link, error) {
	f := o.f
	r := binio.NewReader(b, binary.LittleEndian)
	tree, err := f.offset(r)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol table: %v", ErrCorrupt, err)
	}
	heapAddr, err := f.offset(r)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol table: %v", ErrCorrupt, err)
	}
	heap, err := f.localHeap(heapAddr)
	if err != nil {
		return nil, err
	}
	var out []Link
	err = f.walkTree(tree, 0, f.lsize, func(child uint64, _ []byte) error {
		links, err := f.symbolNode(child, heap)
		out = append(out, links...)
		return err
	})
	return out, err
}

// localHeap returns the data segment of a local heap.
func (f *File) localHeap(addr uint64) ([]byte, error) {
	r, err := f.at(addr)
	if err != nil {
		return nil, err
	}
	if err := signature(r, "HEAP"); err != nil {
		return nil, err
	}
	if err := r.Skip(4); err != nil { // version and reserved
		return nil, err
	}
	size, err := f.length(r)
	if err != nil {
		return nil, fmt.Errorf("%w: local heap: %v", ErrCorrupt, err)
	}
	if _, err := f.length(r); err != nil { // free list head
		return nil, fmt.Errorf("%w: local heap: %v", ErrCorrupt, err)
	}
	data, err := f.offset(r)
	if err != nil {
		return nil, fmt.Errorf("%w: local heap: %v", ErrCorrupt, err)
	}
	return f.bytesAt(data, int(size))
}

func heapString(heap []byte, off uint64) (string, error) {
	if off >= uint64(len(heap)) {
		return "", fmt.Errorf("%w: heap offset %d outside %d-byte heap", ErrCorrupt, off, len(heap))
	}
	s := heap[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}

// walkTree visits the leaf children of a version 1 B-tree of the given
// node type. Keys are passed raw; their layout depends on the node type.
func (f *File) walkTree(addr uint64, nodeType uint8, keySize int, visit func(child uint64, key []byte) error) error {
	r, err := f.at(addr)
	if err != nil {
		return err
	}
	if err := signature(r, "TREE"); err != nil {
		return err
	}
	typ, _ := r.U8()
	if typ != nodeType {
		return fmt.Errorf("%w: B-tree node type %d, want %d", ErrCorrupt, typ, nodeType)
	}
	level, _ := r.U8()
	entries, err := r.U16()
	if err != nil {
		return fmt.Errorf("%w: B-tree node: %v", ErrCorrupt, err)
	}
	if err := r.Skip(2 * f.osize); err != nil { // siblings
		return fmt.Errorf("%w: B-tree node: %v", ErrCorrupt, err)
	}
	for range entries {
		key, err := r.ReadN(keySize)
		if err != nil {
			return fmt.Errorf("%w: B-tree key: %v", ErrCorrupt, err)
		}
		child, err := f.offset(r)
		if err != nil {
			return fmt.Errorf("%w: B-tree child: %v", ErrCorrupt, err)
		}
		if level > 0 {
			err = f.walkTree(child, nodeType, keySize, visit)
		} else {
			err = visit(child, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Symbol table entries are a link name offset, an object header address,
// a cache type, four reserved bytes and sixteen bytes of scratch space.
func (f *File) symbolNode(addr uint64, heap []byte) ([]Link, error) {
	r, err := f.at(addr)
	if err != nil {
		return nil, err
	}
	if err := signature(r, "SNOD"); err != nil {
		return nil, err
	}
	if err := r.Skip(2); err != nil { // version and reserved
		return nil, err
	}
	n, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: symbol node: %v", ErrCorrupt, err)
	}
	out := make([]Link, 0, n)
	for range n {
		nameOff, err := f.offset(r)
		if err != nil {
			return nil, fmt.Errorf("%w: symbol entry: %v", ErrCorrupt, err)
		}
		obj, err := f.offset(r)
		if err != nil {
			return nil, fmt.Errorf("%w: symbol entry: %v", ErrCorrupt, err)
		}
		if err := r.Skip(4 + 4 + 16); err != nil {
			return nil, fmt.Errorf("%w: symbol entry: %v", ErrCorrupt, err)
		}
		name, err := heapString(heap, nameOff)
		if err != nil {
			return nil, err
		}
		out = append(out, Link{Name: name, Addr: obj})
	}
	return out, nil
}
