// Package h5 reads the subset of HDF5 that MATLAB v7.3 files are made of:
// symbol-table and link-message groups, contiguous, compact and chunked
// datasets with the deflate and shuffle filters, and numeric, string,
// compound and reference types.
package h5

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/samcharles93/specio/internal/binio"
)

var (
	ErrNotHDF5     = errors.New("h5: not an HDF5 file")
	ErrUnsupported = errors.New("h5: unsupported feature")
	ErrCorrupt     = errors.New("h5: corrupt file")
	ErrNotFound    = errors.New("h5: object not found")
)

// Signature is the eight-byte HDF5 format signature.
var Signature = []byte("\x89HDF\r\n\x1a\n")

// File is an HDF5 file held in memory.
type File struct {
	buf   []byte
	base  uint64
	osize int
	lsize int
	root  uint64
}

// ReadFile loads and opens the file at path.
func ReadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Open(b)
}

// Open parses the superblock of an in-memory file. The superblock may sit
// after a user block at offset 512, 1024, 2048 and so on.
func Open(b []byte) (*File, error) {
	for off := 0; off+len(Signature) <= len(b); {
		if bytes.Equal(b[off:off+len(Signature)], Signature) {
			return openAt(b, off)
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return nil, ErrNotHDF5
}

func openAt(b []byte, off int) (*File, error) {
	r := binio.NewReader(b, binary.LittleEndian)
	if err := r.Seek(off + len(Signature)); err != nil {
		return nil, err
	}
	version, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
	}
	f := &File{buf: b, base: uint64(off)}
	switch version {
	case 0, 1:
		if err := r.Skip(4); err != nil { // free-space, root table, reserved, shared header versions
			return nil, err
		}
		o, _ := r.U8()
		l, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
		f.osize, f.lsize = int(o), int(l)
		skip := 1 + 2 + 2 + 4 // reserved, leaf K, internal K, flags
		if version == 1 {
			skip += 4
		}
		if err := r.Skip(skip); err != nil {
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
		// base, free-space, end-of-file and driver addresses
		if err := r.Skip(4 * f.osize); err != nil {
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
		if _, err := f.offset(r); err != nil { // root link name
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
		if f.root, err = f.offset(r); err != nil {
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
	case 2, 3:
		o, _ := r.U8()
		l, _ := r.U8()
		if _, err := r.U8(); err != nil { // flags
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
		f.osize, f.lsize = int(o), int(l)
		// base, extension and end-of-file addresses
		if err := r.Skip(3 * f.osize); err != nil {
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
		if f.root, err = f.offset(r); err != nil {
			return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupt, err)
		}
	default:
		return nil, fmt.Errorf("%w: superblock version %d", ErrUnsupported, version)
	}
	if !validWidth(f.osize) || !validWidth(f.lsize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrCorrupt, f.osize, f.lsize)
	}
	return f, nil
}

func validWidth(n int) bool { return n == 2 || n == 4 || n == 8 }

// Root returns the root group.
func (f *File) Root() (*Object, error) { return f.Object(f.root) }

// undefined reports the all-ones address HDF5 uses for "not allocated".
func (f *File) undefined(addr uint64) bool {
	return addr == uint64(1)<<(8*uint(f.osize))-1
}

// at returns a reader positioned at a file-relative address.
func (f *File) at(addr uint64) (*binio.Reader, error) {
	abs := f.base + addr
	if f.undefined(addr) || abs > uint64(len(f.buf)) {
		return nil, fmt.Errorf("%w: address %#x outside file", ErrCorrupt, addr)
	}
	r := binio.NewReader(f.buf, binary.LittleEndian)
	if err := r.Seek(int(abs)); err != nil {
		return nil, err
	}
	return r, nil
}

// bytesAt returns n bytes at a file-relative address.
func (f *File) bytesAt(addr uint64, n int) ([]byte, error) {
	r, err := f.at(addr)
	if err != nil {
		return nil, err
	}
	b, err := r.ReadN(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes at %#x: %v", ErrCorrupt, n, addr, err)
	}
	return b, nil
}

func (f *File) offset(r *binio.Reader) (uint64, error) { return r.Uint(f.osize) }

func (f *File) length(r *binio.Reader) (uint64, error) { return r.Uint(f.lsize) }

// signature checks a four-byte block signature at the reader position.
func signature(r *binio.Reader, want string) error {
	got, err := r.String(4)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, want, err)
	}
	if got != want {
		return fmt.Errorf("%w: expected %s signature, found %q", ErrCorrupt, want, got)
	}
	return nil
}
