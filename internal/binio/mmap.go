package binio

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var ErrFileTooLarge = errors.New("file too large to map")

// File is a read-only view of a payload file.
type File struct {
	Data    []byte
	Path    string
	mmapped bool
}

// Map maps a file read-only. If mmap is unavailable it falls back to
// reading the file with ReadAt. The returned file must be closed to
// release any mapping, and Data must not be retained after Close.
func Map(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, ErrFileTooLarge
	}
	size := int(size64)
	if size == 0 {
		// mmap rejects empty mappings
		return &File{Data: []byte{}, Path: path}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &File{Data: data, Path: path, mmapped: true}, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return &File{Data: data, Path: path}, nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

// Close releases the mapping.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.mmapped = false
	return err
}

// Bytes returns a copy of the mapped contents that outlives Close.
func (f *File) Bytes() []byte {
	out := make([]byte, len(f.Data))
	copy(out, f.Data)
	return out
}
