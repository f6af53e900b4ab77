// Package matfile reads and writes MATLAB level 5 MAT-files, the format
// MATLAB uses for versions 5 through 7.
package matfile

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

var (
	ErrNotMAT      = errors.New("matfile: not a level 5 MAT-file")
	ErrHDF5        = errors.New("matfile: version 7.3 files are HDF5")
	ErrUnsupported = errors.New("matfile: unsupported content")
	ErrCorrupt     = errors.New("matfile: corrupt file")
)

// MaxNameLength is the longest struct field name MATLAB accepts.
const MaxNameLength = 63

// Class is a MATLAB array class.
type Class uint8

const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

func (c Class) String() string {
	switch c {
	case ClassCell:
		return "cell"
	case ClassStruct:
		return "struct"
	case ClassObject:
		return "object"
	case ClassChar:
		return "char"
	case ClassSparse:
		return "sparse"
	case ClassDouble:
		return "double"
	case ClassSingle:
		return "single"
	case ClassInt8:
		return "int8"
	case ClassUint8:
		return "uint8"
	case ClassInt16:
		return "int16"
	case ClassUint16:
		return "uint16"
	case ClassInt32:
		return "int32"
	case ClassUint32:
		return "uint32"
	case ClassInt64:
		return "int64"
	case ClassUint64:
		return "uint64"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Numeric reports whether arrays of the class hold numbers.
func (c Class) Numeric() bool { return c >= ClassDouble && c <= ClassUint64 }

// Array is one MATLAB value. Elements are stored in column-major order.
type Array struct {
	Name  string
	Class Class
	Dims  []int
	// Real holds numeric values, or UTF-16 code units for char arrays.
	Real []float64
	// Imag is non-nil for complex numeric arrays.
	Imag    []float64
	Logical bool
	// Cells holds the elements of a cell array.
	Cells []*Array
	// Fields names the fields of a struct array. Values holds one array
	// per field for each element, element by element.
	Fields []string
	Values []*Array
}

// Len returns the number of elements.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

func (a *Array) IsComplex() bool { return a.Imag != nil }

// NewDouble builds a double array. im may be nil.
func NewDouble(dims []int, re, im []float64) *Array {
	return &Array{Class: ClassDouble, Dims: dims, Real: re, Imag: im}
}

// NewRow builds a 1-by-n double row vector.
func NewRow(vals []float64) *Array { return NewDouble([]int{1, len(vals)}, vals, nil) }

func NewScalar(v float64) *Array { return NewRow([]float64{v}) }

// NewChar builds a 1-by-n char row.
func NewChar(s string) *Array {
	units := utf16.Encode([]rune(s))
	re := make([]float64, len(units))
	for i, u := range units {
		re[i] = float64(u)
	}
	return &Array{Class: ClassChar, Dims: []int{1, len(units)}, Real: re}
}

// NewCharMatrix builds a char matrix with one row per line, padding short
// lines with spaces.
func NewCharMatrix(lines []string) *Array {
	rows := make([][]uint16, len(lines))
	width := 0
	for i, l := range lines {
		rows[i] = utf16.Encode([]rune(l))
		width = max(width, len(rows[i]))
	}
	re := make([]float64, len(lines)*width)
	for c := range width {
		for r, row := range rows {
			u := uint16(' ')
			if c < len(row) {
				u = row[c]
			}
			re[c*len(lines)+r] = float64(u)
		}
	}
	return &Array{Class: ClassChar, Dims: []int{len(lines), width}, Real: re}
}

// NewCell builds a cell array.
func NewCell(dims []int, cells []*Array) *Array {
	return &Array{Class: ClassCell, Dims: dims, Cells: cells}
}

// NewStruct builds a 1-by-1 struct.
func NewStruct(fields []string, values []*Array) *Array {
	return &Array{Class: ClassStruct, Dims: []int{1, 1}, Fields: fields, Values: values}
}

// Field returns a field of a 1-by-1 struct, or nil.
func (a *Array) Field(name string) *Array {
	if a == nil || a.Class != ClassStruct || len(a.Values) < len(a.Fields) {
		return nil
	}
	for i, f := range a.Fields {
		if f == name {
			return a.Values[i]
		}
	}
	return nil
}

// Lines returns the rows of a char matrix with trailing spaces removed.
func (a *Array) Lines() []string {
	if a == nil || a.Class != ClassChar || len(a.Dims) != 2 {
		return nil
	}
	rows, cols := a.Dims[0], a.Dims[1]
	out := make([]string, rows)
	for r := range rows {
		units := make([]uint16, cols)
		for c := range cols {
			units[c] = uint16(a.Real[c*rows+r])
		}
		out[r] = strings.TrimRight(string(utf16.Decode(units)), " ")
	}
	return out
}

// String returns the text of a char array read column by column.
func (a *Array) String() string {
	if a == nil || a.Class != ClassChar {
		return ""
	}
	units := make([]uint16, len(a.Real))
	for i, v := range a.Real {
		units[i] = uint16(v)
	}
	return string(utf16.Decode(units))
}
