// Package hypercomplex holds multi-component complex sample arrays.
//
// An Array is a set of equally shaped complex buffers, each tagged with a
// bitmask naming the axes along which that component carries the
// imaginary (quadrature) part. Mask 0 is the ordinary complex data every
// array must have; a 2D States acquisition has masks 0 and 1<<0.
package hypercomplex

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrInvalidArray = errors.New("invalid hypercomplex array")
	ErrShape        = errors.New("shape mismatch")
)

// Component is one hypercomplex part of an Array, stored row-major.
type Component struct {
	Mask uint32
	Data []complex128
}

// Array is an N-dimensional hypercomplex sample buffer.
// The zero value is not usable; construct with New or Plain.
type Array struct {
	shape []int
	comps []Component
}

// New validates and builds an Array. Components are kept sorted by mask.
// The data slices are retained, not copied.
func New(shape []int, comps ...Component) (*Array, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrInvalidArray)
	}
	size := 1
	for i, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative length %d on axis %d", ErrInvalidArray, n, i)
		}
		size *= n
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrInvalidArray)
	}
	if len(shape) < 32 {
		// masks may only name existing axes
		allowed := uint32(1)<<uint(len(shape)) - 1
		for _, c := range comps {
			if c.Mask&^allowed != 0 {
				return nil, fmt.Errorf("%w: mask %#b names axes beyond %d dimensions", ErrInvalidArray, c.Mask, len(shape))
			}
		}
	}
	sorted := slices.Clone(comps)
	slices.SortFunc(sorted, func(a, b Component) int {
		switch {
		case a.Mask < b.Mask:
			return -1
		case a.Mask > b.Mask:
			return 1
		}
		return 0
	})
	for i, c := range sorted {
		if i > 0 && sorted[i-1].Mask == c.Mask {
			return nil, fmt.Errorf("%w: duplicate mask %#b", ErrInvalidArray, c.Mask)
		}
		if len(c.Data) != size {
			return nil, fmt.Errorf("%w: component %#b has %d samples, shape %v needs %d", ErrShape, c.Mask, len(c.Data), shape, size)
		}
	}
	if sorted[0].Mask != 0 {
		return nil, fmt.Errorf("%w: missing base component (mask 0)", ErrInvalidArray)
	}
	return &Array{shape: slices.Clone(shape), comps: sorted}, nil
}

// Plain wraps a single complex buffer as a non-hypercomplex Array.
func Plain(shape []int, data []complex128) (*Array, error) {
	return New(shape, Component{Mask: 0, Data: data})
}

// MustPlain is Plain for callers that have already sized data correctly.
func MustPlain(shape []int, data []complex128) *Array {
	a, err := Plain(shape, data)
	if err != nil {
		panic(err)
	}
	return a
}

// Shape returns a copy of the array dimensions.
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.shape) }

// Len returns the number of samples per component.
func (a *Array) Len() int { return product(a.shape) }

// Hyper reports whether the array carries more than the base component.
func (a *Array) Hyper() bool { return len(a.comps) > 1 }

// Masks returns the component masks in ascending order.
func (a *Array) Masks() []uint32 {
	out := make([]uint32, len(a.comps))
	for i, c := range a.comps {
		out[i] = c.Mask
	}
	return out
}

// Components returns the components in mask order. The slices are shared.
func (a *Array) Components() []Component { return slices.Clone(a.comps) }

// Component returns the data tagged with mask.
func (a *Array) Component(mask uint32) ([]complex128, bool) {
	for _, c := range a.comps {
		if c.Mask == mask {
			return c.Data, true
		}
	}
	return nil, false
}

// Base returns the mask 0 component.
func (a *Array) Base() []complex128 { return a.comps[0].Data }

// At returns the base sample at the given row-major index.
func (a *Array) At(idx ...int) complex128 {
	return a.comps[0].Data[a.offset(idx)]
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("hypercomplex: %d indices for %d dimensions", len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("hypercomplex: index %d out of range on axis %d", v, i))
		}
		off = off*a.shape[i] + v
	}
	return off
}

// Collapse returns a plain array holding only the base component.
func (a *Array) Collapse() *Array {
	return &Array{shape: slices.Clone(a.shape), comps: []Component{{Data: a.comps[0].Data}}}
}

// Clone deep-copies the array.
func (a *Array) Clone() *Array {
	comps := make([]Component, len(a.comps))
	for i, c := range a.comps {
		comps[i] = Component{Mask: c.Mask, Data: slices.Clone(c.Data)}
	}
	return &Array{shape: slices.Clone(a.shape), comps: comps}
}

func product(shape []int) int {
	n := 1
	for _, v := range shape {
		n *= v
	}
	return n
}

// split returns the row-major strides around axis: the number of outer
// blocks, the axis length and the contiguous run below it.
func split(shape []int, axis int) (outer, n, inner int) {
	outer = product(shape[:axis])
	inner = product(shape[axis+1:])
	return outer, shape[axis], inner
}

func (a *Array) checkAxis(axis int) error {
	if axis < 0 || axis >= len(a.shape) {
		return fmt.Errorf("%w: axis %d out of range for %d dimensions", ErrInvalidArray, axis, len(a.shape))
	}
	return nil
}
