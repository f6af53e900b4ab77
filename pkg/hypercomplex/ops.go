package hypercomplex

import (
	"fmt"
	"slices"
)

// Reshape reinterprets the array under new dimensions of equal size.
// Masks naming axes that no longer exist are rejected.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if product(shape) != a.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShape, a.shape, shape)
	}
	return New(shape, a.comps...)
}

// Reverse flips every component along axis.
func (a *Array) Reverse(axis int) (*Array, error) {
	if err := a.checkAxis(axis); err != nil {
		return nil, err
	}
	outer, n, inner := split(a.shape, axis)
	comps := make([]Component, len(a.comps))
	for ci, c := range a.comps {
		out := make([]complex128, len(c.Data))
		for o := 0; o < outer; o++ {
			base := o * n * inner
			for i := 0; i < n; i++ {
				src := base + i*inner
				dst := base + (n-1-i)*inner
				copy(out[dst:dst+inner], c.Data[src:src+inner])
			}
		}
		comps[ci] = Component{Mask: c.Mask, Data: out}
	}
	return &Array{shape: slices.Clone(a.shape), comps: comps}, nil
}

// Slice keeps the first n samples along axis.
func (a *Array) Slice(axis, n int) (*Array, error) {
	if err := a.checkAxis(axis); err != nil {
		return nil, err
	}
	if n < 0 || n > a.shape[axis] {
		return nil, fmt.Errorf("%w: cannot keep %d of %d samples on axis %d", ErrShape, n, a.shape[axis], axis)
	}
	outer, full, inner := split(a.shape, axis)
	shape := slices.Clone(a.shape)
	shape[axis] = n
	comps := make([]Component, len(a.comps))
	for ci, c := range a.comps {
		out := make([]complex128, 0, outer*n*inner)
		for o := 0; o < outer; o++ {
			start := o * full * inner
			out = append(out, c.Data[start:start+n*inner]...)
		}
		comps[ci] = Component{Mask: c.Mask, Data: out}
	}
	return &Array{shape: shape, comps: comps}, nil
}

// Deinterleave splits alternating samples along axis into two components.
// Even positions keep their mask; odd positions gain bit 1<<axis. The axis
// length halves. Applying it to several axes in turn yields the full
// hypercomplex set for those axes.
func (a *Array) Deinterleave(axis int) (*Array, error) {
	if err := a.checkAxis(axis); err != nil {
		return nil, err
	}
	if axis >= 32 {
		return nil, fmt.Errorf("%w: axis %d cannot be tagged", ErrInvalidArray, axis)
	}
	bit := uint32(1) << uint(axis)
	outer, n, inner := split(a.shape, axis)
	if n%2 != 0 {
		return nil, fmt.Errorf("%w: axis %d has odd length %d", ErrShape, axis, n)
	}
	half := n / 2
	shape := slices.Clone(a.shape)
	shape[axis] = half
	comps := make([]Component, 0, 2*len(a.comps))
	for _, c := range a.comps {
		if c.Mask&bit != 0 {
			return nil, fmt.Errorf("%w: axis %d is already hypercomplex", ErrInvalidArray, axis)
		}
		even := make([]complex128, 0, outer*half*inner)
		odd := make([]complex128, 0, outer*half*inner)
		for o := 0; o < outer; o++ {
			base := o * n * inner
			for i := 0; i < n; i++ {
				row := c.Data[base+i*inner : base+(i+1)*inner]
				if i%2 == 0 {
					even = append(even, row...)
				} else {
					odd = append(odd, row...)
				}
			}
		}
		comps = append(comps, Component{Mask: c.Mask, Data: even}, Component{Mask: c.Mask | bit, Data: odd})
	}
	return New(shape, comps...)
}

// Stack inserts a new leading axis of length one.
func (a *Array) Stack() *Array {
	shape := append([]int{1}, a.shape...)
	comps := make([]Component, len(a.comps))
	for i, c := range a.comps {
		// existing axes move up by one
		comps[i] = Component{Mask: c.Mask << 1, Data: c.Data}
	}
	return &Array{shape: shape, comps: comps}
}

// Concat joins arrays along axis 0. All arrays must share masks and the
// trailing dimensions.
func Concat(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrInvalidArray)
	}
	first := arrays[0]
	shape := slices.Clone(first.shape)
	masks := first.Masks()
	for _, b := range arrays[1:] {
		if !slices.Equal(b.shape[1:], first.shape[1:]) || len(b.shape) != len(first.shape) {
			return nil, fmt.Errorf("%w: cannot concatenate %v with %v", ErrShape, b.shape, first.shape)
		}
		if !slices.Equal(b.Masks(), masks) {
			return nil, fmt.Errorf("%w: component masks %v differ from %v", ErrShape, b.Masks(), masks)
		}
		shape[0] += b.shape[0]
	}
	comps := make([]Component, len(masks))
	for ci, m := range masks {
		out := make([]complex128, 0, product(shape))
		for _, b := range arrays {
			d, _ := b.Component(m)
			out = append(out, d...)
		}
		comps[ci] = Component{Mask: m, Data: out}
	}
	return &Array{shape: shape, comps: comps}, nil
}
