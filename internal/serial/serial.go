// Package serial persists spectra as JSON documents and MATLAB MAT-files
// and reads them back, including files written by earlier tools.
//
// A round trip is not exact in two places. Both containers always store
// coordinates, so an axis without an explicit XAxis reads back with its
// default coordinates filled in. They hold a single dFilter value, which
// is written from the first axis that has one and read back onto the last
// axis.
package serial

import (
	"fmt"
	"math"

	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// Container names used in schema errors and history entries.
const (
	ContainerJSON = "JSON"
	ContainerMAT  = "Matlab"
)

func schemaMissing(container, field string) error {
	return &spectrum.SchemaError{Container: container, Field: field}
}

func schemaBad(container, field, format string, args ...any) error {
	return &spectrum.SchemaError{Container: container, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// record is the container-neutral form of a persisted spectrum. Data is
// row-major over [len(masks), shape...].
type record struct {
	masks     []uint32
	shape     []int
	re, im    []float64
	freq, sw  []float64
	spec      []bool
	wholeEcho []bool
	ref       []float64
	xax       [][]float64
	history   []string
	meta      map[string]string
	dFilter   *float64
}

// flatten captures a spectrum in container-neutral form. Axes without
// explicit coordinates are written with their default ones.
func flatten(s *spectrum.Spectrum) *record {
	comps := s.Data.Components()
	n := s.Data.Len()
	r := &record{
		shape:   s.Shape(),
		re:      make([]float64, 0, n*len(comps)),
		im:      make([]float64, 0, n*len(comps)),
		history: s.History,
		meta:    s.Meta,
	}
	for _, c := range comps {
		r.masks = append(r.masks, c.Mask)
		for _, v := range c.Data {
			r.re = append(r.re, real(v))
			r.im = append(r.im, imag(v))
		}
	}
	for i, ax := range s.Axes {
		r.freq = append(r.freq, ax.Freq)
		r.sw = append(r.sw, ax.SW)
		r.spec = append(r.spec, ax.Spec)
		r.wholeEcho = append(r.wholeEcho, ax.WholeEcho)
		ref := math.NaN()
		if ax.Ref != nil {
			ref = *ax.Ref
		}
		r.ref = append(r.ref, ref)
		r.xax = append(r.xax, s.XAxisOrDefault(i))
		if ax.DFilter != nil && r.dFilter == nil {
			r.dFilter = spectrum.Float(*ax.DFilter)
		}
	}
	return r
}

// build validates a decoded record and turns it into a spectrum. The
// digital filter delay is attached to the last axis.
func (r *record) build(container, path string) (*spectrum.Spectrum, error) {
	ndim := len(r.shape)
	if ndim == 0 {
		return nil, schemaBad(container, "data", "no dimensions")
	}
	for _, f := range []struct {
		name string
		n    int
	}{
		{"freq", len(r.freq)}, {"sw", len(r.sw)}, {"spec", len(r.spec)}, {"ref", len(r.ref)},
	} {
		if f.n != ndim {
			return nil, schemaBad(container, f.name, "has %d entries for %d dimensions", f.n, ndim)
		}
	}
	n := 1
	for _, d := range r.shape {
		n *= d
	}
	if len(r.re) != n*len(r.masks) || len(r.im) != len(r.re) {
		return nil, schemaBad(container, "data", "holds %d values, shape %v with %d components needs %d", len(r.re), r.shape, len(r.masks), n*len(r.masks))
	}
	comps := make([]hypercomplex.Component, len(r.masks))
	for c, m := range r.masks {
		d := make([]complex128, n)
		for i := range d {
			d[i] = complex(r.re[c*n+i], r.im[c*n+i])
		}
		comps[c] = hypercomplex.Component{Mask: m, Data: d}
	}
	data, err := hypercomplex.New(r.shape, comps...)
	if err != nil {
		return nil, schemaBad(container, "hyper", "%v", err)
	}
	axes := make([]spectrum.Axis, ndim)
	for i := range axes {
		ax := spectrum.Axis{Freq: r.freq[i], SW: r.sw[i], Spec: r.spec[i]}
		if i < len(r.wholeEcho) {
			ax.WholeEcho = r.wholeEcho[i]
		}
		if !math.IsNaN(r.ref[i]) {
			ax.Ref = spectrum.Float(r.ref[i])
		}
		if i < len(r.xax) && len(r.xax[i]) == r.shape[i] {
			ax.XAxis = r.xax[i]
		}
		axes[i] = ax
	}
	if r.dFilter != nil {
		axes[ndim-1].DFilter = r.dFilter
	}
	s, err := spectrum.New(data, axes)
	if err != nil {
		return nil, err
	}
	s.History = append(s.History, r.history...)
	for k, v := range r.meta {
		s.SetMeta(k, v)
	}
	s.AddHistory("%s data loaded from %s", container, path)
	return s, nil
}
