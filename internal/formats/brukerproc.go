package formats

import (
	"fmt"
	"path/filepath"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// brukerPart pairs a real and an imaginary processed file with the
// hypercomplex component they form.
type brukerPart struct {
	re, im string
	mask   uint32
}

// brukerParts lists the processed files per dimension. The letters name
// the direct dimension first, so the second letter of 2ri is the
// indirect axis 0.
var brukerParts = [][]brukerPart{
	{{"1r", "1i", 0}},
	{{"2rr", "2ir", 0}, {"2ri", "2ii", 1}},
	{
		{"3rrr", "3irr", 0},
		{"3rir", "3iir", 1 << 1},
		{"3rri", "3iri", 1 << 0},
		{"3rii", "3iii", 1<<1 | 1<<0},
	},
}

// LoadBrukerProcessed reads TopSpin processed data (1r, 2rr, 3rrr and
// their imaginary companions) from a pdata directory.
func LoadBrukerProcessed(path string, opt Options) (*spectrum.Spectrum, error) {
	dir := dirOf(path)
	var sets []params.Set
	for i, name := range []string{"procs", "proc2s", "proc3s"} {
		p := filepath.Join(dir, name)
		if i > 0 && !exists(p) {
			break
		}
		set, err := brukerParams(labelBrukerProc, p, opt.Skip)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	nd := len(sets)
	shape := make([]int, nd)
	block := make([]int, nd)
	axes := make([]spectrum.Axis, nd)
	for i, set := range sets {
		p := filepath.Join(dir, []string{"procs", "proc2s", "proc3s"}[i])
		si, err := requireInt(labelBrukerProc, p, set, "SI")
		if err != nil {
			return nil, err
		}
		sw, err := requireFloat(labelBrukerProc, p, set, "SW_p")
		if err != nil {
			return nil, err
		}
		sf, err := requireFloat(labelBrukerProc, p, set, "SF")
		if err != nil {
			return nil, err
		}
		if si <= 0 {
			return nil, malformed(labelBrukerProc, p, fmt.Errorf("SI %d", si))
		}
		offset, _ := set.Float("OFFSET")
		freq := sf * 1e6
		ref := freq + lastShiftedFreq(si, sw) - offset*1e-6*freq
		k := nd - 1 - i
		shape[k] = si
		block[k] = si
		if x, ok := set.Int("XDIM"); ok && x > 0 && si%x == 0 {
			block[k] = x
		}
		axes[k] = spectrum.Axis{Freq: freq, SW: sw, Spec: true, Ref: spectrum.Float(ref)}
	}
	order := brukerOrder(sets[0], "BYTORDP")
	typ, err := brukerType(labelBrukerProc, dir, sets[0], "DTYPP")
	if err != nil {
		return nil, err
	}
	total := product(shape)

	read := func(name string) ([]float64, string, error) {
		p := filepath.Join(dir, name)
		raw, sum, err := payload(labelBrukerProc, p)
		if err != nil {
			return nil, "", err
		}
		need, _ := binio.Product(total, typ.Size())
		if len(raw) < need {
			return nil, "", truncated(labelBrukerProc, p, need, len(raw))
		}
		return binio.Decode(raw[:need], typ, order), sum, nil
	}

	var (
		comps    []hypercomplex.Component
		sum      string
		dataPath string
	)
	for _, part := range brukerParts[nd-1] {
		if !exists(filepath.Join(dir, part.re)) {
			continue
		}
		re, digestHex, err := read(part.re)
		if err != nil {
			return nil, err
		}
		var samples []complex128
		if exists(filepath.Join(dir, part.im)) {
			im, _, err := read(part.im)
			if err != nil {
				return nil, err
			}
			samples = split(re, im)
		} else {
			samples = reals(re)
		}
		if nd > 1 {
			samples = untile(samples, shape, block)
		}
		// stored from high to low frequency on every axis
		reverseComplex(samples)
		if part.mask == 0 {
			sum, dataPath = digestHex, filepath.Join(dir, part.re)
		}
		comps = append(comps, hypercomplex.Component{Mask: part.mask, Data: samples})
	}
	if dataPath == "" {
		return nil, missing(labelBrukerProc, dir, brukerParts[nd-1][0].re)
	}
	data, err := hypercomplex.New(shape, comps...)
	if err != nil {
		return nil, malformed(labelBrukerProc, dir, err)
	}

	s, err := build(labelBrukerProc, dataPath, sum, data, axes)
	if err != nil {
		return nil, err
	}
	acqus := filepath.Join(dir, "..", "..", "acqus")
	if exists(acqus) {
		if set, err := brukerParams(labelBrukerProc, acqus, opt.Skip); err == nil {
			brukerMeta(s, set)
		}
	}
	return s, nil
}
