package formats

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// JEOL Delta header offsets. Header fields are big-endian; the sample
// order is given by the endian byte.
const (
	jeolHeaderSize  = 1296
	jeolEndian      = 8
	jeolNDim        = 12
	jeolDataType    = 24
	jeolUnits       = 32
	jeolPoints      = 176
	jeolDataStop    = 240
	jeolAxisStart   = 272
	jeolAxisStop    = 336
	jeolBaseFreq    = 1064
	jeolParamStart  = 1212
	jeolParamLength = 1216
	jeolReadStart   = 1284
)

// JEOL axis unit types.
const (
	jeolUnitSec = 28
	jeolUnitHz  = 13
	jeolUnitPPM = 26
)

// JEOL data types per dimension.
const (
	jeolReal    = 1
	jeolComplex = 3
	jeolRealCx  = 4
)

type jeolHeader struct {
	ndim                          int
	order                         binary.ByteOrder
	dataType                      [8]byte
	unitScale, unitType           [8]byte
	points, dataStop              [8]int
	axisStart, axisStop, baseFreq [8]float64
	paramStart, paramLength       int
	readStart                     int
}

func readJEOLHeader(b []byte) (jeolHeader, error) {
	var h jeolHeader
	if len(b) < jeolHeaderSize {
		return h, fmt.Errorf("header needs %d bytes, have %d", jeolHeaderSize, len(b))
	}
	be := binary.BigEndian
	h.order = binary.BigEndian
	if b[jeolEndian] == 1 {
		h.order = binary.LittleEndian
	}
	h.ndim = int(b[jeolNDim])
	copy(h.dataType[:], b[jeolDataType:jeolDataType+8])
	for i := range 8 {
		h.unitScale[i] = b[jeolUnits+2*i]
		h.unitType[i] = b[jeolUnits+2*i+1]
		h.points[i] = int(be.Uint32(b[jeolPoints+4*i:]))
		h.dataStop[i] = int(be.Uint32(b[jeolDataStop+4*i:]))
	}
	start := binio.Decode(b[jeolAxisStart:jeolAxisStart+64], binio.Float64, be)
	stop := binio.Decode(b[jeolAxisStop:jeolAxisStop+64], binio.Float64, be)
	base := binio.Decode(b[jeolBaseFreq:jeolBaseFreq+64], binio.Float64, be)
	copy(h.axisStart[:], start)
	copy(h.axisStop[:], stop)
	copy(h.baseFreq[:], base)
	h.paramStart = int(be.Uint32(b[jeolParamStart:]))
	h.paramLength = int(be.Uint32(b[jeolParamLength:]))
	h.readStart = int(be.Uint32(b[jeolReadStart:]))
	if h.ndim < 1 || h.ndim > 8 {
		return h, fmt.Errorf("dimension count %d", h.ndim)
	}
	return h, nil
}

// axis derives the metadata of header dimension i.
func (h jeolHeader) axis(path string, i int) (spectrum.Axis, error) {
	base := h.baseFreq[i]
	n := h.dataStop[i] + 1
	ax := spectrum.Axis{Freq: base * 1e6}
	switch h.unitType[i] {
	case jeolUnitSec:
		dw := (h.axisStop[i] - h.axisStart[i]) / float64(h.dataStop[i]) * params.JEOLUnitScale(h.unitScale[i])
		ax.SW = 1 / dw
		ax.Ref = spectrum.Float(base * 1e6)
	case jeolUnitHz:
		ax.Spec = true
		ax.SW = math.Abs(h.axisStart[i] - h.axisStop[i])
		ax.Ref = spectrum.Float(Reference(base*1e6, ax.SW, h.axisStop[i], n))
	case jeolUnitPPM:
		ax.Spec = true
		ax.SW = math.Abs(h.axisStart[i]-h.axisStop[i]) * base
		ax.Ref = spectrum.Float(Reference(base*1e6, ax.SW, h.axisStop[i]*base, n))
	default:
		return ax, unsupported(labelJEOL, path, "axis unit %d", h.unitType[i])
	}
	return ax, nil
}

// LoadJEOL reads a JEOL Delta .jdf file: 1D real or complex data, 2D
// real-complex data in 4x4 sub-matrices, or 2D hypercomplex data in 32x32
// sub-matrices.
func LoadJEOL(path string, opt Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelJEOL, path)
	if err != nil {
		return nil, err
	}
	h, err := readJEOLHeader(raw)
	if err != nil {
		return nil, malformed(labelJEOL, path, err)
	}
	nd := h.ndim
	if nd > 2 {
		return nil, unsupported(labelJEOL, path, "%d dimensions", nd)
	}

	var pars params.Set
	if start, end := h.paramStart+16, h.paramStart+16+h.paramLength; h.paramLength > 0 && end <= len(raw) {
		pars = params.ParseJEOL(raw[start:end], opt.Skip)
	}

	t0, t1 := h.dataType[0], h.dataType[1]
	var (
		mode  string
		parts int
	)
	switch {
	case nd == 1 && t0 == jeolReal:
		mode, parts = "real", 1
	case nd == 1 && (t0 == jeolComplex || t0 == jeolRealCx):
		mode, parts = "complex", 2
	case nd == 2 && (t0 == jeolRealCx || (t0 == jeolComplex && t1 == jeolReal)):
		mode, parts = "realcomplex", 2
	case nd == 2 && t0 == jeolComplex && t1 == jeolComplex:
		mode, parts = "hyper", 4
	default:
		return nil, unsupported(labelJEOL, path, "data types %v", h.dataType[:nd])
	}
	dims := []int{h.points[0], parts}
	if nd == 2 {
		dims = append(dims, h.points[1])
	}
	load, _ := binio.Product(dims...)
	loadBytes, _ := binio.Product(load, 8)
	if need := binio.Sum(h.readStart, loadBytes); need > len(raw) {
		return nil, truncated(labelJEOL, path, need, len(raw))
	}
	vals, err := binio.DecodeN(raw, h.readStart, load, binio.Float64, h.order)
	if err != nil {
		return nil, malformed(labelJEOL, path, err)
	}

	var data *hypercomplex.Array
	switch mode {
	case "real":
		data, err = hypercomplex.Plain([]int{load}, reals(vals))
	case "complex":
		data, err = hypercomplex.Plain([]int{load / 2}, split(vals[:load/2], vals[load/2:]))
	case "realcomplex":
		shape := []int{h.points[1], h.points[0]}
		samples := untile(split(vals[:load/2], vals[load/2:]), shape, []int{4, 4})
		data, err = hypercomplex.Plain(shape, samples)
	case "hyper":
		shape := []int{h.points[1], h.points[0]}
		q := load / 4
		block := []int{32, 32}
		re := untile(split(vals[:q], vals[q:2*q]), shape, block)
		im := untile(split(vals[2*q:3*q], vals[3*q:]), shape, block)
		data, err = hypercomplex.New(shape,
			hypercomplex.Component{Mask: 0, Data: re},
			hypercomplex.Component{Mask: 1, Data: im},
		)
	}
	if err != nil {
		return nil, malformed(labelJEOL, path, err)
	}

	axes := make([]spectrum.Axis, nd)
	for k := range nd {
		i := nd - 1 - k
		if data, err = data.Slice(k, min(h.dataStop[i]+1, data.Shape()[k])); err != nil {
			return nil, malformed(labelJEOL, path, err)
		}
		if axes[k], err = h.axis(path, i); err != nil {
			return nil, err
		}
	}
	if d, ok := params.JEOLFilterDelay(pars); ok {
		axes[nd-1].DFilter = spectrum.Float(d)
	}
	if data, err = flipSpectral(data, axes); err != nil {
		return nil, err
	}

	s, err := build(labelJEOL, path, sum, data, axes)
	if err != nil {
		return nil, err
	}
	copyMeta(s, pars, map[string]string{
		spectrum.MetaScans:           "scans",
		spectrum.MetaExperiment:      "experiment",
		spectrum.MetaReceiverGain:    "recvr_gain",
		spectrum.MetaRecycleDelay:    "relaxation_delay",
		spectrum.MetaAcquisitionTime: "x_acq_time",
	})
	return s, nil
}
