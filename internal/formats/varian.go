package formats

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

const (
	varianFileHeader  = 32
	varianBlockHeader = 28
)

// Varian file header status bits.
const (
	varianSpec    = 1 << 1
	varianInt32   = 1 << 2
	varianFloat   = 1 << 3
	varianHyper   = 1 << 5
	varianFlipped = 1 << 9
)

type varianHeader struct {
	nblocks, ntraces, npoints int
	ebytes, tbytes, bbytes    int
	status                    uint16
	nbheaders                 int
}

func readVarianHeader(b []byte) (varianHeader, error) {
	r := binio.NewReader(b, binary.BigEndian)
	var h varianHeader
	vals := make([]int32, 6)
	for i := range vals {
		v, err := r.I32()
		if err != nil {
			return h, err
		}
		vals[i] = v
	}
	h.nblocks, h.ntraces, h.npoints = int(vals[0]), int(vals[1]), int(vals[2])
	h.ebytes, h.tbytes, h.bbytes = int(vals[3]), int(vals[4]), int(vals[5])
	if _, err := r.U16(); err != nil { // vers_id
		return h, err
	}
	status, err := r.U16()
	if err != nil {
		return h, err
	}
	h.status = status
	nb, err := r.I32()
	if err != nil {
		return h, err
	}
	h.nbheaders = int(nb)
	return h, nil
}

// LoadVarian reads a Varian/Agilent fid or processed data directory.
func LoadVarian(path string, opt Options) (*spectrum.Spectrum, error) {
	dir := dirOf(path)
	parPath := filepath.Join(dir, "procpar")
	if !exists(parPath) {
		parPath = filepath.Join(dir, "..", "procpar")
	}
	pars, err := readParams(labelVarian, parPath, func(f *os.File) (params.Set, error) {
		return params.ParseVarian(f, opt.Skip)
	})
	if err != nil {
		return nil, err
	}
	sfrq, ok := pars.Float("sfrq")
	if !ok {
		return nil, missing(labelVarian, parPath, "sfrq")
	}
	sw, ok := pars.Float("sw")
	if !ok {
		return nil, missing(labelVarian, parPath, "sw")
	}
	freq := sfrq * 1e6
	var ref *float64
	if v, ok := pars.Float("reffrq"); ok {
		ref = spectrum.Float(v * 1e6)
	}
	rp, hasRP := pars.Float("rp")
	phfid, hasPhfid := pars.Float("phfid")

	indirect := spectrum.Axis{SW: 1}
	if sw1, ok := pars.Float("sw1"); ok {
		indirect.SW = sw1
		src := "dfrq"
		if v, ok := pars.String("refsource1"); ok {
			src = v
		}
		if v, ok := pars.Float(src); ok {
			indirect.Freq = v * 1e6
		}
		if v, ok := pars.Float("reffrq1"); ok {
			indirect.Ref = spectrum.Float(v * 1e6)
		}
	}

	dataPath := filepath.Join(dir, "fid")
	if !exists(dataPath) {
		dataPath = filepath.Join(dir, "data")
	}
	raw, sum, err := payload(labelVarian, dataPath)
	if err != nil {
		return nil, err
	}
	h, err := readVarianHeader(raw)
	if err != nil {
		return nil, truncated(labelVarian, dataPath, varianFileHeader, len(raw))
	}

	typ := binio.Int16
	switch {
	case h.status&varianFloat != 0:
		typ = binio.Float32
	case h.status&varianInt32 != 0:
		typ = binio.Int32
	}
	isSpec := h.status&varianSpec != 0
	hyper := h.status&varianHyper != 0

	if h.nblocks <= 0 || h.ntraces <= 0 || h.npoints <= 0 || h.nbheaders < 0 {
		return nil, malformed(labelVarian, dataPath, fmt.Errorf("bad block geometry %d x %d x %d", h.nblocks, h.ntraces, h.npoints))
	}
	blockData, _ := binio.Product(h.ntraces, h.npoints, typ.Size())
	headers, _ := binio.Product(h.nbheaders, varianBlockHeader)
	blocks, _ := binio.Product(h.nblocks, binio.Sum(headers, blockData))
	need := binio.Sum(varianFileHeader, blocks)
	if len(raw) < need {
		return nil, truncated(labelVarian, dataPath, need, len(raw))
	}
	blockSize := headers + blockData
	vals := make([]float64, 0, h.nblocks*h.ntraces*h.npoints)
	for b := 0; b < h.nblocks; b++ {
		start := varianFileHeader + b*blockSize + h.nbheaders*varianBlockHeader
		vals = append(vals, binio.Decode(raw[start:start+blockData], typ, binary.BigEndian)...)
	}

	td1 := h.nblocks * h.ntraces
	var (
		samples []complex128
		shape   []int
	)
	if isSpec && hyper {
		if td1%4 != 0 {
			return nil, unsupported(labelVarian, dataPath, "hypercomplex data with %d traces", td1)
		}
		samples = make([]complex128, len(vals)/4)
		for i := range samples {
			samples[i] = complex(vals[4*i], -vals[4*i+1])
		}
		shape = []int{td1 / 4, h.npoints}
	} else {
		samples = pairs(vals)
		shape = []int{td1, h.npoints / 2}
	}
	data, err := hypercomplex.Plain(shape, samples)
	if err != nil {
		return nil, malformed(labelVarian, dataPath, err)
	}
	if isSpec && hyper && h.status&varianFlipped != 0 {
		if data, err = data.Reverse(1); err != nil {
			return nil, err
		}
	}

	direct := spectrum.Axis{Freq: freq, SW: sw, Spec: isSpec, Ref: ref}
	var axes []spectrum.Axis
	if shape[0] == 1 {
		if data, err = data.Reshape(shape[1]); err != nil {
			return nil, err
		}
		axes = []spectrum.Axis{direct}
		if isSpec {
			if data, err = data.Reverse(0); err != nil {
				return nil, err
			}
		}
	} else {
		// unlike 1D spectra, 2D spectra stay in stored order
		indirect.Spec = isSpec
		axes = []spectrum.Axis{indirect, direct}
	}

	s, err := build(labelVarian, dataPath, sum, data, axes)
	if err != nil {
		return nil, err
	}
	copyMeta(s, pars, map[string]string{
		spectrum.MetaScans:           "nt",
		spectrum.MetaAcquisitionTime: "at",
		spectrum.MetaExperiment:      "seqfil",
		spectrum.MetaReceiverGain:    "gain",
		spectrum.MetaRecycleDelay:    "d1",
		spectrum.MetaTimeCompleted:   "time_complete",
		spectrum.MetaOffset:          "tof",
		spectrum.MetaSample:          "samplename",
	})
	if !isSpec && (hasRP || hasPhfid) {
		s.SetMeta(spectrum.MetaPhase0, params.FormatFloat(rp+phfid))
	}
	return s, nil
}
