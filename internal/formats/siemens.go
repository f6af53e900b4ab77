package formats

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

var (
	tagCSAImage = makeTag(0x0029, 0x1110)
	tagSpecData = makeTag(0x7FE1, 0x1010)
)

// LoadSiemens reads a Siemens IMA spectroscopy file: a DICOM object with
// acquisition parameters in the private CSA header.
func LoadSiemens(path string, _ Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelSiemens, path)
	if err != nil {
		return nil, err
	}
	elems, err := readDICOM(raw, tagCSAImage, tagSpecData)
	if err != nil {
		return nil, malformed(labelSiemens, path, err)
	}
	csaRaw, ok := elems[tagCSAImage]
	if !ok {
		return nil, missing(labelSiemens, path, "CSA image header "+tagCSAImage.String())
	}
	csa, err := parseCSA(csaRaw)
	if err != nil {
		return nil, malformed(labelSiemens, path, err)
	}
	n, err := strconv.Atoi(csa["DataPointColumns"])
	if err != nil {
		return nil, missing(labelSiemens, path, "DataPointColumns")
	}
	dwell, err := strconv.ParseFloat(csa["RealDwellTime"], 64)
	if err != nil || dwell == 0 {
		return nil, missing(labelSiemens, path, "RealDwellTime")
	}
	imaging, err := strconv.ParseFloat(csa["ImagingFrequency"], 64)
	if err != nil {
		return nil, missing(labelSiemens, path, "ImagingFrequency")
	}

	spec, ok := elems[tagSpecData]
	if !ok {
		return nil, missing(labelSiemens, path, "spectroscopy data "+tagSpecData.String())
	}
	vals, err := binio.DecodeN(spec, 0, 2*n, binio.Float32, binary.LittleEndian)
	if err != nil {
		return nil, truncated(labelSiemens, path, 8*n, len(spec))
	}
	if n == 0 {
		return nil, malformed(labelSiemens, path, errors.New("no data points"))
	}
	data, err := hypercomplex.Plain([]int{n}, pairs(vals))
	if err != nil {
		return nil, malformed(labelSiemens, path, err)
	}
	// dwell time is stored in nanoseconds
	axes := []spectrum.Axis{{Freq: imaging * 1e6, SW: 1 / (dwell * 1e-9)}}
	return build(labelSiemens, path, sum, data, axes)
}
