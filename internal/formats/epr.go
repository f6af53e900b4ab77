package formats

import (
	"encoding/binary"
	"os"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// LoadEPR reads a Bruker EPR pair <base>.par and <base>.spc. The path is
// the common base without extension.
func LoadEPR(base string, _ Options) (*spectrum.Spectrum, error) {
	parPath := base + ".par"
	set, err := readParams(labelEPR, parPath, func(f *os.File) (params.Set, error) { return params.ParseEPR(f) })
	if err != nil {
		return nil, err
	}
	n, err := requireInt(labelEPR, parPath, set, "ANZ")
	if err != nil {
		return nil, err
	}
	width, err := requireFloat(labelEPR, parPath, set, "GSI")
	if err != nil {
		return nil, err
	}
	start, err := requireFloat(labelEPR, parPath, set, "GST")
	if err != nil {
		return nil, err
	}
	dataPath := base + ".spc"
	raw, sum, err := payload(labelEPR, dataPath)
	if err != nil {
		return nil, err
	}
	vals, err := binio.DecodeN(raw, 0, n, binio.Float32, binary.LittleEndian)
	if err != nil {
		return nil, truncated(labelEPR, dataPath, n*4, len(raw))
	}
	data, err := hypercomplex.Plain([]int{n}, reals(vals))
	if err != nil {
		return nil, malformed(labelEPR, dataPath, err)
	}
	// the field sweep is centred on GST + GSI/2
	axes := []spectrum.Axis{{Freq: (width + 2*start) / 2, SW: width, Spec: true, Ref: spectrum.Float(0)}}
	return build(labelEPR, base, sum, data, axes)
}
