package formats

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// LoadMagritek reads a Magritek Spinsolve directory holding acqu.par and
// a data.1d or a single *.2d payload.
func LoadMagritek(path string, opt Options) (*spectrum.Spectrum, error) {
	dir := dirOf(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files1D, files2D []string
	for _, e := range entries {
		switch {
		case strings.Contains(e.Name(), ".2d"):
			files2D = append(files2D, e.Name())
		case strings.Contains(e.Name(), ".1d"):
			files1D = append(files1D, e.Name())
		}
	}
	if len(files2D) > 1 {
		return nil, unsupported(labelMagritek, dir, "%d two-dimensional data files", len(files2D))
	}
	if len(files2D) == 0 && len(files1D) == 0 {
		return nil, missing(labelMagritek, dir, "data.1d")
	}

	parPath := filepath.Join(dir, "acqu.par")
	set, err := readParams(labelMagritek, parPath, func(f *os.File) (params.Set, error) {
		return params.ParseMagritek(f, opt.Skip)
	})
	if err != nil {
		return nil, err
	}
	bw, err := requireFloat(labelMagritek, parPath, set, "bandwidth")
	if err != nil {
		return nil, err
	}
	n, err := requireInt(labelMagritek, parPath, set, "nrPnts")
	if err != nil {
		return nil, err
	}
	b1, err := requireFloat(labelMagritek, parPath, set, "b1Freq")
	if err != nil {
		return nil, err
	}
	lowest, err := requireFloat(labelMagritek, parPath, set, "lowestFrequency")
	if err != nil {
		return nil, err
	}
	sw := bw * 1000
	freq := b1 * 1e6
	direct := spectrum.Axis{Freq: freq, SW: sw, Ref: spectrum.Float(Reference(freq, sw, lowest, n))}

	rows := 1
	var dataPath string
	axes := []spectrum.Axis{direct}
	if len(files2D) == 1 {
		dataPath = filepath.Join(dir, files2D[0])
		if rows, err = requireInt(labelMagritek, parPath, set, "nrSteps"); err != nil {
			return nil, err
		}
		indirect := spectrum.Axis{Freq: freq, SW: 50e3}
		if bw2, ok := set.Float("bandwidth2"); ok {
			indirect.SW = bw2 * 1000
			if low2, ok := set.Float("lowestFrequency2"); ok {
				indirect.Ref = spectrum.Float(Reference(freq, indirect.SW, low2, rows))
			}
		}
		axes = []spectrum.Axis{indirect, direct}
	} else {
		dataPath = filepath.Join(dir, "data.1d")
	}

	raw, sum, err := payload(labelMagritek, dataPath)
	if err != nil {
		return nil, err
	}
	// the payload ends with the samples; anything before is header
	need := 2 * n * rows * 4
	if len(raw) < need {
		return nil, truncated(labelMagritek, dataPath, need, len(raw))
	}
	samples := pairs(binio.Decode(raw[len(raw)-need:], binio.Float32, binary.LittleEndian))
	for r := 0; r < rows; r++ {
		samples[r*n] *= 2
	}
	shape := []int{n}
	if len(axes) == 2 {
		shape = []int{rows, n}
	}
	data, err := hypercomplex.Plain(shape, samples)
	if err != nil {
		return nil, malformed(labelMagritek, dataPath, err)
	}

	s, err := build(labelMagritek, dataPath, sum, data, axes)
	if err != nil {
		return nil, err
	}
	if v, ok := paramText(set, "nrScans"); ok {
		s.SetMeta(spectrum.MetaScans, v)
	}
	if dwell, ok := set.Float("dwellTime"); ok {
		s.SetMeta(spectrum.MetaAcquisitionTime, params.FormatFloat(float64(n)*dwell*1e-6))
	}
	if v, ok := set.String("expName"); ok {
		s.SetMeta(spectrum.MetaExperiment, strings.Trim(v, `"`))
	}
	if v, ok := paramText(set, "rxGain"); ok {
		s.SetMeta(spectrum.MetaReceiverGain, v)
	}
	if v, ok := set.Float("repTime"); ok {
		s.SetMeta(spectrum.MetaRecycleDelay, params.FormatFloat(v/1e3))
	}
	return s, nil
}
