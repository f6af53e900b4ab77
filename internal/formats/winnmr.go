package formats

import (
	"path/filepath"
	"strings"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// LoadWinNMR reads a Bruker WinNMR file set: <base>.fid with <base>.aqs,
// or <base>.1r (and optional .1i) with <base>.fqs. The companion names
// follow the case of the given extension.
func LoadWinNMR(path string, opt Options) (*spectrum.Spectrum, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	name := func(e string) string {
		if ext == strings.ToUpper(ext) {
			e = strings.ToUpper(e)
		}
		return base + e
	}
	if strings.EqualFold(ext, ".1r") || strings.EqualFold(ext, ".1i") {
		return loadWinNMRSpectrum(name, opt)
	}
	return loadWinNMRFid(name, opt)
}

func loadWinNMRSpectrum(name func(string) string, opt Options) (*spectrum.Spectrum, error) {
	parPath := name(".fqs")
	set, err := brukerParams(labelWinNMR, parPath, opt.Skip)
	if err != nil {
		return nil, err
	}
	size, err := requireInt(labelWinNMR, parPath, set, "XDIM")
	if err != nil {
		return nil, err
	}
	sf, err := requireFloat(labelWinNMR, parPath, set, "SF")
	if err != nil {
		return nil, err
	}
	sw, err := requireFloat(labelWinNMR, parPath, set, "SW_p")
	if err != nil {
		return nil, err
	}
	offset, _ := set.Float("OFFSET")
	order := brukerOrder(set, "BYTORDP")
	freq := sf * 1e6
	ref := freq + lastShiftedFreq(size, sw) - offset*1e-6*freq

	read := func(p string) ([]float64, string, error) {
		raw, sum, err := payload(labelWinNMR, p)
		if err != nil {
			return nil, "", err
		}
		vals, err := binio.DecodeN(raw, 0, size, binio.Float32, order)
		if err != nil {
			return nil, "", truncated(labelWinNMR, p, size*4, len(raw))
		}
		return vals, sum, nil
	}
	dataPath := name(".1r")
	re, sum, err := read(dataPath)
	if err != nil {
		return nil, err
	}
	samples := reals(re)
	if imPath := name(".1i"); exists(imPath) {
		im, _, err := read(imPath)
		if err != nil {
			return nil, err
		}
		samples = split(re, im)
	}
	reverseComplex(samples)
	data, err := hypercomplex.Plain([]int{size}, samples)
	if err != nil {
		return nil, malformed(labelWinNMR, dataPath, err)
	}
	axes := []spectrum.Axis{{Freq: freq, SW: sw, Spec: true, Ref: spectrum.Float(ref)}}
	return build(labelWinNMR, dataPath, sum, data, axes)
}

func loadWinNMRFid(name func(string) string, opt Options) (*spectrum.Spectrum, error) {
	parPath := name(".aqs")
	set, err := brukerParams(labelWinNMR, parPath, opt.Skip)
	if err != nil {
		return nil, err
	}
	td, err := requireInt(labelWinNMR, parPath, set, "TD")
	if err != nil {
		return nil, err
	}
	sfo1, err := requireFloat(labelWinNMR, parPath, set, "SFO1")
	if err != nil {
		return nil, err
	}
	sw, err := requireFloat(labelWinNMR, parPath, set, "SW_h")
	if err != nil {
		return nil, err
	}
	o1, _ := set.Float("O1")
	freq := sfo1 * 1e6

	dataPath := name(".fid")
	raw, sum, err := payload(labelWinNMR, dataPath)
	if err != nil {
		return nil, err
	}
	vals, err := binio.DecodeN(raw, 0, td, binio.Float32, brukerOrder(set, "BYTORDA"))
	if err != nil {
		return nil, truncated(labelWinNMR, dataPath, td*4, len(raw))
	}
	samples := pairs(vals)
	data, err := hypercomplex.Plain([]int{len(samples)}, samples)
	if err != nil {
		return nil, malformed(labelWinNMR, dataPath, err)
	}
	axes := []spectrum.Axis{{Freq: freq, SW: sw, Ref: spectrum.Float(freq - o1)}}
	s, err := build(labelWinNMR, dataPath, sum, data, axes)
	if err != nil {
		return nil, err
	}
	brukerMeta(s, set)
	return s, nil
}
