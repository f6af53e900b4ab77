// Package formats holds one loader per vendor data format. Each loader
// turns a detected path into a canonical spectrum.
package formats

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// Options tunes a single load.
type Options struct {
	// ASCII describes the column layout of plain-text input.
	ASCII *spectrum.ASCIIInfo
	// Skip is told about every parameter entry that failed to parse.
	Skip params.SkipFunc
	// Ctx, when set, is checked between the files of a multi-file data set.
	Ctx context.Context
}

func (o Options) canceled() error {
	if o.Ctx == nil {
		return nil
	}
	return o.Ctx.Err()
}

// Loader reads one detected data set.
type Loader func(path string, opt Options) (*spectrum.Spectrum, error)

// Format labels used in errors and history entries.
const (
	labelVarian       = "Varian"
	labelBruker       = "Bruker TopSpin"
	labelBrukerProc   = "Bruker spectrum"
	labelWinNMR       = "Bruker WinNMR"
	labelChemagnetics = "Chemagnetics"
	labelMagritek     = "Magritek"
	labelSimpson      = "SIMPSON"
	labelPipe         = "NMRpipe"
	labelJEOL         = "JEOL Delta"
	labelJCAMP        = "JCAMP"
	labelASCII        = "ASCII"
	labelMinispec     = "Minispec"
	labelEPR          = "Bruker EPR"
	labelSiemens      = "Siemens IMA"
	labelMestreC      = "MestreC"
)

func missing(format, path, what string) error {
	return &spectrum.FileFormatError{Format: format, Path: path, Reason: "missing " + what}
}

func malformed(format, path string, err error) error {
	return &spectrum.FileFormatError{Format: format, Path: path, Reason: "malformed", Err: err}
}

func truncated(format, path string, want, got int) error {
	return &spectrum.TruncatedDataError{Format: format, Path: path, Want: int64(want), Got: int64(got)}
}

func unsupported(format, path, variant string, args ...any) error {
	return &spectrum.UnsupportedVariantError{Format: format, Path: path, Variant: fmt.Sprintf(variant, args...)}
}

// dirOf returns path itself for directories and its parent otherwise.
func dirOf(path string) string {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// readParams opens and parses one parameter file.
func readParams(format, path string, parse func(*os.File) (params.Set, error)) (params.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, missing(format, path, filepath.Base(path))
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	set, err := parse(f)
	if err != nil {
		return nil, malformed(format, path, err)
	}
	return set, nil
}

func brukerParams(format, path string, skip params.SkipFunc) (params.Set, error) {
	return readParams(format, path, func(f *os.File) (params.Set, error) { return params.ParseBruker(f, skip) })
}

// payload maps a sample file, returning its contents and a BLAKE3 digest.
// The bytes are copied out so the mapping can be released at once.
func payload(format, path string) ([]byte, string, error) {
	f, err := binio.Map(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", missing(format, path, filepath.Base(path))
		}
		return nil, "", err
	}
	defer func() { _ = f.Close() }()
	return f.Bytes(), digest(f.Data), nil
}

func digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// pairs assembles interleaved (re, im) samples as re − i·im.
func pairs(vals []float64) []complex128 {
	out := make([]complex128, len(vals)/2)
	for i := range out {
		out[i] = complex(vals[2*i], -vals[2*i+1])
	}
	return out
}

// split assembles separate real and imaginary blocks as re − i·im.
func split(re, im []float64) []complex128 {
	out := make([]complex128, len(re))
	for i := range out {
		out[i] = complex(re[i], -im[i])
	}
	return out
}

func reals(vals []float64) []complex128 {
	out := make([]complex128, len(vals))
	for i, v := range vals {
		out[i] = complex(v, 0)
	}
	return out
}

// sideFreq is the frequency of the last point of an n-point axis relative
// to its centre.
func sideFreq(n int, sw float64) float64 {
	return -math.Floor(float64(n)/2) / float64(n) * sw
}

// Reference derives an absolute reference frequency from the base
// frequency, the spectral width and a stored offset of the last point.
func Reference(base, sw, offset float64, n int) float64 {
	return base + sideFreq(n, sw) - offset
}

// lastShiftedFreq is the highest frequency of a centred n-point grid of
// width sw, as produced by an FFT shift.
func lastShiftedFreq(n int, sw float64) float64 {
	return float64(n-1-n/2) * sw / float64(n)
}

// flipSpectral reverses every frequency-domain axis.
func flipSpectral(data *hypercomplex.Array, axes []spectrum.Axis) (*hypercomplex.Array, error) {
	var err error
	for i, ax := range axes {
		if !ax.Spec {
			continue
		}
		if data, err = data.Reverse(i); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// untile rearranges sub-matrix blocked storage into row-major order. The
// stored order is the block grid followed by the block contents, both
// row-major.
func untile(data []complex128, shape, block []int) []complex128 {
	nd := len(shape)
	grid := make([]int, nd)
	for i := range shape {
		grid[i] = shape[i] / block[i]
	}
	blockLen := 1
	for _, b := range block {
		blockLen *= b
	}
	out := make([]complex128, len(data))
	gidx := make([]int, nd)
	bidx := make([]int, nd)
	for g := 0; g*blockLen < len(data); g++ {
		unravel(g, grid, gidx)
		for w := 0; w < blockLen; w++ {
			unravel(w, block, bidx)
			off := 0
			for d := 0; d < nd; d++ {
				off = off*shape[d] + gidx[d]*block[d] + bidx[d]
			}
			out[off] = data[g*blockLen+w]
		}
	}
	return out
}

func unravel(i int, dims, out []int) {
	for d := len(dims) - 1; d >= 0; d-- {
		out[d] = i % dims[d]
		i /= dims[d]
	}
}

func reverseFloats(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

func reverseComplex(v []complex128) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

// product returns the element count of shape, or math.MaxInt when header
// sizes are negative or overflow.
func product(shape []int) int {
	n, ok := binio.Product(shape...)
	if !ok {
		return math.MaxInt
	}
	return n
}

// build wraps the final assembly steps shared by every loader.
func build(format, path, digestHex string, data *hypercomplex.Array, axes []spectrum.Axis) (*spectrum.Spectrum, error) {
	s, err := spectrum.New(data, axes)
	if err != nil {
		return nil, err
	}
	s.Source.Digest = digestHex
	s.AddHistory("%s data loaded from %s", format, path)
	return s, nil
}

// copyMeta fills metadata fields from parameters, one field at a time.
// Fields whose parameter is absent stay unset.
func copyMeta(s *spectrum.Spectrum, set params.Set, fields map[string]string) {
	for key, name := range fields {
		if v, ok := paramText(set, name); ok {
			s.SetMeta(key, v)
		}
	}
}

// paramText renders a parameter as text, lists included.
func paramText(set params.Set, key string) (string, bool) {
	v, ok := set[key]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// paramAt renders element i of a list parameter as text.
func paramAt(set params.Set, key string, i int) (string, bool) {
	v, ok := set.At(key, i)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// requireFloat returns a mandatory numeric parameter.
func requireFloat(format, path string, set params.Set, key string) (float64, error) {
	v, ok := set.Float(key)
	if !ok {
		return 0, missing(format, path, key)
	}
	return v, nil
}

// requireInt returns a mandatory integral parameter.
func requireInt(format, path string, set params.Set, key string) (int, error) {
	v, ok := set.Int(key)
	if !ok {
		return 0, missing(format, path, key)
	}
	return v, nil
}
