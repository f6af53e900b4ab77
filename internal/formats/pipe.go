package formats

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// NMRPipe header layout: 512 float32 words.
const (
	pipeHeaderWords = 512
	pipeHeaderBytes = pipeHeaderWords * 4

	pipeOrderCheck = 2.345 // FDFLTORDER
	pipeNDim       = 9
	pipeNumFiles   = 442
	pipeStream     = 57
	pipeCube       = 447

	pipeMaxFiles = 1 << 16
)

// Per-dimension header words, ordered from the outermost (fourth) to the
// direct dimension.
var (
	pipeSize = [4]int{32, 15, 219, 99}
	pipeQuad = [4]int{54, 51, 55, 56}
	pipeSpec = [4]int{31, 13, 222, 220}
	pipeFreq = [4]int{28, 10, 218, 119}
	pipeSW   = [4]int{29, 11, 229, 100}
	pipeOrig = [4]int{30, 12, 249, 101}
)

var trailingDigits = regexp.MustCompile(`[0-9]+$`)

type pipeHeader struct {
	ndim                   int
	size, quad, spec       [4]int
	freq, sw, orig         [4]float64
	numFiles, stream, cube int
	order                  binary.ByteOrder
}

func readPipeHeader(b []byte) (pipeHeader, error) {
	var h pipeHeader
	if len(b) < pipeHeaderBytes {
		return h, fmt.Errorf("header needs %d bytes, have %d", pipeHeaderBytes, len(b))
	}
	h.order = binary.LittleEndian
	words := binio.Decode(b[:pipeHeaderBytes], binio.Float32, h.order)
	if math.Abs(words[2]-pipeOrderCheck) > 1e-3 {
		h.order = binary.BigEndian
		words = binio.Decode(b[:pipeHeaderBytes], binio.Float32, h.order)
	}
	h.ndim = pipeInt(words[pipeNDim])
	for i := range 4 {
		h.size[i] = pipeInt(words[pipeSize[i]])
		h.quad[i] = pipeInt(words[pipeQuad[i]])
		h.spec[i] = pipeInt(words[pipeSpec[i]])
		h.freq[i] = words[pipeFreq[i]] * 1e6
		h.sw[i] = words[pipeSW[i]]
		h.orig[i] = words[pipeOrig[i]]
	}
	h.numFiles = pipeInt(words[pipeNumFiles])
	h.stream = pipeInt(words[pipeStream])
	h.cube = pipeInt(words[pipeCube])
	if h.ndim < 1 || h.ndim > 4 {
		return h, fmt.Errorf("dimension count %d", h.ndim)
	}
	return h, nil
}

// pipeInt converts an integral header word. Values that are not finite or
// do not fit a 32-bit count become -1 so size checks reject them.
func pipeInt(v float64) int {
	if math.IsNaN(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return -1
	}
	return int(v)
}

// points returns the number of float32 words per file and the row-major
// shape of one file, with the direct axis counted in stored words. The
// count saturates at math.MaxInt for sizes no file could hold.
func (h pipeHeader) points() (int, []int) {
	s := h.size
	words := s[3]
	if h.quad[3] == 0 {
		words, _ = binio.Product(words, 2)
	}
	if h.ndim == 1 {
		return words, []int{words}
	}
	var outer []int
	switch {
	case h.ndim == 4 && h.cube == 1 && h.stream == 0:
		outer = []int{s[1]}
	case h.ndim == 4 && h.stream > 0:
		outer = []int{s[0], s[1]}
	case h.ndim == 3 && h.stream > 0:
		outer = []int{s[1]}
	}
	shape := append(outer, s[2], words)
	total, _ := binio.Product(shape...)
	return total, shape
}

// pipeFiles lists the plane files of a multi-file data set, numbered
// from the trailing digit run of the first file.
func pipeFiles(path string, n int) ([]string, error) {
	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)
	loc := trailingDigits.FindStringIndex(base)
	if loc == nil {
		return nil, fmt.Errorf("%s has no plane number", file)
	}
	prefix, width := base[:loc[0]], loc[1]-loc[0]
	out := make([]string, n)
	for i := range out {
		out[i] = filepath.Join(dir, fmt.Sprintf("%s%0*d%s", prefix, width, i+1, ext))
	}
	return out, nil
}

// LoadPipe reads NMRPipe data of one to four dimensions, as a single
// stream file or as a numbered series of plane or cube files.
func LoadPipe(path string, opt Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelPipe, path)
	if err != nil {
		return nil, err
	}
	h, err := readPipeHeader(raw)
	if err != nil {
		return nil, malformed(labelPipe, path, err)
	}
	nd := h.ndim
	if nd == 4 && h.cube == 0 && h.stream == 0 {
		return nil, unsupported(labelPipe, path, "4D data stored as 2D planes")
	}
	for i := 4 - nd; i < 4; i++ {
		if h.size[i] <= 0 {
			return nil, malformed(labelPipe, path, fmt.Errorf("size %d on dimension %d", h.size[i], i))
		}
	}
	total, fileShape := h.points()
	totalBytes, _ := binio.Product(total, 4)
	need := binio.Sum(pipeHeaderBytes, totalBytes)
	if need > len(raw) {
		return nil, truncated(labelPipe, path, need, len(raw))
	}

	files := []string{path}
	if nd > 2 && h.stream == 0 && h.numFiles > 1 {
		if h.numFiles > pipeMaxFiles {
			return nil, malformed(labelPipe, path, fmt.Errorf("%d plane files", h.numFiles))
		}
		if files, err = pipeFiles(path, h.numFiles); err != nil {
			return nil, malformed(labelPipe, path, err)
		}
	}
	vals := make([]float64, 0, total)
	for _, f := range files {
		if err := opt.canceled(); err != nil {
			return nil, err
		}
		b := raw
		if f != path {
			if b, _, err = payload(labelPipe, f); err != nil {
				return nil, err
			}
		}
		v, err := binio.DecodeN(b, pipeHeaderBytes, total, binio.Float32, h.order)
		if err != nil {
			return nil, truncated(labelPipe, f, need, len(b))
		}
		vals = append(vals, v...)
	}

	shape := fileShape
	if nd > 2 && h.stream == 0 {
		shape = append([]int{len(files)}, fileShape...)
	}
	if len(shape) != nd {
		return nil, unsupported(labelPipe, path, "%d dimensions in %d files", nd, len(files))
	}
	var samples []complex128
	if h.quad[3] == 0 {
		// each row holds its real half followed by its imaginary half
		row := shape[nd-1]
		shape[nd-1] = row / 2
		samples = make([]complex128, 0, len(vals)/2)
		for off := 0; off+row <= len(vals); off += row {
			samples = append(samples, split(vals[off:off+row/2], vals[off+row/2:off+row])...)
		}
	} else {
		samples = reals(vals)
	}
	data, err := hypercomplex.Plain(shape, samples)
	if err != nil {
		return nil, malformed(labelPipe, path, err)
	}
	for k := 0; k < nd-1; k++ {
		if h.quad[4-nd+k] != 0 {
			continue
		}
		if data, err = data.Deinterleave(k); err != nil {
			return nil, malformed(labelPipe, path, err)
		}
	}

	axes := make([]spectrum.Axis, nd)
	for k := range axes {
		i := 4 - nd + k
		ref := Reference(h.freq[i], h.sw[i], h.orig[i], h.size[i])
		axes[k] = spectrum.Axis{Freq: h.freq[i], SW: h.sw[i], Spec: h.spec[i] == 1, Ref: spectrum.Float(ref)}
	}
	if data, err = flipSpectral(data, axes); err != nil {
		return nil, err
	}
	return build(labelPipe, path, sum, data, axes)
}
