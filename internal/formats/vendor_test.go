package formats

import (
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/pkg/spectrum"
)

const varianProcpar = `sfrq 1 1 1000 0 0 2 1 0 1 64
1 399.87
0
sw 1 1 1e+06 0 0 2 1 0 1 64
1 5000
0
nt 7 1 1e+09 1 1 2 1 0 1 64
1 16
0
seqfil 2 2 64 0 0 2 1 0 1 64
1 "s2pul"
0
`

func varianFid(status uint16, vals ...float64) []byte {
	h := make([]byte, varianFileHeader+varianBlockHeader)
	be := binary.BigEndian
	be.PutUint32(h[0:], 1)                                      // nblocks
	be.PutUint32(h[4:], 1)                                      // ntraces
	be.PutUint32(h[8:], uint32(len(vals)))                      // npoints
	be.PutUint32(h[12:], 4)                                     // ebytes
	be.PutUint32(h[16:], uint32(4*len(vals)))                   // tbytes
	be.PutUint32(h[20:], uint32(4*len(vals)+varianBlockHeader)) // bbytes
	be.PutUint16(h[26:], status)
	be.PutUint32(h[28:], 1) // nbheaders
	return append(h, encode(binio.Float32, be, vals...)...)
}

func TestLoadVarianFid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "procpar"), []byte(varianProcpar))
	writeFile(t, filepath.Join(dir, "fid"), varianFid(varianFloat, 1, 0, 0, 1))

	s, err := LoadVarian(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{1, -1i})
	ax := s.Axes[0]
	if ax.Spec || ax.SW != 5000 || !near(ax.Freq, 399.87e6) || ax.Ref != nil {
		t.Fatalf("axis: got %+v", ax)
	}
	if s.Meta[spectrum.MetaScans] != "16" || s.Meta[spectrum.MetaExperiment] != "s2pul" {
		t.Fatalf("meta: got %v", s.Meta)
	}
}

func TestLoadVarianKeepsPhaseAsMetadata(t *testing.T) {
	t.Parallel()

	procpar := varianProcpar + `rp 1 1 1e+09 -1e+09 0 2 1 0 1 64
1 30
0
phfid 1 1 1e+09 -1e+09 0 2 1 0 1 64
1 60
0
`
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "procpar"), []byte(procpar))
	writeFile(t, filepath.Join(dir, "fid"), varianFid(varianFloat, 1, 0, 0, 1))

	s, err := LoadVarian(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{1, -1i})
	if got := s.Meta[spectrum.MetaPhase0]; got != "90.0" {
		t.Fatalf("phase: got %q want 90.0", got)
	}
}

func TestLoadVarian2DSpectrumStoredOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "procpar"), []byte(varianProcpar))
	fid := varianFid(varianSpec|varianFloat, 1, 2, 3, 4, 5, 6, 7, 8)
	binary.BigEndian.PutUint32(fid[4:], 2) // ntraces
	binary.BigEndian.PutUint32(fid[8:], 4) // npoints
	writeFile(t, filepath.Join(dir, "data"), fid)

	s, err := LoadVarian(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Shape(); !reflect.DeepEqual(got, []int{2, 2}) {
		t.Fatalf("shape: got %v want [2 2]", got)
	}
	assertSamples(t, s, []complex128{complex(1, -2), complex(3, -4), complex(5, -6), complex(7, -8)})
	if !s.Axes[0].Spec || !s.Axes[1].Spec {
		t.Fatalf("axes should be spectral: %+v", s.Axes)
	}
}

func TestLoadVarianTruncated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "procpar"), []byte(varianProcpar))
	fid := varianFid(varianFloat, 1, 0, 0, 1)
	writeFile(t, filepath.Join(dir, "fid"), fid[:len(fid)-4])

	_, err := LoadVarian(filepath.Join(dir, "fid"), Options{})
	if !errors.Is(err, spectrum.ErrSampleData) {
		t.Fatalf("expected sample data error, got %v", err)
	}
}

func TestLoadChemagnetics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acq"), []byte("al=2\nch1=1\nsf1=100.5\ndw=10us\nna=32\nppfn=onepulse\n"))
	writeFile(t, filepath.Join(dir, "data"), encode(binio.Int32, binary.BigEndian, 1, 2, 3, 4))

	s, err := LoadChemagnetics(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{complex(1, -3), complex(2, -4)})
	if ax := s.Axes[0]; !near(ax.SW, 1e5) || !near(ax.Freq, 100.5e6) {
		t.Fatalf("axis: got %+v", ax)
	}
	if s.Meta[spectrum.MetaScans] != "32" || s.Meta[spectrum.MetaExperiment] != "onepulse" {
		t.Fatalf("meta: got %v", s.Meta)
	}
}

func TestLoadChemagneticsTruncated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acq"), []byte("al=4\nch1=1\nsf1=100.5\ndw=10us\n"))
	writeFile(t, filepath.Join(dir, "data"), encode(binio.Int32, binary.BigEndian, 1, 2, 3, 4, 5, 6))

	_, err := LoadChemagnetics(dir, Options{})
	var te *spectrum.TruncatedDataError
	if !errors.As(err, &te) {
		t.Fatalf("expected TruncatedDataError, got %v", err)
	}
}

func TestLoadMagritek1D(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	par := "bandwidth = 5\nnrPnts = 2\nb1Freq = 43.5\nlowestFrequency = -2500\nnrScans = 4\nexpName = \"1D PROTON\"\n"
	writeFile(t, filepath.Join(dir, "acqu.par"), []byte(par))
	blob := append([]byte("HEADER.."), encode(binio.Float32, binary.LittleEndian, 1, 2, 3, 4)...)
	writeFile(t, filepath.Join(dir, "data.1d"), blob)

	s, err := LoadMagritek(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// the first point of every row is doubled
	assertSamples(t, s, []complex128{complex(2, -4), complex(3, -4)})
	ax := s.Axes[0]
	if ax.SW != 5000 || ax.Ref == nil || !near(*ax.Ref, Reference(43.5e6, 5000, -2500, 2)) {
		t.Fatalf("axis: got %+v", ax)
	}
	if s.Meta[spectrum.MetaExperiment] != "1D PROTON" || s.Meta[spectrum.MetaScans] != "4" {
		t.Fatalf("meta: got %v", s.Meta)
	}
}

func TestLoadMagritekAmbiguous2D(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acqu.par"), []byte("bandwidth = 5\n"))
	writeFile(t, filepath.Join(dir, "a.2d"), nil)
	writeFile(t, filepath.Join(dir, "b.2d"), nil)

	_, err := LoadMagritek(dir, Options{})
	var ue *spectrum.UnsupportedVariantError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedVariantError, got %v", err)
	}
}

// pipeFixture builds a little-endian NMRPipe file from header words and
// float32 samples.
func pipeFixture(words map[int]float64, data ...float64) []byte {
	hdr := make([]float64, pipeHeaderWords)
	hdr[2] = pipeOrderCheck
	for k, v := range words {
		hdr[k] = v
	}
	out := encode(binio.Float32, binary.LittleEndian, hdr...)
	return append(out, encode(binio.Float32, binary.LittleEndian, data...)...)
}

func TestLoadPipe1D(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.fid")
	writeFile(t, path, pipeFixture(map[int]float64{
		pipeNDim: 1, 99: 4, 56: 0, 119: 100, 100: 1000, 101: 400,
	}, 1, 2, 3, 4, 5, 6, 7, 8))

	s, err := LoadPipe(path, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{complex(1, -5), complex(2, -6), complex(3, -7), complex(4, -8)})
	ax := s.Axes[0]
	if ax.Spec || ax.SW != 1000 || !near(ax.Freq, 100e6) {
		t.Fatalf("axis: got %+v", ax)
	}
	if ax.Ref == nil || !near(*ax.Ref, 100e6-500-400) {
		t.Fatalf("ref: got %v", ax.Ref)
	}
}

func TestLoadPipe2DHypercomplex(t *testing.T) {
	t.Parallel()

	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = float64(i)
	}
	path := filepath.Join(t.TempDir(), "test.fid")
	writeFile(t, path, pipeFixture(map[int]float64{
		pipeNDim: 2, 99: 2, 219: 4, 55: 0, 56: 0, 100: 1000, 229: 500,
	}, vals...))

	s, err := LoadPipe(path, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Shape(); !reflect.DeepEqual(got, []int{2, 2}) {
		t.Fatalf("shape: got %v", got)
	}
	if got := s.Data.Masks(); !reflect.DeepEqual(got, []uint32{0, 1}) {
		t.Fatalf("masks: got %v", got)
	}
	assertSamples(t, s, []complex128{complex(0, -2), complex(1, -3), complex(8, -10), complex(9, -11)})
	im, _ := s.Data.Component(1)
	if want := []complex128{complex(4, -6), complex(5, -7), complex(12, -14), complex(13, -15)}; !reflect.DeepEqual(im, want) {
		t.Fatalf("odd rows: got %v want %v", im, want)
	}
	if s.Axes[0].SW != 500 || s.Axes[1].SW != 1000 {
		t.Fatalf("axes: got %+v", s.Axes)
	}
}

func TestLoadPipe3DPlanes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	words := map[int]float64{
		pipeNDim: 3, pipeNumFiles: 2, 99: 2, 219: 2, 15: 2, 51: 1, 55: 1, 56: 1,
	}
	writeFile(t, filepath.Join(dir, "test001.ft3"), pipeFixture(words, 0, 1, 2, 3))
	writeFile(t, filepath.Join(dir, "test002.ft3"), pipeFixture(words, 10, 11, 12, 13))

	s, err := LoadPipe(filepath.Join(dir, "test001.ft3"), Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Shape(); !reflect.DeepEqual(got, []int{2, 2, 2}) {
		t.Fatalf("shape: got %v", got)
	}
	if got := s.Data.At(1, 1, 1); got != 13 {
		t.Fatalf("At(1,1,1): got %v want 13", got)
	}
	if got := s.Data.At(0, 1, 0); got != 2 {
		t.Fatalf("At(0,1,0): got %v want 2", got)
	}
}

func TestPipeFiles(t *testing.T) {
	t.Parallel()

	got, err := pipeFiles(filepath.Join("d", "spec009.ft4"), 3)
	if err != nil {
		t.Fatalf("pipeFiles: %v", err)
	}
	want := []string{
		filepath.Join("d", "spec001.ft4"),
		filepath.Join("d", "spec002.ft4"),
		filepath.Join("d", "spec003.ft4"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if _, err := pipeFiles("plain.ft2", 2); err == nil {
		t.Fatalf("expected error without a plane number")
	}
}

func jeolFixture(dataType, unit byte, points int, start, stop, base float64, vals ...float64) []byte {
	b := make([]byte, jeolHeaderSize)
	be := binary.BigEndian
	b[jeolEndian] = 1
	b[jeolNDim] = 1
	b[jeolDataType] = dataType
	b[jeolUnits+1] = unit
	be.PutUint32(b[jeolPoints:], uint32(points))
	be.PutUint32(b[jeolDataStop:], uint32(points-1))
	be.PutUint64(b[jeolAxisStart:], math.Float64bits(start))
	be.PutUint64(b[jeolAxisStop:], math.Float64bits(stop))
	be.PutUint64(b[jeolBaseFreq:], math.Float64bits(base))
	be.PutUint32(b[jeolReadStart:], jeolHeaderSize)
	return append(b, encode(binio.Float64, binary.LittleEndian, vals...)...)
}

func TestLoadJEOLComplex(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proton.jdf")
	writeFile(t, path, jeolFixture(jeolComplex, jeolUnitSec, 4, 0, 3e-3, 400, 1, 2, 3, 4, 5, 6, 7, 8))

	s, err := LoadJEOL(path, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{complex(1, -5), complex(2, -6), complex(3, -7), complex(4, -8)})
	ax := s.Axes[0]
	if ax.Spec || !near(ax.SW, 1000) || !near(ax.Freq, 400e6) {
		t.Fatalf("axis: got %+v", ax)
	}
}

func TestLoadJEOLSpectrumIsFlipped(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proton.jdf")
	writeFile(t, path, jeolFixture(jeolReal, jeolUnitHz, 4, 1000, 0, 400, 1, 2, 3, 4))

	s, err := LoadJEOL(path, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{4, 3, 2, 1})
	if ax := s.Axes[0]; !ax.Spec || ax.SW != 1000 {
		t.Fatalf("axis: got %+v", ax)
	}
}

func TestLoadJEOLUnsupportedUnit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proton.jdf")
	writeFile(t, path, jeolFixture(jeolReal, 99, 2, 0, 1, 400, 1, 2))

	_, err := LoadJEOL(path, Options{})
	var ue *spectrum.UnsupportedVariantError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedVariantError, got %v", err)
	}
}
