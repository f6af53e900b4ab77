package formats

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/pkg/spectrum"
)

const acqusDirect = `##TITLE= Parameter file
##$BYTORDA= 0
##$D= (0..3)
0 1.5 2e-05 0
##$GRPDLY= 67.98
##$NS= 8
##$O1= 1000
##$PULPROG= <zg30>
##$RG= 101
##$SFO1= 400.13
##$SW_h= 5000
##$TD= 300
##END=
`

const acqusIndirect = `##$O1= 0
##$SFO1= 100.6
##$SW_h= 2000
##$TD= 2
##END=
`

func TestLoadBrukerPadding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acqus"), []byte(acqusDirect))
	writeFile(t, filepath.Join(dir, "acqu2s"), []byte(acqusIndirect))
	// 300 declared points are stored in rows of 512
	vals := make([]float64, 2*512)
	for r := range 2 {
		for j := range 512 {
			vals[r*512+j] = float64(r*1000 + j)
		}
	}
	writeFile(t, filepath.Join(dir, "ser"), encode(binio.Int32, binary.LittleEndian, vals...))

	s, err := LoadBruker(filepath.Join(dir, "ser"), Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Shape(); len(got) != 2 || got[0] != 2 || got[1] != 150 {
		t.Fatalf("shape: got %v want [2 150]", got)
	}
	if got, want := s.Data.At(1, 149), complex(1298, -1299); got != want {
		t.Fatalf("last sample: got %v want %v", got, want)
	}
	if got, want := s.Data.At(0, 0), complex(0, -1); got != want {
		t.Fatalf("first sample: got %v want %v", got, want)
	}
	direct := s.Axes[1]
	if !near(direct.Freq, 400.13e6) || direct.SW != 5000 {
		t.Fatalf("direct axis: got %+v", direct)
	}
	if direct.Ref == nil || !near(*direct.Ref, 400.13e6-1000) {
		t.Fatalf("direct ref: got %v", direct.Ref)
	}
	if direct.DFilter == nil || s.Axes[0].DFilter != nil {
		t.Fatalf("digital filter should sit on the direct axis only")
	}
	if s.Axes[0].SW != 2000 || s.Axes[0].Spec {
		t.Fatalf("indirect axis: got %+v", s.Axes[0])
	}
	wantMeta := map[string]string{
		spectrum.MetaScans:        "8",
		spectrum.MetaReceiverGain: "101",
		spectrum.MetaExperiment:   "zg30",
		spectrum.MetaOffset:       "1000",
		spectrum.MetaRecycleDelay: "1.5",
	}
	for k, v := range wantMeta {
		if s.Meta[k] != v {
			t.Fatalf("meta %q: got %q want %q", k, s.Meta[k], v)
		}
	}
	if s.Source.Digest == "" || len(s.History) != 1 {
		t.Fatalf("provenance: digest %q history %v", s.Source.Digest, s.History)
	}
}

func TestLoadBrukerFidTruncated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acqus"), []byte(acqusDirect))
	writeFile(t, filepath.Join(dir, "fid"), encode(binio.Int32, binary.LittleEndian, make([]float64, 100)...))

	_, err := LoadBruker(dir, Options{})
	var te *spectrum.TruncatedDataError
	if !errors.As(err, &te) {
		t.Fatalf("expected TruncatedDataError, got %v", err)
	}
}

func TestLoadBrukerFid1D(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acqus"), []byte(acqusDirect))
	vals := make([]float64, 300)
	vals[0], vals[1], vals[298], vals[299] = 1, 0, 0, 1
	writeFile(t, filepath.Join(dir, "fid"), encode(binio.Int32, binary.LittleEndian, vals...))

	s, err := LoadBruker(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Shape(); len(got) != 1 || got[0] != 150 {
		t.Fatalf("shape: got %v", got)
	}
	if s.Data.At(0) != 1 || s.Data.At(149) != -1i {
		t.Fatalf("samples: got %v, %v", s.Data.At(0), s.Data.At(149))
	}
}

const procsDirect = `##$BYTORDP= 0
##$DTYPP= 0
##$OFFSET= 10
##$SF= 100
##$SI= 4
##$SW_p= 1000
##$XDIM= 2
##END=
`

const procsIndirect = `##$OFFSET= 5
##$SF= 50
##$SI= 4
##$SW_p= 500
##$XDIM= 2
##END=
`

func TestLoadBrukerProcessed2D(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "acqus"), []byte(acqusDirect))
	dir := filepath.Join(root, "pdata", "1")
	writeFile(t, filepath.Join(dir, "procs"), []byte(procsDirect))
	writeFile(t, filepath.Join(dir, "proc2s"), []byte(procsIndirect))
	re := make([]float64, 16)
	im := make([]float64, 16)
	for i := range re {
		re[i] = float64(i)
		im[i] = 1
	}
	writeFile(t, filepath.Join(dir, "2rr"), encode(binio.Int32, binary.LittleEndian, re...))
	writeFile(t, filepath.Join(dir, "2ir"), encode(binio.Int32, binary.LittleEndian, im...))

	s, err := LoadBrukerProcessed(filepath.Join(dir, "2rr"), Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Data.Hyper() {
		t.Fatalf("only the 2rr/2ir pair is present")
	}
	// untiled rows: [0 1 4 5] [2 3 6 7] [8 9 12 13] [10 11 14 15], then reversed
	checks := []struct {
		i, j int
		want complex128
	}{
		{0, 0, complex(15, -1)},
		{0, 1, complex(14, -1)},
		{0, 2, complex(11, -1)},
		{3, 3, complex(0, -1)},
	}
	for _, c := range checks {
		if got := s.Data.At(c.i, c.j); got != c.want {
			t.Fatalf("At(%d,%d): got %v want %v", c.i, c.j, got, c.want)
		}
	}
	direct := s.Axes[1]
	if !direct.Spec || direct.Freq != 100*1e6 {
		t.Fatalf("direct axis: got %+v", direct)
	}
	if want := 100e6 + 250 - 1000.0; direct.Ref == nil || !near(*direct.Ref, want) {
		t.Fatalf("direct ref: got %v want %v", direct.Ref, want)
	}
	if s.Meta[spectrum.MetaScans] != "8" {
		t.Fatalf("acqus metadata not merged: %v", s.Meta)
	}
}

func TestLoadWinNMRUpperCase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "EXP.FQS"), []byte(procsDirect))
	writeFile(t, filepath.Join(dir, "EXP.1R"), encode(binio.Float32, binary.LittleEndian, 1, 2, 3, 4))
	writeFile(t, filepath.Join(dir, "EXP.1I"), encode(binio.Float32, binary.LittleEndian, 5, 6, 7, 8))

	s, err := LoadWinNMR(filepath.Join(dir, "EXP.1R"), Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{complex(4, -8), complex(3, -7), complex(2, -6), complex(1, -5)})
	if !s.Axes[0].Spec {
		t.Fatalf("processed WinNMR data should be spectral")
	}
}
