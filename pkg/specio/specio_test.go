package specio

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

const simpsonFid = "SIMP\nNP=2\nSW=1000\nTYPE=FID\nDATA\n1 2\n3 4\nEND\n"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		writeFile(t, filepath.Join(dir, n), []byte("x"))
	}
}

func assertSamples(t *testing.T, s *spectrum.Spectrum, want []complex128) {
	t.Helper()
	if got := s.Data.Base(); !reflect.DeepEqual(got, want) {
		t.Fatalf("samples: got %v want %v", got, want)
	}
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging left behind: %v", entries)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := func(name string) string { return filepath.Join(root, name) }

	touch(t, dir("varian"), "procpar", "fid")
	touch(t, dir("varian2/sub"), "data")
	touch(t, dir("varian2"), "procpar")
	touch(t, dir("bruker"), "acqus", "ser")
	touch(t, dir("proc"), "procs", "2rr")
	touch(t, dir("chem"), "acq", "data")
	touch(t, dir("magritek"), "acqu.par", "data.1d")
	touch(t, dir("epr"), "cw.spc", "cw.par")
	touch(t, dir("ext"), "a.json", "b.MAT", "c.jdf", "d.JDF", "e.dx", "f.sig", "g.IMA", "h.1r", "i.mrc", "j.zip", "k.tar.xz")
	touch(t, dir("winnmr"), "w.fid", "w.aqs")
	writeFile(t, filepath.Join(dir("text"), "sim.fid"), []byte(simpsonFid))
	writeFile(t, filepath.Join(dir("text"), "other.ft2"), []byte(simpsonFid))
	writeFile(t, filepath.Join(dir("pipe"), "test.fid"), make([]byte, 16))
	writeFile(t, filepath.Join(dir("pipe"), "test.ft2"), make([]byte, 16))
	if err := os.MkdirAll(dir("empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	tests := []struct {
		path string
		want Descriptor
	}{
		{dir("varian"), Descriptor{Format: FormatVarian, Path: dir("varian")}},
		{filepath.Join(dir("varian"), "fid"), Descriptor{Format: FormatVarian, Path: dir("varian"), Ambiguous: true}},
		{dir("varian2/sub"), Descriptor{Format: FormatVarian, Path: dir("varian2/sub")}},
		{dir("bruker"), Descriptor{Format: FormatBruker, Path: dir("bruker")}},
		{dir("proc"), Descriptor{Format: FormatBrukerProcessed, Path: dir("proc")}},
		{dir("chem"), Descriptor{Format: FormatChemagnetics, Path: dir("chem")}},
		{dir("magritek"), Descriptor{Format: FormatMagritek, Path: dir("magritek")}},
		{dir("epr"), Descriptor{Format: FormatEPR, Path: filepath.Join(dir("epr"), "cw")}},
		{filepath.Join(dir("epr"), "cw.spc"), Descriptor{Format: FormatEPR, Path: filepath.Join(dir("epr"), "cw"), Ambiguous: true}},
		{filepath.Join(dir("ext"), "a.json"), Descriptor{Format: FormatJSON, Path: filepath.Join(dir("ext"), "a.json")}},
		{filepath.Join(dir("ext"), "b.MAT"), Descriptor{Format: FormatMAT, Path: filepath.Join(dir("ext"), "b.MAT")}},
		{filepath.Join(dir("ext"), "c.jdf"), Descriptor{Format: FormatJEOL, Path: filepath.Join(dir("ext"), "c.jdf")}},
		{filepath.Join(dir("ext"), "d.JDF"), Descriptor{Format: FormatASCII, Path: filepath.Join(dir("ext"), "d.JDF"), Ambiguous: true}},
		{filepath.Join(dir("ext"), "e.dx"), Descriptor{Format: FormatJCAMP, Path: filepath.Join(dir("ext"), "e.dx")}},
		{filepath.Join(dir("ext"), "f.sig"), Descriptor{Format: FormatMinispec, Path: filepath.Join(dir("ext"), "f.sig")}},
		{filepath.Join(dir("ext"), "g.IMA"), Descriptor{Format: FormatSiemens, Path: filepath.Join(dir("ext"), "g.IMA")}},
		{filepath.Join(dir("ext"), "h.1r"), Descriptor{Format: FormatWinNMR, Path: filepath.Join(dir("ext"), "h.1r")}},
		{filepath.Join(dir("ext"), "i.mrc"), Descriptor{Format: FormatMestreC, Path: filepath.Join(dir("ext"), "i.mrc")}},
		{filepath.Join(dir("ext"), "j.zip"), Descriptor{Format: FormatArchive, Path: filepath.Join(dir("ext"), "j.zip")}},
		{filepath.Join(dir("ext"), "k.tar.xz"), Descriptor{Format: FormatArchive, Path: filepath.Join(dir("ext"), "k.tar.xz")}},
		{filepath.Join(dir("winnmr"), "w.fid"), Descriptor{Format: FormatWinNMR, Path: filepath.Join(dir("winnmr"), "w.fid")}},
		{filepath.Join(dir("text"), "sim.fid"), Descriptor{Format: FormatSimpson, Path: filepath.Join(dir("text"), "sim.fid")}},
		{filepath.Join(dir("text"), "other.ft2"), Descriptor{Format: FormatASCII, Path: filepath.Join(dir("text"), "other.ft2"), Ambiguous: true}},
		{filepath.Join(dir("pipe"), "test.fid"), Descriptor{Format: FormatPipe, Path: filepath.Join(dir("pipe"), "test.fid")}},
		{filepath.Join(dir("pipe"), "test.ft2"), Descriptor{Format: FormatPipe, Path: filepath.Join(dir("pipe"), "test.ft2")}},
	}
	for _, tc := range tests {
		got, ok := Detect(tc.path)
		if !ok || got != tc.want {
			t.Errorf("Detect(%s): got %+v (%v) want %+v", tc.path, got, ok, tc.want)
		}
	}

	for _, p := range []string{dir("empty"), dir("missing")} {
		if d, ok := Detect(p); ok {
			t.Errorf("Detect(%s): expected no match, got %+v", p, d)
		}
	}
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	if got := FormatPipe.String(); got != "NMRPipe" {
		t.Fatalf("got %q", got)
	}
	if got := Format(99).String(); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestLoadSetsProvenance(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sim.fid")
	writeFile(t, path, []byte(simpsonFid))

	s, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{complex(1, -2), complex(3, -4)})
	if s.Name != "sim" || s.Source.Format != "SIMPSON" || s.Source.LoadID == uuid.Nil {
		t.Fatalf("provenance: name %q source %+v", s.Name, s.Source)
	}
	if !reflect.DeepEqual(s.Source.Paths, []string{path}) {
		t.Fatalf("paths: got %v", s.Source.Paths)
	}
}

func TestLoadNotRecognized(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrNotRecognized) {
		t.Fatalf("expected ErrNotRecognized, got %v", err)
	}
}

func TestLoadASCII(t *testing.T) {
	t.Parallel()

	data := hypercomplex.MustPlain([]int{3}, []complex128{1 + 1i, 2, -3i})
	in, err := spectrum.New(data, []spectrum.Axis{{SW: 1000}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	path := filepath.Join(t.TempDir(), "trace.txt")
	if err := SaveASCII(path, in, 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := Load(context.Background(), path); !errors.Is(err, ErrNeedsInfo) {
		t.Fatalf("expected ErrNeedsInfo, got %v", err)
	}
	out, err := Load(context.Background(), path, WithASCII(spectrum.ASCIIInfo{Dim: 1, Order: "XRI", Delimiter: spectrum.DelimTab}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, out, data.Base())
	if out.Source.Format != "ASCII" {
		t.Fatalf("format: got %q", out.Source.Format)
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	data := hypercomplex.MustPlain([]int{2, 2}, []complex128{1 + 2i, 3 - 4i, 0.5, -1i})
	in, err := spectrum.New(data, []spectrum.Axis{
		{Freq: 100e6, SW: 200},
		{Freq: 400e6, SW: 5000, Spec: true, Ref: spectrum.Float(400e6)},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	dir := t.TempDir()

	tests := []struct {
		name   string
		save   func(string) error
		format string
	}{
		{"out.json", func(p string) error { return SaveJSON(p, in) }, "JSON"},
		{"out.mat", func(p string) error { return SaveMAT(p, in, true) }, "MAT"},
		{"out.fid", func(p string) error { return SaveSimpson(p, in) }, "SIMPSON"},
	}
	for _, tc := range tests {
		path := filepath.Join(dir, tc.name)
		if err := tc.save(path); err != nil {
			t.Fatalf("%s: save: %v", tc.name, err)
		}
		out, err := Load(context.Background(), path)
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		if out.Source.Format != tc.format {
			t.Fatalf("%s: format %q want %q", tc.name, out.Source.Format, tc.format)
		}
		if got := out.Shape(); !reflect.DeepEqual(got, []int{2, 2}) {
			t.Fatalf("%s: shape %v", tc.name, got)
		}
		assertSamples(t, out, data.Base())
		if out.Axes[1].SW != 5000 {
			t.Fatalf("%s: sw %v", tc.name, out.Axes[1].SW)
		}
	}
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func tarArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(b); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func xzBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz: %v", err)
	}
	if _, err := xw.Write(b); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := xw.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

func TestLoadArchives(t *testing.T) {
	t.Parallel()

	files := map[string]string{"sim.fid": simpsonFid}
	tests := []struct {
		name string
		data []byte
	}{
		{"run.zip", zipArchive(t, files)},
		{"run.tar.gz", gzipBytes(t, tarArchive(t, files))},
		{"run.tgz", gzipBytes(t, tarArchive(t, files))},
		{"run.tar.xz", xzBytes(t, tarArchive(t, files))},
		{"run.tar", tarArchive(t, files)},
	}
	for _, tc := range tests {
		staging := t.TempDir()
		path := filepath.Join(t.TempDir(), tc.name)
		writeFile(t, path, tc.data)

		s, err := Load(context.Background(), path, WithTempDir(staging))
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		assertSamples(t, s, []complex128{complex(1, -2), complex(3, -4)})
		if s.Name != "run" || !reflect.DeepEqual(s.Source.Paths, []string{path}) {
			t.Fatalf("%s: name %q paths %v", tc.name, s.Name, s.Source.Paths)
		}
		if last := s.History[len(s.History)-1]; last != "extracted from archive "+path {
			t.Fatalf("%s: history %q", tc.name, last)
		}
		assertEmpty(t, staging)
	}
}

func TestLoadArchiveFailuresCleanUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty.zip", zipArchive(t, nil), ErrNotRecognized},
		{"bad.zip", zipArchive(t, map[string]string{"broken.json": "{"}), spectrum.ErrSampleData},
		{"escape.tar", tarArchive(t, map[string]string{"../evil.fid": simpsonFid}), ErrUnsafeArchive},
	}
	for _, tc := range tests {
		staging := t.TempDir()
		path := filepath.Join(t.TempDir(), tc.name)
		writeFile(t, path, tc.data)

		_, err := Load(context.Background(), path, WithTempDir(staging))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.wantErr)
		}
		assertEmpty(t, staging)
	}
}

func TestLoadAllJoins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.fid")
	b := filepath.Join(dir, "b.fid")
	writeFile(t, a, []byte(simpsonFid))
	writeFile(t, b, []byte("SIMP\nNP=2\nSW=1000\nTYPE=FID\nDATA\n5 6\n7 8\nEND\n"))

	s, err := LoadAll(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Shape(); !reflect.DeepEqual(got, []int{2, 2}) {
		t.Fatalf("shape: got %v", got)
	}
	assertSamples(t, s, []complex128{complex(1, -2), complex(3, -4), complex(5, -6), complex(7, -8)})
	if s.Axes[1].SW != 1000 || s.Axes[0].SW != 1 {
		t.Fatalf("axes: got %+v", s.Axes)
	}
	if !reflect.DeepEqual(s.Source.Paths, []string{a, b}) || s.Name != "a" {
		t.Fatalf("provenance: name %q paths %v", s.Name, s.Source.Paths)
	}
	if last := s.History[len(s.History)-1]; last != "joined 2 data sets" {
		t.Fatalf("history: got %q", last)
	}
}

func TestLoadAllShapeMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.fid")
	b := filepath.Join(dir, "b.fid")
	writeFile(t, a, []byte(simpsonFid))
	writeFile(t, b, []byte("SIMP\nNP=1\nSW=1000\nTYPE=FID\nDATA\n5 6\nEND\n"))

	_, err := LoadAll(context.Background(), []string{a, b})
	var dm *spectrum.DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
}

func TestLoadAllCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.fid")
	writeFile(t, a, []byte(simpsonFid))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadAll(ctx, []string{a, a}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLeadingZeroWord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	word := make([]byte, 4)
	binary.BigEndian.PutUint32(word, math.Float32bits(0.75))
	p := filepath.Join(dir, "frac.ft")
	writeFile(t, p, word)
	if !leadingZeroWord(p) {
		t.Fatalf("0.75 should truncate to zero")
	}
	binary.BigEndian.PutUint32(word, math.Float32bits(3))
	writeFile(t, p, word)
	if leadingZeroWord(p) {
		t.Fatalf("3 should not read as a zero word")
	}
	if leadingZeroWord(filepath.Join(dir, "missing")) {
		t.Fatalf("missing file read as a zero word")
	}
}
