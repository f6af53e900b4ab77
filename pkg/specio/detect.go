package specio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Extensions matched without regard to case.
var foldedExt = map[string]Format{
	".json": FormatJSON,
	".mat":  FormatMAT,
	".ima":  FormatSiemens,
	".1r":   FormatWinNMR,
	".1i":   FormatWinNMR,
	".mrc":  FormatMestreC,
}

// Extensions matched exactly.
var exactExt = map[string]Format{
	".jdf":   FormatJEOL,
	".dx":    FormatJCAMP,
	".jdx":   FormatJCAMP,
	".jcamp": FormatJCAMP,
	".sig":   FormatMinispec,
}

var archiveSuffixes = []string{".zip", ".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar"}

// Detect decides which loader handles path. It only stats files, lists a
// directory and reads at most four bytes of a candidate data file. The
// second result is false when nothing matches.
func Detect(path string) (Descriptor, bool) {
	st, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, false
	}
	if st.IsDir() {
		return matchDir(path, path, false)
	}
	if isArchive(path) {
		return Descriptor{Format: FormatArchive, Path: path}, true
	}

	ext := filepath.Ext(path)
	if f, ok := foldedExt[strings.ToLower(ext)]; ok {
		return Descriptor{Format: f, Path: path}, true
	}
	if f, ok := exactExt[ext]; ok {
		return Descriptor{Format: f, Path: path}, true
	}

	switch lower := strings.ToLower(ext); {
	case lower == ".fid" || lower == ".spe":
		base := strings.TrimSuffix(path, ext)
		if isFile(base+".AQS") || isFile(base+".aqs") {
			return Descriptor{Format: FormatWinNMR, Path: path}, true
		}
		if leadingZeroWord(path) {
			return Descriptor{Format: FormatPipe, Path: path}, true
		}
		return Descriptor{Format: FormatSimpson, Path: path}, true
	case ext == ".ft" || (len(ext) == 4 && strings.HasPrefix(ext, ".ft") && ext[3] >= '1' && ext[3] <= '4'):
		if leadingZeroWord(path) {
			return Descriptor{Format: FormatPipe, Path: path}, true
		}
	}

	if d, ok := matchDir(filepath.Dir(path), path, true); ok {
		return d, true
	}
	return Descriptor{Format: FormatASCII, Path: path, Ambiguous: true}, true
}

// matchDir matches the sibling files of vendor directory layouts. file is
// the path the caller asked about, used to name the EPR base.
func matchDir(dir, file string, sibling bool) (Descriptor, bool) {
	has := func(name string) bool { return isFile(filepath.Join(dir, name)) }
	found := func(f Format, p string) (Descriptor, bool) {
		return Descriptor{Format: f, Path: p, Ambiguous: sibling}, true
	}

	switch {
	case has("procpar") && has("fid"),
		(has("procpar") || isFile(filepath.Join(dir, "..", "procpar"))) && has("data"):
		return found(FormatVarian, dir)
	case has("acqus") && (has("fid") || has("ser")):
		return found(FormatBruker, dir)
	case has("procs") && (has("1r") || has("2rr") || has("3rrr")):
		return found(FormatBrukerProcessed, dir)
	case has("acq") && has("data"):
		return found(FormatChemagnetics, dir)
	case has("acqu.par") && hasMagritekData(dir):
		return found(FormatMagritek, dir)
	}

	if sibling {
		base := strings.TrimSuffix(file, filepath.Ext(file))
		if isFile(base+".spc") && isFile(base+".par") {
			return found(FormatEPR, base)
		}
		return Descriptor{}, false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Descriptor{}, false
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".spc" {
			continue
		}
		base := filepath.Join(dir, strings.TrimSuffix(name, ".spc"))
		if isFile(base + ".par") {
			return found(FormatEPR, base)
		}
	}
	return Descriptor{}, false
}

func hasMagritekData(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".1d") || strings.Contains(e.Name(), ".2d") {
			return true
		}
	}
	return false
}

// leadingZeroWord reports whether the first word of path, read as a big-endian
// float32, truncates to zero. NMRPipe headers start with a zero word.
func leadingZeroWord(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	var word [4]byte
	if _, err := f.ReadAt(word[:], 0); err != nil {
		return false
	}
	v := math.Float32frombits(binary.BigEndian.Uint32(word[:]))
	return int64(v) == 0
}

func isArchive(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
