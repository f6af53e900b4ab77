// Package specio detects and loads NMR and EPR data sets written by vendor
// software and persists the resulting spectra.
package specio

import (
	"errors"

	"github.com/samcharles93/specio/internal/formats"
)

// Format identifies a detected on-disk layout.
type Format int

const (
	FormatUnknown Format = iota
	FormatVarian
	FormatBruker
	FormatBrukerProcessed
	FormatWinNMR
	FormatChemagnetics
	FormatMagritek
	FormatSimpson
	FormatPipe
	FormatJEOL
	FormatJCAMP
	FormatASCII
	FormatMinispec
	FormatEPR
	FormatSiemens
	FormatMestreC
	FormatJSON
	FormatMAT
	// FormatArchive is a zip or tar archive staged before detection.
	FormatArchive
)

var formatNames = [...]string{
	FormatUnknown:         "unknown",
	FormatVarian:          "Varian",
	FormatBruker:          "Bruker",
	FormatBrukerProcessed: "Bruker processed",
	FormatWinNMR:          "Bruker WinNMR",
	FormatChemagnetics:    "Chemagnetics",
	FormatMagritek:        "Magritek",
	FormatSimpson:         "SIMPSON",
	FormatPipe:            "NMRPipe",
	FormatJEOL:            "JEOL Delta",
	FormatJCAMP:           "JCAMP-DX",
	FormatASCII:           "ASCII",
	FormatMinispec:        "Bruker minispec",
	FormatEPR:             "Bruker EPR",
	FormatSiemens:         "Siemens IMA",
	FormatMestreC:         "MestreC",
	FormatJSON:            "JSON",
	FormatMAT:             "MAT",
	FormatArchive:         "archive",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return "unknown"
	}
	return formatNames[f]
}

// Descriptor is the outcome of format detection.
type Descriptor struct {
	Format Format
	// Path is what the loader receives. For Bruker EPR it is the shared
	// base name of the .spc and .par files.
	Path string
	// Ambiguous is set when the format was inferred from sibling files or
	// from the plain-text fallback rather than from the file itself.
	Ambiguous bool
}

var (
	// ErrNotRecognized is returned when no format matches a path.
	ErrNotRecognized = errors.New("data format not recognized")
	// ErrNeedsInfo is returned when plain-text input is loaded without a
	// column layout.
	ErrNeedsInfo = formats.ErrNeedsInfo
)
