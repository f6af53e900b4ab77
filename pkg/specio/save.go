package specio

import (
	"github.com/samcharles93/specio/internal/formats"
	"github.com/samcharles93/specio/internal/serial"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// SaveJSON writes s as a JSON document that Load reads back.
func SaveJSON(path string, s *spectrum.Spectrum) error { return serial.SaveJSON(path, s) }

// SaveMAT writes s as a level 5 MAT-file holding a struct named "spectrum".
func SaveMAT(path string, s *spectrum.Spectrum, compress bool) error {
	return serial.SaveMAT(path, s, compress)
}

// SaveSimpson writes a one or two dimensional spectrum as SIMPSON text.
func SaveSimpson(path string, s *spectrum.Spectrum) error { return formats.SaveSimpson(path, s) }

// SaveASCII writes s as tab-separated columns: axis values scaled by
// axMult, then real and imaginary parts.
func SaveASCII(path string, s *spectrum.Spectrum, axMult float64) error {
	return formats.SaveASCII(path, s, axMult)
}
