package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// simpsonBase is the offset of the printable alphabet used by the BINARY
// encoding: every 4 characters carry 3 bytes, 6 bits per character.
const simpsonBase = 33

type simpsonHeader struct {
	np, ni  int
	sw, sw1 float64
	typ     string
	format  string
}

// LoadSimpson reads a SIMPSON text file in either the plain or the BINARY
// data encoding.
func LoadSimpson(path string, _ Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelSimpson, path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	start, end := -1, -1
	for i, l := range lines {
		switch strings.TrimSpace(l) {
		case "DATA":
			if start < 0 {
				start = i
			}
		case "END":
			if start >= 0 && end < 0 {
				end = i
			}
		}
	}
	if start < 0 || end < 0 {
		return nil, malformed(labelSimpson, path, errors.New("no DATA ... END section"))
	}
	h := simpsonHeader{ni: 1, format: "Normal"}
	for _, l := range lines[:start] {
		key, val, ok := strings.Cut(strings.TrimSpace(l), "=")
		if !ok {
			continue
		}
		var perr error
		switch key {
		case "NP":
			h.np, perr = strconv.Atoi(val)
		case "NI":
			h.ni, perr = strconv.Atoi(val)
		case "SW":
			h.sw, perr = strconv.ParseFloat(val, 64)
		case "SW1":
			h.sw1, perr = strconv.ParseFloat(val, 64)
		case "TYPE":
			h.typ = val
		case "FORMAT":
			h.format = val
		}
		if perr != nil {
			return nil, malformed(labelSimpson, path, fmt.Errorf("%s: %w", key, perr))
		}
	}

	var vals []float64
	switch {
	case strings.Contains(h.format, "BINARY"):
		vals, err = simpsonBinary(strings.Join(lines[start+1:end], ""))
	case strings.Contains(h.format, "Normal"):
		vals, err = simpsonText(lines[start+1 : end])
	default:
		return nil, unsupported(labelSimpson, path, "FORMAT=%s", h.format)
	}
	if err != nil {
		return nil, malformed(labelSimpson, path, err)
	}

	var spec bool
	switch {
	case strings.Contains(h.typ, "FID"):
	case strings.Contains(h.typ, "SPE"):
		spec = true
	default:
		return nil, unsupported(labelSimpson, path, "TYPE=%s", h.typ)
	}
	samples := pairs(vals)
	shape := []int{len(samples)}
	axes := []spectrum.Axis{{SW: h.sw, Spec: spec}}
	if h.ni != 1 {
		if h.ni <= 0 || len(samples)%h.ni != 0 {
			return nil, truncated(labelSimpson, path, h.ni*h.np*2, len(samples)*2)
		}
		shape = []int{h.ni, len(samples) / h.ni}
		axes = []spectrum.Axis{{SW: h.sw1, Spec: spec}, {SW: h.sw, Spec: spec}}
	}
	data, err := hypercomplex.Plain(shape, samples)
	if err != nil {
		return nil, malformed(labelSimpson, path, err)
	}
	return build(labelSimpson, path, sum, data, axes)
}

func simpsonText(lines []string) ([]float64, error) {
	out := make([]float64, 0, 2*len(lines))
	for i, l := range lines {
		f := strings.Fields(l)
		if len(f) == 0 {
			continue
		}
		if len(f) < 2 {
			return nil, fmt.Errorf("data line %d: want 2 columns, got %d", i+1, len(f))
		}
		re, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			return nil, fmt.Errorf("data line %d: %w", i+1, err)
		}
		im, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return nil, fmt.Errorf("data line %d: %w", i+1, err)
		}
		out = append(out, re, im)
	}
	return out, nil
}

// simpsonBinary decodes the base-33 character stream into little-endian
// float32 values. Bytes left over after the last whole float are ignored.
func simpsonBinary(chars string) ([]float64, error) {
	if len(chars)%4 != 0 {
		return nil, fmt.Errorf("binary data length %d is not a multiple of 4", len(chars))
	}
	buf := make([]byte, 0, len(chars)/4*3)
	for i := 0; i < len(chars); i += 4 {
		var c [4]byte
		for k := range c {
			c[k] = chars[i+k] - simpsonBase
		}
		buf = append(buf,
			c[0]&0x3f|(c[1]<<2)&0xc0,
			c[1]&0x0f|(c[2]<<2)&0xf0,
			c[2]&0x03|(c[3]<<2)&0xfc,
		)
	}
	out := make([]float64, len(buf)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
	}
	return out, nil
}

// WriteSimpson writes the base component of a 1D or 2D spectrum as a plain
// SIMPSON text file.
func WriteSimpson(w io.Writer, s *spectrum.Spectrum) error {
	shape := s.Shape()
	if len(shape) > 2 {
		return unsupported(labelSimpson, "", "%d dimensions", len(shape))
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "SIMP")
	if len(shape) == 2 {
		fmt.Fprintf(bw, "NP=%d\nNI=%d\n", shape[1], shape[0])
		fmt.Fprintf(bw, "SW=%s\nSW1=%s\n", params.FormatFloat(s.Axes[1].SW), params.FormatFloat(s.Axes[0].SW))
	} else {
		fmt.Fprintf(bw, "NP=%d\nSW=%s\n", shape[0], params.FormatFloat(s.Axes[0].SW))
	}
	if s.Axes[0].Spec {
		fmt.Fprintln(bw, "TYPE=SPE")
	} else {
		fmt.Fprintln(bw, "TYPE=FID")
	}
	fmt.Fprintln(bw, "DATA")
	for _, v := range s.Data.Base() {
		// stored pairs read back as re - i*im
		fmt.Fprintf(bw, "%s %s\n", params.FormatFloat(real(v)), params.FormatFloat(-imag(v)))
	}
	fmt.Fprint(bw, "END")
	return bw.Flush()
}

// SaveSimpson writes s to path as a SIMPSON file.
func SaveSimpson(path string, s *spectrum.Spectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSimpson(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
