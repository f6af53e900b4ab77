package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// ErrNeedsInfo is returned when plain-text data is loaded without a
// column layout.
var ErrNeedsInfo = errors.New("ascii data needs a column layout")

// asciiMatrix reads a delimited numeric table, skipping blank lines and
// lines starting with '#'.
func asciiMatrix(r io.Reader, delim spectrum.Delimiter) ([][]float64, error) {
	var splitRow func(string) []string
	switch delim {
	case spectrum.DelimTab:
		splitRow = func(s string) []string { return strings.Split(s, "\t") }
	case spectrum.DelimComma:
		splitRow = func(s string) []string { return strings.Split(s, ",") }
	case spectrum.DelimSpace:
		splitRow = strings.Fields
	default:
		return nil, fmt.Errorf("unknown delimiter %q", delim)
	}
	var rows [][]float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitRow(line)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", n, i+1, err)
			}
			row[i] = v
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("line %d: %d columns, want %d", n, len(row), len(rows[0]))
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no data rows")
	}
	return rows, nil
}

func column(rows [][]float64, c int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[c]
	}
	return out
}

// asciiColumns maps a layout to the (real, imaginary) column pairs of each
// trace. -1 marks an absent part.
func asciiColumns(order string, ncols, dim int) ([][2]int, bool, error) {
	hasX := strings.HasPrefix(order, "X")
	first := 0
	if hasX {
		first = 1
	}
	var re, im bool
	switch order {
	case "XRI", "RI":
		re, im = true, true
	case "XR", "R":
		re = true
	case "XI":
		im = true
	default:
		return nil, false, fmt.Errorf("unknown column order %q", order)
	}
	width := 1
	if re && im {
		width = 2
	}
	traces := (ncols - first) / width
	if traces < 1 || (dim == 1 && traces != 1) || (ncols-first)%width != 0 {
		return nil, false, fmt.Errorf("%d columns do not fit order %s in %dD", ncols, order, dim)
	}
	out := make([][2]int, traces)
	for t := range out {
		c := first + t*width
		switch {
		case re && im:
			out[t] = [2]int{c, c + 1}
		case re:
			out[t] = [2]int{c, -1}
		default:
			out[t] = [2]int{-1, c}
		}
	}
	return out, hasX, nil
}

// LoadASCII reads a delimited text table described by opt.ASCII. Columns
// hold one trace each; 2D tables become one row of data per trace.
func LoadASCII(path string, opt Options) (*spectrum.Spectrum, error) {
	info := opt.ASCII
	if info == nil {
		return nil, ErrNeedsInfo
	}
	if info.Dim != 1 && info.Dim != 2 {
		return nil, unsupported(labelASCII, path, "%d dimensions", info.Dim)
	}
	raw, sum, err := payload(labelASCII, path)
	if err != nil {
		return nil, err
	}
	rows, err := asciiMatrix(bytes.NewReader(raw), info.Delimiter)
	if err != nil {
		return nil, malformed(labelASCII, path, err)
	}
	cols, hasX, err := asciiColumns(info.Order, len(rows[0]), info.Dim)
	if err != nil {
		return nil, malformed(labelASCII, path, err)
	}
	n := len(rows)

	direct := spectrum.Axis{Spec: info.Spec, SW: info.SWkHz * 1000}
	if hasX {
		x := column(rows, 0)
		switch {
		case n < 2:
			return nil, malformed(labelASCII, path, errors.New("an X column needs at least two rows"))
		case !info.Spec:
			direct.SW = 1 / (x[1] - x[0])
		default:
			direct.SW = math.Abs(x[0]-x[n-1]) / float64(n-1) * float64(n)
		}
		direct.XAxis = x
	}

	samples := make([]complex128, 0, n*len(cols))
	for _, c := range cols {
		for _, r := range rows {
			var v complex128
			if c[0] >= 0 {
				v += complex(r[c[0]], 0)
			}
			if c[1] >= 0 {
				v += complex(0, r[c[1]])
			}
			samples = append(samples, v)
		}
	}
	shape := []int{n}
	axes := []spectrum.Axis{direct}
	if info.Dim == 2 {
		shape = []int{len(cols), n}
		axes = []spectrum.Axis{{SW: 1}, direct}
	}
	data, err := hypercomplex.Plain(shape, samples)
	if err != nil {
		return nil, malformed(labelASCII, path, err)
	}
	s, err := build(labelASCII, path, sum, data, axes)
	if err != nil {
		return nil, err
	}
	layout := *info
	s.Source.ASCII = &layout
	return s, nil
}

// WriteASCII writes the base component as a tab-delimited table: the
// coordinates of the last axis scaled by axMult, then a real and an
// imaginary column per trace.
func WriteASCII(w io.Writer, s *spectrum.Spectrum, axMult float64) error {
	shape := s.Shape()
	if len(shape) > 2 {
		return unsupported(labelASCII, "", "%d dimensions", len(shape))
	}
	n := shape[len(shape)-1]
	traces := 1
	if len(shape) == 2 {
		traces = shape[0]
	}
	x := s.XAxisOrDefault(len(shape) - 1)
	base := s.Data.Base()
	bw := bufio.NewWriter(w)
	for i := range n {
		bw.WriteString(strconv.FormatFloat(x[i]*axMult, 'g', -1, 64))
		for t := range traces {
			v := base[t*n+i]
			bw.WriteByte('\t')
			bw.WriteString(strconv.FormatFloat(real(v), 'g', -1, 64))
			bw.WriteByte('\t')
			bw.WriteString(strconv.FormatFloat(imag(v), 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveASCII writes s to path as a tab-delimited table.
func SaveASCII(path string, s *spectrum.Spectrum, axMult float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASCII(f, s, axMult); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
