package formats

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

var jcampListSep = regexp.MustCompile(`,[\t ]+`)

// jcampHeader collects the labelled records a JCAMP-DX NMR file needs.
type jcampHeader struct {
	dataType     string
	freq         float64
	nPoints      int
	varForm      []string
	first, last  float64
	factor       []float64
	xUnit        string
	firstX       float64
	lastX        float64
	yFactor      float64
	nPointsTotal int

	realLines, imagLines, specLines [2]int
	has                             map[string]bool
}

// jcampList splits a comma separated record value.
func jcampList(val string) []string {
	val = jcampListSep.ReplaceAllString(val, " ")
	val = strings.NewReplacer("\t", "", "\r", "").Replace(val)
	return strings.Fields(val)
}

func jcampFloat(val string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", "."), 64)
}

func parseJCAMPHeader(lines []string) (*jcampHeader, error) {
	h := &jcampHeader{
		realLines: [2]int{-1, -1},
		imagLines: [2]int{-1, -1},
		specLines: [2]int{-1, -1},
		has:       map[string]bool{},
		yFactor:   1,
	}
	for pos, line := range lines {
		test := strings.NewReplacer(" ", "", "\t", "").Replace(line)
		_, val, _ := strings.Cut(line, "=")
		var err error
		switch {
		case strings.Contains(test, "#.OBSERVEFREQUENCY="):
			h.freq, err = jcampFloat(val)
			h.freq *= 1e6
			h.has["freq"] = true
		case strings.Contains(test, "##DATATYPE="):
			h.dataType = strings.TrimSpace(val)
		case strings.Contains(test, "#VAR_DIM="):
			if f := jcampList(val); len(f) > 0 {
				h.nPoints, err = strconv.Atoi(f[0])
				h.has["nPoints"] = true
			}
		case strings.Contains(test, "#VAR_FORM="):
			h.varForm = jcampList(val)
		case strings.Contains(test, "#FIRST="):
			if f := jcampList(val); len(f) > 0 {
				h.first, err = jcampFloat(f[0])
				h.has["first"] = true
			}
		case strings.Contains(test, "#LAST="):
			if f := jcampList(val); len(f) > 0 {
				h.last, err = jcampFloat(f[0])
				h.has["last"] = true
			}
		case strings.Contains(test, "#FACTOR="):
			h.factor = h.factor[:0]
			for _, f := range jcampList(val) {
				v, ferr := jcampFloat(f)
				if ferr != nil {
					err = ferr
					break
				}
				h.factor = append(h.factor, v)
			}
		case strings.Contains(test, "(X++(R..R))"):
			h.realLines[0] = pos + 1
		case strings.Contains(test, "#PAGE=") && h.realLines[0] >= 0 && h.realLines[1] < 0:
			h.realLines[1] = pos - 1
		case strings.Contains(test, "(X++(I..I))"):
			h.imagLines[0] = pos + 1
		case strings.Contains(test, "#ENDNTUPLES=") && h.imagLines[0] >= 0 && h.imagLines[1] < 0:
			h.imagLines[1] = pos - 1
		case strings.Contains(test, "(X++(Y..Y))"):
			h.specLines[0] = pos + 1
		case strings.Contains(test, "##END") && h.specLines[0] >= 0 && h.specLines[1] < 0:
			h.specLines[1] = pos - 1
		case strings.Contains(test, "##XUNITS="):
			h.xUnit = strings.NewReplacer(" ", "", "\t", "", "\r", "").Replace(val)
		case strings.Contains(test, "##FIRSTX="):
			h.firstX, err = jcampFloat(val)
			h.has["firstX"] = true
		case strings.Contains(test, "##LASTX="):
			h.lastX, err = jcampFloat(val)
			h.has["lastX"] = true
		case strings.Contains(test, "##YFACTOR="):
			h.yFactor, err = jcampFloat(val)
		case strings.Contains(test, "##NPOINTS="):
			h.nPointsTotal, err = strconv.Atoi(strings.TrimSpace(val))
			h.has["npoints"] = true
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", pos+1, err)
		}
	}
	return h, nil
}

// jcampBlock decodes the ordinate lines [span[0], span[1]] in the given
// form.
func jcampBlock(lines []string, span [2]int, form string) ([]float64, error) {
	if span[0] < 0 || span[1] < span[0]-1 || span[1] >= len(lines) {
		return nil, errors.New("data table not found")
	}
	var out []float64
	for _, line := range lines[span[0] : span[1]+1] {
		switch form {
		case "ASDF":
			v, err := decodeDIFDUB(line)
			if err != nil {
				return nil, err
			}
			out = append(out, v...)
		case "AFFN":
			fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' || r == ',' || r == '\r' })
			// the first field is the abscissa
			for i := 1; i < len(fields); i++ {
				v, err := strconv.ParseFloat(fields[i], 64)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		default:
			return nil, fmt.Errorf("unknown data form %q", form)
		}
	}
	return out, nil
}

// LoadJCAMP reads a JCAMP-DX NMR FID (ASDF or AFFN ntuples) or an
// NMRSPECTRUM in DIFDUB form.
func LoadJCAMP(path string, _ Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelJCAMP, path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(raw), "\n")
	h, err := parseJCAMPHeader(lines)
	if err != nil {
		return nil, malformed(labelJCAMP, path, err)
	}
	if !h.has["freq"] {
		return nil, missing(labelJCAMP, path, ".OBSERVE FREQUENCY")
	}

	var (
		samples []complex128
		axis    spectrum.Axis
	)
	// NMR SPECTRUM is also written without the space
	kind := strings.ReplaceAll(h.dataType, " ", "")
	switch {
	case strings.Contains(kind, "NMRFID"):
		if len(h.varForm) < 3 || len(h.factor) < 3 {
			return nil, missing(labelJCAMP, path, "VAR_FORM or FACTOR")
		}
		if !h.has["first"] || !h.has["last"] || !h.has["nPoints"] || h.nPoints < 2 {
			return nil, missing(labelJCAMP, path, "FIRST, LAST or VAR_DIM")
		}
		re, err := jcampBlock(lines, h.realLines, h.varForm[1])
		if err != nil {
			return nil, malformed(labelJCAMP, path, fmt.Errorf("real page: %w", err))
		}
		im, err := jcampBlock(lines, h.imagLines, h.varForm[2])
		if err != nil {
			return nil, malformed(labelJCAMP, path, fmt.Errorf("imaginary page: %w", err))
		}
		if len(re) != len(im) {
			return nil, truncated(labelJCAMP, path, len(re), len(im))
		}
		for i := range re {
			re[i] *= h.factor[1]
			im[i] *= h.factor[2]
		}
		samples = split(re, im)
		axis = spectrum.Axis{Freq: h.freq, SW: 1 / ((h.last - h.first) / float64(h.nPoints-1))}
	case strings.Contains(kind, "NMRSPECTRUM"):
		if !h.has["firstX"] || !h.has["lastX"] || !h.has["npoints"] || h.nPointsTotal == 0 {
			return nil, missing(labelJCAMP, path, "FIRSTX, LASTX or NPOINTS")
		}
		vals, err := jcampBlock(lines, h.specLines, "ASDF")
		if err != nil {
			return nil, malformed(labelJCAMP, path, err)
		}
		reverseFloats(vals)
		for i := range vals {
			vals[i] *= h.yFactor
		}
		samples = reals(vals)
		var sw float64
		switch h.xUnit {
		case "HZ":
			sw = math.Abs(h.firstX - h.lastX)
		case "PPM":
			sw = math.Abs(h.firstX-h.lastX) * h.freq * 1e-6
		default:
			return nil, unsupported(labelJCAMP, path, "XUNITS=%s", h.xUnit)
		}
		sw += sw / float64(h.nPointsTotal)
		axis = spectrum.Axis{Freq: h.freq, SW: sw, Spec: true}
	default:
		return nil, unsupported(labelJCAMP, path, "DATA TYPE=%s", h.dataType)
	}
	data, err := hypercomplex.Plain([]int{len(samples)}, samples)
	if err != nil {
		return nil, malformed(labelJCAMP, path, err)
	}
	return build(labelJCAMP, path, sum, data, []spectrum.Axis{axis})
}
