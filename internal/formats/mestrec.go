package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// stripControl drops the control characters MestreC embeds in its XML,
// keeping tab, LF and CR.
func stripControl(b []byte) []byte {
	return bytes.Map(func(r rune) rune {
		if (r < 0x20 && r != '\t' && r != '\n' && r != '\r') || r == 0x7f {
			return -1
		}
		return r
	}, b)
}

func xmlText(n *xmlquery.Node, expr string) (string, error) {
	c, err := xmlquery.Query(n, expr)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("no %s element", expr)
	}
	return strings.TrimSpace(c.InnerText()), nil
}

func xmlFloat(n *xmlquery.Node, expr string) (float64, error) {
	t, err := xmlText(n, expr)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(t, 64)
}

type mestrecWindow struct {
	points                    int
	mhz, from, to, timeOrigin float64
}

func readMestrecWindow(n *xmlquery.Node) (mestrecWindow, error) {
	var w mestrecWindow
	t, err := xmlText(n, "Points")
	if err != nil {
		return w, err
	}
	if w.points, err = strconv.Atoi(t); err != nil {
		return w, err
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"MHz", &w.mhz},
		{"From", &w.from},
		{"To", &w.to},
		{"TimeOrigin", &w.timeOrigin},
	} {
		if *f.dst, err = xmlFloat(n, f.name); err != nil {
			return w, err
		}
	}
	return w, nil
}

// LoadMestreC reads a MestReC .mrc document: base64 float32 samples and
// per-dimension windows in an XML tree.
func LoadMestreC(path string, _ Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelMestreC, path)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(stripControl(raw)))
	if err != nil {
		return nil, malformed(labelMestreC, path, err)
	}
	main, err := xmlquery.Query(doc, "/*/Spectrum/Main")
	if err != nil || main == nil {
		return nil, missing(labelMestreC, path, "Spectrum/Main")
	}
	dimText, err := xmlText(main, "Dimensions")
	if err != nil {
		return nil, missing(labelMestreC, path, "Dimensions")
	}
	dim, err := strconv.Atoi(dimText)
	if err != nil || dim < 1 || dim > 2 {
		return nil, unsupported(labelMestreC, path, "%s dimensions", dimText)
	}
	points, err := xmlText(main, "Values/Points")
	if err != nil {
		return nil, missing(labelMestreC, path, "Values/Points")
	}
	blob, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(points), ""))
	if err != nil {
		return nil, malformed(labelMestreC, path, err)
	}
	samples := pairs(binio.Decode(blob, binio.Float32, binary.LittleEndian))

	var phaseable string
	if p, _ := xmlquery.Query(main, "Phaseable"); p != nil {
		phaseable = strings.Join(strings.Fields(p.InnerText()), " ")
	}
	spec := true
	comps := []hypercomplex.Component{{Mask: 0, Data: samples}}
	switch phaseable {
	case "":
		spec = false
	case "f1":
		reverseComplex(samples)
	case "f1 f2":
		reverseComplex(samples)
		half := len(samples) / 2
		d1, d2 := samples[:half], samples[half:2*half]
		re := make([]complex128, half)
		im := make([]complex128, half)
		for i := range re {
			re[i] = complex(real(d2[i]), real(d1[i]))
			im[i] = complex(imag(d2[i]), imag(d1[i]))
		}
		comps = []hypercomplex.Component{{Mask: 0, Data: re}, {Mask: 1, Data: im}}
	default:
		return nil, unsupported(labelMestreC, path, "phaseable %q", phaseable)
	}

	windows, err := xmlquery.QueryAll(main, "Window")
	if err != nil || len(windows) < dim {
		return nil, missing(labelMestreC, path, fmt.Sprintf("%d Window elements", dim))
	}
	// window k describes axis dim-1-k
	axes := make([]spectrum.Axis, dim)
	shape := make([]int, dim)
	for k, wn := range windows[:dim] {
		w, err := readMestrecWindow(wn)
		if err != nil {
			return nil, malformed(labelMestreC, path, fmt.Errorf("window %d: %w", k, err))
		}
		freq := w.mhz * 1e6
		axes[dim-1-k] = spectrum.Axis{
			Freq: freq,
			SW:   (w.to - w.from) * w.mhz,
			Spec: spec,
			Ref:  spectrum.Float(freq * (1 - 1e-6*(w.to+w.from)/2)),
		}
		shape[dim-1-k] = w.points
		if k == 0 {
			axes[dim-1].DFilter = spectrum.Float(w.timeOrigin * 2 * math.Pi)
		}
	}
	if dim == 1 {
		shape[0] = len(comps[0].Data)
	}
	data, err := hypercomplex.New(shape, comps...)
	if err != nil {
		return nil, malformed(labelMestreC, path, err)
	}
	return build(labelMestreC, path, sum, data, axes)
}
