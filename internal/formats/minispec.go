package formats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// minispecDataLine is the first line holding samples.
const minispecDataLine = 7

func minispecValue(line string) (string, error) {
	_, val, ok := strings.Cut(line, "=")
	if !ok {
		return "", fmt.Errorf("no value in %q", line)
	}
	return strings.TrimSpace(val), nil
}

// LoadMinispec reads a Bruker minispec .sig text file.
func LoadMinispec(path string, _ Options) (*spectrum.Spectrum, error) {
	raw, sum, err := payload(labelMinispec, path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if len(lines) < minispecDataLine {
		return nil, truncated(labelMinispec, path, minispecDataLine, len(lines))
	}
	val, err := minispecValue(lines[1])
	if err != nil {
		return nil, malformed(labelMinispec, path, err)
	}
	kind, err := strconv.Atoi(val)
	if err != nil {
		return nil, malformed(labelMinispec, path, err)
	}
	val, err = minispecValue(lines[2])
	if err != nil {
		return nil, malformed(labelMinispec, path, err)
	}
	var limits []float64
	for _, f := range strings.Split(val, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, malformed(labelMinispec, path, err)
		}
		limits = append(limits, v)
	}
	if len(limits) < 3 || limits[2] < 2 {
		return nil, malformed(labelMinispec, path, fmt.Errorf("bad axis limits %v", limits))
	}
	dw := (limits[1] - limits[0]) / (limits[2] - 1)
	var sw float64
	switch {
	case strings.Contains(lines[3], "Time/ms"):
		sw = 1 / dw * 1000
	case strings.Contains(lines[3], "Time/s"):
		sw = 1 / dw
	default:
		return nil, unsupported(labelMinispec, path, "axis %q", strings.TrimSpace(lines[3]))
	}

	var samples []complex128
	for i, line := range lines[minispecDataLine:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n := minispecDataLine + i + 1
		switch kind {
		case 1:
			v, err := strconv.ParseFloat(line, 64)
			if err != nil {
				return nil, malformed(labelMinispec, path, fmt.Errorf("line %d: %w", n, err))
			}
			samples = append(samples, complex(v, 0))
		case 2:
			f := strings.Split(line, "\t")
			if len(f) < 2 {
				return nil, malformed(labelMinispec, path, fmt.Errorf("line %d: want two columns", n))
			}
			re, err := strconv.ParseFloat(strings.TrimSpace(f[0]), 64)
			if err != nil {
				return nil, malformed(labelMinispec, path, fmt.Errorf("line %d: %w", n, err))
			}
			im, err := strconv.ParseFloat(strings.TrimSpace(f[1]), 64)
			if err != nil {
				return nil, malformed(labelMinispec, path, fmt.Errorf("line %d: %w", n, err))
			}
			samples = append(samples, complex(re, -im))
		default:
			return nil, unsupported(labelMinispec, path, "data type %d", kind)
		}
	}
	data, err := hypercomplex.Plain([]int{len(samples)}, samples)
	if err != nil {
		return nil, malformed(labelMinispec, path, err)
	}
	return build(labelMinispec, path, sum, data, []spectrum.Axis{{SW: sw}})
}
