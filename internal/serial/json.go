package serial

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/specio/pkg/spectrum"
)

// SaveJSON writes s to path as a JSON document.
func SaveJSON(path string, s *spectrum.Spectrum) error {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// WriteJSON encodes s. Data arrays carry a leading component axis whose
// masks are listed under "hyper". Missing references are written as NaN.
func WriteJSON(w io.Writer, s *spectrum.Spectrum) error {
	r := flatten(s)
	full := append([]int{len(r.masks)}, r.shape...)

	o := &object{}
	o.raw("dataReal", appendNested(nil, r.re, full))
	o.raw("dataImag", appendNested(nil, r.im, full))
	if err := o.value("hyper", r.masks); err != nil {
		return err
	}
	o.raw("freq", appendFloats(nil, r.freq))
	o.raw("sw", appendFloats(nil, r.sw))
	o.raw("spec", appendFloats(nil, boolFloats(r.spec)))
	o.raw("wholeEcho", appendFloats(nil, boolFloats(r.wholeEcho)))
	o.raw("ref", appendFloats(nil, r.ref))
	history := r.history
	if history == nil {
		history = []string{}
	}
	if err := o.value("history", history); err != nil {
		return err
	}
	meta := r.meta
	if meta == nil {
		meta = map[string]string{}
	}
	if err := o.value("metaData", meta); err != nil {
		return err
	}
	if r.dFilter != nil {
		o.raw("dFilter", appendFloat(nil, *r.dFilter))
	}
	var xax []byte
	xax = append(xax, '[')
	for i, x := range r.xax {
		if i > 0 {
			xax = append(xax, ',')
		}
		xax = appendFloats(xax, x)
	}
	xax = append(xax, ']')
	o.raw("xaxArray", xax)

	_, err := w.Write(o.close())
	return err
}

// object assembles a JSON object with keys in insertion order.
type object struct {
	buf []byte
}

func (o *object) raw(key string, val []byte) {
	if len(o.buf) == 0 {
		o.buf = append(o.buf, '{')
	} else {
		o.buf = append(o.buf, ", "...)
	}
	o.buf = strconv.AppendQuote(o.buf, key)
	o.buf = append(o.buf, ": "...)
	o.buf = append(o.buf, val...)
}

func (o *object) value(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	o.raw(key, b)
	return nil
}

func (o *object) close() []byte {
	if len(o.buf) == 0 {
		return []byte("{}")
	}
	return append(o.buf, '}')
}

func boolFloats(v []bool) []float64 {
	out := make([]float64, len(v))
	for i, b := range v {
		if b {
			out[i] = 1
		}
	}
	return out
}

// appendFloat writes v, using the NaN and Infinity tokens that JSON
// readers in numeric environments accept.
func appendFloat(b []byte, v float64) []byte {
	switch {
	case math.IsNaN(v):
		return append(b, "NaN"...)
	case math.IsInf(v, 1):
		return append(b, "Infinity"...)
	case math.IsInf(v, -1):
		return append(b, "-Infinity"...)
	}
	return strconv.AppendFloat(b, v, 'g', -1, 64)
}

func appendFloats(b []byte, v []float64) []byte {
	b = append(b, '[')
	for i, x := range v {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = appendFloat(b, x)
	}
	return append(b, ']')
}

// appendNested writes row-major values as nested arrays over shape.
func appendNested(b []byte, v []float64, shape []int) []byte {
	if len(shape) <= 1 {
		return appendFloats(b, v)
	}
	stride := len(v) / max(shape[0], 1)
	b = append(b, '[')
	for i := range shape[0] {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = appendNested(b, v[i*stride:(i+1)*stride], shape[1:])
	}
	return append(b, ']')
}

// LoadJSON reads a spectrum written by SaveJSON or by older tools.
func LoadJSON(path string) (*spectrum.Spectrum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(b, path)
}

// DecodeJSON parses a JSON document. Documents without "hyper" hold a
// single component and no component axis.
func DecodeJSON(b []byte, path string) (*spectrum.Spectrum, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(quoteNonFinite(b), &doc); err != nil {
		return nil, &spectrum.FileFormatError{Format: ContainerJSON, Path: path, Reason: "malformed", Err: err}
	}
	for _, key := range []string{"dataReal", "dataImag", "freq", "sw", "spec", "ref"} {
		if _, ok := doc[key]; !ok {
			return nil, schemaMissing(ContainerJSON, key)
		}
	}
	r := &record{}
	reShape, re, err := nested(doc["dataReal"])
	if err != nil {
		return nil, schemaBad(ContainerJSON, "dataReal", "%v", err)
	}
	imShape, im, err := nested(doc["dataImag"])
	if err != nil {
		return nil, schemaBad(ContainerJSON, "dataImag", "%v", err)
	}
	if !slices.Equal(reShape, imShape) {
		return nil, schemaBad(ContainerJSON, "dataImag", "shape %v differs from dataReal %v", imShape, reShape)
	}
	r.re, r.im = re, im
	if raw, ok := doc["hyper"]; ok {
		hyper, err := numbers(raw)
		if err != nil {
			return nil, schemaBad(ContainerJSON, "hyper", "%v", err)
		}
		if len(reShape) < 2 || reShape[0] != len(hyper) {
			return nil, schemaBad(ContainerJSON, "hyper", "%d masks for data of shape %v", len(hyper), reShape)
		}
		for _, h := range hyper {
			r.masks = append(r.masks, uint32(h))
		}
		r.shape = reShape[1:]
	} else {
		r.masks = []uint32{0}
		r.shape = reShape
	}

	if r.freq, err = numbers(doc["freq"]); err != nil {
		return nil, schemaBad(ContainerJSON, "freq", "%v", err)
	}
	if r.sw, err = numbers(doc["sw"]); err != nil {
		return nil, schemaBad(ContainerJSON, "sw", "%v", err)
	}
	if r.ref, err = numbers(doc["ref"]); err != nil {
		return nil, schemaBad(ContainerJSON, "ref", "%v", err)
	}
	if r.spec, err = flags(doc["spec"]); err != nil {
		return nil, schemaBad(ContainerJSON, "spec", "%v", err)
	}
	if raw, ok := doc["wholeEcho"]; ok {
		if r.wholeEcho, err = flags(raw); err != nil {
			return nil, schemaBad(ContainerJSON, "wholeEcho", "%v", err)
		}
	}
	if raw, ok := doc["dFilter"]; ok {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, schemaBad(ContainerJSON, "dFilter", "%v", err)
		}
		if v != nil {
			f, err := toFloat(v)
			if err != nil {
				return nil, schemaBad(ContainerJSON, "dFilter", "%v", err)
			}
			r.dFilter = spectrum.Float(f)
		}
	}
	if raw, ok := doc["history"]; ok {
		if err := json.Unmarshal(raw, &r.history); err != nil {
			return nil, schemaBad(ContainerJSON, "history", "%v", err)
		}
	}
	if raw, ok := doc["metaData"]; ok {
		var meta map[string]any
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, schemaBad(ContainerJSON, "metaData", "%v", err)
		}
		r.meta = make(map[string]string, len(meta))
		for k, v := range meta {
			r.meta[k] = text(v)
		}
	}
	if raw, ok := doc["xaxArray"]; ok {
		var axes []json.RawMessage
		if err := json.Unmarshal(raw, &axes); err != nil {
			return nil, schemaBad(ContainerJSON, "xaxArray", "%v", err)
		}
		for _, a := range axes {
			x, err := numbers(a)
			if err != nil {
				return nil, schemaBad(ContainerJSON, "xaxArray", "%v", err)
			}
			r.xax = append(r.xax, x)
		}
	}
	return r.build(ContainerJSON, path)
}

// quoteNonFinite turns the bare NaN, Infinity and -Infinity tokens some
// writers emit into strings so a strict decoder accepts the document.
func quoteNonFinite(b []byte) []byte {
	var out []byte
	inString, escaped := false, false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		matched := false
		for _, tok := range []string{"NaN", "Infinity", "-Infinity"} {
			if bytes.HasPrefix(b[i:], []byte(tok)) {
				out = append(out, '"')
				out = append(out, tok...)
				out = append(out, '"')
				i += len(tok) - 1
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, c)
		}
	}
	return out
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		switch x {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	case nil:
		return math.NaN(), nil
	}
	return 0, fmt.Errorf("%v is not a number", v)
}

func numbers(raw json.RawMessage) ([]float64, error) {
	var vals []any
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func flags(raw json.RawMessage) ([]bool, error) {
	vals, err := numbers(raw)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v != 0
	}
	return out, nil
}

// nested decodes an arbitrarily nested numeric array into its shape and
// row-major values.
func nested(raw json.RawMessage) ([]int, []float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	var shape []int
	for cur := v; ; {
		list, ok := cur.([]any)
		if !ok {
			break
		}
		shape = append(shape, len(list))
		if len(list) == 0 {
			break
		}
		cur = list[0]
	}
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("not an array")
	}
	var out []float64
	var walk func(v any, depth int) error
	walk = func(v any, depth int) error {
		if depth == len(shape) {
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			out = append(out, f)
			return nil
		}
		list, ok := v.([]any)
		if !ok || len(list) != shape[depth] {
			return fmt.Errorf("ragged array at depth %d", depth)
		}
		for _, x := range list {
			if err := walk(x, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return shape, out, nil
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
