package params

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseVarian reads a Varian/Agilent procpar file.
//
// Each entry spans at least three lines: "name subtype basictype ...",
// then "count values...", then the enumeration line. String entries with
// more than one value carry the remaining values one per line before the
// enumeration line.
func ParseVarian(r io.Reader, skip SkipFunc) (Set, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read procpar: %w", err)
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	out := Set{}
	pos := 0
	for pos < len(lines)-1 {
		head := strings.Fields(lines[pos])
		if len(head) < 3 {
			pos++
			continue
		}
		name, subtype, basic := head[0], head[1], head[2]
		second := lines[pos+1]
		fields := strings.Fields(second)
		extra := 0
		switch basic {
		case "1":
			v, err := varianReals(fields, subtype == "7")
			if err != nil {
				skip.report(name, err)
				break
			}
			out[name] = v
		case "2":
			if len(fields) == 0 {
				skip.report(name, errors.New("empty string record"))
				break
			}
			count, err := strconv.Atoi(fields[0])
			if err != nil {
				skip.report(name, fmt.Errorf("string count: %w", err))
				break
			}
			txt := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(second), fields[0]))
			if !strings.HasSuffix(txt, `"`) || len(txt) == 1 {
				// closing quote wrapped onto the next line
				if pos+2 < len(lines) {
					txt += "\n" + strings.TrimSpace(lines[pos+2])
				}
				extra++
			}
			vals := []Scalar{Str(strings.Trim(txt, `"`))}
			for k := 0; k < count-1; k++ {
				idx := pos + 2 + extra
				if idx >= len(lines) {
					break
				}
				vals = append(vals, Str(strings.Trim(strings.TrimSpace(lines[idx]), `"`)))
				extra++
			}
			if len(vals) == 1 {
				out[name] = One(vals[0])
			} else {
				out[name] = List(vals...)
			}
		default:
			skip.report(name, fmt.Errorf("unknown basic type %q", basic))
		}
		pos += 3 + extra
	}
	return out, nil
}

func varianReals(fields []string, integer bool) (Value, error) {
	if len(fields) < 2 {
		return Value{}, errors.New("no values")
	}
	vals := make([]Scalar, 0, len(fields)-1)
	if integer {
		// integer-typed entries sometimes hold floats
		ok := true
		for _, f := range fields[1:] {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				ok = false
				break
			}
			vals = append(vals, Int(v))
		}
		if !ok {
			vals = vals[:0]
			integer = false
		}
	}
	if !integer {
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Value{}, err
			}
			vals = append(vals, Float(v))
		}
	}
	if len(vals) == 1 {
		return One(vals[0]), nil
	}
	return List(vals...), nil
}
