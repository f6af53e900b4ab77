package params

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseBruker reads a Bruker JCAMP-style parameter file (acqus, procs,
// WinNMR .aqs/.fqs). Only "##$NAME= value" records are kept.
//
// A value of "<text>" is a string. A value of "(a..b)" introduces an
// array whose elements follow on the next lines, up to the next "##"
// record. Anything else is coerced to int, then float, then string.
func ParseBruker(r io.Reader, skip SkipFunc) (Set, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	out := Set{}
	for pos := 0; pos < len(lines); pos++ {
		line := lines[pos]
		if !strings.HasPrefix(line, "##$") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			skip.report(strings.TrimPrefix(line, "##$"), fmt.Errorf("no '=' in record"))
			continue
		}
		name := strings.TrimSpace(line[3:eq])
		val := strings.TrimPrefix(line[eq+1:], " ")
		val = strings.TrimRight(val, " \t")
		switch {
		case val == "":
			out[name] = One(Str(""))
		case val[0] == '<':
			out[name] = One(Str(strings.Trim(val, "<>")))
		case val[0] == '(':
			var items []Scalar
			for pos+1 < len(lines) && !strings.HasPrefix(lines[pos+1], "##") {
				pos++
				items = append(items, brukerArrayLine(lines[pos])...)
			}
			out[name] = List(items...)
		default:
			out[name] = One(Coerce(val))
		}
	}
	return out, nil
}

// brukerArrayLine parses one continuation line of an array record. A line
// is numeric only if every token is.
func brukerArrayLine(line string) []Scalar {
	tokens := strings.Fields(line)
	nums := make([]Scalar, 0, len(tokens))
	for _, t := range tokens {
		v, err := strconv.ParseFloat(strings.Trim(t, "<>"), 64)
		if err != nil {
			nums = nil
			break
		}
		nums = append(nums, Float(v))
	}
	if nums != nil {
		return nums
	}
	strs := make([]Scalar, 0, len(tokens))
	for _, t := range tokens {
		strs = append(strs, Str(strings.Trim(t, "<>")))
	}
	return strs
}
