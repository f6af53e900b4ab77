package params

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseMagritek reads a Magritek acqu.par file of "key = value" lines.
// Quoted strings keep their quotes.
func ParseMagritek(r io.Reader, skip SkipFunc) (Set, error) {
	out := Set{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			skip.report(line, fmt.Errorf("no '=' in line"))
			continue
		}
		out[strings.TrimSpace(key)] = One(Coerce(strings.TrimSpace(val)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read acqu.par: %w", err)
	}
	return out, nil
}

// ParseEPR reads a Bruker EPR .par file of whitespace separated
// "KEY value" rows. Carriage returns count as line breaks.
func ParseEPR(r io.Reader) (Set, error) {
	raw, err := readAllString(r)
	if err != nil {
		return nil, fmt.Errorf("read par: %w", err)
	}
	out := Set{}
	raw = strings.ReplaceAll(raw, "\r", "\n")
	for _, line := range strings.Split(raw, "\n") {
		row := strings.Fields(line)
		if len(row) < 2 {
			continue
		}
		out[row[0]] = One(Coerce(row[1]))
	}
	return out, nil
}

func readAllString(r io.Reader) (string, error) {
	var b strings.Builder
	_, err := io.Copy(&b, r)
	return b.String(), err
}
