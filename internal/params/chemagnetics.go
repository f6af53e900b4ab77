package params

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseChemagnetics reads Chemagnetics acq/acq_2 files. Values stay
// strings; the consumer converts the keys it needs. Indexed keys such as
// "sf1[0]" collect into a list under "sf1" in file order.
func ParseChemagnetics(r io.Reader, skip SkipFunc) (Set, error) {
	out := Set{}
	indexed := map[string]map[string]int{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if br := strings.IndexByte(key, '['); br >= 0 {
			base := key[:br]
			slots := indexed[base]
			if slots == nil {
				slots = map[string]int{}
				indexed[base] = slots
				out[base] = List()
			}
			cur := out[base]
			if i, seen := slots[key]; seen {
				cur.items[i] = Str(val)
				continue
			}
			slots[key] = len(cur.items)
			out[base] = List(append(cur.items, Str(val))...)
			continue
		}
		if key == "" {
			skip.report(line, fmt.Errorf("empty key"))
			continue
		}
		out[key] = One(Str(val))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read acq: %w", err)
	}
	return out, nil
}

// ChemTime converts a Chemagnetics duration such as "10us", "2.5ms" or
// "1s" to seconds. Bare numbers are taken as seconds.
func ChemTime(val string) (float64, error) {
	val = strings.TrimSpace(val)
	mult := 1.0
	switch {
	case strings.HasSuffix(val, "ms"):
		val, mult = val[:len(val)-2], 1e-3
	case strings.HasSuffix(val, "us"):
		val, mult = val[:len(val)-2], 1e-6
	case strings.HasSuffix(val, "s"):
		val = val[:len(val)-1]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, fmt.Errorf("chemagnetics time %q: %w", val, err)
	}
	return v * mult, nil
}
