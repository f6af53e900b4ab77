package formats

import (
	"fmt"
	"strconv"
)

// ASDF pseudo-digits: SQZ starts an absolute value, DIF a difference to
// the previous value, DUP a repeat count.
var (
	sqzDigits = map[byte]int{
		'@': 0, 'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8, 'I': 9,
		'a': -1, 'b': -2, 'c': -3, 'd': -4, 'e': -5, 'f': -6, 'g': -7, 'h': -8, 'i': -9,
	}
	difDigits = map[byte]int{
		'%': 0, 'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'O': 6, 'P': 7, 'Q': 8, 'R': 9,
		'j': -1, 'k': -2, 'l': -3, 'm': -4, 'n': -5, 'o': -6, 'p': -7, 'q': -8, 'r': -9,
	}
	dupDigits = map[byte]int{
		'S': 1, 'T': 2, 'U': 3, 'V': 4, 'W': 5, 'X': 6, 'Y': 7, 'Z': 8, 's': 9,
	}
)

type difdubState struct {
	out            []float64
	cur, step, dup string
}

// flush emits the pending token. A DUP count repeats the pending value or
// difference that many times in total.
func (s *difdubState) flush() error {
	defer func() { s.cur, s.step, s.dup = "", "", "" }()
	times := 1
	if s.dup != "" {
		n, err := strconv.Atoi(s.dup)
		if err != nil {
			return fmt.Errorf("DUP count %q: %w", s.dup, err)
		}
		times = n
	}
	switch {
	case s.cur != "":
		v, err := strconv.Atoi(s.cur)
		if err != nil {
			return fmt.Errorf("SQZ value %q: %w", s.cur, err)
		}
		for range times {
			s.out = append(s.out, float64(v))
		}
	case s.step != "":
		d, err := strconv.Atoi(s.step)
		if err != nil {
			return fmt.Errorf("DIF value %q: %w", s.step, err)
		}
		if len(s.out) == 0 {
			return fmt.Errorf("DIF %d without a preceding value", d)
		}
		for range times {
			s.out = append(s.out, s.out[len(s.out)-1]+float64(d))
		}
	}
	return nil
}

// decodeDIFDUB expands one line of ASDF compressed ordinates. The leading
// abscissa is skipped. Unless a space ends the line early, the last value
// is the Y-check that repeats the first value of the next line and is
// dropped.
func decodeDIFDUB(line string) ([]float64, error) {
	var s difdubState
	terminated := false
scan:
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			switch {
			case s.dup != "":
				s.dup += string(c)
			case s.cur != "":
				s.cur += string(c)
			case s.step != "":
				s.step += string(c)
			}
		case c == ' ':
			if len(s.out) > 0 || s.cur != "" || s.step != "" {
				terminated = true
				break scan
			}
		default:
			if v, ok := sqzDigits[c]; ok {
				if err := s.flush(); err != nil {
					return nil, err
				}
				s.cur = strconv.Itoa(v)
			} else if v, ok := difDigits[c]; ok {
				if err := s.flush(); err != nil {
					return nil, err
				}
				s.step = strconv.Itoa(v)
			} else if v, ok := dupDigits[c]; ok {
				s.dup += strconv.Itoa(v)
			}
		}
	}
	if err := s.flush(); err != nil {
		return nil, err
	}
	if !terminated && len(s.out) > 0 {
		s.out = s.out[:len(s.out)-1]
	}
	return s.out, nil
}
