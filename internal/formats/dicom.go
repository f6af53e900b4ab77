package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samcharles93/specio/internal/binio"
)

type dicomTag uint32

func makeTag(group, elem uint16) dicomTag { return dicomTag(uint32(group)<<16 | uint32(elem)) }

func (t dicomTag) group() uint16 { return uint16(t >> 16) }

func (t dicomTag) String() string { return fmt.Sprintf("(%04X,%04X)", uint16(t>>16), uint16(t)) }

var (
	tagTransferSyntax = makeTag(0x0002, 0x0010)
	tagItem           = makeTag(0xFFFE, 0xE000)
	tagItemEnd        = makeTag(0xFFFE, 0xE00D)
	tagSequenceEnd    = makeTag(0xFFFE, 0xE0DD)
)

const (
	dicomPreamble  = 128
	dicomUndefined = math.MaxUint32
	implicitLE     = "1.2.840.10008.1.2"
	explicitBE     = "1.2.840.10008.1.2.2"
)

// VRs whose explicit encoding carries a 4-byte length.
var dicomLongVR = map[string]bool{
	"OB": true, "OW": true, "OF": true, "SQ": true, "UT": true, "UN": true,
	"UC": true, "UR": true, "OD": true, "OL": true, "OV": true, "SV": true, "UV": true,
}

type dicomWalker struct {
	r        *binio.Reader
	explicit bool
	want     map[dicomTag]bool
	found    map[dicomTag][]byte
}

// readDICOM walks a little-endian DICOM data set and returns the values
// of the wanted top-level elements. Nested sequences are skipped.
func readDICOM(b []byte, want ...dicomTag) (map[dicomTag][]byte, error) {
	w := &dicomWalker{
		r:        binio.NewReader(b, binary.LittleEndian),
		explicit: true,
		want:     map[dicomTag]bool{},
		found:    map[dicomTag][]byte{},
	}
	for _, t := range want {
		w.want[t] = true
	}
	if len(b) >= dicomPreamble+4 && string(b[dicomPreamble:dicomPreamble+4]) == "DICM" {
		if err := w.r.Seek(dicomPreamble + 4); err != nil {
			return nil, err
		}
	} else {
		w.explicit = false
	}
	for w.r.Remaining() > 0 {
		t, val, err := w.element()
		if err != nil {
			return nil, err
		}
		if t == tagTransferSyntax {
			ts := strings.TrimRight(string(val), "\x00 ")
			if ts == explicitBE {
				return nil, errors.New("big-endian transfer syntax")
			}
			w.explicit = ts != implicitLE
			continue
		}
		if w.want[t] {
			w.found[t] = val
		}
	}
	return w.found, nil
}

func (w *dicomWalker) tag() (dicomTag, error) {
	g, err := w.r.U16()
	if err != nil {
		return 0, err
	}
	e, err := w.r.U16()
	if err != nil {
		return 0, err
	}
	return makeTag(g, e), nil
}

// element reads one element header and its value. Values of undefined
// length are skipped and returned as nil.
func (w *dicomWalker) element() (dicomTag, []byte, error) {
	t, err := w.tag()
	if err != nil {
		return 0, nil, err
	}
	var length uint32
	explicit := w.explicit || t.group() == 0x0002
	switch {
	case t.group() == 0xFFFE:
		length, err = w.r.U32()
	case explicit:
		var vr string
		if vr, err = w.r.String(2); err != nil {
			break
		}
		if dicomLongVR[vr] {
			if err = w.r.Skip(2); err == nil {
				length, err = w.r.U32()
			}
		} else {
			var l16 uint16
			l16, err = w.r.U16()
			length = uint32(l16)
		}
	default:
		length, err = w.r.U32()
	}
	if err != nil {
		return 0, nil, fmt.Errorf("element %s: %w", t, err)
	}
	if length == dicomUndefined {
		return t, nil, w.skipUndefined()
	}
	val, err := w.r.ReadN(int(length))
	if err != nil {
		return 0, nil, fmt.Errorf("element %s: %w", t, err)
	}
	return t, val, nil
}

// skipUndefined consumes items up to the sequence delimiter.
func (w *dicomWalker) skipUndefined() error {
	for {
		t, err := w.tag()
		if err != nil {
			return err
		}
		length, err := w.r.U32()
		if err != nil {
			return err
		}
		switch t {
		case tagSequenceEnd:
			return nil
		case tagItem:
			if length != dicomUndefined {
				if err := w.r.Skip(int(length)); err != nil {
					return err
				}
				continue
			}
			if err := w.skipItem(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected %s in sequence", t)
		}
	}
}

// skipItem consumes the elements of an undefined-length item.
func (w *dicomWalker) skipItem() error {
	for {
		t, _, err := w.element()
		if err != nil {
			return err
		}
		if t == tagItemEnd {
			return nil
		}
	}
}

// Siemens CSA header layout.
const (
	csaMagic    = "SV10\x04\x03\x02\x01"
	csaElemSize = 84
)

func csaScrub(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

func csaCheck(v uint32) bool { return v == 77 || v == 205 }

// parseCSA decodes a Siemens CSA2 header into the first value of every
// element.
func parseCSA(b []byte) (map[string]string, error) {
	r := binio.NewReader(b, binary.LittleEndian)
	magic, err := r.ReadN(8)
	if err != nil || string(magic) != csaMagic {
		return nil, errors.New("not a CSA2 header")
	}
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if check, err := r.U32(); err != nil || check != 77 {
		return nil, errors.New("CSA2 header check failed")
	}
	out := map[string]string{}
	for range n {
		rec, err := r.ReadN(csaElemSize)
		if err != nil {
			return nil, err
		}
		name := csaScrub(rec[:64])
		items := binary.LittleEndian.Uint32(rec[76:])
		if !csaCheck(binary.LittleEndian.Uint32(rec[80:])) {
			return nil, fmt.Errorf("CSA element %q: bad check word", name)
		}
		for i := range items {
			var hdr [4]uint32
			for k := range hdr {
				if hdr[k], err = r.U32(); err != nil {
					return nil, err
				}
			}
			if (hdr[0] != hdr[1] && hdr[1] != hdr[3]) || !csaCheck(hdr[2]) {
				return nil, fmt.Errorf("CSA element %q: bad item header", name)
			}
			length := int(hdr[0])
			val, err := r.ReadN((length + 3) / 4 * 4)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				out[name] = csaScrub(val[:length])
			}
		}
	}
	return out, nil
}
