package params

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/samcharles93/specio/internal/binio"
)

// JEOLRecordSize is the width of one tagged parameter record.
const JEOLRecordSize = 64

// JEOL record value types.
const (
	jeolString = 0
	jeolInt    = 1
	jeolFloat  = 2
)

// ParseJEOL decodes a block of JEOL Delta tagged parameter records.
// Names are lower-cased. Numeric values have the record's unit prefix
// applied, so a value stored in microseconds comes back in seconds.
func ParseJEOL(block []byte, skip SkipFunc) Set {
	out := Set{}
	for off := 0; off+JEOLRecordSize <= len(block); off += JEOLRecordSize {
		rec := block[off : off+JEOLRecordSize]
		name := strings.ToLower(strings.TrimSpace(strings.TrimRight(string(rec[36:64]), "\x00")))
		typ := binary.LittleEndian.Uint32(rec[32:36])
		scale := JEOLUnitScale(rec[6])
		val := rec[16:32]
		switch typ {
		case jeolString:
			out[name] = One(Str(binio.TrimPadding(val)))
		case jeolInt:
			v := int32(binary.LittleEndian.Uint32(val[0:4]))
			out[name] = One(Float(float64(v) * scale))
		case jeolFloat:
			v := math.Float64frombits(binary.LittleEndian.Uint64(val[0:8]))
			out[name] = One(Float(v * scale))
		default:
			skip.report(name, fmt.Errorf("unsupported value type %d", typ))
		}
	}
	return out
}

// JEOLUnitScale returns the multiplier encoded in the high nibble of a
// JEOL unit byte: a signed power of one thousand.
func JEOLUnitScale(unit byte) float64 {
	scale := int((unit >> 4) & 15)
	if scale > 7 {
		scale -= 16
	}
	return math.Pow(10, float64(-scale*3))
}
