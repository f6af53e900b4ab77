package params

import (
	"encoding/binary"
	"math"
	"reflect"
	"strings"
	"testing"
)

const procpar = `sfrq 1 1 1000 0 0 2 1 0 1 64
1 399.87
0
sw 1 1 1e+06 0 0 2 1 0 1 64
1 50000
0
nt 7 1 1e+09 1 1 2 1 0 1 64
1 16
0
gain 7 1 60 0 1 2 1 0 1 64
1 30.5
0
seqfil 2 2 64 0 0 2 1 0 1 64
1 "s2pul"
0
samplename 2 2 64 0 0 2 1 0 1 64
1 "my
sample"
0
tn 2 2 64 0 0 2 1 0 1 64
2 "H1"
"C13"
0
phase 1 1 1000 0 0 2 1 0 1 64
2 0 90
0
bad 1 1 1000 0 0 2 1 0 1 64
1 notanumber
0
`

func TestParseVarian(t *testing.T) {
	t.Parallel()

	var skipped []string
	s, err := ParseVarian(strings.NewReader(procpar), func(key string, _ error) { skipped = append(skipped, key) })
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := s.Float("sfrq"); !ok || v != 399.87 {
		t.Fatalf("sfrq: got %v %v", v, ok)
	}
	if v, ok := s.Scalar("nt"); !ok || v.Kind() != KindInt || v.String() != "16" {
		t.Fatalf("nt: got %+v", v)
	}
	// integer subtype with a float value falls back to float
	if v, ok := s.Scalar("gain"); !ok || v.Kind() != KindFloat {
		t.Fatalf("gain: got %+v", v)
	}
	if v, _ := s.String("seqfil"); v != "s2pul" {
		t.Fatalf("seqfil: got %q", v)
	}
	if v, _ := s.String("samplename"); v != "my\nsample" {
		t.Fatalf("samplename: got %q", v)
	}
	if v := s["tn"]; !v.IsList() || v.Len() != 2 || v.Items()[1].String() != "C13" {
		t.Fatalf("tn: got %v", v)
	}
	if v, ok := s.Floats("phase"); !ok || !reflect.DeepEqual(v, []float64{0, 90}) {
		t.Fatalf("phase: got %v", v)
	}
	if !reflect.DeepEqual(skipped, []string{"bad"}) {
		t.Fatalf("skipped: got %v", skipped)
	}
	if s.Has("bad") {
		t.Fatalf("malformed key should be absent")
	}
}

const acqus = `##TITLE= Parameter file
$$ comment
##$BYTORDA= 0
##$D= (0..3)
0 1.5 2e-05 0
##$DECIM= 16
##$DSPFVS= 10
##$GRPDLY= -1
##$NS= 8
##$PULPROG= <zg30>
##$SFO1= 400.13
##$TD= 300
##END=
`

func TestParseBruker(t *testing.T) {
	t.Parallel()

	s, err := ParseBruker(strings.NewReader(acqus), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := s.Int("TD"); !ok || v != 300 {
		t.Fatalf("TD: got %v %v", v, ok)
	}
	if v, _ := s.String("PULPROG"); v != "zg30" {
		t.Fatalf("PULPROG: got %q", v)
	}
	if v, ok := s.At("D", 1); !ok || v.String() != "1.5" {
		t.Fatalf("D[1]: got %v", v)
	}
	if d, ok := s.Floats("D"); !ok || len(d) != 4 {
		t.Fatalf("D: got %v", d)
	}
	if s.Has("TITLE") {
		t.Fatalf("non-$ records should be ignored")
	}
	got, ok := BrukerFilterDelay(s)
	if !ok {
		t.Fatalf("expected table filter delay")
	}
	if want := 69.5313 * 2 * math.Pi; got != want {
		t.Fatalf("filter: got %v want %v", got, want)
	}
}

func TestBrukerFilterDelayGRPDLY(t *testing.T) {
	t.Parallel()

	s := Set{"GRPDLY": One(Float(67.98))}
	got, ok := BrukerFilterDelay(s)
	if !ok || got != 67.98*2*math.Pi {
		t.Fatalf("got %v %v", got, ok)
	}
	if _, ok := BrukerFilterDelay(Set{"DSPFVS": One(Int(20))}); ok {
		t.Fatalf("unknown firmware should yield no delay")
	}
}

func TestParseChemagnetics(t *testing.T) {
	t.Parallel()

	in := "al=1024\nsf1[0]=100.5\nsf1[1]=200.5\ndw=10us\nnoequals\nsf1[0]=101.5\n"
	s, err := ParseChemagnetics(strings.NewReader(in), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := s.Int("al"); !ok || v != 1024 {
		t.Fatalf("al: got %v", v)
	}
	sf := s["sf1"]
	if !sf.IsList() || sf.Len() != 2 {
		t.Fatalf("sf1: got %v", sf)
	}
	if sf.Items()[0].String() != "101.5" || sf.Items()[1].String() != "200.5" {
		t.Fatalf("sf1 items: got %v", sf)
	}

	tests := map[string]float64{"10us": 10e-6, "2ms": 2e-3, "1.5s": 1.5, "3": 3}
	for in, want := range tests {
		got, err := ChemTime(in)
		if err != nil || math.Abs(got-want) > 1e-15 {
			t.Fatalf("ChemTime(%q): got %v, %v want %v", in, got, err, want)
		}
	}
	if _, err := ChemTime("abc"); err == nil {
		t.Fatalf("expected error for non-numeric time")
	}
}

func TestParseMagritekAndEPR(t *testing.T) {
	t.Parallel()

	s, err := ParseMagritek(strings.NewReader("bandwidth = 100\nexpName = \"1Pulse\"\nb1Freq = 43.2\n"), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, _ := s.Float("bandwidth"); v != 100 {
		t.Fatalf("bandwidth: got %v", v)
	}
	if v, _ := s.String("expName"); v != `"1Pulse"` {
		t.Fatalf("expName: got %q", v)
	}

	e, err := ParseEPR(strings.NewReader("ANZ 1024\rGSI 100.0\r\nGST 3400\nJUNK\n"))
	if err != nil {
		t.Fatalf("parse epr: %v", err)
	}
	if v, _ := e.Int("ANZ"); v != 1024 {
		t.Fatalf("ANZ: got %v", v)
	}
	if v, _ := e.Float("GST"); v != 3400 {
		t.Fatalf("GST: got %v", v)
	}
}

func jeolRecord(name string, typ uint32, unit byte, val []byte) []byte {
	rec := make([]byte, JEOLRecordSize)
	rec[6] = unit
	copy(rec[16:32], val)
	binary.LittleEndian.PutUint32(rec[32:36], typ)
	copy(rec[36:], name)
	return rec
}

func TestParseJEOL(t *testing.T) {
	t.Parallel()

	f64 := make([]byte, 8)
	binary.LittleEndian.PutUint64(f64, math.Float64bits(2.5))
	i32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(i32, uint32(int32(-7)))

	var block []byte
	// unit nibble 2 means 10^-6
	block = append(block, jeolRecord("X_Acq_Time", jeolFloat, 0x20, f64)...)
	block = append(block, jeolRecord("Scans", jeolInt, 0, i32)...)
	block = append(block, jeolRecord("Orders", jeolString, 0, []byte("3 2 5"))...)
	block = append(block, jeolRecord("Factors", jeolString, 0, []byte("2 4"))...)
	block = append(block, jeolRecord("Complex", 3, 0, nil)...)

	var skipped []string
	s := ParseJEOL(block, func(k string, _ error) { skipped = append(skipped, k) })
	if v, _ := s.Float("x_acq_time"); math.Abs(v-2.5e-6) > 1e-18 {
		t.Fatalf("x_acq_time: got %v", v)
	}
	if v, _ := s.Float("scans"); v != -7 {
		t.Fatalf("scans: got %v", v)
	}
	if !reflect.DeepEqual(skipped, []string{"complex"}) {
		t.Fatalf("skipped: got %v", skipped)
	}
	// prod = [8, 4]; ((2-1)/8 + (5-1)/4) / 2 = 0.5625
	got, ok := JEOLFilterDelay(s)
	if !ok || math.Abs(got-0.5625*2*math.Pi) > 1e-12 {
		t.Fatalf("filter: got %v %v", got, ok)
	}
}

func TestJEOLUnitScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unit byte
		want float64
	}{
		{0x00, 1},
		{0x10, 1e-3},
		{0x30, 1e-9},
		{0xF0, 1e3}, // nibble 15 is -1
	}
	for _, tt := range tests {
		if got := JEOLUnitScale(tt.unit); math.Abs(got-tt.want)/tt.want > 1e-12 {
			t.Fatalf("unit %#x: got %v want %v", tt.unit, got, tt.want)
		}
	}
}

func TestScalarConversions(t *testing.T) {
	t.Parallel()

	if got := Float(2).String(); got != "2.0" {
		t.Fatalf("float string: got %q", got)
	}
	if got := Float(1e-5).String(); got != "1e-05" {
		t.Fatalf("small float string: got %q", got)
	}
	if v, ok := Str("16.0").Int(); !ok || v != 16 {
		t.Fatalf("string int: got %v %v", v, ok)
	}
	if _, ok := Float(1.5).Int(); ok {
		t.Fatalf("non-integral float should not convert")
	}
	if Coerce("12").Kind() != KindInt || Coerce("1.2").Kind() != KindFloat || Coerce("x").Kind() != KindString {
		t.Fatalf("coerce kinds wrong")
	}
}
