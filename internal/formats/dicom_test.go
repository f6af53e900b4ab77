package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/specio/internal/binio"
)

type dicomBuilder struct{ bytes.Buffer }

func (b *dicomBuilder) tag(t dicomTag) {
	_ = binary.Write(b, binary.LittleEndian, t.group())
	_ = binary.Write(b, binary.LittleEndian, uint16(t))
}

func (b *dicomBuilder) short(t dicomTag, vr string, val []byte) {
	b.tag(t)
	b.WriteString(vr)
	_ = binary.Write(b, binary.LittleEndian, uint16(len(val)))
	b.Write(val)
}

func (b *dicomBuilder) long(t dicomTag, vr string, length uint32, val []byte) {
	b.tag(t)
	b.WriteString(vr)
	b.Write([]byte{0, 0})
	_ = binary.Write(b, binary.LittleEndian, length)
	b.Write(val)
}

func (b *dicomBuilder) delim(t dicomTag, length uint32) {
	b.tag(t)
	_ = binary.Write(b, binary.LittleEndian, length)
}

func csaHeader(fields [][2]string) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString(csaMagic)
	_ = binary.Write(&b, le, uint32(len(fields)))
	_ = binary.Write(&b, le, uint32(77))
	for _, f := range fields {
		rec := make([]byte, csaElemSize)
		copy(rec, f[0])
		le.PutUint32(rec[76:], 1)
		le.PutUint32(rec[80:], 77)
		b.Write(rec)
		val := append([]byte(f[1]), 0)
		n := uint32(len(val))
		for _, w := range []uint32{n, n, 77, n} {
			_ = binary.Write(&b, le, w)
		}
		b.Write(val)
		b.Write(make([]byte, (4-len(val)%4)%4))
	}
	return b.Bytes()
}

func siemensFixture(csa []byte, samples []byte) []byte {
	var b dicomBuilder
	b.Write(make([]byte, dicomPreamble))
	b.WriteString("DICM")
	b.short(tagTransferSyntax, "UI", []byte("1.2.840.10008.1.2.1\x00"))
	// referenced image sequence of undefined length
	b.long(makeTag(0x0008, 0x1140), "SQ", dicomUndefined, nil)
	b.delim(tagItem, dicomUndefined)
	b.short(makeTag(0x0008, 0x1150), "UI", []byte("1.2\x00"))
	b.delim(tagItemEnd, 0)
	b.delim(tagSequenceEnd, 0)
	b.long(tagCSAImage, "OB", uint32(len(csa)), csa)
	b.long(tagSpecData, "OB", uint32(len(samples)), samples)
	return b.Bytes()
}

func TestLoadSiemens(t *testing.T) {
	t.Parallel()

	csa := csaHeader([][2]string{
		{"DataPointColumns", "2"},
		{"RealDwellTime", "250000"},
		{"ImagingFrequency", "123.2"},
	})
	path := filepath.Join(t.TempDir(), "svs.ima")
	writeFile(t, path, siemensFixture(csa, encode(binio.Float32, binary.LittleEndian, 1, 0, 0, 1)))

	s, err := LoadSiemens(path, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{1, -1i})
	ax := s.Axes[0]
	if !near(ax.SW, 4000) || !near(ax.Freq, 123.2e6) || ax.Spec {
		t.Fatalf("axis: got %+v", ax)
	}
}

func TestParseCSARejectsBadMagic(t *testing.T) {
	t.Parallel()

	if _, err := parseCSA([]byte("SV09xxxxxxxxxxxx")); err == nil {
		t.Fatalf("expected error for a non-CSA2 header")
	}
}

func TestReadDICOMImplicit(t *testing.T) {
	t.Parallel()

	var b dicomBuilder
	b.delim(makeTag(0x0010, 0x0010), 4)
	b.WriteString("Doe^")
	b.delim(tagSpecData, 2)
	b.Write([]byte{7, 8})

	got, err := readDICOM(b.Bytes(), tagSpecData)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v := got[tagSpecData]; !bytes.Equal(v, []byte{7, 8}) {
		t.Fatalf("value: got %v", v)
	}
	if _, ok := got[makeTag(0x0010, 0x0010)]; ok {
		t.Fatalf("unrequested elements should not be returned")
	}
}

const mestrecDoc = `<?xml version="1.0" encoding="UTF-8"?>
<MestReC>
 <Spectrum>
  <Main>
   <Dimensions>1</Dimensions>
   <Values><Points>%s</Points></Values>
   <Phaseable>f1</Phaseable>
   <Window>
    <Points>2</Points><MHz>400</MHz><From>-5</From><To>5</To><TimeOrigin>0.5</TimeOrigin>
   </Window>
  </Main>
 </Spectrum>
</MestReC>
`

func TestLoadMestreC(t *testing.T) {
	t.Parallel()

	points := base64.StdEncoding.EncodeToString(encode(binio.Float32, binary.LittleEndian, 1, 2, 3, 4))
	doc := strings.Replace(mestrecDoc, "%s", points, 1)
	// control characters appear inside real documents
	doc = strings.Replace(doc, "<Dimensions>", "\x01<Dimensions>", 1)
	path := filepath.Join(t.TempDir(), "proton.mrc")
	writeFile(t, path, []byte(doc))

	s, err := LoadMestreC(path, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamples(t, s, []complex128{complex(3, -4), complex(1, -2)})
	ax := s.Axes[0]
	if !ax.Spec || ax.SW != 4000 || ax.DFilter == nil || !near(*ax.DFilter, math.Pi) {
		t.Fatalf("axis: got %+v", ax)
	}
	if ax.Ref == nil || !near(*ax.Ref, 400e6) {
		t.Fatalf("ref: got %v", ax.Ref)
	}
}

func TestLoadMestreCMissingMain(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.mrc")
	writeFile(t, path, []byte("<MestReC><Other/></MestReC>"))
	if _, err := LoadMestreC(path, Options{}); err == nil {
		t.Fatalf("expected an error for a document without Spectrum/Main")
	}
}
