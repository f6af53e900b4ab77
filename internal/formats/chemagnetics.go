package formats

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// chemParams reads acq together with the optional acq_2.
func chemParams(dir string, skip params.SkipFunc) (params.Set, error) {
	acqPath := filepath.Join(dir, "acq")
	acq, err := os.Open(acqPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, missing(labelChemagnetics, acqPath, "acq")
		}
		return nil, err
	}
	defer func() { _ = acq.Close() }()
	readers := []io.Reader{acq}
	if acq2, err := os.Open(filepath.Join(dir, "acq_2")); err == nil {
		defer func() { _ = acq2.Close() }()
		readers = append(readers, strings.NewReader("\n"), acq2)
	}
	set, err := params.ParseChemagnetics(io.MultiReader(readers...), skip)
	if err != nil {
		return nil, malformed(labelChemagnetics, acqPath, err)
	}
	return set, nil
}

func chemTime(set params.Set, key string) (float64, bool) {
	v, ok := set.First(key)
	if !ok {
		return 0, false
	}
	t, err := params.ChemTime(v.String())
	return t, err == nil
}

// chemIndirectSize returns the number of rows and the indirect spectral
// width. Arrayed experiments multiply the array lengths when use_array
// is set; otherwise al2 and dw2 describe a second dimension.
func chemIndirectSize(set params.Set) (int, float64) {
	rows, sw1 := 1, 1.0
	arrayed := false
	for key := range set {
		if strings.HasPrefix(key, "array_num_values_") {
			arrayed = true
			break
		}
	}
	if use, ok := set.Int("use_array"); arrayed && ok && use == 1 {
		for key := range set {
			if !strings.HasPrefix(key, "array_num_values_") {
				continue
			}
			if n, ok := set.Int(key); ok {
				rows *= n
			}
		}
		return rows, sw1
	}
	if al2, ok := set.Int("al2"); ok {
		rows = al2
		if dw2, ok := chemTime(set, "dw2"); ok && dw2 != 0 {
			sw1 = 1 / dw2
		}
	}
	return rows, sw1
}

// LoadChemagnetics reads a Chemagnetics Spinsight directory: acq, acq_2
// and a big-endian int32 data file holding all real samples followed by
// all imaginary samples.
func LoadChemagnetics(path string, opt Options) (*spectrum.Spectrum, error) {
	dir := dirOf(path)
	set, err := chemParams(dir, opt.Skip)
	if err != nil {
		return nil, err
	}
	acqPath := filepath.Join(dir, "acq")
	al, err := requireInt(labelChemagnetics, acqPath, set, "al")
	if err != nil {
		return nil, err
	}
	if al <= 0 {
		return nil, unsupported(labelChemagnetics, acqPath, "al=%d", al)
	}
	ch, err := requireInt(labelChemagnetics, acqPath, set, "ch1")
	if err != nil {
		return nil, err
	}
	sfKey := "sf" + strconv.Itoa(ch)
	sf, ok := set.First(sfKey)
	if !ok {
		return nil, missing(labelChemagnetics, acqPath, sfKey)
	}
	freq, ok := sf.Float()
	if !ok {
		return nil, malformed(labelChemagnetics, acqPath, errors.New(sfKey+" is not numeric"))
	}
	freq *= 1e6
	dw, ok := chemTime(set, "dw")
	if !ok || dw == 0 {
		return nil, missing(labelChemagnetics, acqPath, "dw")
	}
	sw := 1 / dw
	rows, sw1 := chemIndirectSize(set)

	dataPath := filepath.Join(dir, "data")
	raw, sum, err := payload(labelChemagnetics, dataPath)
	if err != nil {
		return nil, err
	}
	vals := binio.Decode(raw, binio.Int32, binary.BigEndian)
	half := len(vals) / 2
	samples := split(vals[:half], vals[half:2*half])
	if len(samples) == 0 || len(samples)%al != 0 {
		return nil, truncated(labelChemagnetics, dataPath, (len(samples)/al+1)*al*8, len(raw))
	}
	stored := len(samples) / al

	var (
		data *hypercomplex.Array
		axes []spectrum.Axis
	)
	if rows == 1 {
		data, err = hypercomplex.Plain([]int{al}, samples[:al])
		axes = []spectrum.Axis{{Freq: freq, SW: sw}}
	} else {
		data, err = hypercomplex.Plain([]int{stored, al}, samples)
		axes = []spectrum.Axis{{Freq: freq, SW: sw1}, {Freq: freq, SW: sw}}
	}
	if err != nil {
		return nil, malformed(labelChemagnetics, dataPath, err)
	}

	s, err := build(labelChemagnetics, dataPath, sum, data, axes)
	if err != nil {
		return nil, err
	}
	if v, ok := set.First("na"); ok {
		s.SetMeta(spectrum.MetaScans, v.String())
	}
	if v, ok := chemTime(set, "aqtm"); ok {
		s.SetMeta(spectrum.MetaAcquisitionTime, params.FormatFloat(v))
	}
	if v, ok := set.Float("rg"); ok {
		s.SetMeta(spectrum.MetaReceiverGain, params.FormatFloat(v))
	}
	if v, ok := chemTime(set, "pd"); ok {
		s.SetMeta(spectrum.MetaRecycleDelay, params.FormatFloat(v))
	}
	date, okDate := set.String("end_date")
	clock, okTime := set.String("end_time")
	if okDate && okTime {
		s.SetMeta(spectrum.MetaTimeCompleted, date+" "+clock)
	}
	if v, ok := set.String("ppfn"); ok {
		s.SetMeta(spectrum.MetaExperiment, v)
	}
	return s, nil
}
