package formats

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/samcharles93/specio/internal/binio"
	"github.com/samcharles93/specio/internal/params"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// brukerBlock is the storage granularity of raw TopSpin rows in bytes.
const brukerBlock = 1024

// brukerOrder maps a BYTORDA/BYTORDP value to a byte order.
func brukerOrder(set params.Set, key string) binary.ByteOrder {
	if v, ok := set.Int(key); ok && v == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// brukerType maps a DTYPA/DTYPP value to a sample type.
func brukerType(format, path string, set params.Set, key string) (binio.SampleType, error) {
	v, ok := set.Int(key)
	if !ok {
		return binio.Int32, nil
	}
	switch v {
	case 0:
		return binio.Int32, nil
	case 2:
		return binio.Float64, nil
	}
	return 0, unsupported(format, path, "%s=%d", key, v)
}

// brukerMeta copies the acquisition fields shared by all Bruker variants.
func brukerMeta(s *spectrum.Spectrum, set params.Set) {
	copyMeta(s, set, map[string]string{
		spectrum.MetaScans:        "NS",
		spectrum.MetaReceiverGain: "RG",
		spectrum.MetaExperiment:   "PULPROG",
		spectrum.MetaOffset:       "O1",
	})
	if v, ok := paramAt(set, "D", 1); ok {
		s.SetMeta(spectrum.MetaRecycleDelay, v)
	}
}

type brukerAxis struct {
	td            int
	freq, sw, ref float64
}

// LoadBruker reads a raw TopSpin acquisition (fid or ser) with up to three
// acqus files.
func LoadBruker(path string, opt Options) (*spectrum.Spectrum, error) {
	dir := dirOf(path)
	var sets []params.Set
	var dims []brukerAxis
	for i, name := range []string{"acqus", "acqu2s", "acqu3s"} {
		p := filepath.Join(dir, name)
		if i > 0 && !exists(p) {
			break
		}
		set, err := brukerParams(labelBruker, p, opt.Skip)
		if err != nil {
			return nil, err
		}
		var ax brukerAxis
		if ax.td, err = requireInt(labelBruker, p, set, "TD"); err != nil {
			return nil, err
		}
		if ax.td <= 0 {
			return nil, malformed(labelBruker, p, fmt.Errorf("TD %d", ax.td))
		}
		sfo1, err := requireFloat(labelBruker, p, set, "SFO1")
		if err != nil {
			return nil, err
		}
		if ax.sw, err = requireFloat(labelBruker, p, set, "SW_h"); err != nil {
			return nil, err
		}
		o1, err := requireFloat(labelBruker, p, set, "O1")
		if err != nil {
			return nil, err
		}
		ax.freq = sfo1 * 1e6
		ax.ref = ax.freq - o1
		sets = append(sets, set)
		dims = append(dims, ax)
	}
	acqus := sets[0]
	order := brukerOrder(acqus, "BYTORDA")
	typ, err := brukerType(labelBruker, dir, acqus, "DTYPA")
	if err != nil {
		return nil, err
	}

	dataPath := filepath.Join(dir, "ser")
	if !exists(dataPath) {
		dataPath = filepath.Join(dir, "fid")
	}
	raw, sum, err := payload(labelBruker, dataPath)
	if err != nil {
		return nil, err
	}

	td := dims[0].td
	size := typ.Size()
	tdBytes, _ := binio.Product(td, size)
	if tdBytes > len(raw) {
		return nil, truncated(labelBruker, dataPath, tdBytes, len(raw))
	}
	// rows are padded to whole blocks
	directSize := (tdBytes + brukerBlock - 1) / brukerBlock * brukerBlock / size
	rows := 1
	for _, ax := range dims[1:] {
		rows, _ = binio.Product(rows, ax.td)
	}
	nd := len(dims)
	var vals []float64
	if nd == 1 {
		n := min(len(raw)/size, directSize)
		directSize = n - n%2
		vals = binio.Decode(raw[:directSize*size], typ, order)
	} else {
		need, _ := binio.Product(rows, directSize, size)
		if len(raw) < need {
			return nil, truncated(labelBruker, dataPath, need, len(raw))
		}
		vals = binio.Decode(raw[:need], typ, order)
	}

	shape := make([]int, nd)
	for i := range dims {
		shape[nd-1-i] = dims[i].td
	}
	shape[nd-1] = directSize / 2
	data, err := hypercomplex.Plain(shape, pairs(vals))
	if err != nil {
		return nil, malformed(labelBruker, dataPath, err)
	}
	if data, err = data.Slice(nd-1, td/2); err != nil {
		return nil, err
	}

	axes := make([]spectrum.Axis, nd)
	for i, ax := range dims {
		axes[nd-1-i] = spectrum.Axis{Freq: ax.freq, SW: ax.sw, Ref: spectrum.Float(ax.ref)}
	}
	if d, ok := params.BrukerFilterDelay(acqus); ok {
		axes[nd-1].DFilter = spectrum.Float(d)
	}

	s, err := build(labelBruker, dataPath, sum, data, axes)
	if err != nil {
		return nil, err
	}
	brukerMeta(s, acqus)
	return s, nil
}
