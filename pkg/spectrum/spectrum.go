// Package spectrum defines the canonical in-memory spectrum every loader
// produces and every serializer consumes.
package spectrum

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/samcharles93/specio/pkg/hypercomplex"
)

// Standard metadata keys filled by the vendor loaders.
const (
	MetaScans           = "# Scans"
	MetaAcquisitionTime = "Acquisition Time [s]"
	MetaExperiment      = "Experiment Name"
	MetaReceiverGain    = "Receiver Gain"
	MetaRecycleDelay    = "Recycle Delay [s]"
	MetaTimeCompleted   = "Time Completed"
	MetaOffset          = "Offset [Hz]"
	MetaSample          = "Sample"
	MetaPhase0          = "Zero-order Phase [deg]"
)

// Axis carries the acquisition metadata of one data dimension.
type Axis struct {
	// Freq is the carrier frequency in Hz.
	Freq float64
	// SW is the spectral width in Hz.
	SW float64
	// Spec is true for frequency-domain axes.
	Spec      bool
	WholeEcho bool
	// Ref is the reference frequency in Hz; nil means unreferenced.
	Ref *float64
	// DFilter is the digital-filter group delay in radians, when known.
	DFilter *float64
	// XAxis holds explicit coordinates. Its length must equal the axis size.
	XAxis []float64
}

// Delimiter separates columns of an ASCII data file.
type Delimiter string

const (
	DelimTab   Delimiter = "Tab"
	DelimSpace Delimiter = "Space"
	DelimComma Delimiter = "Comma"
)

// ASCIIInfo describes the column layout of a plain-text data file, which
// carries no self-describing header.
type ASCIIInfo struct {
	// Dim is 1 or 2.
	Dim int
	// Order is one of XRI, XR, XI, RI or R.
	Order     string
	Spec      bool
	Delimiter Delimiter
	// SWkHz is the spectral width in kHz, used when no X column is given.
	SWkHz float64
}

// Provenance records where a spectrum came from.
type Provenance struct {
	Paths  []string
	Format string
	ASCII  *ASCIIInfo
	LoadID uuid.UUID
	// Digest is the BLAKE3 hex digest of the primary payload file.
	Digest string
}

// Spectrum is one loaded data set.
type Spectrum struct {
	Data    *hypercomplex.Array
	Axes    []Axis
	Name    string
	Source  Provenance
	History []string
	Meta    map[string]string
}

// New builds a Spectrum after checking that axes fit the data.
func New(data *hypercomplex.Array, axes []Axis) (*Spectrum, error) {
	if data == nil {
		return nil, &DimensionMismatchError{Axis: -1, What: "data is nil"}
	}
	if len(axes) != data.NDim() {
		return nil, &DimensionMismatchError{Axis: -1, What: "axis metadata count", Want: data.NDim(), Got: len(axes)}
	}
	shape := data.Shape()
	for i, ax := range axes {
		if ax.XAxis != nil && len(ax.XAxis) != shape[i] {
			return nil, &DimensionMismatchError{Axis: i, What: "coordinate length", Want: shape[i], Got: len(ax.XAxis)}
		}
	}
	return &Spectrum{
		Data: data,
		Axes: slices.Clone(axes),
		Meta: map[string]string{},
	}, nil
}

// NDim returns the number of dimensions.
func (s *Spectrum) NDim() int { return s.Data.NDim() }

// Shape returns the data dimensions.
func (s *Spectrum) Shape() []int { return s.Data.Shape() }

// AddHistory appends an entry to the processing log.
func (s *Spectrum) AddHistory(format string, args ...any) {
	s.History = append(s.History, fmt.Sprintf(format, args...))
}

// SetMeta stores a metadata entry, creating the map on first use.
func (s *Spectrum) SetMeta(key, value string) {
	if s.Meta == nil {
		s.Meta = map[string]string{}
	}
	s.Meta[key] = value
}

// MetaKeys returns the metadata keys in sorted order.
func (s *Spectrum) MetaKeys() []string {
	return slices.Sorted(maps.Keys(s.Meta))
}

// XAxisOrDefault returns the coordinates of axis i, synthesizing them from
// SW when none were stored: time points for time-domain axes, a centred
// frequency grid shifted by the reference for spectral axes.
func (s *Spectrum) XAxisOrDefault(i int) []float64 {
	ax := s.Axes[i]
	if ax.XAxis != nil {
		return slices.Clone(ax.XAxis)
	}
	n := s.Shape()[i]
	out := make([]float64, n)
	if n == 0 || ax.SW == 0 {
		return out
	}
	if !ax.Spec {
		for k := range out {
			out[k] = float64(k) / ax.SW
		}
		return out
	}
	shift := 0.0
	if ax.Ref != nil {
		shift = ax.Freq - *ax.Ref
	}
	half := float64(n / 2)
	for k := range out {
		out[k] = (float64(k)-half)*ax.SW/float64(n) + shift
	}
	return out
}

// Float returns a pointer to v, for optional axis fields.
func Float(v float64) *float64 { return &v }
