package spectrum

import (
	"errors"
	"fmt"
)

var (
	// ErrSampleData is the root of every fatal sample-data failure.
	ErrSampleData = errors.New("sample data failure")
	// ErrSchema marks a persisted container missing required content.
	ErrSchema = errors.New("serialization schema failure")
	// ErrDimensionMismatch marks axis metadata that does not fit the data.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// FileFormatError reports a payload or companion file that is absent or
// malformed.
type FileFormatError struct {
	Format string
	Path   string
	Reason string
	Err    error
}

func (e *FileFormatError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Format, e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSampleData, e.Err}
	}
	return []error{ErrSampleData}
}

// TruncatedDataError reports a payload shorter than its parameters declare.
type TruncatedDataError struct {
	Format string
	Path   string
	Want   int64
	Got    int64
}

func (e *TruncatedDataError) Error() string {
	return fmt.Sprintf("%s: %s: truncated payload: need %d bytes, have %d", e.Format, e.Path, e.Want, e.Got)
}

func (e *TruncatedDataError) Unwrap() error { return ErrSampleData }

// UnsupportedVariantError reports a recognized format in a sub-variant that
// cannot be read.
type UnsupportedVariantError struct {
	Format  string
	Path    string
	Variant string
}

func (e *UnsupportedVariantError) Error() string {
	return fmt.Sprintf("%s: %s: unsupported variant %s", e.Format, e.Path, e.Variant)
}

func (e *UnsupportedVariantError) Unwrap() error { return ErrSampleData }

// SchemaError reports a required field missing from a persisted container.
type SchemaError struct {
	Container string
	Field     string
	Reason    string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Container, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: missing required field %q", e.Container, e.Field)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// DimensionMismatchError reports axis metadata inconsistent with the data.
type DimensionMismatchError struct {
	Axis int
	Want int
	Got  int
	What string
}

func (e *DimensionMismatchError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("dimension mismatch: %s: want %d, got %d", e.What, e.Want, e.Got)
	}
	return fmt.Sprintf("dimension mismatch on axis %d: %s: want %d, got %d", e.Axis, e.What, e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
