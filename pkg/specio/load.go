package specio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/samcharles93/specio/internal/formats"
	"github.com/samcharles93/specio/internal/serial"
	"github.com/samcharles93/specio/pkg/hypercomplex"
	"github.com/samcharles93/specio/pkg/spectrum"
)

var loaders = map[Format]formats.Loader{
	FormatVarian:          formats.LoadVarian,
	FormatBruker:          formats.LoadBruker,
	FormatBrukerProcessed: formats.LoadBrukerProcessed,
	FormatWinNMR:          formats.LoadWinNMR,
	FormatChemagnetics:    formats.LoadChemagnetics,
	FormatMagritek:        formats.LoadMagritek,
	FormatSimpson:         formats.LoadSimpson,
	FormatPipe:            formats.LoadPipe,
	FormatJEOL:            formats.LoadJEOL,
	FormatJCAMP:           formats.LoadJCAMP,
	FormatASCII:           formats.LoadASCII,
	FormatMinispec:        formats.LoadMinispec,
	FormatEPR:             formats.LoadEPR,
	FormatSiemens:         formats.LoadSiemens,
	FormatMestreC:         formats.LoadMestreC,
	FormatJSON: func(path string, _ formats.Options) (*spectrum.Spectrum, error) {
		return serial.LoadJSON(path)
	},
	FormatMAT: func(path string, _ formats.Options) (*spectrum.Spectrum, error) {
		return serial.LoadMAT(path)
	},
}

// Load detects the format of path and reads it into a spectrum. Archives
// are extracted to a temporary directory that is removed before Load
// returns.
func Load(ctx context.Context, path string, opts ...Option) (*spectrum.Spectrum, error) {
	return newConfig(opts).load(ctx, path)
}

// LoadAll reads every path in order and joins the results along a new
// leading axis. All data sets must share a shape.
func LoadAll(ctx context.Context, paths []string, opts ...Option) (*spectrum.Spectrum, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths given")
	}
	c := newConfig(opts)
	if len(paths) == 1 {
		return c.load(ctx, paths[0])
	}

	parts := make([]*spectrum.Spectrum, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := c.load(ctx, p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return join(parts, paths)
}

func (c *config) load(ctx context.Context, path string) (*spectrum.Spectrum, error) {
	d, ok := Detect(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRecognized)
	}
	c.log.Debug("format detected", "path", path, "format", d.Format.String(), "ambiguous", d.Ambiguous)
	if d.Format == FormatArchive {
		return c.loadArchive(ctx, path)
	}
	s, err := c.loadDescriptor(ctx, d)
	if err != nil {
		return nil, err
	}
	s.Source.Paths = []string{path}
	s.Name = baseName(path)
	return s, nil
}

func (c *config) loadDescriptor(ctx context.Context, d Descriptor) (*spectrum.Spectrum, error) {
	load, ok := loaders[d.Format]
	if !ok {
		return nil, fmt.Errorf("%s: %w", d.Path, ErrNotRecognized)
	}
	log := c.log.With("format", d.Format.String())
	opt := formats.Options{
		ASCII: c.ascii,
		Ctx:   ctx,
		Skip: func(key string, err error) {
			log.Debug("parameter skipped", "key", key, "error", err)
		},
	}
	s, err := load(d.Path, opt)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", d.Format, err)
	}
	s.Source.Format = d.Format.String()
	s.Source.LoadID = uuid.New()
	return s, nil
}

// loadArchive stages an archive and loads the first top-level entry that
// yields a spectrum.
func (c *config) loadArchive(ctx context.Context, path string) (*spectrum.Spectrum, error) {
	dir, err := os.MkdirTemp(c.tempDir, "specio-")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	n, err := extract(path, dir)
	if err != nil {
		return nil, err
	}
	c.log.Debug("archive staged", "path", path, "entries", n, "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	lastErr := fmt.Errorf("%s: %w", path, ErrNotRecognized)
	for _, e := range entries {
		staged := filepath.Join(dir, e.Name())
		d, ok := Detect(staged)
		if !ok || d.Format == FormatArchive {
			continue
		}
		s, err := c.loadDescriptor(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Debug("archive entry skipped", "entry", e.Name(), "error", err)
			lastErr = err
			continue
		}
		s.Source.Paths = []string{path}
		s.Name = baseName(path)
		s.AddHistory("extracted from archive %s", path)
		return s, nil
	}
	return nil, lastErr
}

// join stacks spectra of equal shape along a new leading axis. Axis
// metadata of the trailing axes is taken from the first spectrum.
func join(parts []*spectrum.Spectrum, paths []string) (*spectrum.Spectrum, error) {
	first := parts[0]
	stacked := make([]*hypercomplex.Array, len(parts))
	for i, p := range parts {
		if err := sameShape(first.Shape(), p.Shape(), paths[i]); err != nil {
			return nil, err
		}
		stacked[i] = p.Data.Stack()
	}
	data, err := hypercomplex.Concat(stacked...)
	if err != nil {
		return nil, fmt.Errorf("join %d data sets: %w", len(parts), err)
	}
	axes := append([]spectrum.Axis{{SW: 1}}, first.Axes...)
	s, err := spectrum.New(data, axes)
	if err != nil {
		return nil, err
	}
	s.Name = first.Name
	s.Source = first.Source
	s.Source.Paths = append([]string(nil), paths...)
	s.Source.LoadID = uuid.New()
	s.History = append(s.History, first.History...)
	for k, v := range first.Meta {
		s.SetMeta(k, v)
	}
	s.AddHistory("joined %d data sets", len(parts))
	return s, nil
}

func sameShape(want, got []int, path string) error {
	if len(want) != len(got) {
		return &spectrum.DimensionMismatchError{Axis: -1, What: "dimension count of " + path, Want: len(want), Got: len(got)}
	}
	for i := range want {
		if want[i] != got[i] {
			return &spectrum.DimensionMismatchError{Axis: i, What: "size of " + path, Want: want[i], Got: got[i]}
		}
	}
	return nil
}

// baseName is the display name of a loaded path: its final element
// without extension.
func baseName(path string) string {
	name := filepath.Base(filepath.Clean(path))
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(strings.ToLower(name), s) {
			return name[:len(name)-len(s)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
