package specio

import (
	"github.com/samcharles93/specio/internal/logger"
	"github.com/samcharles93/specio/pkg/spectrum"
)

// Option configures Load and LoadAll.
type Option func(*config)

type config struct {
	ascii   *spectrum.ASCIIInfo
	log     logger.Logger
	tempDir string
}

func newConfig(opts []Option) *config {
	c := &config{log: logger.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithASCII supplies the column layout needed to read plain-text input.
func WithASCII(info spectrum.ASCIIInfo) Option {
	return func(c *config) { c.ascii = &info }
}

// WithLogger routes debug output about detection, skipped parameters and
// archive staging to l.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTempDir sets the parent directory archives are extracted under.
// The default is os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *config) { c.tempDir = dir }
}
