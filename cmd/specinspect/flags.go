package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/specio/internal/logger"
	"github.com/samcharles93/specio/pkg/specio"
	"github.com/samcharles93/specio/pkg/spectrum"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Usage:   "path to config.yaml",
		Value:   configPath(),
		Sources: cli.EnvVars("SPECINSPECT_CONFIG"),
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (pretty, json, text)",
			Value: "pretty",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging (shorthand for --log-level=debug)",
		},
	}
}

// asciiFlags describe the column layout of plain-text input. They only
// take effect when --ascii-order is given or the config file sets one.
func asciiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ascii-order",
			Usage: "column order of text data (XRI, XR, XI, RI, R)",
		},
		&cli.IntFlag{
			Name:  "ascii-dim",
			Usage: "number of dimensions of text data (1 or 2)",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "ascii-spec",
			Usage: "text data is frequency domain",
		},
		&cli.StringFlag{
			Name:  "ascii-delimiter",
			Usage: "column delimiter of text data (tab, space, comma)",
			Value: "tab",
		},
		&cli.FloatFlag{
			Name:  "ascii-sw",
			Usage: "spectral width in kHz when text data has no X column",
		},
	}
}

func parseDelimiter(s string) (spectrum.Delimiter, error) {
	switch strings.ToLower(s) {
	case "tab", "":
		return spectrum.DelimTab, nil
	case "space":
		return spectrum.DelimSpace, nil
	case "comma":
		return spectrum.DelimComma, nil
	}
	return "", fmt.Errorf("unknown delimiter %q", s)
}

// loadOptions turns the command line and config file into specio options.
func loadOptions(ctx context.Context, cmd *cli.Command, cfg Config) ([]specio.Option, error) {
	opts := []specio.Option{specio.WithLogger(logger.FromContext(ctx))}
	if cfg.TempDir != "" {
		opts = append(opts, specio.WithTempDir(cfg.TempDir))
	}
	info, ok, err := asciiInfo(cmd, cfg.ASCII)
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, specio.WithASCII(info))
	}
	return opts, nil
}

func asciiInfo(cmd *cli.Command, cfg ASCIIConfig) (spectrum.ASCIIInfo, bool, error) {
	cfg.apply(cmd)
	if cfg.Order == nil || *cfg.Order == "" {
		return spectrum.ASCIIInfo{}, false, nil
	}
	info := spectrum.ASCIIInfo{Dim: 1, Order: strings.ToUpper(*cfg.Order)}
	if cfg.Dim != nil {
		info.Dim = *cfg.Dim
	}
	if cfg.Spec != nil {
		info.Spec = *cfg.Spec
	}
	if cfg.SWkHz != nil {
		info.SWkHz = *cfg.SWkHz
	}
	delim := ""
	if cfg.Delimiter != nil {
		delim = *cfg.Delimiter
	}
	d, err := parseDelimiter(delim)
	if err != nil {
		return spectrum.ASCIIInfo{}, false, err
	}
	info.Delimiter = d
	if info.Dim != 1 && info.Dim != 2 {
		return spectrum.ASCIIInfo{}, false, fmt.Errorf("ascii data must have 1 or 2 dimensions, got %d", info.Dim)
	}
	return info, true, nil
}
