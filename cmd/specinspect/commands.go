package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/specio/internal/logger"
	"github.com/samcharles93/specio/internal/version"
	"github.com/samcharles93/specio/pkg/specio"
	"github.com/samcharles93/specio/pkg/spectrum"
)

type configKey struct{}

// setup reads the config file and installs the logger for every command.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg := LoadConfig(cmd.String("config"))
	level, format := cmd.String("log-level"), cmd.String("log-format")
	if cmd.Bool("debug") {
		level = "debug"
	}
	applyLogConfig(cmd, cfg, &level, &format)

	log, err := logger.ForFormat(format, os.Stderr, logger.ParseLevel(level))
	if err != nil {
		return ctx, err
	}
	ctx = logger.WithContext(ctx, log)
	return context.WithValue(ctx, configKey{}, cfg), nil
}

func configFrom(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
}

func detectCmd() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Report the format each path would be loaded as",
		ArgsUsage: "<path>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return fmt.Errorf("detect: at least one path is required")
			}
			w := cmd.Root().Writer
			missed := 0
			for _, p := range cmd.Args().Slice() {
				d, ok := specio.Detect(p)
				if !ok {
					missed++
					_, _ = fmt.Fprintf(w, "%s\tnot recognized\n", p)
					continue
				}
				line := fmt.Sprintf("%s\t%s", p, d.Format)
				if d.Path != p {
					line += "\t" + d.Path
				}
				if d.Ambiguous {
					line += "\t(inferred)"
				}
				_, _ = fmt.Fprintln(w, line)
			}
			if missed > 0 {
				return fmt.Errorf("detect: %d of %d paths not recognized", missed, cmd.NArg())
			}
			return nil
		},
	}
}

type axisSummary struct {
	Size      int      `json:"size"`
	Freq      float64  `json:"freq"`
	SW        float64  `json:"sw"`
	Spec      bool     `json:"spec"`
	WholeEcho bool     `json:"wholeEcho"`
	Ref       *float64 `json:"ref"`
	DFilter   *float64 `json:"dFilter,omitempty"`
}

type summary struct {
	Name    string            `json:"name"`
	Format  string            `json:"format"`
	Paths   []string          `json:"paths"`
	LoadID  string            `json:"loadId"`
	Digest  string            `json:"digest,omitempty"`
	Shape   []int             `json:"shape"`
	Hyper   []uint32          `json:"hyper"`
	Axes    []axisSummary     `json:"axes"`
	Meta    map[string]string `json:"metaData,omitempty"`
	History []string          `json:"history"`
}

func summarize(s *spectrum.Spectrum) summary {
	out := summary{
		Name:    s.Name,
		Format:  s.Source.Format,
		Paths:   s.Source.Paths,
		LoadID:  s.Source.LoadID.String(),
		Digest:  s.Source.Digest,
		Shape:   s.Shape(),
		Hyper:   s.Data.Masks(),
		Meta:    s.Meta,
		History: s.History,
	}
	for i, ax := range s.Axes {
		out.Axes = append(out.Axes, axisSummary{
			Size:      out.Shape[i],
			Freq:      ax.Freq,
			SW:        ax.SW,
			Spec:      ax.Spec,
			WholeEcho: ax.WholeEcho,
			Ref:       ax.Ref,
			DFilter:   ax.DFilter,
		})
	}
	return out
}

func printSummary(w io.Writer, s summary) {
	_, _ = fmt.Fprintf(w, "name:       %s\n", s.Name)
	_, _ = fmt.Fprintf(w, "format:     %s\n", s.Format)
	_, _ = fmt.Fprintf(w, "paths:      %s\n", strings.Join(s.Paths, ", "))
	_, _ = fmt.Fprintf(w, "load id:    %s\n", s.LoadID)
	if s.Digest != "" {
		_, _ = fmt.Fprintf(w, "digest:     %s\n", s.Digest)
	}
	_, _ = fmt.Fprintf(w, "shape:      %v\n", s.Shape)
	_, _ = fmt.Fprintf(w, "hyper:      %v\n", s.Hyper)
	for i, ax := range s.Axes {
		domain := "time"
		if ax.Spec {
			domain = "frequency"
		}
		ref := "-"
		if ax.Ref != nil {
			ref = fmt.Sprintf("%g", *ax.Ref)
		}
		_, _ = fmt.Fprintf(w, "axis %d:     size=%d freq=%g sw=%g domain=%s ref=%s", i, ax.Size, ax.Freq, ax.SW, domain, ref)
		if ax.WholeEcho {
			_, _ = fmt.Fprint(w, " whole-echo")
		}
		if ax.DFilter != nil {
			_, _ = fmt.Fprintf(w, " dfilter=%g", *ax.DFilter)
		}
		_, _ = fmt.Fprintln(w)
	}
	if len(s.Meta) > 0 {
		_, _ = fmt.Fprintln(w, "metadata:")
		for _, k := range slices.Sorted(maps.Keys(s.Meta)) {
			_, _ = fmt.Fprintf(w, "  %-22s %s\n", k+":", s.Meta[k])
		}
	}
	if len(s.History) > 0 {
		_, _ = fmt.Fprintln(w, "history:")
		for _, h := range s.History {
			_, _ = fmt.Fprintf(w, "  %s\n", h)
		}
	}
}

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Load data sets and print their axes, metadata and history",
		ArgsUsage: "<path>...",
		Flags: append(asciiFlags(),
			&cli.BoolFlag{Name: "json", Usage: "print summaries as JSON"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return fmt.Errorf("info: at least one path is required")
			}
			opts, err := loadOptions(ctx, cmd, configFrom(ctx))
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			var all []summary
			for _, p := range cmd.Args().Slice() {
				s, err := specio.Load(ctx, p, opts...)
				if err != nil {
					return fmt.Errorf("info %s: %w", p, err)
				}
				all = append(all, summarize(s))
			}
			if cmd.Bool("json") {
				b, err := json.MarshalIndent(all, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, string(b))
				return err
			}
			for i, s := range all {
				if i > 0 {
					_, _ = fmt.Fprintln(w)
				}
				printSummary(w, s)
			}
			return nil
		},
	}
}

// Output formats accepted by convert.
const (
	toJSON    = "json"
	toMAT     = "mat"
	toSimpson = "simpson"
	toASCII   = "ascii"
)

// outputFormat picks the convert target from --to or the output extension.
func outputFormat(to, out string) (string, error) {
	if to != "" {
		switch strings.ToLower(to) {
		case toJSON, toMAT, toSimpson, toASCII:
			return strings.ToLower(to), nil
		}
		return "", fmt.Errorf("unknown output format %q", to)
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".json":
		return toJSON, nil
	case ".mat":
		return toMAT, nil
	case ".fid", ".spe":
		return toSimpson, nil
	case ".txt", ".csv", ".dat":
		return toASCII, nil
	}
	return "", fmt.Errorf("cannot infer output format from %q; set --to", out)
}

func convertCmd() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Load one or more data sets and write them as JSON, MAT, SIMPSON or text",
		ArgsUsage: "<input>... <output>",
		Flags: append(asciiFlags(),
			&cli.StringFlag{Name: "to", Usage: "output format (json, mat, simpson, ascii)"},
			&cli.BoolFlag{Name: "compress", Usage: "zlib-compress MAT output", Value: true},
			&cli.FloatFlag{Name: "ax-mult", Usage: "axis multiplier for text output", Value: 1},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("convert: an input and an output path are required")
			}
			inputs, out := args[:len(args)-1], args[len(args)-1]
			target, err := outputFormat(cmd.String("to"), out)
			if err != nil {
				return fmt.Errorf("convert: %w", err)
			}
			cfg := configFrom(ctx)
			opts, err := loadOptions(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			s, err := specio.LoadAll(ctx, inputs, opts...)
			if err != nil {
				return fmt.Errorf("convert: %w", err)
			}

			compress := cmd.Bool("compress")
			if cfg.Compress != nil && !cmd.IsSet("compress") {
				compress = *cfg.Compress
			}
			switch target {
			case toJSON:
				err = specio.SaveJSON(out, s)
			case toMAT:
				err = specio.SaveMAT(out, s, compress)
			case toSimpson:
				err = specio.SaveSimpson(out, s)
			case toASCII:
				err = specio.SaveASCII(out, s, cmd.Float("ax-mult"))
			}
			if err != nil {
				return fmt.Errorf("convert: write %s: %w", out, err)
			}
			logger.FromContext(ctx).Info("converted", "inputs", len(inputs), "format", s.Source.Format, "output", out, "to", target)
			return nil
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			info := version.Resolve()
			_, _ = fmt.Fprintf(w, "version:    %s\n", info.Version)
			if info.Commit != "" {
				_, _ = fmt.Fprintf(w, "commit:     %s\n", info.Commit)
			}
			if info.BuildTime != "" {
				_, _ = fmt.Fprintf(w, "build time: %s\n", info.BuildTime)
			}
			if info.GoVersion != "" {
				_, _ = fmt.Fprintf(w, "go:         %s\n", info.GoVersion)
			}
			return nil
		},
	}
}
