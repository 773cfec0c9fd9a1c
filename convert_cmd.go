package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/giygas/fsh-designations/config"
	"github.com/giygas/fsh-designations/converter"
	"github.com/giygas/fsh-designations/logging"
	"github.com/giygas/fsh-designations/metrics"
	"github.com/giygas/fsh-designations/tabular"
)

type convertFlags struct {
	mapping  config.MappingFile
	mapFile  string
	output   string
	format   string
	encoding string
	verbose  bool
}

func parseConvertFlags(args []string, stderr io.Writer) (*convertFlags, string, error) {
	f := &convertFlags{}
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }

	fs.StringVar(&f.mapping.Code, "code", "", "Column holding the concept code")
	fs.StringVar(&f.mapping.PrimaryDisplay, "display", "", "Column holding the primary display")
	fs.StringVar(&f.mapping.Uz, "uz", "", "Alias of --display")
	fs.StringVar(&f.mapping.Ru, "ru", "", "Column holding Russian designations")
	fs.StringVar(&f.mapping.En, "en", "", "Column holding English designations")
	fs.StringVar(&f.mapping.La, "la", "", "Column holding Latin designations")
	fs.StringVar(&f.mapping.Sheet, "sheet", "", "Spreadsheet sheet name")
	fs.StringVar(&f.mapping.ExtraPrefix, "prefix", "", "Extra language column prefix")
	fs.StringVar(&f.mapFile, "mapping", "", "YAML role mapping file")
	fs.StringVar(&f.output, "output", "", "Output path")
	fs.StringVar(&f.output, "o", "", "Output path (shorthand)")
	fs.StringVar(&f.format, "format", "", "Input format: csv, tsv or xlsx")
	fs.StringVar(&f.encoding, "encoding", "", "Input encoding for delimited text")
	fs.BoolVar(&f.verbose, "verbose", false, "Log progress to the console")
	fs.BoolVar(&f.verbose, "v", false, "Log progress to the console (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if fs.NArg() != 1 {
		return nil, "", fmt.Errorf("convert takes exactly one input file, got %d", fs.NArg())
	}
	return f, fs.Arg(0), nil
}

// options merges the mapping file, flags and environment defaults
func (f *convertFlags) options(cfg *config.Config, input string) (converter.Options, error) {
	mapping := &config.MappingFile{}
	if f.mapFile != "" {
		loaded, err := config.LoadMappingFile(f.mapFile)
		if err != nil {
			return converter.Options{}, err
		}
		mapping = loaded
	}
	if err := mapping.Merge(f.mapping); err != nil {
		return converter.Options{}, err
	}
	if f.encoding != "" {
		mapping.Encoding = f.encoding
	}

	opts := converter.Options{
		Input:           input,
		Output:          f.output,
		Mapping:         mapping.RoleMapping(),
		ExtraPrefix:     cfg.ExtraLanguagePrefix,
		Sheet:           mapping.Sheet,
		Encoding:        cfg.InputEncoding,
		OutputExtension: cfg.OutputExtension,
		Mode:            converter.ModeCLI,
	}
	if mapping.ExtraPrefix != "" {
		opts.ExtraPrefix = mapping.ExtraPrefix
	}
	if mapping.Encoding != "" {
		opts.Encoding = mapping.Encoding
	}
	if f.format != "" {
		format, err := tabular.ParseFormat(f.format)
		if err != nil {
			return converter.Options{}, err
		}
		opts.Format = format
	}
	return opts, nil
}

func runConvert(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	flags, input, err := parseConvertFlags(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintf(stderr, "usage error: %v\n", err)
		}
		return exitUsage
	}

	logging.InitLogger(cfg, flags.verbose)
	defer closeLogger(stderr)

	opts, err := flags.options(cfg, input)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitUsage
	}

	summary, err := converter.ConvertFile(ctx, opts)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logging.Warn("Failed to write metrics textfile", "error", err)
		}
	}

	if err != nil {
		fmt.Fprintf(stderr, "conversion failed: %v\n", err)
		return exitCode(err)
	}

	fmt.Fprintf(stdout, "wrote %d concepts (%d designations) to %s\n",
		summary.RowsEmitted, summary.Designations, summary.Output)
	if summary.RowsSkipped > 0 {
		fmt.Fprintf(stdout, "skipped %d of %d rows without a code or primary display\n",
			summary.RowsSkipped, summary.RowsRead)
	}
	if q := summary.Quality; q.HasIssues() {
		if q.DuplicateCodeRows > 0 {
			fmt.Fprintf(stdout, "warning: %d rows repeat an earlier code\n", q.DuplicateCodeRows)
		}
		if len(q.DuplicateTags) > 0 {
			fmt.Fprintf(stdout, "warning: several columns feed language tags %v\n", q.DuplicateTags)
		}
		if len(q.RejectedTagColumns) > 0 {
			fmt.Fprintf(stdout, "warning: ignored language columns with unusable tags %q\n", q.RejectedTagColumns)
		}
	}
	return exitOK
}
