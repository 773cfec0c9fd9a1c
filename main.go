// Command fshconv converts drug reference tables (CSV, TSV or XLSX) into
// FHIR Shorthand concept blocks with multilingual designations.
//
//	fshconv convert --code Code --display Uzbek --ru Russian drugs.xlsx
//	fshconv serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/giygas/fsh-designations/config"
	"github.com/giygas/fsh-designations/fsh"
	"github.com/giygas/fsh-designations/logging"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	case "convert", "serve":
	default:
		// a bare input path means convert
		cmd, rest = "convert", args
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitUsage
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitUsage
	}

	if cmd == "serve" {
		return runServe(ctx, cfg, rest, stderr)
	}
	return runConvert(ctx, cfg, rest, stdout, stderr)
}

// exitCode maps a conversion error to the process exit status
func exitCode(err error) int {
	var cfgErr *fsh.ConfigurationError
	var colErr *fsh.UnknownColumnError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr), errors.As(err, &colErr):
		return exitUsage
	default:
		return exitFailed
	}
}

func closeLogger(stderr io.Writer) {
	if err := logging.Close(); err != nil {
		fmt.Fprintf(stderr, "failed to close log file: %v\n", err)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  fshconv convert [flags] <input.csv|input.tsv|input.xlsx>
  fshconv serve [flags]

Convert flags:
  --code COLUMN        column holding the concept code (required)
  --display COLUMN     column holding the primary display, alias --uz (required)
  --ru, --en, --la     columns holding Russian, English and Latin designations
  --sheet NAME         spreadsheet sheet, first sheet by default
  --format FORMAT      csv, tsv or xlsx, detected from the extension by default
  --encoding LABEL     input encoding for delimited text: utf-8, auto, windows-1251...
  --prefix PREFIX      extra language column prefix (default from EXTRA_LANGUAGE_PREFIX)
  --mapping FILE       YAML role mapping; flags override its values
  -o, --output FILE    output path, input path with OUTPUT_EXTENSION by default
  -v, --verbose        log progress to the console

Columns named <prefix>:<tag>, such as lang:kk, add a designation in that language.

Serve flags:
  -v, --verbose        log to the console in test environments

Exit status: 0 on success, 1 when the input cannot be converted, 2 on a
configuration or usage error.
`)
}
