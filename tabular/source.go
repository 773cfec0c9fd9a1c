// Package tabular reads delimited-text and spreadsheet files as streams of
// named-column rows.
package tabular

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/giygas/fsh-designations/fsh"
)

// Format identifies the physical layout of an input.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// Source is a stream of rows sharing one header.
type Source interface {
	// Columns returns the normalized header in source order.
	Columns() []string
	// Next returns the next row and its 1-based data row number, or io.EOF.
	Next() (fsh.Row, int, error)
	Close() error
}

// Options control how an input is decoded.
type Options struct {
	Format   Format // detected from the file extension when empty
	Sheet    string // spreadsheet sheet, first sheet when empty
	Encoding string // delimited text only, see NewDecodingReader
}

// FormatFromPath maps a file extension to a Format.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type: %q", filepath.Ext(path))
	}
}

// ParseFormat accepts a format name as given on a request or command line.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "tsv", "tab":
		return FormatTSV, nil
	case "xlsx", "xlsm", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", name)
	}
}

// Open opens the file at path. Failures are *fsh.SourceReadError, except an
// unknown sheet which is *fsh.UnknownColumnError.
func Open(path string, opts Options) (Source, error) {
	format := opts.Format
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, &fsh.SourceReadError{Source: path, Err: err}
		}
		format = f
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &fsh.SourceReadError{Source: path, Err: err}
	}

	src, err := newSource(file, path, format, opts)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return src, nil
}

// NewReader reads an already opened input. name is used in error messages.
func NewReader(r io.Reader, name string, opts Options) (Source, error) {
	if opts.Format == "" {
		return nil, &fsh.SourceReadError{Source: name, Err: fmt.Errorf("format is required")}
	}
	return newSource(r, name, opts.Format, opts)
}

func newSource(r io.Reader, name string, format Format, opts Options) (Source, error) {
	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}

	switch format {
	case FormatCSV:
		return newDelimitedSource(r, closer, name, ',', opts.Encoding)
	case FormatTSV:
		return newDelimitedSource(r, closer, name, '\t', opts.Encoding)
	case FormatXLSX:
		return newSpreadsheetSource(r, closer, name, opts.Sheet)
	default:
		return nil, &fsh.SourceReadError{Source: name, Err: fmt.Errorf("unsupported format: %q", format)}
	}
}

// normalizeHeader trims names, drops a UTF-8 BOM, names blank columns and
// disambiguates repeated names with .1, .2 suffixes.
func normalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	repeats := make(map[string]int)
	for i, name := range raw {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		base := strings.TrimSpace(name)
		if base == "" {
			base = fmt.Sprintf("Unnamed: %d", i)
		}
		name = base
		for used[name] {
			repeats[base]++
			name = fmt.Sprintf("%s.%d", base, repeats[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// buildRow pairs header names with cells; missing trailing cells are blank.
func buildRow(columns, cells []string) fsh.Row {
	row := make(fsh.Row, len(columns))
	for i, col := range columns {
		if i < len(cells) {
			row[col] = cells[i]
		} else {
			row[col] = ""
		}
	}
	return row
}
