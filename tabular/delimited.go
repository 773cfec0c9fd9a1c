package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/giygas/fsh-designations/fsh"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// EncodingAuto keeps valid UTF-8 input and decodes anything else as
// Windows-1251, the usual codepage of Cyrillic spreadsheet exports.
const EncodingAuto = "auto"

// NewDecodingReader returns a UTF-8 reader over r. encoding is "utf-8"
// (default, BOM stripped), EncodingAuto, or any WHATWG encoding label such as
// "windows-1251" or "iso-8859-1".
func NewDecodingReader(r io.Reader, encoding string) (io.Reader, error) {
	label := strings.ToLower(strings.TrimSpace(encoding))
	switch label {
	case "", "utf-8", "utf8":
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder()), nil
	case EncodingAuto:
		// Detection needs the whole input.
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if utf8.Valid(body) {
			return transform.NewReader(bytes.NewReader(body), unicode.UTF8BOM.NewDecoder()), nil
		}
		return charmap.Windows1251.NewDecoder().Reader(bytes.NewReader(body)), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", encoding, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

type delimitedSource struct {
	name    string
	reader  *csv.Reader
	closer  io.Closer
	columns []string
	rowNum  int

	// encoding/csv drops empty lines; they are replayed as blank rows so
	// they are counted and numbered like spreadsheet rows.
	lastLine int
	blanks   int
	pending  []string
}

func newDelimitedSource(r io.Reader, closer io.Closer, name string, comma rune, encoding string) (*delimitedSource, error) {
	decoded, err := NewDecodingReader(r, encoding)
	if err != nil {
		return nil, &fsh.SourceReadError{Source: name, Err: err}
	}

	reader := csv.NewReader(decoded)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &fsh.SourceReadError{Source: name, Err: errors.New("input is empty")}
	}
	if err != nil {
		return nil, &fsh.SourceReadError{Source: name, Err: fmt.Errorf("read header: %w", err)}
	}

	s := &delimitedSource{
		name:    name,
		reader:  reader,
		closer:  closer,
		columns: normalizeHeader(header),
	}
	s.lastLine = s.endLine(header)
	return s, nil
}

// endLine is the input line on which record ends. Quoted fields may span
// lines; their newlines survive in the value.
func (s *delimitedSource) endLine(record []string) int {
	last := len(record) - 1
	line, _ := s.reader.FieldPos(last)
	return line + strings.Count(record[last], "\n")
}

func (s *delimitedSource) Columns() []string {
	return s.columns
}

func (s *delimitedSource) Next() (fsh.Row, int, error) {
	if s.pending == nil {
		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		if err != nil {
			return nil, 0, &fsh.SourceReadError{Source: s.name, Err: fmt.Errorf("read row %d: %w", s.rowNum+1, err)}
		}
		start, _ := s.reader.FieldPos(0)
		s.blanks = start - s.lastLine - 1
		s.lastLine = s.endLine(record)
		s.pending = record
	}

	s.rowNum++
	if s.blanks > 0 {
		s.blanks--
		return buildRow(s.columns, nil), s.rowNum, nil
	}
	record := s.pending
	s.pending = nil
	return buildRow(s.columns, record), s.rowNum, nil
}

func (s *delimitedSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
