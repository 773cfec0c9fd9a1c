package tabular

import (
	"errors"
	"fmt"
	"io"

	"github.com/giygas/fsh-designations/fsh"
	"github.com/xuri/excelize/v2"
)

type spreadsheetSource struct {
	name    string
	book    *excelize.File
	rows    *excelize.Rows
	closer  io.Closer
	columns []string
	rowNum  int
}

func newSpreadsheetSource(r io.Reader, closer io.Closer, name, sheet string) (*spreadsheetSource, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &fsh.SourceReadError{Source: name, Err: fmt.Errorf("open workbook: %w", err)}
	}

	s := &spreadsheetSource{name: name, book: book, closer: closer}
	if err := s.open(sheet); err != nil {
		if s.rows != nil {
			_ = s.rows.Close()
		}
		_ = book.Close()
		return nil, err
	}
	return s, nil
}

func (s *spreadsheetSource) open(sheet string) error {
	sheets := s.book.GetSheetList()
	if len(sheets) == 0 {
		return &fsh.SourceReadError{Source: s.name, Err: errors.New("workbook has no sheets")}
	}

	if sheet == "" {
		sheet = sheets[0]
	} else if !containsSheet(sheets, sheet) {
		return &fsh.UnknownColumnError{Sheet: sheet}
	}

	rows, err := s.book.Rows(sheet)
	if err != nil {
		return &fsh.SourceReadError{Source: s.name, Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	s.rows = rows

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return &fsh.SourceReadError{Source: s.name, Err: fmt.Errorf("read header: %w", err)}
		}
		return &fsh.SourceReadError{Source: s.name, Err: fmt.Errorf("sheet %q is empty", sheet)}
	}
	header, err := rows.Columns()
	if err != nil {
		return &fsh.SourceReadError{Source: s.name, Err: fmt.Errorf("read header: %w", err)}
	}
	s.columns = normalizeHeader(header)
	return nil
}

func containsSheet(sheets []string, name string) bool {
	for _, s := range sheets {
		if s == name {
			return true
		}
	}
	return false
}

func (s *spreadsheetSource) Columns() []string {
	return s.columns
}

func (s *spreadsheetSource) Next() (fsh.Row, int, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, 0, &fsh.SourceReadError{Source: s.name, Err: err}
		}
		return nil, 0, io.EOF
	}
	cells, err := s.rows.Columns()
	if err != nil {
		return nil, 0, &fsh.SourceReadError{Source: s.name, Err: fmt.Errorf("read row %d: %w", s.rowNum+1, err)}
	}
	s.rowNum++
	return buildRow(s.columns, cells), s.rowNum, nil
}

func (s *spreadsheetSource) Close() error {
	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
	}
	errs = append(errs, s.book.Close())
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
	}
	return errors.Join(errs...)
}
