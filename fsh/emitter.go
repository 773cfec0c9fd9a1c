package fsh

import (
	"bufio"
	"io"
	"strings"
)

// Row maps column names to raw cell values for one input record.
type Row map[string]string

// Value returns the trimmed cell value for column.
func (r Row) Value(column string) string {
	return strings.TrimSpace(r[column])
}

// IndexMarker is the designation index written on a language line.
type IndexMarker string

const (
	IndexFirst  IndexMarker = "0"
	IndexAppend IndexMarker = "+"
	IndexSame   IndexMarker = "="
)

// Designation is one emitted (language, value) pair.
type Designation struct {
	Language string
	Value    string
	Index    IndexMarker
}

// Block is the rendered definition of one concept row.
type Block struct {
	Code         string
	Display      string
	Designations []Designation
}

// indexState tracks whether a row has already emitted a designation.
type indexState int

const (
	awaitingFirst indexState = iota
	haveEmitted
)

func (s indexState) next() (IndexMarker, indexState) {
	if s == awaitingFirst {
		return IndexFirst, haveEmitted
	}
	return IndexAppend, haveEmitted
}

// Emitter builds Blocks from rows using a fixed Resolution.
type Emitter struct {
	res Resolution
}

// NewEmitter returns an emitter for res.
func NewEmitter(res Resolution) *Emitter {
	return &Emitter{res: res}
}

// Resolution returns the resolution the emitter was built with.
func (e *Emitter) Resolution() Resolution {
	return e.res
}

// Emit builds the block for row. rowNum is only used to report skips.
// Blank designation values are omitted and do not consume an index.
func (e *Emitter) Emit(rowNum int, row Row) (Block, error) {
	code := row.Value(e.res.CodeColumn)
	if code == "" {
		return Block{}, &RowSkipped{Row: rowNum, Reason: "blank code"}
	}
	display := row.Value(e.res.DisplayColumn)
	if display == "" {
		return Block{}, &RowSkipped{Row: rowNum, Reason: "blank primary display"}
	}

	block := Block{Code: code, Display: display}
	state := awaitingFirst
	for _, entry := range e.res.Plan {
		value := row.Value(entry.Column)
		if value == "" {
			continue
		}
		var marker IndexMarker
		marker, state = state.next()
		block.Designations = append(block.Designations, Designation{
			Language: entry.Tag,
			Value:    value,
			Index:    marker,
		})
	}
	return block, nil
}

// WriteTo writes the block, one line per statement, each terminated by "\n".
func (b Block) WriteTo(w io.Writer) (int64, error) {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	var n int64
	write := func(parts ...string) error {
		for _, p := range parts {
			m, err := bw.WriteString(p)
			n += int64(m)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(`* #`, Escape(b.Code), ` "`, Escape(b.Display), "\"\n"); err != nil {
		return n, err
	}
	for _, d := range b.Designations {
		if err := write(`  * ^designation[`, string(d.Index), `].language = #`, d.Language, "\n"); err != nil {
			return n, err
		}
		if err := write(`  * ^designation[`, string(IndexSame), `].value = "`, Escape(d.Value), "\"\n"); err != nil {
			return n, err
		}
	}

	if !ok {
		return n, bw.Flush()
	}
	return n, nil
}

// String renders the block as text.
func (b Block) String() string {
	var sb strings.Builder
	_, _ = b.WriteTo(&sb)
	return sb.String()
}

var escaper = strings.NewReplacer(
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
	"\t", `\t`,
	`\`, `\\`,
	`"`, `\"`,
)

// Escape makes s safe inside a double-quoted FSH string literal.
func Escape(s string) string {
	return escaper.Replace(s)
}
