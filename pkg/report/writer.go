package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet applications detect UTF-8 for the Japanese columns
const utf8BOM = "\ufeff"

// Writer appends report rows as CSV
type Writer struct {
	csv           *csv.Writer
	out           io.Writer
	assembler     *Assembler
	headerPending bool
	bom           bool
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithoutHeader suppresses the header row, for appending to an existing file
func WithoutHeader() WriterOption {
	return func(w *Writer) { w.headerPending = false }
}

// WithBOM prefixes the output with a UTF-8 byte order mark
func WithBOM() WriterOption {
	return func(w *Writer) { w.bom = true }
}

// NewWriter creates a CSV report writer
func NewWriter(out io.Writer, assembler *Assembler, opts ...WriterOption) *Writer {
	w := &Writer{
		csv:           csv.NewWriter(out),
		out:           out,
		assembler:     assembler,
		headerPending: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write validates r and writes it as one row, emitting the header first if needed
func (w *Writer) Write(r Report) error {
	row, err := w.assembler.Row(r)
	if err != nil {
		return err
	}

	if w.bom {
		if _, err := io.WriteString(w.out, utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
		w.bom = false
	}
	if w.headerPending {
		if err := w.csv.Write(Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.headerPending = false
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}
