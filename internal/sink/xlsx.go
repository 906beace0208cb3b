package sink

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// XLSXSink writes rows to a single-sheet workbook through the excelize
// stream writer. It implements RowSink.
type XLSXSink struct {
	path string
	file *excelize.File
	sw   *excelize.StreamWriter
	row  int
}

// NewXLSXSink opens a stream writer for a new workbook saved to path on
// Close.
func NewXLSXSink(path string) (*XLSXSink, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open stream writer: %w", err)
	}
	return &XLSXSink{path: path, file: f, sw: sw, row: 1}, nil
}

// WriteHeader writes the header row. Must be called before any WriteRow.
func (s *XLSXSink) WriteHeader(names []string) error {
	return s.writeCells(names)
}

// WriteRow appends one data row.
func (s *XLSXSink) WriteRow(values []string) error {
	return s.writeCells(values)
}

func (s *XLSXSink) writeCells(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := s.sw.SetRow(cell, row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", s.row, err)
	}
	s.row++
	return nil
}

// Close flushes the stream and saves the workbook.
func (s *XLSXSink) Close() error {
	defer s.file.Close()
	if err := s.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
