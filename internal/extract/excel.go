package extract

import (
	"fmt"
	"iter"

	"github.com/hyperjump/docreader/internal/errs"
	"github.com/xuri/excelize/v2"
)

type spreadsheetProvider struct{}

// NewSpreadsheetProvider returns a workbook opener backed by excelize.
func NewSpreadsheetProvider() SpreadsheetProvider {
	return spreadsheetProvider{}
}

func (spreadsheetProvider) OpenWorkbook(path string) (Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open Excel: %v", errs.ErrExtraction, err)
	}
	return &excelWorkbook{f: f}, nil
}

type excelWorkbook struct {
	f *excelize.File
}

func (w *excelWorkbook) Sheets() []string {
	return w.f.GetSheetList()
}

// Rows streams rows through the excelize row iterator so sheets are never loaded whole.
func (w *excelWorkbook) Rows(sheet string) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		rows, err := w.f.Rows(sheet)
		if err != nil {
			yield(nil, fmt.Errorf("%w: get rows for sheet %q: %v", errs.ErrExtraction, sheet, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				yield(nil, fmt.Errorf("%w: read row in sheet %q: %v", errs.ErrExtraction, sheet, err))
				return
			}
			if !yield(cols, nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(nil, fmt.Errorf("%w: iterate sheet %q: %v", errs.ErrExtraction, sheet, err))
		}
	}
}

func (w *excelWorkbook) Close() error {
	return w.f.Close()
}
