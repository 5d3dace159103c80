package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode"

	"github.com/hyperjump/docreader/internal/errs"
)

// SheetHeader is the marker line that starts each worksheet in extracted text.
func SheetHeader(title string) string {
	return "# Sheet: " + title
}

func joinCells(cells []string) string {
	return strings.TrimRightFunc(strings.Join(cells, "\t"), unicode.IsSpace)
}

// sheetFragments yields a header per worksheet followed by its non-blank rows.
// Sheets after the first are preceded by a blank separator fragment.
func sheetFragments(ctx context.Context, provider SpreadsheetProvider, path string) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		wb, err := provider.OpenWorkbook(path)
		if err != nil {
			yield(Fragment{}, err)
			return
		}
		defer wb.Close()

		for i, sheet := range wb.Sheets() {
			if i > 0 && !yield(Fragment{}, nil) {
				return
			}
			if !yield(Fragment{Text: SheetHeader(sheet)}, nil) {
				return
			}
			for cells, err := range wb.Rows(sheet) {
				if err != nil {
					yield(Fragment{}, err)
					return
				}
				if err := ctx.Err(); err != nil {
					yield(Fragment{}, err)
					return
				}
				line := joinCells(cells)
				if line == "" {
					continue
				}
				if !yield(Fragment{Text: line, Row: true}, nil) {
					return
				}
			}
		}
	}
}

// csvFragments yields each non-blank CSV record with its fields joined by tabs.
func csvFragments(ctx context.Context, path string, enc textEncoding) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Fragment{}, fmt.Errorf("%w: failed to read CSV file: %v", errs.ErrExtraction, err))
			return
		}
		defer f.Close()

		r := csv.NewReader(enc.reader(f, "CSV"))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.ReuseRecord = true
		for {
			if err := ctx.Err(); err != nil {
				yield(Fragment{}, err)
				return
			}
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				switch {
				case errors.Is(err, errs.ErrDecode):
				case errors.As(err, &parseErr):
					err = fmt.Errorf("%w: failed to read CSV file: %v", errs.ErrMalformedInput, err)
				default:
					err = fmt.Errorf("%w: failed to read CSV file: %v", errs.ErrExtraction, err)
				}
				yield(Fragment{}, err)
				return
			}
			line := joinCells(record)
			if line == "" {
				continue
			}
			if !yield(Fragment{Text: line, Row: true}, nil) {
				return
			}
		}
	}
}
