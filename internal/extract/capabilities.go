package extract

import (
	"context"
	"fmt"
	"iter"

	"github.com/hyperjump/docreader/internal/errs"
)

// PDFTextProvider extracts page text from PDF files.
type PDFTextProvider interface {
	// ExtractPages returns the text of the first maxPages pages (all pages when maxPages is 0).
	// Pages beyond the cap are not parsed.
	ExtractPages(ctx context.Context, path string, maxPages int) ([]string, error)
}

// Workbook is an open spreadsheet. Close must be called to release it.
type Workbook interface {
	// Sheets lists worksheet titles in workbook order.
	Sheets() []string
	// Rows yields the cell values of each row of sheet in order.
	Rows(sheet string) iter.Seq2[[]string, error]
	Close() error
}

// SpreadsheetProvider opens spreadsheet workbooks.
type SpreadsheetProvider interface {
	OpenWorkbook(path string) (Workbook, error)
}

// Paragraph is one Word paragraph with its style identifier (e.g. "Heading1").
type Paragraph struct {
	Style string
	Text  string
}

// WordProvider reads paragraphs from Word documents.
type WordProvider interface {
	Paragraphs(ctx context.Context, path string) ([]Paragraph, error)
}

// Capabilities is the set of optional format providers available at runtime.
// A nil provider makes its format report errs.ErrDependencyMissing.
type Capabilities struct {
	PDF         PDFTextProvider
	Spreadsheet SpreadsheetProvider
	Word        WordProvider
}

// DefaultCapabilities returns the built-in providers.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		PDF:         NewPDFProvider(),
		Spreadsheet: NewSpreadsheetProvider(),
		Word:        NewWordProvider(),
	}
}

// Without returns a copy of c with the named providers ("pdf", "spreadsheet", "docx") removed.
func (c Capabilities) Without(names ...string) Capabilities {
	for _, name := range names {
		switch name {
		case "pdf":
			c.PDF = nil
		case "spreadsheet", "xlsx":
			c.Spreadsheet = nil
		case "docx", "word":
			c.Word = nil
		}
	}
	return c
}

// RequirePDF returns the PDF provider or errs.ErrDependencyMissing.
func (c Capabilities) RequirePDF() (PDFTextProvider, error) {
	if c.PDF == nil {
		return nil, fmt.Errorf("%w: PDF text extraction is not available in this build", errs.ErrDependencyMissing)
	}
	return c.PDF, nil
}

// RequireSpreadsheet returns the spreadsheet provider or errs.ErrDependencyMissing.
func (c Capabilities) RequireSpreadsheet() (SpreadsheetProvider, error) {
	if c.Spreadsheet == nil {
		return nil, fmt.Errorf("%w: spreadsheet reading is not available in this build", errs.ErrDependencyMissing)
	}
	return c.Spreadsheet, nil
}

// RequireWord returns the Word provider or errs.ErrDependencyMissing.
func (c Capabilities) RequireWord() (WordProvider, error) {
	if c.Word == nil {
		return nil, fmt.Errorf("%w: Word document reading is not available in this build", errs.ErrDependencyMissing)
	}
	return c.Word, nil
}
