package extract

import (
	"context"
	"fmt"

	"github.com/hyperjump/docreader/internal/errs"
	"github.com/ledongthuc/pdf"
)

type pdfProvider struct{}

// NewPDFProvider returns a PDF text provider backed by github.com/ledongthuc/pdf.
func NewPDFProvider() PDFTextProvider {
	return pdfProvider{}
}

func (pdfProvider) ExtractPages(ctx context.Context, path string, maxPages int) (pages []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open PDF: %v", errs.ErrExtraction, err)
	}
	defer f.Close()
	// The parser panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: parse PDF: %v", errs.ErrExtraction, rec)
		}
	}()

	numPages := r.NumPage()
	if maxPages > 0 && maxPages < numPages {
		numPages = maxPages
	}
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: extract page %d: %v", errs.ErrExtraction, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
