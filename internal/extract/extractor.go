// Package extract turns validated document files into text, either as one bulk string
// or as an incremental sequence of fragments for row-oriented formats.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/hyperjump/docreader/internal/bound"
	"github.com/hyperjump/docreader/internal/errs"
)

// Fragment is one unit of extracted text. Row marks fragments that count toward the row cap.
type Fragment struct {
	Text string
	Row  bool
}

// Extractor extracts text from document files using the injected capabilities.
type Extractor struct {
	caps Capabilities
}

// NewExtractor returns an Extractor using caps.
func NewExtractor(caps Capabilities) *Extractor {
	return &Extractor{caps: caps}
}

// Capabilities returns the providers the extractor was built with.
func (e *Extractor) Capabilities() Capabilities {
	return e.caps
}

// Text returns the full extraction of f with page and row caps applied and the
// matching informational notice appended. Character truncation is left to the caller.
func (e *Extractor) Text(ctx context.Context, f File, caps bound.Caps) (string, error) {
	switch f.Format {
	case FormatSpreadsheet:
		frags, err := e.Fragments(ctx, f)
		if err != nil {
			return "", err
		}
		return CollectRows(frags, caps.MaxRows)
	case FormatCSV:
		enc, err := detectEncoding(f.Path, "CSV", textEncodings)
		if err != nil {
			return "", err
		}
		text, err := CollectRows(csvFragments(ctx, f.Path, enc), caps.MaxRows)
		if errors.Is(err, errs.ErrDecode) && enc.enc == nil {
			// invalid UTF-8 past the detection prefix; nothing was returned yet
			return CollectRows(csvFragments(ctx, f.Path, latin1Encoding), caps.MaxRows)
		}
		return text, err
	case FormatText:
		return readDecoded(f.Path, "text", textEncodings)
	case FormatMarkdown:
		return readDecoded(f.Path, "Markdown", structuredEncodings)
	case FormatPDF, FormatJSON, FormatWord:
		return e.Document(ctx, f, caps)
	default:
		return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedFormat, f.Format)
	}
}

// Document returns the bulk text of formats that cannot be parsed incrementally (PDF, JSON, DOCX).
func (e *Extractor) Document(ctx context.Context, f File, caps bound.Caps) (string, error) {
	switch f.Format {
	case FormatPDF:
		return e.pdfText(ctx, f.Path, caps.MaxPages)
	case FormatJSON:
		return jsonText(f.Path)
	case FormatWord:
		return e.docxText(ctx, f.Path)
	default:
		return "", fmt.Errorf("%w: %s is not a whole-document format", errs.ErrInvalidArgument, f.Format)
	}
}

// Fragments returns the incremental row source of a spreadsheet or CSV file.
// The file is opened on first pull and closed when iteration ends for any reason.
func (e *Extractor) Fragments(ctx context.Context, f File) (iter.Seq2[Fragment, error], error) {
	switch f.Format {
	case FormatSpreadsheet:
		provider, err := e.caps.RequireSpreadsheet()
		if err != nil {
			return nil, err
		}
		return sheetFragments(ctx, provider, f.Path), nil
	case FormatCSV:
		enc, err := detectEncoding(f.Path, "CSV", textEncodings)
		if err != nil {
			return nil, err
		}
		return csvFragments(ctx, f.Path, enc), nil
	default:
		return nil, fmt.Errorf("%w: %s is not row-oriented", errs.ErrInvalidArgument, f.Format)
	}
}

// OpenText opens a plain text or Markdown file as a decoded reader.
func (e *Extractor) OpenText(f File) (io.Reader, io.Closer, error) {
	switch f.Format {
	case FormatText:
		return openDecoded(f.Path, "text", textEncodings)
	case FormatMarkdown:
		return openDecoded(f.Path, "Markdown", structuredEncodings)
	default:
		return nil, nil, fmt.Errorf("%w: %s is not a text format", errs.ErrInvalidArgument, f.Format)
	}
}

// CollectRows joins fragments into one string, stopping at maxRows row fragments.
// The row-limit notice is appended when the cap was reached.
func CollectRows(frags iter.Seq2[Fragment, error], maxRows int) (string, error) {
	var lines []string
	rows := 0
	hitLimit := false
	for frag, err := range frags {
		if err != nil {
			return "", err
		}
		lines = append(lines, frag.Text)
		if frag.Row {
			rows++
			if maxRows > 0 && rows >= maxRows {
				hitLimit = true
				break
			}
		}
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if hitLimit {
		text += bound.RowLimitNotice(maxRows)
	}
	return text, nil
}

func (e *Extractor) pdfText(ctx context.Context, path string, maxPages int) (string, error) {
	provider, err := e.caps.RequirePDF()
	if err != nil {
		return "", err
	}
	pages, err := provider.ExtractPages(ctx, path, maxPages)
	if err != nil {
		return "", err
	}
	// Pages are separated by form feeds, as PDF text extractors conventionally do.
	text := strings.Join(pages, "\f")
	if maxPages > 0 {
		text += bound.PageLimitNotice(maxPages)
	}
	return text, nil
}

func (e *Extractor) docxText(ctx context.Context, path string) (string, error) {
	provider, err := e.caps.RequireWord()
	if err != nil {
		return "", err
	}
	paras, err := provider.Paragraphs(ctx, path)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(paras))
	for _, p := range paras {
		if strings.TrimSpace(p.Text) != "" {
			lines = append(lines, p.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
