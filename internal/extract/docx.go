package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/hyperjump/docreader/internal/errs"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wordNS is the WordprocessingML namespace.
const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

type wordProvider struct{}

// NewWordProvider returns a provider reading paragraphs straight from the OOXML package.
func NewWordProvider() WordProvider {
	return wordProvider{}
}

func (wordProvider) Paragraphs(ctx context.Context, path string) ([]Paragraph, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract text from DOCX: not a zip: %v", errs.ErrExtraction, err)
	}
	defer zr.Close()

	docPath := findDocxMainDocumentPath(&zr.Reader)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to extract text from DOCX: open %s: %v", errs.ErrExtraction, f.Name, err)
		}
		defer rc.Close()
		paras, err := readParagraphs(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to extract text from DOCX: %v", errs.ErrExtraction, err)
		}
		return paras, nil
	}
	return nil, fmt.Errorf("%w: failed to extract text from DOCX: %s not found", errs.ErrExtraction, docPath)
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return ""
		}
		content := string(data)
		if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimPrefix(matches[1], "/")
		}
		if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimPrefix(matches[1], "/")
		}
		return ""
	}
	return ""
}

// readParagraphs walks document.xml token by token. Text runs (w:t) inside a
// paragraph (w:p) are concatenated; w:tab and w:br become tab and newline.
func readParagraphs(ctx context.Context, r io.Reader) ([]Paragraph, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []Paragraph
		cur    strings.Builder
		style  string
		depth  int
		inText bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					cur.Reset()
					style = ""
				}
				depth++
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" {
						style = a.Value
					}
				}
			case "t":
				inText = true
			case "tab":
				if depth > 0 {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					paras = append(paras, Paragraph{Style: style, Text: cur.String()})
				}
			}
		case xml.CharData:
			if inText && depth > 0 {
				cur.Write(t)
			}
		}
	}
	return paras, nil
}
