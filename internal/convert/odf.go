package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/docreader/internal/errs"
)

// odfContentPath is the path to the main content inside an OpenDocument zip.
const odfContentPath = "content.xml"

// maxRepeatedCells bounds table:number-columns-repeated expansion of non-empty cells.
const maxRepeatedCells = 256

const (
	odfTextNS  = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	odfTableNS = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	odfDrawNS  = "urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"
)

// readODFContent returns content.xml of an OpenDocument package.
func readODFContent(path, kind string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: not a zip: %v", errs.ErrExtraction, kind, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == odfContentPath {
			return readZipFile(f)
		}
	}
	return nil, fmt.Errorf("%w: failed to read %s: %s not found", errs.ErrExtraction, kind, odfContentPath)
}

func attr(el xml.StartElement, space, local string) string {
	for _, a := range el.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// odfText collects the character data of text:p / text:h elements, honouring
// text:s, text:tab and text:line-break.
type odfText struct {
	depth int
	cur   strings.Builder
}

func (t *odfText) start(el xml.StartElement) {
	if el.Name.Space != odfTextNS {
		return
	}
	switch el.Name.Local {
	case "p", "h":
		if t.depth == 0 {
			t.cur.Reset()
		}
		t.depth++
	case "s":
		if t.depth > 0 {
			n, err := strconv.Atoi(attr(el, odfTextNS, "c"))
			if err != nil || n < 1 {
				n = 1
			}
			t.cur.WriteString(strings.Repeat(" ", n))
		}
	case "tab":
		if t.depth > 0 {
			t.cur.WriteByte('\t')
		}
	case "line-break":
		if t.depth > 0 {
			t.cur.WriteByte('\n')
		}
	}
}

// end reports the finished paragraph text when el closes the outermost paragraph.
func (t *odfText) end(el xml.EndElement) (string, bool) {
	if el.Name.Space != odfTextNS || (el.Name.Local != "p" && el.Name.Local != "h") || t.depth == 0 {
		return "", false
	}
	t.depth--
	if t.depth > 0 {
		return "", false
	}
	return strings.TrimSpace(t.cur.String()), true
}

func (t *odfText) chars(data xml.CharData) {
	if t.depth > 0 {
		t.cur.Write(data)
	}
}

// odpDocument renders each draw:page of a presentation as a "## <name>" section.
func odpDocument(path string) (*Document, error) {
	content, err := readODFContent(path, "ODP")
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		sections []string
		lines    []string
		title    string
		inPage   bool
		pages    int
		text     odfText
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read ODP: %v", errs.ErrMalformedInput, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space == odfDrawNS && el.Name.Local == "page" {
				pages++
				inPage = true
				lines = nil
				title = attr(el, odfDrawNS, "name")
				if title == "" {
					title = fmt.Sprintf("Slide %d", pages)
				}
				continue
			}
			text.start(el)
		case xml.EndElement:
			if el.Name.Space == odfDrawNS && el.Name.Local == "page" {
				section := "## " + title
				if len(lines) > 0 {
					section += "\n\n" + strings.Join(lines, "\n\n")
				}
				sections = append(sections, section)
				inPage = false
				continue
			}
			if line, ok := text.end(el); ok && inPage && line != "" {
				lines = append(lines, line)
			}
		case xml.CharData:
			text.chars(el)
		}
	}
	images, err := zipMedia(path, "Pictures/")
	if err != nil {
		return nil, err
	}
	return &Document{Markdown: withImageRefs(strings.Join(sections, "\n\n"), images), Images: images}, nil
}

// odsDocument renders each table:table of a spreadsheet as "## <name>" plus a Markdown table.
func odsDocument(path string) (*Document, error) {
	content, err := readODFContent(path, "ODS")
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		sections []string
		rows     [][]string
		row      []string
		cell     []string
		repeat   int
		name     string
		text     odfText
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read ODS: %v", errs.ErrMalformedInput, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space == odfTableNS {
				switch el.Name.Local {
				case "table":
					name = attr(el, odfTableNS, "name")
					rows = nil
				case "table-row":
					row = nil
				case "table-cell", "covered-table-cell":
					cell = nil
					repeat, err = strconv.Atoi(attr(el, odfTableNS, "number-columns-repeated"))
					if err != nil || repeat < 1 {
						repeat = 1
					}
				}
				continue
			}
			text.start(el)
		case xml.EndElement:
			if el.Name.Space == odfTableNS {
				switch el.Name.Local {
				case "table-cell", "covered-table-cell":
					value := strings.Join(cell, " ")
					for i := 0; i < min(repeat, maxRepeatedCells); i++ {
						row = append(row, value)
					}
				case "table-row":
					if !blankRow(row) {
						rows = append(rows, trimTrailingEmpty(row))
					}
				case "table":
					section := "## " + name
					if table := markdownTable(rows); table != "" {
						section += "\n\n" + table
					}
					sections = append(sections, section)
				}
				continue
			}
			if line, ok := text.end(el); ok && line != "" {
				cell = append(cell, line)
			}
		case xml.CharData:
			text.chars(el)
		}
	}
	return &Document{Markdown: strings.Join(sections, "\n\n") + "\n"}, nil
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
