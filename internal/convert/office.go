package convert

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lu4p/cat"

	"github.com/hyperjump/docreader/internal/errs"
	"github.com/hyperjump/docreader/internal/extract"
)

// pageBreak separates PDF pages in converted Markdown.
const pageBreak = "\f"

func (n *Native) pdf(ctx context.Context, path string) (*Document, error) {
	provider, err := n.caps.RequirePDF()
	if err != nil {
		return nil, err
	}
	pages, err := provider.ExtractPages(ctx, path, 0)
	if err != nil {
		return nil, err
	}
	return &Document{Markdown: strings.Join(pages, pageBreak)}, nil
}

func (n *Native) spreadsheet(ctx context.Context, path string) (*Document, error) {
	provider, err := n.caps.RequireSpreadsheet()
	if err != nil {
		return nil, err
	}
	wb, err := provider.OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	var sections []string
	for _, sheet := range wb.Sheets() {
		var rows [][]string
		for cells, err := range wb.Rows(sheet) {
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if blankRow(cells) {
				continue
			}
			rows = append(rows, append([]string(nil), cells...))
		}
		section := "## " + sheet
		if table := markdownTable(rows); table != "" {
			section += "\n\n" + table
		}
		sections = append(sections, section)
	}
	return &Document{Markdown: strings.Join(sections, "\n\n") + "\n"}, nil
}

func csvDocument(path string) (*Document, error) {
	text, err := extract.ReadText(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid CSV file: %v", errs.ErrMalformedInput, err)
		}
		if blankRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return &Document{Markdown: markdownTable(rows) + "\n"}, nil
}

func (n *Native) word(ctx context.Context, path string) (*Document, error) {
	provider, err := n.caps.RequireWord()
	if err != nil {
		return nil, err
	}
	paras, err := provider.Paragraphs(ctx, path)
	if err != nil {
		return nil, err
	}
	var blocks []string
	for _, p := range paras {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, styledParagraph(p.Style, text))
	}
	images, err := zipMedia(path, "word/media/")
	if err != nil {
		return nil, err
	}
	return &Document{Markdown: withImageRefs(strings.Join(blocks, "\n\n"), images), Images: images}, nil
}

// styledParagraph maps Word paragraph styles to Markdown block syntax.
func styledParagraph(style, text string) string {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title":
		return "# " + text
	case s == "subtitle":
		return "## " + text
	case strings.HasPrefix(s, "heading") && len(s) == len("heading")+1:
		level := int(s[len(s)-1] - '0')
		if level >= 1 && level <= 6 {
			return strings.Repeat("#", level) + " " + text
		}
	case strings.HasPrefix(s, "list"):
		return "- " + text
	case s == "quote" || s == "intensequote":
		return "> " + text
	}
	return text
}

// withImageRefs appends one reference per structured image after the body.
func withImageRefs(body string, images []Image) string {
	if len(images) == 0 {
		return body + "\n"
	}
	var b strings.Builder
	b.WriteString(body)
	for i, img := range images {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "![%s](%s)", img.Alt, AttachmentRef(i+1))
	}
	b.WriteString("\n")
	return b.String()
}

// zipMedia returns the files under prefix in an OOXML or ODF package, ordered by name.
func zipMedia(file, prefix string) ([]Image, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip package: %v", errs.ErrExtraction, err)
	}
	defer zr.Close()

	var files []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return naturalLess(files[i].Name, files[j].Name) })

	images := make([]Image, 0, len(files))
	for _, f := range files {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		name := path.Base(f.Name)
		images = append(images, Image{
			Data: data,
			Ext:  strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."),
			Alt:  strings.TrimSuffix(name, path.Ext(name)),
		})
	}
	return images, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrExtraction, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errs.ErrExtraction, f.Name, err)
	}
	return data, nil
}

// naturalLess orders names so that embedded numbers compare numerically (slide2 < slide10).
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := leadingDigits(a), leadingDigits(b)
		if da != "" && db != "" {
			if len(da) != len(db) {
				return len(da) < len(db)
			}
			if da != db {
				return da < db
			}
			a, b = a[len(da):], b[len(db):]
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// catDocument reads ODT and RTF files as plain text paragraphs.
func catDocument(path string) (*Document, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", errs.ErrExtraction, strings.ToUpper(strings.TrimPrefix(pathExt(path), ".")), err)
	}
	return &Document{Markdown: strings.TrimSpace(text) + "\n"}, nil
}

func pathExt(p string) string {
	return strings.ToLower(filepath.Ext(p))
}
