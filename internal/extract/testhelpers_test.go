package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// minimalDocx returns .docx zip bytes whose body holds one paragraph per entry of paras.
func minimalDocx(paras ...string) []byte {
	var body bytes.Buffer
	for _, p := range paras {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

// minimalDocxWithContentTypes returns a .docx zip with [Content_Types].xml pointing to a custom document path.
func minimalDocxWithContentTypes(text, docPath string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	ct, _ := w.Create("[Content_Types].xml")
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/` + docPath + `" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`))
	fw, _ := w.Create(docPath)
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

type fakePDF struct {
	pages []string
	asked int
}

func (f *fakePDF) ExtractPages(_ context.Context, _ string, maxPages int) ([]string, error) {
	f.asked = maxPages
	if maxPages > 0 && maxPages < len(f.pages) {
		return f.pages[:maxPages], nil
	}
	return f.pages, nil
}

type fakeWorkbook struct {
	sheets map[string][][]string
	order  []string
	closed bool
	pulled int
}

func (w *fakeWorkbook) Sheets() []string { return w.order }

func (w *fakeWorkbook) Rows(sheet string) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for _, row := range w.sheets[sheet] {
			w.pulled++
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (w *fakeWorkbook) Close() error {
	w.closed = true
	return nil
}

type fakeSpreadsheet struct {
	wb *fakeWorkbook
}

func (f fakeSpreadsheet) OpenWorkbook(string) (Workbook, error) { return f.wb, nil }
