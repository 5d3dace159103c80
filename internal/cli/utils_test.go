package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/docreader/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, "hello", OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteText(&buf, "hello", OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.ExtractResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Text != "hello" {
		t.Errorf("decoded text = %q", decoded.Text)
	}
}

func TestWriteChunk(t *testing.T) {
	chunks := []models.StreamChunk{{Index: 0, Text: "a\n"}, {Index: 1, Text: "b"}}

	var text bytes.Buffer
	var lines bytes.Buffer
	for _, c := range chunks {
		if err := WriteChunk(&text, c, OutputText); err != nil {
			t.Fatal(err)
		}
		if err := WriteChunk(&lines, c, OutputJSON); err != nil {
			t.Fatal(err)
		}
	}
	if text.String() != "a\nb" {
		t.Errorf("text chunks = %q", text.String())
	}
	got := strings.Split(strings.TrimSpace(lines.String()), "\n")
	if len(got) != 2 {
		t.Fatalf("want 2 JSON lines, got %q", lines.String())
	}
	var second models.StreamChunk
	if err := json.Unmarshal([]byte(got[1]), &second); err != nil || second.Index != 1 || second.Text != "b" {
		t.Errorf("second line = %q (%v)", got[1], err)
	}
}

func TestWriteConversion(t *testing.T) {
	dir := "/tmp/out/doc_images"
	res := &models.ConversionResult{
		MarkdownPath:    "/tmp/out/doc.md",
		ImagesDir:       &dir,
		ImageCount:      2,
		MarkdownPreview: "# Title",
		Status:          models.StatusSuccess,
		Message:         "Successfully converted doc.html to Markdown (7 characters)",
	}
	var buf bytes.Buffer
	if err := WriteConversion(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{res.Message, "markdown: /tmp/out/doc.md", "images:   /tmp/out/doc_images (2)", "# Title"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	res.ImagesDir = nil
	buf.Reset()
	if err := WriteConversion(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"images_dir": null`) {
		t.Errorf("json output = %s", buf.String())
	}
}
