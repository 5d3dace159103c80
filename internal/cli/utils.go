// Package cli provides output helpers for the docreader command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/docreader/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteText writes an extraction result. Text output ends with a newline.
func WriteText(w io.Writer, text string, format OutputFormat) error {
	if format == OutputJSON {
		return encode(w, models.ExtractResponse{Text: text})
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// WriteChunk writes one streamed chunk. JSON output is one object per line;
// text output writes the chunk as is so the concatenation matches the bulk text.
func WriteChunk(w io.Writer, chunk models.StreamChunk, format OutputFormat) error {
	if format == OutputJSON {
		return json.NewEncoder(w).Encode(chunk)
	}
	_, err := io.WriteString(w, chunk.Text)
	return err
}

// WriteConversion writes a conversion summary.
func WriteConversion(w io.Writer, res *models.ConversionResult, format OutputFormat) error {
	if format == OutputJSON {
		return encode(w, res)
	}
	fmt.Fprintln(w, res.Message)
	fmt.Fprintf(w, "markdown: %s\n", res.MarkdownPath)
	if res.ImagesDir != nil {
		fmt.Fprintf(w, "images:   %s (%d)\n", *res.ImagesDir, res.ImageCount)
	}
	if res.MarkdownPreview != "" {
		fmt.Fprintf(w, "\n%s\n", res.MarkdownPreview)
	}
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
