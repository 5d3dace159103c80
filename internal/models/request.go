// Package models defines the request and response shapes shared by the tool transports.
package models

import (
	"fmt"
	"strings"
)

// ExtractRequest is the input of extract_text_from_file.
// Nil caps fall back to the configured defaults; an explicit 0 means unlimited.
type ExtractRequest struct {
	Path     string `json:"path" jsonschema:"absolute or relative path to the document; ~ is expanded"`
	MaxRows  *int   `json:"max_rows,omitempty" jsonschema:"maximum rows for CSV/XLSX; 0 means unlimited"`
	MaxPages *int   `json:"max_pages,omitempty" jsonschema:"maximum pages for PDF; 0 means unlimited"`
}

// Validate rejects an empty path.
func (r *ExtractRequest) Validate() error {
	return validatePath(r.Path)
}

// StreamRequest is the input of extract_text_from_file_stream.
type StreamRequest struct {
	Path      string `json:"path" jsonschema:"absolute or relative path to the document; ~ is expanded"`
	ChunkSize *int   `json:"chunk_size,omitempty" jsonschema:"approximate characters per chunk; minimum 512, default 4096"`
	MaxRows   *int   `json:"max_rows,omitempty" jsonschema:"maximum rows for CSV/XLSX; 0 means unlimited"`
	MaxPages  *int   `json:"max_pages,omitempty" jsonschema:"maximum pages for PDF; 0 means unlimited"`
}

// Validate rejects an empty path.
func (r *StreamRequest) Validate() error {
	return validatePath(r.Path)
}

// ConvertRequest is the input of convert_to_markdown.
type ConvertRequest struct {
	Path           string `json:"path" jsonschema:"path to the document to convert"`
	OutputDir      string `json:"output_dir,omitempty" jsonschema:"directory for the Markdown file and images; defaults to the source directory"`
	OutputFilename string `json:"output_filename,omitempty" jsonschema:"Markdown file name without extension; defaults to the source name"`
}

// Validate rejects an empty path.
func (r *ConvertRequest) Validate() error {
	return validatePath(r.Path)
}

func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path must be a non-empty string")
	}
	return nil
}
