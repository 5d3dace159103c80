package models

// ExtractResponse carries the bounded text of one extraction.
type ExtractResponse struct {
	Text string `json:"text"`
}

// StreamChunk is one element of a streamed extraction.
type StreamChunk struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Notice bool   `json:"notice,omitempty"`
}

// ConversionResult describes a finished Markdown conversion.
// ImagesDir is nil when no image was written.
type ConversionResult struct {
	MarkdownPath    string  `json:"markdown_path"`
	ImagesDir       *string `json:"images_dir"`
	ImageCount      int     `json:"image_count"`
	MarkdownPreview string  `json:"markdown_preview"`
	FileSizeChars   int     `json:"file_size_chars"`
	Status          string  `json:"status"`
	Message         string  `json:"message"`
}

// StatusSuccess is the only status a returned ConversionResult carries; failures are errors.
const StatusSuccess = "success"
