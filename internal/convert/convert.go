// Package convert turns documents into Markdown and saves the images they carry.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/docreader/internal/errs"
	"github.com/hyperjump/docreader/internal/extract"
)

// Image is a binary image produced by a converter. Ext may be empty, in which case
// it is sniffed from Data. Page is the 1-based source page when known.
type Image struct {
	Data []byte
	Ext  string
	Alt  string
	Page int
}

// Document is the Markdown rendering of one source file. Markdown refers to
// Images[i] through AttachmentRef(i+1); references are rewritten once images are saved.
type Document struct {
	Markdown string
	Images   []Image
}

// Converter renders a file as Markdown.
type Converter interface {
	Convert(ctx context.Context, path string) (*Document, error)
}

// attachmentScheme prefixes placeholder image targets in converter output.
const attachmentScheme = "attachment:"

// AttachmentRef is the placeholder link target for the n-th (1-based) structured image.
func AttachmentRef(n int) string {
	return attachmentScheme + strconv.Itoa(n)
}

type kind int

const (
	kindUnknown kind = iota
	kindPDF
	kindSpreadsheet
	kindCSV
	kindWord
	kindPresentation
	kindODP
	kindODS
	kindCat
	kindHTML
	kindText
	kindJSON
	kindImage
)

var kindByExt = map[string]kind{
	".pdf":      kindPDF,
	".xlsx":     kindSpreadsheet,
	".xlsm":     kindSpreadsheet,
	".xltx":     kindSpreadsheet,
	".xltm":     kindSpreadsheet,
	".csv":      kindCSV,
	".docx":     kindWord,
	".pptx":     kindPresentation,
	".odp":      kindODP,
	".ods":      kindODS,
	".odt":      kindCat,
	".rtf":      kindCat,
	".html":     kindHTML,
	".htm":      kindHTML,
	".txt":      kindText,
	".log":      kindText,
	".text":     kindText,
	".md":       kindText,
	".markdown": kindText,
	".json":     kindJSON,
	".png":      kindImage,
	".jpg":      kindImage,
	".jpeg":     kindImage,
	".gif":      kindImage,
	".bmp":      kindImage,
	".tif":      kindImage,
	".tiff":     kindImage,
	".webp":     kindImage,
}

// SupportedExtensions lists the extensions Native converts, as quoted in errors.
const SupportedExtensions = ".pdf, .xlsx, .xlsm, .xltx, .xltm, .csv, .docx, .pptx, .odp, .ods, .odt, .rtf, .html, .htm, .txt, .log, .text, .md, .markdown, .json, .png, .jpg, .jpeg, .gif, .bmp, .tif, .tiff, .webp"

// Supported reports whether Native can convert path.
func Supported(path string) bool {
	return kindByExt[strings.ToLower(filepath.Ext(path))] != kindUnknown
}

// Native converts documents with the format libraries compiled into the binary.
type Native struct {
	caps extract.Capabilities
}

// NewNative returns a converter that reads PDF, spreadsheet and Word files through caps.
func NewNative(caps extract.Capabilities) *Native {
	return &Native{caps: caps}
}

// Convert dispatches on the file extension of path.
func (n *Native) Convert(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch kindByExt[strings.ToLower(filepath.Ext(path))] {
	case kindPDF:
		return n.pdf(ctx, path)
	case kindSpreadsheet:
		return n.spreadsheet(ctx, path)
	case kindCSV:
		return csvDocument(path)
	case kindWord:
		return n.word(ctx, path)
	case kindPresentation:
		return pptxDocument(path)
	case kindODP:
		return odpDocument(path)
	case kindODS:
		return odsDocument(path)
	case kindCat:
		return catDocument(path)
	case kindHTML:
		return htmlDocument(path)
	case kindText:
		text, err := extract.ReadText(path)
		if err != nil {
			return nil, err
		}
		return &Document{Markdown: text}, nil
	case kindJSON:
		text, err := extract.PrettyJSON(path)
		if err != nil {
			return nil, err
		}
		return &Document{Markdown: "```json\n" + text + "\n```\n"}, nil
	case kindImage:
		return imageDocument(path)
	default:
		ext := strings.ToLower(filepath.Ext(path))
		return nil, fmt.Errorf("%w: %q. Supported: %s", errs.ErrUnsupportedFormat, ext, SupportedExtensions)
	}
}
