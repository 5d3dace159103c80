package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docreader/internal/errs"
)

// DefaultMaxFileSize is the largest file accepted for extraction (100 MiB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Format identifies how a file is extracted.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatSpreadsheet
	FormatWord
	FormatCSV
	FormatText
	FormatJSON
	FormatMarkdown
)

var formatNames = map[Format]string{
	FormatUnknown:     "unknown",
	FormatPDF:         "pdf",
	FormatSpreadsheet: "spreadsheet",
	FormatWord:        "docx",
	FormatCSV:         "csv",
	FormatText:        "text",
	FormatJSON:        "json",
	FormatMarkdown:    "markdown",
}

func (f Format) String() string {
	return formatNames[f]
}

// Capped reports whether the format honours a page or row cap.
func (f Format) Capped() bool {
	return f == FormatPDF || f == FormatSpreadsheet || f == FormatCSV
}

var formatByExt = map[string]Format{
	".pdf":      FormatPDF,
	".xlsx":     FormatSpreadsheet,
	".xlsm":     FormatSpreadsheet,
	".xltx":     FormatSpreadsheet,
	".xltm":     FormatSpreadsheet,
	".docx":     FormatWord,
	".csv":      FormatCSV,
	".txt":      FormatText,
	".log":      FormatText,
	".text":     FormatText,
	".json":     FormatJSON,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// supportedList is the extension list quoted in unsupported-format errors.
const supportedList = ".pdf, .xlsx, .xlsm, .xltx, .xltm, .docx, .csv, .txt, .log, .text, .json, .md, .markdown"

// FormatForPath returns the format for the file extension of path.
func FormatForPath(path string) Format {
	return formatByExt[strings.ToLower(filepath.Ext(path))]
}

// File is a validated input file.
type File struct {
	Path   string
	Format Format
	Size   int64
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Stat checks that path names an existing regular file no larger than maxSize.
// A maxSize of zero or less uses DefaultMaxFileSize.
func Stat(path string, maxSize int64) (string, os.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil, fmt.Errorf("%w: path must be a non-empty string", errs.ErrInvalidArgument)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	expanded := ExpandPath(path)
	info, err := os.Stat(expanded)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s", errs.ErrNotFound, expanded)
	}
	if info.Size() > maxSize {
		return "", nil, fmt.Errorf("%w: %s is %d bytes; limit is %dMB", errs.ErrTooLarge, expanded, info.Size(), maxSize/(1024*1024))
	}
	return expanded, info, nil
}

// Validate runs Stat and resolves the extraction format from the extension.
func Validate(path string, maxSize int64) (File, error) {
	expanded, info, err := Stat(path, maxSize)
	if err != nil {
		return File{}, err
	}
	format := FormatForPath(expanded)
	if format == FormatUnknown {
		ext := strings.ToLower(filepath.Ext(expanded))
		return File{}, fmt.Errorf("%w: %q. Supported: %s", errs.ErrUnsupportedFormat, ext, supportedList)
	}
	return File{Path: expanded, Format: format, Size: info.Size()}, nil
}
