package convert

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hyperjump/docreader/internal/bound"
	"github.com/hyperjump/docreader/internal/errs"
	"github.com/hyperjump/docreader/internal/extract"
	"github.com/hyperjump/docreader/internal/models"
)

// DefaultPreviewChars is the length of the preview returned with a conversion.
const DefaultPreviewChars = 500

var (
	dataURIImage  = regexp.MustCompile(`!\[([^\]]*)\]\(data:image/([^;]+);base64,([^)]+)\)`)
	attachmentRef = regexp.MustCompile(`\]\(` + attachmentScheme + `(\d+)\)`)
	printer       = message.NewPrinter(language.English)
)

// Options control where a conversion is written.
type Options struct {
	// OutputDir defaults to the source file's directory.
	OutputDir string
	// OutputFilename is the Markdown file name; ".md" is appended when missing.
	// Defaults to the source file's stem.
	OutputFilename string
}

// Pipeline converts a file, saves its images next to the Markdown and writes the result.
type Pipeline struct {
	conv         Converter
	pdfImages    PDFImageProvider
	previewChars int
	logger       *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPDFImages sets the provider used for PDFs whose conversion yielded no images.
func WithPDFImages(p PDFImageProvider) PipelineOption {
	return func(pl *Pipeline) { pl.pdfImages = p }
}

// WithPreviewChars sets the preview length; values below 1 keep the default.
func WithPreviewChars(n int) PipelineOption {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.previewChars = n
		}
	}
}

// NewPipeline returns a pipeline around conv. A nil conv makes every Run fail
// with errs.ErrDependencyMissing.
func NewPipeline(conv Converter, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{conv: conv, previewChars: DefaultPreviewChars, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run converts the validated file src. The full Markdown is written unbounded;
// only the returned preview is shortened.
func (p *Pipeline) Run(ctx context.Context, src string, opts Options) (*models.ConversionResult, error) {
	if p.conv == nil {
		return nil, fmt.Errorf("%w: Markdown conversion is not available in this build", errs.ErrDependencyMissing)
	}

	doc, err := p.conv.Convert(ctx, src)
	if err != nil {
		return nil, conversionError(err)
	}

	outDir := filepath.Dir(src)
	if opts.OutputDir != "" {
		outDir = extract.ExpandPath(opts.OutputDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	mdName := stem + ".md"
	if opts.OutputFilename != "" {
		mdName = opts.OutputFilename
		if !strings.HasSuffix(mdName, ".md") {
			mdName += ".md"
		}
	}
	mdPath := filepath.Join(outDir, mdName)

	w := &imageWriter{dir: filepath.Join(outDir, stem+"_images"), rel: stem + "_images"}
	markdown, err := p.saveStructured(doc, w)
	if err != nil {
		return nil, err
	}
	if w.count == 0 && strings.Contains(markdown, "data:image") {
		markdown = p.saveDataURIs(markdown, w)
	}
	if w.count == 0 && p.pdfImages != nil && strings.EqualFold(filepath.Ext(src), ".pdf") {
		markdown = p.savePDFImages(ctx, src, markdown, w)
	}

	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", mdPath, err)
	}

	size := utf8.RuneCountInString(markdown)
	result := &models.ConversionResult{
		MarkdownPath:    mdPath,
		ImageCount:      w.count,
		MarkdownPreview: Preview(markdown, p.previewChars),
		FileSizeChars:   size,
		Status:          models.StatusSuccess,
		Message:         printer.Sprintf("Successfully converted %s to Markdown (%d characters)", base, size),
	}
	if w.count > 0 {
		dir := w.dir
		result.ImagesDir = &dir
	}
	p.logger.Info("converted document",
		zap.String("source", src),
		zap.String("markdown_path", mdPath),
		zap.Int("image_count", w.count),
		zap.Int("chars", size))
	return result, nil
}

// Preview returns the first n characters of markdown, followed by a size note when
// markdown is longer.
func Preview(markdown string, n int) string {
	size := utf8.RuneCountInString(markdown)
	if size <= n {
		return markdown
	}
	return bound.Head(markdown, n) + printer.Sprintf("\n\n... (truncated preview, full file has %d characters)", size)
}

// conversionError keeps classified errors and marks the rest as extraction failures.
func conversionError(err error) error {
	for _, sentinel := range []error{
		errs.ErrDependencyMissing, errs.ErrUnsupportedFormat, errs.ErrMalformedInput,
		errs.ErrDecode, errs.ErrExtraction, context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("failed to convert document to Markdown: %w", err)
		}
	}
	return fmt.Errorf("%w: failed to convert document to Markdown: %v", errs.ErrExtraction, err)
}

// imageWriter numbers and writes images into one directory, created on first use.
type imageWriter struct {
	dir   string
	rel   string
	count int
}

// write stores data as image_<n>.<ext> and returns the Markdown-relative path.
func (w *imageWriter) write(n int, ext string, data []byte) (string, error) {
	name := "image_" + strconv.Itoa(n) + "." + ext
	if !validExt(ext) || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return "", err
	}
	w.count++
	return w.rel + "/" + name, nil
}

func (p *Pipeline) saveStructured(doc *Document, w *imageWriter) (string, error) {
	if len(doc.Images) == 0 {
		return doc.Markdown, nil
	}
	refs := make([]string, len(doc.Images))
	for i, img := range doc.Images {
		ext := img.Ext
		if ext == "" || ext == "jpeg" || !validExt(ext) {
			ext = sniffExt(img.Data)
		}
		rel, err := w.write(i+1, ext, img.Data)
		if err != nil {
			return "", fmt.Errorf("failed to save image %d: %w", i+1, err)
		}
		refs[i] = rel
	}
	return attachmentRef.ReplaceAllStringFunc(doc.Markdown, func(m string) string {
		n, _ := strconv.Atoi(attachmentRef.FindStringSubmatch(m)[1])
		if n < 1 || n > len(refs) {
			return m
		}
		return "](" + refs[n-1] + ")"
	}), nil
}

func validExt(ext string) bool {
	if ext == "" || len(ext) > 5 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// dataURIExt turns the subtype of a data:image URI into a file extension, falling
// back to the sniffed format when the subtype is not a plain extension.
func dataURIExt(subtype string, data []byte) string {
	ext := strings.ToLower(strings.TrimSpace(subtype))
	if ext == "svg+xml" {
		return "svg"
	}
	if validExt(ext) {
		return ext
	}
	return sniffExt(data)
}

// saveDataURIs writes every inline base64 image and points its reference at the
// saved file. Images that fail to decode or save keep their original reference.
func (p *Pipeline) saveDataURIs(markdown string, w *imageWriter) string {
	idx := 0
	return dataURIImage.ReplaceAllStringFunc(markdown, func(m string) string {
		idx++
		sub := dataURIImage.FindStringSubmatch(m)
		alt, format, payload := sub[1], sub[2], sub[3]
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			p.logger.Warn("failed to extract data URI image", zap.Int("index", idx), zap.Error(err))
			return m
		}
		rel, err := w.write(idx, dataURIExt(format, data), data)
		if err != nil {
			p.logger.Warn("failed to extract data URI image", zap.Int("index", idx), zap.Error(err))
			return m
		}
		return "![" + alt + "](" + rel + ")"
	})
}

// savePDFImages writes a PDF's embedded images and splices references after the
// page they came from. Without page breaks the references go into a trailing
// "Extracted Images" section. Failures are logged and leave markdown unchanged.
func (p *Pipeline) savePDFImages(ctx context.Context, src, markdown string, w *imageWriter) string {
	images, err := p.pdfImages.PageImages(ctx, src)
	if err != nil {
		p.logger.Warn("failed to extract images from PDF", zap.String("source", src), zap.Error(err))
		return markdown
	}
	byPage := map[int][]string{}
	for _, img := range images {
		ext := strings.ToLower(img.Ext)
		if !validExt(ext) {
			ext = sniffExt(img.Data)
		}
		rel, err := w.write(w.count+1, ext, img.Data)
		if err != nil {
			p.logger.Warn("failed to save PDF image", zap.Int("page", img.Page), zap.Error(err))
			continue
		}
		byPage[img.Page] = append(byPage[img.Page], rel)
	}
	p.logger.Info("PDF image extraction completed", zap.Int("image_count", w.count))
	if w.count == 0 {
		return markdown
	}

	if strings.Contains(markdown, pageBreak) {
		pages := strings.Split(markdown, pageBreak)
		var b strings.Builder
		for i, page := range pages {
			num := i + 1
			b.WriteString(page)
			if refs := byPage[num]; len(refs) > 0 {
				b.WriteString("\n\n")
				for _, rel := range refs {
					fmt.Fprintf(&b, "![Image from page %d](%s)\n\n", num, rel)
				}
			}
			if num < len(pages) {
				b.WriteString(pageBreak)
			}
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(markdown)
	b.WriteString("\n\n## Extracted Images\n\n")
	b.WriteString("*The following images were extracted from the PDF:*\n\n")
	nums := make([]int, 0, len(byPage))
	for n := range byPage {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		fmt.Fprintf(&b, "\n### Images from Page %d\n\n", n)
		for _, rel := range byPage[n] {
			fmt.Fprintf(&b, "![Image](%s)\n\n", rel)
		}
	}
	return b.String()
}
