package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hyperjump/docreader/internal/errs"
)

// defaultImageExt is used when an image's format cannot be identified.
const defaultImageExt = "png"

// sniffExt returns the file extension for the image encoded in data.
func sniffExt(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format == "" {
		return defaultImageExt
	}
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// imageDocument wraps a standalone image file as a one-image document.
func imageDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image: %v", errs.ErrExtraction, err)
	}
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n![%s](%s)\n", stem, stem, AttachmentRef(1))
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		fmt.Fprintf(&b, "\n*%s image, %dx%d pixels*\n", strings.ToUpper(format), cfg.Width, cfg.Height)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return &Document{Markdown: b.String(), Images: []Image{{Data: data, Ext: ext, Alt: stem}}}, nil
}

// PDFImageProvider extracts the embedded images of a PDF with their page numbers.
type PDFImageProvider interface {
	PageImages(ctx context.Context, path string) ([]Image, error)
}

var disableConfigDir sync.Once

type pdfcpuImages struct {
	conf *model.Configuration
}

// NewPDFImageProvider returns a provider backed by pdfcpu.
func NewPDFImageProvider() PDFImageProvider {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &pdfcpuImages{conf: conf}
}

func (p *pdfcpuImages) PageImages(ctx context.Context, path string) (images []Image, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", errs.ErrExtraction, err)
	}
	defer f.Close()
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("%w: failed to extract PDF images: %v", errs.ErrExtraction, r)
		}
	}()

	err = api.ExtractImages(f, nil, func(img model.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		images = append(images, Image{
			Data: data,
			Ext:  strings.ToLower(img.FileType),
			Page: img.PageNr,
		})
		return nil
	}, p.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract PDF images: %v", errs.ErrExtraction, err)
	}
	return images, nil
}
