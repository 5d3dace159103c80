package convert

import (
	"archive/zip"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/docreader/internal/errs"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

var (
	// aParagraph matches one DrawingML paragraph (<a:p>...</a:p>).
	aParagraph = regexp.MustCompile(`(?s)<a:p>.*?</a:p>|<a:p [^>]*>.*?</a:p>`)
	// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t>.
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
)

// pptxDocument renders each slide as a "## Slide N" section whose paragraphs are the
// slide's text runs. Media under ppt/media/ become structured images.
func pptxDocument(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PPTX: not a zip: %v", errs.ErrExtraction, err)
	}
	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePathPrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return naturalLess(slides[i].Name, slides[j].Name) })

	var sections []string
	for i, f := range slides {
		data, err := readZipFile(f)
		if err != nil {
			_ = zr.Close()
			return nil, err
		}
		var lines []string
		for _, para := range aParagraph.FindAllString(string(data), -1) {
			var b strings.Builder
			for _, run := range atTag.FindAllStringSubmatch(para, -1) {
				b.WriteString(html.UnescapeString(run[1]))
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		section := fmt.Sprintf("## Slide %d", i+1)
		if len(lines) > 0 {
			section += "\n\n" + strings.Join(lines, "\n\n")
		}
		sections = append(sections, section)
	}
	_ = zr.Close()

	images, err := zipMedia(path, "ppt/media/")
	if err != nil {
		return nil, err
	}
	return &Document{Markdown: withImageRefs(strings.Join(sections, "\n\n"), images), Images: images}, nil
}
