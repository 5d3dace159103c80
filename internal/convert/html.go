package convert

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperjump/docreader/internal/errs"
)

var (
	spaceRun     = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// htmlDocument renders an HTML page as Markdown. Inline data-URI images are kept
// as-is so they can be extracted afterwards.
func htmlDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read HTML file: %v", errs.ErrExtraction, err)
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse HTML: %v", errs.ErrMalformedInput, err)
	}
	return &Document{Markdown: HTMLToMarkdown(doc.Selection)}, nil
}

// HTMLToMarkdown renders the block structure under sel.
func HTMLToMarkdown(sel *goquery.Selection) string {
	root := sel.Find("body")
	if root.Length() == 0 {
		root = sel
	}
	out := strings.Join(renderBlocks(root), "\n\n")
	return blankLineRun.ReplaceAllString(strings.TrimSpace(out), "\n\n") + "\n"
}

func skipped(name string) bool {
	switch name {
	case "script", "style", "head", "noscript", "template", "iframe", "svg", "#comment":
		return true
	}
	return false
}

func inlineElement(name string) bool {
	switch name {
	case "#text", "a", "abbr", "b", "br", "cite", "code", "em", "i", "img", "kbd", "label",
		"mark", "q", "s", "samp", "small", "span", "strong", "sub", "sup", "time", "u", "var", "del", "ins":
		return true
	}
	return false
}

// renderBlocks renders the children of sel as a list of Markdown blocks.
// Runs of inline content between block elements form one paragraph.
func renderBlocks(sel *goquery.Selection) []string {
	var (
		blocks  []string
		pending strings.Builder
	)
	flush := func() {
		if p := cleanInline(pending.String()); p != "" {
			blocks = append(blocks, p)
		}
		pending.Reset()
	}
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case skipped(name):
		case inlineElement(name):
			pending.WriteString(renderInline(c))
		case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
			flush()
			if text := cleanInline(inlineChildren(c)); text != "" {
				blocks = append(blocks, strings.Repeat("#", int(name[1]-'0'))+" "+text)
			}
		case name == "p":
			flush()
			if text := cleanInline(inlineChildren(c)); text != "" {
				blocks = append(blocks, text)
			}
		case name == "ul" || name == "ol":
			flush()
			if list := renderList(c, 0); list != "" {
				blocks = append(blocks, list)
			}
		case name == "pre":
			flush()
			blocks = append(blocks, "```\n"+strings.TrimRight(c.Text(), "\n")+"\n```")
		case name == "blockquote":
			flush()
			inner := strings.Join(renderBlocks(c), "\n\n")
			if inner != "" {
				blocks = append(blocks, "> "+strings.ReplaceAll(inner, "\n", "\n> "))
			}
		case name == "table":
			flush()
			if table := renderTable(c); table != "" {
				blocks = append(blocks, table)
			}
		case name == "hr":
			flush()
			blocks = append(blocks, "---")
		default:
			flush()
			blocks = append(blocks, renderBlocks(c)...)
		}
	})
	flush()
	return blocks
}

func renderInline(c *goquery.Selection) string {
	switch goquery.NodeName(c) {
	case "#text":
		return spaceRun.ReplaceAllString(c.Text(), " ")
	case "br":
		return "\n"
	case "a":
		text := strings.TrimSpace(inlineChildren(c))
		href, ok := c.Attr("href")
		if !ok || href == "" {
			return text
		}
		if text == "" {
			text = href
		}
		return "[" + text + "](" + href + ")"
	case "strong", "b":
		return wrapInline(inlineChildren(c), "**")
	case "em", "i":
		return wrapInline(inlineChildren(c), "*")
	case "s", "del":
		return wrapInline(inlineChildren(c), "~~")
	case "code", "kbd", "samp":
		if t := c.Text(); t != "" {
			return "`" + t + "`"
		}
		return ""
	case "img":
		src, _ := c.Attr("src")
		if src == "" {
			return ""
		}
		alt, _ := c.Attr("alt")
		return "![" + alt + "](" + src + ")"
	default:
		if skipped(goquery.NodeName(c)) {
			return ""
		}
		return inlineChildren(c)
	}
}

func inlineChildren(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		b.WriteString(renderInline(c))
	})
	return b.String()
}

// wrapInline surrounds text with marker, keeping surrounding whitespace outside.
func wrapInline(text, marker string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	lead := text[:strings.Index(text, trimmed)]
	trail := text[len(lead)+len(trimmed):]
	return lead + marker + trimmed + marker + trail
}

// cleanInline trims each line of a paragraph and drops doubled spaces.
func cleanInline(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderList(list *goquery.Selection, depth int) string {
	ordered := goquery.NodeName(list) == "ol"
	indent := strings.Repeat("  ", depth)
	var lines []string
	n := 0
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		n++
		marker := "- "
		if ordered {
			marker = strconv.Itoa(n) + ". "
		}
		var text strings.Builder
		var nested []string
		li.Contents().Each(func(_ int, c *goquery.Selection) {
			switch name := goquery.NodeName(c); name {
			case "ul", "ol":
				if sub := renderList(c, depth+1); sub != "" {
					nested = append(nested, sub)
				}
			case "p", "div":
				text.WriteString(" " + inlineChildren(c) + " ")
			default:
				text.WriteString(renderInline(c))
			}
		})
		lines = append(lines, indent+marker+strings.ReplaceAll(cleanInline(text.String()), "\n", " "))
		lines = append(lines, nested...)
	})
	return strings.Join(lines, "\n")
}

func renderTable(table *goquery.Selection) string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cleanInline(strings.ReplaceAll(inlineChildren(cell), "\n", " ")))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return markdownTable(rows)
}
