// Package bound resolves per-call extraction caps and bounds the size of returned text.
package bound

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unlimited is the cap value meaning "no cap".
const Unlimited = 0

// snapWindow is how far before the limit a line boundary may be and still be used as the cut point.
const snapWindow = 1000

const truncatedMarker = "\n\n[TRUNCATED: Output exceeded "

var printer = message.NewPrinter(language.English)

// Caps are the effective limits for one call. Zero means unlimited.
type Caps struct {
	MaxPages       int
	MaxRows        int
	MaxOutputChars int
}

// Resolve returns the explicit cap when set, otherwise def. Negative values resolve to Unlimited.
func Resolve(explicit *int, def int) int {
	v := def
	if explicit != nil {
		v = *explicit
	}
	if v < 0 {
		return Unlimited
	}
	return v
}

// Policy truncates bulk output at MaxOutputChars characters.
type Policy struct {
	MaxOutputChars int
}

// Truncate returns text unchanged when it fits, otherwise cuts it and appends a trailer
// describing the original size, the limit and the source file. The cut lands on the last
// line break before the limit when one exists within snapWindow characters of it.
// capHint adds a suggestion to use max_rows or max_pages.
// Output of an earlier Truncate for the same file is returned unchanged.
func (p Policy) Truncate(text, file string, capHint bool) string {
	limit := p.MaxOutputChars
	if limit <= Unlimited {
		return text
	}
	if p.ownTrailer(text, file, capHint) {
		return text
	}
	total := utf8.RuneCountInString(text)
	if total <= limit {
		return text
	}
	body := text[:byteOffset(text, limit)]
	if i := strings.LastIndexByte(body, '\n'); i >= 0 {
		if utf8.RuneCountInString(body[:i]) > limit-snapWindow {
			body = body[:i]
		}
	}
	return body + p.trailer(total, file, capHint)
}

func (p Policy) trailer(total int, file string, capHint bool) string {
	var b strings.Builder
	b.WriteString(truncatedMarker)
	b.WriteString(printer.Sprintf("%d character limit. Original size: %d characters. ", p.MaxOutputChars, total))
	if file != "" {
		b.WriteString("File: ")
		b.WriteString(filepath.Base(file))
		b.WriteString(". ")
	}
	if capHint {
		b.WriteString("Consider using max_rows or max_pages parameter to limit input. ")
	}
	b.WriteString("To increase limit, set DOC_READER_MAX_OUTPUT_CHARS environment variable.]")
	return b.String()
}

// ownTrailer reports whether text ends with exactly the trailer p would append for
// file and capHint, preceded by a body that fits the limit.
func (p Policy) ownTrailer(text, file string, capHint bool) bool {
	i := strings.LastIndex(text, truncatedMarker)
	if i < 0 || utf8.RuneCountInString(text[:i]) > p.MaxOutputChars {
		return false
	}
	rest := text[i:]
	const sizeLabel = "Original size: "
	j := strings.Index(rest, sizeLabel)
	if j < 0 {
		return false
	}
	digits := rest[j+len(sizeLabel):]
	if k := strings.IndexByte(digits, ' '); k >= 0 {
		digits = digits[:k]
	}
	total, err := strconv.Atoi(strings.ReplaceAll(digits, ",", ""))
	if err != nil || total <= p.MaxOutputChars {
		return false
	}
	return rest == p.trailer(total, file, capHint)
}

// byteOffset returns the byte index of the n-th rune of s, or len(s).
func byteOffset(s string, n int) int {
	if n <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// Head returns the first n characters of s.
func Head(s string, n int) string {
	return s[:byteOffset(s, n)]
}

// RowLimitNotice is appended when extraction stopped at the row cap.
func RowLimitNotice(maxRows int) string {
	return fmt.Sprintf("\n\n[INFO: Row limit of %d reached. Use max_rows parameter to adjust.]", maxRows)
}

// PageLimitNotice is appended to PDF text whenever a page cap was in effect.
func PageLimitNotice(maxPages int) string {
	return fmt.Sprintf("\n\n[INFO: Page limit of %d applied. Use max_pages parameter to adjust.]", maxPages)
}

// StreamTruncatedNotice ends a stream that ran out of character budget.
func StreamTruncatedNotice(limit int) string {
	return printer.Sprintf("\n\n[TRUNCATED: Output exceeded %d character limit.]", limit)
}
