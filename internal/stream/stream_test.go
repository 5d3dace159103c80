package stream

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/docreader/internal/bound"
	"github.com/hyperjump/docreader/internal/extract"
)

func rowsSource(lines ...string) iter.Seq2[extract.Fragment, error] {
	return func(yield func(extract.Fragment, error) bool) {
		for _, l := range lines {
			if !yield(extract.Fragment{Text: l, Row: true}, nil) {
				return
			}
		}
	}
}

// countingSource records how many fragments were pulled and whether it was released.
type countingSource struct {
	lines    []string
	pulled   int
	released bool
}

func (s *countingSource) seq() iter.Seq2[extract.Fragment, error] {
	return func(yield func(extract.Fragment, error) bool) {
		defer func() { s.released = true }()
		for _, l := range s.lines {
			s.pulled++
			if !yield(extract.Fragment{Text: l, Row: true}, nil) {
				return
			}
		}
	}
}

func collectChunks(t *testing.T, seq iter.Seq2[Chunk, error]) []Chunk {
	t.Helper()
	var out []Chunk
	for c, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func contentLen(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		if !c.Notice {
			n += utf8.RuneCountInString(c.Text)
		}
	}
	return n
}

func join(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestClampChunkSize(t *testing.T) {
	for in, want := range map[int]int{0: 512, -3: 512, 100: 512, 512: 512, 4096: 4096} {
		if got := ClampChunkSize(in); got != want {
			t.Errorf("ClampChunkSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAssemble_rowCap(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("r%d\tv%d", i, i))
	}
	src := &countingSource{lines: lines}
	chunks := collectChunks(t, Assemble(src.seq(), Options{ChunkSize: DefaultChunkSize, MaxRows: 3}))
	want := "r1\tv1\nr2\tv2\nr3\tv3" + bound.RowLimitNotice(3)
	if got := join(chunks); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !chunks[len(chunks)-1].Notice {
		t.Error("last chunk should be the row-limit notice")
	}
	if src.pulled != 3 {
		t.Errorf("pulled %d fragments, want 3", src.pulled)
	}
	if !src.released {
		t.Error("source not released after cap")
	}
}

func TestAssemble_flushesAtChunkSize(t *testing.T) {
	line := strings.Repeat("x", 200)
	chunks := collectChunks(t, Assemble(rowsSource(line, line, line, line, line), Options{ChunkSize: 512}))
	// Two 200-char lines plus separators fit (402); a third would not (603).
	// Chunks concatenate back to the newline-joined input.
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Text != line+"\n"+line+"\n" {
		t.Errorf("first chunk = %q", chunks[0].Text)
	}
	if chunks[2].Text != line {
		t.Errorf("last chunk = %q", chunks[2].Text)
	}
	if join(chunks) != strings.Join([]string{line, line, line, line, line}, "\n") {
		t.Error("chunks do not concatenate to the joined lines")
	}
}

func TestAssemble_skipsBlankFragments(t *testing.T) {
	src := func(yield func(extract.Fragment, error) bool) {
		_ = yield(extract.Fragment{Text: "# Sheet: A"}, nil) &&
			yield(extract.Fragment{Text: "a", Row: true}, nil) &&
			yield(extract.Fragment{}, nil) &&
			yield(extract.Fragment{Text: "# Sheet: B"}, nil) &&
			yield(extract.Fragment{Text: "b", Row: true}, nil)
	}
	got := join(collectChunks(t, Assemble(src, Options{})))
	if got != "# Sheet: A\na\n# Sheet: B\nb" {
		t.Errorf("got %q", got)
	}
}

func TestAssemble_charBudgetProperty(t *testing.T) {
	var lines []string
	for i := 0; i < 400; i++ {
		lines = append(lines, strings.Repeat(string(rune('a'+i%26)), 1+(i*37)%180))
	}
	for _, chunkSize := range []int{1, 512, 700, 1000, 4096, 100000} {
		for _, limit := range []int{1000, 1500, 5000, 20000} {
			chunks := collectChunks(t, Assemble(rowsSource(lines...), Options{ChunkSize: chunkSize, MaxOutputChars: limit}))
			if n := contentLen(chunks); n > limit {
				t.Errorf("chunk %d limit %d: emitted %d content chars", chunkSize, limit, n)
			}
			last := chunks[len(chunks)-1]
			if !last.Notice || last.Text != bound.StreamTruncatedNotice(limit) {
				t.Errorf("chunk %d limit %d: last chunk %q, want truncation notice", chunkSize, limit, last.Text)
			}
		}
	}
}

func TestAssemble_exactBudgetNoNotice(t *testing.T) {
	line := strings.Repeat("q", 1000)
	chunks := collectChunks(t, Assemble(rowsSource(line), Options{MaxOutputChars: 1000}))
	if len(chunks) != 1 || chunks[0].Notice {
		t.Fatalf("got %+v, want one content chunk", chunks)
	}
}

func TestAssemble_errorAfterChunks(t *testing.T) {
	boom := errors.New("boom")
	line := strings.Repeat("y", 400)
	src := func(yield func(extract.Fragment, error) bool) {
		for i := 0; i < 3; i++ {
			if !yield(extract.Fragment{Text: line, Row: true}, nil) {
				return
			}
		}
		yield(extract.Fragment{}, boom)
	}
	var texts []string
	var gotErr error
	for c, err := range Assemble(src, Options{ChunkSize: 512}) {
		if err != nil {
			gotErr = err
			break
		}
		texts = append(texts, c.Text)
	}
	if !errors.Is(gotErr, boom) {
		t.Fatalf("err = %v, want boom", gotErr)
	}
	if len(texts) != 3 {
		t.Errorf("got %d chunks before the error, want 3", len(texts))
	}
}

func TestAssemble_consumerStopsEarly(t *testing.T) {
	line := strings.Repeat("z", 300)
	src := &countingSource{lines: []string{line, line, line, line, line, line}}
	for range Assemble(src.seq(), Options{ChunkSize: 512}) {
		break
	}
	if !src.released {
		t.Error("source not released when consumer stopped")
	}
	if src.pulled != 2 {
		t.Errorf("pulled %d, want 2 (one flush = one suspension)", src.pulled)
	}
}

func TestSlices(t *testing.T) {
	text := strings.Repeat("0123456789", 130)
	chunks := collectChunks(t, Slices(text, Options{ChunkSize: 512}))
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0].Text) != 512 || len(chunks[1].Text) != 512 || len(chunks[2].Text) != 276 {
		t.Errorf("sizes %d %d %d", len(chunks[0].Text), len(chunks[1].Text), len(chunks[2].Text))
	}
	if join(chunks) != text {
		t.Error("slices do not concatenate back to the input")
	}
}

func TestSlices_budget(t *testing.T) {
	text := strings.Repeat("é", 3000)
	chunks := collectChunks(t, Slices(text, Options{ChunkSize: 600, MaxOutputChars: 1000}))
	if n := contentLen(chunks); n != 1000 {
		t.Errorf("content chars = %d, want 1000", n)
	}
	if !chunks[len(chunks)-1].Notice {
		t.Error("missing truncation notice")
	}
}

type trackingCloser struct{ closed bool }

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestText_readsIncrementally(t *testing.T) {
	closer := &trackingCloser{}
	text := strings.Repeat("abcdefghij", 120)
	open := func() (io.Reader, io.Closer, error) {
		return strings.NewReader(text), closer, nil
	}
	chunks := collectChunks(t, Text(open, Options{ChunkSize: 512}))
	if len(chunks) != 3 || join(chunks) != text {
		t.Errorf("got %d chunks", len(chunks))
	}
	if !closer.closed {
		t.Error("source not closed")
	}
}

func TestText_truncatesAtBudget(t *testing.T) {
	closer := &trackingCloser{}
	text := strings.Repeat("x", 100001)
	open := func() (io.Reader, io.Closer, error) {
		return strings.NewReader(text), closer, nil
	}
	chunks := collectChunks(t, Text(open, Options{ChunkSize: 4096, MaxOutputChars: 100000}))
	if n := contentLen(chunks); n != 100000 {
		t.Errorf("content chars = %d, want 100000", n)
	}
	if last := chunks[len(chunks)-1]; last.Text != bound.StreamTruncatedNotice(100000) {
		t.Errorf("last chunk = %q", last.Text)
	}
	if !closer.closed {
		t.Error("source not closed after truncation")
	}
}

func TestText_openError(t *testing.T) {
	boom := errors.New("open failed")
	open := func() (io.Reader, io.Closer, error) { return nil, nil, boom }
	_, err := Collect(Text(open, Options{}))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestBulk(t *testing.T) {
	calls := 0
	load := func() (string, error) {
		calls++
		return strings.Repeat("p", 1500), nil
	}
	seq := Bulk(load, Options{ChunkSize: 512, MaxOutputChars: 1200})
	if calls != 0 {
		t.Fatal("load ran before the first pull")
	}
	chunks := collectChunks(t, seq)
	if calls != 1 {
		t.Errorf("load ran %d times", calls)
	}
	if n := contentLen(chunks); n != 1200 {
		t.Errorf("content chars = %d, want 1200", n)
	}
	if !chunks[len(chunks)-1].Notice {
		t.Error("missing truncation notice")
	}

	boom := errors.New("parse failed")
	if _, err := Collect(Bulk(func() (string, error) { return "", boom }, Options{})); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
