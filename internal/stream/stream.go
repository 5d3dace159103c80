// Package stream assembles extracted text into size-bounded chunks delivered as a
// pull-based lazy sequence. Each yielded chunk is one suspension point: nothing
// further is read from the source until the consumer asks for the next chunk.
package stream

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/docreader/internal/bound"
	"github.com/hyperjump/docreader/internal/extract"
)

const (
	// DefaultChunkSize is used when the caller does not choose a chunk size.
	DefaultChunkSize = 4096
	// MinChunkSize is the floor applied to every requested chunk size.
	MinChunkSize = 512
)

// Chunk is one element of a stream. Notice marks informational fragments
// (row-limit and truncation messages) as opposed to document content.
type Chunk struct {
	Text   string
	Notice bool
}

// Options bound one stream. Zero MaxRows or MaxOutputChars means unlimited.
type Options struct {
	ChunkSize      int
	MaxRows        int
	MaxOutputChars int
}

// ClampChunkSize raises size to MinChunkSize.
func ClampChunkSize(size int) int {
	if size < MinChunkSize {
		return MinChunkSize
	}
	return size
}

// budget tracks characters yielded against the output character cap.
type budget struct {
	limit   int
	emitted int
}

// take returns the part of text that fits in the remaining budget and reports
// whether anything had to be cut.
func (b *budget) take(text string) (string, bool) {
	if b.limit <= 0 {
		return text, false
	}
	n := utf8.RuneCountInString(text)
	if b.emitted+n <= b.limit {
		b.emitted += n
		return text, false
	}
	part := bound.Head(text, b.limit-b.emitted)
	b.emitted = b.limit
	return part, true
}

// emitter yields content chunks through the budget. Once the budget is exceeded the
// clipped remainder and a truncation notice are yielded and emit reports false.
type emitter struct {
	yield  func(Chunk, error) bool
	budget budget
}

func newEmitter(yield func(Chunk, error) bool, maxOutputChars int) *emitter {
	return &emitter{yield: yield, budget: budget{limit: maxOutputChars}}
}

func (e *emitter) emit(text string) bool {
	part, over := e.budget.take(text)
	if part != "" && !e.yield(Chunk{Text: part}, nil) {
		return false
	}
	if over {
		e.yield(Chunk{Text: bound.StreamTruncatedNotice(e.budget.limit), Notice: true}, nil)
		return false
	}
	return true
}

func (e *emitter) notice(text string) {
	e.yield(Chunk{Text: text, Notice: true}, nil)
}

// Assemble buffers fragments into newline-joined chunks of about opts.ChunkSize
// characters. A chunk is flushed when the next line would push it past the chunk
// size; it then ends with the newline separating it from that line. Blank
// fragments are dropped. Pulling stops once opts.MaxRows row fragments
// have been buffered; the remainder is flushed and a row-limit notice follows.
//
// The character budget is checked before every flush: a chunk that would exceed it
// is clipped to the remaining characters and followed by a truncation notice, and
// the sequence ends there.
func Assemble(frags iter.Seq2[extract.Fragment, error], opts Options) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		chunkSize := ClampChunkSize(opts.ChunkSize)
		out := newEmitter(yield, opts.MaxOutputChars)

		var (
			buf      []string
			bufLen   int
			rows     int
			hitLimit bool
		)
		// flush emits the buffered lines. sep is appended when more lines follow, so
		// the concatenated chunks equal the newline-joined fragments.
		flush := func(sep string) bool {
			if len(buf) == 0 {
				return true
			}
			text := strings.Join(buf, "\n") + sep
			buf = buf[:0]
			bufLen = 0
			return out.emit(text)
		}

		for frag, err := range frags {
			if err != nil {
				if flush("") {
					yield(Chunk{}, err)
				}
				return
			}
			if frag.Text == "" {
				continue
			}
			lineLen := utf8.RuneCountInString(frag.Text)
			if bufLen+lineLen+1 > chunkSize && len(buf) > 0 {
				if !flush("\n") {
					return
				}
			}
			buf = append(buf, frag.Text)
			bufLen += lineLen + 1
			if frag.Row {
				rows++
				if opts.MaxRows > 0 && rows >= opts.MaxRows {
					hitLimit = true
					break
				}
			}
		}
		if !flush("") {
			return
		}
		if hitLimit {
			out.notice(bound.RowLimitNotice(opts.MaxRows))
		}
	}
}

// Slices splits an already extracted text into consecutive slices of exactly
// opts.ChunkSize characters (the last may be shorter), subject to the character budget.
func Slices(text string, opts Options) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		chunkSize := ClampChunkSize(opts.ChunkSize)
		out := newEmitter(yield, opts.MaxOutputChars)
		for text != "" {
			head := bound.Head(text, chunkSize)
			text = text[len(head):]
			if !out.emit(head) {
				return
			}
		}
	}
}

// Bulk runs load on the first pull and streams its result through Slices. It serves
// formats that can only be extracted whole.
func Bulk(load func() (string, error), opts Options) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		text, err := load()
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		for chunk, err := range Slices(text, opts) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// OpenFunc opens a decoded text source. The closer is released when the stream ends.
type OpenFunc func() (io.Reader, io.Closer, error)

// Text reads a text source opts.ChunkSize characters at a time, subject to the
// character budget. The source is opened on the first pull and closed on every
// exit path, including a consumer that stops early.
func Text(open OpenFunc, opts Options) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		r, closer, err := open()
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		defer closer.Close()

		chunkSize := ClampChunkSize(opts.ChunkSize)
		out := newEmitter(yield, opts.MaxOutputChars)
		br := bufio.NewReader(r)
		var b strings.Builder
		for {
			b.Reset()
			var readErr error
			for n := 0; n < chunkSize; n++ {
				ch, _, err := br.ReadRune()
				if err != nil {
					readErr = err
					break
				}
				b.WriteRune(ch)
			}
			if b.Len() > 0 && !out.emit(b.String()) {
				return
			}
			if errors.Is(readErr, io.EOF) {
				return
			}
			if readErr != nil {
				yield(Chunk{}, readErr)
				return
			}
		}
	}
}

// Collect concatenates every chunk of seq. Used by the CLI and tests.
func Collect(seq iter.Seq2[Chunk, error]) (string, error) {
	var b strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}
