package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/hyperjump/docreader/internal/errs"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textEncoding is one candidate in the decode fallback list. A nil enc means UTF-8.
type textEncoding struct {
	name string
	enc  encoding.Encoding
}

var (
	utf8Encoding    = textEncoding{name: "utf-8"}
	latin1Encoding  = textEncoding{name: "latin-1", enc: charmap.ISO8859_1}
	cp1252Encoding  = textEncoding{name: "cp1252", enc: charmap.Windows1252}
	iso8859Encoding = textEncoding{name: "iso-8859-1", enc: charmap.ISO8859_1}
)

// Candidate lists, tried in order.
var (
	textEncodings       = []textEncoding{utf8Encoding, latin1Encoding, cp1252Encoding, iso8859Encoding}
	structuredEncodings = []textEncoding{utf8Encoding, latin1Encoding, cp1252Encoding}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode converts data to a string using the first candidate that decodes it.
func (e textEncoding) decode(data []byte) (string, error) {
	if e.enc == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid %s byte sequence", e.name)
		}
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	out, err := e.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// validator returns a transformer that fails on input this encoding cannot decode.
func (e textEncoding) validator() transform.Transformer {
	if e.enc == nil {
		return encoding.UTF8Validator
	}
	return e.enc.NewDecoder()
}

// reader wraps r so it yields decoded UTF-8 text. Invalid UTF-8 met after the
// detection prefix surfaces from Read as errs.ErrDecode.
func (e textEncoding) reader(r io.Reader, kind string) io.Reader {
	if e.enc == nil {
		t := transform.Chain(encoding.UTF8Validator, unicode.UTF8BOM.NewDecoder())
		return &decodeErrReader{r: transform.NewReader(r, t), kind: kind}
	}
	return transform.NewReader(r, e.enc.NewDecoder())
}

type decodeErrReader struct {
	r    io.Reader
	kind string
}

func (d *decodeErrReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if errors.Is(err, encoding.ErrInvalidUTF8) {
		err = fmt.Errorf("%w: invalid utf-8 byte sequence in %s file past the first %d KiB", errs.ErrDecode, d.kind, detectPrefix>>10)
	}
	return n, err
}

// readDecoded reads the whole file and decodes it with the first working candidate.
// kind names the file type in error messages ("text", "CSV", ...).
func readDecoded(path, kind string, candidates []textEncoding) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s file: %v", errs.ErrExtraction, kind, err)
	}
	for _, c := range candidates {
		text, err := c.decode(data)
		if err == nil {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: failed to decode %s file with any supported encoding", errs.ErrDecode, kind)
}

// detectPrefix is how much of a file detectEncoding inspects per candidate.
const detectPrefix = 64 << 10

// detectEncoding checks the first detectPrefix bytes against each candidate and
// returns the first one that decodes them, so streaming can start without reading
// the whole file.
func detectEncoding(path, kind string, candidates []textEncoding) (textEncoding, error) {
	for i, c := range candidates {
		err := scanFile(path, c)
		if err == nil {
			return c, nil
		}
		var readErr *fileReadError
		if errors.As(err, &readErr) && i == len(candidates)-1 {
			return textEncoding{}, fmt.Errorf("%w: failed to read %s file: %v", errs.ErrExtraction, kind, readErr.err)
		}
	}
	return textEncoding{}, fmt.Errorf("%w: failed to decode %s file with any supported encoding", errs.ErrDecode, kind)
}

type fileReadError struct {
	err error
}

func (e *fileReadError) Error() string { return e.err.Error() }

func scanFile(path string, c textEncoding) error {
	f, err := os.Open(path)
	if err != nil {
		return &fileReadError{err: err}
	}
	defer f.Close()
	buf := make([]byte, detectPrefix)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return &fileReadError{err: err}
	}
	data := buf[:n]
	if n == detectPrefix && c.enc == nil {
		data = trimPartialRune(data)
	}
	_, _, err = transform.Bytes(c.validator(), data)
	return err
}

// trimPartialRune drops a multi-byte character cut off at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			return b
		}
	}
	return b
}

// openDecoded detects the encoding of path and opens it as a decoded text stream.
func openDecoded(path, kind string, candidates []textEncoding) (io.Reader, io.Closer, error) {
	c, err := detectEncoding(path, kind, candidates)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read %s file: %v", errs.ErrExtraction, kind, err)
	}
	return c.reader(f, kind), f, nil
}

// ReadText reads a plain text file with the text fallback chain.
func ReadText(path string) (string, error) {
	return readDecoded(path, "text", textEncodings)
}
