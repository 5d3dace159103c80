package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/docreader/internal/errs"
)

// jsonText parses the file as JSON and pretty-prints it with two-space indentation.
// Keys keep their source order, numbers keep their spelling, and escaped non-ASCII
// characters are written out literally.
func jsonText(path string) (string, error) {
	text, err := readDecoded(path, "JSON", structuredEncodings)
	if err != nil {
		return "", err
	}
	out, err := reindentJSON(text)
	if err != nil {
		return "", fmt.Errorf("%w: invalid JSON file: %v", errs.ErrMalformedInput, err)
	}
	return out, nil
}

// PrettyJSON returns the file's JSON document indented with two spaces.
func PrettyJSON(path string) (string, error) {
	return jsonText(path)
}

func reindentJSON(text string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var b bytes.Buffer
	if err := writeJSONValue(&b, dec, 0); err != nil {
		return "", err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return "", err
		}
		return "", errors.New("unexpected data after top-level value")
	}
	return b.String(), nil
}

func writeJSONValue(b *bytes.Buffer, dec *json.Decoder, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		if t != '{' && t != '[' {
			return fmt.Errorf("unexpected %q", rune(t))
		}
		b.WriteByte(byte(t))
		n := 0
		for dec.More() {
			if n > 0 {
				b.WriteByte(',')
			}
			jsonNewline(b, depth+1)
			if t == '{' {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				s, ok := key.(string)
				if !ok {
					return fmt.Errorf("object key %v is not a string", key)
				}
				if err := writeJSONString(b, s); err != nil {
					return err
				}
				b.WriteString(": ")
			}
			if err := writeJSONValue(b, dec, depth+1); err != nil {
				return err
			}
			n++
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		if n > 0 {
			jsonNewline(b, depth)
		}
		if t == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	case string:
		return writeJSONString(b, t)
	case json.Number:
		b.WriteString(t.String())
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case nil:
		b.WriteString("null")
	}
	return nil
}

func jsonNewline(b *bytes.Buffer, depth int) {
	b.WriteByte('\n')
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

// writeJSONString quotes s leaving non-ASCII and HTML characters unescaped.
func writeJSONString(b *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	b.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
