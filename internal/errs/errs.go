// Package errs defines the error kinds surfaced by the document reader tools.
package errs

import "errors"

// Error kinds. Callers wrap these with context via fmt.Errorf("%w: ...").
var (
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("file not found")
	ErrTooLarge          = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrDecode            = errors.New("decode failure")
	ErrMalformedInput    = errors.New("malformed input")
	ErrExtraction        = errors.New("extraction failure")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrRateLimited, "rate_limited"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrNotFound, "not_found"},
	{ErrTooLarge, "too_large"},
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrDependencyMissing, "dependency_missing"},
	{ErrDecode, "decode_failure"},
	{ErrMalformedInput, "malformed_input"},
	{ErrExtraction, "extraction_failure"},
}

// Code returns a stable snake_case code for err, or "internal" when err carries no known kind.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
