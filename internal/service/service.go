// Package service implements the three document tools on top of the rate limiter,
// output bound policy, extractors and Markdown converter.
package service

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docreader/internal/bound"
	"github.com/hyperjump/docreader/internal/config"
	"github.com/hyperjump/docreader/internal/convert"
	"github.com/hyperjump/docreader/internal/errs"
	"github.com/hyperjump/docreader/internal/extract"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/ratelimit"
	"github.com/hyperjump/docreader/internal/stream"
)

// Tool names as exposed to callers.
const (
	ToolExtract = "extract_text_from_file"
	ToolStream  = "extract_text_from_file_stream"
	ToolConvert = "convert_to_markdown"
)

// Service executes tool calls. It is safe for concurrent use.
type Service struct {
	limiter   *ratelimit.Limiter
	policy    bound.Policy
	defaults  bound.Caps
	chunkSize int
	maxSize   int64
	outputDir string
	extractor *extract.Extractor
	pipeline  *convert.Pipeline
	logger    *zap.Logger
}

// Option overrides a dependency built from the configuration.
type Option func(*Service)

// WithLimiter replaces the rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithExtractor replaces the extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithPipeline replaces the Markdown conversion pipeline.
func WithPipeline(p *convert.Pipeline) Option {
	return func(s *Service) { s.pipeline = p }
}

// New builds a service from cfg. Capabilities listed in cfg.Capabilities.Disabled
// are left out, so their formats fail with errs.ErrDependencyMissing.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		limiter: ratelimit.New(cfg.Limits.RateLimitPerMinute),
		policy:  bound.Policy{MaxOutputChars: cfg.Limits.MaxOutputChars},
		defaults: bound.Caps{
			MaxPages:       cfg.Limits.MaxPages(),
			MaxRows:        cfg.Limits.MaxRows(),
			MaxOutputChars: cfg.Limits.MaxOutputChars,
		},
		chunkSize: cfg.Limits.DefaultChunkSize,
		maxSize:   cfg.Limits.MaxFileSize(),
		outputDir: cfg.Convert.OutputDir,
		logger:    logger,
	}

	caps := extract.DefaultCapabilities().Without(cfg.Capabilities.Disabled...)
	s.extractor = extract.NewExtractor(caps)

	var conv convert.Converter
	if cfg.Capabilities.Has("markdown") {
		conv = convert.NewNative(caps)
	}
	pipeOpts := []convert.PipelineOption{convert.WithPreviewChars(cfg.Convert.PreviewChars)}
	if cfg.Convert.PDFImages() && cfg.Capabilities.Has("pdf") {
		pipeOpts = append(pipeOpts, convert.WithPDFImages(convert.NewPDFImageProvider()))
	}
	s.pipeline = convert.NewPipeline(conv, logger, pipeOpts...)

	for _, o := range opts {
		o(s)
	}
	return s
}

// call carries per-call logging state.
type call struct {
	logger *zap.Logger
	start  time.Time
}

func (s *Service) begin(tool, path string) *call {
	return &call{
		logger: s.logger.With(
			zap.String("call_id", uuid.NewString()),
			zap.String("tool", tool),
			zap.String("path", path),
		),
		start: time.Now(),
	}
}

func (c *call) done(err error, fields ...zap.Field) {
	fields = append(fields, zap.Duration("elapsed", time.Since(c.start)))
	if err != nil {
		c.logger.Warn("tool call failed", append(fields, zap.String("code", errs.Code(err)), zap.Error(err))...)
		return
	}
	c.logger.Info("tool call completed", fields...)
}

// admit applies the rate limit and validates req.
func (s *Service) admit(req interface{ Validate() error }) error {
	if !s.limiter.Allow() {
		return fmt.Errorf("%w; try again later or increase limits in configuration", errs.ErrRateLimited)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	return nil
}

// ExtractText returns the bounded text of the file named by req.
func (s *Service) ExtractText(ctx context.Context, req models.ExtractRequest) (text string, err error) {
	c := s.begin(ToolExtract, req.Path)
	defer func() { c.done(err, zap.Int("chars", utf8.RuneCountInString(text))) }()

	if err := s.admit(&req); err != nil {
		return "", err
	}
	f, err := extract.Validate(req.Path, s.maxSize)
	if err != nil {
		return "", err
	}
	caps := bound.Caps{
		MaxPages: bound.Resolve(req.MaxPages, s.defaults.MaxPages),
		MaxRows:  bound.Resolve(req.MaxRows, s.defaults.MaxRows),
	}
	raw, err := s.extractor.Text(ctx, f, caps)
	if err != nil {
		return "", err
	}
	return s.policy.Truncate(raw, f.Path, f.Format.Capped()), nil
}

// StreamText validates req and applies the rate limit immediately, then returns a
// lazy chunk sequence. Extraction starts on the first pull. A failure after some
// chunks ends the sequence with the error.
func (s *Service) StreamText(ctx context.Context, req models.StreamRequest) (iter.Seq2[stream.Chunk, error], error) {
	c := s.begin(ToolStream, req.Path)
	seq, err := s.openStream(ctx, &req)
	if err != nil {
		c.done(err)
		return nil, err
	}
	return func(yield func(stream.Chunk, error) bool) {
		var (
			chunks, chars int
			failed        error
		)
		defer func() { c.done(failed, zap.Int("chunks", chunks), zap.Int("chars", chars)) }()
		for chunk, err := range seq {
			if err != nil {
				failed = err
			} else {
				chunks++
				chars += utf8.RuneCountInString(chunk.Text)
			}
			if !yield(chunk, err) {
				return
			}
		}
	}, nil
}

func (s *Service) openStream(ctx context.Context, req *models.StreamRequest) (iter.Seq2[stream.Chunk, error], error) {
	if err := s.admit(req); err != nil {
		return nil, err
	}
	f, err := extract.Validate(req.Path, s.maxSize)
	if err != nil {
		return nil, err
	}
	chunkSize := s.chunkSize
	if req.ChunkSize != nil {
		chunkSize = *req.ChunkSize
	}
	opts := stream.Options{
		ChunkSize:      stream.ClampChunkSize(chunkSize),
		MaxRows:        bound.Resolve(req.MaxRows, s.defaults.MaxRows),
		MaxOutputChars: s.defaults.MaxOutputChars,
	}

	switch f.Format {
	case extract.FormatSpreadsheet, extract.FormatCSV:
		frags, err := s.extractor.Fragments(ctx, f)
		if err != nil {
			return nil, err
		}
		return stream.Assemble(frags, opts), nil
	case extract.FormatText, extract.FormatMarkdown:
		return stream.Text(func() (io.Reader, io.Closer, error) { return s.extractor.OpenText(f) }, opts), nil
	default:
		caps := bound.Caps{MaxPages: bound.Resolve(req.MaxPages, s.defaults.MaxPages)}
		return stream.Bulk(func() (string, error) { return s.extractor.Document(ctx, f, caps) }, opts), nil
	}
}

// ConvertToMarkdown converts the whole document and writes it next to its images.
// Page, row and character limits do not apply; only the returned preview is short.
func (s *Service) ConvertToMarkdown(ctx context.Context, req models.ConvertRequest) (res *models.ConversionResult, err error) {
	c := s.begin(ToolConvert, req.Path)
	defer func() {
		if res != nil {
			c.done(err, zap.String("markdown_path", res.MarkdownPath), zap.Int("image_count", res.ImageCount))
			return
		}
		c.done(err)
	}()

	if err := s.admit(&req); err != nil {
		return nil, err
	}
	src, _, err := extract.Stat(req.Path, s.maxSize)
	if err != nil {
		return nil, err
	}
	outDir := req.OutputDir
	if outDir == "" {
		outDir = s.outputDir
	}
	return s.pipeline.Run(ctx, src, convert.Options{OutputDir: outDir, OutputFilename: req.OutputFilename})
}

// RateLimit returns the configured calls per minute.
func (s *Service) RateLimit() int {
	return s.limiter.MaxCalls()
}
