package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/docreader/internal/errs"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/service"
)

// MCPServerName is the implementation name announced to MCP clients.
const MCPServerName = "document-reader-mcp"

const (
	extractDescription = "Extract text from a local document (PDF, XLSX/XLSM/XLTX/XLTM, CSV, TXT/LOG, JSON, Markdown, DOCX). " +
		"Output is limited by max_pages (PDF), max_rows (CSV/XLSX) and a global character limit; " +
		"a truncation note states the original size when text is cut."
	streamDescription = "Extract text from a local document as a sequence of chunks of about chunk_size characters. " +
		"Each chunk is also sent as a progress notification when a progress token is supplied. " +
		"The same page, row and character limits apply."
	convertDescription = "Convert a document to Markdown and save it with its images. " +
		"The whole document is converted and written to disk; only the returned preview is shortened."
)

// NewMCPServer registers the document tools on a new MCP server.
func NewMCPServer(svc *service.Service, version string, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(&mcp.Implementation{Name: MCPServerName, Version: version}, nil)
	t := &mcpTools{svc: svc, logger: logger}

	mcp.AddTool(server, &mcp.Tool{Name: service.ToolExtract, Description: extractDescription}, t.extract)
	mcp.AddTool(server, &mcp.Tool{Name: service.ToolStream, Description: streamDescription}, t.stream)
	mcp.AddTool(server, &mcp.Tool{Name: service.ToolConvert, Description: convertDescription}, t.convert)
	return server
}

type mcpTools struct {
	svc    *service.Service
	logger *zap.Logger
}

// toolError prefixes err with its kind so clients can branch on it.
func toolError(err error) error {
	return fmt.Errorf("[%s] %w", errs.Code(err), err)
}

func textResult(texts ...string) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(texts))
	for _, t := range texts {
		content = append(content, &mcp.TextContent{Text: t})
	}
	return &mcp.CallToolResult{Content: content}
}

func (t *mcpTools) extract(ctx context.Context, _ *mcp.CallToolRequest, in models.ExtractRequest) (*mcp.CallToolResult, any, error) {
	text, err := t.svc.ExtractText(ctx, in)
	if err != nil {
		return nil, nil, toolError(err)
	}
	return textResult(text), nil, nil
}

// stream returns every chunk as its own content item. Chunks delivered before a
// failure are kept and the error is appended as the last item.
func (t *mcpTools) stream(ctx context.Context, req *mcp.CallToolRequest, in models.StreamRequest) (*mcp.CallToolResult, any, error) {
	seq, err := t.svc.StreamText(ctx, in)
	if err != nil {
		return nil, nil, toolError(err)
	}
	var token any
	if req != nil && req.Params != nil {
		token = req.Params.GetProgressToken()
	}

	res := &mcp.CallToolResult{}
	for chunk, err := range seq {
		if err != nil {
			res.IsError = true
			res.Content = append(res.Content, &mcp.TextContent{Text: toolError(err).Error()})
			break
		}
		res.Content = append(res.Content, &mcp.TextContent{Text: chunk.Text})
		if token == nil || req.Session == nil {
			continue
		}
		if err := req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(len(res.Content)),
			Message:       chunk.Text,
		}); err != nil {
			t.logger.Debug("progress notification failed", zap.Error(err))
		}
	}
	if len(res.Content) == 0 {
		res.Content = []mcp.Content{&mcp.TextContent{Text: ""}}
	}
	return res, nil, nil
}

func (t *mcpTools) convert(ctx context.Context, _ *mcp.CallToolRequest, in models.ConvertRequest) (*mcp.CallToolResult, models.ConversionResult, error) {
	res, err := t.svc.ConvertToMarkdown(ctx, in)
	if err != nil {
		return nil, models.ConversionResult{}, toolError(err)
	}
	return nil, *res, nil
}
