package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/docreader/internal/bound"
	"github.com/hyperjump/docreader/internal/config"
	"github.com/hyperjump/docreader/internal/service"
)

// connect starts the MCP server on in-memory transports and returns a client session.
func connect(t *testing.T, mutate func(*config.Config), opts *mcp.ClientOptions) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	svc := service.New(testConfig(mutate), zap.NewNop())
	server := NewMCPServer(svc, "test", zap.NewNop())

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, opts)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func texts(t *testing.T, res *mcp.CallToolResult) []string {
	t.Helper()
	var out []string
	for _, c := range res.Content {
		tc, ok := c.(*mcp.TextContent)
		if !ok {
			t.Fatalf("unexpected content %T", c)
		}
		out = append(out, tc.Text)
	}
	return out
}

func TestMCP_listTools(t *testing.T) {
	cs := connect(t, nil, nil)
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{service.ToolExtract, service.ToolStream, service.ToolConvert} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestMCP_extract(t *testing.T) {
	cs := connect(t, nil, nil)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      service.ToolExtract,
		Arguments: map[string]any{"path": rowsCSV(t, 10), "max_rows": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %v", texts(t, res))
	}
	got := texts(t, res)
	if len(got) != 1 || got[0] != "r1\tv1\nr2\tv2\nr3\tv3"+bound.RowLimitNotice(3) {
		t.Errorf("content = %q", got)
	}
}

func TestMCP_extractError(t *testing.T) {
	cs := connect(t, nil, nil)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      service.ToolExtract,
		Arguments: map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected a tool error")
	}
	if got := strings.Join(texts(t, res), ""); !strings.Contains(got, "[not_found]") {
		t.Errorf("error text = %q", got)
	}
}

func TestMCP_streamWithProgress(t *testing.T) {
	var (
		mu       sync.Mutex
		progress []string
	)
	opts := &mcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
			mu.Lock()
			progress = append(progress, req.Params.Message)
			mu.Unlock()
		},
	}
	cs := connect(t, nil, opts)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Meta:      mcp.Meta{"progressToken": "tok-1"},
		Name:      service.ToolStream,
		Arguments: map[string]any{"path": rowsCSV(t, 200), "max_rows": 150, "chunk_size": 512},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %v", texts(t, res))
	}
	chunks := texts(t, res)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[len(chunks)-1] != bound.RowLimitNotice(150) {
		t.Errorf("last chunk = %q", chunks[len(chunks)-1])
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(progress)
		mu.Unlock()
		if n == len(chunks) || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(progress) != len(chunks) {
		t.Fatalf("got %d progress notifications, want %d", len(progress), len(chunks))
	}
	if progress[0] != chunks[0] {
		t.Errorf("first progress message differs from first chunk")
	}
}

func TestMCP_streamLateErrorKeepsChunks(t *testing.T) {
	cs := connect(t, func(c *config.Config) { c.Capabilities.Disabled = []string{"pdf"} }, nil)
	path := writeFile(t, t.TempDir(), "a.pdf", "%PDF-1.4")
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      service.ToolStream,
		Arguments: map[string]any{"path": path},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected IsError")
	}
	got := texts(t, res)
	if !strings.HasPrefix(got[len(got)-1], "[dependency_missing]") {
		t.Errorf("last item = %q", got[len(got)-1])
	}
}

func TestMCP_convertStructured(t *testing.T) {
	cs := connect(t, nil, nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.html", "<p>hello</p>")
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      service.ToolConvert,
		Arguments: map[string]any{"path": path},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %v", texts(t, res))
	}
	data, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		MarkdownPath string  `json:"markdown_path"`
		ImagesDir    *string `json:"images_dir"`
		Status       string  `json:"status"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.MarkdownPath != filepath.Join(dir, "doc.md") || out.ImagesDir != nil || out.Status != "success" {
		t.Errorf("structured content = %s", data)
	}
}
