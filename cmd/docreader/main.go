// Package main is the docreader CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/docreader/internal/cli"
	"github.com/hyperjump/docreader/internal/config"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/server"
	"github.com/hyperjump/docreader/internal/service"
	"github.com/hyperjump/docreader/pkg/utils"
)

var version = "dev"

// unset marks an integer flag the user did not pass.
const unset = -1

// loadConfig loads config from path, or from the default locations when path is empty.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		return config.LoadDefault()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "serve", "server":
		err = runServe(args)
	case "extract":
		err = runExtract(args, os.Stdout)
	case "stream":
		err = runStream(args, os.Stdout)
	case "convert":
		err = runConvert(args, os.Stdout)
	case "config":
		err = runConfig(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("docreader version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `docreader reads local documents for MCP clients.

Usage:
  docreader serve   [-config path] [-debug] [-http addr]   run the MCP server (stdio unless -http is set)
  docreader extract [flags] <file>                         print the bounded text of a document
  docreader stream  [flags] <file>                         print the text chunk by chunk
  docreader convert [flags] <file>                         convert a document to Markdown with its images
  docreader config  init [path]                            write a config file with the defaults
  docreader version

Run "docreader <command> -h" for the flags of a command.
`)
}

// argsReorder moves any flags (and their values) that appear after the file
// argument to the front so that flag.Parse() sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// optionalInt returns nil for an unset flag so the configured default applies.
func optionalInt(v int) *int {
	if v == unset {
		return nil
	}
	return &v
}

// newService loads config and builds the tool service with a logger sized for one-shot commands.
func newService(configPath string) (*service.Service, *zap.Logger, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return service.New(cfg, logger), logger, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (default: ./config.yaml, then /usr/local/etc/docreader/config.yaml)")
	debug := fs.Bool("debug", false, "enable debug logging")
	httpAddr := fs.String("http", "", "serve HTTP (REST API and MCP at /mcp) on this address instead of stdio; \"config\" uses server.host:port")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Int("rate_limit_per_minute", cfg.Limits.RateLimitPerMinute),
		zap.Int("max_output_chars", cfg.Limits.MaxOutputChars),
	)

	svc := service.New(cfg, logger)
	mcpServer := server.NewMCPServer(svc, version, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *httpAddr == "" {
		logger.Info("serving MCP over stdio")
		if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	serverCfg := cfg.Server
	if *httpAddr != "config" {
		host, port, err := splitAddr(*httpAddr, serverCfg)
		if err != nil {
			return err
		}
		serverCfg.Host, serverCfg.Port = host, port
	}
	srv := server.NewServer(svc, mcpServer, &serverCfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}

// splitAddr parses "host:port" or ":port"; an empty host keeps the configured one.
func splitAddr(addr string, def config.ServerConfig) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("invalid -http address %q; use host:port", addr)
	}
	var port int
	if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err != nil || port <= 0 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	host := addr[:i]
	if host == "" {
		host = def.Host
	}
	return host, port, nil
}

func runExtract(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	maxRows := fs.Int("max-rows", unset, "maximum rows for CSV/XLSX (0 = unlimited, default from config)")
	maxPages := fs.Int("max-pages", unset, "maximum pages for PDF (0 = unlimited, default from config)")
	serverURL := fs.String("server", "", "send the request to a running docreader HTTP server instead of reading locally")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		return errors.New("usage: docreader extract [flags] <file>")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	req := models.ExtractRequest{Path: fs.Arg(0), MaxRows: optionalInt(*maxRows), MaxPages: optionalInt(*maxPages)}

	if *serverURL != "" {
		var resp models.ExtractResponse
		if err := postJSON(*serverURL+"/api/v1/extract", req, &resp); err != nil {
			return err
		}
		return cli.WriteText(stdout, resp.Text, format)
	}

	svc, logger, err := newService(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	text, err := svc.ExtractText(context.Background(), req)
	if err != nil {
		return err
	}
	return cli.WriteText(stdout, text, format)
}

func runStream(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	chunkSize := fs.Int("chunk-size", unset, "approximate characters per chunk (minimum 512)")
	maxRows := fs.Int("max-rows", unset, "maximum rows for CSV/XLSX (0 = unlimited, default from config)")
	maxPages := fs.Int("max-pages", unset, "maximum pages for PDF (0 = unlimited, default from config)")
	output := fs.String("output", "text", "output format: text (raw chunks) or json (one object per line)")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		return errors.New("usage: docreader stream [flags] <file>")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	svc, logger, err := newService(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	seq, err := svc.StreamText(ctx, models.StreamRequest{
		Path:      fs.Arg(0),
		ChunkSize: optionalInt(*chunkSize),
		MaxRows:   optionalInt(*maxRows),
		MaxPages:  optionalInt(*maxPages),
	})
	if err != nil {
		return err
	}
	i := 0
	for chunk, err := range seq {
		if err != nil {
			return err
		}
		if err := cli.WriteChunk(stdout, models.StreamChunk{Index: i, Text: chunk.Text, Notice: chunk.Notice}, format); err != nil {
			return err
		}
		i++
	}
	if format == cli.OutputText {
		fmt.Fprintln(stdout)
	}
	return nil
}

func runConvert(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	outputDir := fs.String("out-dir", "", "directory for the Markdown file and images (default: convert.output_dir, then the source directory)")
	outputName := fs.String("name", "", "Markdown file name (default: source name with .md)")
	serverURL := fs.String("server", "", "send the request to a running docreader HTTP server instead of converting locally")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		return errors.New("usage: docreader convert [flags] <file>")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	req := models.ConvertRequest{Path: fs.Arg(0), OutputDir: *outputDir, OutputFilename: *outputName}

	if *serverURL != "" {
		var res models.ConversionResult
		if err := postJSON(*serverURL+"/api/v1/convert", req, &res); err != nil {
			return err
		}
		return cli.WriteConversion(stdout, &res, format)
	}

	svc, logger, err := newService(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	res, err := svc.ConvertToMarkdown(context.Background(), req)
	if err != nil {
		return err
	}
	return cli.WriteConversion(stdout, res, format)
}

func runConfig(args []string, stdout io.Writer) error {
	if len(args) < 1 || args[0] != "init" {
		return errors.New("usage: docreader config init [path]")
	}
	path := config.DefaultPaths[0]
	if len(args) > 1 {
		path = args[1]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

// postJSON sends body to url and decodes a 200 response into out. Error bodies
// from the server carry a code that is reported as is.
func postJSON(url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
