// Package config provides configuration loading and structs for the document reader.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPaths are searched in order by LoadDefault.
var DefaultPaths = []string{"config.yaml", "/usr/local/etc/docreader/config.yaml"}

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Limits       LimitsConfig       `yaml:"limits"`
	Convert      ConvertConfig      `yaml:"convert"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LimitsConfig bounds every tool call. Pointer fields distinguish "unset" from an
// explicit 0, which means unlimited.
type LimitsConfig struct {
	RateLimitPerMinute int  `yaml:"rate_limit_per_minute"`
	MaxOutputChars     int  `yaml:"max_output_chars"`
	DefaultMaxRows     *int `yaml:"default_max_rows"`
	DefaultMaxPages    *int `yaml:"default_max_pages"`
	MaxFileSizeMB      int  `yaml:"max_file_size_mb"`
	DefaultChunkSize   int  `yaml:"default_chunk_size"`
}

// MaxRows returns the default row cap.
func (l LimitsConfig) MaxRows() int {
	if l.DefaultMaxRows == nil {
		return DefaultMaxRows
	}
	return *l.DefaultMaxRows
}

// MaxPages returns the default page cap.
func (l LimitsConfig) MaxPages() int {
	if l.DefaultMaxPages == nil {
		return DefaultMaxPages
	}
	return *l.DefaultMaxPages
}

// MaxFileSize returns the file size limit in bytes.
func (l LimitsConfig) MaxFileSize() int64 {
	return int64(l.MaxFileSizeMB) * 1024 * 1024
}

// ConvertConfig holds Markdown conversion settings.
type ConvertConfig struct {
	PreviewChars int `yaml:"preview_chars"`
	// OutputDir is used when a request names no output directory; empty keeps the
	// source file's directory.
	OutputDir        string `yaml:"output_dir"`
	ExtractPDFImages *bool  `yaml:"extract_pdf_images"`
}

// PDFImages reports whether PDF images are extracted; defaults to true when unset.
func (c ConvertConfig) PDFImages() bool {
	if c.ExtractPDFImages != nil {
		return *c.ExtractPDFImages
	}
	return true
}

// CapabilitiesConfig switches off optional format providers ("pdf", "spreadsheet",
// "docx", "markdown").
type CapabilitiesConfig struct {
	Disabled []string `yaml:"disabled"`
}

// Has reports whether the named capability is enabled.
func (c CapabilitiesConfig) Has(name string) bool {
	for _, d := range c.Disabled {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return false
		}
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and then
// environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)
	if cfg.Convert.OutputDir != "" {
		cfg.Convert.OutputDir = expandPath(cfg.Convert.OutputDir, filepath.Dir(path))
	}
	return &cfg, nil
}

// LoadDefault loads the first existing file of DefaultPaths. Without any file the
// defaults plus environment overrides are returned. The path used is returned
// alongside ("" when none).
func LoadDefault() (*Config, string, error) {
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to stat config %s: %w", p, err)
		}
		cfg, err := Load(p)
		return cfg, p, err
	}
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg, os.Getenv)
	return cfg, "", nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Environment variables overriding file settings.
const (
	EnvRateLimitPerMinute = "DOC_READER_RATE_LIMIT_PER_MINUTE"
	EnvMaxOutputChars     = "DOC_READER_MAX_OUTPUT_CHARS"
	EnvDefaultMaxRows     = "DOC_READER_DEFAULT_MAX_ROWS"
	EnvDefaultMaxPages    = "DOC_READER_DEFAULT_MAX_PAGES"
	EnvDebug              = "DOC_READER_DEBUG"
)

// ApplyEnv overrides cfg from getenv. Unparsable values are ignored and floors are
// enforced afterwards: at least 1 call per minute, at least MinOutputChars
// characters, caps no lower than 0.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if n, ok := envInt(getenv, EnvRateLimitPerMinute); ok {
		cfg.Limits.RateLimitPerMinute = n
	}
	if n, ok := envInt(getenv, EnvMaxOutputChars); ok {
		cfg.Limits.MaxOutputChars = n
	}
	if n, ok := envInt(getenv, EnvDefaultMaxRows); ok {
		cfg.Limits.DefaultMaxRows = &n
	}
	if n, ok := envInt(getenv, EnvDefaultMaxPages); ok {
		cfg.Limits.DefaultMaxPages = &n
	}
	if v := strings.TrimSpace(getenv(EnvDebug)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	applyFloors(cfg)
}

func envInt(getenv func(string) string, key string) (int, bool) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory and other relative paths are kept.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
