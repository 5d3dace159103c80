package config

// Defaults for unset values.
const (
	DefaultHost               = "localhost"
	DefaultPort               = 8080
	DefaultRateLimitPerMinute = 60
	DefaultMaxOutputChars     = 100000
	MinOutputChars            = 1000
	DefaultMaxRows            = 500
	DefaultMaxPages           = 50
	DefaultMaxFileSizeMB      = 100
	DefaultChunkSize          = 4096
	DefaultPreviewChars       = 500
)

// ApplyDefaults sets default values for any zero values in cfg and enforces floors.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Limits.RateLimitPerMinute == 0 {
		cfg.Limits.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if cfg.Limits.MaxOutputChars == 0 {
		cfg.Limits.MaxOutputChars = DefaultMaxOutputChars
	}
	if cfg.Limits.DefaultMaxRows == nil {
		n := DefaultMaxRows
		cfg.Limits.DefaultMaxRows = &n
	}
	if cfg.Limits.DefaultMaxPages == nil {
		n := DefaultMaxPages
		cfg.Limits.DefaultMaxPages = &n
	}
	if cfg.Limits.MaxFileSizeMB <= 0 {
		cfg.Limits.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if cfg.Limits.DefaultChunkSize <= 0 {
		cfg.Limits.DefaultChunkSize = DefaultChunkSize
	}
	if cfg.Convert.PreviewChars <= 0 {
		cfg.Convert.PreviewChars = DefaultPreviewChars
	}
	applyFloors(cfg)
}

func applyFloors(cfg *Config) {
	if cfg.Limits.RateLimitPerMinute < 1 {
		cfg.Limits.RateLimitPerMinute = 1
	}
	if cfg.Limits.MaxOutputChars < MinOutputChars {
		cfg.Limits.MaxOutputChars = MinOutputChars
	}
	if cfg.Limits.DefaultMaxRows != nil && *cfg.Limits.DefaultMaxRows < 0 {
		n := 0
		cfg.Limits.DefaultMaxRows = &n
	}
	if cfg.Limits.DefaultMaxPages != nil && *cfg.Limits.DefaultMaxPages < 0 {
		n := 0
		cfg.Limits.DefaultMaxPages = &n
	}
}
