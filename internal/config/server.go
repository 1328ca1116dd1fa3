package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. TRACKREVIEW_ADDR.
const EnvPrefix = "TRACKREVIEW_"

// ServerConfig configures the HTTP viewer and the dataset sources it reads.
type ServerConfig struct {
	// Addr is the HTTP listen address, e.g. ":8090".
	Addr string `koanf:"addr"`

	// DataDir holds one sub-directory of CSV tables per dataset.
	DataDir string `koanf:"data_dir"`

	// DBPath is the optional SQLite dataset store.
	DBPath string `koanf:"db_path"`

	// Settings is the optional plot settings file.
	Settings string `koanf:"settings"`

	// Focus names the dataset selected on startup.
	Focus string `koanf:"focus"`

	// Backend selects the renderer for /plot pages: echarts or png.
	Backend string `koanf:"backend"`

	// PageCacheMB bounds the rendered page cache.
	PageCacheMB int `koanf:"page_cache_mb"`

	// PageTTL is how long a rendered page stays cached.
	PageTTL time.Duration `koanf:"page_ttl"`

	// QueryCacheSize bounds the number of cached JSON plot configs.
	QueryCacheSize int `koanf:"query_cache_size"`

	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// NewServerConfig returns a ServerConfig with defaults.
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:           ":8090",
		DataDir:        "data",
		Backend:        "echarts",
		PageCacheMB:    64,
		PageTTL:        10 * time.Minute,
		QueryCacheSize: 256,
		CORSOrigins:    "*",
	}
}

// LoadServerConfig builds a ServerConfig by layering defaults, an optional
// YAML file and TRACKREVIEW_* environment variables, in that order. An
// empty path falls back to $TRACKREVIEW_CONFIG.
func LoadServerConfig(path string) (*ServerConfig, error) {
	base := NewServerConfig()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load server config %s: %w", path, err)
		}
	}

	// TRACKREVIEW_PAGE_CACHE_MB -> page_cache_mb
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	switch c.Backend {
	case "echarts", "png":
	default:
		return fmt.Errorf("backend must be echarts or png, got %q", c.Backend)
	}
	if c.PageCacheMB < 0 {
		return fmt.Errorf("page_cache_mb must be non-negative, got %d", c.PageCacheMB)
	}
	if c.QueryCacheSize <= 0 {
		return fmt.Errorf("query_cache_size must be positive, got %d", c.QueryCacheSize)
	}
	if c.PageTTL <= 0 {
		return fmt.Errorf("page_ttl must be positive, got %s", c.PageTTL)
	}
	return nil
}

// Origins splits CORSOrigins into trimmed, non-empty entries.
func (c *ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
