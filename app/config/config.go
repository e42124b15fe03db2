package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the configuration shared by the posts service, the proxy and the CLI.
type Config struct {
	Server   Server   `yaml:"server"`
	Proxy    Proxy    `yaml:"proxy"`
	Feed     Feed     `yaml:"feed"`
	Comments Comments `yaml:"comments"`
	Posts    Posts    `yaml:"posts"`
	Sync     Sync     `yaml:"sync"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
	// InMemory ignores DBPath and keeps every document in memory.
	InMemory bool `yaml:"in_memory"`
}

type Proxy struct {
	Addr     string        `yaml:"addr"`
	Upstream string        `yaml:"upstream"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Feed struct {
	BaseURL  string        `yaml:"base_url"`
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type Comments struct {
	// RefreshProjectionOnUpdate rewrites the embedded copy after an update.
	RefreshProjectionOnUpdate bool `yaml:"refresh_projection_on_update"`
}

type Posts struct {
	OptimisticLocking bool `yaml:"optimistic_locking"`
}

type Sync struct {
	// Dedupe consults the import ledger instead of always inserting.
	Dedupe bool `yaml:"dedupe"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:   ":8080",
			DBPath: "data/badger",
		},
		Proxy: Proxy{
			Addr:     ":8081",
			Upstream: "http://localhost:8080",
			Timeout:  5 * time.Second,
		},
		Feed: Feed{
			BaseURL: "https://jsonplaceholder.typicode.com",
			Path:    "/posts",
			Timeout: 10 * time.Second,
		},
		Comments: Comments{RefreshProjectionOnUpdate: true},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// POSTKEEPER_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("POSTKEEPER_ADDR", &c.Server.Addr)
	str("POSTKEEPER_DB_PATH", &c.Server.DBPath)
	str("POSTKEEPER_PROXY_ADDR", &c.Proxy.Addr)
	str("POSTKEEPER_PROXY_UPSTREAM", &c.Proxy.Upstream)
	str("POSTKEEPER_FEED_URL", &c.Feed.BaseURL)
	str("POSTKEEPER_LOG_LEVEL", &c.Log.Level)
	str("POSTKEEPER_LOG_FORMAT", &c.Log.Format)

	for key, dst := range map[string]*bool{
		"POSTKEEPER_IN_MEMORY":          &c.Server.InMemory,
		"POSTKEEPER_REFRESH_PROJECTION": &c.Comments.RefreshProjectionOnUpdate,
		"POSTKEEPER_OPTIMISTIC_LOCKING": &c.Posts.OptimisticLocking,
		"POSTKEEPER_SYNC_DEDUPE":        &c.Sync.Dedupe,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	if err := duration("POSTKEEPER_FEED_CACHE_TTL", &c.Feed.CacheTTL); err != nil {
		return err
	}
	return nil
}

// Normalize trims values and fills zero durations.
func (c *Config) Normalize() {
	c.Feed.BaseURL = strings.TrimRight(strings.TrimSpace(c.Feed.BaseURL), "/")
	c.Proxy.Upstream = strings.TrimRight(strings.TrimSpace(c.Proxy.Upstream), "/")
	if c.Feed.Path == "" {
		c.Feed.Path = "/posts"
	}
	if !strings.HasPrefix(c.Feed.Path, "/") {
		c.Feed.Path = "/" + c.Feed.Path
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = 10 * time.Second
	}
	if c.Proxy.Timeout <= 0 {
		c.Proxy.Timeout = 5 * time.Second
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate rejects configurations the services cannot start with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !c.Server.InMemory && c.Server.DBPath == "" {
		return fmt.Errorf("server.db_path is required unless server.in_memory is set")
	}
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.CacheTTL < 0 {
		return fmt.Errorf("feed.cache_ttl must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// StorePath returns the badger directory, or "" for an in-memory store.
func (c Config) StorePath() string {
	if c.Server.InMemory {
		return ""
	}
	return c.Server.DBPath
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
}

// NewLogger builds the process logger from the log section.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
