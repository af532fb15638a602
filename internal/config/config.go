// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// EnvDevelopment is the only environment in which the image fallback runs.
const EnvDevelopment = "development"

// DefaultOrigin is the remote host missing images are fetched from.
const DefaultOrigin = "https://collection.cards"

// defaultRoutes are the glob patterns the fallback interceptor listens on.
var defaultRoutes = []string{"/media/*", "/patterns/*"}

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"configs/config.toml",
	"media-fallback-proxy.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Env      string `kong:"help='Runtime environment, e.g. development (overrides config).',env='APP_ENV'"`
	WorkDir  string `kong:"help='Project directory containing the public asset root (overrides config).',env='WORK_DIR'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	App      AppConfig      `toml:"app"`
	Assets   AssetsConfig   `toml:"assets"`
	Fallback FallbackConfig `toml:"fallback"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `toml:"host"`
	Port      int             `toml:"port"` // 0 means "use default" (3000); TOML cannot distinguish 0 from unset
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// AppConfig holds the runtime environment designation.
type AppConfig struct {
	Environment string `toml:"environment"`
}

// AssetsConfig locates the local static asset tree.
type AssetsConfig struct {
	WorkDir   string `toml:"work_dir"`
	PublicDir string `toml:"public_dir"`
}

// FallbackConfig holds settings for the remote image origin.
type FallbackConfig struct {
	Origin          string   `toml:"origin"`
	Routes          []string `toml:"routes"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	IdleConnections int      `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// An explicit path (via --config or CONFIG_PATH) must exist. Otherwise
// configs/config.toml then media-fallback-proxy.toml are tried, and when
// neither exists the built-in defaults are used.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Env != "" {
		c.App.Environment = cli.Env
	}
	if cli.WorkDir != "" {
		c.Assets.WorkDir = cli.WorkDir
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Fallback origin: optional, but must be a bare HTTPS origin when set.
	if c.Fallback.Origin != "" {
		u, err := url.Parse(c.Fallback.Origin)
		if err != nil {
			return fmt.Errorf("fallback.origin is not a valid URL: %w", err)
		}
		if u.Scheme != "https" {
			return fmt.Errorf("fallback.origin must use HTTPS; got %q", c.Fallback.Origin)
		}
		if u.Host == "" {
			return fmt.Errorf("fallback.origin must include a host; got %q", c.Fallback.Origin)
		}
		if strings.TrimSuffix(u.Path, "/") != "" || u.RawQuery != "" {
			return fmt.Errorf("fallback.origin must not carry a path or query; got %q", c.Fallback.Origin)
		}
	}

	for _, r := range c.Fallback.Routes {
		if r == "" || r[0] != '/' {
			return fmt.Errorf("fallback.routes entries must start with '/'; got %q", r)
		}
	}

	// Public dir is joined under work_dir, so it must stay relative.
	if p := c.Assets.PublicDir; p != "" && (strings.HasPrefix(p, "/") || strings.Contains(p, "..")) {
		return fmt.Errorf("assets.public_dir must be a relative path inside work_dir; got %q", p)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Fallback.TimeoutSeconds < 0 {
		return fmt.Errorf("fallback.timeout_seconds must be non-negative; got %d", c.Fallback.TimeoutSeconds)
	}
	if c.Fallback.IdleConnections < 0 {
		return fmt.Errorf("fallback.idle_connections must be non-negative; got %d", c.Fallback.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/healthz", "/dev/status", "/media", "/patterns"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// The environment defaults to "production" so the fallback stays off unless
// development is chosen explicitly.
func (c *Config) setDefaults() error {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.App.Environment == "" {
		c.App.Environment = "production"
	}
	if c.Assets.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		c.Assets.WorkDir = wd
	}
	if c.Assets.PublicDir == "" {
		c.Assets.PublicDir = "public"
	}
	if c.Fallback.Origin == "" {
		c.Fallback.Origin = DefaultOrigin
	}
	c.Fallback.Origin = strings.TrimSuffix(c.Fallback.Origin, "/")
	if len(c.Fallback.Routes) == 0 {
		c.Fallback.Routes = append([]string(nil), defaultRoutes...)
	}
	if c.Fallback.TimeoutSeconds == 0 {
		c.Fallback.TimeoutSeconds = 120
	}
	if c.Fallback.IdleConnections == 0 {
		c.Fallback.IdleConnections = 16
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	return nil
}

// IsDevelopment reports whether the configured environment is development.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
