package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine drivers.
const (
	EngineRedis = "redis"
	EngineBleve = "bleve"
)

// Config holds the postdex configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Content  ContentConfig  `yaml:"content"`
	Engine   EngineConfig   `yaml:"engine"`
	Index    IndexConfig    `yaml:"index"`
	Reindex  ReindexConfig  `yaml:"reindex"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds ops API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds ops HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings for the redis engine.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ContentConfig points at the SQLite content database.
type ContentConfig struct {
	DSN string `yaml:"dsn"`
}

// EngineConfig selects and configures the indexing engine.
type EngineConfig struct {
	Driver    string `yaml:"driver"` // redis, bleve (default: redis)
	BlevePath string `yaml:"bleve_path"`
	KeyPrefix string `yaml:"key_prefix"`
}

// IndexConfig holds schema and document builder settings.
type IndexConfig struct {
	Name            string   `yaml:"name"`
	Lang            string   `yaml:"lang"`
	Shards          int      `yaml:"shards"`
	Replicas        int      `yaml:"replicas"`
	StatusBlacklist []string `yaml:"status_blacklist"`
	MetaAllow       []string `yaml:"meta_allow"`
	MetaDeny        []string `yaml:"meta_deny"`
	IndexMedia      *bool    `yaml:"index_media"`
}

// ReindexConfig holds bulk run settings.
type ReindexConfig struct {
	Workers         int     `yaml:"workers"`
	BatchSize       int     `yaml:"batch_size"`
	CursorPath      string  `yaml:"cursor_path"`
	DisabledTenants []int64 `yaml:"disabled_tenants"`
	RateLimit       float64 `yaml:"rate_limit"` // entities per second, 0 = unlimited
	RateBurst       int     `yaml:"rate_burst"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Content.DSN == "" {
		c.Content.DSN = "content.db"
	}
	if c.Engine.Driver == "" {
		c.Engine.Driver = EngineRedis
	}
	if c.Engine.KeyPrefix == "" {
		c.Engine.KeyPrefix = "postdex:"
	}
	if c.Index.IndexMedia == nil {
		on := true
		c.Index.IndexMedia = &on
	}
	if c.Reindex.Workers <= 0 {
		c.Reindex.Workers = 4
	}
	if c.Reindex.BatchSize <= 0 {
		c.Reindex.BatchSize = 500
	}
	if c.Reindex.RateLimit > 0 && c.Reindex.RateBurst <= 0 {
		c.Reindex.RateBurst = c.Reindex.Workers
	}
	if c.Reindex.CursorPath == "" {
		c.Reindex.CursorPath = "cursors"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Engine.Driver {
	case EngineRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis engine")
		}
	case EngineBleve:
	default:
		return fmt.Errorf("engine.driver must be %q or %q, got %q", EngineRedis, EngineBleve, c.Engine.Driver)
	}
	if c.Index.Shards < 0 || c.Index.Replicas < 0 {
		return fmt.Errorf("index.shards and index.replicas must not be negative")
	}
	if c.Reindex.RateLimit < 0 || c.Reindex.RateBurst < 0 {
		return fmt.Errorf("reindex.rate_limit and reindex.rate_burst must not be negative")
	}
	for _, id := range c.Reindex.DisabledTenants {
		if id <= 0 {
			return fmt.Errorf("reindex.disabled_tenants must hold positive ids, got %d", id)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
