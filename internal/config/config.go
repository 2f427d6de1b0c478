package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. PATHFLOW_LOG_LEVEL.
const EnvPrefix = "PATHFLOW"

// Config holds application configuration.
type Config struct {
	Log          LogConfig
	Server       ServerConfig
	Metrics      MetricsConfig
	Signals      SignalsConfig
	Store        StoreConfig
	Storage      StorageConfig
	HTTP         HTTPConfig
	Security     SecurityConfig
	Tools        ToolsConfig
	OutputPolicy string `mapstructure:"output_policy"`
	StrictWiring bool   `mapstructure:"strict_wiring"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// MetricsConfig toggles the Prometheus collectors and /metrics.
type MetricsConfig struct {
	Enabled bool
}

// SignalsConfig lists the files or directories signal definitions are read from.
type SignalsConfig struct {
	Paths []string
}

// StoreConfig selects the run store backend.
type StoreConfig struct {
	Driver string
	Redis  RedisConfig
	File   FileConfig
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// FileConfig holds the file run store settings.
type FileConfig struct {
	Path string
}

// StorageConfig configures the storage provider. It is enabled when Sync is
// not empty.
type StorageConfig struct {
	Prefix string
	Sync   []string
}

// HTTPConfig configures the HTTP client provider.
type HTTPConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SecurityConfig configures the persistence middlewares.
type SecurityConfig struct {
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	PIIPatterns   []string `mapstructure:"pii_patterns"`
}

// ToolsConfig points at the allow-list of the exec action.
type ToolsConfig struct {
	Path string
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverFile   = "file"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("signals.paths", []string{"signals"})
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "pathflow:")
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.file.path", ".pathflow/runs")
	v.SetDefault("storage.prefix", "pathflow:")
	v.SetDefault("storage.sync", []string{})
	v.SetDefault("http.base_url", "/api/v1")
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.fallback_keys", []string{})
	v.SetDefault("security.pii_patterns", []string{})
	v.SetDefault("tools.path", "tools.yaml")
	v.SetDefault("output_policy", "linear")
	v.SetDefault("strict_wiring", false)
}

// Load reads configuration from file, env and flags, in increasing priority.
// An explicit path must exist; otherwise ./pathflow.yaml is read if present.
// flags maps config keys to the command-line flags overriding them.
func Load(path string, flags map[string]*pflag.Flag) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pathflow")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverFile:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q (memory, redis, file)", c.Store.Driver))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Security.Keys(); err != nil {
		errs = append(errs, err)
	}
	for i, p := range c.Security.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("security.pii_patterns[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Policy parses OutputPolicy.
func (c Config) Policy() (pathflow.OutputPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(c.OutputPolicy)) {
	case "", "linear":
		return pathflow.OutputPolicyLinear, nil
	case "strict":
		return pathflow.OutputPolicyStrict, nil
	}
	return 0, fmt.Errorf("output_policy: unknown policy %q (linear, strict)", c.OutputPolicy)
}

// Keys decodes the AES-256 keys. Keys are hex or standard base64 encoded.
// A nil active key means encryption is disabled.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("security.fallback_keys: set without encryption_key")
		}
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("security.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		key, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, errors.New("key is neither hex nor base64")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
