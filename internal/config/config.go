package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "FOLIO"
	defaultHTTPAddress    = "0.0.0.0:3000"
	defaultDatabasePath   = "data/folio.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultStaticDir      = "frontend"
	defaultUploadsDir     = "uploads"
	defaultUploadMaxBytes = 10 * 1024 * 1024
	defaultUploadMaxFiles = 10
	defaultEditorStorage  = StorageService
	defaultLocalDriver    = DriverSQLite
	defaultLocalQuota     = 5 * 1024 * 1024
	defaultLocalKey       = "portfolioContent"
	defaultRedisAddress   = "127.0.0.1:6379"
)

// Editor storage choices.
const (
	StorageService = "service"
	StorageLocal   = "local"
)

// Local key-value drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	LogFormat       string
	StaticDir       string
	SkeletonPath    string
	UploadsDir      string
	UploadMaxBytes  int64
	UploadMaxFiles  int
	EditorStorage   string
	EditorDownscale bool
	LocalDriver     string
	LocalQuotaBytes int64
	LocalKey        string
	RedisAddress    string
	RelayEndpoint   string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("site.static_dir", defaultStaticDir)
	configViper.SetDefault("site.skeleton_path", "")
	configViper.SetDefault("uploads.dir", defaultUploadsDir)
	configViper.SetDefault("uploads.max_bytes", defaultUploadMaxBytes)
	configViper.SetDefault("uploads.max_files", defaultUploadMaxFiles)
	configViper.SetDefault("editor.storage", defaultEditorStorage)
	configViper.SetDefault("editor.downscale", true)
	configViper.SetDefault("local.driver", defaultLocalDriver)
	configViper.SetDefault("local.quota_bytes", defaultLocalQuota)
	configViper.SetDefault("local.key", defaultLocalKey)
	configViper.SetDefault("redis.address", defaultRedisAddress)
	configViper.SetDefault("relay.endpoint", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     strings.TrimSpace(configViper.GetString("http.address")),
		DatabasePath:    strings.TrimSpace(configViper.GetString("database.path")),
		LogLevel:        configViper.GetString("log.level"),
		LogFormat:       strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		StaticDir:       strings.TrimSpace(configViper.GetString("site.static_dir")),
		SkeletonPath:    strings.TrimSpace(configViper.GetString("site.skeleton_path")),
		UploadsDir:      strings.TrimSpace(configViper.GetString("uploads.dir")),
		UploadMaxBytes:  configViper.GetInt64("uploads.max_bytes"),
		UploadMaxFiles:  configViper.GetInt("uploads.max_files"),
		EditorStorage:   strings.ToLower(strings.TrimSpace(configViper.GetString("editor.storage"))),
		EditorDownscale: configViper.GetBool("editor.downscale"),
		LocalDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("local.driver"))),
		LocalQuotaBytes: configViper.GetInt64("local.quota_bytes"),
		LocalKey:        strings.TrimSpace(configViper.GetString("local.key")),
		RedisAddress:    strings.TrimSpace(configViper.GetString("redis.address")),
		RelayEndpoint:   strings.TrimSpace(configViper.GetString("relay.endpoint")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	if c.UploadsDir == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	if c.UploadMaxFiles <= 0 {
		return fmt.Errorf("uploads.max_files must be positive")
	}
	switch c.EditorStorage {
	case StorageService, StorageLocal:
	default:
		return fmt.Errorf("editor.storage must be %s or %s, got %q", StorageService, StorageLocal, c.EditorStorage)
	}
	switch c.LocalDriver {
	case DriverSQLite, DriverMemory:
	case DriverRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis.address is required for the redis driver")
		}
	default:
		return fmt.Errorf("local.driver must be sqlite, redis or memory, got %q", c.LocalDriver)
	}
	if c.EditorStorage == StorageLocal && !c.EditorDownscale {
		return fmt.Errorf("editor.storage=%s requires editor.downscale so stored images stay self-contained", StorageLocal)
	}
	if c.LocalQuotaBytes <= 0 {
		return fmt.Errorf("local.quota_bytes must be positive")
	}
	if c.LocalKey == "" {
		return fmt.Errorf("local.key is required")
	}
	return nil
}
