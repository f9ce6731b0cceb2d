package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General  GeneralSettings  `json:"general" mapstructure:"general"`
	Network  NetworkSettings  `json:"network" mapstructure:"network"`
	Registry RegistrySettings `json:"registry" mapstructure:"registry"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultSizeMB     int `json:"default_size_mb" mapstructure:"default_size_mb"`
	Theme             int `json:"theme" mapstructure:"theme"`
	LogRetentionCount int `json:"log_retention_count" mapstructure:"log_retention_count"`
}

const (
	ThemeAdaptive = 0
	ThemeLight    = 1
	ThemeDark     = 2
)

// NetworkSettings contains HTTP fetch parameters.
type NetworkSettings struct {
	BaseURL               string        `json:"base_url" mapstructure:"base_url"`
	UserAgent             string        `json:"user_agent" mapstructure:"user_agent"`
	ProxyURL              string        `json:"proxy_url" mapstructure:"proxy_url"`
	SkipTLSVerification   bool          `json:"skip_tls_verification" mapstructure:"skip_tls_verification"`
	ReadBufferSize        int           `json:"read_buffer_size" mapstructure:"read_buffer_size"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout" mapstructure:"response_header_timeout"`
}

// Registry backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// RegistrySettings selects and configures the blob registry backend.
type RegistrySettings struct {
	Backend     string `json:"backend" mapstructure:"backend"`
	SQLitePath  string `json:"sqlite_path" mapstructure:"sqlite_path"`
	BlobDir     string `json:"blob_dir" mapstructure:"blob_dir"`
	RedisAddr   string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisDB     int    `json:"redis_db" mapstructure:"redis_db"`
	RedisPrefix string `json:"redis_prefix" mapstructure:"redis_prefix"`
	PostgresDSN string `json:"postgres_dsn" mapstructure:"postgres_dsn"`
	QuotaBytes  int64  `json:"quota_bytes" mapstructure:"quota_bytes"`
}

// SettingMeta provides metadata for a single setting (for listing and help output).
type SettingMeta struct {
	Key         string // Dotted key, also the BLOBPROBE_ env suffix
	Label       string // Human-readable label
	Description string // Help text
	Type        string // "string", "int", "int64", "bool", "duration"
}

// GetSettingsMetadata returns metadata for all settings organized by category.
func GetSettingsMetadata() map[string][]SettingMeta {
	return map[string][]SettingMeta{
		"General": {
			{Key: "general.default_size_mb", Label: "Default Size", Description: "Payload size in MB requested by the download action.", Type: "int"},
			{Key: "general.theme", Label: "App Theme", Description: "UI Theme (System, Light, Dark).", Type: "int"},
			{Key: "general.log_retention_count", Label: "Log Retention Count", Description: "Number of recent log files to keep.", Type: "int"},
		},
		"Network": {
			{Key: "network.base_url", Label: "Base URL", Description: "Host serving /download/{size}mb payloads.", Type: "string"},
			{Key: "network.user_agent", Label: "User Agent", Description: "Custom User-Agent string for HTTP requests. Leave empty for default.", Type: "string"},
			{Key: "network.proxy_url", Label: "Proxy URL", Description: "HTTP or SOCKS5 proxy URL (e.g. socks5://127.0.0.1:1080). Leave empty to use system default.", Type: "string"},
			{Key: "network.skip_tls_verification", Label: "Skip TLS Verify", Description: "Accept any server certificate.", Type: "bool"},
			{Key: "network.read_buffer_size", Label: "Read Buffer Size", Description: "Bytes pulled from the response body per read.", Type: "int"},
			{Key: "network.response_header_timeout", Label: "Header Timeout", Description: "Maximum wait for response headers (e.g., 15s).", Type: "duration"},
		},
		"Registry": {
			{Key: "registry.backend", Label: "Backend", Description: "Blob store: memory, file, sqlite, redis or postgres.", Type: "string"},
			{Key: "registry.sqlite_path", Label: "SQLite Path", Description: "Database file for the sqlite backend.", Type: "string"},
			{Key: "registry.blob_dir", Label: "Blob Directory", Description: "Directory for the file backend.", Type: "string"},
			{Key: "registry.redis_addr", Label: "Redis Address", Description: "host:port of the redis server.", Type: "string"},
			{Key: "registry.redis_db", Label: "Redis DB", Description: "Redis database number.", Type: "int"},
			{Key: "registry.redis_prefix", Label: "Redis Prefix", Description: "Key prefix for blob hashes.", Type: "string"},
			{Key: "registry.postgres_dsn", Label: "Postgres DSN", Description: "Connection string for the postgres backend.", Type: "string"},
			{Key: "registry.quota_bytes", Label: "Quota", Description: "Total bytes the registry may hold. 0 means unlimited.", Type: "int64"},
		},
	}
}

// CategoryOrder returns the order of categories for listing.
func CategoryOrder() []string {
	return []string{"General", "Network", "Registry"}
}

const (
	KB = 1024
	MB = 1024 * KB
)

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			DefaultSizeMB:     500,
			Theme:             ThemeAdaptive,
			LogRetentionCount: 5,
		},
		Network: NetworkSettings{
			BaseURL:               "https://cellular-speedtest.s3.eu-central-1.amazonaws.com",
			UserAgent:             "", // Empty means use default UA
			ReadBufferSize:        64 * KB,
			ResponseHeaderTimeout: 15 * time.Second,
		},
		Registry: RegistrySettings{
			Backend:     BackendSQLite,
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "blobprobe",
		},
	}
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
// BLOBPROBE_<CATEGORY>_<KEY> environment variables override file values.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from the given JSON file.
func LoadSettingsFrom(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	v.SetEnvPrefix("BLOBPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading settings file %s: %w", path, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("general.default_size_mb", d.General.DefaultSizeMB)
	v.SetDefault("general.theme", d.General.Theme)
	v.SetDefault("general.log_retention_count", d.General.LogRetentionCount)

	v.SetDefault("network.base_url", d.Network.BaseURL)
	v.SetDefault("network.user_agent", d.Network.UserAgent)
	v.SetDefault("network.proxy_url", d.Network.ProxyURL)
	v.SetDefault("network.skip_tls_verification", d.Network.SkipTLSVerification)
	v.SetDefault("network.read_buffer_size", d.Network.ReadBufferSize)
	v.SetDefault("network.response_header_timeout", d.Network.ResponseHeaderTimeout)

	v.SetDefault("registry.backend", d.Registry.Backend)
	v.SetDefault("registry.sqlite_path", d.Registry.SQLitePath)
	v.SetDefault("registry.blob_dir", d.Registry.BlobDir)
	v.SetDefault("registry.redis_addr", d.Registry.RedisAddr)
	v.SetDefault("registry.redis_db", d.Registry.RedisDB)
	v.SetDefault("registry.redis_prefix", d.Registry.RedisPrefix)
	v.SetDefault("registry.postgres_dsn", d.Registry.PostgresDSN)
	v.SetDefault("registry.quota_bytes", d.Registry.QuotaBytes)
}

// Validate rejects values the engine cannot run with and fills zero values with defaults.
func (s *Settings) Validate() error {
	defaults := DefaultSettings()

	if s.General.DefaultSizeMB <= 0 {
		s.General.DefaultSizeMB = defaults.General.DefaultSizeMB
	}
	if s.General.LogRetentionCount < 0 {
		return fmt.Errorf("general.log_retention_count must not be negative, got %d", s.General.LogRetentionCount)
	}
	if s.Network.ReadBufferSize < 0 {
		return fmt.Errorf("network.read_buffer_size must not be negative, got %d", s.Network.ReadBufferSize)
	}
	if s.Registry.QuotaBytes < 0 {
		return fmt.Errorf("registry.quota_bytes must not be negative, got %d", s.Registry.QuotaBytes)
	}

	switch s.Registry.Backend {
	case "":
		s.Registry.Backend = defaults.Registry.Backend
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unknown registry backend %q", s.Registry.Backend)
	}

	if s.Registry.Backend == BackendPostgres && s.Registry.PostgresDSN == "" {
		return errors.New("registry.postgres_dsn is required for the postgres backend")
	}
	return nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(GetSettingsPath(), s)
}

// SaveSettingsTo writes settings to path via a temp file and rename.
func SaveSettingsTo(path string, s *Settings) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// SQLitePath returns the configured database file or the default under the state dir.
func (s *Settings) SQLitePath() string {
	if s.Registry.SQLitePath != "" {
		return s.Registry.SQLitePath
	}
	return filepath.Join(GetStateDir(), "blobs.db")
}

// BlobDir returns the configured blob directory or the default under the state dir.
func (s *Settings) BlobDir() string {
	if s.Registry.BlobDir != "" {
		return s.Registry.BlobDir
	}
	return filepath.Join(GetStateDir(), "blobs")
}

// RuntimeConfig carries the fetch-related settings to the download engine.
type RuntimeConfig struct {
	BaseURL               string
	UserAgent             string
	ProxyURL              string
	SkipTLSVerification   bool
	ReadBufferSize        int
	ResponseHeaderTimeout time.Duration
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings
func (s *Settings) ToRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		BaseURL:               s.Network.BaseURL,
		UserAgent:             s.Network.UserAgent,
		ProxyURL:              s.Network.ProxyURL,
		SkipTLSVerification:   s.Network.SkipTLSVerification,
		ReadBufferSize:        s.Network.ReadBufferSize,
		ResponseHeaderTimeout: s.Network.ResponseHeaderTimeout,
	}
}
