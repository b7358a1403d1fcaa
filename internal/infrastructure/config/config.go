package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scheduler interval bounds in milliseconds.
const (
	MinCheckIntervalMS     = 5000
	MaxCheckIntervalMS     = 300000
	DefaultCheckIntervalMS = 30000
)

// Config is the root configuration structure for the Gray Logic routines service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Data      DataConfig      `yaml:"data"`
	Database  DatabaseConfig  `yaml:"database"`
	Devices   DevicesConfig   `yaml:"devices"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Timezone is the IANA zone used as the wall clock for time triggers.
	Timezone string `yaml:"timezone"`
}

// DataConfig holds the paths of the JSON documents owned by the service.
type DataConfig struct {
	RoutinesFile string `yaml:"routines_file"`
	SourcesFile  string `yaml:"sources_file"`
	SettingsFile string `yaml:"settings_file"`

	// VaultKeyFile holds the hex-encoded 256-bit vault key.
	// It is created on first run with mode 0600.
	VaultKeyFile string `yaml:"vault_key_file"`
}

// DatabaseConfig contains SQLite database settings for the activity log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// DevicesConfig describes the remote device-control API.
type DevicesConfig struct {
	// BaseURL is the root of the device-control REST API.
	BaseURL string `yaml:"base_url"`

	// SourceKind names the credential collection inside the sources file.
	SourceKind string `yaml:"source_kind"`

	// RequestTimeout bounds each remote call (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// RateLimit is the sustained request rate allowed per source token (requests/second).
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the burst size for the per-token limiter.
	RateBurst int `yaml:"rate_burst"`

	// FallbackToken is used when no enabled source exists.
	// Prefer GRAYLOGIC_DEVICES_TOKEN over putting it in the file.
	FallbackToken string `yaml:"fallback_token"`
}

// SchedulerConfig contains routine scheduler settings.
type SchedulerConfig struct {
	// CheckIntervalMS is the initial polling interval when no settings file exists.
	CheckIntervalMS int `yaml:"check_interval_ms"`

	// MaxConcurrentRuns bounds how many routines execute at once.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// ActionTimeout bounds a single action, including the follow-up state read (seconds).
	ActionTimeout int `yaml:"action_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_DEVICES_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "Local",
		},
		Data: DataConfig{
			RoutinesFile: "./data/routines.json",
			SourcesFile:  "./data/sources.json",
			SettingsFile: "./data/settings.json",
			VaultKeyFile: "./data/vault.key",
		},
		Database: DatabaseConfig{
			Path:        "./data/activity.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Devices: DevicesConfig{
			BaseURL:        "https://api.smartthings.com/v1",
			SourceKind:     "smartthings",
			RequestTimeout: 10,
			RateLimit:      5,
			RateBurst:      10,
		},
		Scheduler: SchedulerConfig{
			CheckIntervalMS:   DefaultCheckIntervalMS,
			MaxConcurrentRuns: 8,
			ActionTimeout:     15,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-routines",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Device-control API
	if v := os.Getenv("GRAYLOGIC_DEVICES_BASE_URL"); v != "" {
		cfg.Devices.BaseURL = v
	}
	if v := os.Getenv("GRAYLOGIC_DEVICES_TOKEN"); v != "" {
		cfg.Devices.FallbackToken = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.Data.RoutinesFile == "" {
		errs = append(errs, "data.routines_file is required")
	}
	if c.Data.SourcesFile == "" {
		errs = append(errs, "data.sources_file is required")
	}
	if c.Data.SettingsFile == "" {
		errs = append(errs, "data.settings_file is required")
	}
	if c.Data.VaultKeyFile == "" {
		errs = append(errs, "data.vault_key_file is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Devices.BaseURL == "" {
		errs = append(errs, "devices.base_url is required")
	}
	if c.Devices.SourceKind == "" {
		errs = append(errs, "devices.source_kind is required")
	}
	if c.Devices.RequestTimeout < 1 {
		errs = append(errs, "devices.request_timeout must be at least 1 second")
	}

	if c.Scheduler.CheckIntervalMS < MinCheckIntervalMS || c.Scheduler.CheckIntervalMS > MaxCheckIntervalMS {
		errs = append(errs, fmt.Sprintf("scheduler.check_interval_ms must be %d-%d", MinCheckIntervalMS, MaxCheckIntervalMS))
	}
	if c.Scheduler.MaxConcurrentRuns < 1 {
		errs = append(errs, "scheduler.max_concurrent_runs must be at least 1")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The API controls physical devices, so a forgeable token is not acceptable.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the site time zone used for time triggers.
// Falls back to the process local zone if the configured name cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRequestTimeout returns the device-control API request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Devices.RequestTimeout) * time.Second
}

// GetActionTimeout returns the per-action execution timeout as a Duration.
func (c *Config) GetActionTimeout() time.Duration {
	return time.Duration(c.Scheduler.ActionTimeout) * time.Second
}
