package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hatch Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hatch         HatchConfig         `yaml:"hatch"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
}

// HatchConfig contains Hatch cloud account and session settings.
type HatchConfig struct {
	// Email and Password are the Hatch account credentials used for cloud login.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// APIBase is the Hatch cloud API base URL. Must end with a trailing slash.
	APIBase string `yaml:"api_base"`

	// Products is the list of iotProducts query values sent during device
	// discovery. The account's member products are appended automatically.
	Products []string `yaml:"products"`

	// RateLimit tunes the 429 retry behaviour for cloud calls.
	RateLimit RateRetryConfig `yaml:"rate_limit"`

	// RefreshMargin is how long before AWS credential expiry the session is
	// re-bootstrapped (seconds).
	RefreshMargin int `yaml:"refresh_margin"`

	// RetryInterval is how long to wait after a failed session bootstrap
	// before trying again (seconds).
	RetryInterval int `yaml:"retry_interval"`
}

// RateRetryConfig contains retry/backoff settings for rate-limited cloud calls.
type RateRetryConfig struct {
	Attempts     int `yaml:"attempts"`
	InitialDelay int `yaml:"initial_delay"` // seconds, doubled each attempt
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains local MQTT broker connection settings.
// This is the broker Home Assistant and the REST API talk to, not AWS IoT.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// HomeAssistantConfig contains Home Assistant MQTT discovery settings.
type HomeAssistantConfig struct {
	// Enabled toggles discovery publishing and the HA command/state topics.
	Enabled bool `yaml:"enabled"`

	// DiscoveryPrefix is the Home Assistant discovery topic prefix.
	// Default: "homeassistant"
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// NodeID namespaces this bridge's entities under the discovery prefix.
	NodeID string `yaml:"node_id"`
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

// APITimeoutConfig contains HTTP timeout settings (seconds).
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
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	JWT   JWTConfig       `yaml:"jwt"`
	Admin AdminUserConfig `yaml:"admin"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// AdminUserConfig contains the single local API user.
// PasswordHash is an Argon2id PHC string produced by auth.HashPassword.
type AdminUserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// DefaultProducts returns the iotProducts query list used when none is
// configured. Mirrors the product families the Hatch app registers.
func DefaultProducts() []string {
	return []string{
		"restPlus", "riot", "riotPlus", "restMini",
		"restore", "restoreIot", "restoreV4", "restoreV5", "restBaby",
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HATCHBRIDGE_SECTION_KEY
// For example: HATCHBRIDGE_HATCH_EMAIL, HATCHBRIDGE_DATABASE_PATH
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
		Hatch: HatchConfig{
			APIBase:  "https://prod-sleep.hatchbaby.com/",
			Products: DefaultProducts(),
			RateLimit: RateRetryConfig{
				Attempts:     5,
				InitialDelay: 2,
			},
			RefreshMargin: 60,
			RetryInterval: 60,
		},
		Database: DatabaseConfig{
			Path:        "./data/hatchbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hatch-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		HomeAssistant: HomeAssistantConfig{
			Enabled:         true,
			DiscoveryPrefix: "homeassistant",
			NodeID:          "hatch_bridge",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HATCHBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hatch account — the usual way to keep credentials out of the YAML file
	if v := os.Getenv("HATCHBRIDGE_HATCH_EMAIL"); v != "" {
		cfg.Hatch.Email = v
	}
	if v := os.Getenv("HATCHBRIDGE_HATCH_PASSWORD"); v != "" {
		cfg.Hatch.Password = v
	}
	if v := os.Getenv("HATCHBRIDGE_HATCH_API_BASE"); v != "" {
		cfg.Hatch.APIBase = v
	}

	// Database
	if v := os.Getenv("HATCHBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HATCHBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HATCHBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HATCHBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HATCHBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HATCHBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("HATCHBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hatch account validation
	if c.Hatch.Email == "" {
		errs = append(errs, "hatch.email is required")
	}
	if c.Hatch.Password == "" {
		errs = append(errs, "hatch.password is required")
	}
	if c.Hatch.APIBase == "" {
		errs = append(errs, "hatch.api_base is required")
	} else if !strings.HasSuffix(c.Hatch.APIBase, "/") {
		errs = append(errs, "hatch.api_base must end with a trailing slash")
	}
	if c.Hatch.RateLimit.Attempts <= 0 {
		errs = append(errs, "hatch.rate_limit.attempts must be positive")
	}
	if c.Hatch.RateLimit.InitialDelay <= 0 {
		errs = append(errs, "hatch.rate_limit.initial_delay must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Home Assistant validation
	if c.HomeAssistant.Enabled && c.HomeAssistant.DiscoveryPrefix == "" {
		errs = append(errs, "homeassistant.discovery_prefix is required when enabled")
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			errs = append(errs, "api.tls.cert_file is required when TLS is enabled")
		}
		if c.API.TLS.KeyFile == "" {
			errs = append(errs, "api.tls.key_file is required when TLS is enabled")
		}
	}

	// Security validation
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set via HATCHBRIDGE_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < 32 {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a time.Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a time.Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRefreshMargin returns the credential refresh margin as a time.Duration.
func (c *HatchConfig) GetRefreshMargin() time.Duration {
	return time.Duration(c.RefreshMargin) * time.Second
}

// GetRetryInterval returns the bootstrap retry interval as a time.Duration.
func (c *HatchConfig) GetRetryInterval() time.Duration {
	return time.Duration(c.RetryInterval) * time.Second
}
