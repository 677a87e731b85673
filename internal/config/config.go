package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable that points at a YAML config file.
const ConfigFileEnv = "OSCBRIDGE_CONFIG"

type Config struct {
	// Service Ports
	OSCPort uint16 `yaml:"osc_port" env:"OSC_PORT" default:"9000"`
	WSSPort uint16 `yaml:"wss_port" env:"WSS_PORT" default:"8443"`

	// OSCBindHost restricts the UDP listener to one local address; empty = all
	OSCBindHost string `yaml:"osc_bind_host" env:"OSC_BIND_HOST"`

	// Relay
	ClientQueueSize int  `yaml:"client_queue_size" env:"CLIENT_QUEUE_SIZE" default:"64"`
	Debug           bool `yaml:"debug" env:"DEBUG" default:"false"` // log every relayed message

	// TLS identity
	CertHorizon    time.Duration `yaml:"cert_horizon" env:"CERT_HORIZON" default:"8760h"`
	CertExportPath string        `yaml:"cert_export_path" env:"CERT_EXPORT_PATH"` // public certificate only

	// Static help document; empty serves the built-in page
	HelpFile string `yaml:"help_file" env:"HELP_FILE"`

	// Monitoring
	MetricsEnabled bool `yaml:"metrics_enabled" env:"METRICS_ENABLED" default:"true"`

	// Development
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" default:"text"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		OSCPort:         9000,
		WSSPort:         8443,
		ClientQueueSize: 64,
		CertHorizon:     365 * 24 * time.Hour,
		MetricsEnabled:  true,
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig loads configuration from, in increasing priority: defaults, the
// YAML file at path (or $OSCBRIDGE_CONFIG when path is empty), a .env file in
// the working directory, and environment variables.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := loadFile(config, path); err != nil {
			return nil, err
		}
	}

	// .env is optional; the process environment still applies without it
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := loadEnvPort(&config.OSCPort, "OSC_PORT"); err != nil {
		return nil, err
	}
	if err := loadEnvPort(&config.WSSPort, "WSS_PORT"); err != nil {
		return nil, err
	}
	loadEnvString(&config.OSCBindHost, "OSC_BIND_HOST")

	if err := loadEnvInt(&config.ClientQueueSize, "CLIENT_QUEUE_SIZE"); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.Debug, "DEBUG"); err != nil {
		return nil, err
	}

	if err := loadEnvDuration(&config.CertHorizon, "CERT_HORIZON"); err != nil {
		return nil, err
	}
	loadEnvString(&config.CertExportPath, "CERT_EXPORT_PATH")
	loadEnvString(&config.HelpFile, "HELP_FILE")

	if err := loadEnvBool(&config.MetricsEnabled, "METRICS_ENABLED"); err != nil {
		return nil, err
	}

	loadEnvString(&config.LogLevel, "LOG_LEVEL")
	loadEnvString(&config.LogFormat, "LOG_FORMAT")

	if err := loadEnvDuration(&config.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}

	return config, nil
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Helper functions for type conversion; each leaves target untouched when
// the variable is unset.
func loadEnvString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func loadEnvPort(target *uint16, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port value for %s: %v", key, err)
		}
		*target = uint16(parsed)
	}
	return nil
}

func loadEnvInt(target *int, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvBool(target *bool, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	// Validate ports are in valid range
	if c.OSCPort == 0 {
		errors = append(errors, "OSC_PORT must be between 1 and 65535")
	}
	if c.WSSPort == 0 {
		errors = append(errors, "WSS_PORT must be between 1 and 65535")
	}
	if c.OSCBindHost != "" && net.ParseIP(c.OSCBindHost) == nil {
		errors = append(errors, "OSC_BIND_HOST must be an IP address")
	}

	if c.ClientQueueSize < 1 {
		errors = append(errors, "CLIENT_QUEUE_SIZE must be at least 1")
	}
	if c.CertHorizon <= 0 {
		errors = append(errors, "CERT_HORIZON must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		errors = append(errors, "SHUTDOWN_TIMEOUT must be positive")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// OSCAddr is the UDP address the datagram listener binds.
func (c *Config) OSCAddr() string {
	return net.JoinHostPort(c.OSCBindHost, strconv.Itoa(int(c.OSCPort)))
}

// WSSAddr is the TCP address the secure WebSocket listener binds.
func (c *Config) WSSAddr() string {
	return net.JoinHostPort("", strconv.Itoa(int(c.WSSPort)))
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
