package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PARITY"

const (
	StorageBackendFS   = "fs"
	StorageBackendIPFS = "ipfs"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Client    ClientConfig    `mapstructure:"client"`
	TLS       TLSConfig       `mapstructure:"tls"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
}

type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	AdminPort string `mapstructure:"admin_port"`
}

type ClientConfig struct {
	ServerAddr string        `mapstructure:"server_addr"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TLSConfig points at the PEM material for the mutually authenticated channel.
// Leaving CertFile empty runs the channel without transport security.
type TLSConfig struct {
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
	ServerName string `mapstructure:"server_name"`
}

func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Subject  string        `mapstructure:"subject"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type TransferConfig struct {
	ChunkSize    int           `mapstructure:"chunk_size"`
	MACKey       string        `mapstructure:"mac_key"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	IPFSAPI string `mapstructure:"ipfs_api"`
}

// DatabaseConfig selects the artifact catalog backend. Driver is "postgres"
// or "sqlite"; an empty URL keeps the catalog in memory.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// HeartbeatConfig points the server at an external monitor. An empty URL
// disables heartbeats.
type HeartbeatConfig struct {
	URL        string        `mapstructure:"url"`
	InstanceID string        `mapstructure:"instance_id"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	ServiceName   string        `mapstructure:"service_name"`
	OTELCollector OTELCollector `mapstructure:"otel_collector"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
}

type OTELCollector struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type MetricsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LoadConfig reads the config file at path, overlays PARITY_* environment
// variables and fills defaults. An empty path loads defaults and env only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "50051")
	v.SetDefault("server.admin_port", "8080")

	v.SetDefault("client.server_addr", "127.0.0.1:50051")
	v.SetDefault("client.timeout", 30*time.Second)

	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.ca_file", "")
	v.SetDefault("tls.server_name", "")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.subject", "parity-client")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("transfer.chunk_size", 1024)
	v.SetDefault("transfer.mac_key", "")
	v.SetDefault("transfer.session_ttl", 10*time.Minute)
	v.SetDefault("transfer.reap_interval", time.Minute)

	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.ipfs_api", "localhost:5001")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "parity-ml")
	v.SetDefault("telemetry.otel_collector.host", "localhost")
	v.SetDefault("telemetry.otel_collector.port", 4317)
	v.SetDefault("telemetry.metrics.interval", 15*time.Second)

	v.SetDefault("heartbeat.url", "")
	v.SetDefault("heartbeat.instance_id", "parity-ml")
	v.SetDefault("heartbeat.interval", 30*time.Second)
	v.SetDefault("heartbeat.max_backoff", 5*time.Minute)
	v.SetDefault("heartbeat.max_retries", 3)
}

func (c *Config) Validate() error {
	if c.Transfer.ChunkSize <= 0 {
		return fmt.Errorf("transfer.chunk_size must be positive, got %d", c.Transfer.ChunkSize)
	}
	if c.Transfer.MACKey == "" {
		return errors.New("transfer.mac_key is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case StorageBackendFS, StorageBackendIPFS:
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	return nil
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.AdminPort)
}
