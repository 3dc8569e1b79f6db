package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	API       APIConfig
	Stream    StreamConfig
	Transport TransportConfig
	Snapshot  SnapshotConfig
	Session   SessionConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StreamConfig struct {
	URL              string
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration
}

type TransportConfig struct {
	RetryMaxElapsed time.Duration
}

type SnapshotConfig struct {
	PageSize int
}

type SessionConfig struct {
	Dir string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from defaults, the optional YAML file at path and
// ORDERTRACK_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORDERTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8090)
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("stream.url", "ws://localhost:8000/ws/orders")
	v.SetDefault("stream.initial_backoff", "500ms")
	v.SetDefault("stream.max_backoff", "30s")
	v.SetDefault("stream.handshake_timeout", "10s")
	v.SetDefault("transport.retry_max_elapsed", "15s")
	v.SetDefault("snapshot.page_size", 100)
	v.SetDefault("session.dir", ".ordertrack/session")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("server.port"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Stream: StreamConfig{
			URL:              v.GetString("stream.url"),
			InitialBackoff:   v.GetDuration("stream.initial_backoff"),
			MaxBackoff:       v.GetDuration("stream.max_backoff"),
			HandshakeTimeout: v.GetDuration("stream.handshake_timeout"),
		},
		Transport: TransportConfig{
			RetryMaxElapsed: v.GetDuration("transport.retry_max_elapsed"),
		},
		Snapshot: SnapshotConfig{
			PageSize: v.GetInt("snapshot.page_size"),
		},
		Session: SessionConfig{
			Dir: v.GetString("session.dir"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required")
	}
	if c.Stream.InitialBackoff <= 0 || c.Stream.MaxBackoff < c.Stream.InitialBackoff {
		return fmt.Errorf("stream backoff must satisfy 0 < initial_backoff <= max_backoff")
	}
	if c.Snapshot.PageSize <= 0 || c.Snapshot.PageSize > 100 {
		return fmt.Errorf("snapshot.page_size must be between 1 and 100")
	}
	return nil
}
