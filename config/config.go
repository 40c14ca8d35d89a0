// Package config loads the YAML configuration of syncget.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"syncnet/application/http/actor/client"
	"syncnet/application/http/engine/nethttp"
	"syncnet/application/util/domain"
	"syncnet/lib/pool"
)

// Duration reads Go duration strings such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

type Config struct {
	LogLevel string       `yaml:"log_level"`
	Client   ClientConfig `yaml:"client"`
	Pool     PoolConfig   `yaml:"pool"`
	Engine   EngineConfig `yaml:"engine"`
}

type ClientConfig struct {
	MaxRequests        int      `yaml:"max_requests"`
	MaxRequestsPerHost int      `yaml:"max_requests_per_host"`
	RequestsPerSecond  float64  `yaml:"requests_per_second"`
	Burst              int      `yaml:"burst"`
	ConnectTimeout     Duration `yaml:"connect_timeout"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	ConnectBackoffInit Duration `yaml:"connect_backoff_init"`
	FollowRedirects    bool     `yaml:"follow_redirects"`
	// Redirects between http and https.
	FollowSchemeRedirects bool `yaml:"follow_scheme_redirects"`
}

type PoolConfig struct {
	Buffers        int `yaml:"buffers"`
	BufferSize     int `yaml:"buffer_size"`
	BodyBuffers    int `yaml:"body_buffers"`
	BodyBufferSize int `yaml:"body_buffer_size"`
	Executors      int `yaml:"executors"`
}

type EngineConfig struct {
	DialTimeout         Duration `yaml:"dial_timeout"`
	TLSHandshakeTimeout Duration `yaml:"tls_handshake_timeout"`
	IdleConnTimeout     Duration `yaml:"idle_conn_timeout"`
	MaxIdleConnsPerHost int      `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int      `yaml:"max_conns_per_host"`
	EnvironmentProxy    bool     `yaml:"environment_proxy"`
	// Resolve pins hosts as "host=ip" entries ahead of DNS.
	Resolve []string `yaml:"resolve"`
}

func Default() *Config {
	opts := client.DefaultOptions()
	engine := nethttp.DefaultOptions()

	return &Config{
		LogLevel: "info",
		Client: ClientConfig{
			MaxRequests:           opts.Conn.MaxRequests,
			MaxRequestsPerHost:    opts.Conn.MaxRequestsPerHost,
			ConnectTimeout:        Duration(opts.Timeout.Connect),
			ReadTimeout:           Duration(opts.Timeout.Read),
			WriteTimeout:          Duration(opts.Timeout.Write),
			ConnectBackoffInit:    Duration(opts.Timeout.ConnectBackoffInit),
			FollowRedirects:       !opts.Redirect.NoFollow,
			FollowSchemeRedirects: !opts.Redirect.NoFollowScheme,
		},
		Pool: PoolConfig{
			Buffers:        10,
			BufferSize:     8 * 1024,
			BodyBuffers:    10,
			BodyBufferSize: 32 * 1024,
			Executors:      opts.Conn.MaxRequests,
		},
		Engine: EngineConfig{
			DialTimeout:         Duration(engine.DialTimeout),
			TLSHandshakeTimeout: Duration(engine.TLSHandshakeTimeout),
			IdleConnTimeout:     Duration(engine.IdleConnTimeout),
			MaxIdleConnsPerHost: engine.MaxIdleConnsPerHost,
			MaxConnsPerHost:     engine.MaxConnsPerHost,
			EnvironmentProxy:    engine.EnvironmentProxy,
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// SYNCNET_LOG_LEVEL overrides the log level.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		if err := cfg.decode(data); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	if v := os.Getenv("SYNCNET_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil {
		// An empty document keeps the defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}

	switch {
	case c.Client.MaxRequests <= 0:
		return errors.New("client.max_requests must be positive")
	case c.Client.MaxRequestsPerHost <= 0:
		return errors.New("client.max_requests_per_host must be positive")
	case c.Client.MaxRequestsPerHost > c.Client.MaxRequests:
		return errors.New("client.max_requests_per_host exceeds client.max_requests")
	case c.Client.RequestsPerSecond < 0:
		return errors.New("client.requests_per_second must not be negative")
	case c.Pool.BufferSize <= 0, c.Pool.BodyBufferSize <= 0:
		return errors.New("pool buffer sizes must be positive")
	case c.Pool.Buffers < 0, c.Pool.BodyBuffers < 0:
		return errors.New("pool buffer counts must not be negative")
	case c.Pool.Executors <= 0:
		return errors.New("pool.executors must be positive")
	}
	if _, err := domain.ParseMapLookuper(c.Engine.Resolve); err != nil {
		return errors.Wrap(err, "engine.resolve")
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	return level, nil
}

// Lookuper returns nil when no host is pinned. Entries for the same host
// accumulate, configured ones first.
func (c *Config) Lookuper(extra ...string) (domain.Lookuper, error) {
	entries := append(append([]string(nil), c.Engine.Resolve...), extra...)
	if len(entries) == 0 {
		return nil, nil
	}
	return domain.ParseMapLookuper(entries)
}

// ClientOptions builds fresh pools each call.
func (c *Config) ClientOptions() client.Options {
	return client.Options{
		Conn: client.ConnOptions{
			MaxRequests:        c.Client.MaxRequests,
			MaxRequestsPerHost: c.Client.MaxRequestsPerHost,
			RequestsPerSecond:  c.Client.RequestsPerSecond,
			Burst:              c.Client.Burst,
		},
		Timeout: client.TimeoutOptions{
			Connect:            time.Duration(c.Client.ConnectTimeout),
			Read:               time.Duration(c.Client.ReadTimeout),
			Write:              time.Duration(c.Client.WriteTimeout),
			ConnectBackoffInit: time.Duration(c.Client.ConnectBackoffInit),
		},
		Redirect: client.RedirectOptions{
			NoFollow:       !c.Client.FollowRedirects,
			NoFollowScheme: !c.Client.FollowSchemeRedirects,
		},
		Pool: client.PoolOptions{
			Buffers:     pool.NewBufferPool(c.Pool.Buffers, c.Pool.BufferSize),
			BodyBuffers: pool.NewBufferPool(c.Pool.BodyBuffers, c.Pool.BodyBufferSize),
			Executors:   pool.NewExecutorPool(c.Pool.Executors),
		},
	}
}

func (c *Config) EngineOptions() nethttp.Options {
	opts := nethttp.DefaultOptions()
	opts.DialTimeout = time.Duration(c.Engine.DialTimeout)
	opts.TLSHandshakeTimeout = time.Duration(c.Engine.TLSHandshakeTimeout)
	opts.IdleConnTimeout = time.Duration(c.Engine.IdleConnTimeout)
	opts.MaxIdleConnsPerHost = c.Engine.MaxIdleConnsPerHost
	opts.MaxConnsPerHost = c.Engine.MaxConnsPerHost
	opts.EnvironmentProxy = c.Engine.EnvironmentProxy
	return opts
}
