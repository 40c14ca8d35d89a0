package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncget.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	opts := cfg.ClientOptions()
	assert.Equal(t, 64, opts.Conn.MaxRequests)
	assert.Equal(t, 16, opts.Conn.MaxRequestsPerHost)
	assert.Equal(t, 30*time.Second, opts.Timeout.Connect)
	assert.Equal(t, 2*time.Second, opts.Timeout.ConnectBackoffInit)
	assert.False(t, opts.Redirect.NoFollow)
	assert.False(t, opts.Redirect.NoFollowScheme)
	assert.Equal(t, 8*1024, opts.Pool.Buffers.BufferSize())
	assert.Equal(t, 32*1024, opts.Pool.BodyBuffers.BufferSize())
	assert.Equal(t, 64, opts.Pool.Executors.Size())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
client:
  max_requests: 8
  max_requests_per_host: 2
  connect_timeout: 5s
  read_timeout: 1m
  follow_scheme_redirects: false
  requests_per_second: 2.5
  burst: 3
pool:
  executors: 8
engine:
  dial_timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	opts := cfg.ClientOptions()
	assert.Equal(t, 8, opts.Conn.MaxRequests)
	assert.Equal(t, 2, opts.Conn.MaxRequestsPerHost)
	assert.Equal(t, 2.5, opts.Conn.RequestsPerSecond)
	assert.Equal(t, 3, opts.Conn.Burst)
	assert.Equal(t, 5*time.Second, opts.Timeout.Connect)
	assert.Equal(t, time.Minute, opts.Timeout.Read)
	assert.Equal(t, 30*time.Second, opts.Timeout.Write)
	assert.False(t, opts.Redirect.NoFollow)
	assert.True(t, opts.Redirect.NoFollowScheme)

	assert.Equal(t, 3*time.Second, cfg.EngineOptions().DialTimeout)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "client:\n  max_request: 1\n",
		"bad duration":   "client:\n  connect_timeout: soon\n",
		"bad level":      "log_level: loud\n",
		"host over max":  "client:\n  max_requests: 1\n  max_requests_per_host: 2\n",
		"zero executors": "pool:\n  executors: 0\n",
		"bad resolve":    "engine:\n  resolve: [\"example.com\"]\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLookuper(t *testing.T) {
	cfg, err := Load(writeConfig(t, "engine:\n  resolve: [\"a.test=10.0.0.1\"]\n"))
	require.NoError(t, err)

	lookuper, err := cfg.Lookuper("b.test=10.0.0.2")
	require.NoError(t, err)

	for host, want := range map[string]string{"a.test": "10.0.0.1", "b.test": "10.0.0.2"} {
		addrs, err := lookuper.LookupIP(context.Background(), host)
		require.NoError(t, err)
		require.Len(t, addrs, 1)
		assert.Equal(t, want, addrs[0].String())
	}

	none, err := Default().Lookuper()
	require.NoError(t, err)
	assert.Nil(t, none)
}
