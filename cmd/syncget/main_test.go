package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncnet/application/http/semantic"
)

func TestBuildRequest(t *testing.T) {
	r, err := buildRequest(flags{
		headers:     []string{"Accept: text/plain", "X-A: 1", "x-a: 2"},
		data:        "hi",
		contentType: "text/plain",
		traceHeader: "X-Trace",
	}, "http://example.com/p")
	require.NoError(t, err)

	assert.Equal(t, semantic.MethodPost, r.Method)
	assert.Equal(t, "hi", string(r.Body.Content))

	values, ok := r.Headers.Values("X-A")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, values)

	trace, ok := r.Headers.Get("x-trace")
	require.True(t, ok)
	_, err = uuid.Parse(trace)
	assert.NoError(t, err)

	_, err = buildRequest(flags{headers: []string{"broken"}}, "http://example.com")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		body, _ := io.ReadAll(r.Body)
		w.Write(append([]byte("got:"), body...))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), flags{
		method:      "put",
		data:        "payload",
		contentType: "text/plain",
		include:     true,
	}, server.URL, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "http/1.1 200 OK\n")
	assert.Contains(t, out, "X-Method: PUT\n")
	assert.Contains(t, out, "\n\ngot:payload")
}

func TestRunResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Host)
	}))
	defer server.Close()

	addr, err := url.Parse(server.URL)
	require.NoError(t, err)

	configPath := filepath.Join(t.TempDir(), "syncget.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("engine:\n  environment_proxy: false\n"), 0o600))

	var stdout, stderr bytes.Buffer
	err = run(context.Background(), flags{
		configPath: configPath,
		method:     "get",
		resolve:    []string{"syncget.test=127.0.0.1"},
	}, "http://syncget.test:"+addr.Port()+"/", &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "syncget.test:"+addr.Port(), stdout.String())
}

func TestRunRejectsBadLogLevel(t *testing.T) {
	t.Setenv("SYNCNET_LOG_LEVEL", "loud")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), flags{}, "http://example.com", &stdout, &stderr)
	assert.ErrorContains(t, err, "log_level")
	assert.Zero(t, stdout.Len())
}
