package client

import (
	"time"

	"syncnet/lib/pool"
)

type Options struct {
	Conn     ConnOptions
	Timeout  TimeoutOptions
	Redirect RedirectOptions
	Pool     PoolOptions

	Listeners Listeners
}

type ConnOptions struct {
	MaxRequests        int
	MaxRequestsPerHost int

	// RequestsPerSecond limits how fast sessions are admitted.
	// Zero means no limit.
	RequestsPerSecond float64
	Burst             int
}

type TimeoutOptions struct {
	Connect time.Duration
	// Read is the inactivity limit between body chunks.
	Read time.Duration
	// Write is the inactivity limit while the request is written and the
	// response headers are awaited. It restarts on every upload read.
	Write time.Duration

	// ConnectBackoffInit is the first polling step while connecting.
	ConnectBackoffInit time.Duration
}

// RedirectOptions follow every redirect unless told otherwise, so the zero
// value matches DefaultOptions.
type RedirectOptions struct {
	NoFollow       bool
	NoFollowScheme bool

	// Policy overrides NoFollow and NoFollowScheme when set.
	Policy RedirectPolicy
}

type PoolOptions struct {
	// Buffers hold body chunks while they are read from the engine.
	Buffers *pool.BufferPool
	// BodyBuffers are scratch space for draining a whole body.
	BodyBuffers *pool.BufferPool
	Executors   *pool.ExecutorPool
}

const (
	defaultTimeout            = 30 * time.Second
	defaultMaxRequests        = 64
	defaultMaxRequestsPerHost = 16
	defaultBackoffInit        = 2 * time.Second
)

func DefaultOptions() Options {
	return Options{
		Conn: ConnOptions{
			MaxRequests:        defaultMaxRequests,
			MaxRequestsPerHost: defaultMaxRequestsPerHost,
		},
		Timeout: TimeoutOptions{
			Connect:            defaultTimeout,
			Read:               defaultTimeout,
			Write:              defaultTimeout,
			ConnectBackoffInit: defaultBackoffInit,
		},
	}
}

// withDefaults fills zero limits and missing pools. Zero timeouts stay
// zero and mean no timeout.
func (o Options) withDefaults() Options {
	if o.Conn.MaxRequests <= 0 {
		o.Conn.MaxRequests = defaultMaxRequests
	}
	if o.Conn.MaxRequestsPerHost <= 0 {
		o.Conn.MaxRequestsPerHost = defaultMaxRequestsPerHost
	}
	if o.Timeout.ConnectBackoffInit <= 0 {
		o.Timeout.ConnectBackoffInit = defaultBackoffInit
	}
	if o.Pool.Buffers == nil {
		o.Pool.Buffers = pool.DefaultBuffers()
	}
	if o.Pool.BodyBuffers == nil {
		o.Pool.BodyBuffers = pool.DefaultBodyBuffers()
	}
	if o.Pool.Executors == nil {
		o.Pool.Executors = pool.NewExecutorPool(o.Conn.MaxRequests)
	}
	if o.Redirect.Policy == nil {
		o.Redirect.Policy = DefaultRedirect{
			Follow:       !o.Redirect.NoFollow,
			FollowScheme: !o.Redirect.NoFollowScheme,
		}
	}
	return o
}
