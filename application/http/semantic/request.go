package semantic

import (
	"maps"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

var requestCounter atomic.Uint64

// PayloadKey names an opaque value attached to a request.
type PayloadKey string

// RequestBody describes what to upload.
type RequestBody struct {
	ContentType string
	Content     []byte
}

func NewBody(contentType string, content []byte) *RequestBody {
	return &RequestBody{ContentType: contentType, Content: content}
}

func (b *RequestBody) ContentLength() int64 { return int64(len(b.Content)) }

// Request is read-only once built. Every request gets a process-wide,
// monotonically increasing id which identifies it while in flight.
type Request struct {
	id uint64

	Method  Method
	URL     *url.URL
	Headers Headers
	Body    *RequestBody

	payload map[PayloadKey]any
}

func NewRequest(method Method, rawURL string, headers map[string][]string, body *RequestBody) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing request url")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, errors.Errorf("url %q has no host", rawURL)
	}

	return &Request{
		id:      requestCounter.Add(1),
		Method:  method,
		URL:     u,
		Headers: NewHeaders(headers),
		Body:    body,
	}, nil
}

func Get(rawURL string, headers map[string][]string) (*Request, error) {
	return NewRequest(MethodGet, rawURL, headers, nil)
}

func Post(rawURL string, headers map[string][]string, body *RequestBody) (*Request, error) {
	return NewRequest(MethodPost, rawURL, headers, body)
}

func (r *Request) ID() uint64 { return r.id }

// Host is the lower-cased host name without port.
func (r *Request) Host() string { return strings.ToLower(r.URL.Hostname()) }

func (r *Request) Scheme() string { return strings.ToLower(r.URL.Scheme) }

func (r *Request) IsHTTP() bool  { return r.Scheme() == "http" }
func (r *Request) IsHTTPS() bool { return r.Scheme() == "https" }

func (r *Request) String() string { return r.URL.String() }

// WithPayload returns a copy carrying value under key. The copy is a new
// request and gets its own id.
func (r *Request) WithPayload(key PayloadKey, value any) *Request {
	payload := maps.Clone(r.payload)
	if payload == nil {
		payload = make(map[PayloadKey]any, 1)
	}
	payload[key] = value

	u := *r.URL
	return &Request{
		id:      requestCounter.Add(1),
		Method:  r.Method,
		URL:     &u,
		Headers: r.Headers.Clone(),
		Body:    r.Body,
		payload: payload,
	}
}

// PayloadOf returns the value stored under key if it has type V.
func PayloadOf[V any](r *Request, key PayloadKey) (V, bool) {
	v, ok := r.payload[key].(V)
	return v, ok
}
