package semantic

import (
	"regexp"
	"strconv"
	"strings"
)

var contentTypeCharset = regexp.MustCompile(`charset=([^;\s]*)`)

var plainTextContentTypes = []string{"text/html", "application/json"}

// Response is produced once per request. Body must be closed.
type Response struct {
	Protocol Protocol
	URL      string
	Status   Status
	Headers  Headers
	Body     *ResponseBody
}

func (r *Response) IsSuccessful() bool { return r.Status.IsSuccessful() }

// ContentLength returns -1 when unknown.
func (r *Response) ContentLength() int64 {
	v, ok := r.Headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// ContentType returns the media type without parameters.
func (r *Response) ContentType() (string, bool) {
	v, ok := r.Headers.Get("Content-Type")
	if !ok {
		return "", false
	}
	mediaType, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(mediaType), true
}

func (r *Response) ContentCharset() (string, bool) {
	v, ok := r.Headers.Get("Content-Type")
	if !ok {
		return "", false
	}
	m := contentTypeCharset.FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (r *Response) IsBodyPlainText() bool {
	mediaType, ok := r.ContentType()
	if !ok {
		return false
	}
	for _, t := range plainTextContentTypes {
		if strings.EqualFold(mediaType, t) {
			return true
		}
	}
	return false
}

// ReadAndClose reads the whole body and closes it.
func (r *Response) ReadAndClose() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return r.Body.AsBytes()
}

func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
