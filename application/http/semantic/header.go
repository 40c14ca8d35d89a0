package semantic

import (
	"maps"
	"slices"
	"strings"
)

// Headers is a field multimap with canonicalized names.
// The zero value is ready to use.
type Headers struct{ underlying map[string][]string }

// NewHeaders copies initial. Names that collide once canonicalized are
// merged in the sorted order of their raw spelling.
func NewHeaders(initial map[string][]string) Headers {
	clone := make(map[string][]string, len(initial))
	for _, raw := range slices.Sorted(maps.Keys(initial)) {
		k, v := canonical(raw), initial[raw]

		slice := make([]string, len(v))
		copy(slice, v)

		clone[k] = append(clone[k], slice...)
	}

	return Headers{underlying: clone}
}

// Fields returns a copy of every name and its values.
func (h *Headers) Fields() map[string][]string {
	clone := make(map[string][]string, len(h.underlying))
	for k, v := range h.underlying {
		sliceClone := make([]string, len(v))
		copy(sliceClone, v)

		clone[k] = sliceClone
	}

	return clone
}

// Get assumes the field is a singleton field.
// Even if key has multiple values, it will only return the first element of values.
// For list-based field, use [Headers.Values] or [Headers.Join].
func (h *Headers) Get(key string) (value string, ok bool) {
	v, ok := h.underlying[canonical(key)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (h *Headers) Values(key string) (values []string, ok bool) {
	values, ok = h.underlying[canonical(key)]
	return
}

// Join folds every value of key into one comma separated line.
func (h *Headers) Join(key string) (value string, ok bool) {
	values, ok := h.Values(key)
	if !ok {
		return "", false
	}
	return strings.Join(values, ", "), true
}

func (h *Headers) Has(key string) bool {
	_, ok := h.underlying[canonical(key)]
	return ok
}

// Set assumes the field is a singleton field.
// It overwrites existing value instead of appending to it.
// For list-based field, use [Headers.Add].
func (h *Headers) Set(key, value string) {
	h.init()
	h.underlying[canonical(key)] = []string{value}
}

func (h *Headers) Add(key, value string) {
	h.init()
	key = canonical(key)
	h.underlying[key] = append(h.underlying[key], value)
}

func (h *Headers) Del(key string) {
	delete(h.underlying, canonical(key))
}

func (h *Headers) Len() int { return len(h.underlying) }

func (h *Headers) Clone() Headers { return Headers{underlying: h.Fields()} }

func (h *Headers) init() {
	if h.underlying == nil {
		h.underlying = make(map[string][]string)
	}
}

func canonical(s string) string {
	if isToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTChar(s[i]) {
			return false
		}
	}
	return true
}

func isTChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
