// Package domain resolves host names ahead of the system resolver.
package domain

import (
	"context"
	"maps"
	"net/netip"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ErrDomainNotFound = errors.New("domain not found")

type Lookuper interface {
	LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error)
}

// MapLookuper answers from a fixed table. Names are case-insensitive.
type MapLookuper struct {
	mu  sync.RWMutex
	set map[string][]netip.Addr
}

var _ Lookuper = (*MapLookuper)(nil)

func NewMapLookuper(set map[string][]netip.Addr) *MapLookuper {
	clone := make(map[string][]netip.Addr, len(set))
	for domain, addrs := range maps.All(set) {
		clone[strings.ToLower(domain)] = append([]netip.Addr(nil), addrs...)
	}
	return &MapLookuper{set: clone}
}

// ParseMapLookuper builds a table from "host=ip" entries.
func ParseMapLookuper(entries []string) (*MapLookuper, error) {
	set := make(map[string][]netip.Addr)
	for _, entry := range entries {
		host, raw, ok := strings.Cut(entry, "=")
		if !ok || host == "" {
			return nil, errors.Errorf("malformed entry %q, want host=ip", entry)
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %q", entry)
		}
		host = strings.ToLower(host)
		set[host] = append(set[host], addr)
	}
	return NewMapLookuper(set), nil
}

func (m *MapLookuper) LookupIP(_ context.Context, domain string) (addrs []netip.Addr, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addrs, ok := m.set[strings.ToLower(domain)]
	if !ok {
		return nil, ErrDomainNotFound
	}
	return append([]netip.Addr(nil), addrs...), nil
}

func (m *MapLookuper) Set(domain string, addrs []netip.Addr) {
	if len(addrs) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[strings.ToLower(domain)] = append([]netip.Addr(nil), addrs...)
}

func (m *MapLookuper) Del(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.set, strings.ToLower(domain))
}
