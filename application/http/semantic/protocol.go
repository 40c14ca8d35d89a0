package semantic

import "strings"

type Protocol string

const (
	ProtocolHTTP1_1 Protocol = "http/1.1"
	ProtocolHTTP2   Protocol = "h2"
	ProtocolQUIC    Protocol = "quic"
	ProtocolSPDY    Protocol = "spdy"
)

// ParseProtocol maps a negotiated protocol name (ALPN or engine specific)
// to a [Protocol]. Unknown names fall back to HTTP/1.1.
func ParseProtocol(name string) Protocol {
	lower := strings.ToLower(name)
	switch {
	case lower == "h2", lower == "http/2", lower == "http/2.0":
		return ProtocolHTTP2
	case lower == "http/1.1":
		return ProtocolHTTP1_1
	case strings.Contains(lower, "quic"), strings.Contains(lower, "h3-"), lower == "h3":
		return ProtocolQUIC
	case strings.Contains(lower, "spdy"):
		return ProtocolSPDY
	}
	return ProtocolHTTP1_1
}
