// Package clientip resolves, masks and hashes client network addresses.
//
// Proxy headers are consulted only when explicitly trusted; otherwise the
// transport-level remote address wins, since forwarded headers are trivially
// spoofable by the client.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when no valid address can be resolved.
const Unknown = "0.0.0.0"

// Resolver extracts the client address from an HTTP request.
type Resolver struct {
	// TrustProxy enables the X-Forwarded-For / X-Real-IP header chain.
	// Leave false unless the service sits behind a proxy you control.
	TrustProxy bool
}

// Resolve returns the client's IP address for the request.
// Header priority when proxies are trusted:
//  1. X-Forwarded-For (first valid IP)
//  2. X-Real-IP
//  3. RemoteAddr
func (res Resolver) Resolve(r *http.Request) string {
	if res.TrustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			for ip := range strings.SplitSeq(forwarded, ",") {
				if parsed := parseIP(ip); parsed != "" {
					return parsed
				}
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := parseIP(host); ip != "" {
		return ip
	}
	return Unknown
}

// Mask removes trailing precision from an address for display: the last IPv4
// octet or the final IPv6 segment is replaced. Exact-match aggregation uses
// the keyed hash instead (see Hasher).
func Mask(addr string) string {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return Unknown
	}

	if v4 := ip.To4(); v4 != nil {
		parts := strings.Split(v4.String(), ".")
		parts[len(parts)-1] = "x"
		return strings.Join(parts, ".")
	}

	segments := strings.Split(ip.String(), ":")
	segments[len(segments)-1] = "x"
	return strings.Join(segments, ":")
}

// parseIP validates and normalizes an IP address string.
// Returns empty string if the IP is invalid.
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	return ip.String()
}
