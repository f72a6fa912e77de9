package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP resolves the caller address. X-Forwarded-For and X-Real-IP are
// consulted only when trustProxy is set, and only values that parse as IPs
// are accepted from them. IPv4-mapped IPv6 addresses are unmapped.
func ClientIP(r *http.Request, trustProxy bool) string {
	if r == nil {
		return ""
	}
	if trustProxy {
		for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if addr, ok := parseIP(hop); ok {
				return addr
			}
		}
		if addr, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return addr
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if addr, ok := parseIP(host); ok {
		return addr
	}
	return host
}

func parseIP(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return addr.Unmap().WithZone("").String(), true
}
