package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/angelmondragon/licensedesk/api/responses"
	"github.com/angelmondragon/licensedesk/pkg/config"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

// IPAllowlist rejects callers whose address is not listed. Loopback is always
// allowed. An empty list disables the check. Entries may be single addresses
// or CIDR ranges.
func IPAllowlist(cfg config.AccessConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	var (
		exact = map[string]struct{}{}
		nets  []*net.IPNet
	)
	for _, entry := range cfg.AllowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			exact[ip.String()] = struct{}{}
		}
	}
	enabled := len(exact) > 0 || len(nets) > 0

	allowed := func(raw string) bool {
		ip := net.ParseIP(raw)
		if ip == nil {
			return false
		}
		if ip.IsLoopback() {
			return true
		}
		if _, ok := exact[ip.String()]; ok {
			return true
		}
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, cfg.TrustProxyHeaders)
			if !allowed(ip) {
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "ip", ip)
					logg.Warn(ctx, "auth.ip_blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("access denied for IP %s", ip)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
