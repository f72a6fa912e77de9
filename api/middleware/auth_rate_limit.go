package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/licensedesk/api/responses"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

// maxRateLimitBody bounds how much of a login body is buffered to find the username.
const maxRateLimitBody = 64 << 10

// RateLimitStore counts attempts in fixed windows.
type RateLimitStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one credential surface by client address and
// by the username being tried.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	usernameLimit int
	trustProxy    bool
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, usernameLimit int, trustProxy bool) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:          name,
		window:        window,
		ipLimit:       ipLimit,
		usernameLimit: usernameLimit,
		trustProxy:    trustProxy,
	}
}

// attemptKey is one dimension an attempt is counted under. logField names
// the log field that carries value.
type attemptKey struct {
	dimension string
	value     string
	limit     int
	logField  string
}

func (p AuthRateLimitPolicy) active() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

func (p AuthRateLimitPolicy) scope(k attemptKey) string {
	return p.name + ":" + k.dimension + ":" + k.value
}

// attemptKeys derives the counters a request is charged against. Usernames
// are hashed before they reach redis or the log.
func (p AuthRateLimitPolicy) attemptKeys(r *http.Request) ([]attemptKey, error) {
	var keys []attemptKey
	if p.ipLimit > 0 {
		if ip := ClientIP(r, p.trustProxy); ip != "" {
			keys = append(keys, attemptKey{dimension: "ip", value: ip, limit: p.ipLimit, logField: "ip"})
		}
	}
	if p.usernameLimit > 0 {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
		if err != nil {
			return nil, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if username := loginUsername(body); username != "" {
			keys = append(keys, attemptKey{dimension: "username", value: sha256Hex(username), limit: p.usernameLimit, logField: "username_hash"})
		}
	}
	return keys, nil
}

// AuthRateLimit answers 429 once any counter for the request is over its
// limit. A nil store or an inactive policy leaves the route unthrottled.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			keys, err := policy.attemptKeys(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			for _, k := range keys {
				allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(k), int64(k.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					policy.reject(ctx, logg, w, k, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p AuthRateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, k attemptKey, count int64) {
	retryAfter := int(p.window.Seconds())
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":         p.name,
			"scope":          k.dimension,
			k.logField:       k.value,
			"attempts":       count,
			"limit":          k.limit,
			"window_seconds": retryAfter,
		})
		logg.Warn(logCtx, "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts"))
}

// loginUsername pulls the normalized username out of a login body. Bodies
// that are not JSON count only against the address.
func loginUsername(payload []byte) string {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Username))
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
