package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/licensedesk/api/responses"
	pkgAuth "github.com/angelmondragon/licensedesk/pkg/auth"
	"github.com/angelmondragon/licensedesk/pkg/config"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

// TokenSource selects where Auth looks for the access token.
type TokenSource int

const (
	// TokenFromHeader reads only the Authorization header.
	TokenFromHeader TokenSource = iota
	// TokenFromHeaderOrQuery also accepts ?token=, for clients that cannot set
	// headers on a websocket upgrade.
	TokenFromHeaderOrQuery
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, source TokenSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" && source == TokenFromHeaderOrQuery {
				token = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
			})
			if logg != nil {
				ctx = logg.WithActor(ctx, claims.UserID.String(), claims.Username, string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header, tolerating a
// missing "Bearer" scheme.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
