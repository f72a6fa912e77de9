package middleware

import (
	"context"

	"github.com/angelmondragon/licensedesk/pkg/enums"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxUsername contextKey = "username"
	ctxRole     contextKey = "actor_role"
)

// Identity is what the bearer token asserted about the caller.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Role     enums.Role
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func UsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUsername).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext collects the caller fields seeded by Auth. A malformed
// user id yields uuid.Nil.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := uuid.Parse(UserIDFromContext(ctx))
	return Identity{
		UserID:   id,
		Username: UsernameFromContext(ctx),
		Role:     enums.Role(RoleFromContext(ctx)),
	}
}

// WithIdentity injects the caller into the context.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, ident.UserID.String())
	ctx = context.WithValue(ctx, ctxUsername, ident.Username)
	return context.WithValue(ctx, ctxRole, string(ident.Role))
}
