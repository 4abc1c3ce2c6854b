// Package actorcontext carries the authenticated caller through request contexts.
package actorcontext

import (
	"context"
	"strings"
)

// Identity is the caller resolved by authentication.
type Identity struct {
	Email    string
	Name     string
	Role     string
	MemberID int64
	// Source is "token", "dev", "cli" or "system".
	Source string
}

// SystemEmail attributes writes made by background jobs and the operator CLI.
const SystemEmail = "system@rfacto.local"

type identityKey struct{}

type requestMetaKey struct{}

type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller, if authentication ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.Email != ""
}

// ActorEmail returns the caller email, or SystemEmail outside a request.
func ActorEmail(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.Email
	}
	return SystemEmail
}

// System returns ctx tagged with the system identity at the given role.
func System(ctx context.Context, role string) context.Context {
	return WithIdentity(ctx, Identity{Email: SystemEmail, Role: role, Source: "system"})
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
