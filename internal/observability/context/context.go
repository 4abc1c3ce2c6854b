package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}

type actor struct {
	email string
	role  string
}

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the authenticated caller for log enrichment.
func WithActor(ctx context.Context, email, role string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		email: strings.TrimSpace(email),
		role:  strings.TrimSpace(role),
	})
}

func ActorFromContext(ctx context.Context) (email string, role string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.email, v.role
	}
	return "", ""
}
