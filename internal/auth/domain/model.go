// Package domain contains the caller identity resolved from a bearer token.
package domain

import (
	"context"

	"github.com/smallbiznis/rfacto/internal/authorization"
)

// DevEmail is the identity of every request in dev mode.
const DevEmail = "local-dev@rfacto.test"

// TokenClaims are the verified fields the rest of the app reads.
type TokenClaims struct {
	Subject string
	Email   string
	Name    string
	Scopes  []string
}

// Identity is the authenticated caller.
type Identity struct {
	Email   string             `json:"email"`
	Name    string             `json:"name"`
	Role    authorization.Role `json:"role"`
	Subject string             `json:"subject,omitempty"`
}

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (TokenClaims, error)
}

// RoleSource maps a verified email to its role.
type RoleSource interface {
	RoleFor(ctx context.Context, email string) (authorization.Role, error)
}

type Service interface {
	// Authenticate resolves the Authorization header value of a request.
	Authenticate(ctx context.Context, header string) (*Identity, error)
	DevMode() bool
}
