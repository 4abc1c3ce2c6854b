package domain

import "errors"

var (
	ErrMissingBearer      = errors.New("missing_bearer_token")
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenInvalid       = errors.New("token_invalid")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrUnexpectedAudience = errors.New("unexpected_audience")
	ErrIssuerMismatch     = errors.New("issuer_mismatch")
	ErrEmailMissing       = errors.New("email_missing")
	ErrInsufficientScopes = errors.New("insufficient_scopes")
	ErrNotConfigured      = errors.New("auth_not_configured")
)
