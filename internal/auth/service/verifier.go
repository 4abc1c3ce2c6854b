package service

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	UPN               string `json:"upn,omitempty"`
	Name              string `json:"name,omitempty"`
	Scope             string `json:"scp,omitempty"`
}

// HMACVerifier accepts HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret   []byte
	audience string
	issuer   string
	clock    clock.Clock
}

func NewVerifier(cfg config.Config, clk clock.Clock) authdomain.Verifier {
	return &HMACVerifier{
		secret:   []byte(cfg.AuthJWTSecret),
		audience: cfg.AuthAudience,
		issuer:   cfg.AuthIssuer,
		clock:    clk,
	}
}

func (v *HMACVerifier) Verify(_ context.Context, raw string) (authdomain.TokenClaims, error) {
	if len(v.secret) == 0 {
		return authdomain.TokenClaims{}, authdomain.ErrNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return authdomain.TokenClaims{}, verifyReason(err)
	}

	email := claims.PreferredUsername
	if email == "" {
		email = claims.Email
	}
	if email == "" {
		email = claims.UPN
	}
	return authdomain.TokenClaims{
		Subject: claims.Subject,
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Name:    claims.Name,
		Scopes:  strings.Fields(claims.Scope),
	}, nil
}

func verifyReason(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return authdomain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return authdomain.ErrUnexpectedAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return authdomain.ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return authdomain.ErrInvalidSignature
	default:
		return authdomain.ErrTokenInvalid
	}
}
