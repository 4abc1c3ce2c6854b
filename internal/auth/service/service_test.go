package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"go.uber.org/zap"
)

const testSecret = "s3cret"

type staticRoles map[string]authorization.Role

func (r staticRoles) RoleFor(_ context.Context, email string) (authorization.Role, error) {
	if role, ok := r[email]; ok {
		return role, nil
	}
	return authorization.RoleLecture, nil
}

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = now.Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func newTestService(cfg config.Config) *Service {
	if cfg.AuthJWTSecret == "" {
		cfg.AuthJWTSecret = testSecret
	}
	verifier := NewVerifier(cfg, clock.NewFakeClock(now))
	return New(zap.NewNop(), cfg, verifier, staticRoles{"admin@rfacto.test": authorization.RoleAdmin})
}

func TestAuthenticateResolvesRole(t *testing.T) {
	svc := newTestService(config.Config{AuthAudience: "api://rfacto", AuthIssuer: "https://login.example"})
	token := sign(t, testSecret, jwt.MapClaims{
		"sub":                "abc",
		"aud":                "api://rfacto",
		"iss":                "https://login.example",
		"preferred_username": " Admin@RFACTO.test ",
		"name":               "Ada",
	})

	id, err := svc.Authenticate(context.Background(), "Bearer "+token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.Email != "admin@rfacto.test" || id.Role != authorization.RoleAdmin || id.Name != "Ada" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestAuthenticateEmailFallbacks(t *testing.T) {
	svc := newTestService(config.Config{})
	for _, claim := range []string{"email", "upn"} {
		token := sign(t, testSecret, jwt.MapClaims{claim: "someone@rfacto.test"})
		id, err := svc.Authenticate(context.Background(), "Bearer "+token)
		if err != nil {
			t.Fatalf("%s: %v", claim, err)
		}
		if id.Email != "someone@rfacto.test" || id.Role != authorization.RoleLecture {
			t.Fatalf("%s: unexpected identity %+v", claim, id)
		}
	}
}

func TestAuthenticateFailures(t *testing.T) {
	svc := newTestService(config.Config{AuthAudience: "api://rfacto", AuthRequiredScopes: []string{"claims.write"}})
	valid := jwt.MapClaims{"aud": "api://rfacto", "email": "a@b.ca", "scp": "claims.read claims.write"}

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{name: "no header", header: "", want: authdomain.ErrMissingBearer},
		{name: "basic auth", header: "Basic Zm9vOmJhcg==", want: authdomain.ErrMissingBearer},
		{name: "garbage", header: "Bearer not.a.jwt", want: authdomain.ErrTokenInvalid},
		{name: "expired", header: "Bearer " + sign(t, testSecret, jwt.MapClaims{"aud": "api://rfacto", "email": "a@b.ca", "exp": now.Add(-time.Minute).Unix()}), want: authdomain.ErrTokenExpired},
		{name: "wrong secret", header: "Bearer " + sign(t, "other", jwt.MapClaims{"aud": "api://rfacto", "email": "a@b.ca"}), want: authdomain.ErrInvalidSignature},
		{name: "wrong audience", header: "Bearer " + sign(t, testSecret, jwt.MapClaims{"aud": "api://other", "email": "a@b.ca"}), want: authdomain.ErrUnexpectedAudience},
		{name: "no email", header: "Bearer " + sign(t, testSecret, jwt.MapClaims{"aud": "api://rfacto", "scp": "claims.write"}), want: authdomain.ErrEmailMissing},
		{name: "missing scope", header: "Bearer " + sign(t, testSecret, jwt.MapClaims{"aud": "api://rfacto", "email": "a@b.ca", "scp": "claims.read"}), want: authdomain.ErrInsufficientScopes},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tc.header)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := svc.Authenticate(context.Background(), "Bearer "+sign(t, testSecret, valid)); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
}

func TestDevModeAcceptsEverything(t *testing.T) {
	svc := newTestService(config.Config{DevMode: true})
	id, err := svc.Authenticate(context.Background(), "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.Email != authdomain.DevEmail || id.Role != authorization.RoleAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("bearer abc"); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q %v", tok, ok)
	}
	if _, ok := BearerToken("Bearer   "); ok {
		t.Fatalf("blank token accepted")
	}
}
