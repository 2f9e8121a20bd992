// Package auth validates the bearer tokens the scoring API requires,
// adapted from the teacher's utils/token.go JWT helpers to carry the
// sieve's tenant/actor/scope claims instead of a single numeric user ID.
package auth

import (
	"fmt"
	"os"

	"github.com/dgrijalva/jwt-go"

	"github.com/mmdatafocus/invoice-sieve/internal/apperr"
)

// Claims is the sieve's JWT payload: a tenant identifier, the acting
// principal, and a coarse set of scopes (e.g. "score:write",
// "decision:read").
type Claims struct {
	TenantID string   `json:"tenant_id"`
	Actor    string   `json:"actor"`
	Scopes   []string `json:"scopes"`
	IsAdmin  bool     `json:"is_admin"`
	jwt.StandardClaims
}

var jwtSecret = []byte(getJwtSecret())
var jwtAudience = os.Getenv("JWT_AUDIENCE")
var jwtIssuer = os.Getenv("JWT_ISSUER")

// configuredTenant is the sieve's own tenant identifier, read once from
// TENANT_ID at process start and treated as a read-only singleton for
// the life of the process. An empty value disables the tenant-mismatch
// check entirely, which is only acceptable for local/dev use.
var configuredTenant = os.Getenv("TENANT_ID")

// ConfiguredTenant returns the tenant identifier this deployment was
// started with, or "" if TENANT_ID was not set.
func ConfiguredTenant() string {
	return configuredTenant
}

func getJwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "invoice-sieve-dev-secret"
	}
	return secret
}

// DevTokenEnabled reports whether the literal "devtoken" bearer value
// is accepted as a development bypass, per spec.md §6.
func DevTokenEnabled() bool {
	return os.Getenv("DEV_TOKEN_ENABLED") == "true"
}

// DevClaims is the fixed principal assigned to a devtoken request.
func DevClaims() *Claims {
	return &Claims{
		TenantID: "dev-tenant",
		Actor:    "dev",
		Scopes:   []string{"score:write", "decision:read"},
		IsAdmin:  true,
	}
}

// Validate parses and verifies a bearer token string, returning its
// claims. A literal "devtoken" is accepted only when DevTokenEnabled
// returns true.
func Validate(token string) (*Claims, error) {
	if token == "devtoken" {
		if !DevTokenEnabled() {
			return nil, apperr.ErrAuth
		}
		claims := DevClaims()
		if configuredTenant != "" && claims.TenantID != configuredTenant {
			return nil, apperr.ErrTenantMismatch
		}
		return claims, nil
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.ErrAuth
	}
	if claims.TenantID == "" {
		return nil, apperr.ErrAuth
	}
	if jwtAudience != "" && !claims.VerifyAudience(jwtAudience, true) {
		return nil, apperr.ErrAuth
	}
	if jwtIssuer != "" && !claims.VerifyIssuer(jwtIssuer, true) {
		return nil, apperr.ErrAuth
	}
	if configuredTenant != "" && claims.TenantID != configuredTenant {
		return nil, apperr.ErrTenantMismatch
	}
	return claims, nil
}
