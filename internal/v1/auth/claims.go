package auth

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/utils/set"
)

// Scope is a permission grant carried in a client's token.
type Scope string

const (
	// ScopeDocWrite lets a client submit ops against the document.
	ScopeDocWrite Scope = "doc:write"
	// ScopeSummaryWrite lets a client submit summarization ops.
	ScopeSummaryWrite Scope = "summary:write"
	// ScopeDocRead lets a client observe a document without writing to it.
	ScopeDocRead Scope = "doc:read"
)

// Claims is the gateway-facing view of a validated token: who the client
// is, which document they're bound to, what they're allowed to do, and
// until when.
type Claims struct {
	TenantID   string
	DocumentID string
	User       string
	Scopes     set.Set[Scope]
	ExpiresAt  time.Time
}

// CanWrite reports whether the claims grant document-write access.
func (c *Claims) CanWrite() bool {
	return c != nil && c.Scopes.Has(ScopeDocWrite)
}

// CanSummarize reports whether the claims grant summary-write access.
func (c *Claims) CanSummarize() bool {
	return c != nil && c.Scopes.Has(ScopeSummaryWrite)
}

// CanRead reports whether the claims grant at least read access. Any
// write scope implies read.
func (c *Claims) CanRead() bool {
	return c != nil && (c.Scopes.Has(ScopeDocRead) || c.CanWrite() || c.CanSummarize())
}

// ScopeStrings returns the claims' scopes as plain strings, for embedding
// in a wire-level client descriptor.
func (c *Claims) ScopeStrings() []string {
	if c == nil {
		return nil
	}
	raw := c.Scopes.UnsortedList()
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, string(s))
	}
	return out
}

// TokenValidator is the subset of Validator/MockValidator this package
// needs to turn a raw bearer token into CustomClaims. Both concrete types
// already satisfy it.
type TokenValidator interface {
	ValidateToken(tokenString string) (*CustomClaims, error)
}

// ValidateClaims parses tokenString with validator and checks that it is
// bound to the requested tenantID/documentID. A token with an empty
// TenantID/DocumentID is rejected: every document grant must be explicit.
func ValidateClaims(validator TokenValidator, tokenString, tenantID, documentID string) (*Claims, error) {
	custom, err := validator.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if custom.TenantID == "" || custom.DocumentID == "" {
		return nil, fmt.Errorf("token carries no document grant")
	}
	if custom.TenantID != tenantID || custom.DocumentID != documentID {
		return nil, fmt.Errorf("token is not valid for tenant %q document %q", tenantID, documentID)
	}

	scopes := set.New[Scope]()
	for _, raw := range strings.Fields(custom.Scope) {
		scopes.Insert(Scope(raw))
	}

	var expiresAt time.Time
	if custom.ExpiresAt != nil {
		expiresAt = custom.ExpiresAt.Time
	}

	return &Claims{
		TenantID:   custom.TenantID,
		DocumentID: custom.DocumentID,
		User:       custom.Subject,
		Scopes:     scopes,
		ExpiresAt:  expiresAt,
	}, nil
}

// TokenLib adapts a TokenValidator (Validator or MockValidator) to the
// two-call claims/expiration contract the gateway's connect pipeline uses,
// so gateway code depends only on this struct's method set and never
// imports the underlying JWT/JWKS machinery directly.
type TokenLib struct {
	Validator TokenValidator
}

// ValidateClaims delegates to the package-level ValidateClaims using the
// wrapped validator.
func (t *TokenLib) ValidateClaims(token, tenantID, documentID string) (*Claims, error) {
	return ValidateClaims(t.Validator, token, tenantID, documentID)
}

// ValidateExpiration delegates to the package-level ValidateExpiration.
func (t *TokenLib) ValidateExpiration(claims *Claims, maxLifetime time.Duration) (time.Duration, error) {
	return ValidateExpiration(claims, maxLifetime)
}

// ValidateExpiration rejects claims whose ExpiresAt deadline has already
// passed and otherwise returns the remaining time-to-live, capped at
// maxLifetime. A claims with a zero ExpiresAt is treated as never-expiring
// and gets maxLifetime, matching tokens issued without an
// isTokenExpiryEnabled requirement.
func ValidateExpiration(claims *Claims, maxLifetime time.Duration) (time.Duration, error) {
	if claims == nil {
		return 0, fmt.Errorf("nil claims")
	}
	if claims.ExpiresAt.IsZero() {
		return maxLifetime, nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return 0, fmt.Errorf("token expired at %s", claims.ExpiresAt)
	}
	if ttl > maxLifetime {
		ttl = maxLifetime
	}
	return ttl, nil
}
