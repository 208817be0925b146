package model

import (
	"strings"
	"time"
)

// GrantType enumerates the token-exchange modes the service understands.
type GrantType string

const (
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
)

// KnownGrantType reports whether the raw value names a supported grant.
func KnownGrantType(raw string) (GrantType, bool) {
	switch GrantType(raw) {
	case GrantPassword, GrantRefreshToken, GrantClientCredentials:
		return GrantType(raw), true
	}
	return "", false
}

// Client is a registered application allowed to call the token endpoint.
// It is read-only from the issuance pipeline's perspective.
type Client struct {
	ID              string
	Name            string
	SecretHash      string
	GrantTypes      []GrantType
	Scopes          []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AllowsGrant reports whether the client may use the given grant type.
func (c Client) AllowsGrant(gt GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the scope is within the client's configured set.
func (c Client) AllowsScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Account is a resource owner. The pipeline only ever reads accounts.
type Account struct {
	ID       int64
	Username string
}

// Token is one issued token value with its validity window.
type Token struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authorization records one successful token issuance. It is immutable
// once saved; a refresh creates a superseding record.
type Authorization struct {
	ID            string         `json:"id"`
	ClientID      string         `json:"client_id"`
	PrincipalName string         `json:"principal_name"`
	GrantType     GrantType      `json:"grant_type"`
	Scopes        []string       `json:"scopes"`
	AccessToken   Token          `json:"access_token"`
	RefreshToken  *Token         `json:"refresh_token,omitempty"`
	Claims        map[string]any `json:"claims,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Expired reports whether every token in the record has expired.
func (a Authorization) Expired(now time.Time) bool {
	if now.Before(a.AccessToken.ExpiresAt) {
		return false
	}
	if a.RefreshToken != nil && now.Before(a.RefreshToken.ExpiresAt) {
		return false
	}
	return true
}

// JoinScopes renders a scope set as the space-delimited wire form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// SplitScopes parses the space-delimited wire form into a scope set.
func SplitScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Logger provides the minimal logging contract required by the oauth domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
