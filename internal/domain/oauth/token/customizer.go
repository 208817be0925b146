package token

import (
	"context"
	"errors"

	"aegis-server-go/internal/domain/oauth/accounts"
	"aegis-server-go/internal/domain/oauth/model"
)

// CustomizerContext carries the facts a customizer may derive claims from.
type CustomizerContext struct {
	PrincipalName string
	Client        model.Client
}

// Customizer contributes extra claims to every access token.
type Customizer interface {
	Customize(ctx context.Context, cc CustomizerContext) (map[string]any, error)
}

// AccountClaims decorates access tokens with the issuing application id and,
// when the principal maps to a stored account, its numeric account id.
type AccountClaims struct {
	lookup accounts.Lookup
	logger model.Logger
}

func NewAccountClaims(lookup accounts.Lookup, logger model.Logger) *AccountClaims {
	return &AccountClaims{lookup: lookup, logger: logger}
}

func (c *AccountClaims) Customize(ctx context.Context, cc CustomizerContext) (map[string]any, error) {
	claims := map[string]any{
		"applicationId": cc.Client.ID,
	}

	acct, err := c.lookup.FindByUsername(ctx, cc.PrincipalName)
	switch {
	case err == nil:
		claims["accountId"] = acct.ID
	case errors.Is(err, accounts.ErrAccountNotFound):
		// Client-credentials principals have no account row. Nothing to add.
		if c.logger != nil {
			c.logger.Debug("no account row for principal %s, skipping accountId claim", cc.PrincipalName)
		}
	default:
		if c.logger != nil {
			c.logger.Error("account lookup for principal %s: %v", cc.PrincipalName, err)
		}
		return nil, err
	}

	return claims, nil
}
