package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"aegis-server-go/internal/domain/oauth/keys"
	"aegis-server-go/internal/domain/oauth/model"
	"aegis-server-go/internal/platform/errors"
)

// SignedToken pairs a compact JWT with the claims that went into it.
type SignedToken struct {
	Token  model.Token
	Claims map[string]any
}

// Generator mints and verifies the service's RS256 tokens.
type Generator struct {
	keys       *keys.Manager
	issuer     string
	customizer Customizer
	now        func() time.Time
}

// Option tweaks a Generator. Only tests need these.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(km *keys.Manager, issuer string, customizer Customizer, opts ...Option) *Generator {
	g := &Generator{
		keys:       km,
		issuer:     issuer,
		customizer: customizer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IssueAccessToken mints an access token for the principal on behalf of the
// client. Claims contributed by the customizer are merged in before signing;
// the registered claims always win on collision.
func (g *Generator) IssueAccessToken(ctx context.Context, principal string, client model.Client, scopes []string) (SignedToken, error) {
	const op = "token.IssueAccessToken"

	claims := map[string]any{}
	if g.customizer != nil {
		extra, err := g.customizer.Customize(ctx, CustomizerContext{
			PrincipalName: principal,
			Client:        client,
		})
		if err != nil {
			return SignedToken{}, errors.Wrap(errors.KindOAuth, op, "customize claims", err)
		}
		for k, v := range extra {
			claims[k] = v
		}
	}

	issuedAt := g.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(client.AccessTokenTTL)

	claims["iss"] = g.issuer
	claims["sub"] = principal
	claims["iat"] = issuedAt.Unix()
	claims["exp"] = expiresAt.Unix()
	if len(scopes) > 0 {
		claims["scope"] = model.JoinScopes(scopes)
	}

	value, err := g.sign(claims)
	if err != nil {
		return SignedToken{}, errors.Wrap(errors.KindOAuth, op, "sign access token", err)
	}

	return SignedToken{
		Token:  model.Token{Value: value, IssuedAt: issuedAt, ExpiresAt: expiresAt},
		Claims: claims,
	}, nil
}

// IssueRefreshToken mints a refresh token bound to the client. Refresh tokens
// are opaque to resource servers; only this service ever parses them back.
func (g *Generator) IssueRefreshToken(principal string, client model.Client) (SignedToken, error) {
	const op = "token.IssueRefreshToken"

	issuedAt := g.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(client.RefreshTokenTTL)

	claims := map[string]any{
		"iss":           g.issuer,
		"sub":           principal,
		"iat":           issuedAt.Unix(),
		"exp":           expiresAt.Unix(),
		"jti":           uuid.NewString(),
		"applicationId": client.ID,
		"token_use":     "refresh",
	}

	value, err := g.sign(claims)
	if err != nil {
		return SignedToken{}, errors.Wrap(errors.KindOAuth, op, "sign refresh token", err)
	}

	return SignedToken{
		Token:  model.Token{Value: value, IssuedAt: issuedAt, ExpiresAt: expiresAt},
		Claims: claims,
	}, nil
}

// Parse verifies a compact token signed by this service and returns its
// claims. Expired or tampered tokens fail verification.
func (g *Generator) Parse(value string) (jwt.MapClaims, error) {
	const op = "token.Parse"

	parsed, err := jwt.Parse(value, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New(errors.KindOAuth, op, "unexpected signing method")
		}
		kid, _ := t.Header["kid"].(string)
		return g.keys.VerificationKey(kid)
	}, jwt.WithIssuer(g.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(errors.KindOAuth, op, "verify token", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errors.KindOAuth, op, "unexpected claims shape")
	}
	return claims, nil
}

func (g *Generator) sign(claims map[string]any) (string, error) {
	kid, private := g.keys.ActiveSigningKey()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	tok.Header["kid"] = kid

	return tok.SignedString(private)
}
