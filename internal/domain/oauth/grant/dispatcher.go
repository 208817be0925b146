// Package grant implements the token endpoint issuance pipeline: client
// authentication, grant dispatch, scope narrowing, token minting and
// authorization persistence.
package grant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"aegis-server-go/internal/domain/eventbus"
	"aegis-server-go/internal/domain/oauth/accounts"
	"aegis-server-go/internal/domain/oauth/clients"
	"aegis-server-go/internal/domain/oauth/model"
	"aegis-server-go/internal/domain/oauth/store"
	"aegis-server-go/internal/domain/oauth/token"
	"aegis-server-go/internal/platform/observability"
)

// Request is a parsed token endpoint request. Credentials may arrive via
// Basic auth or form parameters; the transport layer normalizes both here.
type Request struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string
	Username     string
	Password     string
	RefreshToken string
}

// Response is the success payload for the token endpoint.
type Response struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Dispatcher routes token requests through client authentication and the
// per-grant handlers.
type Dispatcher struct {
	clients  clients.Registry
	accounts accounts.Verifier
	tokens   *token.Generator
	store    store.Store
	logger   model.Logger
}

func NewDispatcher(
	registry clients.Registry,
	verifier accounts.Verifier,
	generator *token.Generator,
	authStore store.Store,
	logger model.Logger,
) *Dispatcher {
	return &Dispatcher{
		clients:  registry,
		accounts: verifier,
		tokens:   generator,
		store:    authStore,
		logger:   logger,
	}
}

// Handle processes one token request. Failures are always returned as
// *model.ProtocolError so the transport can render them on the wire.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, error) {
	client, err := d.authenticateClient(ctx, req)
	if err != nil {
		return Response{}, err
	}

	grantType, ok := model.KnownGrantType(req.GrantType)
	if !ok {
		if req.GrantType == "" {
			return Response{}, model.InvalidRequest("grant_type is required")
		}
		return Response{}, model.UnsupportedGrantType()
	}
	if !client.AllowsGrant(grantType) {
		d.logger.Warn("client %s attempted disallowed grant %s", client.ID, grantType)
		return Response{}, model.UnauthorizedClient()
	}

	scopes, err := narrowScopes(client, req.Scope)
	if err != nil {
		return Response{}, err
	}

	switch grantType {
	case model.GrantPassword:
		return d.handlePassword(ctx, client, req, scopes)
	case model.GrantClientCredentials:
		return d.handleClientCredentials(ctx, client, scopes)
	case model.GrantRefreshToken:
		return d.handleRefreshToken(ctx, client, req, scopes)
	}
	return Response{}, model.UnsupportedGrantType()
}

// authenticateClient resolves and verifies the requesting client. Unknown
// ids burn a bcrypt comparison so their latency matches bad secrets.
func (d *Dispatcher) authenticateClient(ctx context.Context, req Request) (model.Client, error) {
	if req.ClientID == "" {
		return model.Client{}, model.InvalidClient()
	}

	client, err := d.clients.Resolve(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrUnknownClient) {
			clients.BurnSecretCheck(req.ClientSecret)
			return model.Client{}, model.InvalidClient()
		}
		d.logger.Error("resolve client %s: %v", req.ClientID, err)
		return model.Client{}, model.ServerError()
	}
	if !d.clients.VerifySecret(client, req.ClientSecret) {
		return model.Client{}, model.InvalidClient()
	}
	return client, nil
}

func (d *Dispatcher) handlePassword(ctx context.Context, client model.Client, req Request, scopes []string) (Response, error) {
	if req.Username == "" || req.Password == "" {
		return Response{}, model.InvalidRequest("username and password are required")
	}

	acct, err := d.accounts.VerifyResourceOwner(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrBadResourceOwnerCredentials) {
			return Response{}, model.InvalidGrant("resource owner authentication failed")
		}
		d.logger.Error("verify resource owner: %v", err)
		return Response{}, model.ServerError()
	}

	return d.issue(ctx, client, acct.Username, model.GrantPassword, scopes, true)
}

func (d *Dispatcher) handleClientCredentials(ctx context.Context, client model.Client, scopes []string) (Response, error) {
	// The client acts on its own behalf; no refresh token is issued.
	return d.issue(ctx, client, client.ID, model.GrantClientCredentials, scopes, false)
}

func (d *Dispatcher) handleRefreshToken(ctx context.Context, client model.Client, req Request, requested []string) (Response, error) {
	if req.RefreshToken == "" {
		return Response{}, model.InvalidRequest("refresh_token is required")
	}

	claims, err := d.tokens.Parse(req.RefreshToken)
	if err != nil {
		return Response{}, model.InvalidGrant("refresh token is invalid or expired")
	}
	if use, _ := claims["token_use"].(string); use != "refresh" {
		return Response{}, model.InvalidGrant("refresh token is invalid or expired")
	}
	if appID, _ := claims["applicationId"].(string); appID != client.ID {
		return Response{}, model.InvalidGrant("refresh token is invalid or expired")
	}

	prior, err := d.store.FindByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Response{}, model.InvalidGrant("refresh token is invalid or expired")
		}
		d.logger.Error("lookup refresh token: %v", err)
		return Response{}, model.ServerError()
	}

	// A refresh may narrow the originally granted scope, never widen it.
	scopes := prior.Scopes
	if req.Scope != "" {
		for _, s := range requested {
			if !contains(prior.Scopes, s) {
				return Response{}, model.InvalidScope("scope exceeds the original grant")
			}
		}
		scopes = requested
	}

	resp, err := d.issue(ctx, client, prior.PrincipalName, model.GrantRefreshToken, scopes, true)
	if err != nil {
		return Response{}, err
	}

	// Rotation: the superseded record and its tokens stop working.
	if err := d.store.Remove(ctx, prior.ID); err != nil {
		d.logger.Error("remove superseded authorization %s: %v", prior.ID, err)
	}
	return resp, nil
}

// issue mints the tokens, persists the authorization and publishes the
// audit event.
func (d *Dispatcher) issue(
	ctx context.Context,
	client model.Client,
	principal string,
	grantType model.GrantType,
	scopes []string,
	withRefresh bool,
) (Response, error) {
	access, err := d.tokens.IssueAccessToken(ctx, principal, client, scopes)
	if err != nil {
		d.logger.Error("issue access token for client %s: %v", client.ID, err)
		return Response{}, model.ServerError()
	}

	auth := model.Authorization{
		ID:            uuid.NewString(),
		ClientID:      client.ID,
		PrincipalName: principal,
		GrantType:     grantType,
		Scopes:        scopes,
		AccessToken:   access.Token,
		Claims:        access.Claims,
		CreatedAt:     time.Now(),
	}

	if withRefresh && client.AllowsGrant(model.GrantRefreshToken) {
		refresh, err := d.tokens.IssueRefreshToken(principal, client)
		if err != nil {
			d.logger.Error("issue refresh token for client %s: %v", client.ID, err)
			return Response{}, model.ServerError()
		}
		auth.RefreshToken = &refresh.Token
	}

	if err := d.store.Save(ctx, auth); err != nil {
		d.logger.Error("save authorization %s: %v", auth.ID, err)
		return Response{}, model.ServerError()
	}

	topic := eventbus.EventTokenIssued
	if grantType == model.GrantRefreshToken {
		topic = eventbus.EventTokenRefresh
	}
	eventbus.PublishAsync(topic, eventbus.TokenEventData{
		AuthorizationID: auth.ID,
		ClientID:        client.ID,
		PrincipalName:   principal,
		GrantType:       string(grantType),
		Scopes:          scopes,
		OccurredAt:      auth.CreatedAt,
	})
	observability.RecordMetric(ctx, observability.MetricTokensIssued, 1, map[string]string{
		"client_id":  client.ID,
		"grant_type": string(grantType),
	})

	resp := Response{
		AccessToken: access.Token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(access.Token.ExpiresAt.Sub(access.Token.IssuedAt).Seconds()),
		Scope:       model.JoinScopes(scopes),
	}
	if auth.RefreshToken != nil {
		resp.RefreshToken = auth.RefreshToken.Value
	}
	return resp, nil
}

// narrowScopes validates the requested scope against the client's set.
// An empty request grants the client's full set.
func narrowScopes(client model.Client, raw string) ([]string, error) {
	if raw == "" {
		return client.Scopes, nil
	}
	requested := model.SplitScopes(raw)
	for _, s := range requested {
		if !client.AllowsScope(s) {
			return nil, model.InvalidScope("requested scope is not registered for the client")
		}
	}
	return requested, nil
}

func contains(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}
