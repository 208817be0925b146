// Package oauth is the HTTP transport for the token service: the token
// endpoint, key publication and the secured admin surface.
package oauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aegis-server-go/internal/domain/eventbus"
	"aegis-server-go/internal/domain/eventbus/repository"
	"aegis-server-go/internal/domain/oauth/grant"
	"aegis-server-go/internal/domain/oauth/keys"
	"aegis-server-go/internal/domain/oauth/model"
	"aegis-server-go/internal/domain/oauth/store"
	"aegis-server-go/internal/domain/oauth/token"
	platformerrors "aegis-server-go/internal/platform/errors"
	httptransport "aegis-server-go/internal/transport/http"
)

// Service wires the oauth domain into gin.
type Service struct {
	dispatcher *grant.Dispatcher
	generator  *token.Generator
	keys       *keys.Manager
	store      store.Store
	events     repository.EventRepository
	logger     model.Logger
}

func NewService(
	dispatcher *grant.Dispatcher,
	generator *token.Generator,
	keyManager *keys.Manager,
	authStore store.Store,
	events repository.EventRepository,
	logger model.Logger,
) (*Service, error) {
	if dispatcher == nil || generator == nil || keyManager == nil || authStore == nil {
		return nil, platformerrors.New(platformerrors.KindTransport, "oauth.new", "missing dependencies")
	}
	return &Service{
		dispatcher: dispatcher,
		generator:  generator,
		keys:       keyManager,
		store:      authStore,
		events:     events,
		logger:     logger,
	}, nil
}

// Register mounts the public endpoints on the engine root and the admin
// endpoints under the API group.
func (s *Service) Register(ctx context.Context, router *httptransport.Router) error {
	engine := router.Engine

	engine.POST("/oauth2/token", s.handleToken)
	engine.GET("/oauth2/jwks", s.handleJWKS)
	engine.GET("/.well-known/jwks.json", s.handleJWKS)
	engine.GET("/healthz", s.handleHealth)

	admin := router.API.Group("/admin")
	admin.Use(s.adminMiddleware())
	{
		admin.GET("/authorizations", s.handleListAuthorizations)
		admin.DELETE("/authorizations/:id", s.handleRevokeAuthorization)
		admin.GET("/stats", s.handleStats)
		admin.GET("/events", s.handleEvents)
	}

	s.logger.Info("oauth routes registered")
	return nil
}

// handleToken is the RFC 6749 token endpoint. Responses carrying tokens
// must never be cached.
func (s *Service) handleToken(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	if err := c.Request.ParseForm(); err != nil {
		s.writeProtocolError(c, model.InvalidRequest("malformed request body"))
		return
	}

	req := grant.Request{
		GrantType:    c.PostForm("grant_type"),
		Scope:        c.PostForm("scope"),
		Username:     c.PostForm("username"),
		Password:     c.PostForm("password"),
		RefreshToken: c.PostForm("refresh_token"),
	}

	// Client credentials arrive via Basic auth or, failing that, the form.
	if id, secret, ok := c.Request.BasicAuth(); ok {
		req.ClientID = id
		req.ClientSecret = secret
	} else {
		req.ClientID = c.PostForm("client_id")
		req.ClientSecret = c.PostForm("client_secret")
	}

	resp, err := s.dispatcher.Handle(c.Request.Context(), req)
	if err != nil {
		var pe *model.ProtocolError
		if errors.As(err, &pe) {
			s.writeProtocolError(c, pe)
			return
		}
		s.logger.Error("token endpoint: %v", err)
		s.writeProtocolError(c, model.ServerError())
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleJWKS(c *gin.Context) {
	c.JSON(http.StatusOK, s.keys.PublicKeySet())
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// adminMiddleware authenticates bearer tokens and requires an admin scope.
// The token must still resolve to a live authorization, so revocation is
// effective immediately.
func (s *Service) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value := bearerToken(c)
		if value == "" {
			httptransport.RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}

		claims, err := s.generator.Parse(value)
		if err != nil {
			httptransport.RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}
		if use, _ := claims["token_use"].(string); use == "refresh" {
			httptransport.RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}

		auth, err := s.store.FindByAccessToken(c.Request.Context(), value)
		if err != nil {
			httptransport.RespondError(c, http.StatusUnauthorized, "token revoked or expired", nil)
			c.Abort()
			return
		}

		if !hasAdminScope(auth.Scopes) {
			httptransport.RespondError(c, http.StatusForbidden, "admin scope required", nil)
			c.Abort()
			return
		}

		c.Set("principal", auth.PrincipalName)
		c.Next()
	}
}

func (s *Service) handleListAuthorizations(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("list authorizations: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to list authorizations", nil)
		return
	}

	// Token values stay server-side; the admin view gets metadata only.
	type view struct {
		ID            string    `json:"id"`
		ClientID      string    `json:"client_id"`
		PrincipalName string    `json:"principal_name"`
		GrantType     string    `json:"grant_type"`
		Scopes        []string  `json:"scopes"`
		IssuedAt      time.Time `json:"issued_at"`
		ExpiresAt     time.Time `json:"expires_at"`
		HasRefresh    bool      `json:"has_refresh_token"`
	}
	out := make([]view, 0, len(list))
	for _, a := range list {
		out = append(out, view{
			ID:            a.ID,
			ClientID:      a.ClientID,
			PrincipalName: a.PrincipalName,
			GrantType:     string(a.GrantType),
			Scopes:        a.Scopes,
			IssuedAt:      a.AccessToken.IssuedAt,
			ExpiresAt:     a.AccessToken.ExpiresAt,
			HasRefresh:    a.RefreshToken != nil,
		})
	}
	httptransport.RespondSuccess(c, http.StatusOK, out, "")
}

func (s *Service) handleRevokeAuthorization(c *gin.Context) {
	id := c.Param("id")

	auth, err := s.store.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httptransport.RespondError(c, http.StatusNotFound, "authorization not found", nil)
			return
		}
		s.logger.Error("find authorization %s: %v", id, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to revoke authorization", nil)
		return
	}

	if err := s.store.Remove(c.Request.Context(), id); err != nil {
		s.logger.Error("remove authorization %s: %v", id, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to revoke authorization", nil)
		return
	}

	eventbus.PublishAsync(eventbus.EventTokenRevoked, eventbus.TokenEventData{
		AuthorizationID: auth.ID,
		ClientID:        auth.ClientID,
		PrincipalName:   auth.PrincipalName,
		GrantType:       string(auth.GrantType),
		OccurredAt:      time.Now(),
	})

	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"id": id}, "authorization revoked")
}

func (s *Service) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("store stats: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to collect stats", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, stats, "")
}

func (s *Service) handleEvents(c *gin.Context) {
	if s.events == nil {
		httptransport.RespondError(c, http.StatusNotFound, "event history not enabled", nil)
		return
	}
	eventType := c.DefaultQuery("type", eventbus.EventTokenIssued)
	events, err := s.events.FindByEventType(c.Request.Context(), eventType, 100)
	if err != nil {
		s.logger.Error("list events: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to list events", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, events, "")
}

func (s *Service) writeProtocolError(c *gin.Context, pe *model.ProtocolError) {
	if pe.WWWAuthenticate {
		c.Header("WWW-Authenticate", `Basic realm="oauth2/token"`)
	}
	body := gin.H{"error": string(pe.Code)}
	if pe.Description != "" {
		body["error_description"] = pe.Description
	}
	c.JSON(pe.Status, body)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasAdminScope(scopes []string) bool {
	for _, s := range scopes {
		if s == "admin" || strings.HasPrefix(s, "admin.") {
			return true
		}
	}
	return false
}
