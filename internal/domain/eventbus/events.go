package eventbus

import "time"

// Topic names published by the oauth domain.
const (
	EventTokenIssued  = "oauth:token:issued"
	EventTokenRefresh = "oauth:token:refreshed"
	EventTokenRevoked = "oauth:token:revoked"
)

// TokenEventData describes one issuance or revocation.
type TokenEventData struct {
	AuthorizationID string    `json:"authorization_id"`
	ClientID        string    `json:"client_id"`
	PrincipalName   string    `json:"principal_name"`
	GrantType       string    `json:"grant_type"`
	Scopes          []string  `json:"scopes,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
