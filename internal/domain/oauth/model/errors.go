package model

import (
	"fmt"
	"net/http"
)

// ErrorCode is an RFC 6749 token endpoint error identifier.
type ErrorCode string

const (
	ErrCodeInvalidRequest       ErrorCode = "invalid_request"
	ErrCodeInvalidClient        ErrorCode = "invalid_client"
	ErrCodeInvalidGrant         ErrorCode = "invalid_grant"
	ErrCodeInvalidScope         ErrorCode = "invalid_scope"
	ErrCodeUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrCodeServerError          ErrorCode = "server_error"
)

// ProtocolError is an OAuth2 failure carrying the wire error code and
// HTTP status. Descriptions are safe for clients; internal causes stay
// in the log, never in the response.
type ProtocolError struct {
	Code            ErrorCode
	Description     string
	Status          int
	WWWAuthenticate bool
}

func (e *ProtocolError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return string(e.Code)
}

// InvalidRequest signals a malformed token request.
func InvalidRequest(description string) *ProtocolError {
	return &ProtocolError{
		Code:        ErrCodeInvalidRequest,
		Description: description,
		Status:      http.StatusBadRequest,
	}
}

// InvalidClient covers both unknown client ids and bad secrets so the
// two are indistinguishable to callers.
func InvalidClient() *ProtocolError {
	return &ProtocolError{
		Code:            ErrCodeInvalidClient,
		Description:     "client authentication failed",
		Status:          http.StatusUnauthorized,
		WWWAuthenticate: true,
	}
}

// InvalidGrant covers unknown usernames, bad passwords and rejected
// refresh tokens, uniformly, to prevent enumeration.
func InvalidGrant(description string) *ProtocolError {
	return &ProtocolError{
		Code:        ErrCodeInvalidGrant,
		Description: description,
		Status:      http.StatusBadRequest,
	}
}

// InvalidScope signals a scope request outside the client's set.
func InvalidScope(description string) *ProtocolError {
	return &ProtocolError{
		Code:        ErrCodeInvalidScope,
		Description: description,
		Status:      http.StatusBadRequest,
	}
}

// UnauthorizedClient signals a known grant type the client may not use.
func UnauthorizedClient() *ProtocolError {
	return &ProtocolError{
		Code:   ErrCodeUnauthorizedClient,
		Status: http.StatusBadRequest,
	}
}

// UnsupportedGrantType signals a grant type the service does not implement.
func UnsupportedGrantType() *ProtocolError {
	return &ProtocolError{
		Code:   ErrCodeUnsupportedGrantType,
		Status: http.StatusBadRequest,
	}
}

// ServerError signals a signing or persistence failure. The description
// is deliberately generic.
func ServerError() *ProtocolError {
	return &ProtocolError{
		Code:        ErrCodeServerError,
		Description: "unable to process the request",
		Status:      http.StatusInternalServerError,
	}
}
