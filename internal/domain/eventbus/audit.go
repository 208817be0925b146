package eventbus

import (
	"context"

	"aegis-server-go/internal/domain/eventbus/repository"
)

// Logger is the minimal logging contract the audit subscriber needs.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// AuditRecorder logs token lifecycle events and persists them through the
// event repository.
type AuditRecorder struct {
	logger Logger
	repo   repository.EventRepository
}

func NewAuditRecorder(logger Logger, repo repository.EventRepository) *AuditRecorder {
	return &AuditRecorder{logger: logger, repo: repo}
}

// Register subscribes the recorder to every token topic on the async bus.
func (a *AuditRecorder) Register() error {
	for _, topic := range []string{EventTokenIssued, EventTokenRefresh, EventTokenRevoked} {
		topic := topic
		if err := SubscribeAsync(topic, func(data TokenEventData) {
			a.record(topic, data)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *AuditRecorder) record(topic string, data TokenEventData) {
	if a.logger != nil {
		a.logger.Info("%s client=%s principal=%s grant=%s",
			topic, data.ClientID, data.PrincipalName, data.GrantType)
	}
	if a.repo == nil {
		return
	}
	err := a.repo.Store(context.Background(), repository.Event{
		EventType:     topic,
		ClientID:      data.ClientID,
		PrincipalName: data.PrincipalName,
		Data:          data,
		CreatedAt:     data.OccurredAt,
	})
	if err != nil && a.logger != nil {
		a.logger.Error("store audit event: %v", err)
	}
}
