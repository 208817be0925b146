package repository

import (
	"context"
	"time"
)

// EventRepository persists domain events for later inspection.
type EventRepository interface {
	Store(ctx context.Context, event Event) error
	FindByClientID(ctx context.Context, clientID string) ([]Event, error)
	FindByEventType(ctx context.Context, eventType string, limit int) ([]Event, error)
	DeleteOldEvents(ctx context.Context, beforeTime time.Time) error
	GetEventStats(ctx context.Context) (map[string]int64, error)
}

// Event is one recorded domain event.
type Event struct {
	ID            int64
	EventType     string
	ClientID      string
	PrincipalName string
	Data          interface{}
	CreatedAt     time.Time
}
