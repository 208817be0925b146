package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"aegis-server-go/internal/domain/eventbus/repository"
	"aegis-server-go/internal/platform/errors"
	"aegis-server-go/internal/platform/storage"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a gorm-backed event repository.
func NewEventRepository(db *gorm.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Store(ctx context.Context, event repository.Event) error {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "event.store.marshal", "failed to marshal event data", err)
	}

	row := &storage.AuditEvent{
		EventType:     event.EventType,
		ClientID:      event.ClientID,
		PrincipalName: event.PrincipalName,
		Data:          dataBytes,
		CreatedAt:     event.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "event.store.create", "failed to store event", err)
	}
	return nil
}

func (r *eventRepository) FindByClientID(ctx context.Context, clientID string) ([]repository.Event, error) {
	var rows []storage.AuditEvent
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.find.client", "failed to find events by client id", err)
	}
	return convertRows(rows)
}

func (r *eventRepository) FindByEventType(ctx context.Context, eventType string, limit int) ([]repository.Event, error) {
	var rows []storage.AuditEvent
	query := r.db.WithContext(ctx).
		Where("event_type = ?", eventType).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.find.type", "failed to find events by type", err)
	}
	return convertRows(rows)
}

func (r *eventRepository) DeleteOldEvents(ctx context.Context, beforeTime time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("created_at < ?", beforeTime).
		Delete(&storage.AuditEvent{}).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "event.delete.old", "failed to delete old events", err)
	}
	return nil
}

func (r *eventRepository) GetEventStats(ctx context.Context) (map[string]int64, error) {
	type row struct {
		EventType string
		Count     int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&storage.AuditEvent{}).
		Select("event_type, COUNT(*) as count").
		Group("event_type").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.stats", "failed to aggregate event stats", err)
	}

	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.EventType] = r.Count
	}
	return stats, nil
}

func convertRows(rows []storage.AuditEvent) ([]repository.Event, error) {
	events := make([]repository.Event, 0, len(rows))
	for _, row := range rows {
		event := repository.Event{
			ID:            row.ID,
			EventType:     row.EventType,
			ClientID:      row.ClientID,
			PrincipalName: row.PrincipalName,
			CreatedAt:     row.CreatedAt,
		}
		if len(row.Data) > 0 {
			var data interface{}
			if err := json.Unmarshal(row.Data, &data); err == nil {
				event.Data = data
			}
		}
		events = append(events, event)
	}
	return events, nil
}
