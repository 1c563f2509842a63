package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedOutboxEvent(t *testing.T, db *gorm.DB, createdAt time.Time, publishedAt *time.Time, attempts int) *models.OutboxEvent {
	t.Helper()
	event := &models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventFineIssued,
		AggregateType: enums.AggregateFine,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     createdAt,
		PublishedAt:   publishedAt,
		AttemptCount:  attempts,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func TestFetchUnpublishedSkipsDeliveredAndExhausted(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	now := time.Now()

	older := seedOutboxEvent(t, db, now.Add(-2*time.Minute), nil, 0)
	newer := seedOutboxEvent(t, db, now.Add(-time.Minute), nil, 3)
	seedOutboxEvent(t, db, now.Add(-3*time.Minute), &now, 1)
	seedOutboxEvent(t, db, now.Add(-4*time.Minute), nil, 10)

	rows, err := repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, newer.ID, rows[1].ID)
}

func TestMarkPublishedAndFailed(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	now := time.Now()

	event := seedOutboxEvent(t, db, now, nil, 0)

	require.NoError(t, repo.MarkFailed(event.ID, errors.New("endpoint returned 502")))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", event.ID).Error)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "502")

	require.NoError(t, repo.MarkPublished(event.ID))
	require.NoError(t, db.First(&row, "id = ?", event.ID).Error)
	assert.NotNil(t, row.PublishedAt)
}

func TestDeletePublishedBeforeLeavesPendingRows(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	now := time.Now()

	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)
	seedOutboxEvent(t, db, old, &old, 1)
	kept := seedOutboxEvent(t, db, old, &recent, 1)
	pending := seedOutboxEvent(t, db, old, nil, 0)

	deleted, err := repo.DeletePublishedBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	assert.Contains(t, ids, kept.ID)
	assert.Contains(t, ids, pending.ID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventFineIssued,
		AggregateType: enums.AggregateFine,
		AggregateID:   uuid.New(),
	})
	assert.Error(t, err)
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	actorID := uuid.New()
	aggregateID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventFineIssued,
			AggregateType: enums.AggregateFine,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{UserID: actorID, Role: string(enums.ActorRoleSupport)},
			Data:          map[string]string{"reason": "late delivery"},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "aggregate_id = ?", aggregateID).Error)
	assert.Equal(t, enums.EventFineIssued, row.EventType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actorID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"reason":"late delivery"}`, string(envelope.Data))
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	aggregateID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventFineWaived,
		AggregateType: enums.AggregateFine,
		AggregateID:   aggregateID,
		Data:          map[string]string{"reason": "goodwill"},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.EmitIfNotExists(context.Background(), tx, event); err != nil {
			return err
		}
		return svc.EmitIfNotExists(context.Background(), tx, event)
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", aggregateID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
