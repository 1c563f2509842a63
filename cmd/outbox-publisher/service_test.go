package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quillmarket/fines-backend/pkg/config"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	"github.com/quillmarket/fines-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
}

func testConfig() *config.Config {
	return &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:    10,
			PollInterval: 10 * time.Millisecond,
			MaxAttempts:  3,
			WebhookURL:   "http://localhost/webhook",
		},
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubOutboxRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (r *stubOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if len(r.events) > limit {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func (r *stubOutboxRepo) MarkPublished(id uuid.UUID) error {
	r.published = append(r.published, id)
	return nil
}

func (r *stubOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	return nil
}

type stubSender struct {
	sent []uuid.UUID
	errs map[uuid.UUID]error
}

func (s *stubSender) Send(ctx context.Context, event models.OutboxEvent) error {
	if err, ok := s.errs[event.ID]; ok {
		return err
	}
	s.sent = append(s.sent, event.ID)
	return nil
}

func outboxEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventFineIssued,
		AggregateType: enums.AggregateFine,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		CreatedAt:     time.Now(),
	}
}

func newTestService(t *testing.T, repo *stubOutboxRepo, sender *stubSender) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     testLogger(),
		DB:         stubPinger{},
		Repository: repo,
		Sender:     sender,
	})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestProcessBatchMarksDeliveredEvents(t *testing.T) {
	first := outboxEvent()
	second := outboxEvent()
	repo := &stubOutboxRepo{events: []models.OutboxEvent{first, second}}
	sender := &stubSender{}
	svc := newTestService(t, repo, sender)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if !processed {
		t.Fatal("batch with rows must report processed")
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published, got %d", len(repo.published))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %d", len(repo.failed))
	}
}

func TestProcessBatchRecordsDeliveryFailures(t *testing.T) {
	ok := outboxEvent()
	bad := outboxEvent()
	repo := &stubOutboxRepo{events: []models.OutboxEvent{bad, ok}}
	sender := &stubSender{errs: map[uuid.UUID]error{bad.ID: errors.New("503 from webhook")}}
	svc := newTestService(t, repo, sender)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("failed deliveries must not abort the batch: %v", err)
	}
	if !processed {
		t.Fatal("batch with rows must report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != bad.ID {
		t.Fatalf("expected the failing event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != ok.ID {
		t.Fatalf("expected the healthy event published, got %v", repo.published)
	}
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	repo := &stubOutboxRepo{}
	svc := newTestService(t, repo, &stubSender{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("empty queue is not an error: %v", err)
	}
	if processed {
		t.Fatal("empty queue must report not processed")
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	base := 500 * time.Millisecond
	current := base
	for i := 0; i < 10; i++ {
		current = nextBackoff(current, base, maxBackoff)
	}
	if current != maxBackoff {
		t.Fatalf("expected backoff to cap at %s, got %s", maxBackoff, current)
	}
	if got := nextBackoff(base, base, maxBackoff); got != time.Second {
		t.Fatalf("expected 1s after first failure, got %s", got)
	}
}

func TestWebhookSenderPostsEnvelope(t *testing.T) {
	event := outboxEvent()

	var gotBody []byte
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender, err := newWebhookSender(config.OutboxConfig{WebhookURL: server.URL})
	if err != nil {
		t.Fatalf("sender constructor failed: %v", err)
	}
	if err := sender.Send(context.Background(), event); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if string(gotBody) != string(event.Payload) {
		t.Fatalf("payload mismatch: %s", gotBody)
	}
	if gotHeaders.Get("X-Outbox-Event-Type") != string(enums.EventFineIssued) {
		t.Fatalf("missing event type header: %v", gotHeaders)
	}
	if gotHeaders.Get("X-Outbox-Event-Id") != event.ID.String() {
		t.Fatal("missing event id header")
	}
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender, err := newWebhookSender(config.OutboxConfig{WebhookURL: server.URL})
	if err != nil {
		t.Fatalf("sender constructor failed: %v", err)
	}
	if err := sender.Send(context.Background(), outboxEvent()); err == nil {
		t.Fatal("non-2xx response must fail the delivery")
	}
}
