package worker

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/pkg/logger"
	"github.com/jwalitptl/hms-api/pkg/messaging"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("worker_test")

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type failedMark struct {
	errMsg  string
	retryAt *time.Time
}

type fakeOutboxRepo struct {
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]failedMark
}

func newFakeOutboxRepo(events ...*model.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		pending: events,
		failed:  make(map[uuid.UUID]failedMark),
	}
}

func (f *fakeOutboxRepo) Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	f.pending = append(f.pending, event)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	f.failed[id] = failedMark{errMsg: errMsg, retryAt: retryAt}
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	published []messaging.Message
	channels  []string
	err       error
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	f.published = append(f.published, message.(messaging.Message))
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error {
	return nil
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func newTestProcessor(repo *fakeOutboxRepo, broker *fakeBroker, config OutboxProcessorConfig) *OutboxProcessor {
	return NewOutboxProcessor(repo, &fakeTxManager{}, broker, config, quietLogger(), testMetrics)
}

func pendingEvent(eventType string, retryCount int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    json.RawMessage(`{"id":"x"}`),
		Status:     model.OutboxStatusPending,
		RetryCount: retryCount,
	}
}

func TestProcessEventsPublishesEnvelope(t *testing.T) {
	booked := pendingEvent(model.EventAppointmentBooked, 0)
	invoiced := pendingEvent(model.EventInvoiceCreated, 0)
	repo := newFakeOutboxRepo(booked, invoiced)
	broker := &fakeBroker{}
	p := newTestProcessor(repo, broker, OutboxProcessorConfig{})

	require.NoError(t, p.processEvents(context.Background()))

	require.Len(t, broker.published, 2)
	assert.Equal(t, []string{model.EventAppointmentBooked, model.EventInvoiceCreated}, broker.channels)
	assert.Equal(t, booked.ID.String(), broker.published[0].ID)
	assert.Equal(t, model.EventAppointmentBooked, broker.published[0].Type)
	assert.JSONEq(t, `{"id":"x"}`, string(broker.published[0].Payload))

	assert.ElementsMatch(t, []uuid.UUID{booked.ID, invoiced.ID}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestPublishFailureDefersToNextSweep(t *testing.T) {
	event := pendingEvent(model.EventAppointmentBooked, 0)
	repo := newFakeOutboxRepo(event)
	broker := &fakeBroker{err: context.DeadlineExceeded}
	p := newTestProcessor(repo, broker, OutboxProcessorConfig{
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
	})

	start := time.Now()
	require.NoError(t, p.processEvents(context.Background()))

	// A failed publish must not block the sweep; the event is deferred
	// via retry_at, not retried in place.
	assert.Less(t, time.Since(start), time.Second)

	mark, ok := repo.failed[event.ID]
	require.True(t, ok)
	require.NotNil(t, mark.retryAt)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), *mark.retryAt, 5*time.Second)
	assert.Empty(t, repo.processed)
}

func TestPublishFailureExhaustedBudgetDeadLetters(t *testing.T) {
	event := pendingEvent(model.EventAppointmentBooked, 2)
	repo := newFakeOutboxRepo(event)
	broker := &fakeBroker{err: context.DeadlineExceeded}
	p := newTestProcessor(repo, broker, OutboxProcessorConfig{MaxRetries: 3})

	require.NoError(t, p.processEvents(context.Background()))

	mark, ok := repo.failed[event.ID]
	require.True(t, ok)
	assert.Nil(t, mark.retryAt)
}
