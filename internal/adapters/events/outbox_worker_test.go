package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type fakeOutbox struct {
	mu           sync.Mutex
	pending      []ports.OutboxRecord
	published    []uuid.UUID
	failed       []uuid.UUID
	deadLettered []uuid.UUID
	claimErr     error
}

func (f *fakeOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, _ time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	n := min(limit, len(f.pending))
	out := make([]ports.OutboxRecord, n)
	copy(out, f.pending[:n])
	f.pending = f.pending[n:]
	for i := range out {
		out[i].ClaimToken = &claimToken
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered = append(f.deadLettered, id)
	return nil
}

type publishCall struct {
	eventType    string
	partitionKey string
}

type recordingPublisher struct {
	mu     sync.Mutex
	calls  []publishCall
	failOn map[string]error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{eventType: eventType, partitionKey: partitionKey})
	return p.failOn[eventType]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessOncePublishesRetriesAndDeadLetters(t *testing.T) {
	t.Parallel()

	ok := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "account.registered", PartitionKey: "acct-1"}
	flaky := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "verification.code_issued", PartitionKey: "acct-2", RetryCount: 1}
	lastTry := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "verification.code_issued", PartitionKey: "acct-3", RetryCount: 2}
	exhausted := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "account.activated", PartitionKey: "acct-4", RetryCount: 3}

	outbox := &fakeOutbox{pending: []ports.OutboxRecord{ok, flaky, lastTry, exhausted}}
	publisher := &recordingPublisher{failOn: map[string]error{"verification.code_issued": errors.New("broker down")}}
	worker := NewOutboxWorker(discardLogger(), outbox, publisher, WorkerConfig{MaxRetries: 3})

	result, err := worker.ProcessOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BatchResult{Claimed: 4, Published: 1, Failed: 2, DeadLettered: 2}, result)
	assert.Equal(t, []uuid.UUID{ok.OutboxID}, outbox.published)
	assert.Equal(t, []uuid.UUID{flaky.OutboxID}, outbox.failed)
	assert.ElementsMatch(t, []uuid.UUID{lastTry.OutboxID, exhausted.OutboxID}, outbox.deadLettered)

	require.Len(t, publisher.calls, 3, "exhausted rows are not published")
	assert.Equal(t, publishCall{eventType: "account.registered", partitionKey: "acct-1"}, publisher.calls[0])
}

func TestProcessOnceRespectsBatchSize(t *testing.T) {
	t.Parallel()

	outbox := &fakeOutbox{}
	for i := 0; i < 5; i++ {
		outbox.pending = append(outbox.pending, ports.OutboxRecord{OutboxID: uuid.New(), EventType: "account.registered"})
	}
	worker := NewOutboxWorker(discardLogger(), outbox, &recordingPublisher{}, WorkerConfig{BatchSize: 2})

	result, err := worker.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)
	assert.Len(t, outbox.pending, 3)
}

func TestProcessOnceClaimError(t *testing.T) {
	t.Parallel()

	outbox := &fakeOutbox{claimErr: errors.New("db down")}
	worker := NewOutboxWorker(discardLogger(), outbox, &recordingPublisher{}, WorkerConfig{})

	_, err := worker.ProcessOnce(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	outbox := &fakeOutbox{pending: []ports.OutboxRecord{{OutboxID: uuid.New(), EventType: "account.registered"}}}
	worker := NewOutboxWorker(discardLogger(), outbox, &recordingPublisher{}, WorkerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		return len(outbox.published) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestFanoutPublisherJoinsErrors(t *testing.T) {
	t.Parallel()

	good := &recordingPublisher{}
	bad := &recordingPublisher{failOn: map[string]error{"account.registered": errors.New("smtp down")}}
	fanout := NewFanoutPublisher(good, nil, bad)
	require.Equal(t, 2, fanout.Len())

	err := fanout.Publish(context.Background(), "account.registered", []byte(`{}`), "acct-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, good.calls, 1, "every sink sees the event")

	require.NoError(t, fanout.Publish(context.Background(), "account.activated", []byte(`{}`), "acct-1"))
}

func TestKafkaTopicMapping(t *testing.T) {
	t.Parallel()

	_, err := NewKafkaPublisher(nil, nil)
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, map[string]string{"account.registered": "accounts.registered.v1"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, "accounts.registered.v1", p.topicFor("account.registered"))
	assert.Equal(t, "account.activated", p.topicFor("account.activated"))
}
