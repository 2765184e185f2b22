package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	attempts int
}

func (p *flakyPublisher) Publish(ctx context.Context, event ScoreEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failures {
		return errors.New("stream unavailable")
	}
	return nil
}

func testListener(p Publisher) *Listener {
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Millisecond
	return &Listener{publisher: p, cfg: cfg}
}

func testEvent() ScoreEvent {
	return ScoreEvent{
		ID:        uuid.New(),
		GroupID:   uuid.New(),
		MemberID:  uuid.New(),
		EventType: eventTypeScoreChanged,
	}
}

func TestPublishWithRetryRecovers(t *testing.T) {
	p := &flakyPublisher{failures: 2}
	l := testListener(p)

	if err := l.publishWithRetry(context.Background(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if p.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", p.attempts)
	}
}

func TestPublishWithRetryExhausts(t *testing.T) {
	p := &flakyPublisher{failures: 100}
	l := testListener(p)

	err := l.publishWithRetry(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// MaxRetries retries plus the initial attempt
	if p.attempts != 4 {
		t.Fatalf("attempts = %d, want 4", p.attempts)
	}
}

func TestPublishWithRetryHonorsContext(t *testing.T) {
	p := &flakyPublisher{failures: 100}
	l := testListener(p)
	l.cfg.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.publishWithRetry(ctx, testEvent())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
