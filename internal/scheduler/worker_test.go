package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakePublisher) PublishDue(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitForCalls(t *testing.T, pub *fakePublisher, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pub.callCount() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d sweeps, got %d", want, pub.callCount())
}

func TestWorkerSweepsOnEveryTick(t *testing.T) {
	pub := &fakePublisher{}
	worker := New(pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	waitForCalls(t, pub, 3)
}

func TestWorkerKeepsTickingAfterErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("store unavailable")}
	worker := New(pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	// A failing sweep must not stop the ticker.
	waitForCalls(t, pub, 3)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	pub := &fakePublisher{}
	worker := New(pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)
	waitForCalls(t, pub, 1)
	cancel()

	time.Sleep(30 * time.Millisecond)
	settled := pub.callCount()
	time.Sleep(50 * time.Millisecond)
	if pub.callCount() > settled {
		t.Fatal("expected no sweeps after cancellation")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	worker := New(&fakePublisher{}, 0)
	if worker.interval != time.Minute {
		t.Fatalf("interval = %s, want 1m", worker.interval)
	}
}
