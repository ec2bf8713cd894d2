package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/domain"
	"github.com/notifyhub/mailqueue/internal/worker"
)

type stubQueue struct {
	mu        sync.Mutex
	limits    []int
	requeues  []time.Duration
	purges    []int
	statsErr  error
	batchErr  error
	processed chan struct{}
	swept     chan struct{}
}

func newStubQueue() *stubQueue {
	return &stubQueue{processed: make(chan struct{}, 16), swept: make(chan struct{}, 16)}
}

func (s *stubQueue) ProcessBatch(_ context.Context, limit int) (domain.BatchResult, error) {
	s.mu.Lock()
	s.limits = append(s.limits, limit)
	s.mu.Unlock()
	select {
	case s.processed <- struct{}{}:
	default:
	}
	return domain.BatchResult{Sent: 1}, s.batchErr
}

func (s *stubQueue) RequeueStuck(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requeues = append(s.requeues, olderThan)
	return 0, nil
}

func (s *stubQueue) PurgeOlderThan(_ context.Context, days int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges = append(s.purges, days)
	return 0, nil
}

func (s *stubQueue) GetStats(context.Context) (domain.Stats, error) {
	select {
	case s.swept <- struct{}{}:
	default:
	}
	return domain.Stats{Pending: 2, Total: 2}, s.statsErr
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d signals", i, n)
		}
	}
}

func TestDrainer_ProcessesOnEveryTick(t *testing.T) {
	q := newStubQueue()
	var mu sync.Mutex
	observed := 0
	d := worker.NewDrainer(q, 10, 5*time.Millisecond, zap.NewNop(), func(time.Duration) {
		mu.Lock()
		observed++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(d)
	pool.Start(ctx)
	waitFor(t, q.processed, 3)
	cancel()
	pool.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range q.limits {
		if l != 10 {
			t.Fatalf("expected batch size 10, got %d", l)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if observed < 3 {
		t.Fatalf("expected at least 3 observed batches, got %d", observed)
	}
}

func TestDrainer_SelectionErrorSkipsObservation(t *testing.T) {
	q := newStubQueue()
	q.batchErr = errors.New("db down")
	observed := make(chan struct{}, 1)
	d := worker.NewDrainer(q, 5, 5*time.Millisecond, zap.NewNop(), func(time.Duration) {
		observed <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(d)
	pool.Start(ctx)
	waitFor(t, q.processed, 2)
	cancel()
	pool.Wait()

	select {
	case <-observed:
		t.Fatal("a failed drain must not be observed")
	default:
	}
}

func TestSweeper_RunsImmediatelyAndPublishesStats(t *testing.T) {
	q := newStubQueue()
	stats := make(chan domain.Stats, 4)
	s := worker.NewSweeper(q, 30*time.Minute, 30, time.Hour, zap.NewNop(), func(st domain.Stats) {
		stats <- st
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(s)
	pool.Start(ctx)

	// The first sweep runs before the first tick, so an hour-long interval is fine.
	select {
	case st := <-stats:
		if st.Pending != 2 {
			t.Fatalf("unexpected stats %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run on start")
	}
	cancel()
	pool.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.requeues) != 1 || q.requeues[0] != 30*time.Minute {
		t.Fatalf("unexpected requeue calls %v", q.requeues)
	}
	if len(q.purges) != 1 || q.purges[0] != 30 {
		t.Fatalf("unexpected purge calls %v", q.purges)
	}
}

func TestPool_WaitReturnsAfterCancel(t *testing.T) {
	q := newStubQueue()
	pool := worker.NewPool(
		worker.NewDrainer(q, 1, time.Hour, zap.NewNop(), nil),
		worker.NewSweeper(q, time.Minute, 1, time.Hour, zap.NewNop(), nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	waitFor(t, q.swept, 1)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
