package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/moodscale/internal/domain/model"
)

func assessment(id string) model.Assessment {
	return model.Assessment{
		ID:           id,
		SubmissionID: "sub-" + id,
		SubjectID:    "patient-1",
		Instrument:   "GAD-7",
		Total:        10,
		BandKey:      "moderate",
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, assessment("a1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	it := <-q.Dequeue(ctx)
	if it.ID != "a1" || it.Total != 10 {
		t.Errorf("unexpected item %+v", it)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := q.Enqueue(ctx, assessment(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	if err := q.Enqueue(ctx, assessment("a3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull when at capacity, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_DefaultCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	if q.Cap() != defaultQueueCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultQueueCapacity, q.Cap())
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, assessment("a1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if l := q.Len(context.Background()); l != 0 {
		t.Errorf("cancelled enqueue must not buffer, got length %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	const producers = 10
	const perProducer = 100

	var consumersWG sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]struct{}, producers*perProducer)
	for range 4 {
		consumersWG.Add(1)
		go func() {
			defer consumersWG.Done()
			for it := range q.Dequeue(ctx) {
				mu.Lock()
				seen[it.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	var producersWG sync.WaitGroup
	for p := range producers {
		producersWG.Add(1)
		go func() {
			defer producersWG.Done()
			for i := range perProducer {
				for q.Enqueue(ctx, assessment(fmt.Sprintf("a%d_%d", p, i))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	producersWG.Wait()

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	consumersWG.Wait()

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct items, got %d", producers*perProducer, len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := q.Enqueue(ctx, assessment(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	if err := q.Enqueue(ctx, assessment("a3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after closing, got %v", err)
	}

	// Items queued before Close are still delivered, then the channel closes.
	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case it, ok := <-ch:
			if !ok {
				done = true
				break
			}
			drained = append(drained, it.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
	if fmt.Sprint(drained) != "[a1 a2]" {
		t.Errorf("expected queued items to drain in order, got %v", drained)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
