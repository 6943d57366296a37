package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	flock "github.com/go-flock/flock"
)

func TestNewDefaults(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if g.config.errorMode != CollectAll {
		t.Errorf("expected default error mode CollectAll, got %v", g.config.errorMode)
	}
	if !g.ownPool {
		t.Error("expected a default Group to own its pool")
	}
}

func TestCollectAllMode(t *testing.T) {
	g := New(WithErrorMode(CollectAll))

	expected := []string{"error 1", "error 2", "error 3"}
	for _, msg := range expected {
		msg := msg
		g.Go(func(ctx context.Context) error {
			return errors.New(msg)
		})
	}
	g.Go(func(ctx context.Context) error {
		return nil
	})

	err := g.Wait()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}

	errStr := err.Error()
	for _, msg := range expected {
		if !strings.Contains(errStr, msg) {
			t.Errorf("expected %q in aggregate error, got: %v", msg, errStr)
		}
	}

	stats := g.Stats()
	if stats.Failed != 3 {
		t.Errorf("expected 3 failed tasks, got %d", stats.Failed)
	}
	if stats.Completed != 4 {
		t.Errorf("expected 4 completed tasks, got %d", stats.Completed)
	}
}

func TestFailFastCancelsSiblings(t *testing.T) {
	g := New(WithErrorMode(FailFast))

	g.Go(func(ctx context.Context) error {
		return errors.New("boom")
	})

	var cancelled int32
	g.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			atomic.AddInt32(&cancelled, 1)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	err := g.Wait()
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected the first error to surface, got %v", err)
	}
	if atomic.LoadInt32(&cancelled) != 1 {
		t.Error("expected the sibling task to observe cancellation")
	}
}

func TestIgnoreErrors(t *testing.T) {
	g := New(WithErrorMode(IgnoreErrors))
	g.Go(func(ctx context.Context) error {
		return errors.New("ignored")
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	g := New(WithErrorMode(CollectAll))
	g.Go(func(ctx context.Context) error {
		panic("kaboom")
	})

	err := g.Wait()
	if err == nil {
		t.Fatal("expected the panic to surface as an error")
	}
	var agg AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected an AggregateError, got %T", err)
	}
	var pe *flock.TaskError
	if !errors.As(agg.Errors[0], &pe) {
		t.Fatalf("expected a *flock.TaskError, got %T", agg.Errors[0])
	}
}

func TestRealWorldScenario(t *testing.T) {
	g := New(WithErrorMode(CollectAll))

	items := []int{1, 2, 3, 4, 5}
	var processed int32

	for _, item := range items {
		item := item
		g.Go(func(ctx context.Context) error {
			if item == 5 {
				return fmt.Errorf("failed to process item %d", item)
			}
			atomic.AddInt32(&processed, 1)
			return nil
		})
	}

	if err := g.Wait(); err == nil {
		t.Fatal("expected an error from the failing item")
	}
	if atomic.LoadInt32(&processed) != 4 {
		t.Errorf("expected 4 processed items, got %d", atomic.LoadInt32(&processed))
	}
}
