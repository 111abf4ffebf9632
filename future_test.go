package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestFutureSingleAssignmentFirstWriteWins(t *testing.T) {
	f := newFuture[int]()
	f.set(1)
	f.set(2)
	f.setError(ErrInvalidArgument)

	v, err, ready := Future[int]{f: f}.TryGet()
	if !ready {
		t.Fatal("expected future to be resolved")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("got %d, want 1 (first write wins)", v)
	}
}

func TestFutureGetBlocksUntilResolved(t *testing.T) {
	f := newFuture[string]()
	fut := Future[string]{f: f}

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(10 * time.Millisecond)
		f.set("hello")
	}()

	v, err := fut.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hello" {
		t.Fatalf("got %q, want %q", v, "hello")
	}
	<-done
}

func TestFutureGetHonorsContextCancellation(t *testing.T) {
	f := newFuture[int]()
	fut := Future[int]{f: f}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := fut.Get(ctx)
	if err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}

func TestFutureAddContinuationRunsInlineIfAlreadyResolved(t *testing.T) {
	f := newFuture[int]()
	f.set(99)

	called := false
	f.addContinuation(func(v int, err error) {
		called = true
		if v != 99 || err != nil {
			t.Errorf("continuation got (%d, %v), want (99, nil)", v, err)
		}
	})
	if !called {
		t.Fatal("continuation attached after resolution should run inline immediately")
	}
}

func TestFutureAddContinuationRunsOnceOnResolve(t *testing.T) {
	f := newFuture[int]()

	var got int
	var gotErr error
	f.addContinuation(func(v int, err error) { got, gotErr = v, err })

	f.set(7)
	if got != 7 || gotErr != nil {
		t.Fatalf("continuation got (%d, %v), want (7, nil)", got, gotErr)
	}
}
