package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/eargollo/docqueue/internal/document"
)

func doc(i int) document.Document {
	p := fmt.Sprintf("/data/file%04d.txt", i)
	return document.Document{Path: p, ID: fmt.Sprintf("id%04d", i), Charset: "UTF-8"}
}

// TestMemoryFIFO verifies a single producer's order is preserved.
func TestMemoryFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemory("test", 0)
	for i := 0; i < 10; i++ {
		if err := q.Put(ctx, doc(i)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		got, ok, err := q.Poll(ctx, 0)
		if err != nil || !ok {
			t.Fatalf("poll %d: ok=%v err=%v", i, ok, err)
		}
		if got != doc(i) {
			t.Errorf("poll %d: got %q, want %q", i, got.Path, doc(i).Path)
		}
	}
}

// TestMemoryCloseSemantics verifies Put fails after Close while items queued
// before Close stay retrievable until drained.
func TestMemoryCloseSemantics(t *testing.T) {
	ctx := context.Background()
	q := NewMemory("test", 0)
	_ = q.Put(ctx, doc(1))
	_ = q.Put(ctx, doc(2))

	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	err := q.Put(ctx, doc(3))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Put after Close: got %v, want ErrClosed", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("closed error must not match ErrUnavailable")
	}

	for _, want := range []int{1, 2} {
		got, ok, err := q.Poll(ctx, time.Second)
		if err != nil || !ok || got != doc(want) {
			t.Fatalf("drain: got %v ok=%v err=%v, want %v", got, ok, err, doc(want))
		}
	}

	start := time.Now()
	_, ok, err := q.Poll(ctx, 5*time.Second)
	if ok || err != nil {
		t.Fatalf("poll on drained closed queue: ok=%v err=%v", ok, err)
	}
	if time.Since(start) > time.Second {
		t.Error("poll on drained closed queue should return immediately")
	}
}

func TestMemoryPollTimeout(t *testing.T) {
	q := NewMemory("test", 0)
	start := time.Now()
	_, ok, err := q.Poll(context.Background(), 50*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("ok=%v err=%v, want empty", ok, err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("poll returned after %v, expected to wait for the timeout", elapsed)
	}
}

func TestMemoryPollWakesOnPut(t *testing.T) {
	q := NewMemory("test", 0)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Put(context.Background(), doc(7))
	}()
	got, ok, err := q.Poll(context.Background(), 5*time.Second)
	if err != nil || !ok || got != doc(7) {
		t.Fatalf("got %v ok=%v err=%v", got, ok, err)
	}
}

func TestMemoryPollContextCancel(t *testing.T) {
	q := NewMemory("test", 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, ok, err := q.Poll(ctx, 5*time.Second)
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("ok=%v err=%v, want context.Canceled", ok, err)
	}
}

// TestMemoryBoundedBlocks verifies Put on a full queue blocks until a
// consumer polls.
func TestMemoryBoundedBlocks(t *testing.T) {
	ctx := context.Background()
	q := NewMemory("test", 1)
	if err := q.Put(ctx, doc(1)); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Put(ctx, doc(2)) }()

	select {
	case err := <-done:
		t.Fatalf("Put on full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok, _ := q.Poll(ctx, 0); !ok {
		t.Fatal("expected an item")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked Put: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Put did not unblock after Poll")
	}
	if n, _ := q.Size(ctx); n != 1 {
		t.Errorf("Size = %d, want 1", n)
	}
}

func TestMemoryBoundedPutUnblocksOnClose(t *testing.T) {
	ctx := context.Background()
	q := NewMemory("test", 1)
	_ = q.Put(ctx, doc(1))

	done := make(chan error, 1)
	go func() { done <- q.Put(ctx, doc(2)) }()
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("got %v, want ErrClosed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Put did not unblock after Close")
	}
}

func TestMemoryBoundedPutContextCancel(t *testing.T) {
	q := NewMemory("test", 1)
	_ = q.Put(context.Background(), doc(1))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := q.Put(ctx, doc(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}

// TestMemoryConcurrentNeverLosesItems runs several producers and consumers
// through a small bounded queue and verifies the exact set comes out.
func TestMemoryConcurrentNeverLosesItems(t *testing.T) {
	const producers, perProducer = 4, 1500
	ctx := context.Background()
	q := NewMemory("test", 16)

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Put(ctx, doc(p*perProducer+i)); err != nil {
					t.Error(err)
					return
				}
			}
		}(p)
	}

	var mu sync.Mutex
	var got []string
	var cwg sync.WaitGroup
	for c := 0; c < 3; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				d, ok, err := q.Poll(ctx, time.Second)
				if err != nil {
					t.Error(err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				got = append(got, d.ID)
				mu.Unlock()
			}
		}()
	}

	pwg.Wait()
	q.Close()
	cwg.Wait()

	if len(got) != producers*perProducer {
		t.Fatalf("got %d items, want %d", len(got), producers*perProducer)
	}
	sort.Strings(got)
	for i, id := range got {
		if want := fmt.Sprintf("id%04d", i); id != want {
			t.Fatalf("item %d: got %q, want %q", i, id, want)
		}
	}
}
