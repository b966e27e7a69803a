package main

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]QueuedChange
}

func (r *batchRecorder) record(batch []QueuedChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *batchRecorder) all() [][]QueuedChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

func TestChangeQueueCoalescing(t *testing.T) {
	recorder := &batchRecorder{}
	q := NewChangeQueue(time.Hour, recorder.record)
	defer q.Stop()

	q.Push("/fs/a.ts", ChangeUpsert)
	q.Push("/fs/b.ts", ChangeUpsert)
	q.Push("/fs/a.ts", ChangeRemove)

	if got := q.Len(); got != 2 {
		t.Fatalf("expected 2 coalesced entries, got %d", got)
	}

	q.ProcessImmediately()
	batches := recorder.all()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	want := []QueuedChange{
		{Path: "/fs/b.ts", Kind: ChangeUpsert},
		{Path: "/fs/a.ts", Kind: ChangeRemove},
	}
	if !reflect.DeepEqual(batches[0], want) {
		t.Errorf("expected %v, got %v", want, batches[0])
	}
}

func TestChangeQueueSkipsGitPaths(t *testing.T) {
	q := NewChangeQueue(time.Hour, nil)
	defer q.Stop()

	q.Push("/fs/repo/.git/index", ChangeUpsert)
	q.Push("/fs/repo/.git", ChangeRemove)
	if got := q.Len(); got != 0 {
		t.Errorf("git paths must be dropped, got %d queued", got)
	}
}

func TestChangeQueueSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	q := NewChangeQueue(time.Hour, nil)
	defer q.Stop()

	q.Push(dir, ChangeUpsert)
	if got := q.Len(); got != 0 {
		t.Errorf("directory upserts must be dropped, got %d queued", got)
	}

	// Removals cannot stat the path anymore; they always queue.
	q.Push(dir+"/deleted.ts", ChangeRemove)
	if got := q.Len(); got != 1 {
		t.Errorf("expected the removal to queue, got %d", got)
	}
}

func TestChangeQueueFocusedDeferral(t *testing.T) {
	recorder := &batchRecorder{}
	q := NewChangeQueue(time.Hour, recorder.record)
	defer q.Stop()

	q.SetFocused("/fs/editing.ts")
	q.Push("/fs/editing.ts", ChangeUpsert)
	q.Push("/fs/other.ts", ChangeUpsert)

	if got := q.Len(); got != 1 {
		t.Fatalf("focused document must be deferred, got %d queued", got)
	}

	q.ProcessImmediately()

	// Moving focus releases the deferred event back into the queue.
	q.SetFocused("/fs/next.ts")
	if got := q.Len(); got != 1 {
		t.Fatalf("expected the deferred event to requeue on focus change, got %d", got)
	}
	q.ProcessImmediately()

	batches := recorder.all()
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0][0].Path != "/fs/other.ts" {
		t.Errorf("unexpected first batch: %v", batches[0])
	}
	if batches[1][0].Path != "/fs/editing.ts" {
		t.Errorf("unexpected released batch: %v", batches[1])
	}
}

func TestChangeQueueQuietPeriod(t *testing.T) {
	recorder := &batchRecorder{}
	q := NewChangeQueue(10*time.Millisecond, recorder.record)
	defer q.Stop()

	q.Push("/fs/a.ts", ChangeUpsert)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(recorder.all()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := recorder.all(); len(got) != 1 {
		t.Fatalf("expected the quiet period to drain the queue, got %d batches", len(got))
	}
}

func TestChangeQueueStop(t *testing.T) {
	recorder := &batchRecorder{}
	q := NewChangeQueue(time.Hour, recorder.record)

	q.Push("/fs/a.ts", ChangeUpsert)
	q.Stop()
	q.Push("/fs/b.ts", ChangeUpsert)

	q.ProcessImmediately()
	if len(recorder.all()) != 0 {
		t.Error("a stopped queue must not process anything")
	}
	if q.Len() != 0 {
		t.Error("a stopped queue must be empty")
	}
}
