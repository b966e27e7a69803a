package main

import (
	"os"
	"strings"
	"sync"
	"time"
)

// ChangeKind distinguishes upserts from removals in the change queue.
type ChangeKind int

const (
	ChangeUpsert ChangeKind = iota
	ChangeRemove
)

// QueuedChange is one coalesced file event awaiting processing.
type QueuedChange struct {
	Path string
	Kind ChangeKind
}

const defaultQuietPeriod = time.Second

// ChangeQueue coalesces file events: the same path queued twice before
// draining keeps only the latest event, moved to the end of the queue.
// Draining happens after a trailing quiet period, or immediately on
// request. Events for the focused document are parked until focus moves.
type ChangeQueue struct {
	mu       sync.Mutex
	order    []string
	kinds    map[string]ChangeKind
	deferred map[string]ChangeKind
	focused  string
	timer    *time.Timer
	quiet    time.Duration
	process  func(batch []QueuedChange)
	stopped  bool
}

func NewChangeQueue(quiet time.Duration, process func(batch []QueuedChange)) *ChangeQueue {
	if quiet <= 0 {
		quiet = defaultQuietPeriod
	}
	return &ChangeQueue{
		kinds:    map[string]ChangeKind{},
		deferred: map[string]ChangeKind{},
		quiet:    quiet,
		process:  process,
	}
}

func isGitPath(path string) bool {
	return strings.Contains(path, "/.git/") || strings.HasSuffix(path, "/.git")
}

// Push queues one event. Directory events and anything under .git are
// dropped; an event for the focused document is deferred instead.
func (q *ChangeQueue) Push(path string, kind ChangeKind) {
	path = NormalizePathForInternal(path)
	if isGitPath(path) {
		return
	}
	if kind == ChangeUpsert {
		if info, err := os.Stat(DenormalizePathForOS(path)); err == nil && info.IsDir() {
			return
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}

	if path == q.focused {
		q.deferred[path] = kind
		return
	}

	q.enqueueLocked(path, kind)
	q.scheduleLocked()
}

// enqueueLocked applies last-write-wins coalescing with move-to-end: a
// requeued path drops its old slot and re-enters at the tail.
func (q *ChangeQueue) enqueueLocked(path string, kind ChangeKind) {
	if _, queued := q.kinds[path]; queued {
		for i, p := range q.order {
			if p == path {
				q.order = append(q.order[:i], q.order[i+1:]...)
				break
			}
		}
	}
	q.order = append(q.order, path)
	q.kinds[path] = kind
}

func (q *ChangeQueue) scheduleLocked() {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.quiet, q.ProcessImmediately)
}

// SetFocused marks the document currently being edited. Events deferred
// for the previously focused document are released into the queue.
func (q *ChangeQueue) SetFocused(path string) {
	if path != "" {
		path = NormalizePathForInternal(path)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	previous := q.focused
	q.focused = path
	if previous == "" || previous == path {
		return
	}
	if kind, ok := q.deferred[previous]; ok {
		delete(q.deferred, previous)
		q.enqueueLocked(previous, kind)
		q.scheduleLocked()
	}
}

// ProcessImmediately drains the queue now, without waiting for the quiet
// period.
func (q *ChangeQueue) ProcessImmediately() {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if len(q.order) == 0 || q.stopped {
		q.mu.Unlock()
		return
	}
	batch := make([]QueuedChange, 0, len(q.order))
	for _, path := range q.order {
		batch = append(batch, QueuedChange{Path: path, Kind: q.kinds[path]})
	}
	q.order = nil
	q.kinds = map[string]ChangeKind{}
	process := q.process
	q.mu.Unlock()

	if process != nil {
		process(batch)
	}
}

// Len reports how many events are queued, deferred ones excluded.
func (q *ChangeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Stop discards pending events and rejects new ones.
func (q *ChangeQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.order = nil
	q.kinds = map[string]ChangeKind{}
	q.deferred = map[string]ChangeKind{}
}
