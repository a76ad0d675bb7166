package eventtracker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestHandler(t *testing.T, cfg *Config) (*trackerHandler, *memoryBacklog, *[]sendTask, *sync.Mutex) {
	t.Helper()

	backlog := newMemoryBacklog(100)
	var submitted []sendTask
	var mu sync.Mutex
	pool := newBatchWorkerPool(1, 10, func(task sendTask) {
		mu.Lock()
		submitted = append(submitted, task)
		mu.Unlock()
	})
	t.Cleanup(pool.Stop)

	var running, flushAll, alive atomic.Bool
	running.Store(true)
	alive.Store(true)

	h := newTrackerHandler(cfg, backlog, pool, &metricsRecorder{}, newStreamKeyMap(), &running, &flushAll, &alive)
	return h, backlog, &submitted, &mu
}

func waitForSubmissions(t *testing.T, submitted *[]sendTask, mu *sync.Mutex, want int, timeout time.Duration) []sendTask {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(*submitted)
		mu.Unlock()
		if n >= want {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	out := make([]sendTask, len(*submitted))
	copy(out, *submitted)
	return out
}

// TestTrackerHandler_BatchSizeTriggerEmits verifies a stream's buffer emits
// once it accumulates BatchSize events, without waiting for a flush.
func TestTrackerHandler_BatchSizeTriggerEmits(t *testing.T) {
	cfg := &Config{BatchSize: 2, BatchBytesSize: 1 << 20, Logger: testLogger(), IsBlocking: boolPtr(true)}

	h, backlog, submitted, mu := newTestHandler(t, cfg)
	h.streamKeys.upsert("clicks", "key")

	go h.run()
	t.Cleanup(func() { h.running.Store(false) })

	if err := backlog.Add(Event{Stream: "clicks", Data: "a"}, false, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := backlog.Add(Event{Stream: "clicks", Data: "b"}, false, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// The handler idles 2s whenever it finds the backlog empty, so allow
	// for one idle sleep before the submission.
	tasks := waitForSubmissions(t, submitted, mu, 1, 5*time.Second)
	if len(tasks) != 1 {
		t.Fatalf("got %d submissions, want 1", len(tasks))
	}
	if len(tasks[0].batch) != 2 || tasks[0].batch[0] != "a" || tasks[0].batch[1] != "b" {
		t.Errorf("batch = %v, want [a b]", tasks[0].batch)
	}
}

// TestTrackerHandler_BatchBytesTriggerEmits verifies a stream's buffer emits
// once its accumulated byte count reaches BatchBytesSize, even below
// BatchSize.
func TestTrackerHandler_BatchBytesTriggerEmits(t *testing.T) {
	cfg := &Config{BatchSize: 1000, BatchBytesSize: 5, Logger: testLogger(), IsBlocking: boolPtr(true)}

	h, backlog, submitted, mu := newTestHandler(t, cfg)
	h.streamKeys.upsert("clicks", "key")

	go h.run()
	t.Cleanup(func() { h.running.Store(false) })

	if err := backlog.Add(Event{Stream: "clicks", Data: "123456"}, false, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tasks := waitForSubmissions(t, submitted, mu, 1, 5*time.Second)
	if len(tasks) != 1 {
		t.Fatalf("got %d submissions, want 1", len(tasks))
	}
	if len(tasks[0].batch) != 1 || tasks[0].batch[0] != "123456" {
		t.Errorf("batch = %v, want [123456]", tasks[0].batch)
	}
}

// TestTrackerHandler_FlushAllEmitsPartialBuffer verifies a buffer below
// every trigger threshold still emits once flushAll is set.
func TestTrackerHandler_FlushAllEmitsPartialBuffer(t *testing.T) {
	cfg := &Config{BatchSize: 1000, BatchBytesSize: 1 << 20, Logger: testLogger(), IsBlocking: boolPtr(true)}

	h, backlog, submitted, mu := newTestHandler(t, cfg)
	h.streamKeys.upsert("clicks", "key")

	go h.run()
	t.Cleanup(func() { h.running.Store(false) })

	if err := backlog.Add(Event{Stream: "clicks", Data: "a"}, false, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Wait until the handler has drained the single event out of the
	// backlog into its buffer before requesting a flush: a flush-all sweep
	// only emits in-memory buffers. The handler then idles 2s on the empty
	// backlog before it sees the flag.
	waitUntil(t, backlog.IsEmpty, 5*time.Second)
	h.flushAll.Store(true)

	tasks := waitForSubmissions(t, submitted, mu, 1, 5*time.Second)
	if len(tasks) != 1 {
		t.Fatalf("got %d submissions, want 1", len(tasks))
	}
	if len(tasks[0].batch) != 1 || tasks[0].batch[0] != "a" {
		t.Errorf("batch = %v, want [a]", tasks[0].batch)
	}
}

// TestTrackerHandler_FlushAllClearsFlagWhenAlive verifies the handler clears
// flushAll on its own once the sweep completes, provided alive is still
// true.
func TestTrackerHandler_FlushAllClearsFlagWhenAlive(t *testing.T) {
	cfg := &Config{BatchSize: 1000, BatchBytesSize: 1 << 20, Logger: testLogger(), IsBlocking: boolPtr(true)}

	h, backlog, submitted, mu := newTestHandler(t, cfg)
	h.streamKeys.upsert("clicks", "key")

	go h.run()
	t.Cleanup(func() { h.running.Store(false) })

	if err := backlog.Add(Event{Stream: "clicks", Data: "a"}, false, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	h.flushAll.Store(true)

	waitForSubmissions(t, submitted, mu, 1, time.Second)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !h.flushAll.Load() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("flushAll was never cleared")
}

// TestTrackerHandler_EmitNoOpOnEmptyBuffer verifies emit is a no-op for a
// stream with no buffered data, covering the flush-all sweep over streams
// that never accumulated anything.
func TestTrackerHandler_EmitNoOpOnEmptyBuffer(t *testing.T) {
	cfg := &Config{BatchSize: 10, BatchBytesSize: 1 << 20, Logger: testLogger(), IsBlocking: boolPtr(true)}
	h, _, submitted, mu := newTestHandler(t, cfg)
	h.streamKeys.upsert("clicks", "key")

	h.emit("clicks", "key")

	mu.Lock()
	n := len(*submitted)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("got %d submissions, want 0", n)
	}
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func boolPtr(b bool) *bool { return &b }
