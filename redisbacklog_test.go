package eventtracker

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisBacklog(t *testing.T) EventBacklog {
	t.Helper()
	mr := miniredis.RunT(t)
	backlog, err := NewRedisBacklog(RedisBacklogConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisBacklog: %v", err)
	}
	t.Cleanup(func() {
		if closer, ok := backlog.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	return backlog
}

func TestRedisBacklogAdapter_SatisfiesEventBacklog(t *testing.T) {
	backlog := newTestRedisBacklog(t)

	if !backlog.IsEmpty() {
		t.Fatal("IsEmpty: expected true for a fresh backlog")
	}

	if err := backlog.Add(Event{Stream: "events", Data: `{"a":1}`}, false, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := backlog.Get("events")
	if !ok {
		t.Fatal("Get: expected an event")
	}
	if got.Stream != "events" || got.Data != `{"a":1}` {
		t.Fatalf("Get: got %+v", got)
	}
	if !backlog.IsEmpty() {
		t.Fatal("IsEmpty: expected true after draining the only event")
	}
}

func TestRedisBacklogAdapter_FullReturnsSentinelError(t *testing.T) {
	mr := miniredis.RunT(t)
	backlog, err := NewRedisBacklog(RedisBacklogConfig{URL: "redis://" + mr.Addr(), Capacity: 1})
	if err != nil {
		t.Fatalf("NewRedisBacklog: %v", err)
	}

	if err := backlog.Add(Event{Stream: "events", Data: "a"}, false, 0); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := backlog.Add(Event{Stream: "events", Data: "b"}, false, 0); err != ErrBacklogFull {
		t.Fatalf("second Add: got %v, want ErrBacklogFull", err)
	}
}
