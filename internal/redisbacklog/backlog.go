// Package redisbacklog is an optional, pluggable EventBacklog backend for
// the Tracker pipeline, backed by Redis lists instead of an in-process map.
// It exists as a swap-in replacement for the default in-memory backlog, not
// to become the default path: it trades the default's non-persistence
// guarantee for cross-process durability, strictly opt-in.
package redisbacklog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrBacklogFull mirrors the root package's sentinel so callers that only
// import this package still get a recognizable error. It is a distinct
// value from eventtracker.ErrBacklogFull; the root package's adapter
// (eventtracker.NewRedisBacklog) translates it into
// eventtracker.ErrBacklogFull, so callers going through
// eventtracker.EventBacklog see the root sentinel.
var ErrBacklogFull = errors.New("redisbacklog: backlog is full")

// Event is the minimal (stream, data) pair this package persists; it
// mirrors eventtracker.Event without importing the root package, avoiding
// an import cycle (the root package imports this one for its optional
// Redis backlog wiring).
type Event struct {
	Stream string
	Data   string
}

// Config configures the Redis connection and key layout.
type Config struct {
	// URL is the Redis connection URL: redis://[:password@]host:port[/db].
	URL string
	// KeyPrefix namespaces this Tracker's lists, so multiple Trackers can
	// share one Redis instance. Defaults to "eventtracker:backlog:".
	KeyPrefix string
	// Capacity bounds each stream's list length.
	Capacity int64
}

// Backlog implements eventtracker.EventBacklog using one Redis list per
// stream: RPush on Add, LPop on Get, LLen to bound capacity and to answer
// IsEmpty.
type Backlog struct {
	client    *goredis.Client
	keyPrefix string
	capacity  int64

	// streamsMu guards streams, which is written by every producer
	// goroutine calling Add and by the single consumer goroutine calling
	// Get, and ranged over by IsEmpty.
	streamsMu sync.Mutex

	// streams tracks every key this process has pushed to, so IsEmpty
	// doesn't need a Redis SCAN on every handler poll.
	streams map[string]struct{}
}

// New connects to Redis per cfg and returns a Backlog ready for use.
func New(cfg Config) (*Backlog, error) {
	if cfg.URL == "" {
		return nil, errors.New("redisbacklog: URL is required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redisbacklog: invalid URL: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "eventtracker:backlog:"
	}

	return &Backlog{
		client:    goredis.NewClient(opts),
		keyPrefix: prefix,
		capacity:  cfg.Capacity,
		streams:   make(map[string]struct{}),
	}, nil
}

// Close releases the underlying Redis connection pool.
func (b *Backlog) Close() error {
	return b.client.Close()
}

func (b *Backlog) key(stream string) string {
	return b.keyPrefix + stream
}

// Add appends event to its stream's list. If the list is at capacity, Add
// fails immediately with ErrBacklogFull when blocking is false; when
// blocking is true it polls until room frees up or timeout elapses (zero
// timeout waits indefinitely), matching the in-memory backlog's contract
// without a native blocking-push primitive in Redis list semantics.
func (b *Backlog) Add(event Event, blocking bool, timeout time.Duration) error {
	ctx := context.Background()
	key := b.key(event.Stream)

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if b.capacity <= 0 {
			return b.push(ctx, key, event)
		}

		length, err := b.client.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redisbacklog: LLEN %s: %w", key, err)
		}

		if length < b.capacity {
			return b.push(ctx, key, event)
		}

		if !blocking {
			return ErrBacklogFull
		}
		if timeout > 0 && time.Now().After(deadline) {
			return ErrBacklogFull
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (b *Backlog) push(ctx context.Context, key string, event Event) error {
	if err := b.client.RPush(ctx, key, event.Data).Err(); err != nil {
		return fmt.Errorf("redisbacklog: RPUSH %s: %w", key, err)
	}
	b.streamsMu.Lock()
	b.streams[event.Stream] = struct{}{}
	b.streamsMu.Unlock()
	return nil
}

// Get removes and returns the oldest event for stream, or ok == false if
// that stream's list is empty or unknown.
func (b *Backlog) Get(stream string) (Event, bool) {
	val, err := b.client.LPop(context.Background(), b.key(stream)).Result()
	if err != nil {
		return Event{}, false
	}
	b.streamsMu.Lock()
	b.streams[stream] = struct{}{}
	b.streamsMu.Unlock()
	return Event{Stream: stream, Data: val}, true
}

// IsEmpty reports whether every stream list this process has touched is
// currently empty.
func (b *Backlog) IsEmpty() bool {
	ctx := context.Background()

	b.streamsMu.Lock()
	streams := make([]string, 0, len(b.streams))
	for stream := range b.streams {
		streams = append(streams, stream)
	}
	b.streamsMu.Unlock()

	for _, stream := range streams {
		length, err := b.client.LLen(ctx, b.key(stream)).Result()
		if err != nil {
			continue
		}
		if length > 0 {
			return false
		}
	}
	return true
}
