package eventtracker

import (
	"time"

	"github.com/flowmetric/eventtracker/internal/redisbacklog"
)

// RedisBacklogConfig configures an optional Redis-backed EventBacklog,
// trading the default in-memory backlog's "no persistent on-disk backlog"
// guarantee for cross-process durability and shared backlog state across
// multiple Client instances. Strictly opt-in: see DESIGN.md Open Question
// OQ-2.
type RedisBacklogConfig struct {
	// URL is the Redis connection URL: redis://[:password@]host:port[/db].
	URL string

	// KeyPrefix namespaces this Tracker's lists in a shared Redis instance.
	// Defaults to "eventtracker:backlog:".
	KeyPrefix string

	// Capacity bounds each stream's list length, mirroring BacklogSize.
	Capacity int64
}

// NewRedisBacklog connects to Redis per cfg and returns an EventBacklog
// implementation suitable for Config.Backlog.
func NewRedisBacklog(cfg RedisBacklogConfig) (EventBacklog, error) {
	backend, err := redisbacklog.New(redisbacklog.Config{
		URL:       cfg.URL,
		KeyPrefix: cfg.KeyPrefix,
		Capacity:  cfg.Capacity,
	})
	if err != nil {
		return nil, err
	}
	return &redisBacklogAdapter{backend: backend}, nil
}

// redisBacklogAdapter translates between eventtracker.Event and
// internal/redisbacklog.Event so the Redis-backed implementation can satisfy
// EventBacklog without internal/redisbacklog importing the root package.
type redisBacklogAdapter struct {
	backend *redisbacklog.Backlog
}

func (a *redisBacklogAdapter) Add(event Event, blocking bool, timeout time.Duration) error {
	err := a.backend.Add(redisbacklog.Event{Stream: event.Stream, Data: event.Data}, blocking, timeout)
	if err == redisbacklog.ErrBacklogFull {
		return ErrBacklogFull
	}
	return err
}

func (a *redisBacklogAdapter) Get(stream string) (Event, bool) {
	event, ok := a.backend.Get(stream)
	if !ok {
		return Event{}, false
	}
	return Event{Stream: event.Stream, Data: event.Data}, true
}

func (a *redisBacklogAdapter) IsEmpty() bool {
	return a.backend.IsEmpty()
}

// Close releases the underlying Redis connection pool. Call it after
// Client.Stop when a RedisBacklogConfig-backed backlog was used.
func (a *redisBacklogAdapter) Close() error {
	return a.backend.Close()
}
