// Package dedup provides optional client-side suppression of duplicate
// Track calls using a sliding window bloom filter, absorbing accidental
// re-submission from a flaky producer before an event ever reaches the
// backlog. It has no effect on the server's own at-least-once contract —
// it only prevents the same (stream, data) pair from being sent twice by
// this process within the window.
package dedup

import "context"

// Deduplicator checks whether a Track call's (stream, data) key has been
// seen within the configured time window. Implementations must be safe for
// concurrent use.
type Deduplicator interface {
	// IsDuplicate returns true if the given key was already seen within
	// the sliding window. An empty key always returns false.
	IsDuplicate(key string) bool

	// Start begins the background bloom filter rotation goroutine.
	// The goroutine stops when ctx is cancelled or Stop is called.
	Start(ctx context.Context)

	// Stop signals the rotation goroutine to stop and waits for it
	// to finish.
	Stop()
}
