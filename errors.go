package eventtracker

import "errors"

// Sentinel errors returned by the Tracker's internal components. Track()
// never returns these to its caller — every one of them is instead reported
// through the configured ErrorCallback (a batch the handler cannot submit to
// the worker pool is reported with status 400 and the batch as data).
var (
	// ErrBacklogFull is returned by EventBacklog.Add when a stream's FIFO
	// is at capacity and either the backlog is non-blocking or the
	// blocking wait timed out.
	ErrBacklogFull = errors.New("eventtracker: backlog is full")

	// ErrPoolFull is returned by the batch worker pool's submit when its
	// task queue is at capacity and the submit is non-blocking.
	ErrPoolFull = errors.New("eventtracker: batch worker pool is full")

	// ErrStopped is returned by Submit once the worker pool has been
	// stopped.
	ErrStopped = errors.New("eventtracker: worker pool stopped")

	// ErrEmptyStream is reported through the configured ErrorCallback by
	// Track when stream is the empty string.
	ErrEmptyStream = errors.New("eventtracker: stream must not be empty")
)
