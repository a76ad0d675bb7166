// Package eventtracker provides an asynchronous, batching client SDK for a
// hosted event-collection service. Producers call Track to submit JSON-shaped
// events tagged by a logical stream name; the Client buffers them in a
// per-stream backlog, assembles size- and time-bounded batches, and transmits
// each batch over HTTP with an HMAC authentication tag, retrying transient
// server failures with full-jitter exponential backoff.
package eventtracker

// SDKVersion is the current version of this SDK, sent on every request via
// the x-ironsource-atom-sdk-version header for collector-side diagnostics.
const SDKVersion = "1.0.0"

// sdkType identifies this SDK implementation on the wire.
const sdkType = "go"

// Event is a single (stream, data) tuple submitted by a producer. It is
// immutable after construction: Track copies the fields it needs and the
// original Event is never mutated or retained beyond that point.
type Event struct {
	// Stream is the logical destination name ("table") at the collection
	// service. Must be non-empty.
	Stream string

	// Data is the UTF-8 JSON payload for this event, already encoded as a
	// string. Track accepts arbitrary values and encodes them into this
	// field; code constructing an Event directly must pass valid JSON.
	Data string
}
