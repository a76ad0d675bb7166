package eventtracker

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
)

// TestClient_TrackFlushStop_DeliversEvents is an end-to-end test: a Client
// backed by a real httptest server, tracking a handful of events and
// requesting a manual Flush, verifies at least one batch reaches the server
// before Stop drains and returns. A flush only emits events the handler has
// already moved into its buffers, and the handler idles 2s whenever the
// backlog is empty, so the batch may instead go out on a later periodic
// flush (1s, the minimum interval).
func TestClient_TrackFlushStop_DeliversEvents(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := Config{
		Endpoint:              server.URL + "/",
		FlushInterval:         time.Second,
		BatchSize:             1000,
		BatchBytesSize:        1 << 20,
		BacklogSize:           100,
		BatchWorkerCount:      1,
		BatchPoolSize:         10,
		RequestTimeout:        time.Second,
		DisableSignalHandling: true,
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	client.Track("clicks", map[string]any{"x": 1}, "")
	client.Track("clicks", map[string]any{"x": 2}, "")
	client.Flush()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && requestCount.Load() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if requestCount.Load() == 0 {
		t.Fatal("expected at least one request to reach the server")
	}

	client.Stop()
}

// TestClient_Track_EmptyStreamReportsCallback verifies Track reports an
// input error through Callback for an empty stream name without ever
// reaching the backlog.
func TestClient_Track_EmptyStreamReportsCallback(t *testing.T) {
	var callbackCalls atomic.Int32
	var lastStatus int

	cfg := Config{
		Endpoint:              "http://unused.invalid/",
		DisableSignalHandling: true,
		Callback: func(_ float64, status int, _ string, _ any, _ string) {
			callbackCalls.Add(1)
			lastStatus = status
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Stop()

	client.Track("", "data", "")

	if callbackCalls.Load() != 1 {
		t.Fatalf("callback calls = %d, want 1", callbackCalls.Load())
	}
	if lastStatus != 400 {
		t.Errorf("status = %d, want 400", lastStatus)
	}
}

// TestClient_Track_StringDataPassedThroughUnencoded verifies that string
// data is used as-is (not re-encoded as a JSON string literal): the batch
// array carried in the envelope's data field holds the original string.
func TestClient_Track_StringDataPassedThroughUnencoded(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := Config{
		Endpoint:              server.URL + "/",
		FlushInterval:         time.Hour,
		BatchSize:             1,
		BatchBytesSize:        1 << 20,
		BacklogSize:           10,
		BatchWorkerCount:      1,
		BatchPoolSize:         10,
		RequestTimeout:        time.Second,
		DisableSignalHandling: true,
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Stop()

	client.Track("clicks", `{"already":"json"}`, "")

	select {
	case body := <-received:
		var env envelope
		if err := gojson.Unmarshal([]byte(body), &env); err != nil {
			t.Fatalf("unmarshal envelope %q: %v", body, err)
		}
		var batch []string
		if err := gojson.Unmarshal([]byte(env.Data), &batch); err != nil {
			t.Fatalf("unmarshal batch array %q: %v", env.Data, err)
		}
		if len(batch) != 1 || batch[0] != `{"already":"json"}` {
			t.Errorf("batch = %q, want the raw string data unchanged", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received a request")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

// TestClient_Stop_IsIdempotent verifies calling Stop more than once does not
// panic or block.
func TestClient_Stop_IsIdempotent(t *testing.T) {
	cfg := Config{
		Endpoint:              "http://unused.invalid/",
		DisableSignalHandling: true,
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	client.Stop()
	client.Stop()
}

// TestToJSONString_PassesStringsThroughAndEncodesOthers verifies the
// non-string/string branch of toJSONString.
func TestToJSONString_PassesStringsThroughAndEncodesOthers(t *testing.T) {
	s, err := toJSONString("already a string")
	if err != nil {
		t.Fatalf("toJSONString(string): %v", err)
	}
	if s != "already a string" {
		t.Errorf("got %q, want unchanged string", s)
	}

	s, err = toJSONString(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("toJSONString(map): %v", err)
	}
	if s != `{"a":1}` {
		t.Errorf("got %q, want %q", s, `{"a":1}`)
	}
}
