package eventtracker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// Method selects the HTTP verb used to send a single event. Batches are
// always sent by POST, matching the collection service's contract.
type Method string

const (
	MethodPOST Method = "POST"
	MethodGET  Method = "GET"
)

// Response is the outcome of one HTTP attempt against the collection
// service: either a preserved response body (Data on 2xx/3xx, Error on 4xx)
// or a synthetic transport failure.
type Response struct {
	Status int
	Data   []byte
	Error  string
}

// Sender is the out-of-core-scope synchronous HTTP collaborator: one
// request, one response, no retries, no state. The Retry/Backoff loop in
// retry.go is the only caller that retries.
//
// Exposed as an interface (Config.Sender) so tests and alternate transports
// can stand in for the default httpSender, keeping the low-level transport
// independent of the asynchronous Tracker built on top of it.
type Sender interface {
	// SendEvent sends one event's data to the endpoint root.
	SendEvent(ctx context.Context, stream, data, authKey string, method Method) (*Response, error)

	// SendBatch sends a batch of data strings for one stream to the
	// endpoint's "bulk" path.
	SendBatch(ctx context.Context, stream string, batch []string, authKey string) (*Response, error)
}

// httpSender is the default Sender: an envelope of {table, data, auth?,
// bulk?} posted or GET-ed against endpoint, with an HMAC-SHA256 "auth" tag
// and a pair of SDK identification headers.
type httpSender struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
}

// envelope is the wire request body. Bulk is only ever written as true:
// single-event sends never set it, so the field is present only when it
// matters.
type envelope struct {
	Table string `json:"table"`
	Data  string `json:"data"`
	Auth  string `json:"auth,omitempty"`
	Bulk  bool   `json:"bulk,omitempty"`
}

// newHTTPSender builds the default Sender. maxRequestsPerSecond <= 0
// disables rate limiting.
func newHTTPSender(endpoint string, requestTimeout time.Duration, maxRequestsPerSecond float64) *httpSender {
	s := &httpSender{
		client:   &http.Client{Timeout: requestTimeout},
		endpoint: endpoint,
	}
	if maxRequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
	}
	return s
}

func (s *httpSender) SendEvent(ctx context.Context, stream, data, authKey string, method Method) (*Response, error) {
	body, err := buildEnvelope(stream, data, authKey, false)
	if err != nil {
		return &Response{Status: 400, Error: err.Error()}, nil
	}

	if method == MethodGET {
		return s.do(ctx, http.MethodGet, s.endpoint, body)
	}
	return s.do(ctx, http.MethodPost, s.endpoint, body)
}

func (s *httpSender) SendBatch(ctx context.Context, stream string, batch []string, authKey string) (*Response, error) {
	arrayJSON, err := gojson.Marshal(batch)
	if err != nil {
		return &Response{Status: 400, Error: err.Error()}, nil
	}

	body, err := buildEnvelope(stream, string(arrayJSON), authKey, true)
	if err != nil {
		return &Response{Status: 400, Error: err.Error()}, nil
	}

	return s.do(ctx, http.MethodPost, s.endpoint+"bulk", body)
}

// buildEnvelope marshals the {table, data, auth?, bulk?} envelope. The HMAC
// is computed over the UTF-8 bytes of data exactly as it appears in the
// envelope, per the design's resolution of the HMAC-input question; it is
// omitted entirely when authKey is empty.
func buildEnvelope(stream, data, authKey string, bulk bool) ([]byte, error) {
	env := envelope{Table: stream, Data: data, Bulk: bulk}
	if authKey != "" {
		mac := hmac.New(sha256.New, []byte(authKey))
		mac.Write([]byte(data))
		env.Auth = hex.EncodeToString(mac.Sum(nil))
	}
	return gojson.Marshal(env)
}

// do issues one HTTP request carrying body, applying the rate limiter (if
// configured) and the required SDK identification headers, and maps the
// result into a Response: 2xx/3xx, 4xx, 5xx, and transport errors are each
// classified distinctly.
func (s *httpSender) do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return &Response{Status: 500, Error: "No connection to server"}, nil
		}
	}

	req, err := s.buildRequest(ctx, method, rawURL, body)
	if err != nil {
		return &Response{Status: 400, Error: err.Error()}, nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &Response{Status: 500, Error: "No connection to server"}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{Status: 500, Error: "No connection to server"}, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return &Response{Status: resp.StatusCode, Data: respBody}, nil
	}
	return &Response{Status: resp.StatusCode, Error: string(respBody)}, nil
}

// buildRequest constructs the http.Request for method, base64-encoding
// body into a "data" query parameter for GET and sending it as a raw POST
// body otherwise.
func (s *httpSender) buildRequest(ctx context.Context, method, rawURL string, body []byte) (*http.Request, error) {
	var req *http.Request
	var err error

	if method == http.MethodGet {
		encoded := base64.StdEncoding.EncodeToString(body)
		u, parseErr := url.Parse(rawURL)
		if parseErr != nil {
			return nil, parseErr
		}
		q := u.Query()
		q.Set("data", encoded)
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(body)))
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("x-ironsource-atom-sdk-type", sdkType)
	req.Header.Set("x-ironsource-atom-sdk-version", SDKVersion)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (m Method) String() string { return string(m) }
