// Package transport implements the Transport collaborator (§6): do(request)
// -> (response | error), with no built-in retry semantics — retries are the
// adapter's responsibility.
package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Request is the transport-agnostic request shape adapters build.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    io.Reader
	// Deadline, if non-zero, bounds the request beyond any deadline already
	// present on the context passed to Do.
	Deadline time.Time
}

// Response is the transport-agnostic response shape adapters parse.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string][]string
}

// Transport performs a single request/response round trip.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// RateLimitConfig controls the per-provider token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultRateLimitConfig matches the conservative per-provider default used
// when a provider's config does not override it.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 5, Burst: 10}
}

// HTTPTransport is the real Transport backed by *http.Client, rate-limited
// per instance: every caller sharing one HTTPTransport shares its limit.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewHTTPTransport builds a rate-limited HTTPTransport.
func NewHTTPTransport(client *http.Client, cfg RateLimitConfig) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &HTTPTransport{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Do applies req.Deadline (if set) on top of ctx, waits on the rate limiter,
// then performs the HTTP round trip. The per-tick deadline (§4.1) arrives on
// the caller's ctx.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (Response, error) {
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return Response{}, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}

// Fake is an in-memory Transport for tests: it returns a queued response (or
// error) per call, in FIFO order, falling back to the last queued entry once
// exhausted.
type Fake struct {
	mu        sync.Mutex
	responses []fakeEntry
	calls     []Request
}

type fakeEntry struct {
	resp Response
	err  error
}

// NewFake builds an empty Fake transport.
func NewFake() *Fake {
	return &Fake{}
}

// QueueResponse appends a successful response to be returned on the next Do.
func (f *Fake) QueueResponse(resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeEntry{resp: resp})
}

// QueueError appends an error to be returned on the next Do.
func (f *Fake) QueueError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeEntry{err: err})
}

// Do implements Transport.
func (f *Fake) Do(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return Response{}, io.EOF
	}
	next := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return next.resp, next.err
}

// Calls returns every request observed so far, for test assertions.
func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}
