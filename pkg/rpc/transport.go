package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/canopy-network/questview/pkg/utils"
)

// ErrNoEndpoint is returned when every endpoint is skipped because its breaker is open.
var ErrNoEndpoint = errors.New("no ledger endpoint available")

// Transport is an http.RoundTripper for JSON-RPC traffic that spreads calls over several
// node endpoints. It implements a circuit-breaker per endpoint and a shared token-bucket.
type Transport struct {
	endpoints []*url.URL
	base      http.RoundTripper

	// token-bucket
	tokenMu     sync.Mutex
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new Transport.
type Opts struct {
	Endpoints       []string
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	Base            http.RoundTripper
}

// NewTransport creates a new Transport with the given options.
func NewTransport(o Opts) (*Transport, error) {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}
	if o.Base == nil {
		o.Base = http.DefaultTransport
	}

	eps := utils.Dedup(o.Endpoints)
	if len(eps) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}
	parsed := make([]*url.URL, 0, len(eps))
	for _, ep := range eps {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid endpoint %q", ep)
		}
		parsed = append(parsed, u)
	}

	t := &Transport{
		endpoints:        parsed,
		base:             o.Base,
		maxTokens:        int64(o.Burst),
		refillEvery:      max(time.Second/time.Duration(o.RPS), time.Nanosecond),
		lastRefill:       time.Now(),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	t.tokens = t.maxTokens
	return t, nil
}

// Primary returns the first configured endpoint, used as the dial URL.
func (t *Transport) Primary() string {
	return t.endpoints[0].String()
}

// Client wraps the transport in an http.Client with the given timeout.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

// tryAcquire refills the bucket and takes one token if available.
func (t *Transport) tryAcquire() bool {
	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()
	if elapsed := time.Since(t.lastRefill); elapsed >= t.refillEvery {
		t.tokens += int64(elapsed / t.refillEvery)
		if t.tokens > t.maxTokens {
			t.tokens = t.maxTokens
		}
		t.lastRefill = time.Now()
	}
	if t.tokens > 0 {
		t.tokens--
		return true
	}
	return false
}

// acquire blocks until a token is available or ctx is done.
func (t *Transport) acquire(ctx context.Context) error {
	for !t.tryAcquire() {
		timer := time.NewTimer(t.refillEvery / 2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// isOpen returns true if the endpoint's breaker is OPEN.
func (t *Transport) isOpen(ep string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(t.opened, ep)
		t.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure opens the breaker once the failure count reaches the threshold.
func (t *Transport) noteFailure(ep string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ep]++
	if t.failures[ep] >= t.breakerThreshold {
		t.opened[ep] = time.Now().Add(t.breakerCooldown)
	}
}

func (t *Transport) noteSuccess(ep string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ep] = 0
}

// RoundTrip sends req to the first healthy endpoint, failing over on transport errors and
// 5xx responses. JSON-RPC errors arrive as 200 and are passed through untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var payload []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		payload = b
	}

	lastErr := ErrNoEndpoint
	for _, ep := range t.endpoints {
		key := ep.String()
		if t.isOpen(key) {
			continue
		}
		if err := t.acquire(req.Context()); err != nil {
			return nil, err
		}

		out := req.Clone(req.Context())
		u := *ep
		out.URL = &u
		out.Host = ep.Host
		out.Body = io.NopCloser(bytes.NewReader(payload))
		out.ContentLength = int64(len(payload))
		out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }

		resp, err := t.base.RoundTrip(out)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			t.noteFailure(key)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("endpoint %s: server %d", key, resp.StatusCode)
			t.noteFailure(key)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		t.noteSuccess(key)
		return resp, nil
	}

	return nil, lastErr
}
