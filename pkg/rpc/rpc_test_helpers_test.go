package rpc

import (
	"net/http"
	"net/http/httptest"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// handlerTransport serves every request through handlers keyed by host.
func handlerTransport(handlers map[string]http.Handler) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		h, ok := handlers[req.URL.Host]
		if !ok {
			return nil, &hostError{host: req.URL.Host}
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		resp := rec.Result()
		if resp.Body == nil {
			resp.Body = http.NoBody
		}
		return resp, nil
	})
}

type hostError struct{ host string }

func (e *hostError) Error() string { return "dial " + e.host + ": connection refused" }
