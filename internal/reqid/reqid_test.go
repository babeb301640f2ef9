package reqid

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware_GeneratesAndEchoes(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(rr, req)
	if rr.Header().Get(Header) == "" {
		t.Fatalf("expected non-empty %s header", Header)
	}
}

func TestMiddleware_HonorsIncoming(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "abc123")
	h.ServeHTTP(rr, req)
	if rr.Header().Get(Header) != "abc123" {
		t.Fatalf("expected echoed header abc123, got %q", rr.Header().Get(Header))
	}
}

func TestMiddleware_PropagatesIntoHandlerContext(t *testing.T) {
	observedHeader := "X-Observed-Request-ID"
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := From(r.Context()); ok {
			w.Header().Set(observedHeader, id)
		}
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "abc123")
	h.ServeHTTP(rr, req)
	if rr.Header().Get(observedHeader) != "abc123" {
		t.Fatalf("handler did not observe request id in context; got %q", rr.Header().Get(observedHeader))
	}
}

func TestFrom_MissingAndEmpty(t *testing.T) {
	if _, ok := From(nil); ok {
		t.Fatalf("expected no id from nil context")
	}
	ctx := With(nil, "")
	if _, ok := From(ctx); ok {
		t.Fatalf("expected empty id to be treated as absent")
	}
}
