package fetcher

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestNewSharedConnStateValidation(t *testing.T) {
	if _, err := newSharedConnState(0, time.Minute); err == nil {
		t.Errorf("expected an error for zero workers")
	}
	if _, err := newSharedConnState(2, 0); err == nil {
		t.Errorf("expected an error for a non-positive dns ttl")
	}
	if _, err := newSharedConnState(2, time.Minute); err != nil {
		t.Errorf("valid construction failed: %v", err)
	}
}

func TestGuardsTrackTheirHolder(t *testing.T) {
	s, err := newSharedConnState(3, time.Minute)
	if err != nil {
		t.Fatalf("newSharedConnState: %v", err)
	}

	if got := s.holder(shareDNS); got != -1 {
		t.Fatalf("fresh dns guard held by %d, want free (-1)", got)
	}
	s.lock(1, shareDNS)
	if got := s.holder(shareDNS); got != 1 {
		t.Fatalf("dns guard held by %d, want 1", got)
	}
	// The other kind's guard is independent.
	s.lock(2, shareTLS)
	if got := s.holder(shareTLS); got != 2 {
		t.Fatalf("tls guard held by %d, want 2", got)
	}
	s.unlock(2, shareTLS)
	s.unlock(1, shareDNS)
	if s.holder(shareDNS) != -1 || s.holder(shareTLS) != -1 {
		t.Fatalf("guards not released: dns=%d tls=%d", s.holder(shareDNS), s.holder(shareTLS))
	}
}

func TestResolveServesCachedEntries(t *testing.T) {
	s, err := newSharedConnState(2, time.Minute)
	if err != nil {
		t.Fatalf("newSharedConnState: %v", err)
	}
	// A resolver that always fails proves cache hits never reach it.
	s.resolver = &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, errors.New("resolver must not be consulted")
		},
	}
	s.dns["cached.example"] = dnsEntry{
		addrs:   []string{"192.0.2.10"},
		expires: time.Now().Add(time.Hour),
	}

	addrs, err := s.resolve(context.Background(), 1, "cached.example")
	if err != nil {
		t.Fatalf("resolve hit the resolver despite a fresh cache entry: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "192.0.2.10" {
		t.Fatalf("resolve returned %v, want the cached address", addrs)
	}

	// An expired entry must go back to the resolver.
	s.dns["stale.example"] = dnsEntry{
		addrs:   []string{"192.0.2.11"},
		expires: time.Now().Add(-time.Second),
	}
	if _, err := s.resolve(context.Background(), 1, "stale.example"); err == nil {
		t.Fatalf("resolve served an expired entry without consulting the resolver")
	}
	if s.holder(shareDNS) != -1 {
		t.Fatalf("dns guard left held after resolve")
	}
}

func TestDialContextUsesIPLiteralsDirectly(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	s, err := newSharedConnState(1, time.Minute)
	if err != nil {
		t.Fatalf("newSharedConnState: %v", err)
	}
	dial := s.dialContext(0)
	conn, err := dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial to IP literal: %v", err)
	}
	conn.Close()
	if s.holder(shareDNS) != -1 {
		t.Fatalf("dns guard touched for an IP literal dial")
	}
}

func TestWorkerSessionCacheGuardsAccess(t *testing.T) {
	s, err := newSharedConnState(2, time.Minute)
	if err != nil {
		t.Fatalf("newSharedConnState: %v", err)
	}
	cache := workerSessionCache{shared: s, worker: 1}

	if _, ok := cache.Get("mirror.example:443"); ok {
		t.Fatalf("empty session cache reported a hit")
	}
	if got := s.holder(shareTLS); got != -1 {
		t.Fatalf("tls guard left held by %d after Get", got)
	}
	cache.Put("mirror.example:443", nil)
	if got := s.holder(shareTLS); got != -1 {
		t.Fatalf("tls guard left held by %d after Put", got)
	}
}

func TestSharedStateClose(t *testing.T) {
	s, err := newSharedConnState(2, time.Minute)
	if err != nil {
		t.Fatalf("newSharedConnState: %v", err)
	}
	s.dns["host.example"] = dnsEntry{addrs: []string{"192.0.2.1"}, expires: time.Now().Add(time.Hour)}
	s.close()
	if len(s.dns) != 0 {
		t.Fatalf("dns cache not dropped on close")
	}
	if s.holder(shareDNS) != -1 || s.holder(shareTLS) != -1 {
		t.Fatalf("guards left held after close")
	}
}
