package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// shareKind tags which shared resource a transport callback is about
// to touch.
type shareKind int

const (
	shareDNS shareKind = iota
	shareTLS
	shareKindCount
)

// dnsEntry is one cached resolution.
type dnsEntry struct {
	addrs   []string
	expires time.Time
}

// sharedConnState is the cross-worker cache of DNS resolutions and TLS
// sessions. Each worker keeps its own persistent transport, so
// keep-alive connections are reused across that worker's jobs; name
// resolutions and TLS sessions are pooled here across the whole pool.
//
// Access follows a lock/unlock discipline driven by the transport
// itself: the dialer and session-cache hooks installed on a worker's
// transport call lock and unlock with the worker's index and the
// resource kind around every touch of shared state. Guards are held
// per resource kind, calls are strictly paired and never nested for
// the same kind.
type sharedConnState struct {
	guards  [shareKindCount]sync.Mutex
	holders [shareKindCount]atomic.Int32

	dns      map[string]dnsEntry
	dnsTTL   time.Duration
	sessions tls.ClientSessionCache
	resolver *net.Resolver
}

func newSharedConnState(workers int, dnsTTL time.Duration) (*sharedConnState, error) {
	if workers < 1 {
		return nil, fmt.Errorf("shared connection state needs at least one worker, got %d", workers)
	}
	if dnsTTL <= 0 {
		return nil, fmt.Errorf("dns cache ttl must be positive, got %v", dnsTTL)
	}
	s := &sharedConnState{
		dns:      make(map[string]dnsEntry),
		dnsTTL:   dnsTTL,
		sessions: tls.NewLRUClientSessionCache(0),
		resolver: net.DefaultResolver,
	}
	for i := range s.holders {
		s.holders[i].Store(-1)
	}
	return s, nil
}

// lock acquires the guard for one shared resource kind on behalf of
// the worker whose transport is about to touch it.
func (s *sharedConnState) lock(worker int, kind shareKind) {
	s.guards[kind].Lock()
	s.holders[kind].Store(int32(worker))
}

func (s *sharedConnState) unlock(worker int, kind shareKind) {
	s.holders[kind].Store(-1)
	s.guards[kind].Unlock()
}

// holder reports which worker currently holds the guard for kind, or
// -1 when it is free.
func (s *sharedConnState) holder(kind shareKind) int {
	return int(s.holders[kind].Load())
}

// resolve returns the addresses for host, consulting the shared cache
// first. Lookups happen outside the guard so a slow resolver does not
// stall every other worker's dials.
func (s *sharedConnState) resolve(ctx context.Context, worker int, host string) ([]string, error) {
	s.lock(worker, shareDNS)
	ent, ok := s.dns[host]
	s.unlock(worker, shareDNS)
	if ok && time.Now().Before(ent.expires) {
		return ent.addrs, nil
	}
	addrs, err := s.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	s.lock(worker, shareDNS)
	s.dns[host] = dnsEntry{addrs: addrs, expires: time.Now().Add(s.dnsTTL)}
	s.unlock(worker, shareDNS)
	return addrs, nil
}

// dialContext builds the dialer hook for one worker's transport,
// routing name resolution through the shared cache.
func (s *sharedConnState) dialContext(worker int) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if net.ParseIP(host) != nil {
			return d.DialContext(ctx, network, addr)
		}
		addrs, err := s.resolve(ctx, worker, host)
		if err != nil {
			return nil, err
		}
		var firstErr error
		for _, ip := range addrs {
			conn, err := d.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		return nil, firstErr
	}
}

// workerSessionCache routes one worker's TLS session lookups through
// the shared cache under the shareTLS guard.
type workerSessionCache struct {
	shared *sharedConnState
	worker int
}

func (c workerSessionCache) Get(key string) (*tls.ClientSessionState, bool) {
	c.shared.lock(c.worker, shareTLS)
	defer c.shared.unlock(c.worker, shareTLS)
	return c.shared.sessions.Get(key)
}

func (c workerSessionCache) Put(key string, cs *tls.ClientSessionState) {
	c.shared.lock(c.worker, shareTLS)
	defer c.shared.unlock(c.worker, shareTLS)
	c.shared.sessions.Put(key, cs)
}

// transport builds the persistent transport for one worker. It lives
// for the worker's whole life so the keep-alive pool carries over from
// job to job.
func (s *sharedConnState) transport(worker int) *http.Transport {
	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: s.dialContext(worker),
		TLSClientConfig: &tls.Config{
			ClientSessionCache: workerSessionCache{shared: s, worker: worker},
		},
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}
}

// close drops the cached state. Guards are taken so a straggling
// transport goroutine cannot race the teardown.
func (s *sharedConnState) close() {
	s.lock(0, shareDNS)
	s.dns = make(map[string]dnsEntry)
	s.unlock(0, shareDNS)
	s.lock(0, shareTLS)
	s.sessions = tls.NewLRUClientSessionCache(0)
	s.unlock(0, shareTLS)
}
