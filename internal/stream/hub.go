// Package stream pushes live fetch progress to WebSocket subscribers
// on the debug listener.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/livingsilver94/serpentos-libmoss/fetcher"
)

// frame is the JSON shape written for every progress report.
type frame struct {
	URI        string `json:"uri"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Worker     int    `json:"worker"`
	BytesNow   uint64 `json:"bytesNow"`
	BytesTotal uint64 `json:"bytesTotal"`
}

// Hub fans fetch progress out to connected WebSocket clients. The zero
// value is not usable; build one with NewHub.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger, conns: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request and keeps the connection subscribed
// until the client goes away. Incoming messages are read and
// discarded; the stream is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error("websocket accept", "err", err)
		return
	}
	h.add(conn)
	defer h.remove(conn)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast writes one report to every subscriber. Connections that
// cannot keep up are dropped.
func (h *Hub) Broadcast(rep fetcher.ProgressReport) {
	data, err := json.Marshal(frame{
		URI:        rep.Job.SourceURI,
		Path:       rep.Job.DestinationPath,
		Kind:       rep.Job.Kind.String(),
		Worker:     rep.WorkerIndex,
		BytesNow:   rep.BytesNow,
		BytesTotal: rep.BytesTotal,
	})
	if err != nil {
		h.log.Error("marshal progress frame", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			delete(h.conns, conn)
			_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
		}
	}
}

// Run consumes reports from ch until it is closed, broadcasting each
// one. It is meant to run on its own goroutine next to a ChanSink.
func (h *Hub) Run(ch <-chan fetcher.ProgressReport) {
	for rep := range ch {
		h.Broadcast(rep)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}
