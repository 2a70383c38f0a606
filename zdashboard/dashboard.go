// Package zdashboard serves a live view of search progress over a
// WebSocket, and relays the same progress events between processes over
// Redis Pub/Sub so every rank's dashboard shows the fleet-wide picture
// rather than just its own. The connection registry, per-connection
// send queue, and ping/broadcast loop are adapted from the teacher
// repository's analytics dashboard (concurrentanalyticsdashboard.go):
// the same pattern, narrowed from a generic multi-tenant analytics
// system down to one append-only feed of solver progress events.
package zdashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// RedisChannel is the Pub/Sub channel progress events are relayed on.
const RedisChannel = "zykov:progress"

// ProgressEvent is one update about the search's state, emitted by
// zsolve's threads and fanned out to every viewer connected to this
// rank's dashboard, plus to every other rank's dashboard via Redis.
type ProgressEvent struct {
	Rank      int     `json:"rank"`
	BestUB    uint16  `json:"best_ub"`
	QueueSize int     `json:"queue_size"`
	Idle      bool    `json:"idle"`
	Timestamp int64   `json:"timestamp"`
	NodesSec  float64 `json:"nodes_sec,omitempty"`
}

type connection struct {
	id        string
	conn      *websocket.Conn
	sendQueue chan []byte
	mu        sync.Mutex
	lastPing  time.Time
}

// Dashboard is a per-rank WebSocket server fed by ProgressEvent values,
// optionally mirrored across ranks through Redis.
type Dashboard struct {
	rank int

	connMu      sync.RWMutex
	connections map[string]*connection
	nextConnID  int64

	upgrader websocket.Upgrader

	redisClient *redis.Client
	pingPeriod  time.Duration
}

// New builds a Dashboard for the given rank. redisAddr may be empty to
// disable cross-rank relay (the dashboard still serves local events).
func New(rank int, redisAddr string) *Dashboard {
	d := &Dashboard{
		rank:        rank,
		connections: make(map[string]*connection),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingPeriod: 30 * time.Second,
	}
	if redisAddr != "" {
		d.redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return d
}

// Handler returns the http.Handler serving the WebSocket upgrade; wire it
// into whatever mux the process starts.
func (d *Dashboard) Handler() http.Handler {
	return http.HandlerFunc(d.handleWebSocket)
}

// Publish pushes ev to every locally connected viewer, and to the Redis
// channel if cross-rank relay is enabled.
func (d *Dashboard) Publish(ev ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	d.broadcastLocal(data)
	if d.redisClient != nil {
		d.redisClient.Publish(context.Background(), RedisChannel, data)
	}
}

// RunRelay subscribes to the Redis channel and re-broadcasts every
// message this rank didn't itself publish to its local viewers, until
// ctx is cancelled. A no-op when Redis relay is disabled.
func (d *Dashboard) RunRelay(ctx context.Context) {
	if d.redisClient == nil {
		return
	}
	sub := d.redisClient.Subscribe(ctx, RedisChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if ev.Rank == d.rank {
				continue
			}
			d.broadcastLocal([]byte(msg.Payload))
		}
	}
}

func (d *Dashboard) broadcastLocal(data []byte) {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	for _, c := range d.connections {
		select {
		case c.sendQueue <- data:
		default:
			// Viewer too slow to drain; drop rather than block the
			// publisher.
		}
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := fmt.Sprintf("conn-%d-%d", d.rank, atomic.AddInt64(&d.nextConnID, 1))
	c := &connection{id: id, conn: conn, sendQueue: make(chan []byte, 64), lastPing: time.Now()}

	d.connMu.Lock()
	d.connections[id] = c
	d.connMu.Unlock()

	go d.sender(c)
	d.reader(c)
}

func (d *Dashboard) reader(c *connection) {
	defer func() {
		c.conn.Close()
		d.connMu.Lock()
		delete(d.connections, c.id)
		d.connMu.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *Dashboard) sender(c *connection) {
	ticker := time.NewTicker(d.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.sendQueue:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.mu.Lock()
			c.lastPing = time.Now()
			c.mu.Unlock()
		}
	}
}
