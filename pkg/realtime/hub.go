// Package realtime fans Redis pub/sub progress events out to WebSocket
// subscribers. The ingestion worker publishes to ws:dataset:<id> and
// ws:organization:<id>; the hub relays each payload verbatim to every
// connection subscribed to that channel.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datapilot-io/platform/pkg/common/logger"
)

const (
	channelPattern = "ws:*"

	// Slow consumers get dropped rather than backpressuring the hub.
	clientBuffer = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type client struct {
	channel string
	send    chan []byte
}

type Hub struct {
	rdb *redis.Client

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:     rdb,
		clients: make(map[string]map[*client]struct{}),
	}
}

// Run subscribes to all progress channels and routes messages until the
// context is cancelled. It blocks; run it in its own goroutine.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.rdb.PSubscribe(ctx, channelPattern)
	defer sub.Close()

	ch := sub.Channel()
	logger.Log.WithField("pattern", channelPattern).Info("realtime hub subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[channel] {
		select {
		case c.send <- payload:
		default:
			// Buffer full: the write pump will notice the closed
			// channel and tear the connection down.
			go h.unregister(c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.channel] == nil {
		h.clients[c.channel] = make(map[*client]struct{})
	}
	h.clients[c.channel][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.channel]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.channel)
	}
	close(c.send)
}

// SubscriberCount reports active connections on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}
