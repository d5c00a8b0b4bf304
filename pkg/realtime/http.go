package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service sits behind the platform gateway, which enforces origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

type HTTPHandler struct {
	hub *Hub
}

func NewHTTPHandler(hub *Hub) *HTTPHandler {
	return &HTTPHandler{hub: hub}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/ws", h.handleSubscribe).Methods(http.MethodGet)
}

// handleSubscribe upgrades the connection and streams events for one
// dataset or one organization, chosen by query parameter.
func (h *HTTPHandler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var channel string
	switch {
	case r.URL.Query().Get("dataset_id") != "":
		channel = progress.DatasetChannel(r.URL.Query().Get("dataset_id"))
	case r.URL.Query().Get("organization_id") != "":
		channel = progress.OrganizationChannel(r.URL.Query().Get("organization_id"))
	default:
		http.Error(w, "dataset_id or organization_id query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{channel: channel, send: make(chan []byte, clientBuffer)}
	h.hub.register(c)
	logger.Log.WithField("channel", channel).Debug("websocket subscriber connected")

	go h.writePump(conn, c)
	go h.readPump(conn, c)
}

func (h *HTTPHandler) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so pings and close frames are processed.
// Subscribers are read-only; anything they send is discarded.
func (h *HTTPHandler) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.hub.unregister(c)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
