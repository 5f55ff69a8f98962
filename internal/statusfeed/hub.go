package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64

	// Path is where the hub accepts websocket subscribers.
	Path = "/events"
)

const (
	TypeStatus  = "status"
	TypeFailure = "failure"
)

// Message is one event on the feed.
type Message struct {
	Type    string               `json:"type"`
	Status  *domain.Status       `json:"status,omitempty"`
	Failure *domain.FailureEvent `json:"failure,omitempty"`
}

// Hub broadcasts controller events to websocket subscribers. It implements
// ports.EventSink.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	last    *domain.Status
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = logging.L("statusfeed")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Only local tools connect; browsers from other origins are refused.
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == ""
			},
		},
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) StatusChanged(status domain.Status) {
	h.mu.Lock()
	h.last = &status
	h.mu.Unlock()
	h.broadcast(Message{Type: TypeStatus, Status: &status})
}

func (h *Hub) Failure(event domain.FailureEvent) {
	h.broadcast(Message{Type: TypeFailure, Failure: &event})
}

// Subscribers reports how many clients are connected.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to encode feed message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("dropping slow feed subscriber")
			h.removeLocked(client)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
// New subscribers first receive the latest status.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.last != nil {
		if data, err := json.Marshal(Message{Type: TypeStatus, Status: h.last}); err == nil {
			client.send <- data
		}
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *subscriber) {
	defer h.remove(client)

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(client *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *subscriber) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.once.Do(func() { close(client.send) })
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

// Serve listens on addr and serves the feed until ctx is cancelled. ready,
// when non-nil, receives the bound address.
func (h *Hub) Serve(ctx context.Context, addr string, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready(listener.Addr())
	}

	mux := http.NewServeMux()
	mux.Handle(Path, h)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	h.logger.Info("status feed listening", zap.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
