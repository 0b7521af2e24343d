package bridge

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/canlink/ecubridge/internal/logging"
)

// WSServer fans live telemetry snapshots out to WebSocket clients on /ws.
// Slow clients are skipped, never waited on; the monitor loop must not
// stall because a browser tab fell behind.
type WSServer struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    []byte

	srv      *http.Server
	listener net.Listener
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWSServer builds the fan-out server; Start binds it.
func NewWSServer(logger *logging.Logger) *WSServer {
	return &WSServer{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start binds addr and serves /ws in the background. The returned error
// covers the bind only; serve-loop failures are logged.
func (s *WSServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.srv = &http.Server{Handler: mux}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server stopped: %v", err)
		}
	}()

	s.logger.Info("WebSocket fan-out listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address; nil before Start.
func (s *WSServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Broadcast sends a snapshot to every connected client. The last snapshot
// is retained so new clients get state immediately on connect. Sends stay
// under the read lock: a client's send channel is only closed after its
// delete takes the write lock, so a close can never overlap a send.
func (s *WSServer) Broadcast(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.last = data
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip this snapshot.
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *WSServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	if s.last != nil {
		client.send <- s.last
	}
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Verbose("WebSocket client connected (%d total)", total)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine; clients never send anything meaningful, reading
	// just detects the disconnect.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.mu.Unlock()
			close(client.send)
			s.logger.Verbose("WebSocket client disconnected (%d total)", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Stop shuts the HTTP server down and drops all clients.
func (s *WSServer) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
