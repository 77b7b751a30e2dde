// Package server serves the stat calculator over WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/statcalc/internal/calc"
	"github.com/lawnchairsociety/statcalc/internal/config"
	"github.com/lawnchairsociety/statcalc/internal/logger"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

const shutdownTimeout = 5 * time.Second

// Server accepts calculator connections on /ws.
type Server struct {
	cfg         config.ServerConfig
	calc        *calc.Service
	text        *text.Text
	connLimiter *ConnLimiter
	clients     map[string]*Client
	closing     bool
	mu          sync.RWMutex
	StartTime   time.Time
}

// NewServer creates a server. A nil txt uses the shared text instance.
func NewServer(cfg config.ServerConfig, svc *calc.Service, txt *text.Text) *Server {
	if txt == nil {
		txt = text.GetInstance()
	}
	return &Server{
		cfg:         cfg,
		calc:        svc,
		text:        txt,
		connLimiter: NewConnLimiter(cfg.Connections),
		clients:     make(map[string]*Client),
		StartTime:   time.Now(),
	}
}

// Handler returns the HTTP routes: /ws for the calculator and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("WebSocket server listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	// Hijacked WebSocket connections are not closed by Shutdown.
	s.closeClients()
	logger.Info("WebSocket server stopped")
	return err
}

// Broadcast sends resp to every connected client.
func (s *Server) Broadcast(resp *Response) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(resp); err != nil {
			logger.Debug("Broadcast failed", "client", c.id, "error", err)
		}
	}
}

// NotifyReload tells every client that the store changed on disk.
func (s *Server) NotifyReload() {
	logger.Info("Store reloaded, notifying clients", "clients", s.ClientCount())
	s.Broadcast(&Response{Op: OpReload, OK: true})
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok clients=%d uptime=%s\n", s.ClientCount(), time.Since(s.StartTime).Round(time.Second))
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !s.connLimiter.TryAcquire(ip) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.connLimiter.Release(ip)
		return
	}

	c := newClient(conn, ip, s.cfg)
	if !s.register(c) {
		logger.Debug("Connection rejected during shutdown", "ip", ip)
		c.Close()
		s.connLimiter.Release(ip)
		return
	}
	go s.serveClient(c)
}

// register adds c to the client set. It fails once shutdown has closed the set.
func (s *Server) register(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c.id] = c
	return true
}

// serveClient answers requests from a registered client until the connection closes.
func (s *Server) serveClient(c *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		s.connLimiter.Release(c.ip)
		c.Close()
		logger.Info("Client disconnected", "client", c.id, "ip", c.ip)
	}()

	logger.Info("Client connected", "client", c.id, "ip", c.ip)

	for {
		data, err := c.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read failed", "client", c.id, "error", err)
			}
			return
		}

		resp := s.dispatch(c, data)
		if resp.Error != "" {
			logger.Debug("Request failed", "client", c.id, "op", resp.Op, "error", resp.Error)
		}
		if err := c.Send(resp); err != nil {
			logger.Debug("WebSocket write failed", "client", c.id, "error", err)
			return
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for _, c := range s.clients {
		c.Close()
	}
}
