package stt_relay

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agnivade/stt_relay/config"
	"github.com/agnivade/stt_relay/metrics"
	"github.com/agnivade/stt_relay/remote"
)

// Server accepts producer WebSocket connections and relays each one to its
// own remote transcription session.
type Server struct {
	srv       *http.Server
	log       *zap.Logger
	factory   remote.Factory
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	relayOpts RelayOptions

	mu       sync.Mutex
	conns    map[*WebConn]struct{}
	stopping bool
	wg       sync.WaitGroup
}

// New creates a server that opens remote connections through factory.
func New(cfg *config.Config, factory remote.Factory, logger *zap.Logger, m *metrics.Metrics) *Server {
	mux := http.NewServeMux()

	server := &Server{
		srv: &http.Server{
			Addr:              cfg.Server.Addr(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			Handler:           mux,
		},
		log:     logger,
		factory: factory,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.Server.ReadBufferSize,
			WriteBufferSize: cfg.Server.WriteBufferSize,
			CheckOrigin:     checkOrigin(cfg.Server.AllowedOrigins),
		},
		relayOpts: RelayOptions{
			ConnectTimeout:   cfg.Relay.ConnectTimeout,
			MaxPendingFrames: cfg.Relay.MaxPendingFrames,
		},
		conns: make(map[*WebConn]struct{}),
	}

	mux.HandleFunc(cfg.Server.Path, server.handleWebSocket)

	return server
}

// checkOrigin allows any origin when allowed is empty. Requests without an
// Origin header come from non-browser clients and are always allowed.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Handler returns the HTTP handler serving the producer endpoint.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens for producers and blocks until the server is stopped.
func (s *Server) Start() error {
	s.log.Info("Starting server",
		zap.String("addr", s.srv.Addr),
		zap.String("remote", s.factory.Name()))

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting producers, ends every open session and waits for
// them to finish tearing down their remote connections.
func (s *Server) Stop() error {
	s.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked connections are not tracked by Shutdown.
	err := s.srv.Shutdown(ctx)
	s.stopAllConns()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

func (s *Server) addConn(wc *WebConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[wc] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) removeConn(wc *WebConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[wc]; !ok {
		return
	}
	delete(s.conns, wc)
	s.wg.Done()
}

func (s *Server) stopAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = true
	for wc := range s.conns {
		wc.Stop()
	}
}

func (s *Server) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
