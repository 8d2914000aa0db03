package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mpc-relay/relay/internal/logging"
	"github.com/mpc-relay/relay/keys"
	"github.com/mpc-relay/relay/transport"
)

// defaultIdleTimeout disconnects a client that sends nothing — not even
// a relay frame — for this long (§4.4's liveness requirement).
const defaultIdleTimeout = 2 * time.Minute

// Options configures a Server.
type Options struct {
	// Local is the relay's own static keypair, presented during every
	// client handshake.
	Local *keys.Keypair
	// Pattern overrides the default Noise pattern; empty selects
	// protocol.Pattern.
	Pattern string
	// IdleTimeout disconnects a client that sends no frames for this
	// long. Zero selects defaultIdleTimeout.
	IdleTimeout time.Duration
}

// Server accepts client connections, performs the server-facing Noise
// handshake, and dispatches RelayPeer frames between connected clients
// by static public key (§4.4).
type Server struct {
	local       *keys.Keypair
	pattern     string
	idleTimeout time.Duration
	registry    *clientRegistry

	wg sync.WaitGroup
}

// New constructs a Server. Call RegisterRoutes to mount it on a gin
// router, or Accept directly in tests that bypass HTTP entirely.
func New(opts Options) *Server {
	idleTimeout := opts.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Server{
		local:       opts.Local,
		pattern:     opts.Pattern,
		idleTimeout: idleTimeout,
		registry:    newClientRegistry(),
	}
}

// RegisterRoutes mounts the relay's websocket upgrade endpoint on router
// at path (conventionally "/v1/session").
func (s *Server) RegisterRoutes(router gin.IRouter, path string) {
	transport.RegisterUpgrade(router, path, func(conn transport.Conn, _ *http.Request) {
		s.Accept(conn)
	})
}

// Accept takes ownership of an already-established connection and drives
// it to completion in its own goroutine. Exposed directly so integration
// tests can hand the server one side of a net.Pipe without going through
// an HTTP upgrade.
func (s *Server) Accept(conn transport.Conn) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handleConnection(conn)
	}()
}

// ConnectedClients reports how many clients currently hold a completed
// server-facing session, for diagnostics and tests.
func (s *Server) ConnectedClients() int {
	return s.registry.count()
}

// Shutdown closes every tracked connection and waits for their
// goroutines to exit. It does not stop an underlying HTTP server —
// callers using gin/http.Server own that lifecycle separately.
func (s *Server) Shutdown() {
	logger := logging.For("server", "Shutdown")
	logger.Info("shutting down, closing all client connections")

	s.registry.mu.RLock()
	conns := make([]*connState, 0, len(s.registry.clients))
	for _, cs := range s.registry.clients {
		conns = append(conns, cs)
	}
	s.registry.mu.RUnlock()

	for _, cs := range conns {
		cs.close()
	}
	s.wg.Wait()
}
