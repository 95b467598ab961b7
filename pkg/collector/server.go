package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/theia-log/theia/pkg/broker"
	"github.com/theia-log/theia/pkg/log"
	"github.com/theia-log/theia/pkg/metrics"
	"github.com/theia-log/theia/pkg/store"
)

// DefaultPort is the collector's default bind port.
const DefaultPort = 6433

// Config holds the collector server configuration.
type Config struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string

	// Port is the bind port. Zero means DefaultPort.
	Port int

	// WriteTimeout bounds every outbound message write. A live
	// subscriber exceeding it is evicted. Zero means 5 s.
	WriteTimeout time.Duration

	// SendBuffer is the per-subscriber outbound queue length. Zero
	// means 256.
	SendBuffer int

	// SendGrace is how long an enqueue may wait on a full outbound
	// buffer before the subscriber counts as stuck. Zero means 200 ms.
	SendGrace time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = 256
	}
	if cfg.SendGrace == 0 {
		cfg.SendGrace = 200 * time.Millisecond
	}
	return cfg
}

// Server terminates client message channels and routes them to the
// push, find and live handlers.
type Server struct {
	cfg      Config
	store    store.EventStore
	broker   *broker.Broker
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewServer wires a server to its store and broker. The server does not
// own either; the caller closes them after shutdown.
func NewServer(cfg Config, st store.EventStore, br *broker.Broker) *Server {
	s := &Server{
		cfg:    cfg.withDefaults(),
		store:  st,
		broker: br,
		logger: log.WithComponent("collector"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Watchers and query clients are not browsers; there is no
			// origin to enforce.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	s.httpSrv = &http.Server{
		Addr:    net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the HTTP handler serving all collector endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/event", s.handlePush)
	mux.HandleFunc("/find", s.handleFind)
	mux.HandleFunc("/live", s.handleLive)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler)
	return mux
}

// Start listens and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("Collector listening")
	metrics.RegisterComponent("server", true, "")

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("collector server: %w", err)
}

// Shutdown stops the listener, closes every open channel and drops all
// live subscriptions. The store is left to the caller so it can flush
// after the last handler is gone.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		open = append(open, conn)
	}
	s.mu.Unlock()

	metrics.RegisterComponent("server", false, "shutting down")
	err := s.httpSrv.Shutdown(ctx)

	deadline := time.Now().Add(time.Second)
	for _, conn := range open {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "collector shutting down"),
			deadline)
		_ = conn.Close()
	}
	s.broker.Shutdown()

	s.logger.Info().Msg("Collector stopped")
	return err
}

// track registers an open channel so Shutdown can close it; it reports
// false when the server is already shutting down.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// upgrade promotes an HTTP request to a message channel and registers
// the connection. The returned cleanup unregisters and closes it.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, func(), error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, nil, err
	}
	if !s.track(conn) {
		_ = conn.Close()
		return nil, nil, errors.New("server is shutting down")
	}

	path := r.URL.Path
	metrics.ChannelsOpen.WithLabelValues(path).Inc()
	cleanup := func() {
		metrics.ChannelsOpen.WithLabelValues(path).Dec()
		s.untrack(conn)
		_ = conn.Close()
	}
	return conn, cleanup, nil
}

// writeError sends the one-line error message used to reject a bad
// filter before the channel is closed.
func (s *Server) writeError(conn *websocket.Conn, err error) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad filter"),
		time.Now().Add(s.cfg.WriteTimeout))
}
