// Package server streams pipeline progress to websocket clients.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/pulse"
)

const (
	// MaxClients bounds concurrent progress subscribers
	MaxClients = 32

	broadcastBuffer = 256
	clientBuffer    = 64
	shutdownTimeout = 5 * time.Second
)

// Server is a hub that fans progress events out to websocket clients.
// It implements pulse.ProgressEmitter so it can sit beside the terminal
// emitter in a pulse.MultiEmitter.
type Server struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan display.ProgressEvent

	mu      sync.RWMutex
	clients map[*client]bool
	// latest event per type, replayed to late subscribers
	latest map[string]display.ProgressEvent

	drops atomic.Int64
	done  chan struct{}
}

var _ pulse.ProgressEmitter = (*Server)(nil)

// New creates a progress server. The hub does nothing until Run.
func New(log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     localOrigin,
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan display.ProgressEvent, broadcastBuffer),
		clients:    make(map[*client]bool),
		latest:     make(map[string]display.ProgressEvent),
		done:       make(chan struct{}),
	}
}

// Run is the hub event loop. It owns every send on client channels and
// must be called once.
func (s *Server) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case c := <-s.register:
			s.handleRegister(c)
		case c := <-s.unregister:
			s.handleUnregister(c)
		case ev := <-s.broadcast:
			s.handleBroadcast(ev)
		}
	}
}

// ListenAndServe runs the hub and serves HTTP on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Infow("Progress server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "progress server on %s", addr)
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "failed to shut down progress server")
		}
		return nil
	}
}

// ClientCount returns the number of connected subscribers
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Drops returns how many events were discarded because the hub was full
func (s *Server) Drops() int64 {
	return s.drops.Load()
}

// Latest returns the most recent event of each type
func (s *Server) Latest() map[string]display.ProgressEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]display.ProgressEvent, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

func (s *Server) handleRegister(c *client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.log.Warnw("Max clients reached, rejecting connection", "client_id", c.id, "max_clients", MaxClients)
		close(c.send)
		return
	}
	s.clients[c] = true
	total := len(s.clients)
	replay := make([]display.ProgressEvent, 0, 2)
	for _, typ := range []string{"stage", "complete"} {
		if ev, ok := s.latest[typ]; ok {
			replay = append(replay, ev)
		}
	}
	s.mu.Unlock()

	s.log.Infow("Client connected", "client_id", c.id, "total_clients", total)
	for _, ev := range replay {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (s *Server) handleUnregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	total := len(s.clients)
	s.mu.Unlock()

	close(c.send)
	s.log.Infow("Client disconnected", "client_id", c.id, "total_clients", total)
}

func (s *Server) handleBroadcast(ev display.ProgressEvent) {
	s.mu.Lock()
	if ev.Type != "tick" {
		s.latest[ev.Type] = ev
	}
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range slow {
		close(c.send)
		s.log.Warnw("Client send channel full, removing client", "client_id", c.id)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Server) publish(ev display.ProgressEvent) {
	select {
	case s.broadcast <- ev:
	default:
		s.drops.Add(1)
	}
}

// EmitStage broadcasts a stage event
func (s *Server) EmitStage(stage, message string) { s.publish(display.StageEvent(stage, message)) }

// EmitTick broadcasts a tick event
func (s *Server) EmitTick(stage string, t pulse.Tick) { s.publish(display.TickEvent(stage, t)) }

// EmitInfo broadcasts an info event
func (s *Server) EmitInfo(message string) { s.publish(display.InfoEvent(message)) }

// EmitError broadcasts an error event
func (s *Server) EmitError(stage string, err error) { s.publish(display.ErrorEvent(stage, err)) }

// EmitComplete broadcasts the terminal event
func (s *Server) EmitComplete(summary map[string]interface{}) {
	s.publish(display.CompleteEvent(summary))
}
