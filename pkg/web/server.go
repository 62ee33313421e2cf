// Package web serves the loading status, the live scroll value and the
// preloaded model assets over HTTP and websockets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/pkg/capture"
	"github.com/teslashibe/go-handscroll/pkg/hub"
	"github.com/teslashibe/go-handscroll/pkg/preload"
	"github.com/teslashibe/go-handscroll/pkg/scroll"
)

// renderEpsilon is the smallest change of the smoothed value worth
// broadcasting.
const renderEpsilon = 1e-4

// Status is the loading and control state shown to clients.
type Status struct {
	Percent   float64        `json:"percent"`
	Message   string         `json:"message"`
	Ready     bool           `json:"ready"`
	Error     string         `json:"error,omitempty"`
	Scroll    scroll.State   `json:"scroll"`
	Capture   *capture.Stats `json:"capture,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Server is the status and control server.
type Server struct {
	app      *fiber.App
	addr     string
	logger   *slog.Logger
	signal   *scroll.Signal
	registry *preload.Registry

	statusHub *hub.Hub
	scrollHub *hub.Hub

	mu           sync.RWMutex
	status       Status
	lastRendered float64

	// StatsFunc, if set, supplies capture counters for /api/status.
	StatsFunc func() capture.Stats
}

// NewServer creates a server bound to addr (host:port). registry may be nil
// when nothing was preloaded.
func NewServer(addr string, signal *scroll.Signal, registry *preload.Registry) *Server {
	if registry == nil {
		registry = preload.NewRegistry()
	}
	s := &Server{
		addr:         addr,
		logger:       log.Component("web"),
		signal:       signal,
		registry:     registry,
		statusHub:    hub.New("status"),
		scrollHub:    hub.New("scroll"),
		lastRendered: math.NaN(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "handscroll",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/assets", s.handleListAssets)
	api.Post("/scroll", s.handleScroll)

	app.Get("/assets/:id", s.handleAsset)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/scroll", websocket.New(s.handleScrollWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.scrollHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String())
	err := s.app.Listener(ln)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Progress records and broadcasts a loading step.
func (s *Server) Progress(percent float64, message string) {
	s.update(func(st *Status) {
		st.Percent = percent
		st.Message = message
		st.Ready = percent >= 100
		st.Error = ""
	})
}

// Fail records and broadcasts a fatal gesture-control error. Manual input
// keeps working.
func (s *Server) Fail(err error) {
	s.update(func(st *Status) {
		st.Ready = false
		st.Error = err.Error()
	})
}

// Render broadcasts the smoothed scroll value when it has moved.
func (s *Server) Render(current float64) {
	s.mu.Lock()
	if math.Abs(current-s.lastRendered) < renderEpsilon {
		s.mu.Unlock()
		return
	}
	s.lastRendered = current
	s.mu.Unlock()

	s.scrollHub.BroadcastJSON(scroll.State{Target: s.signal.Target(), Current: current})
}

// Status returns the current status.
func (s *Server) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()

	st.Scroll = s.signal.State()
	if s.StatsFunc != nil {
		stats := s.StatsFunc()
		st.Capture = &stats
	}
	return st
}

func (s *Server) update(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.status.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.statusHub.BroadcastJSON(s.Status())
}
