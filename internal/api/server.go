package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-nodes/internal/inputlog"
	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Runner is the part of the device runner the API drives.
// *boot.Runner satisfies it.
type Runner interface {
	Inject(ctx context.Context, nodeID, property, value string) (node.Result, error)
	Running() bool
	Uptime() time.Duration
	QueueDepth() int
}

// Connectivity reports whether the MQTT link is up.
// *mqtt.Client satisfies it.
type Connectivity interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Device   config.DeviceConfig
	Logger   *logging.Logger
	Registry *node.Registry
	Runner   Runner
	Inputs   inputlog.Repository // optional
	MQTT     Connectivity        // optional
	Hub      *Hub                // optional; created when nil
	Version  string
}

// Server is the HTTP API server of a node device.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	device    config.DeviceConfig
	logger    *logging.Logger
	registry  *node.Registry
	runner    Runner
	inputs    inputlog.Repository
	mqtt      Connectivity
	hub       *Hub
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
}

// New creates a new API server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("node registry is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		device:    deps.Device,
		logger:    deps.Logger,
		registry:  deps.Registry,
		runner:    deps.Runner,
		inputs:    deps.Inputs,
		mqtt:      deps.MQTT,
		hub:       hub,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Hub returns the WebSocket hub. Register it with the runner as an observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
