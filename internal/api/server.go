package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-routines/internal/activity"
	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-routines/internal/routine"
	"github.com/nerrad567/gray-logic-routines/internal/scheduler"
	"github.com/nerrad567/gray-logic-routines/internal/source"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// RoutineStore is the routine CRUD surface.
type RoutineStore interface {
	List(ctx context.Context) []routine.Routine
	Get(ctx context.Context, id string) (*routine.Routine, error)
	Create(ctx context.Context, p routine.Payload) (*routine.Routine, error)
	Update(ctx context.Context, id string, p routine.Payload) (*routine.Routine, error)
	Delete(ctx context.Context, id string) error
}

// Runner runs routines and owns the check interval.
type Runner interface {
	RunNow(ctx context.Context, id string) ([]scheduler.Result, error)
	Interval() time.Duration
	SetInterval(ms int) (int, error)
}

// SourceStore manages device-control credentials.
type SourceStore interface {
	List(ctx context.Context) ([]source.View, error)
	Upsert(ctx context.Context, req source.Upsert) (source.View, error)
}

// DeviceLister returns the device inventory visible to a source.
type DeviceLister interface {
	Devices(ctx context.Context, sourceID string) ([]deviceapi.Device, error)
}

// ActivityReader pages through the activity log.
type ActivityReader interface {
	List(ctx context.Context, filter activity.Filter) (*activity.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Routines RoutineStore
	Runner   Runner
	Sources  SourceStore
	Devices  DeviceLister
	Activity ActivityReader
	Hub      *Hub // If set, the server uses this hub instead of creating its own
	Version  string
}

// Server is the HTTP API server for the routines service.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	routines RoutineStore
	runner   Runner
	sources  SourceStore
	devices  DeviceLister
	activity ActivityReader
	version  string

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, routine store, runner)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Routines == nil {
		return nil, fmt.Errorf("routine store is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		routines: deps.Routines,
		runner:   deps.Runner,
		sources:  deps.Sources,
		devices:  deps.Devices,
		activity: deps.Activity,
		version:  deps.Version,
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub, for wiring run observers.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
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
