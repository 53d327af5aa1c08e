package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/api/models"
	"github.com/smazurov/statuslight/internal/color"
	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/led"
	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/status"
	"github.com/smazurov/statuslight/internal/syncbus"
	"github.com/smazurov/statuslight/internal/systemd"
	"github.com/smazurov/statuslight/internal/version"
)

const authRealm = `Basic realm="statuslight"`

// StatusController is the arbitrator surface the API drives.
type StatusController interface {
	TrySet(s status.Kind, a anim.Kind, p status.Priority, d time.Duration) (bool, error)
	Clear() error
	SetBrightness(b uint8) error
	SetAutoBrightness(enable bool) error
	Snapshot() status.State
	Refresh(ctx context.Context) error
}

// SyncController is the sync bus surface the API drives.
type SyncController interface {
	SendEvent(t syncbus.EventType, payload []byte) error
	HandleBatteryStatus(level uint8, charging bool) error
	HandleWebsocketStatus(connected bool) error
	HandleWebsocketMessage(kind string) error
	SetAutoSync(enable bool) error
	IsAutoSyncEnabled() bool
	SetFeedback(brightness uint8, duration time.Duration) error
	Feedback() (uint8, time.Duration)
	QueueLen() int
	QueueCap() int
}

// LEDReader exposes the LED surface for diagnostics.
type LEDReader interface {
	Info() led.Info
	Pixels() []color.Color
}

// ServiceManager controls the daemon's systemd unit.
type ServiceManager interface {
	Unit() string
	Status(ctx context.Context) (systemd.UnitStatus, error)
	Restart(ctx context.Context) error
}

// Options configures the API server. Status and Sync are required.
type Options struct {
	AuthUsername   string
	AuthPassword   string
	CORSOrigin     string
	Status         StatusController
	Sync           SyncController
	LEDs           LEDReader
	Systemd        ServiceManager
	EventBus       *events.Bus
	MetricsHandler http.Handler
}

// Server is the HTTP API: huma routes, SSE streams, the websocket endpoint
// and the Prometheus scrape endpoint on one mux.
type Server struct {
	api      huma.API
	mux      *http.ServeMux
	options  *Options
	eventBus *events.Bus
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	stopped    bool
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		// SSE clients cannot set headers, so ?auth=<base64> is accepted too.
		user, pass, ok := parseBasicAuth(ctx.Header("Authorization"), ctx.Query("auth"))
		if !ok {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !credentialsMatch(user, pass, username, password) {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func parseBasicAuth(header, query string) (string, string, bool) {
	var encoded string
	switch {
	case header != "":
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "", false
		}
		encoded = header[len(prefix):]
	case query != "":
		encoded = query
	default:
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	return user, pass, ok
}

func credentialsMatch(user, pass, wantUser, wantPass string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass))
	return u&p == 1
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("statuslight API", version.Version)
	config.Info.Description = "Status LED control: status arbitration, sync events and LED diagnostics"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(newLoggingMiddleware(logging.GetLogger("http")))
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance
func (s *Server) API() huma.API {
	return s.api
}

// Start listens on addr and serves until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done. Streaming connections are closed when ctx expires. A Start that
// has not run yet returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping API server")
	if err := srv.Shutdown(ctx); err != nil {
		return srv.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerStatusRoutes()
	s.registerSyncRoutes()
	s.registerLEDRoutes()
	s.registerLogRoutes()
	s.registerSystemdRoutes()
	s.registerSSERoutes()
	s.registerWebsocketRoute()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
