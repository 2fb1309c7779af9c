// Package relay serves the realtime notification endpoint. Sessions connect
// over a websocket at /ws; events arrive from the configured bus or from
// POST /api/v1/events and are fanned out by the hub.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medhya/medhya/internal/config"
	"github.com/medhya/medhya/internal/platform/auth"
	"github.com/medhya/medhya/internal/platform/db"
	"github.com/medhya/medhya/internal/platform/eventbus"
	"github.com/medhya/medhya/internal/platform/middleware"
	"github.com/medhya/medhya/internal/platform/telemetry"
	"github.com/medhya/medhya/internal/platform/websocket"
)

// ServiceRole is the role a token needs to publish over HTTP.
const ServiceRole = "service"

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       *config.Config
	logger    zerolog.Logger
	hub       *websocket.Hub
	echo      *echo.Echo
	metrics   *telemetry.Metrics
	transport *Transport
}

// New assembles the relay. transport may be nil when no bus is configured.
func New(cfg *config.Config, transport *Transport, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		hub:       websocket.NewHub(logger),
		metrics:   telemetry.NewMetrics(),
		transport: transport,
	}
	s.metrics.GaugeFunc("relay_sessions", "Connected websocket sessions.", func() int64 {
		return int64(s.hub.ClientCount())
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(s.metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.RelayJWTIssuer,
		SigningKey: []byte(cfg.RelayJWTSecret),
	}

	e.GET("/health", s.health)
	e.GET("/metrics", s.metrics.Handler())
	if transport != nil && transport.Health != nil {
		e.GET("/health/bus", db.HealthHandler(transport.Health))
		if transport.Postgres {
			e.GET("/health/db", db.HealthHandler(transport.Health))
		}
	}

	wsCfg := jwtCfg
	wsCfg.AllowQueryToken = true
	websocket.NewWebSocketHandler(s.hub, cfg.CORSOrigins, logger).RegisterRoutes(e, auth.JWTMiddleware(wsCfg))

	e.POST("/api/v1/events", s.publishEvent,
		auth.JWTMiddleware(jwtCfg),
		auth.RequireRole(ServiceRole),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
		middleware.BodyLimit("64K"),
		middleware.RequestTimeout(5*time.Second),
	)

	s.echo = e
	return s
}

// Handler exposes the HTTP handler, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Hub() *websocket.Hub { return s.hub }

func (s *Server) Metrics() *telemetry.Metrics { return s.metrics }

// sink routes bus events into the hub and counts them.
func (s *Server) sink() eventbus.Sink {
	return eventbus.SinkFunc(func(_ context.Context, env eventbus.Envelope) error {
		if err := env.Validate(); err != nil {
			return err
		}
		n := s.hub.Route(env)
		s.metrics.EventRouted("bus", env.Event, n)
		s.logger.Debug().Str("event", env.Event).Int("sessions", n).Msg("event routed")
		return nil
	})
}

func (s *Server) sourceName() string {
	if s.transport == nil || s.transport.Source == nil {
		return "none"
	}
	return s.transport.Source.Name()
}

// Run serves on ln, or on RELAY_PORT when ln is nil, and consumes the bus
// until ctx is cancelled or either side fails. It then closes every session
// and shuts the HTTP server down.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	if ln != nil {
		s.echo.Listener = ln
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + s.cfg.RelayPort
		if ln != nil {
			addr = ln.Addr().String()
		}
		s.logger.Info().Str("addr", addr).Str("source", s.sourceName()).Msg("starting relay")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.transport != nil && s.transport.Source != nil {
		g.Go(func() error {
			return s.transport.Source.Run(gctx, s.sink())
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Msg("shutting down relay")
		s.hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	})

	err := g.Wait()
	s.transport.Close()
	s.logger.Info().Msg("relay stopped")
	return err
}
