package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	defaultBodyLimit  = "4M"
)

type ServerConfig struct {
	Addr             string
	CORSAllowOrigins []string
	// BodyLimit caps request bodies, e.g. "4M". Larger bodies get 413.
	BodyLimit string
	// MetricsHandler is mounted on GET /metrics when not nil.
	MetricsHandler http.Handler
}

type Server struct {
	echo *echo.Echo
	addr string
	log  *slog.Logger
}

func NewServer(cfg ServerConfig, handler *SummaryHandler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = readHeaderTimeout

	bodyLimit := cfg.BodyLimit
	if bodyLimit == "" {
		bodyLimit = defaultBodyLimit
	}

	allowOrigins := cfg.CORSAllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latencyMs", v.Latency.Milliseconds()),
				slog.String("requestID", v.RequestID))
			return nil
		},
	}))

	e.POST("/generate-summary", handler.GenerateSummary)
	e.GET("/healthz", handler.Health)
	if cfg.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.MetricsHandler))
	}

	return &Server{
		echo: e,
		addr: cfg.Addr,
		log:  log,
	}
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("HTTP server is listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}
