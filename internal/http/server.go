// Package http provides the git2pdf HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/git2pdf/internal/converter"
	"github.com/fyrsmithlabs/git2pdf/internal/gate"
	"github.com/fyrsmithlabs/git2pdf/internal/logging"
)

// maxBodySize bounds request bodies on the API routes.
const maxBodySize = "64K"

// Converter is the conversion service behind the API.
type Converter interface {
	Convert(ctx context.Context, rawURL string) (*converter.Result, error)
	ArtifactPath(name string) (string, error)
	History() *converter.History
	Gate() *gate.Gate
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// RateLimit is requests per second per client IP on /api/v1; zero
	// disables limiting.
	RateLimit float64
	RateBurst int
}

// Server provides HTTP endpoints for git2pdf.
type Server struct {
	echo    *echo.Echo
	conv    Converter
	logger  *zap.Logger
	config  *Config
	metrics *requestMetrics
}

// NewServer creates a new HTTP server.
func NewServer(conv Converter, logger *zap.Logger, cfg *Config) (*Server, error) {
	if conv == nil {
		return nil, fmt.Errorf("converter cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		conv:    conv,
		logger:  logger,
		config:  cfg,
		metrics: newRequestMetrics(nil, logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.metrics.middleware)

	s.registerRoutes()
	return s, nil
}

// requestContext carries the request ID into the request context and logs
// each request once it completes.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", middleware.BodyLimit(maxBodySize))
	if s.config.RateLimit > 0 {
		v1.Use(s.rateLimiter())
	}
	v1.POST("/conversions", s.handleConvert)
	v1.GET("/conversions", s.handleHistory)
	v1.GET("/artifacts/:name", s.handleArtifact)
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	burst := s.config.RateBurst
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.RateLimit),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: kindForbidden, Message: "cannot identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn("rate limit exceeded", zap.String("ip", identifier))
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: kindRateLimited, Message: "rate limit exceeded"})
		},
	})
}

// handleHealth reports liveness and admission gate usage.
func (s *Server) handleHealth(c echo.Context) error {
	g := s.conv.Gate()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:            "ok",
		ActiveConversions: g.Active(),
		MaxConversions:    g.Max(),
	})
}

// handleConvert runs one conversion synchronously.
func (s *Server) handleConvert(c echo.Context) error {
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid conversion request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: kindBadRequest, Message: "invalid request body"})
	}
	req.RepositoryURL = strings.TrimSpace(req.RepositoryURL)
	if req.RepositoryURL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: kindBadRequest, Message: "repository_url field is required"})
	}

	res, err := s.conv.Convert(c.Request().Context(), req.RepositoryURL)
	if err != nil {
		return writeConversionError(c, err)
	}
	return c.JSON(http.StatusCreated, newConvertResponse(res))
}

// handleHistory lists recent conversions, newest first.
func (s *Server) handleHistory(c echo.Context) error {
	records := s.conv.History().List()
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit >= 0 && limit < len(records) {
		records = records[:limit]
	}
	return c.JSON(http.StatusOK, HistoryResponse{Conversions: records})
}

// handleArtifact serves a published PDF.
func (s *Server) handleArtifact(c echo.Context) error {
	name := c.Param("name")
	path, err := s.conv.ArtifactPath(name)
	if err != nil {
		return writeConversionError(c, err)
	}
	return c.Attachment(path, name)
}

// Start serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout. A graceful shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
