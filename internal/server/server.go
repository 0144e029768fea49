package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"inference-gateway/internal/api"
	"inference-gateway/internal/config"
	"inference-gateway/internal/service"
)

const (
	maxBodyBytes        = 32 << 20 // attachments arrive base64-encoded
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 180 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	holder  *service.Holder
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, holder *service.Holder) (*Server, error) {
	if holder == nil {
		return nil, errors.New("service holder must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Validator = &requestValidator{validate: validator.New()}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		holder:  holder,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/api/ai/chat", s.handleChat)
	s.app.GET("/api/ai/models", s.handleModels)
	s.app.GET("/api/ai/status", s.handleStatus)
	s.app.POST("/api/ai/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat runs one inference request. A malformed request is rejected with
// a 4xx; once the request is accepted, provider failures are reported in-band
// with a 200 so callers can always decode the same envelope.
func (s *Server) handleChat(c echo.Context) error {
	var req api.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	unifiedReq, err := req.ToUnified()
	if err != nil {
		return requestError{
			Status:  http.StatusUnprocessableEntity,
			Message: err.Error(),
		}
	}

	resp, err := s.holder.Current().ProcessRequest(c.Request().Context(), unifiedReq)
	if err != nil {
		if service.IsCallerError(err) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
			}
		}
		return c.JSON(http.StatusOK, api.FailureResponse(err))
	}

	return c.JSON(http.StatusOK, api.SuccessResponse(resp))
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"models": s.holder.Current().AvailableModels(),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"providers": s.holder.Current().ProviderStatus(),
	})
}

// handleRefresh rebuilds the service, reloading configuration and provider
// registrations. In-flight requests keep the instance they started with.
func (s *Server) handleRefresh(c echo.Context) error {
	svc, err := s.holder.Rebuild()
	if err != nil {
		slog.Error("service refresh failed", "error", err)
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: fmt.Sprintf("refresh failed: %v", err),
		}
	}

	slog.Info("service refreshed", "providers", svc.Registry().Names())
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"providers": svc.ProviderStatus(),
	})
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(target any) error {
	if err := v.validate.Struct(target); err != nil {
		return requestError{
			Status:  http.StatusUnprocessableEntity,
			Message: err.Error(),
		}
	}
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorBody{Success: false, Error: message})
}

func errorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message)
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = writeError(c, echoErr.Code, fmt.Sprintf("%v", echoErr.Message))
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error")
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("inference-gateway ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/ai/chat")
	fmt.Println("  GET  /api/ai/models")
	fmt.Println("  GET  /api/ai/status")
	fmt.Println("  POST /api/ai/refresh")
	fmt.Printf("Example:\n  curl http://%s:%d/api/ai/chat -H 'Content-Type: application/json' -d '{\"model\":\"auto\",\"prompt\":\"hello\"}'\n\n", host, port)
}
