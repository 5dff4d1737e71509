// Package server serves the single page research UI and a JSON API.
package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/smhanov/scholar"
	"github.com/smhanov/scholar/internal/config"
	"github.com/smhanov/scholar/internal/workbench"
)

// Assistant answers one request for one session.
type Assistant interface {
	Run(ctx context.Context, session workbench.Session, req scholar.Request) (scholar.Response, error)
}

// Server is the HTTP front end.
type Server struct {
	echo      *echo.Echo
	cfg       config.ServerConfig
	assistant Assistant
	logger    *zap.Logger
	metrics   http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access and error logs.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New builds the server and registers its routes.
func New(cfg config.ServerConfig, assistant Assistant, opts ...Option) *Server {
	s := &Server{cfg: cfg, assistant: assistant, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newTemplateRenderer()
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.logger.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Info("request", fields...)
			return nil
		},
	}))

	e.GET("/", s.handleIndex)
	e.POST("/run", s.handleRunForm)
	e.POST("/api/v1/run", s.handleRunAPI)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	s.echo = e
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("address", s.cfg.Address))
		if err := s.echo.Start(s.cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("shutting down server")
	return s.echo.Shutdown(shutdownCtx)
}

type taskOption struct {
	Value    scholar.Task
	Label    string
	Selected bool
}

// formState holds the inputs echoed back into the page. The API key is
// never part of it.
type formState struct {
	Task   scholar.Task
	Prompt string
	URL    string
	Count  int
	Model  string
}

type pageData struct {
	Tasks   []taskOption
	Form    formState
	Message string
	Error   string
	Result  template.HTML
}

var taskLabels = map[scholar.Task]string{
	scholar.TaskResearch:    "Research",
	scholar.TaskLiterature:  "Literature",
	scholar.TaskKeyInsights: "Keyinsights",
}

func newPageData(form formState) pageData {
	data := pageData{Form: form}
	for _, t := range scholar.Tasks {
		data.Tasks = append(data.Tasks, taskOption{Value: t, Label: taskLabels[t], Selected: t == form.Task})
	}
	return data
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", newPageData(formState{Task: scholar.TaskResearch, Count: scholar.DefaultPaperCount}))
}

func (s *Server) handleRunForm(c echo.Context) error {
	task, _ := scholar.ParseTask(c.FormValue("task"))
	form := formState{
		Task:   task,
		Prompt: strings.TrimSpace(c.FormValue("prompt")),
		URL:    strings.TrimSpace(c.FormValue("url")),
		Count:  parseCount(c.FormValue("count")),
		Model:  strings.TrimSpace(c.FormValue("model")),
	}
	data := newPageData(form)
	session := workbench.Session{APIKey: c.FormValue("api_key"), Model: form.Model}

	resp, err := s.assistant.Run(c.Request().Context(), session, scholar.Request{
		Task:   form.Task,
		Prompt: form.Prompt,
		URL:    form.URL,
		Count:  form.Count,
	})
	switch {
	case errors.Is(err, workbench.ErrMissingCredential):
		data.Message = workbench.MsgMissingCredential
		return c.Render(http.StatusOK, "index.html", data)
	case err != nil:
		s.logger.Error("run failed", zap.String("task", string(form.Task)), zap.Error(err))
		data.Error = "The request failed: " + err.Error()
		return c.Render(http.StatusBadGateway, "index.html", data)
	case resp.Guidance:
		data.Message = resp.Content
		return c.Render(http.StatusOK, "index.html", data)
	}

	html, err := renderMarkdown(resp.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "render result").SetInternal(err)
	}
	data.Result = html
	return c.Render(http.StatusOK, "index.html", data)
}

type apiRequest struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
	Task   string `json:"task"`
	Prompt string `json:"prompt"`
	URL    string `json:"url"`
	Count  int    `json:"count"`
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) handleRunAPI(c echo.Context) error {
	var in apiRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "invalid request body"})
	}
	if in.APIKey == "" {
		in.APIKey = bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	}
	task, _ := scholar.ParseTask(in.Task)

	resp, err := s.assistant.Run(c.Request().Context(), workbench.Session{APIKey: in.APIKey, Model: in.Model}, scholar.Request{
		Task:   task,
		Prompt: in.Prompt,
		URL:    in.URL,
		Count:  in.Count,
	})
	switch {
	case errors.Is(err, workbench.ErrMissingCredential):
		return c.JSON(http.StatusUnauthorized, apiError{Error: workbench.MsgMissingCredential})
	case err != nil:
		s.logger.Error("run failed", zap.String("task", string(task)), zap.Error(err))
		return c.JSON(http.StatusBadGateway, apiError{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
