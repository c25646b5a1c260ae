// Package server exposes the operational HTTP surface: health,
// Prometheus metrics and an authenticated view of live dialogues.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Asul0/belg-agent/config"
	"github.com/Asul0/belg-agent/internal/dialogue"
)

type Server struct {
	cfg    config.ServerConfig
	store  *dialogue.Store
	logger *log.Logger
}

func New(cfg config.ServerConfig, store *dialogue.Store, logger *log.Logger) *Server {
	return &Server{cfg: cfg, store: store, logger: logger}
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/auth/login", s.login)

	protected := api.Group("")
	protected.Use(authMiddleware([]byte(s.cfg.JWTSecret)))
	protected.GET("/sessions", s.sessions)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(s.cfg.Address) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type sessionView struct {
	ChatID     int64     `json:"chat_id"`
	Stage      string    `json:"stage"`
	ClientName string    `json:"client_name,omitempty"`
	Industry   string    `json:"industry,omitempty"`
	Country    string    `json:"country,omitempty"`
	Period     string    `json:"period,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	Results    int       `json:"results"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// sessions returns the live dialogue states.
func (s *Server) sessions(c echo.Context) error {
	states := s.store.Snapshot()
	out := make([]sessionView, 0, len(states))
	for _, st := range states {
		out = append(out, sessionView{
			ChatID:     st.ChatID,
			Stage:      string(st.Stage),
			ClientName: st.ClientName,
			Industry:   st.Industry,
			Country:    st.Country,
			Period:     st.Period,
			EventType:  st.EventType,
			Results:    len(st.LastResults),
			UpdatedAt:  st.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}
