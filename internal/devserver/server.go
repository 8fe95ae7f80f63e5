package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultStepDelay is the time the agent spends on each script step.
const DefaultStepDelay = 4 * time.Second

// Options configures a Server.
type Options struct {
	Secret    string
	StepDelay time.Duration
	Quiet     bool // skip request logging
}

// Server is the development backend.
type Server struct {
	Store *Store
	hub   *Hub
	echo  *echo.Echo
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	store := NewStore()
	hub := NewHub()
	h := NewHandler(store, NewIssuer(opts.Secret), hub, opts.StepDelay)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if !opts.Quiet {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)

	return &Server{Store: store, hub: hub, echo: e}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown closes every room and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.echo.Shutdown(ctx)
}
