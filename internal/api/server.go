// Package api exposes the HTTP surface of the relay: the viewer-facing
// issue endpoints, the GitLab webhook receiver, and the SSE event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/google/uuid"

	"github.com/givddul/issuerelay/internal/config"
	"github.com/givddul/issuerelay/internal/event"
	"github.com/givddul/issuerelay/internal/gitlab"
)

// IssueService is the provider surface the router delegates to. Implemented
// by *gitlab.Client; faked in tests.
type IssueService interface {
	CreateIssue(ctx context.Context, title, description string) (*gitlab.Issue, error)
	AddNote(ctx context.Context, iid int, body string) (*gitlab.Note, error)
	SetIssueState(ctx context.Context, iid int, stateEvent string) error
	ListIssuesWithNotes(ctx context.Context) ([]gitlab.Issue, error)
}

// Broadcaster is the publish/subscribe channel connecting the webhook
// receiver to viewers. Implemented by *hub.Hub; faked in tests.
type Broadcaster interface {
	Publish(ev event.Event)
	Subscribe() (uuid.UUID, <-chan event.Event)
	Unsubscribe(id uuid.UUID)
	Close()
}

// Server represents the relay HTTP server
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	issues IssueService
	hub    Broadcaster
}

// NewServer creates a new relay server
func NewServer(cfg *config.Config, issues IssueService, h Broadcaster) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:   e,
		cfg:    cfg,
		issues: issues,
		hub:    h,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// Viewer-facing API
	api := s.echo.Group("/api")
	api.GET("/issues", s.listIssues)
	api.POST("/issues", s.createIssue)
	api.POST("/issues/:iid/notes", s.addNote)
	api.PUT("/issues/:iid", s.setIssueState)

	// Push path: GitLab webhook in, SSE stream out
	s.echo.POST("/webhook", s.handleWebhook)
	s.echo.GET("/events", s.streamEvents)

	// Static viewer assets, when present
	if s.cfg.Assets != "" {
		if _, err := os.Stat(s.cfg.Assets); err == nil {
			s.echo.Static("/", s.cfg.Assets)
		}
	}
}

// Start begins the server and blocks until interrupted
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.cfg.Port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
