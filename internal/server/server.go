// Package server is a development stand-in for the tracker's REST API. It
// serves the /api surface the board engine consumes from a SQLite store.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"boardsync/internal/auth"
	"boardsync/internal/idempotency"
	"boardsync/internal/storage/sqlite"
)

// Server provides HTTP handlers for the tracker API.
type Server struct {
	engine   *gin.Engine
	store    *sqlite.Store
	verifier *auth.Verifier
	dedupe   idempotency.Deduper
	logger   *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
// A nil deduper disables Idempotency-Key checks.
func New(store *sqlite.Store, verifier *auth.Verifier, dedupe idempotency.Deduper, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:   router,
		store:    store,
		verifier: verifier,
		dedupe:   dedupe,
		logger:   logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/api/healthz", s.handleHealth)

	api := s.engine.Group("/api", s.requireAuth, s.dedupeRequests)
	{
		api.GET("/me", s.handleMe)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET(":id", s.handleGetProject)
			projects.DELETE(":id", s.handleDeleteProject)
			projects.GET(":id/members", s.handleListMembers)
			projects.POST(":id/members", s.handleAddMember)
			projects.GET(":id/columns", s.handleListColumns)
			projects.POST(":id/columns", s.handleCreateColumn)
			projects.GET(":id/items", s.handleListItems)
			projects.POST(":id/items", s.handleCreateItem)
		}

		items := api.Group("/items")
		{
			items.GET(":id", s.handleGetItem)
			items.PATCH(":id", s.handleUpdateItem)
			items.DELETE(":id", s.handleDeleteItem)
			items.GET(":id/subtasks", s.handleListSubtasks)
			items.GET(":id/comments", s.handleListComments)
			items.POST(":id/comments", s.handleCreateComment)
		}

		api.PATCH("/comments/:id", s.handleUpdateComment)
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, sqlite.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, sqlite.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// respondStoreError picks the status from the store error.
func (s *Server) respondStoreError(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
