package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"boardsync/internal/idempotency"
	"boardsync/internal/models"
)

const userIDKey = "userID"

var (
	errNotMember = errors.New("not a project member")
	errDenied    = errors.New("not permitted")
)

// requireAuth resolves the bearer token to a user id.
func (s *Server) requireAuth(c *gin.Context) {
	id, err := s.verifier.UserIDFromAuthHeader(c.GetHeader("Authorization"))
	if err != nil {
		s.respondError(c, http.StatusUnauthorized, err)
		return
	}
	c.Set(userIDKey, id)
	c.Next()
}

// dedupeRequests rejects a mutating request whose Idempotency-Key was
// already accepted for the same user. A key whose request failed is
// released so a later attempt can use it.
func (s *Server) dedupeRequests(c *gin.Context) {
	key := c.GetHeader(idempotency.Header)
	if s.dedupe == nil || key == "" || c.Request.Method == http.MethodGet {
		c.Next()
		return
	}

	user := strconv.FormatInt(c.GetInt64(userIDKey), 10)
	first, err := s.dedupe.Add(c.Request.Context(), user, key)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !first {
		s.respondError(c, http.StatusConflict, errors.New("duplicate request"))
		return
	}

	c.Next()

	if c.Writer.Status() >= http.StatusBadRequest {
		if err := s.dedupe.Remove(c.Request.Context(), user, key); err != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// currentUser loads the authenticated user.
func (s *Server) currentUser(c *gin.Context) (models.User, bool) {
	u, err := s.store.GetUser(c.Request.Context(), c.GetInt64(userIDKey))
	if err != nil {
		s.respondError(c, http.StatusUnauthorized, err)
		return models.User{}, false
	}
	return u, true
}
