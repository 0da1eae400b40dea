package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boardsync/internal/perm"
)

type commentRequest struct {
	Content string `json:"content"`
}

// handleListComments returns the comments of an item.
func (s *Server) handleListComments(c *gin.Context) {
	item, _, ok := s.loadItem(c)
	if !ok {
		return
	}
	comments, err := s.store.ListComments(c.Request.Context(), item.ID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"comments": comments})
}

// handleCreateComment lets any project member comment on an item.
func (s *Server) handleCreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	item, sub, ok := s.loadItem(c)
	if !ok {
		return
	}
	comment, err := s.store.CreateComment(c.Request.Context(), item.ID, sub.User.ID, req.Content)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"comment": comment})
}

// handleUpdateComment rewrites a comment; only its author may.
func (s *Server) handleUpdateComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	existing, err := s.store.GetComment(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if !perm.CanEditComment(user, existing) {
		s.respondError(c, http.StatusForbidden, errDenied)
		return
	}

	comment, err := s.store.UpdateComment(c.Request.Context(), id, user.ID, req.Content)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"comment": comment})
}
