package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"boardsync/internal/models"
	"boardsync/internal/perm"
)

// handleListItems returns the items of a project, optionally filtered by
// the type query parameter.
func (s *Server) handleListItems(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemType := models.ItemType(c.Query("type"))
	if _, known := models.ValidItemTypes[itemType]; itemType != "" && !known {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("unknown item type %q", itemType))
		return
	}
	if _, ok := s.subject(c, id); !ok {
		return
	}

	items, err := s.store.ListItems(c.Request.Context(), id, itemType)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"items": items})
}

// handleCreateItem inserts a new item; the caller becomes its reporter.
func (s *Server) handleCreateItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.ItemFields
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	sub, ok := s.requireProject(c, id, perm.CreateItem)
	if !ok {
		return
	}

	item, err := s.store.CreateItem(c.Request.Context(), id, sub.User.ID, req)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"item": item})
}

// loadItem fetches the item named by the path and the caller's standing in
// its project.
func (s *Server) loadItem(c *gin.Context) (models.Item, perm.Subject, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return models.Item{}, perm.Subject{}, false
	}
	item, err := s.store.GetItem(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return models.Item{}, perm.Subject{}, false
	}
	sub, ok := s.subject(c, item.ProjectID)
	if !ok {
		return models.Item{}, perm.Subject{}, false
	}
	return item, sub, true
}

// handleGetItem returns one item.
func (s *Server) handleGetItem(c *gin.Context) {
	item, _, ok := s.loadItem(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"item": item})
}

// handleUpdateItem applies a partial update. Moves need the move grant,
// other edits the edit grant.
func (s *Server) handleUpdateItem(c *gin.Context) {
	var patch models.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if patch.Empty() {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("empty update"))
		return
	}
	if err := patch.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	item, sub, ok := s.loadItem(c)
	if !ok {
		return
	}

	need := perm.None
	if patch.IsMove() {
		need |= perm.MoveColumn
	}
	if patch != (models.ItemPatch{Status: patch.Status, ColumnID: patch.ColumnID}) {
		need |= perm.EditFields
	}
	if !perm.Evaluate(sub, &item).Can(need) {
		s.respondError(c, http.StatusForbidden, errDenied)
		return
	}

	updated, err := s.store.UpdateItem(c.Request.Context(), item.ID, patch)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"item": updated})
}

// handleDeleteItem removes an item with its subtasks and comments.
func (s *Server) handleDeleteItem(c *gin.Context) {
	item, sub, ok := s.loadItem(c)
	if !ok {
		return
	}
	if !perm.Evaluate(sub, &item).Can(perm.DeleteItem) {
		s.respondError(c, http.StatusForbidden, errDenied)
		return
	}
	if err := s.store.DeleteItem(c.Request.Context(), item.ID); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

// handleListSubtasks returns the children of an epic.
func (s *Server) handleListSubtasks(c *gin.Context) {
	item, _, ok := s.loadItem(c)
	if !ok {
		return
	}
	subtasks, err := s.store.ListSubtasks(c.Request.Context(), item.ID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"subtasks": subtasks})
}
