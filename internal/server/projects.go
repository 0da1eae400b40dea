package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boardsync/internal/models"
	"boardsync/internal/perm"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerTeamID *int64 `json:"owner_team_id"`
}

type memberRequest struct {
	UserID int64       `json:"user_id"`
	Role   models.Role `json:"role"`
}

// subject loads everything the permission evaluator needs about the caller
// in a project. Callers who neither own nor belong to the project are
// rejected.
func (s *Server) subject(c *gin.Context, projectID int64) (perm.Subject, bool) {
	user, ok := s.currentUser(c)
	if !ok {
		return perm.Subject{}, false
	}
	ctx := c.Request.Context()
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		s.respondStoreError(c, err)
		return perm.Subject{}, false
	}
	member, isMember, err := s.store.Member(ctx, projectID, user.ID)
	if err != nil {
		s.respondStoreError(c, err)
		return perm.Subject{}, false
	}

	sub := perm.Subject{User: user, Project: project}
	if isMember {
		sub.Role = member.Role
	}
	owner := project.OwnerID == user.ID || (project.OwnerTeamID != nil && user.InTeam(*project.OwnerTeamID))
	if !isMember && !owner {
		s.respondError(c, http.StatusForbidden, errNotMember)
		return perm.Subject{}, false
	}
	return sub, true
}

// requireProject runs subject and checks a project-level action.
func (s *Server) requireProject(c *gin.Context, projectID int64, action perm.ProjectAction) (perm.Subject, bool) {
	sub, ok := s.subject(c, projectID)
	if !ok {
		return perm.Subject{}, false
	}
	if !perm.EvaluateProject(sub).Can(action) {
		s.respondError(c, http.StatusForbidden, errDenied)
		return perm.Subject{}, false
	}
	return sub, true
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleListProjects returns the projects visible to the caller.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context(), c.GetInt64(userIDKey))
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a project owned by the caller.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), c.GetInt64(userIDKey), req.Name, req.Description, req.OwnerTeamID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleGetProject returns a project with its ownership fields.
func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, ok := s.subject(c, id)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": sub.Project})
}

// handleDeleteProject removes a project and everything in it.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.requireProject(c, id, perm.DeleteProject); !ok {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleListMembers returns the member rows of a project.
func (s *Server) handleListMembers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.subject(c, id); !ok {
		return
	}
	members, err := s.store.ListMembers(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

// handleAddMember gives a user a role in the project.
func (s *Server) handleAddMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if _, ok := s.requireProject(c, id, perm.ManageMembers); !ok {
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	member, err := s.store.AddMember(c.Request.Context(), id, req.UserID, req.Role)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"member": member})
}

// handleListColumns returns the columns of a project.
func (s *Server) handleListColumns(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.subject(c, id); !ok {
		return
	}
	cols, err := s.store.ListColumns(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"columns": cols})
}

// handleCreateColumn adds a column. Anyone who may create items may add
// columns, which lets a member provision an empty board.
func (s *Server) handleCreateColumn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.ColumnSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if _, ok := s.requireProject(c, id, perm.CreateItem); !ok {
		return
	}
	col, err := s.store.CreateColumn(c.Request.Context(), id, req)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"column": col})
}
