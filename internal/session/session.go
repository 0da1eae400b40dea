// Package session holds the state of one user working on one project board
// and routes every mutation through the permission evaluator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"boardsync/internal/apiclient"
	"boardsync/internal/board"
	"boardsync/internal/columns"
	"boardsync/internal/drag"
	"boardsync/internal/models"
	"boardsync/internal/perm"
	"boardsync/internal/reconcile"
)

var (
	// ErrNotPermitted is returned when the evaluator denies a mutation.
	ErrNotPermitted = errors.New("not permitted")
	// ErrReadOnly is returned after the server rejected the credential.
	ErrReadOnly = errors.New("session is read-only")
	// ErrNotMember is returned when an assignee is not a project member.
	ErrNotMember = errors.New("assignee is not a project member")
	// ErrNoParent is returned when an item has no parent epic.
	ErrNoParent = errors.New("item has no parent epic")
)

// API is the remote surface a session needs.
type API interface {
	reconcile.Lister
	columns.API
	drag.Updater

	GetItem(ctx context.Context, itemID int64) (models.Item, error)
	CreateItem(ctx context.Context, projectID int64, fields models.ItemFields) (models.Item, error)
	DeleteItem(ctx context.Context, itemID int64) error
	ListMembers(ctx context.Context, projectID int64) ([]models.Member, error)
	ListSubtasks(ctx context.Context, itemID int64) ([]models.Item, error)
	ListComments(ctx context.Context, itemID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, itemID int64, content string) (models.Comment, error)
	UpdateComment(ctx context.Context, commentID int64, content string) (models.Comment, error)
	GetCurrentUser(ctx context.Context) (models.User, error)
	GetProject(ctx context.Context, projectID int64) (models.Project, error)
}

// Config tunes a session.
type Config struct {
	Drag drag.Config
}

// Session is the application state for one project board.
type Session struct {
	api    API
	logger *slog.Logger

	user    models.User
	project models.Project
	store   *board.Store
	prov    *columns.Provisioner
	recon   *reconcile.Controller
	coord   *drag.Coordinator

	mu      sync.RWMutex
	members []models.Member
	revoked bool
}

// Open loads the current user, the project, its members and columns, then
// fetches the board. Columns are provisioned when the project has none.
func Open(ctx context.Context, api API, projectID int64, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	user, err := api.GetCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	project, err := api.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", projectID, err)
	}
	members, err := api.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}

	prov := columns.NewProvisioner(api, logger)
	prov.IsDuplicate = func(err error) bool { return errors.Is(err, apiclient.ErrConflict) }
	cols, err := prov.Ensure(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		api:     api,
		logger:  logger.With(slog.Int64("project", projectID)),
		user:    user,
		project: project,
		members: members,
		prov:    prov,
	}
	s.store = board.NewStore(cols, s.logger)
	s.recon = reconcile.New(api, s.store, projectID, s.logger)
	s.coord = drag.New(s.store, api, s.recon, s.canMove, cfg.Drag, s.logger)
	s.recon.SetGate(s.coord.InFlight)
	s.coord.OnAuthError(s.revoke)

	if err := s.recon.Refresh(ctx, reconcile.TriggerSelect); err != nil {
		s.coord.Close()
		return nil, err
	}
	return s, nil
}

// Close tears the session down, cancelling any in-flight drag.
func (s *Session) Close() {
	s.coord.Close()
}

// User returns the signed-in user.
func (s *Session) User() models.User { return s.user }

// Project returns the active project.
func (s *Session) Project() models.Project { return s.project }

// Store exposes the board store, e.g. to register render listeners.
func (s *Session) Store() *board.Store { return s.store }

// Board returns the view to render.
func (s *Session) Board() board.View { return s.store.View() }

// Columns returns the board columns in order.
func (s *Session) Columns() []models.Column { return s.store.Columns() }

// Members returns the project member rows.
func (s *Session) Members() []models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Member(nil), s.members...)
}

// Revoked reports whether the server rejected the credential. A revoked
// session is read-only.
func (s *Session) Revoked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revoked
}

func (s *Session) revoke(err error) {
	s.mu.Lock()
	already := s.revoked
	s.revoked = true
	s.mu.Unlock()
	if !already {
		s.logger.Warn("credential rejected, session is read-only", slog.String("error", err.Error()))
	}
}

// failed revokes the session on authorization errors and passes err on.
func (s *Session) failed(err error) error {
	if apiclient.IsAuthorization(err) {
		s.revoke(err)
	}
	return err
}

func (s *Session) subject() perm.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub := perm.Subject{User: s.user, Project: s.project}
	for _, m := range s.members {
		if m.UserID == s.user.ID {
			sub.Role = m.Role
			break
		}
	}
	return sub
}

// Role returns the user's member role, empty if not a member.
func (s *Session) Role() models.Role {
	return s.subject().Role
}

// Grant evaluates the user's rights on it.
func (s *Session) Grant(it models.Item) perm.Grant {
	if s.Revoked() {
		return perm.Grant{Reason: perm.ReasonNone}
	}
	return perm.Evaluate(s.subject(), &it)
}

// Permissions evaluates the user's rights on a board item. Items not on the
// board yield an empty grant.
func (s *Session) Permissions(itemID int64) perm.Grant {
	it, ok := s.store.Item(itemID)
	if !ok {
		return perm.Grant{Reason: perm.ReasonNone}
	}
	return s.Grant(it)
}

// ProjectPermissions evaluates project-level rights.
func (s *Session) ProjectPermissions() perm.ProjectGrant {
	if s.Revoked() {
		return perm.ProjectGrant{Reason: perm.ReasonNone}
	}
	return perm.EvaluateProject(s.subject())
}

func (s *Session) canMove(it models.Item) bool {
	return s.Grant(it).Can(perm.MoveColumn)
}

// CanDrag reports whether a drag handle is offered for the item.
func (s *Session) CanDrag(itemID int64) bool {
	return s.coord.CanDrag(itemID)
}

// DragState returns the coordinator state.
func (s *Session) DragState() drag.State {
	return s.coord.State()
}

// BeginDrag starts dragging an item.
func (s *Session) BeginDrag(itemID int64) error {
	return s.coord.Begin(itemID)
}

// CancelDrag abandons the current drag.
func (s *Session) CancelDrag() error {
	return s.coord.Cancel()
}

// Drop releases the dragged item on target.
func (s *Session) Drop(ctx context.Context, target drag.Target) (drag.Outcome, error) {
	return s.coord.Drop(ctx, target)
}

// Move drags an item to a column in one call.
func (s *Session) Move(ctx context.Context, itemID int64, column string) (drag.Outcome, error) {
	if err := s.coord.Begin(itemID); err != nil {
		return drag.Outcome{}, err
	}
	return s.coord.Drop(ctx, drag.ToColumn(column))
}

// Refresh reloads the board. It is a no-op while a drag is in flight.
func (s *Session) Refresh(ctx context.Context) error {
	err := s.recon.Refresh(ctx, reconcile.TriggerManual)
	if errors.Is(err, reconcile.ErrGated) {
		return nil
	}
	return s.failed(err)
}

// Poll refreshes the board every interval until ctx ends.
func (s *Session) Poll(ctx context.Context, interval time.Duration) error {
	return s.recon.Poll(ctx, interval)
}

// LastRefresh returns when the board was last replaced.
func (s *Session) LastRefresh() time.Time {
	return s.recon.LastRefresh()
}

// ReloadMembers refetches the member list.
func (s *Session) ReloadMembers(ctx context.Context) error {
	members, err := s.api.ListMembers(ctx, s.project.ID)
	if err != nil {
		return s.failed(fmt.Errorf("members: %w", err))
	}
	s.mu.Lock()
	s.members = members
	s.mu.Unlock()
	return nil
}

// Reload refetches the members and the column set, then the board. Columns
// added by another client show up without reopening the session. It is a
// no-op while a drag is in flight.
func (s *Session) Reload(ctx context.Context) error {
	if s.coord.InFlight() {
		return nil
	}
	if err := s.ReloadMembers(ctx); err != nil {
		return err
	}
	cols, err := s.prov.Ensure(ctx, s.project.ID)
	if err != nil {
		return s.failed(err)
	}
	if !slices.Equal(cols, s.store.Columns()) && !s.coord.InFlight() {
		s.logger.Info("columns changed", slog.Int("count", len(cols)))
		s.store.SetColumns(cols)
	}
	return s.Refresh(ctx)
}

func (s *Session) isMember(userID int64) bool {
	if userID == s.project.OwnerID {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Session) writable() error {
	if s.Revoked() {
		return ErrReadOnly
	}
	return nil
}
