// Package perm decides which mutations a user may perform on a project and
// its items. Every surface that offers or accepts a mutation asks this
// package; nothing else re-derives the rule.
package perm

import (
	"strings"

	"boardsync/internal/models"
)

// Action is a bit set of item mutations.
type Action uint8

const (
	EditFields Action = 1 << iota
	MoveColumn
	DeleteItem

	None Action = 0
	All         = EditFields | MoveColumn | DeleteItem
)

// Has reports whether every action in want is present.
func (a Action) Has(want Action) bool {
	return want != None && a&want == want
}

func (a Action) String() string {
	if a == None {
		return "none"
	}
	var parts []string
	if a&EditFields != 0 {
		parts = append(parts, "edit")
	}
	if a&MoveColumn != 0 {
		parts = append(parts, "move")
	}
	if a&DeleteItem != 0 {
		parts = append(parts, "delete")
	}
	return strings.Join(parts, ",")
}

// Reason names the rule that produced a grant.
type Reason string

const (
	ReasonOwner    Reason = "owner"
	ReasonTeam     Reason = "owning-team"
	ReasonAdmin    Reason = "admin"
	ReasonManager  Reason = "manager"
	ReasonAssignee Reason = "assignee"
	ReasonReporter Reason = "reporter"
	ReasonNone     Reason = "read-only"
)

// Subject is everything the evaluator needs about the acting user.
// Role is the user's membership role in Project, empty when not a member.
type Subject struct {
	User    models.User
	Project models.Project
	Role    models.Role
}

// Grant is the verdict for one item.
type Grant struct {
	Actions Action
	Reason  Reason
}

// Can reports whether the grant allows action.
func (g Grant) Can(action Action) bool {
	return g.Actions.Has(action)
}

// Evaluate returns the mutations s may perform on it. A nil item yields an
// empty grant.
func Evaluate(s Subject, it *models.Item) Grant {
	if it == nil || s.User.ID == 0 || (it.ProjectID != 0 && s.Project.ID != 0 && it.ProjectID != s.Project.ID) {
		return Grant{Reason: ReasonNone}
	}
	if r, ok := projectAdmin(s); ok {
		return Grant{Actions: All, Reason: r}
	}
	if s.Role == models.RoleManager {
		return Grant{Actions: All, Reason: ReasonManager}
	}
	if it.AssigneeID != nil && *it.AssigneeID == s.User.ID {
		return Grant{Actions: All, Reason: ReasonAssignee}
	}
	if it.ReporterID == s.User.ID {
		return Grant{Actions: All, Reason: ReasonReporter}
	}
	return Grant{Reason: ReasonNone}
}

// projectAdmin honors both ownership models: a single owning user and an
// owning team, plus explicit owner/admin member rows.
func projectAdmin(s Subject) (Reason, bool) {
	switch {
	case s.Project.OwnerID != 0 && s.Project.OwnerID == s.User.ID:
		return ReasonOwner, true
	case s.Project.OwnerTeamID != nil && s.User.InTeam(*s.Project.OwnerTeamID):
		return ReasonTeam, true
	case s.Role == models.RoleOwner:
		return ReasonOwner, true
	case s.Role == models.RoleAdmin:
		return ReasonAdmin, true
	}
	return "", false
}

// CanEditComment reports whether user may edit c. Only the author may,
// whatever the item grant says.
func CanEditComment(user models.User, c models.Comment) bool {
	return user.ID != 0 && c.AuthorID == user.ID
}
