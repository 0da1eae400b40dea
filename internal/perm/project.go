package perm

import "boardsync/internal/models"

// ProjectAction is a bit set of project-level mutations.
type ProjectAction uint8

const (
	CreateItem ProjectAction = 1 << iota
	ManageMembers
	DeleteProject
)

// ProjectGrant is the project-level verdict.
type ProjectGrant struct {
	Actions ProjectAction
	Reason  Reason
}

// Can reports whether the grant allows action.
func (g ProjectGrant) Can(action ProjectAction) bool {
	return action != 0 && g.Actions&action == action
}

// EvaluateProject returns the project-level mutations s may perform.
// Owners and admins hold all of them, managers may create items and manage
// members, plain members may create items and viewers nothing.
func EvaluateProject(s Subject) ProjectGrant {
	if s.User.ID == 0 {
		return ProjectGrant{Reason: ReasonNone}
	}
	if r, ok := projectAdmin(s); ok {
		return ProjectGrant{Actions: CreateItem | ManageMembers | DeleteProject, Reason: r}
	}
	switch s.Role {
	case models.RoleManager:
		return ProjectGrant{Actions: CreateItem | ManageMembers, Reason: ReasonManager}
	case models.RoleMember:
		return ProjectGrant{Actions: CreateItem, Reason: Reason(models.RoleMember)}
	}
	return ProjectGrant{Reason: ReasonNone}
}
