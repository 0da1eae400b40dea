package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is a project-scoped role held by a member.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// ValidRoles enumerates the roles a member row may carry.
var ValidRoles = map[Role]struct{}{
	RoleOwner:   {},
	RoleAdmin:   {},
	RoleManager: {},
	RoleMember:  {},
	RoleViewer:  {},
}

// ItemType is the closed set of work item kinds.
type ItemType string

const (
	TypeTask    ItemType = "task"
	TypeBug     ItemType = "bug"
	TypeFeature ItemType = "feature"
	TypeEpic    ItemType = "epic"
	TypeStory   ItemType = "story"
)

// ValidItemTypes enumerates the supported item types.
var ValidItemTypes = map[ItemType]struct{}{
	TypeTask:    {},
	TypeBug:     {},
	TypeFeature: {},
	TypeEpic:    {},
	TypeStory:   {},
}

// Priority orders items from Low to Critical.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// Rank returns the ordinal of the priority; unknown values rank 0.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Less reports whether p sorts below q.
func (p Priority) Less(q Priority) bool {
	return p.Rank() < q.Rank()
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// DateLayout is the wire format of calendar dates such as due dates.
const DateLayout = "2006-01-02"

// ParseDueDate validates a YYYY-MM-DD due date. Empty input is allowed.
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: %w", raw, err)
	}
	return d, nil
}

// User is the identity returned by the API for the bearer credential.
type User struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	TeamIDs  []int64 `json:"team_ids,omitempty"`
}

// InTeam reports whether the user belongs to the given team.
func (u User) InTeam(teamID int64) bool {
	for _, id := range u.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// Project groups columns, items and members under one owner.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"admin_id"`
	OwnerTeamID *int64    `json:"owner_team_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member assigns a role to a user within a project.
type Member struct {
	ProjectID int64  `json:"project_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
}

// Column is a board lane identified by its status key.
type Column struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Order     int    `json:"order"`
}

// ColumnSpec is the payload used to create a column.
type ColumnSpec struct {
	Name   string `json:"name"`
	Order  int    `json:"order"`
	Status string `json:"status"`
}

// Item is a task, bug, feature, epic or story on the board.
type Item struct {
	ID               int64     `json:"id"`
	ProjectID        int64     `json:"project_id"`
	ColumnID         int64     `json:"column_id"`
	Status           string    `json:"status"`
	Type             ItemType  `json:"type"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Priority         Priority  `json:"priority,omitempty"`
	DueDate          string    `json:"due_date,omitempty"`
	AssigneeID       *int64    `json:"assignee_id,omitempty"`
	ReporterID       int64     `json:"reporter_id"`
	ParentID         *int64    `json:"parent_id,omitempty"`
	Severity         string    `json:"severity,omitempty"`
	StepsToReproduce string    `json:"steps_to_reproduce,omitempty"`
	Subtasks         []Item    `json:"subtasks,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.AssigneeID != nil {
		v := *it.AssigneeID
		out.AssigneeID = &v
	}
	if it.ParentID != nil {
		v := *it.ParentID
		out.ParentID = &v
	}
	if it.Subtasks != nil {
		out.Subtasks = make([]Item, len(it.Subtasks))
		for i, st := range it.Subtasks {
			out.Subtasks[i] = st.Clone()
		}
	}
	return out
}

// ItemFields is the payload used to create an item.
type ItemFields struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Type             ItemType `json:"type,omitempty"`
	Status           string   `json:"status,omitempty"`
	ColumnID         int64    `json:"column_id,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
	DueDate          string   `json:"due_date,omitempty"`
	AssigneeID       *int64   `json:"assignee_id,omitempty"`
	ParentID         *int64   `json:"parent_id,omitempty"`
	Severity         string   `json:"severity,omitempty"`
	StepsToReproduce string   `json:"steps_to_reproduce,omitempty"`
}

// ItemPatch carries a partial item update. Nil fields are left untouched.
// Unassign clears the assignee; it cannot be combined with AssigneeID.
type ItemPatch struct {
	Title            *string   `json:"title,omitempty"`
	Description      *string   `json:"description,omitempty"`
	Status           *string   `json:"status,omitempty"`
	ColumnID         *int64    `json:"column_id,omitempty"`
	Priority         *Priority `json:"priority,omitempty"`
	DueDate          *string   `json:"due_date,omitempty"`
	AssigneeID       *int64    `json:"assignee_id,omitempty"`
	Severity         *string   `json:"severity,omitempty"`
	StepsToReproduce *string   `json:"steps_to_reproduce,omitempty"`
	Unassign         bool      `json:"unassign,omitempty"`
}

// ErrAssigneeConflict is returned for a patch that both sets and clears the
// assignee.
var ErrAssigneeConflict = errors.New("assignee_id and unassign are mutually exclusive")

// Validate checks the patch for contradictory fields.
func (p ItemPatch) Validate() error {
	if p.Unassign && p.AssigneeID != nil {
		return ErrAssigneeConflict
	}
	return nil
}

// MovePatch builds the single update that moves an item to another column.
// Status and column always travel together.
func MovePatch(status string, columnID int64) ItemPatch {
	return ItemPatch{Status: &status, ColumnID: &columnID}
}

// IsMove reports whether the patch changes the item's column.
func (p ItemPatch) IsMove() bool {
	return p.Status != nil || p.ColumnID != nil
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p == ItemPatch{}
}

// Apply returns a copy of it with the patch applied.
func (p ItemPatch) Apply(it Item) Item {
	out := it.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.ColumnID != nil {
		out.ColumnID = *p.ColumnID
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.DueDate != nil {
		out.DueDate = *p.DueDate
	}
	if p.AssigneeID != nil {
		v := *p.AssigneeID
		out.AssigneeID = &v
	}
	if p.Unassign {
		out.AssigneeID = nil
	}
	if p.Severity != nil {
		out.Severity = *p.Severity
	}
	if p.StepsToReproduce != nil {
		out.StepsToReproduce = *p.StepsToReproduce
	}
	return out
}

// Comment is an append-only note on an item.
type Comment struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
