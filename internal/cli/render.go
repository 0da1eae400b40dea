package cli

import (
	"fmt"
	"io"
	"strings"

	"boardsync/internal/board"
	"boardsync/internal/drag"
	"boardsync/internal/models"
	"boardsync/internal/perm"
)

// renderBoard prints the board one column per block, items in board order.
func renderBoard(w io.Writer, project models.Project, cols []models.Column, v board.View) {
	names := make(map[string]string, len(cols))
	for _, c := range cols {
		names[c.Status] = c.Name
	}

	header := fmt.Sprintf("%s (#%d)", project.Name, project.ID)
	if v.Optimistic {
		header += "  [unconfirmed]"
	}
	fmt.Fprintln(w, header)

	for _, key := range v.Keys {
		lane := v.Lane(key)
		name := names[key]
		if name == "" {
			name = key
		}
		fmt.Fprintf(w, "\n== %s (%s) [%d]\n", name, key, len(lane))
		if len(lane) == 0 {
			fmt.Fprintln(w, "   (empty)")
			continue
		}
		for _, it := range lane {
			fmt.Fprintf(w, "   %s\n", itemLine(it))
		}
	}

	if v.Dropped > 0 {
		fmt.Fprintf(w, "\n%d item(s) with an unknown status are not shown\n", v.Dropped)
	}
}

func itemLine(it models.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%-4d %-8s %s", it.ID, "["+string(it.Type)+"]", it.Title)
	var tags []string
	if it.Priority != "" {
		tags = append(tags, string(it.Priority))
	}
	if it.AssigneeID != nil {
		tags = append(tags, fmt.Sprintf("@%d", *it.AssigneeID))
	}
	if it.DueDate != "" {
		tags = append(tags, "due "+it.DueDate)
	}
	if it.ParentID != nil {
		tags = append(tags, fmt.Sprintf("epic #%d", *it.ParentID))
	}
	if len(tags) > 0 {
		b.WriteString("  (" + strings.Join(tags, ", ") + ")")
	}
	return b.String()
}

// renderOutcome prints the end of a drop.
func renderOutcome(w io.Writer, out drag.Outcome) {
	switch out.Result {
	case drag.Committed:
		fmt.Fprintf(w, "moved #%d %s -> %s\n", out.ItemID, out.From, out.To)
		if out.Err != nil {
			fmt.Fprintf(w, "warning: board not refreshed: %v\n", out.Err)
		}
	case drag.Reverted:
		fmt.Fprintf(w, "reverted #%d %s -> %s: %s\n", out.ItemID, out.From, out.To, out.Notice)
	default:
		fmt.Fprintf(w, "no change for #%d\n", out.ItemID)
	}
}

// permRow is one line of the perms command.
type permRow struct {
	ItemID  int64       `json:"item_id"`
	Title   string      `json:"title"`
	Actions string      `json:"actions"`
	Reason  perm.Reason `json:"reason"`
}

func renderPerms(w io.Writer, user models.User, role models.Role, project perm.ProjectGrant, rows []permRow) {
	if role == "" {
		role = "-"
	}
	fmt.Fprintf(w, "user %s (#%d), role %s\n", user.Username, user.ID, role)
	fmt.Fprintf(w, "project: %s (%s)\n", projectActions(project), project.Reason)
	for _, r := range rows {
		fmt.Fprintf(w, "#%-4d %-20s %-16s %s\n", r.ItemID, r.Title, r.Actions, r.Reason)
	}
}

func projectActions(g perm.ProjectGrant) string {
	var parts []string
	if g.Can(perm.CreateItem) {
		parts = append(parts, "create")
	}
	if g.Can(perm.ManageMembers) {
		parts = append(parts, "members")
	}
	if g.Can(perm.DeleteProject) {
		parts = append(parts, "delete")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// renderItem prints an item with its epic context, subtasks and comments.
func renderItem(w io.Writer, it models.Item, epic *models.Item, comments []models.Comment) {
	fmt.Fprintln(w, itemLine(it))
	fmt.Fprintf(w, "status: %s\n", it.Status)
	if it.Description != "" {
		fmt.Fprintf(w, "\n%s\n", it.Description)
	}
	if it.Type == models.TypeBug && (it.Severity != "" || it.StepsToReproduce != "") {
		fmt.Fprintf(w, "\nseverity: %s\nsteps: %s\n", it.Severity, it.StepsToReproduce)
	}
	if epic != nil {
		fmt.Fprintf(w, "\nepic: #%d %s\n", epic.ID, epic.Title)
	}
	if len(it.Subtasks) > 0 {
		fmt.Fprintln(w, "\nsubtasks:")
		for _, st := range it.Subtasks {
			fmt.Fprintf(w, "   %s  [%s]\n", itemLine(st), st.Status)
		}
	}
	if len(comments) > 0 {
		fmt.Fprintln(w, "\ncomments:")
		for _, c := range comments {
			fmt.Fprintf(w, "   #%d by %d: %s\n", c.ID, c.AuthorID, c.Content)
		}
	}
}
