package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	assert.True(t, PriorityLow.Less(PriorityMedium))
	assert.True(t, PriorityMedium.Less(PriorityHigh))
	assert.True(t, PriorityHigh.Less(PriorityCritical))
	assert.False(t, PriorityCritical.Less(PriorityLow))
	assert.False(t, Priority("Urgent").Valid())
	assert.Equal(t, 0, Priority("Urgent").Rank())
}

func TestMovePatchCarriesStatusAndColumn(t *testing.T) {
	p := MovePatch("done", 7)
	require.NotNil(t, p.Status)
	require.NotNil(t, p.ColumnID)
	assert.Equal(t, "done", *p.Status)
	assert.Equal(t, int64(7), *p.ColumnID)
	assert.True(t, p.IsMove())

	moved := p.Apply(Item{ID: 1, Status: "todo", ColumnID: 3})
	assert.Equal(t, "done", moved.Status)
	assert.Equal(t, int64(7), moved.ColumnID)
}

func TestItemPatchEmpty(t *testing.T) {
	assert.True(t, ItemPatch{}.Empty())
	title := "x"
	assert.False(t, ItemPatch{Title: &title}.Empty())
	assert.False(t, ItemPatch{Title: &title}.IsMove())
	assert.False(t, ItemPatch{Unassign: true}.Empty())
}

func TestItemPatchUnassign(t *testing.T) {
	assignee := int64(4)
	it := Item{ID: 1, Title: "x", AssigneeID: &assignee}

	out := ItemPatch{Unassign: true}.Apply(it)
	assert.Nil(t, out.AssigneeID)
	assert.Equal(t, "x", out.Title)
	require.NotNil(t, it.AssigneeID)

	require.NoError(t, ItemPatch{Unassign: true}.Validate())
	require.ErrorIs(t, ItemPatch{Unassign: true, AssigneeID: &assignee}.Validate(), ErrAssigneeConflict)
}

func TestItemCloneIsDeep(t *testing.T) {
	assignee := int64(4)
	it := Item{ID: 1, AssigneeID: &assignee, Subtasks: []Item{{ID: 2}}}
	cp := it.Clone()
	*cp.AssigneeID = 9
	cp.Subtasks[0].Title = "changed"

	assert.Equal(t, int64(4), *it.AssigneeID)
	assert.Empty(t, it.Subtasks[0].Title)
}

func TestParseDueDate(t *testing.T) {
	d, err := ParseDueDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())

	_, err = ParseDueDate("")
	require.NoError(t, err)

	_, err = ParseDueDate("03/01/2024")
	require.Error(t, err)
}

func TestAttachSubtasks(t *testing.T) {
	epicID := int64(10)
	other := int64(11)
	epic := Item{ID: epicID, Type: TypeEpic}
	items := []Item{
		{ID: 1, ParentID: &epicID, Title: "a"},
		{ID: 2, ParentID: &other},
		{ID: 3},
		{ID: 4, ParentID: &epicID, Title: "b"},
	}

	got := AttachSubtasks(epic, items)
	require.Len(t, got.Subtasks, 2)
	assert.Equal(t, "a", got.Subtasks[0].Title)
	assert.Equal(t, "b", got.Subtasks[1].Title)
	assert.Nil(t, epic.Subtasks)
}

func TestValidateParent(t *testing.T) {
	require.NoError(t, ValidateParent(Item{ID: 1, Type: TypeEpic}))
	err := ValidateParent(Item{ID: 2, Type: TypeTask})
	require.ErrorIs(t, err, ErrParentNotEpic)
}

func TestUserInTeam(t *testing.T) {
	u := User{ID: 1, TeamIDs: []int64{3, 5}}
	assert.True(t, u.InTeam(5))
	assert.False(t, u.InTeam(4))
}
