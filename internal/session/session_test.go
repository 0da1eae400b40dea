package session

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/apiclient"
	"boardsync/internal/drag"
	"boardsync/internal/models"
	"boardsync/internal/perm"
)

type fakeAPI struct {
	mu        sync.Mutex
	user      models.User
	project   models.Project
	members   []models.Member
	columns   []models.Column
	items     []models.Item
	comments  []models.Comment
	nextID    int64
	calls     map[string]int
	updateErr error
}

func newFakeAPI(userID int64) *fakeAPI {
	return &fakeAPI{
		user:    models.User{ID: userID, Username: "u"},
		project: models.Project{ID: 1, Name: "Board", OwnerID: 1},
		members: []models.Member{
			{ProjectID: 1, UserID: 2, Role: models.RoleMember},
			{ProjectID: 1, UserID: 3, Role: models.RoleViewer},
			{ProjectID: 1, UserID: 4, Role: models.RoleManager},
		},
		nextID: 100,
		calls:  map[string]int{},
	}
}

func (f *fakeAPI) hit(op string) {
	f.calls[op]++
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) ListItems(_ context.Context, _ int64, typ models.ItemType) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ListItems")
	var out []models.Item
	for _, it := range f.items {
		if typ == "" || it.Type == typ {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) ListColumns(context.Context, int64) ([]models.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ListColumns")
	return append([]models.Column(nil), f.columns...), nil
}

func (f *fakeAPI) CreateColumn(_ context.Context, projectID int64, spec models.ColumnSpec) (models.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateColumn")
	f.nextID++
	c := models.Column{ID: f.nextID, ProjectID: projectID, Name: spec.Name, Status: spec.Status, Order: spec.Order}
	f.columns = append(f.columns, c)
	return c, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, itemID int64, patch models.ItemPatch) (models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("UpdateItem")
	if f.updateErr != nil {
		return models.Item{}, f.updateErr
	}
	for i, it := range f.items {
		if it.ID == itemID {
			f.items[i] = patch.Apply(it)
			return f.items[i], nil
		}
	}
	return models.Item{}, &apiclient.Error{Op: "update item", Status: http.StatusNotFound}
}

func (f *fakeAPI) GetItem(_ context.Context, itemID int64) (models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetItem")
	for _, it := range f.items {
		if it.ID == itemID {
			return it.Clone(), nil
		}
	}
	return models.Item{}, &apiclient.Error{Op: "get item", Status: http.StatusNotFound}
}

func (f *fakeAPI) CreateItem(_ context.Context, projectID int64, fields models.ItemFields) (models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateItem")
	f.nextID++
	it := models.Item{
		ID: f.nextID, ProjectID: projectID, ColumnID: fields.ColumnID, Status: fields.Status,
		Type: fields.Type, Title: fields.Title, AssigneeID: fields.AssigneeID, ParentID: fields.ParentID,
		ReporterID: f.user.ID, Priority: fields.Priority,
	}
	f.items = append(f.items, it)
	return it, nil
}

func (f *fakeAPI) DeleteItem(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("DeleteItem")
	for i, it := range f.items {
		if it.ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return &apiclient.Error{Op: "delete item", Status: http.StatusNotFound}
}

func (f *fakeAPI) ListMembers(context.Context, int64) ([]models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Member(nil), f.members...), nil
}

func (f *fakeAPI) ListSubtasks(_ context.Context, itemID int64) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, it := range f.items {
		if it.ParentID != nil && *it.ParentID == itemID {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) ListComments(_ context.Context, itemID int64) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Comment
	for _, c := range f.comments {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateComment(_ context.Context, itemID int64, content string) (models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateComment")
	f.nextID++
	c := models.Comment{ID: f.nextID, ItemID: itemID, AuthorID: f.user.ID, Content: content}
	f.comments = append(f.comments, c)
	return c, nil
}

func (f *fakeAPI) UpdateComment(_ context.Context, commentID int64, content string) (models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("UpdateComment")
	for i, c := range f.comments {
		if c.ID == commentID {
			f.comments[i].Content = content
			return f.comments[i], nil
		}
	}
	return models.Comment{}, &apiclient.Error{Op: "update comment", Status: http.StatusNotFound}
}

func (f *fakeAPI) GetCurrentUser(context.Context) (models.User, error) {
	return f.user, nil
}

func (f *fakeAPI) GetProject(context.Context, int64) (models.Project, error) {
	return f.project, nil
}

func ptr(v int64) *int64 { return &v }

// seeded returns an API with the default columns and one task T1 in todo
// reported by user 2.
func seeded(userID int64) *fakeAPI {
	f := newFakeAPI(userID)
	f.columns = []models.Column{
		{ID: 10, ProjectID: 1, Name: "To Do", Status: "todo", Order: 1},
		{ID: 20, ProjectID: 1, Name: "Done", Status: "done", Order: 2},
	}
	f.items = []models.Item{
		{ID: 1, ProjectID: 1, ColumnID: 10, Status: "todo", Type: models.TypeTask, Title: "T1", ReporterID: 2},
	}
	return f
}

func open(t *testing.T, api *fakeAPI) *Session {
	t.Helper()
	s, err := Open(context.Background(), api, 1, Config{Drag: drag.Config{RollbackHold: -1}}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestOpenProvisionsEmptyProject(t *testing.T) {
	api := newFakeAPI(1)
	s := open(t, api)

	assert.Equal(t, 4, api.count("CreateColumn"))
	assert.Equal(t, []string{"todo", "inprogress", "inreview", "done"}, s.Board().Keys)
	assert.Equal(t, 1, api.count("ListItems"))
}

func TestOwnerMovesItem(t *testing.T) {
	api := seeded(1)
	s := open(t, api)

	assert.True(t, s.CanDrag(1))
	assert.Equal(t, perm.ReasonOwner, s.Permissions(1).Reason)

	out, err := s.Move(context.Background(), 1, "done")
	require.NoError(t, err)
	assert.Equal(t, drag.Committed, out.Result)

	v := s.Board()
	assert.Empty(t, v.Lane("todo"))
	require.Len(t, v.Lane("done"), 1)
	assert.Equal(t, int64(20), v.Lane("done")[0].ColumnID)
	assert.Equal(t, 1, api.count("UpdateItem"))
}

func TestViewerCannotDrag(t *testing.T) {
	api := seeded(3)
	s := open(t, api)

	assert.False(t, s.CanDrag(1))
	assert.False(t, s.Permissions(1).Can(perm.MoveColumn))
	_, err := s.Move(context.Background(), 1, "done")
	require.ErrorIs(t, err, drag.ErrNotPermitted)

	title := "renamed"
	_, err = s.UpdateItem(context.Background(), 1, models.ItemPatch{Title: &title})
	require.ErrorIs(t, err, ErrNotPermitted)
	require.ErrorIs(t, s.DeleteItem(context.Background(), 1), ErrNotPermitted)
	_, err = s.CreateItem(context.Background(), models.ItemFields{Title: "x"})
	require.ErrorIs(t, err, ErrNotPermitted)

	assert.Zero(t, api.count("UpdateItem"))
	assert.Zero(t, api.count("DeleteItem"))
	assert.Zero(t, api.count("CreateItem"))
}

func TestReporterMayEditOwnTaskOnly(t *testing.T) {
	api := seeded(2)
	api.items = append(api.items, models.Item{ID: 2, ProjectID: 1, ColumnID: 10, Status: "todo", Type: models.TypeTask, Title: "T2", ReporterID: 4})
	s := open(t, api)

	assert.Equal(t, perm.ReasonReporter, s.Permissions(1).Reason)
	assert.True(t, s.CanDrag(1))
	assert.False(t, s.CanDrag(2))
}

func TestUpdateItemDerivesColumnFromStatus(t *testing.T) {
	api := seeded(1)
	s := open(t, api)

	status := "done"
	it, err := s.UpdateItem(context.Background(), 1, models.ItemPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(20), it.ColumnID)
	assert.Equal(t, []int64{1}, []int64{s.Board().Lane("done")[0].ID})

	col := int64(10)
	it, err = s.UpdateItem(context.Background(), 1, models.ItemPatch{ColumnID: &col})
	require.NoError(t, err)
	assert.Equal(t, "todo", it.Status)

	bad := "archived"
	_, err = s.UpdateItem(context.Background(), 1, models.ItemPatch{Status: &bad})
	require.ErrorIs(t, err, apiclient.ErrValidation)
}

func TestUpdateItemRejectsNonMemberAssignee(t *testing.T) {
	api := seeded(1)
	s := open(t, api)

	_, err := s.UpdateItem(context.Background(), 1, models.ItemPatch{AssigneeID: ptr(77)})
	require.ErrorIs(t, err, ErrNotMember)
	assert.Zero(t, api.count("UpdateItem"))

	it, err := s.UpdateItem(context.Background(), 1, models.ItemPatch{AssigneeID: ptr(2)})
	require.NoError(t, err)
	require.NotNil(t, it.AssigneeID)
	assert.Equal(t, int64(2), *it.AssigneeID)
}

func TestUpdateItemClearsAssignee(t *testing.T) {
	api := seeded(1)
	api.items[0].AssigneeID = ptr(2)
	s := open(t, api)

	_, err := s.UpdateItem(context.Background(), 1, models.ItemPatch{Unassign: true, AssigneeID: ptr(2)})
	require.ErrorIs(t, err, apiclient.ErrValidation)
	assert.Zero(t, api.count("UpdateItem"))

	it, err := s.UpdateItem(context.Background(), 1, models.ItemPatch{Unassign: true})
	require.NoError(t, err)
	assert.Nil(t, it.AssigneeID)
	assert.Nil(t, s.Board().Lane("todo")[0].AssigneeID)
}

func TestCreateItemDefaultsToFirstColumn(t *testing.T) {
	api := seeded(2)
	s := open(t, api)

	it, err := s.CreateItem(context.Background(), models.ItemFields{Title: "  new  "})
	require.NoError(t, err)
	assert.Equal(t, "todo", it.Status)
	assert.Equal(t, int64(10), it.ColumnID)
	assert.Equal(t, "new", it.Title)
	assert.Equal(t, models.TypeTask, it.Type)
	assert.Len(t, s.Board().Lane("todo"), 2)

	_, err = s.CreateItem(context.Background(), models.ItemFields{Title: " "})
	require.ErrorIs(t, err, apiclient.ErrValidation)
	_, err = s.CreateItem(context.Background(), models.ItemFields{Title: "x", Priority: "Urgent"})
	require.ErrorIs(t, err, apiclient.ErrValidation)
	_, err = s.CreateItem(context.Background(), models.ItemFields{Title: "x", DueDate: "tomorrow"})
	require.ErrorIs(t, err, apiclient.ErrValidation)
}

func TestAuthorizationFailureMakesSessionReadOnly(t *testing.T) {
	api := seeded(1)
	s := open(t, api)
	api.mu.Lock()
	api.updateErr = &apiclient.Error{Op: "update item", Status: http.StatusUnauthorized}
	api.mu.Unlock()

	out, err := s.Move(context.Background(), 1, "done")
	require.NoError(t, err)
	assert.Equal(t, drag.Reverted, out.Result)
	assert.True(t, s.Revoked())
	assert.Equal(t, []int64{1}, []int64{s.Board().Lane("todo")[0].ID})
	assert.False(t, s.Board().Optimistic)

	assert.False(t, s.CanDrag(1))
	assert.Equal(t, perm.None, s.Permissions(1).Actions)
	_, err = s.CreateItem(context.Background(), models.ItemFields{Title: "x"})
	require.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, 1, api.count("UpdateItem"))
}

func TestTransientFailureRollsBack(t *testing.T) {
	api := seeded(1)
	s := open(t, api)
	before := s.Board()
	api.mu.Lock()
	api.updateErr = &apiclient.Error{Op: "update item", Status: http.StatusInternalServerError}
	api.mu.Unlock()

	out, err := s.Move(context.Background(), 1, "done")
	require.NoError(t, err)
	assert.Equal(t, drag.Reverted, out.Result)
	assert.NotEmpty(t, out.Notice)
	assert.False(t, s.Revoked())
	assert.Eventually(t, func() bool { return s.DragState() == drag.Idle }, time.Second, time.Millisecond)
	assert.True(t, before.Equal(s.Board().Snapshot))
}

func TestSubtasksAndEpic(t *testing.T) {
	api := seeded(1)
	api.items = append(api.items, models.Item{ID: 5, ProjectID: 1, ColumnID: 10, Status: "todo", Type: models.TypeEpic, Title: "E"})
	s := open(t, api)

	_, err := s.CreateSubtask(context.Background(), 1, models.ItemFields{Title: "child of task"})
	require.ErrorIs(t, err, models.ErrParentNotEpic)

	sub, err := s.CreateSubtask(context.Background(), 5, models.ItemFields{Title: "child"})
	require.NoError(t, err)
	require.True(t, sub.IsSubtask())

	subs, err := s.Subtasks(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	epic, err := s.Epic(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, int64(5), epic.ID)
	require.Len(t, epic.Subtasks, 1)
	assert.Equal(t, "child", epic.Subtasks[0].Title)

	_, err = s.Epic(context.Background(), epic)
	require.ErrorIs(t, err, ErrNoParent)
}

func TestCommentEditIsAuthorOnly(t *testing.T) {
	api := seeded(1)
	api.comments = []models.Comment{{ID: 50, ItemID: 1, AuthorID: 2, Content: "theirs"}}
	s := open(t, api)

	mine, err := s.AddComment(context.Background(), 1, "mine")
	require.NoError(t, err)
	_, err = s.EditComment(context.Background(), mine, "edited")
	require.NoError(t, err)

	// The project owner still cannot edit another user's comment.
	_, err = s.EditComment(context.Background(), api.comments[0], "hijack")
	require.ErrorIs(t, err, ErrNotPermitted)

	cs, err := s.Comments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "theirs", cs[0].Content)
	assert.Equal(t, "edited", cs[1].Content)
	assert.Equal(t, 1, api.count("UpdateComment"))
}

func TestProjectPermissions(t *testing.T) {
	assert.True(t, open(t, seeded(1)).ProjectPermissions().Can(perm.DeleteProject))
	assert.True(t, open(t, seeded(4)).ProjectPermissions().Can(perm.ManageMembers))
	assert.False(t, open(t, seeded(2)).ProjectPermissions().Can(perm.ManageMembers))
	assert.False(t, open(t, seeded(3)).ProjectPermissions().Can(perm.CreateItem))
}

func TestReloadPicksUpMembersAndColumns(t *testing.T) {
	api := seeded(5)
	s := open(t, api)
	assert.Empty(t, s.Role())
	assert.False(t, s.ProjectPermissions().Can(perm.CreateItem))

	api.mu.Lock()
	api.members = append(api.members, models.Member{ProjectID: 1, UserID: 5, Role: models.RoleMember})
	api.columns = append(api.columns, models.Column{ID: 30, ProjectID: 1, Name: "Archive", Order: 3})
	api.items = append(api.items, models.Item{ID: 2, ProjectID: 1, ColumnID: 30, Status: "archive", Type: models.TypeTask, Title: "old"})
	api.mu.Unlock()

	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, models.RoleMember, s.Role())
	assert.True(t, s.ProjectPermissions().Can(perm.CreateItem))
	assert.Equal(t, []string{"todo", "done", "archive"}, s.Board().Keys)
	require.Len(t, s.Board().Lane("archive"), 1)
	assert.Zero(t, api.count("CreateColumn"))
}
