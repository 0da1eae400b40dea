package drag

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/apiclient"
	"boardsync/internal/board"
	"boardsync/internal/idempotency"
	"boardsync/internal/models"
	"boardsync/internal/perm"
	"boardsync/internal/reconcile"
)

// fakeServer keeps the authoritative items and counts updates.
type fakeServer struct {
	mu      sync.Mutex
	items   []models.Item
	updates []models.ItemPatch
	keys    []string
	err     error
	block   chan struct{}
	lists   int
}

func (f *fakeServer) UpdateItem(ctx context.Context, itemID int64, patch models.ItemPatch) (models.Item, error) {
	f.mu.Lock()
	f.updates = append(f.updates, patch)
	key, _ := idempotency.Key(ctx)
	f.keys = append(f.keys, key)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.Item{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Item{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID == itemID {
			f.items[i] = patch.Apply(it)
			return f.items[i], nil
		}
	}
	return models.Item{}, &apiclient.Error{Op: "update item", Status: http.StatusNotFound}
}

func (f *fakeServer) ListItems(context.Context, int64, models.ItemType) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := make([]models.Item, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeServer) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fixture struct {
	server *fakeServer
	store  *board.Store
	recon  *reconcile.Controller
	coord  *Coordinator
}

func newFixture(t *testing.T, guard Guard, cfg Config) *fixture {
	t.Helper()
	server := &fakeServer{items: []models.Item{
		{ID: 1, ProjectID: 1, Status: "todo", ColumnID: 10, Type: models.TypeTask, Title: "T1", ReporterID: 5},
	}}
	store := board.NewStore([]models.Column{
		{ID: 10, ProjectID: 1, Name: "To Do", Status: "todo", Order: 1},
		{ID: 20, ProjectID: 1, Name: "Done", Status: "done", Order: 2},
	}, nil)
	recon := reconcile.New(server, store, 1, nil)
	require.NoError(t, recon.Refresh(context.Background(), reconcile.TriggerSelect))

	coord := New(store, server, recon, guard, cfg, nil)
	recon.SetGate(coord.InFlight)
	t.Cleanup(coord.Close)
	return &fixture{server: server, store: store, recon: recon, coord: coord}
}

func laneIDs(v board.View, key string) []int64 {
	out := []int64{}
	for _, it := range v.Lane(key) {
		out = append(out, it.ID)
	}
	return out
}

func TestDragSettles(t *testing.T) {
	f := newFixture(t, nil, Config{})
	var seen []board.View
	f.store.OnChange(func(v board.View) { seen = append(seen, v) })

	require.NoError(t, f.coord.Begin(1))
	assert.Equal(t, Dragging, f.coord.State())

	out, err := f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	assert.Equal(t, Committed, out.Result)
	assert.NoError(t, out.Err)
	assert.Equal(t, "todo", out.From)
	assert.Equal(t, "done", out.To)

	// The optimistic view came first.
	require.NotEmpty(t, seen)
	assert.True(t, seen[0].Optimistic)
	assert.Empty(t, laneIDs(seen[0], "todo"))
	assert.Equal(t, []int64{1}, laneIDs(seen[0], "done"))
	assert.Equal(t, "done", seen[0].Lane("done")[0].Status)

	v := f.store.View()
	assert.False(t, v.Optimistic)
	assert.Empty(t, laneIDs(v, "todo"))
	assert.Equal(t, []int64{1}, laneIDs(v, "done"))
	assert.True(t, v.Consistent())

	assert.Equal(t, Idle, f.coord.State())
	assert.False(t, f.coord.Syncing())
	require.Len(t, f.server.updates, 1)
	assert.Equal(t, "done", *f.server.updates[0].Status)
	assert.Equal(t, int64(20), *f.server.updates[0].ColumnID)
	assert.Equal(t, out.Key, f.server.keys[0])
	assert.NotEmpty(t, out.Key)
}

func TestDragRollsBackOnServerError(t *testing.T) {
	f := newFixture(t, nil, Config{RollbackHold: 30 * time.Millisecond})
	before := f.store.View()
	f.server.err = &apiclient.Error{Op: "update item", Status: http.StatusInternalServerError}

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	assert.Equal(t, Reverted, out.Result)
	assert.Error(t, out.Err)
	assert.NotEmpty(t, out.Notice)

	// The pre-drag board is shown while the rollback is held.
	v := f.store.View()
	assert.True(t, before.Equal(v.Snapshot))
	assert.Equal(t, []int64{1}, laneIDs(v, "todo"))
	assert.Equal(t, RolledBack, f.coord.State())
	assert.True(t, f.coord.InFlight())

	require.Eventually(t, func() bool { return f.coord.State() == Idle }, time.Second, 5*time.Millisecond)
	v = f.store.View()
	assert.False(t, v.Optimistic)
	assert.True(t, before.Equal(v.Snapshot))
	assert.Equal(t, 1, f.server.updateCount(), "failed moves are not retried")
}

func TestRollbackHoldExpiryNotifiesListeners(t *testing.T) {
	f := newFixture(t, nil, Config{RollbackHold: 20 * time.Millisecond})
	f.server.err = &apiclient.Error{Op: "update item", Status: http.StatusBadGateway}

	var mu sync.Mutex
	var seen []bool
	f.store.OnChange(func(v board.View) {
		mu.Lock()
		seen = append(seen, v.Optimistic)
		mu.Unlock()
	})

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	require.Equal(t, Reverted, out.Result)

	// apply, restore, then the timer clears the overlay
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, true, false}, seen)
}

func TestDragAuthorizationFailureRollsBackImmediately(t *testing.T) {
	f := newFixture(t, nil, Config{RollbackHold: time.Hour})
	f.server.err = &apiclient.Error{Op: "update item", Status: http.StatusForbidden}
	var authErr error
	f.coord.OnAuthError(func(err error) { authErr = err })

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	assert.Equal(t, Reverted, out.Result)
	assert.Equal(t, Idle, f.coord.State())
	assert.False(t, f.store.View().Optimistic)
	assert.Equal(t, []int64{1}, laneIDs(f.store.View(), "todo"))
	assert.ErrorIs(t, authErr, apiclient.ErrUnauthorized)
}

func TestDragDeniedByPermission(t *testing.T) {
	viewer := perm.Subject{User: models.User{ID: 99}, Project: models.Project{ID: 1, OwnerID: 2}, Role: models.RoleViewer}
	guard := func(it models.Item) bool { return perm.Evaluate(viewer, &it).Can(perm.MoveColumn) }
	f := newFixture(t, guard, Config{})

	assert.False(t, f.coord.CanDrag(1))
	err := f.coord.Begin(1)
	require.ErrorIs(t, err, ErrNotPermitted)
	assert.Equal(t, Idle, f.coord.State())
	assert.Zero(t, f.server.updateCount())
}

func TestDragRejectsSecondDragWhileResolving(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.server.items = append(f.server.items, models.Item{ID: 2, ProjectID: 1, Status: "todo", ColumnID: 10})
	require.NoError(t, f.recon.Refresh(context.Background(), reconcile.TriggerManual))
	f.server.block = make(chan struct{})

	require.NoError(t, f.coord.Begin(1))
	done := make(chan Outcome, 1)
	go func() {
		out, _ := f.coord.Drop(context.Background(), ToColumn("done"))
		done <- out
	}()
	require.Eventually(t, func() bool { return f.coord.State() == Resolving }, time.Second, time.Millisecond)

	assert.ErrorIs(t, f.coord.Begin(2), ErrBusy)
	assert.False(t, f.coord.CanDrag(2))
	assert.ErrorIs(t, f.recon.Refresh(context.Background(), reconcile.TriggerPoll), reconcile.ErrGated)

	close(f.server.block)
	out := <-done
	assert.Equal(t, Committed, out.Result)
	assert.True(t, f.coord.CanDrag(2))
	assert.Equal(t, 1, f.server.updateCount())
}

func TestDropOnSameColumnAborts(t *testing.T) {
	f := newFixture(t, nil, Config{})

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), ToColumn("todo"))
	require.NoError(t, err)
	assert.Equal(t, Aborted, out.Result)

	require.NoError(t, f.coord.Begin(1))
	out, err = f.coord.Drop(context.Background(), ToColumn("archived"))
	require.NoError(t, err)
	assert.Equal(t, Aborted, out.Result)

	require.NoError(t, f.coord.Begin(1))
	out, err = f.coord.Drop(context.Background(), OnCard(1))
	require.NoError(t, err)
	assert.Equal(t, Aborted, out.Result)

	assert.Zero(t, f.server.updateCount())
	assert.Equal(t, Idle, f.coord.State())
	assert.False(t, f.store.View().Optimistic)
}

func TestDropOnCardUsesItsColumn(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.server.items = append(f.server.items, models.Item{ID: 2, ProjectID: 1, Status: "done", ColumnID: 20})
	require.NoError(t, f.recon.Refresh(context.Background(), reconcile.TriggerManual))

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), OnCard(2))
	require.NoError(t, err)
	assert.Equal(t, Committed, out.Result)
	assert.Equal(t, "done", out.To)
}

func TestDropTimesOut(t *testing.T) {
	f := newFixture(t, nil, Config{MutationTimeout: 20 * time.Millisecond, RollbackHold: -1})
	f.server.block = make(chan struct{})
	defer close(f.server.block)

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	assert.Equal(t, Reverted, out.Result)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Contains(t, out.Notice, "in time")
	assert.Equal(t, Idle, f.coord.State())
	assert.Equal(t, []int64{1}, laneIDs(f.store.View(), "todo"))
}

func TestBeginDuringRollbackSupersedesIt(t *testing.T) {
	f := newFixture(t, nil, Config{RollbackHold: time.Hour})
	f.server.err = errors.New("connection reset")

	require.NoError(t, f.coord.Begin(1))
	out, err := f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	require.Equal(t, Reverted, out.Result)
	require.Equal(t, RolledBack, f.coord.State())

	f.server.err = nil
	require.NoError(t, f.coord.Begin(1))
	assert.False(t, f.store.View().Optimistic)
	out, err = f.coord.Drop(context.Background(), ToColumn("done"))
	require.NoError(t, err)
	assert.Equal(t, Committed, out.Result)
	assert.Equal(t, []int64{1}, laneIDs(f.store.View(), "done"))
	assert.Equal(t, 2, f.server.updateCount())
	assert.NotEqual(t, f.server.keys[0], f.server.keys[1])
}

func TestCancelAndStateErrors(t *testing.T) {
	f := newFixture(t, nil, Config{})

	assert.ErrorIs(t, f.coord.Cancel(), ErrNotDragging)
	_, err := f.coord.Drop(context.Background(), ToColumn("done"))
	assert.ErrorIs(t, err, ErrNotDragging)
	assert.ErrorIs(t, f.coord.Begin(42), ErrItemNotFound)

	require.NoError(t, f.coord.Begin(1))
	require.NoError(t, f.coord.Cancel())
	assert.Equal(t, Idle, f.coord.State())
}

func TestCloseCancelsInFlightUpdate(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.server.block = make(chan struct{})
	defer close(f.server.block)

	require.NoError(t, f.coord.Begin(1))
	done := make(chan Outcome, 1)
	go func() {
		out, _ := f.coord.Drop(context.Background(), ToColumn("done"))
		done <- out
	}()
	require.Eventually(t, func() bool { return f.coord.State() == Resolving }, time.Second, time.Millisecond)

	f.coord.Close()
	select {
	case out := <-done:
		assert.Equal(t, Reverted, out.Result)
		assert.ErrorIs(t, out.Err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("drop did not return after Close")
	}
	assert.False(t, f.store.View().Optimistic)
	assert.ErrorIs(t, f.coord.Begin(1), ErrClosed)
}
