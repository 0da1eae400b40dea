// Package drag runs the drag transaction of a card between board columns:
// optimistic apply, a single remote update, then settle or roll back.
package drag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"boardsync/internal/apiclient"
	"boardsync/internal/board"
	"boardsync/internal/idempotency"
	"boardsync/internal/models"
	"boardsync/internal/reconcile"
)

var (
	// ErrBusy is returned when a drag starts while another is active.
	ErrBusy = errors.New("another drag is in progress")
	// ErrItemNotFound is returned when the dragged item is not on the board.
	ErrItemNotFound = errors.New("item not on board")
	// ErrNotPermitted is returned when the user may not move the item.
	ErrNotPermitted = errors.New("not permitted to move item")
	// ErrNotDragging is returned by Drop and Cancel without a drag.
	ErrNotDragging = errors.New("no drag in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator closed")
)

// State of the coordinator.
type State int

const (
	Idle State = iota
	Dragging
	Resolving
	Settled
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Resolving:
		return "resolving"
	case Settled:
		return "settled"
	case RolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is how a drop ended.
type Result int

const (
	// Aborted means no network call was made.
	Aborted Result = iota
	// Committed means the server accepted the move.
	Committed
	// Reverted means the move failed and the board was rolled back.
	Reverted
)

func (r Result) String() string {
	switch r {
	case Aborted:
		return "aborted"
	case Committed:
		return "committed"
	case Reverted:
		return "reverted"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Target is where a card was released: a column, or another card whose
// column is then used.
type Target struct {
	Column string
	ItemID int64
}

// ToColumn targets a column by status key.
func ToColumn(key string) Target { return Target{Column: key} }

// OnCard targets the column of the card with the given id.
func OnCard(itemID int64) Target { return Target{ItemID: itemID} }

// Outcome reports a finished drop.
type Outcome struct {
	Result Result
	ItemID int64
	From   string
	To     string
	// Key is the idempotency key the update carried.
	Key string
	// Err is the mutation error on Reverted, or a failed settle refresh on
	// Committed.
	Err error
	// Notice is a short user-facing message for a reverted move.
	Notice string
}

// Updater sends the item update.
type Updater interface {
	UpdateItem(ctx context.Context, itemID int64, patch models.ItemPatch) (models.Item, error)
}

// Refresher reconciles the board after a successful update.
type Refresher interface {
	Refresh(ctx context.Context, trigger reconcile.Trigger) error
}

// Guard reports whether the current user may move the item.
type Guard func(models.Item) bool

// Config bounds the remote call and the rollback display. Zero fields take
// the defaults; a negative RollbackHold clears a rollback at once.
type Config struct {
	MutationTimeout time.Duration
	RollbackHold    time.Duration
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{MutationTimeout: 10 * time.Second, RollbackHold: time.Second}
}

// Coordinator owns at most one drag transaction at a time. Board listeners
// may run while the coordinator lock is held and must not call back into it.
type Coordinator struct {
	store     *board.Store
	api       Updater
	refresher Refresher
	guard     Guard
	cfg       Config
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	itemID      int64
	from        string
	syncing     bool
	closed      bool
	cancelCall  context.CancelFunc
	hold        *time.Timer
	holdGen     uint64
	onAuthError func(error)
}

// New creates a coordinator. A nil guard permits every move.
func New(store *board.Store, api Updater, refresher Refresher, guard Guard, cfg Config, logger *slog.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.MutationTimeout <= 0 {
		cfg.MutationTimeout = def.MutationTimeout
	}
	switch {
	case cfg.RollbackHold == 0:
		cfg.RollbackHold = def.RollbackHold
	case cfg.RollbackHold < 0:
		cfg.RollbackHold = 0
	}
	if guard == nil {
		guard = func(models.Item) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, api: api, refresher: refresher, guard: guard, cfg: cfg, logger: logger}
}

// OnAuthError registers fn to run when an update fails authorization.
func (c *Coordinator) OnAuthError(fn func(error)) {
	c.mu.Lock()
	c.onAuthError = fn
	c.mu.Unlock()
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Syncing reports whether a settle refresh is running.
func (c *Coordinator) Syncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncing
}

// InFlight reports whether the board is owned by a drag transaction. The
// reconciler skips non-settle refreshes while it is true.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Dragging || c.state == Resolving || c.state == RolledBack
}

// CanDrag reports whether a drag handle should be offered for the item.
func (c *Coordinator) CanDrag(itemID int64) bool {
	c.mu.Lock()
	accepting := !c.closed && (c.state == Idle || c.state == RolledBack)
	c.mu.Unlock()
	if !accepting {
		return false
	}
	it, ok := c.store.Item(itemID)
	return ok && c.guard(it)
}

// Begin starts dragging an item. A rollback still on display is cut short.
func (c *Coordinator) Begin(itemID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != Idle && c.state != RolledBack {
		return ErrBusy
	}

	key, ok := c.store.Locate(itemID)
	if !ok {
		return fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
	}
	it, _ := c.store.Item(itemID)
	if !c.guard(it) {
		return fmt.Errorf("item %d: %w", itemID, ErrNotPermitted)
	}

	if c.state == RolledBack {
		c.stopHoldLocked()
		c.store.ClearOverlay()
		// the item may show elsewhere once the rollback is cleared
		if key, ok = c.store.Locate(itemID); !ok {
			c.state = Idle
			return fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
		}
	}

	c.state = Dragging
	c.itemID = itemID
	c.from = key
	c.logger.Debug("drag started", slog.Int64("item", itemID), slog.String("from", key))
	return nil
}

// Cancel ends a drag released outside any target.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return ErrNotDragging
	}
	c.resetLocked()
	return nil
}

func (c *Coordinator) resetLocked() {
	c.state = Idle
	c.itemID = 0
	c.from = ""
}

func (c *Coordinator) resolveTarget(t Target) (models.Column, bool) {
	key := t.Column
	if key == "" && t.ItemID != 0 {
		k, ok := c.store.Locate(t.ItemID)
		if !ok {
			return models.Column{}, false
		}
		key = k
	}
	if key == "" {
		return models.Column{}, false
	}
	return c.store.Column(key)
}

// Drop releases the dragged card on target. It applies the move locally,
// sends exactly one update and either settles via the refresher or rolls
// the board back. The update is never retried.
func (c *Coordinator) Drop(ctx context.Context, target Target) (Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if c.state != Dragging {
		c.mu.Unlock()
		return Outcome{}, ErrNotDragging
	}
	itemID, from := c.itemID, c.from
	out := Outcome{ItemID: itemID, From: from, Result: Aborted}

	col, ok := c.resolveTarget(target)
	if !ok || col.Status == from {
		c.resetLocked()
		c.mu.Unlock()
		out.To = col.Status
		c.logger.Debug("drop aborted", slog.Int64("item", itemID), slog.String("target", target.Column))
		return out, nil
	}
	out.To = col.Status

	it, ok := c.store.Item(itemID)
	if !ok || !c.guard(it) {
		c.resetLocked()
		c.mu.Unlock()
		if !ok {
			return out, fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
		}
		return out, fmt.Errorf("item %d: %w", itemID, ErrNotPermitted)
	}

	prev, err := c.store.ApplyOptimistic(board.Move{ItemID: itemID, From: from, To: col.Status, ToColumnID: col.ID})
	if err != nil {
		c.resetLocked()
		c.mu.Unlock()
		return out, fmt.Errorf("apply move: %w", err)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.state = Resolving
	c.cancelCall = cancel
	c.mu.Unlock()

	callCtx, key := idempotency.WithNewKey(opCtx)
	callCtx, cancelTimeout := context.WithTimeout(callCtx, c.cfg.MutationTimeout)
	out.Key = key
	_, err = c.api.UpdateItem(callCtx, itemID, models.MovePatch(col.Status, col.ID))
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancelTimeout()

	if err != nil {
		return c.rollback(out, prev, err, timedOut), nil
	}
	return c.settle(opCtx, out), nil
}

func (c *Coordinator) settle(ctx context.Context, out Outcome) Outcome {
	c.mu.Lock()
	c.state = Settled
	c.syncing = true
	c.mu.Unlock()

	out.Result = Committed
	if err := c.refresher.Refresh(ctx, reconcile.TriggerSettle); err != nil {
		// The overlay stays up until the next successful refresh.
		out.Err = fmt.Errorf("settle refresh: %w", err)
		c.logger.Warn("settle refresh failed", slog.Int64("item", out.ItemID), slog.String("error", err.Error()))
	}

	c.mu.Lock()
	c.syncing = false
	c.cancelCall = nil
	c.resetLocked()
	c.mu.Unlock()
	c.logger.Debug("drag settled", slog.Int64("item", out.ItemID), slog.String("to", out.To))
	return out
}

func (c *Coordinator) rollback(out Outcome, prev board.Snapshot, err error, timedOut bool) Outcome {
	out.Result = Reverted
	out.Err = err

	c.mu.Lock()
	c.cancelCall = nil
	if c.closed {
		c.resetLocked()
		c.mu.Unlock()
		c.store.ClearOverlay()
		return out
	}
	c.store.Restore(prev)

	if apiclient.IsAuthorization(err) {
		out.Notice = "not authorized to move this item"
		c.store.ClearOverlay()
		c.resetLocked()
		onAuth := c.onAuthError
		c.mu.Unlock()
		c.logger.Warn("move rejected", slog.Int64("item", out.ItemID), slog.String("error", err.Error()))
		if onAuth != nil {
			onAuth(err)
		}
		return out
	}

	switch {
	case timedOut:
		out.Notice = "the server did not answer in time; the move was undone"
	default:
		out.Notice = "could not save the move; it was undone"
	}
	c.state = RolledBack
	c.startHoldLocked()
	c.mu.Unlock()
	c.logger.Warn("move rolled back", slog.Int64("item", out.ItemID), slog.String("from", out.From), slog.String("to", out.To), slog.String("error", err.Error()))
	return out
}

func (c *Coordinator) startHoldLocked() {
	c.holdGen++
	gen := c.holdGen
	if c.cfg.RollbackHold == 0 {
		c.store.ClearOverlay()
		c.resetLocked()
		return
	}
	c.hold = time.AfterFunc(c.cfg.RollbackHold, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.holdGen || c.state != RolledBack {
			return
		}
		c.hold = nil
		c.store.ClearOverlay()
		c.resetLocked()
	})
}

func (c *Coordinator) stopHoldLocked() {
	c.holdGen++
	if c.hold != nil {
		c.hold.Stop()
		c.hold = nil
	}
}

// Close cancels an in-flight update and any pending rollback display.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopHoldLocked()
	if c.cancelCall != nil {
		c.cancelCall()
	}
	if c.state == Dragging || c.state == RolledBack {
		c.store.ClearOverlay()
		c.resetLocked()
	}
}
