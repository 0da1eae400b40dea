// Package reconcile rebuilds the authoritative board from a full item fetch.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"boardsync/internal/board"
	"boardsync/internal/models"
)

// ErrGated is returned when a refresh was skipped because a drag was in
// flight.
var ErrGated = errors.New("refresh suppressed while a drag is in flight")

// Trigger says why a refresh was requested.
type Trigger int

const (
	TriggerSelect Trigger = iota
	TriggerSettle
	TriggerManual
	TriggerPoll
)

func (t Trigger) String() string {
	switch t {
	case TriggerSelect:
		return "select"
	case TriggerSettle:
		return "settle"
	case TriggerManual:
		return "manual"
	case TriggerPoll:
		return "poll"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// Lister fetches every item of a project.
type Lister interface {
	ListItems(ctx context.Context, projectID int64, itemType models.ItemType) ([]models.Item, error)
}

// Controller performs full-replace reconciliation for one project.
type Controller struct {
	api       Lister
	store     *board.Store
	projectID int64
	logger    *slog.Logger

	// serializes refreshes
	run sync.Mutex

	mu   sync.Mutex
	gate func() bool
	last time.Time
}

// New creates a controller that refreshes store from the items of projectID.
func New(api Lister, store *board.Store, projectID int64, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{api: api, store: store, projectID: projectID, logger: logger}
}

// SetGate installs the in-flight check. While it reports true every refresh
// except TriggerSettle is skipped with ErrGated.
func (c *Controller) SetGate(inFlight func() bool) {
	c.mu.Lock()
	c.gate = inFlight
	c.mu.Unlock()
}

func (c *Controller) gated(trigger Trigger) bool {
	if trigger == TriggerSettle {
		return false
	}
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	return gate != nil && gate()
}

// LastRefresh returns when the board was last replaced.
func (c *Controller) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Refresh fetches the full item list and replaces the board with it. The
// gate is checked before the fetch and again before applying so a response
// never lands on top of a drag that started meanwhile.
func (c *Controller) Refresh(ctx context.Context, trigger Trigger) error {
	c.run.Lock()
	defer c.run.Unlock()

	if c.gated(trigger) {
		c.logger.Debug("refresh gated", slog.String("trigger", trigger.String()))
		return ErrGated
	}

	items, err := c.api.ListItems(ctx, c.projectID, "")
	if err != nil {
		return fmt.Errorf("refresh %s: %w", trigger, err)
	}

	if c.gated(trigger) {
		c.logger.Debug("refresh result discarded", slog.String("trigger", trigger.String()))
		return ErrGated
	}

	c.store.ReplaceWithAuthoritative(items)
	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()
	c.logger.Debug("board refreshed", slog.String("trigger", trigger.String()), slog.Int("items", len(items)))
	return nil
}

// Poll refreshes every interval until ctx is done. Failed and gated polls
// are logged and the loop carries on.
func (c *Controller) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := c.Refresh(ctx, TriggerPoll)
			switch {
			case err == nil, errors.Is(err, ErrGated):
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				c.logger.Warn("poll refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
