package board

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"boardsync/internal/models"
)

var (
	// ErrUnknownColumn is returned when a move names a column the board does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrItemNotFound is returned when the moved item is not in its source column.
	ErrItemNotFound = errors.New("item not on board")
	// ErrSameColumn is returned when source and destination are the same column.
	ErrSameColumn = errors.New("source and destination column are the same")
)

// Move describes one optimistic column change.
type Move struct {
	ItemID     int64
	From       string
	To         string
	ToColumnID int64
}

// View is what the board currently renders.
type View struct {
	Snapshot
	// Optimistic is set while an unconfirmed overlay is shown.
	Optimistic bool `json:"optimistic"`
	// Dropped counts authoritative items whose status matched no column.
	Dropped int `json:"dropped"`
}

// Store owns the Board View Model. The authoritative layer is replaced only
// by ReplaceWithAuthoritative; the optimistic overlay is set by
// ApplyOptimistic and Restore and cleared by ClearOverlay or a replace.
type Store struct {
	mu            sync.RWMutex
	columns       []models.Column
	items         []models.Item
	authoritative Snapshot
	overlay       *Snapshot
	dropped       int
	listeners     []func(View)
	logger        *slog.Logger
}

// NewStore builds an empty board for the given ordered columns.
func NewStore(columns []models.Column, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger}
	s.columns = append([]models.Column(nil), columns...)
	s.authoritative = newSnapshot(columnKeys(s.columns))
	return s
}

func columnKeys(cols []models.Column) []string {
	keys := make([]string, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, c.Status)
	}
	return keys
}

// OnChange registers fn to be called with the new view after every mutation.
// fn runs on the goroutine that made the change, which may be a timer
// goroutine clearing a rollback, so it must do its own locking. The drag
// coordinator may hold its lock during the call; fn must not call into it.
func (s *Store) OnChange(fn func(View)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Columns returns the board columns in display order.
func (s *Store) Columns() []models.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Column(nil), s.columns...)
}

// Column returns the column with the given status key.
func (s *Store) Column(key string) (models.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.columns {
		if c.Status == key {
			return c, true
		}
	}
	return models.Column{}, false
}

// View returns a copy of the snapshot currently rendered.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Store) viewLocked() View {
	if s.overlay != nil {
		return View{Snapshot: s.overlay.Clone(), Optimistic: true, Dropped: s.dropped}
	}
	return View{Snapshot: s.authoritative.Clone(), Dropped: s.dropped}
}

// Authoritative returns a copy of the last server-confirmed snapshot.
func (s *Store) Authoritative() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authoritative.Clone()
}

// Optimistic reports whether an overlay is pending.
func (s *Store) Optimistic() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlay != nil
}

// Locate finds the column currently showing the item.
func (s *Store) Locate(itemID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, _, ok := s.visibleLocked().Locate(itemID)
	return key, ok
}

// Item returns the visible copy of an item.
func (s *Store) Item(itemID int64) (models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.visibleLocked()
	key, idx, ok := snap.Locate(itemID)
	if !ok {
		return models.Item{}, false
	}
	return snap.Lanes[key][idx].Clone(), true
}

func (s *Store) visibleLocked() *Snapshot {
	if s.overlay != nil {
		return s.overlay
	}
	return &s.authoritative
}

// SetColumns replaces the column set and regroups the last authoritative
// items against it. Any overlay is discarded.
func (s *Store) SetColumns(columns []models.Column) {
	s.mu.Lock()
	s.columns = append([]models.Column(nil), columns...)
	s.regroupLocked()
	s.overlay = nil
	view := s.viewLocked()
	listeners := s.listeners
	s.mu.Unlock()
	notify(listeners, view)
}

// ApplyOptimistic moves an item between columns in a new overlay built on
// top of the visible snapshot and returns the snapshot visible before the
// move. A pending overlay is superseded.
func (s *Store) ApplyOptimistic(m Move) (Snapshot, error) {
	s.mu.Lock()
	cur := s.visibleLocked()
	if !cur.HasColumn(m.From) {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("source %q: %w", m.From, ErrUnknownColumn)
	}
	if !cur.HasColumn(m.To) {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("destination %q: %w", m.To, ErrUnknownColumn)
	}
	if m.From == m.To {
		s.mu.Unlock()
		return Snapshot{}, ErrSameColumn
	}
	idx := -1
	for i, it := range cur.Lanes[m.From] {
		if it.ID == m.ItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("item %d in %q: %w", m.ItemID, m.From, ErrItemNotFound)
	}

	prev := cur.Clone()
	next := cur.Clone()
	moved := next.Lanes[m.From][idx]
	next.Lanes[m.From] = append(next.Lanes[m.From][:idx:idx], next.Lanes[m.From][idx+1:]...)
	moved.Status = m.To
	moved.ColumnID = m.ToColumnID
	next.Lanes[m.To] = append([]models.Item{moved}, next.Lanes[m.To]...)
	s.overlay = &next

	view := s.viewLocked()
	listeners := s.listeners
	s.mu.Unlock()

	s.logger.Debug("board optimistic move", slog.Int64("item", m.ItemID), slog.String("from", m.From), slog.String("to", m.To))
	notify(listeners, view)
	return prev, nil
}

// Restore shows snap as the overlay. It is used to put a pre-drag snapshot
// back on screen while a rollback is displayed.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	cp := snap.Clone()
	s.overlay = &cp
	view := s.viewLocked()
	listeners := s.listeners
	s.mu.Unlock()
	notify(listeners, view)
}

// ClearOverlay drops any pending overlay so the authoritative snapshot shows.
func (s *Store) ClearOverlay() {
	s.mu.Lock()
	if s.overlay == nil {
		s.mu.Unlock()
		return
	}
	s.overlay = nil
	view := s.viewLocked()
	listeners := s.listeners
	s.mu.Unlock()
	notify(listeners, view)
}

// ReplaceWithAuthoritative regroups the full item list of the project by
// status and discards the overlay. Items whose status matches no column are
// left off the board.
func (s *Store) ReplaceWithAuthoritative(items []models.Item) {
	s.mu.Lock()
	s.items = make([]models.Item, len(items))
	for i, it := range items {
		s.items[i] = it.Clone()
	}
	s.regroupLocked()
	s.overlay = nil
	view := s.viewLocked()
	listeners := s.listeners
	dropped := s.dropped
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("items with unknown status left off the board", slog.Int("count", dropped))
	}
	notify(listeners, view)
}

func (s *Store) regroupLocked() {
	snap := newSnapshot(columnKeys(s.columns))
	dropped := 0
	for _, it := range s.items {
		lane, ok := snap.Lanes[it.Status]
		if !ok {
			dropped++
			continue
		}
		snap.Lanes[it.Status] = append(lane, it.Clone())
	}
	s.authoritative = snap
	s.dropped = dropped
}

func notify(listeners []func(View), v View) {
	for _, fn := range listeners {
		fn(v)
	}
}
