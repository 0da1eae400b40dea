package board

import (
	"reflect"

	"boardsync/internal/models"
)

// Snapshot is one layer of the Board View Model: column status keys in
// display order and the items believed to be in each column.
type Snapshot struct {
	Keys  []string                 `json:"keys"`
	Lanes map[string][]models.Item `json:"lanes"`
}

func newSnapshot(keys []string) Snapshot {
	s := Snapshot{Keys: append([]string(nil), keys...), Lanes: make(map[string][]models.Item, len(keys))}
	for _, k := range keys {
		s.Lanes[k] = []models.Item{}
	}
	return s
}

// Clone returns a deep copy that shares nothing with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Keys: append([]string(nil), s.Keys...), Lanes: make(map[string][]models.Item, len(s.Lanes))}
	for k, lane := range s.Lanes {
		cp := make([]models.Item, len(lane))
		for i, it := range lane {
			cp[i] = it.Clone()
		}
		out.Lanes[k] = cp
	}
	return out
}

// Equal reports whether both snapshots hold the same columns and items in
// the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	if !reflect.DeepEqual(s.Keys, o.Keys) || len(s.Lanes) != len(o.Lanes) {
		return false
	}
	for k, lane := range s.Lanes {
		other, ok := o.Lanes[k]
		if !ok || len(lane) != len(other) {
			return false
		}
		for i := range lane {
			if !reflect.DeepEqual(lane[i], other[i]) {
				return false
			}
		}
	}
	return true
}

// Lane returns the items of a column; unknown keys yield nil.
func (s Snapshot) Lane(key string) []models.Item {
	return s.Lanes[key]
}

// HasColumn reports whether key is a column of the snapshot.
func (s Snapshot) HasColumn(key string) bool {
	_, ok := s.Lanes[key]
	return ok
}

// Locate finds the column and index of an item by linear scan.
func (s Snapshot) Locate(itemID int64) (key string, index int, ok bool) {
	for _, k := range s.Keys {
		for i, it := range s.Lanes[k] {
			if it.ID == itemID {
				return k, i, true
			}
		}
	}
	return "", -1, false
}

// Len returns the number of items on the board.
func (s Snapshot) Len() int {
	n := 0
	for _, lane := range s.Lanes {
		n += len(lane)
	}
	return n
}

// Consistent reports whether every item's status matches its column key.
func (s Snapshot) Consistent() bool {
	for k, lane := range s.Lanes {
		for _, it := range lane {
			if it.Status != k {
				return false
			}
		}
	}
	return true
}
