package models

import (
	"errors"
	"fmt"
)

// ErrParentNotEpic is returned when a subtask is attached to a non-epic item.
var ErrParentNotEpic = errors.New("parent item is not an epic")

// IsEpic reports whether the item can own subtasks.
func (it Item) IsEpic() bool {
	return it.Type == TypeEpic
}

// IsSubtask reports whether the item hangs below an epic.
func (it Item) IsSubtask() bool {
	return it.ParentID != nil
}

// ValidateParent checks that parent may own subtasks.
func ValidateParent(parent Item) error {
	if !parent.IsEpic() {
		return fmt.Errorf("item %d (%s): %w", parent.ID, parent.Type, ErrParentNotEpic)
	}
	return nil
}

// AttachSubtasks denormalizes the children of epic from items for display.
// Items whose parent is not the epic are ignored; input order is kept.
func AttachSubtasks(epic Item, items []Item) Item {
	out := epic.Clone()
	out.Subtasks = nil
	for _, it := range items {
		if it.ParentID == nil || *it.ParentID != epic.ID {
			continue
		}
		out.Subtasks = append(out.Subtasks, it.Clone())
	}
	return out
}
