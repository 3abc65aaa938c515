package memory

import (
	"fmt"
	"sort"

	"probikes/pkg/domain"
)

// UpsertReminders merges each candidate onto the existing reminder with the
// same bike and component, keeping that reminder's id, or inserts it with a
// fresh id. Candidates are applied in order, so a later candidate in the batch
// merges onto an earlier one with the same key.
func (tx *transaction) UpsertReminders(batch []domain.Reminder) ([]domain.Reminder, error) {
	stored := make([]domain.Reminder, 0, len(batch))
	for _, candidate := range batch {
		key := domain.ComponentKey(candidate.Component)
		if key == "" {
			return nil, fmt.Errorf("%w: reminder component is required", domain.ErrInvalidInput)
		}
		i := tx.findReminderByKey(candidate.BikeID, key)
		if i >= 0 {
			before := domain.CloneReminder(tx.state.Reminders[i])
			merged := mergeReminder(before, candidate)
			tx.state.Reminders[i] = merged
			tx.recordChange(domain.EntityReminder, domain.ActionUpdate, reminderIDString(merged.ID), before, merged)
			stored = append(stored, domain.CloneReminder(merged))
			continue
		}
		created := domain.CloneReminder(candidate)
		created.ID = tx.newReminderID()
		tx.state.Reminders = append(tx.state.Reminders, created)
		tx.recordChange(domain.EntityReminder, domain.ActionCreate, reminderIDString(created.ID), nil, created)
		stored = append(stored, domain.CloneReminder(created))
	}
	return stored, nil
}

func (tx *transaction) findReminderByKey(bikeID int64, key string) int {
	for i, r := range tx.state.Reminders {
		if r.BikeID == bikeID && domain.ComponentKey(r.Component) == key {
			return i
		}
	}
	return -1
}

// mergeReminder overlays the fields set on candidate onto existing.
func mergeReminder(existing, candidate domain.Reminder) domain.Reminder {
	merged := existing
	if candidate.ClientID != 0 {
		merged.ClientID = candidate.ClientID
	}
	merged.BikeID = candidate.BikeID
	merged.Component = candidate.Component
	if candidate.DueDate != "" {
		merged.DueDate = candidate.DueDate
	}
	if candidate.AssignedDate != "" {
		merged.AssignedDate = candidate.AssignedDate
	}
	if candidate.CurrentHealth != nil {
		h := *candidate.CurrentHealth
		merged.CurrentHealth = &h
	}
	if candidate.Status != "" {
		merged.Status = candidate.Status
	}
	return merged
}

// newReminderID returns the transaction time in milliseconds plus a random
// fraction, retrying on the unlikely collision with an existing id.
func (tx *transaction) newReminderID() float64 {
	base := float64(tx.now.UnixMilli())
	for {
		id := base + tx.store.randFn()
		if reminderIndex(&tx.state, id) < 0 {
			return id
		}
		base++
	}
}

// DeduplicateReminders collapses the bike's reminders so that one remains per
// component, keeping the most recently assigned (then highest id). It reports
// whether anything was removed.
func (tx *transaction) DeduplicateReminders(bikeID int64) bool {
	groups := make(map[string][]int)
	var order []string
	for i, r := range tx.state.Reminders {
		if r.BikeID != bikeID {
			continue
		}
		key := domain.ComponentKey(r.Component)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	losers := make(map[int]bool)
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		tx.sortNewestFirst(group)
		for _, i := range group[1:] {
			losers[i] = true
		}
	}
	if len(losers) == 0 {
		return false
	}
	for i := len(tx.state.Reminders) - 1; i >= 0; i-- {
		if losers[i] {
			tx.removeReminderAt(i)
		}
	}
	return true
}

func (tx *transaction) sortNewestFirst(indices []int) {
	reminders := tx.state.Reminders
	sort.SliceStable(indices, func(a, b int) bool {
		ra, rb := reminders[indices[a]], reminders[indices[b]]
		ta := domain.TimestampMillis(ra.AssignedDate)
		tb := domain.TimestampMillis(rb.AssignedDate)
		if ta != tb {
			return ta > tb
		}
		return ra.ID > rb.ID
	})
}
