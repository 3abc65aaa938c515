package memory

import (
	"context"
	"errors"
	"testing"

	"probikes/pkg/domain"
)

func healthPtr(v int) *int { return &v }

func TestUpsertRemindersPreservesID(t *testing.T) {
	store := newTestStore(t)
	var first []domain.Reminder
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		first, err = tx.UpsertReminders([]domain.Reminder{{
			ClientID: 1, BikeID: 7, Component: "Cadena", DueDate: "2025-06-01",
			AssignedDate: "2025-03-01T10:00:00.000Z", CurrentHealth: healthPtr(70),
		}})
		return err
	})
	if len(first) != 1 || first[0].ID != float64(fixedNow.UnixMilli())+0.5 {
		t.Fatalf("unexpected created reminder %+v", first)
	}

	var second []domain.Reminder
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		second, err = tx.UpsertReminders([]domain.Reminder{{
			BikeID: 7, Component: "  cadena ", DueDate: "2025-09-01",
			Status: domain.ReminderContacted,
		}})
		return err
	})
	if second[0].ID != first[0].ID {
		t.Fatalf("expected id %v to be kept, got %v", first[0].ID, second[0].ID)
	}
	if second[0].DueDate != "2025-09-01" || second[0].ClientID != 1 || *second[0].CurrentHealth != 70 {
		t.Fatalf("unexpected merge %+v", second[0])
	}
	if len(store.ExportState().Reminders) != 1 {
		t.Fatalf("expected a single reminder")
	}
}

func TestUpsertRemindersMergesWithinBatch(t *testing.T) {
	store := newTestStore(t)
	var stored []domain.Reminder
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		stored, err = tx.UpsertReminders([]domain.Reminder{
			{BikeID: 1, Component: "Frenos", DueDate: "2025-05-01"},
			{BikeID: 1, Component: "frenos", DueDate: "2025-07-01"},
			{BikeID: 2, Component: "Frenos", DueDate: "2025-07-01"},
		})
		return err
	})
	if stored[0].ID != stored[1].ID || stored[2].ID == stored[0].ID {
		t.Fatalf("unexpected ids %v %v %v", stored[0].ID, stored[1].ID, stored[2].ID)
	}
	if got := len(store.ExportState().Reminders); got != 2 {
		t.Fatalf("expected 2 reminders, got %d", got)
	}
}

func TestUpsertRemindersRejectsEmptyComponent(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpsertReminders([]domain.Reminder{{BikeID: 1, Component: "  "}})
		return err
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDeduplicateRemindersKeepsNewest(t *testing.T) {
	store := newTestStore(t)
	store.ImportState(Document{
		SchemaVersion: domain.SchemaVersion,
		Reminders: []domain.Reminder{
			{ID: 1, BikeID: 9, Component: "Cadena", AssignedDate: "2025-01-01T00:00:00.000Z"},
			{ID: 2, BikeID: 9, Component: "cadena", AssignedDate: "2025-02-01T00:00:00.000Z"},
			{ID: 3, BikeID: 9, Component: "CADENA "},
			{ID: 4, BikeID: 9, Component: "Frenos"},
			{ID: 5, BikeID: 10, Component: "Cadena"},
		},
	})
	var removed bool
	mustRun(t, store, func(tx domain.Transaction) error {
		removed = tx.DeduplicateReminders(9)
		return nil
	})
	if !removed {
		t.Fatalf("expected duplicates to be removed")
	}
	reminders := store.ExportState().Reminders
	ids := make(map[float64]bool)
	for _, r := range reminders {
		ids[r.ID] = true
	}
	if len(reminders) != 3 || !ids[2] || !ids[4] || !ids[5] {
		t.Fatalf("unexpected survivors %+v", reminders)
	}
	assertOnePerComponent(t, reminders)
}

func TestDeduplicateRemindersTieBreaksOnID(t *testing.T) {
	store := newTestStore(t)
	store.ImportState(Document{
		SchemaVersion: domain.SchemaVersion,
		Reminders: []domain.Reminder{
			{ID: 10.25, BikeID: 1, Component: "Aceite"},
			{ID: 10.75, BikeID: 1, Component: "aceite"},
			{ID: 10.75, BikeID: 1, Component: "Aceite"},
		},
	})
	mustRun(t, store, func(tx domain.Transaction) error {
		tx.DeduplicateReminders(1)
		return nil
	})
	reminders := store.ExportState().Reminders
	if len(reminders) != 1 || reminders[0].ID != 10.75 {
		t.Fatalf("unexpected survivors %+v", reminders)
	}
}

func TestUpdateAndDeleteReminder(t *testing.T) {
	store := newTestStore(t)
	var created []domain.Reminder
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		created, err = tx.UpsertReminders([]domain.Reminder{{BikeID: 1, Component: "Frenos"}})
		return err
	})
	id := created[0].ID
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateReminder(id, func(r *domain.Reminder) error {
			r.Component = ""
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	mustRun(t, store, func(tx domain.Transaction) error {
		updated, err := tx.UpdateReminder(id, func(r *domain.Reminder) error {
			r.Status = domain.ReminderDismissed
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ID != id || updated.Status != domain.ReminderDismissed {
			t.Fatalf("unexpected update %+v", updated)
		}
		return tx.DeleteReminder(id)
	})
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteReminder(id)
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func assertOnePerComponent(t *testing.T, reminders []domain.Reminder) {
	t.Helper()
	seen := make(map[int64]map[string]bool)
	for _, r := range reminders {
		if seen[r.BikeID] == nil {
			seen[r.BikeID] = make(map[string]bool)
		}
		key := domain.ComponentKey(r.Component)
		if seen[r.BikeID][key] {
			t.Fatalf("duplicate reminder for bike %d component %q", r.BikeID, key)
		}
		seen[r.BikeID][key] = true
	}
}
