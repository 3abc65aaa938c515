package core

import (
	"context"
	"fmt"

	"probikes/pkg/domain"
)

func validateReminder(r domain.Reminder) error {
	if r.BikeID == 0 {
		return fmt.Errorf("%w: reminder bike_id is required", domain.ErrInvalidInput)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown reminder status %q", domain.ErrInvalidInput, r.Status)
	}
	return nil
}

// UpsertReminders merges the batch onto existing reminders keyed by bike and
// component, inserting the rest.
func (s *Service) UpsertReminders(ctx context.Context, batch []domain.Reminder) ([]domain.Reminder, Result, error) {
	var stored []domain.Reminder
	res, err := s.run(ctx, "upsert_reminders", func(tx Transaction) error {
		for _, r := range batch {
			if err := validateReminder(r); err != nil {
				return err
			}
		}
		var err error
		stored, err = tx.UpsertReminders(batch)
		return err
	})
	return stored, res, err
}

// UpdateReminder mutates a reminder.
func (s *Service) UpdateReminder(ctx context.Context, id float64, mutator func(*domain.Reminder) error) (domain.Reminder, Result, error) {
	var updated domain.Reminder
	res, err := s.run(ctx, "update_reminder", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateReminder(id, func(r *domain.Reminder) error {
			if err := mutator(r); err != nil {
				return err
			}
			return validateReminder(*r)
		})
		return err
	})
	return updated, res, err
}

// SetReminderStatus records client follow-up on a reminder.
func (s *Service) SetReminderStatus(ctx context.Context, id float64, status domain.ReminderStatus) (domain.Reminder, Result, error) {
	return s.UpdateReminder(ctx, id, func(r *domain.Reminder) error {
		r.Status = status
		return nil
	})
}

// DeleteReminder removes a reminder.
func (s *Service) DeleteReminder(ctx context.Context, id float64) (Result, error) {
	return s.run(ctx, "delete_reminder", func(tx Transaction) error {
		return tx.DeleteReminder(id)
	})
}

// GetReminder returns a reminder by id.
func (s *Service) GetReminder(ctx context.Context, id float64) (domain.Reminder, error) {
	var reminder domain.Reminder
	err := s.read(ctx, "get_reminder", func(view TransactionView) error {
		r, ok := view.FindReminder(id)
		if !ok {
			return domain.NotFound(domain.EntityReminder, id)
		}
		reminder = r
		return nil
	})
	return reminder, err
}

// DeduplicateBikeReminders collapses duplicate components on a bike and
// reports whether anything was removed.
func (s *Service) DeduplicateBikeReminders(ctx context.Context, bikeID int64) (bool, error) {
	var changed bool
	_, err := s.run(ctx, "dedupe_reminders", func(tx Transaction) error {
		changed = tx.DeduplicateReminders(bikeID)
		return nil
	})
	return changed, err
}

// BikeReminders deduplicates the bike's reminders and returns what remains.
func (s *Service) BikeReminders(ctx context.Context, bikeID int64) ([]domain.Reminder, error) {
	out := []domain.Reminder{}
	_, err := s.run(ctx, "bike_reminders", func(tx Transaction) error {
		tx.DeduplicateReminders(bikeID)
		for _, r := range tx.ListReminders() {
			if r.BikeID == bikeID {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// ClientReminders returns the reminders recorded for a client.
func (s *Service) ClientReminders(ctx context.Context, clientID int64) ([]domain.Reminder, error) {
	out := []domain.Reminder{}
	err := s.read(ctx, "client_reminders", func(view TransactionView) error {
		for _, r := range view.ListReminders() {
			if r.ClientID == clientID {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}
