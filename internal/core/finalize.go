package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"probikes/pkg/domain"
)

// HealthCheck schedules a follow-up for one component. Months is the
// inspection interval; DueDate and Health override the derived values. A
// derived due date is a calendar day (YYYY-MM-DD).
type HealthCheck struct {
	Component string `json:"component" validate:"required"`
	Months    int    `json:"months" validate:"gte=0"`
	DueDate   string `json:"due_date,omitempty"`
	Health    *int   `json:"health,omitempty"`
}

// FinalizeInput is the mechanic's closing report for a job.
type FinalizeInput struct {
	MechanicNotes string        `json:"mechanic_notes"`
	HealthChecks  []HealthCheck `json:"health_checks" validate:"dive"`
}

// FinalizeResult reports what a finalize call changed.
type FinalizeResult struct {
	Service   domain.ServiceRecord `json:"service"`
	Reminders []domain.Reminder    `json:"reminders"`
	Published bool                 `json:"webhook_queued"`
}

// HealthFromInterval maps an inspection interval in months to the component
// health percentage shown on reminders. Unlisted intervals report full health.
func HealthFromInterval(months int) int {
	switch months {
	case 1:
		return 90
	case 3:
		return 70
	case 6:
		return 50
	case 12:
		return 20
	default:
		return 100
	}
}

// FinalizeService closes a job in one transaction: the checklist is cleared,
// notes recorded, reminders upserted from the health checks and the status
// set to Completed unless it is already closed. A ServiceFinalized event is
// published after commit when the job carries part items.
func (s *Service) FinalizeService(ctx context.Context, id int64, in FinalizeInput) (FinalizeResult, Result, error) {
	var (
		out   FinalizeResult
		event ServiceFinalized
	)
	res, err := s.run(ctx, "finalize_service", func(tx Transaction) error {
		now := tx.Now()
		stamp := domain.FormatTimestamp(now)
		svc, err := tx.UpdateService(id, func(svc *domain.ServiceRecord) error {
			svc.Checklist = map[string]bool{}
			svc.MechanicNotes = in.MechanicNotes
			if !svc.Status.IsClosed() {
				svc.Status = domain.StatusCompleted
				svc.DateOut = stamp
			}
			return nil
		})
		if err != nil {
			return err
		}
		bike, _ := tx.FindBike(svc.BikeID)
		client, _ := tx.FindClient(bike.ClientID)

		if len(in.HealthChecks) > 0 {
			batch := make([]domain.Reminder, 0, len(in.HealthChecks))
			for _, hc := range in.HealthChecks {
				if strings.TrimSpace(hc.Component) == "" {
					return fmt.Errorf("%w: health check component is required", domain.ErrInvalidInput)
				}
				health := HealthFromInterval(hc.Months)
				if hc.Health != nil {
					health = *hc.Health
				}
				due := hc.DueDate
				if due == "" {
					due = now.AddDate(0, hc.Months, 0).UTC().Format(time.DateOnly)
				}
				batch = append(batch, domain.Reminder{
					ClientID:      bike.ClientID,
					BikeID:        svc.BikeID,
					Component:     hc.Component,
					DueDate:       due,
					AssignedDate:  stamp,
					CurrentHealth: &health,
					Status:        domain.ReminderPending,
				})
			}
			out.Reminders, err = tx.UpsertReminders(batch)
			if err != nil {
				return err
			}
		}
		out.Service = svc
		event = ServiceFinalized{
			Service:     svc,
			Bike:        bike,
			Client:      client,
			Parts:       svc.PartItems(),
			FinalizedAt: now,
		}
		return nil
	})
	if err != nil {
		return FinalizeResult{}, res, err
	}
	if len(event.Parts) > 0 && s.publisher != nil {
		s.publisher.Publish(ctx, event)
		out.Published = true
	}
	return out, res, nil
}
