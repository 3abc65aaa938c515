package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"probikes/pkg/domain"
)

// DashboardJobs joins every open service to its bike and client. A missing
// DateIn is reported as now.
func DashboardJobs(view TransactionView, now time.Time) []domain.DashboardJob {
	return fillDateIn(openJobs(view), now)
}

func openJobs(view TransactionView) []domain.DashboardJob {
	out := []domain.DashboardJob{}
	for _, svc := range view.ListServices() {
		if svc.Status.IsClosed() {
			continue
		}
		out = append(out, dashboardJob(view, svc, svc.DateOut))
	}
	return out
}

// DashboardHistory returns the closed services, most recently finished first.
// DateOut falls back to DateIn, and a missing DateIn to now.
func DashboardHistory(view TransactionView, now time.Time) []domain.DashboardJob {
	return fillDateIn(closedJobs(view), now)
}

func closedJobs(view TransactionView) []domain.DashboardJob {
	closed := FullHistory(view)
	sort.SliceStable(closed, func(i, j int) bool {
		return finishedAt(closed[i]) > finishedAt(closed[j])
	})
	out := make([]domain.DashboardJob, 0, len(closed))
	for _, svc := range closed {
		dateOut := svc.DateOut
		if dateOut == "" {
			dateOut = svc.DateIn
		}
		out = append(out, dashboardJob(view, svc, dateOut))
	}
	return out
}

// fillDateIn stamps jobs without an intake date. It runs after the view cache
// so the fallback always reflects the current clock.
func fillDateIn(jobs []domain.DashboardJob, now time.Time) []domain.DashboardJob {
	for i := range jobs {
		if jobs[i].DateIn == "" {
			jobs[i].DateIn = domain.FormatTimestamp(now)
		}
	}
	return jobs
}

func finishedAt(svc domain.ServiceRecord) int64 {
	if svc.DateOut != "" {
		return domain.TimestampMillis(svc.DateOut)
	}
	return domain.TimestampMillis(svc.DateIn)
}

func dashboardJob(view TransactionView, svc domain.ServiceRecord, dateOut string) domain.DashboardJob {
	job := domain.DashboardJob{
		ServiceID:   svc.ID,
		Status:      svc.Status,
		ServiceType: svc.ServiceType,
		DateIn:      svc.DateIn,
		DateOut:     dateOut,
		BikeBrand:   domain.UnknownLabel,
		BikeModel:   domain.UnknownLabel,
		ClientName:  domain.UnknownLabel,
		ClientTier:  domain.TierCasual,
		TotalPrice:  svc.TotalPrice,
	}
	bike, ok := view.FindBike(svc.BikeID)
	if !ok {
		return job
	}
	if bike.Brand != "" {
		job.BikeBrand = bike.Brand
	}
	if bike.Model != "" {
		job.BikeModel = bike.Model
	}
	if client, ok := view.FindClient(bike.ClientID); ok {
		if client.Name != "" {
			job.ClientName = client.Name
		}
		if client.UsageTier != "" {
			job.ClientTier = client.UsageTier
		}
	}
	return job
}

// FullHistory returns the raw closed service records in stored order.
func FullHistory(view TransactionView) []domain.ServiceRecord {
	out := []domain.ServiceRecord{}
	for _, svc := range view.ListServices() {
		if svc.Status.IsClosed() {
			out = append(out, svc)
		}
	}
	return out
}

// FleetStatus lists every bike whose owner is not soft deleted, followed by a
// placeholder row for each live client without bikes.
func FleetStatus(view TransactionView) []domain.FleetItem {
	clients := view.ListClients()
	services := view.ListServices()
	reminders := view.ListReminders()
	bikes := view.ListBikes()

	out := []domain.FleetItem{}
	withBikes := make(map[int64]struct{}, len(bikes))
	for _, bike := range bikes {
		withBikes[bike.ClientID] = struct{}{}
		item := domain.FleetItem{
			BikeID:          bike.ID,
			ClientName:      domain.UnknownLabel,
			ClientDisplayID: domain.UnknownDisplayID,
			ClientTier:      string(domain.TierProHeavy),
			BikeModel:       bike.Model,
			BikeType:        domain.StandardBikeType,
			Transmission:    bike.Transmission,
		}
		if client, ok := view.FindClient(bike.ClientID); ok {
			if client.IsDeleted {
				continue
			}
			item.ClientID = client.ID
			if client.Name != "" {
				item.ClientName = client.Name
			}
			if client.DisplayID != "" {
				item.ClientDisplayID = client.DisplayID
			}
			if client.UsageTier != "" {
				item.ClientTier = string(client.UsageTier)
			}
		}
		for _, svc := range services {
			if svc.BikeID == bike.ID {
				item.ServiceCount++
			}
		}
		if next, ok := nearestDue(reminders, bike.ID); ok {
			due, component := next.DueDate, next.Component
			item.NextDueDate = &due
			item.NextDueComponent = &component
		}
		out = append(out, item)
	}
	for _, client := range clients {
		if client.IsDeleted {
			continue
		}
		if _, ok := withBikes[client.ID]; ok {
			continue
		}
		item := domain.FleetItem{
			ClientName:      client.Name,
			ClientID:        client.ID,
			ClientDisplayID: client.DisplayID,
			ClientTier:      string(client.UsageTier),
			BikeModel:       domain.NoBikeModel,
			BikeType:        domain.NoBikeType,
			Transmission:    domain.NoBikeTransmission,
		}
		if item.ClientDisplayID == "" {
			item.ClientDisplayID = domain.UnknownDisplayID
		}
		if item.ClientTier == "" {
			item.ClientTier = string(domain.TierProHeavy)
		}
		out = append(out, item)
	}
	return out
}

// nearestDue picks the bike's reminder with the earliest due date; ties keep
// stored order and unparseable dates sort last.
func nearestDue(reminders []domain.Reminder, bikeID int64) (domain.Reminder, bool) {
	var (
		best    domain.Reminder
		bestAt  time.Time
		bestOK  bool
		matched bool
	)
	for _, r := range reminders {
		if r.BikeID != bikeID {
			continue
		}
		at, ok := domain.ParseTimestamp(r.DueDate)
		switch {
		case !matched:
		case ok && (!bestOK || at.Before(bestAt)):
		default:
			continue
		}
		best, bestAt, bestOK, matched = r, at, ok, true
	}
	return best, matched
}

// RemindersWithContext joins each reminder through its bike to the owner and
// computes the days left until it is due. Reminders of soft-deleted clients
// are skipped; an unparseable due date counts as due now.
func RemindersWithContext(view TransactionView, now time.Time) []domain.RetentionAlert {
	out := []domain.RetentionAlert{}
	for _, r := range view.ListReminders() {
		if r.ID == 0 {
			continue
		}
		alert := domain.RetentionAlert{
			ID:         r.ID,
			ClientName: domain.UnknownLabelES,
			BikeModel:  domain.UnknownLabelES,
			Component:  r.Component,
			DueDate:    r.DueDate,
		}
		if bike, ok := view.FindBike(r.BikeID); ok {
			if bike.Model != "" {
				alert.BikeModel = bike.Model
			}
			if client, ok := view.FindClient(bike.ClientID); ok {
				if client.IsDeleted {
					continue
				}
				if client.Name != "" {
					alert.ClientName = client.Name
				}
				alert.ClientPhone = client.Phone
			}
		}
		if due, ok := domain.ParseTimestamp(r.DueDate); ok {
			alert.DaysRemaining = DaysUntil(now, due)
		}
		out = append(out, alert)
	}
	return out
}

// DaysUntil returns ceil((due - now) / 24h).
func DaysUntil(now, due time.Time) int {
	return int(math.Ceil(float64(due.Sub(now)) / float64(24*time.Hour)))
}

// AlertBuckets splits retention alerts for the follow-up screen.
type AlertBuckets struct {
	Urgent   []domain.RetentionAlert `json:"urgent"`
	Upcoming []domain.RetentionAlert `json:"upcoming"`
}

// BucketAlerts separates alerts that are due (zero or fewer days left) from
// upcoming ones, which are sorted soonest first.
func BucketAlerts(alerts []domain.RetentionAlert) AlertBuckets {
	b := AlertBuckets{Urgent: []domain.RetentionAlert{}, Upcoming: []domain.RetentionAlert{}}
	for _, a := range alerts {
		if a.DaysRemaining <= 0 {
			b.Urgent = append(b.Urgent, a)
		} else {
			b.Upcoming = append(b.Upcoming, a)
		}
	}
	sort.SliceStable(b.Upcoming, func(i, j int) bool {
		return b.Upcoming[i].DaysRemaining < b.Upcoming[j].DaysRemaining
	})
	return b
}

// viewCacheKey identifies a view of one document lineage at one revision.
func viewCacheKey(name string, view TransactionView) string {
	return fmt.Sprintf("view:%s:%s:%d", name, view.Epoch(), view.Revision())
}

// cachedView evaluates compute over a snapshot, consulting the view cache
// under a key that includes the document epoch and revision.
func cachedView[T any](ctx context.Context, s *Service, name string, compute func(TransactionView) T) (T, error) {
	var out T
	err := s.read(ctx, name, func(view TransactionView) error {
		key := viewCacheKey(name, view)
		if s.cache != nil {
			raw, ok, err := s.cache.Get(ctx, key)
			if err != nil {
				s.logger.Warn("view cache read failed", "key", key, "error", err)
			} else if ok && json.Unmarshal(raw, &out) == nil {
				return nil
			}
		}
		out = compute(view)
		if s.cache != nil {
			if raw, err := json.Marshal(out); err == nil {
				if err := s.cache.Set(ctx, key, raw); err != nil {
					s.logger.Warn("view cache write failed", "key", key, "error", err)
				}
			}
		}
		return nil
	})
	return out, err
}

// DashboardJobs returns the open jobs.
func (s *Service) DashboardJobs(ctx context.Context) ([]domain.DashboardJob, error) {
	jobs, err := cachedView(ctx, s, "dashboard_jobs", openJobs)
	if err != nil {
		return nil, err
	}
	return fillDateIn(jobs, s.now()), nil
}

// DashboardHistory returns closed jobs, newest first.
func (s *Service) DashboardHistory(ctx context.Context) ([]domain.DashboardJob, error) {
	jobs, err := cachedView(ctx, s, "dashboard_history", closedJobs)
	if err != nil {
		return nil, err
	}
	return fillDateIn(jobs, s.now()), nil
}

// FullHistory returns the raw closed service records.
func (s *Service) FullHistory(ctx context.Context) ([]domain.ServiceRecord, error) {
	return cachedView(ctx, s, "full_history", FullHistory)
}

// FleetStatus returns the fleet-wide status rows.
func (s *Service) FleetStatus(ctx context.Context) ([]domain.FleetItem, error) {
	return cachedView(ctx, s, "fleet_status", FleetStatus)
}

// RetentionAlerts returns every reminder with owner context as of now. The
// result depends on the clock, so it bypasses the view cache.
func (s *Service) RetentionAlerts(ctx context.Context) ([]domain.RetentionAlert, error) {
	now := s.now()
	var out []domain.RetentionAlert
	err := s.read(ctx, "retention_alerts", func(view TransactionView) error {
		out = RemindersWithContext(view, now)
		return nil
	})
	return out, err
}
