package core

import (
	"context"
	"testing"
	"time"

	"probikes/pkg/domain"
)

func viewFixture() domain.Document {
	return domain.Document{
		SchemaVersion: domain.SchemaVersion,
		Clients: []domain.Client{
			{ID: 1, Name: "Ana", Phone: "111", UsageTier: domain.TierSport},
			{ID: 2, Name: "Beto", Phone: "222", UsageTier: domain.TierCasual, IsDeleted: true},
			{ID: 3, Name: "Caro", Phone: "333"},
		},
		Bikes: []domain.Bike{
			{ID: 10, ClientID: 1, Brand: "Trek", Model: "Marlin", Transmission: "1x10"},
			{ID: 11, ClientID: 2, Brand: "Giant", Model: "TCR"},
			{ID: 12, ClientID: 99, Brand: "Orbea", Model: "Alma"},
		},
		Services: []domain.ServiceRecord{
			{ID: 1, BikeID: 10, Status: domain.StatusInProgress, DateIn: "2025-03-01T10:00:00.000Z", TotalPrice: 100},
			{ID: 2, BikeID: 10, Status: domain.StatusCompleted, DateIn: "2025-01-01T00:00:00.000Z", DateOut: "2025-01-05T00:00:00.000Z"},
			{ID: 3, BikeID: 12, Status: domain.StatusDelivered, DateIn: "2025-02-01T00:00:00.000Z"},
			{ID: 4, BikeID: 404, Status: domain.StatusPending},
		},
		Reminders: []domain.Reminder{
			{ID: 100.5, ClientID: 1, BikeID: 10, Component: "Cadena", DueDate: "2025-03-20"},
			{ID: 101.5, ClientID: 1, BikeID: 10, Component: "Frenos", DueDate: "2025-03-12"},
			{ID: 102.5, ClientID: 2, BikeID: 11, Component: "Cubiertas", DueDate: "2025-03-11"},
			{ID: 103.5, ClientID: 7, BikeID: 404, Component: "Horquilla", DueDate: "2025-03-01"},
		},
	}
}

func withFixture(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, store := newTestService(t, opts...)
	store.ImportState(viewFixture())
	return svc
}

func TestDashboardJobs(t *testing.T) {
	jobs, err := withFixture(t).DashboardJobs(context.Background())
	if err != nil {
		t.Fatalf("dashboard jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 open jobs, got %+v", jobs)
	}
	if jobs[0].ServiceID != 1 || jobs[0].BikeBrand != "Trek" || jobs[0].ClientName != "Ana" || jobs[0].ClientTier != domain.TierSport {
		t.Fatalf("unexpected joined job %+v", jobs[0])
	}
	orphan := jobs[1]
	if orphan.ServiceID != 4 || orphan.BikeModel != domain.UnknownLabel || orphan.ClientTier != domain.TierCasual {
		t.Fatalf("unexpected orphan job %+v", orphan)
	}
	if orphan.DateIn != "2025-03-10T12:00:00.000Z" {
		t.Fatalf("expected date_in to fall back to now, got %s", orphan.DateIn)
	}
}

func TestDashboardHistoryOrdersByCompletion(t *testing.T) {
	history, err := withFixture(t).DashboardHistory(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].ServiceID != 3 || history[1].ServiceID != 2 {
		t.Fatalf("unexpected history order %+v", history)
	}
	if history[0].DateOut != "2025-02-01T00:00:00.000Z" {
		t.Fatalf("expected date_out to fall back to date_in, got %s", history[0].DateOut)
	}
	if history[0].BikeModel != "Alma" || history[0].ClientName != domain.UnknownLabel {
		t.Fatalf("expected bike join with missing client, got %+v", history[0])
	}
}

func TestDashboardHistoryIncludesLegacyClosedStatuses(t *testing.T) {
	svc, store := newTestService(t)
	doc := viewFixture()
	status, _ := domain.ParseServiceStatus("Entregado")
	doc.Services[0].Status = status
	store.ImportState(doc)
	full, err := svc.FullHistory(context.Background())
	if err != nil {
		t.Fatalf("full history: %v", err)
	}
	if len(full) != 3 {
		t.Fatalf("expected 3 closed services, got %d", len(full))
	}
}

func TestFleetStatus(t *testing.T) {
	fleet, err := withFixture(t).FleetStatus(context.Background())
	if err != nil {
		t.Fatalf("fleet: %v", err)
	}
	if len(fleet) != 3 {
		t.Fatalf("expected 3 fleet rows, got %+v", fleet)
	}
	ana := fleet[0]
	if ana.BikeID != 10 || ana.ClientDisplayID != "1" || ana.ClientTier != "B" || ana.ServiceCount != 2 || ana.BikeType != domain.StandardBikeType {
		t.Fatalf("unexpected bike row %+v", ana)
	}
	if ana.NextDueDate == nil || *ana.NextDueDate != "2025-03-12" || *ana.NextDueComponent != "Frenos" {
		t.Fatalf("expected nearest reminder, got %+v", ana)
	}
	orphan := fleet[1]
	if orphan.BikeID != 12 || orphan.ClientID != 0 || orphan.ClientName != domain.UnknownLabel || orphan.ClientDisplayID != "?" || orphan.ClientTier != "C" || orphan.NextDueDate != nil {
		t.Fatalf("unexpected orphan bike row %+v", orphan)
	}
	placeholder := fleet[2]
	if placeholder.BikeID != 0 || placeholder.ClientName != "Caro" || placeholder.BikeModel != domain.NoBikeModel ||
		placeholder.BikeType != domain.NoBikeType || placeholder.Transmission != domain.NoBikeTransmission || placeholder.ClientTier != "C" {
		t.Fatalf("unexpected placeholder row %+v", placeholder)
	}
}

func TestNearestDuePrefersParseableDates(t *testing.T) {
	reminders := []domain.Reminder{
		{BikeID: 1, Component: "junk", DueDate: "soon"},
		{BikeID: 1, Component: "late", DueDate: "2025-09-01"},
		{BikeID: 1, Component: "early", DueDate: "2025-04-01"},
		{BikeID: 1, Component: "tie", DueDate: "2025-04-01"},
		{BikeID: 2, Component: "other", DueDate: "2024-01-01"},
	}
	got, ok := nearestDue(reminders, 1)
	if !ok || got.Component != "early" {
		t.Fatalf("expected earliest parseable reminder, got %+v", got)
	}
	if _, ok := nearestDue(reminders, 3); ok {
		t.Fatalf("expected no reminder for bike 3")
	}
}

func TestRetentionAlerts(t *testing.T) {
	alerts, err := withFixture(t).RetentionAlerts(context.Background())
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("expected soft-deleted client's reminder to be skipped, got %+v", alerts)
	}
	byID := map[float64]domain.RetentionAlert{}
	for _, a := range alerts {
		byID[a.ID] = a
	}
	if a := byID[100.5]; a.DaysRemaining != 10 || a.ClientName != "Ana" || a.ClientPhone != "111" || a.BikeModel != "Marlin" {
		t.Fatalf("unexpected cadena alert %+v", a)
	}
	if a := byID[101.5]; a.DaysRemaining != 2 {
		t.Fatalf("unexpected frenos alert %+v", a)
	}
	if a := byID[103.5]; a.DaysRemaining != -9 || a.ClientName != domain.UnknownLabelES || a.BikeModel != domain.UnknownLabelES || a.ClientPhone != "" {
		t.Fatalf("unexpected orphan alert %+v", a)
	}

	buckets := BucketAlerts(alerts)
	if len(buckets.Urgent) != 1 || buckets.Urgent[0].ID != 103.5 {
		t.Fatalf("unexpected urgent bucket %+v", buckets.Urgent)
	}
	if len(buckets.Upcoming) != 2 || buckets.Upcoming[0].ID != 101.5 || buckets.Upcoming[1].ID != 100.5 {
		t.Fatalf("unexpected upcoming bucket %+v", buckets.Upcoming)
	}
}

func TestDaysUntil(t *testing.T) {
	cases := []struct {
		due  time.Time
		want int
	}{
		{fixedNow, 0},
		{fixedNow.Add(time.Hour), 1},
		{fixedNow.Add(48 * time.Hour), 2},
		{fixedNow.Add(-23 * time.Hour), 0},
		{fixedNow.Add(-25 * time.Hour), -1},
	}
	for _, tc := range cases {
		if got := DaysUntil(fixedNow, tc.due); got != tc.want {
			t.Fatalf("DaysUntil(%v) = %d, want %d", tc.due, got, tc.want)
		}
	}
}

func TestViewCacheKeyedByRevision(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	svc := withFixture(t, WithViewCache(cache))

	first, err := svc.FleetStatus(ctx)
	if err != nil {
		t.Fatalf("fleet: %v", err)
	}
	second, err := svc.FleetStatus(ctx)
	if err != nil {
		t.Fatalf("fleet cached: %v", err)
	}
	if cache.sets != 1 || cache.hits != 1 || len(first) != len(second) {
		t.Fatalf("expected one store and one hit, sets=%d hits=%d", cache.sets, cache.hits)
	}

	mustClient(t, svc, "Dani", "444")
	third, err := svc.FleetStatus(ctx)
	if err != nil {
		t.Fatalf("fleet after write: %v", err)
	}
	if cache.sets != 2 || len(third) != len(first)+1 {
		t.Fatalf("expected fresh view after write, sets=%d rows=%d", cache.sets, len(third))
	}
}

func TestViewCacheSeparatesDocuments(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	first, _ := newTestService(t, WithViewCache(cache))
	second, _ := newTestService(t, WithViewCache(cache))
	mustClient(t, first, "Ana", "1")
	mustClient(t, second, "Zed", "2")

	a, err := first.FleetStatus(ctx)
	if err != nil {
		t.Fatalf("first fleet: %v", err)
	}
	b, err := second.FleetStatus(ctx)
	if err != nil {
		t.Fatalf("second fleet: %v", err)
	}
	if len(a) != 1 || len(b) != 1 || a[0].ClientName != "Ana" || b[0].ClientName != "Zed" {
		t.Fatalf("documents at the same revision shared a view: first=%+v second=%+v", a, b)
	}
	if cache.hits != 0 || cache.sets != 2 {
		t.Fatalf("expected two independent entries, sets=%d hits=%d", cache.sets, cache.hits)
	}
}

func TestViewCacheKeyChangesOnImport(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	svc := withFixture(t, WithViewCache(cache))
	mustClient(t, svc, "Dani", "444")
	if _, err := svc.FleetStatus(ctx); err != nil {
		t.Fatalf("fleet: %v", err)
	}
	_, payload, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	other, _ := newTestService(t, WithViewCache(cache))
	if _, _, err := other.ImportBackup(ctx, payload); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := other.FleetStatus(ctx); err != nil {
		t.Fatalf("fleet after import: %v", err)
	}
	if cache.hits != 0 {
		t.Fatalf("imported document reused a cached view of its source, hits=%d", cache.hits)
	}
}

func TestDashboardDateInFallbackFollowsClock(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	svc := withFixture(t, WithViewCache(newMapCache()), WithClock(ClockFunc(func() time.Time { return now })))

	jobs, err := svc.DashboardJobs(ctx)
	if err != nil {
		t.Fatalf("dashboard jobs: %v", err)
	}
	if jobs[1].DateIn != "2025-03-10T12:00:00.000Z" {
		t.Fatalf("unexpected fallback %s", jobs[1].DateIn)
	}

	now = fixedNow.Add(48 * time.Hour)
	jobs, err = svc.DashboardJobs(ctx)
	if err != nil {
		t.Fatalf("dashboard jobs cached: %v", err)
	}
	if jobs[1].DateIn != "2025-03-12T12:00:00.000Z" {
		t.Fatalf("cached fallback did not follow the clock, got %s", jobs[1].DateIn)
	}
}
