package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"probikes/pkg/domain"
)

func TestServiceClientLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	ana := mustClient(t, svc, "  Ana Suarez ", "1155550000")
	if ana.Name != "Ana Suarez" || ana.UsageTier != domain.TierCasual || ana.DisplayID != "1" {
		t.Fatalf("unexpected created client %+v", ana)
	}
	beto := mustClient(t, svc, "Beto", "1199990000")
	if beto.ID <= ana.ID || beto.DisplayID != "2" {
		t.Fatalf("expected increasing ids, got %+v then %+v", ana, beto)
	}

	updated, _, err := svc.UpdateClient(ctx, ana.ID, func(c *domain.Client) error {
		c.Email = "ana@example.com"
		c.UsageTier = domain.TierProHeavy
		return nil
	})
	if err != nil {
		t.Fatalf("update client: %v", err)
	}
	if updated.Email != "ana@example.com" || updated.UsageTier != domain.TierProHeavy {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, _, err := svc.UpdateClient(ctx, ana.ID, func(c *domain.Client) error {
		c.UsageTier = "Z"
		return nil
	}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid tier error, got %v", err)
	}
	if _, _, err := svc.CreateClient(ctx, domain.Client{Phone: "1"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected missing name error, got %v", err)
	}
	if _, _, err := svc.UpdateClient(ctx, 999, func(*domain.Client) error { return nil }); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := svc.DeleteClient(ctx, beto.ID); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	listed, err := svc.ListClients(ctx)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != ana.ID {
		t.Fatalf("expected only live clients, got %+v", listed)
	}
	deleted, err := svc.GetClient(ctx, beto.ID)
	if err != nil || !deleted.IsDeleted {
		t.Fatalf("soft deleted client should still resolve: %+v %v", deleted, err)
	}
	if _, err := svc.GetClient(ctx, 12345); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchClients(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustClient(t, svc, "Maria Garcia", "1187654321")
	mustClient(t, svc, "Mario Rossi", "1100001111")
	gone := mustClient(t, svc, "Marina Deleted", "1122223333")
	if _, err := svc.DeleteClient(ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cases := []struct {
		query string
		want  int
	}{
		{"", 0},
		{"mari", 2},
		{"MARIA", 1},
		{"8765", 1},
		{"2222", 0},
		{"nobody", 0},
	}
	for _, tc := range cases {
		got, err := svc.SearchClients(ctx, tc.query)
		if err != nil {
			t.Fatalf("search %q: %v", tc.query, err)
		}
		if len(got) != tc.want {
			t.Fatalf("search %q: expected %d results, got %+v", tc.query, tc.want, got)
		}
	}
}

func TestServiceTotalPriceScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	client := mustClient(t, svc, "Ana", "1")
	bike := mustBike(t, svc, client.ID, "Marlin")

	job, _, err := svc.CreateService(ctx, domain.ServiceRecord{
		BikeID:      bike.ID,
		ServiceType: domain.ServiceSport,
		BasePrice:   40000,
		ExtraItems:  []domain.ExtraItem{{Description: "Cadena", Price: 5000, Category: domain.CategoryPart}},
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	if job.TotalPrice != 45000 || job.ID != 1 || job.Status != domain.StatusIntake {
		t.Fatalf("unexpected service %+v", job)
	}
	if job.ExtraItems[0].ID == "" {
		t.Fatalf("expected generated item id")
	}
	if job.DateIn != "2025-03-10T12:00:00.000Z" {
		t.Fatalf("unexpected date_in %s", job.DateIn)
	}

	job, _, err = svc.UpdateService(ctx, job.ID, func(s *domain.ServiceRecord) error {
		s.ExtraItems = append(s.ExtraItems, domain.ExtraItem{Description: "Mano de obra", Price: 2500, Category: domain.CategoryLabor})
		return nil
	})
	if err != nil {
		t.Fatalf("update service: %v", err)
	}
	if job.TotalPrice != 47500 {
		t.Fatalf("expected recomputed total 47500, got %v", job.TotalPrice)
	}

	if _, _, err := svc.CreateService(ctx, domain.ServiceRecord{BikeID: bike.ID, ExtraItems: []domain.ExtraItem{{Category: "gift"}}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid category error, got %v", err)
	}
	if _, _, err := svc.CreateService(ctx, domain.ServiceRecord{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected missing bike error, got %v", err)
	}
}

func TestUpdateServiceStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	client := mustClient(t, svc, "Ana", "1")
	bike := mustBike(t, svc, client.ID, "Marlin")
	job, _, err := svc.CreateService(ctx, domain.ServiceRecord{BikeID: bike.ID})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	job, _, err = svc.UpdateServiceStatus(ctx, job.ID, "en proceso")
	if err != nil {
		t.Fatalf("status in progress: %v", err)
	}
	if job.Status != domain.StatusInProgress || job.DateOut != "" {
		t.Fatalf("unexpected in-progress job %+v", job)
	}
	job, _, err = svc.UpdateServiceStatus(ctx, job.ID, "Finalizado")
	if err != nil {
		t.Fatalf("status completed: %v", err)
	}
	if job.Status != domain.StatusCompleted || job.DateOut != "2025-03-10T12:00:00.000Z" {
		t.Fatalf("expected completed with date_out, got %+v", job)
	}
	if _, _, err := svc.UpdateServiceStatus(ctx, job.ID, "exploded"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
	if _, _, err := svc.UpdateServiceStatus(ctx, 77, "Completed"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServicesByBikeAndClient(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ana := mustClient(t, svc, "Ana", "1")
	beto := mustClient(t, svc, "Beto", "2")
	road := mustBike(t, svc, ana.ID, "Tarmac")
	mtb := mustBike(t, svc, ana.ID, "Marlin")
	other := mustBike(t, svc, beto.ID, "Scalpel")
	for _, bikeID := range []int64{road.ID, mtb.ID, mtb.ID, other.ID} {
		if _, _, err := svc.CreateService(ctx, domain.ServiceRecord{BikeID: bikeID}); err != nil {
			t.Fatalf("create service: %v", err)
		}
	}

	bikes, err := svc.ClientBikes(ctx, ana.ID)
	if err != nil || len(bikes) != 2 {
		t.Fatalf("expected 2 bikes for ana, got %d (%v)", len(bikes), err)
	}
	jobs, err := svc.BikeServices(ctx, mtb.ID)
	if err != nil || len(jobs) != 2 {
		t.Fatalf("expected 2 services for mtb, got %d (%v)", len(jobs), err)
	}
	jobs, err = svc.ClientServices(ctx, ana.ID)
	if err != nil || len(jobs) != 3 {
		t.Fatalf("expected 3 services for ana, got %d (%v)", len(jobs), err)
	}

	if _, err := svc.DeleteClient(ctx, ana.ID); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	jobs, err = svc.ClientServices(ctx, ana.ID)
	if err != nil || len(jobs) != 3 {
		t.Fatalf("services of a soft-deleted client must still resolve, got %d (%v)", len(jobs), err)
	}
}

func TestDeleteBikeKeepsServicesAndUsesSentinels(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	client := mustClient(t, svc, "Ana", "1")
	bike := mustBike(t, svc, client.ID, "Marlin")
	job, _, err := svc.CreateService(ctx, domain.ServiceRecord{BikeID: bike.ID})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if _, err := svc.DeleteBike(ctx, bike.ID); err != nil {
		t.Fatalf("delete bike with services: %v", err)
	}
	if _, err := svc.GetService(ctx, job.ID); err != nil {
		t.Fatalf("service should survive bike deletion: %v", err)
	}
	jobs, err := svc.DashboardJobs(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(jobs) != 1 || jobs[0].BikeModel != domain.UnknownLabel || jobs[0].ClientName != domain.UnknownLabel || jobs[0].ClientTier != domain.TierCasual {
		t.Fatalf("expected sentinel join, got %+v", jobs)
	}
	if _, err := svc.GetBike(ctx, bike.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected bike not found, got %v", err)
	}
	if _, err := svc.DeleteBike(ctx, bike.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
}

func TestCreateBikeWarnsOnMissingClient(t *testing.T) {
	svc, _ := newTestService(t)
	_, res, err := svc.CreateBike(context.Background(), domain.Bike{ClientID: 42, Model: "Ghost"})
	if err != nil {
		t.Fatalf("orphan bike should be accepted: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != domain.SeverityWarn || res.Violations[0].Rule != "reference_integrity" {
		t.Fatalf("expected reference warning, got %+v", res.Violations)
	}
	if _, _, err := svc.CreateBike(context.Background(), domain.Bike{Model: "NoOwner"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected missing client id error, got %v", err)
	}
}

func TestRemindersCadenaScenario(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	doc := domain.Document{
		SchemaVersion: domain.SchemaVersion,
		Clients:       []domain.Client{{ID: 1, Name: "Ana", Phone: "1", UsageTier: domain.TierSport}},
		Bikes:         []domain.Bike{{ID: 10, ClientID: 1, Model: "Marlin"}},
		Reminders: []domain.Reminder{
			{ID: 100.1, ClientID: 1, BikeID: 10, Component: "cadena", DueDate: "2025-06-09", AssignedDate: "2025-03-09T12:00:00.000Z"},
			{ID: 100.2, ClientID: 1, BikeID: 10, Component: "Cadena", DueDate: "2025-06-10", AssignedDate: "2025-03-10T12:00:00.000Z"},
			{ID: 100.3, ClientID: 1, BikeID: 10, Component: "Frenos", DueDate: "2025-04-10"},
		},
	}
	store.ImportState(doc)

	reminders, err := svc.BikeReminders(ctx, 10)
	if err != nil {
		t.Fatalf("bike reminders: %v", err)
	}
	if len(reminders) != 2 {
		t.Fatalf("expected deduplicated reminders, got %+v", reminders)
	}
	var cadena []domain.Reminder
	for _, r := range reminders {
		if strings.EqualFold(r.Component, "cadena") {
			cadena = append(cadena, r)
		}
	}
	if len(cadena) != 1 || cadena[0].ID != 100.2 {
		t.Fatalf("expected today's cadena reminder to win, got %+v", cadena)
	}
	if store.Revision() != 1 {
		t.Fatalf("dedup removal should commit, revision %d", store.Revision())
	}
	changed, err := svc.DeduplicateBikeReminders(ctx, 10)
	if err != nil || changed {
		t.Fatalf("second dedup should be a no-op, changed=%v err=%v", changed, err)
	}
	if store.Revision() != 1 {
		t.Fatalf("no-op dedup must not bump revision, got %d", store.Revision())
	}
}

func TestReminderOperations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	client := mustClient(t, svc, "Ana", "1")
	bike := mustBike(t, svc, client.ID, "Marlin")

	stored, _, err := svc.UpsertReminders(ctx, []domain.Reminder{
		{ClientID: client.ID, BikeID: bike.ID, Component: "Cadena", DueDate: "2025-06-10"},
		{ClientID: client.ID, BikeID: bike.ID, Component: "Frenos", DueDate: "2025-05-10"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(stored) != 2 || stored[0].ID == stored[1].ID {
		t.Fatalf("expected two distinct reminders, got %+v", stored)
	}

	again, _, err := svc.UpsertReminders(ctx, []domain.Reminder{{BikeID: bike.ID, Component: "CADENA", DueDate: "2025-07-01", CurrentHealth: intPtr(40)}})
	if err != nil {
		t.Fatalf("upsert merge: %v", err)
	}
	if again[0].ID != stored[0].ID || again[0].DueDate != "2025-07-01" || *again[0].CurrentHealth != 40 {
		t.Fatalf("expected merge onto existing reminder, got %+v", again[0])
	}

	contacted, _, err := svc.SetReminderStatus(ctx, stored[1].ID, domain.ReminderContacted)
	if err != nil || contacted.Status != domain.ReminderContacted {
		t.Fatalf("set status: %+v %v", contacted, err)
	}
	if _, _, err := svc.SetReminderStatus(ctx, stored[1].ID, "Lost"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, _, err := svc.UpsertReminders(ctx, []domain.Reminder{{Component: "x"}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected missing bike error, got %v", err)
	}

	byClient, err := svc.ClientReminders(ctx, client.ID)
	if err != nil || len(byClient) != 2 {
		t.Fatalf("expected 2 client reminders, got %d (%v)", len(byClient), err)
	}
	if _, err := svc.DeleteReminder(ctx, stored[0].ID); err != nil {
		t.Fatalf("delete reminder: %v", err)
	}
	if _, err := svc.GetReminder(ctx, stored[0].ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if got, err := svc.GetReminder(ctx, stored[1].ID); err != nil || got.Component != "Frenos" {
		t.Fatalf("get reminder: %+v %v", got, err)
	}
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(nil, 0)
	log := &captureLogger{}
	svc, _ := newTestService(t, WithMetricsRecorder(metrics), WithTracer(tracer), WithLogger(log))

	mustClient(t, svc, "Ana", "1")
	if _, _, err := svc.CreateClient(ctx, domain.Client{}); err == nil {
		t.Fatalf("expected validation failure")
	}
	if _, err := svc.GetClient(ctx, 1); err == nil {
		t.Fatalf("expected not found")
	}
	if !metrics.has("create_client", true) || !metrics.has("create_client", false) || !metrics.has("get_client", false) {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}
	entries := tracer.Entries()
	if len(entries) != 3 || entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("unexpected spans %+v", entries)
	}
	var sawRejected bool
	for _, call := range log.calls {
		if call == "i:operation rejected" {
			sawRejected = true
		}
	}
	if !sawRejected {
		t.Fatalf("expected rejected operations to be logged, got %v", log.calls)
	}
}

func TestSystemInfo(t *testing.T) {
	svc, _ := newTestService(t)
	mustClient(t, svc, "Ana", "1")
	info, err := svc.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("system info: %v", err)
	}
	if info.SchemaVersion != domain.SchemaVersion || info.Revision != 1 || info.Clients != 1 || info.Migration != nil {
		t.Fatalf("unexpected info %+v", info)
	}
	rev, err := svc.Revision(context.Background())
	if err != nil || rev != 1 {
		t.Fatalf("unexpected revision %d (%v)", rev, err)
	}
}
