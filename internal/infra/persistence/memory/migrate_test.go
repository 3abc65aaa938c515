package memory

import (
	"encoding/json"
	"testing"

	"probikes/pkg/domain"
)

func TestMigrateRenumbersLegacyServiceIDs(t *testing.T) {
	legacy := Document{
		Services: []domain.ServiceRecord{
			{ID: 1709000000300, BikeID: 1, DateIn: "2024-03-03T10:00:00.000Z"},
			{ID: 1709000000100, BikeID: 1, DateIn: "2024-03-01T10:00:00.000Z"},
			{ID: 1709000000200, BikeID: 2, DateIn: "2024-03-02T10:00:00.000Z"},
		},
	}
	migrated, report := Migrate(legacy)

	if !report.ReloadRequired || !report.Changed() {
		t.Fatalf("expected reload, got %+v", report)
	}
	wantOrder := []int64{1709000000100, 1709000000200, 1709000000300}
	for i, svc := range migrated.Services {
		if svc.ID != int64(i+1) {
			t.Fatalf("service %d has id %d", i, svc.ID)
		}
		if report.ServiceIDs[wantOrder[i]] != svc.ID {
			t.Fatalf("mapping for %d = %d, want %d", wantOrder[i], report.ServiceIDs[wantOrder[i]], svc.ID)
		}
	}
	if migrated.SchemaVersion != domain.SchemaVersion || report.ToVersion != domain.SchemaVersion {
		t.Fatalf("expected current schema version, got %d", migrated.SchemaVersion)
	}
	if legacy.Services[0].ID != 1709000000300 {
		t.Fatalf("input document was mutated")
	}
}

func TestMigrateLeavesSequentialIDsAlone(t *testing.T) {
	doc := Document{Services: []domain.ServiceRecord{
		{ID: 5, DateIn: "2024-01-02"},
		{ID: 2, DateIn: "2024-01-01"},
	}}
	migrated, report := Migrate(doc)
	if report.ReloadRequired || report.ServiceIDs != nil {
		t.Fatalf("unexpected renumber %+v", report)
	}
	if migrated.Services[0].ID != 5 || migrated.Services[1].ID != 2 {
		t.Fatalf("ids changed: %+v", migrated.Services)
	}
}

func TestMigrateConsolidatesReminders(t *testing.T) {
	doc := Document{
		SchemaVersion: 1,
		Reminders: []domain.Reminder{
			{ID: 1, BikeID: 3, Component: "Cadena", AssignedDate: "2024-01-01"},
			{ID: 2, BikeID: 3, Component: "cadena", AssignedDate: "2024-05-01"},
			{ID: 3, BikeID: 4, Component: "Cadena"},
		},
	}
	migrated, report := Migrate(doc)
	if report.RemindersRemoved != 1 {
		t.Fatalf("expected 1 removed, got %d", report.RemindersRemoved)
	}
	if len(report.Applied) != 1 || report.Applied[0] != "consolidate_reminders" {
		t.Fatalf("unexpected steps %v", report.Applied)
	}
	if len(migrated.Reminders) != 2 || migrated.Reminders[0].ID != 2 {
		t.Fatalf("unexpected reminders %+v", migrated.Reminders)
	}
}

func TestMigrateDisplayIDsAreIdempotent(t *testing.T) {
	doc := Document{
		SchemaVersion: domain.SchemaVersion,
		Clients: []domain.Client{
			{ID: 300, Name: "C", DisplayID: "9"},
			{ID: 100, Name: "A", IsDeleted: true},
			{ID: 200, Name: "B"},
		},
	}
	once, report := Migrate(doc)
	if report.DisplayIDsChanged == 0 || !report.Changed() {
		t.Fatalf("expected display ids to change")
	}
	want := []string{"1", "2", "3"}
	for i, c := range once.Clients {
		if c.DisplayID != want[i] {
			t.Fatalf("client %d display id %q, want %q", c.ID, c.DisplayID, want[i])
		}
	}
	twice, again := Migrate(once)
	if again.Changed() {
		t.Fatalf("second migration should be a no-op, got %+v", again)
	}
	for i := range once.Clients {
		if once.Clients[i] != twice.Clients[i] {
			t.Fatalf("client %d changed on second pass", i)
		}
	}
}

func TestMigrateDecodesLegacyStatuses(t *testing.T) {
	raw := `{"services":[
		{"id":1,"bike_id":1,"status":"Entregado","basePrice":0,"extraItems":[],"totalPrice":0},
		{"id":2,"bike_id":1,"status":"en proceso","basePrice":0,"extraItems":[],"totalPrice":0},
		{"id":3,"bike_id":1,"status":"whatever","basePrice":0,"extraItems":[],"totalPrice":0}
	]}`
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	migrated, _ := Migrate(doc)
	want := []domain.ServiceStatus{domain.StatusDelivered, domain.StatusInProgress, "whatever"}
	for i, svc := range migrated.Services {
		if svc.Status != want[i] {
			t.Fatalf("service %d status %q, want %q", svc.ID, svc.Status, want[i])
		}
	}
}

func TestReplaceDocumentKeepsRevision(t *testing.T) {
	store := newTestStore(t)
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "old"})
		return err
	})
	var report MigrationReport
	mustRun(t, store, func(tx domain.Transaction) error {
		report = tx.ReplaceDocument(Document{Clients: []domain.Client{{ID: 5, Name: "new"}}})
		return nil
	})
	doc := store.ExportState()
	if doc.Revision != 2 || len(doc.Clients) != 1 || doc.Clients[0].Name != "new" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if report.FromVersion != 0 {
		t.Fatalf("expected migration from version 0, got %d", report.FromVersion)
	}
}

func TestEpochAssignment(t *testing.T) {
	store := newTestStore(t)
	initial := store.ExportState().Epoch
	if initial == "" {
		t.Fatalf("new store has no epoch")
	}

	kept, _ := Migrate(Document{Epoch: "lineage-a"})
	if kept.Epoch != "lineage-a" {
		t.Fatalf("migration replaced an existing epoch: %q", kept.Epoch)
	}
	fresh, _ := Migrate(Document{})
	if fresh.Epoch == "" {
		t.Fatalf("migration left the epoch empty")
	}

	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "Ana"})
		return err
	})
	if store.ExportState().Epoch != initial {
		t.Fatalf("ordinary write changed the epoch")
	}
	mustRun(t, store, func(tx domain.Transaction) error {
		tx.ReplaceDocument(Document{Epoch: initial})
		return nil
	})
	if got := store.ExportState().Epoch; got == "" || got == initial {
		t.Fatalf("replacing the document must start a new epoch, got %q", got)
	}
}
