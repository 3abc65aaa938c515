package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"probikes/pkg/domain"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(nil, WithClock(func() time.Time { return fixedNow }), WithRandom(func() float64 { return 0.5 }))
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.TransactionView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestStoreRunInTransactionCommitsAndAdvancesRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "Ana", Phone: "111", UsageTier: domain.TierSport})
		return err
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if store.Revision() != 1 {
		t.Fatalf("expected revision 1, got %d", store.Revision())
	}
	doc := store.ExportState()
	if len(doc.Clients) != 1 || doc.Clients[0].Name != "Ana" {
		t.Fatalf("unexpected clients: %+v", doc.Clients)
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreRunInTransactionWithoutChangesKeepsRevision(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.DeduplicateReminders(42)
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if store.Revision() != 0 {
		t.Fatalf("expected untouched revision, got %d", store.Revision())
	}
}

func TestStoreRunInTransactionRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateClient(domain.Client{Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ExportState().Clients) != 0 {
		t.Fatalf("expected no clients after rollback")
	}
}

func TestStoreRuleViolationBlocksCommit(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateBike(domain.Bike{ClientID: 1, Model: "Tarmac"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(store.ExportState().Bikes) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestStoreCommitHookFailureKeepsPreviousState(t *testing.T) {
	store := newTestStore(t)
	var seen []int64
	store.SetCommitHook(func(_ context.Context, next Document) error {
		seen = append(seen, next.Revision)
		if len(seen) > 1 {
			return domain.ErrStaleRevision
		}
		return nil
	})
	ctx := context.Background()
	create := func(name string) error {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateClient(domain.Client{Name: name})
			return err
		})
		return err
	}
	if err := create("first"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := create("second"); !errors.Is(err, domain.ErrStaleRevision) {
		t.Fatalf("expected stale revision, got %v", err)
	}
	doc := store.ExportState()
	if len(doc.Clients) != 1 || doc.Revision != 1 {
		t.Fatalf("expected state from first commit only, got %d clients rev %d", len(doc.Clients), doc.Revision)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("unexpected hook revisions %v", seen)
	}
}

func TestStoreViewIsIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateService(domain.ServiceRecord{BikeID: 1, Checklist: map[string]bool{"frenos": true}})
		return err
	}); err != nil {
		t.Fatalf("create service: %v", err)
	}
	err := store.View(ctx, func(view domain.TransactionView) error {
		services := view.ListServices()
		services[0].Checklist["frenos"] = false
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !store.ExportState().Services[0].Checklist["frenos"] {
		t.Fatalf("view mutation leaked into store")
	}
}

func TestStoreImportStateMigrates(t *testing.T) {
	store := newTestStore(t)
	report := store.ImportState(Document{
		Clients: []domain.Client{{ID: 20, Name: "B"}, {ID: 10, Name: "A"}},
	})
	if report.FromVersion != 0 || report.ToVersion != domain.SchemaVersion {
		t.Fatalf("unexpected versions %+v", report)
	}
	doc := store.ExportState()
	if doc.Clients[0].Name != "A" || doc.Clients[0].DisplayID != "1" || doc.Clients[1].DisplayID != "2" {
		t.Fatalf("unexpected display ids %+v", doc.Clients)
	}
	store.SetRevision(7)
	if store.Revision() != 7 {
		t.Fatalf("expected revision 7")
	}
}

func TestStoreFlushAdvancesRevisionThroughHook(t *testing.T) {
	store := newTestStore(t)
	var got int64
	store.SetCommitHook(func(_ context.Context, next Document) error {
		got = next.Revision
		return nil
	})
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got != 1 || store.Revision() != 1 {
		t.Fatalf("expected revision 1, hook saw %d store has %d", got, store.Revision())
	}
	store.SetCommitHook(func(context.Context, Document) error { return domain.ErrStaleRevision })
	if err := store.Flush(context.Background()); !errors.Is(err, domain.ErrStaleRevision) {
		t.Fatalf("expected stale revision, got %v", err)
	}
	if store.Revision() != 1 {
		t.Fatalf("failed flush must not advance revision")
	}
}
