package core

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"probikes/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewReferenceIntegrityRule())
	engine.Register(NewPriceTotalRule())
	return engine
}

// NewReferenceIntegrityRule warns when a created or updated record points at
// a bike or client that does not exist. Orphans are tolerated by every read.
func NewReferenceIntegrityRule() domain.Rule {
	return referenceIntegrityRule{}
}

type referenceIntegrityRule struct{}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (r referenceIntegrityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	warn := func(entity domain.EntityType, id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, change := range changes {
		if change.Action == domain.ActionDelete || change.After == nil {
			continue
		}
		switch change.Entity {
		case domain.EntityBike:
			if b, ok := findBike(view, change.ID); ok {
				if _, ok := view.FindClient(b.ClientID); !ok {
					warn(change.Entity, change.ID, fmt.Sprintf("bike references missing client %d", b.ClientID))
				}
			}
		case domain.EntityService:
			if svc, ok := findService(view, change.ID); ok {
				if _, ok := view.FindBike(svc.BikeID); !ok {
					warn(change.Entity, change.ID, fmt.Sprintf("service references missing bike %d", svc.BikeID))
				}
			}
		case domain.EntityReminder:
			id, err := strconv.ParseFloat(change.ID, 64)
			if err != nil {
				continue
			}
			if rem, ok := view.FindReminder(id); ok {
				if _, ok := view.FindBike(rem.BikeID); !ok {
					warn(change.Entity, change.ID, fmt.Sprintf("reminder references missing bike %d", rem.BikeID))
				}
			}
		}
	}
	return res, nil
}

// NewPriceTotalRule blocks a commit that leaves a service whose total price
// differs from its base price plus extra items.
func NewPriceTotalRule() domain.Rule {
	return priceTotalRule{}
}

type priceTotalRule struct{}

func (priceTotalRule) Name() string { return "price_total" }

func (r priceTotalRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityService || change.After == nil {
			continue
		}
		svc, ok := findService(view, change.ID)
		if !ok {
			continue
		}
		if want := svc.ComputeTotal(); math.Abs(want-svc.TotalPrice) > 1e-6 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("service %d total %.2f does not match computed %.2f", svc.ID, svc.TotalPrice, want),
				Entity:   domain.EntityService,
				EntityID: change.ID,
			})
		}
	}
	return res, nil
}

func findBike(view domain.TransactionView, id string) (domain.Bike, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.Bike{}, false
	}
	return view.FindBike(n)
}

func findService(view domain.TransactionView, id string) (domain.ServiceRecord, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.ServiceRecord{}, false
	}
	return view.FindService(n)
}
