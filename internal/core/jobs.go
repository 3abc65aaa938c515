package core

import (
	"context"
	"fmt"

	"probikes/pkg/domain"
)

func validateService(svc domain.ServiceRecord) error {
	if svc.BikeID == 0 {
		return fmt.Errorf("%w: service bike_id is required", domain.ErrInvalidInput)
	}
	for _, item := range svc.ExtraItems {
		switch item.Category {
		case "", domain.CategoryPart, domain.CategoryLabor:
		default:
			return fmt.Errorf("%w: unknown item category %q", domain.ErrInvalidInput, item.Category)
		}
	}
	return nil
}

// CreateService opens a job. The store assigns the id, intake date and total.
func (s *Service) CreateService(ctx context.Context, svc domain.ServiceRecord) (domain.ServiceRecord, Result, error) {
	var created domain.ServiceRecord
	res, err := s.run(ctx, "create_service", func(tx Transaction) error {
		if err := validateService(svc); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateService(svc)
		return err
	})
	return created, res, err
}

// UpdateService mutates a job; the total price is recomputed by the store.
func (s *Service) UpdateService(ctx context.Context, id int64, mutator func(*domain.ServiceRecord) error) (domain.ServiceRecord, Result, error) {
	var updated domain.ServiceRecord
	res, err := s.run(ctx, "update_service", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateService(id, func(svc *domain.ServiceRecord) error {
			if err := mutator(svc); err != nil {
				return err
			}
			return validateService(*svc)
		})
		return err
	})
	return updated, res, err
}

// UpdateServiceStatus sets the status, stamping date_out when the job is
// completed. raw may be any known spelling of a status.
func (s *Service) UpdateServiceStatus(ctx context.Context, id int64, raw string) (domain.ServiceRecord, Result, error) {
	var updated domain.ServiceRecord
	res, err := s.run(ctx, "update_service_status", func(tx Transaction) error {
		status, ok := domain.ParseServiceStatus(raw)
		if !ok {
			return fmt.Errorf("%w: unknown service status %q", domain.ErrInvalidInput, raw)
		}
		var err error
		updated, err = tx.UpdateService(id, func(svc *domain.ServiceRecord) error {
			svc.Status = status
			if status == domain.StatusCompleted {
				svc.DateOut = domain.FormatTimestamp(tx.Now())
			}
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteService removes a job.
func (s *Service) DeleteService(ctx context.Context, id int64) (Result, error) {
	return s.run(ctx, "delete_service", func(tx Transaction) error {
		return tx.DeleteService(id)
	})
}

// GetService returns a job by id.
func (s *Service) GetService(ctx context.Context, id int64) (domain.ServiceRecord, error) {
	var svc domain.ServiceRecord
	err := s.read(ctx, "get_service", func(view TransactionView) error {
		found, ok := view.FindService(id)
		if !ok {
			return domain.NotFound(domain.EntityService, id)
		}
		svc = found
		return nil
	})
	return svc, err
}

// BikeServices returns the jobs recorded for a bike.
func (s *Service) BikeServices(ctx context.Context, bikeID int64) ([]domain.ServiceRecord, error) {
	out := []domain.ServiceRecord{}
	err := s.read(ctx, "bike_services", func(view TransactionView) error {
		for _, svc := range view.ListServices() {
			if svc.BikeID == bikeID {
				out = append(out, svc)
			}
		}
		return nil
	})
	return out, err
}

// ClientServices returns the jobs of every bike the client owns.
func (s *Service) ClientServices(ctx context.Context, clientID int64) ([]domain.ServiceRecord, error) {
	out := []domain.ServiceRecord{}
	err := s.read(ctx, "client_services", func(view TransactionView) error {
		owned := make(map[int64]struct{})
		for _, b := range view.ListBikes() {
			if b.ClientID == clientID {
				owned[b.ID] = struct{}{}
			}
		}
		for _, svc := range view.ListServices() {
			if _, ok := owned[svc.BikeID]; ok {
				out = append(out, svc)
			}
		}
		return nil
	})
	return out, err
}
