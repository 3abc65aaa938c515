package core

import (
	"context"
	"fmt"

	"probikes/pkg/domain"
)

func validateBike(b domain.Bike) error {
	if b.ClientID == 0 {
		return fmt.Errorf("%w: bike client_id is required", domain.ErrInvalidInput)
	}
	return nil
}

// CreateBike persists a new bike.
func (s *Service) CreateBike(ctx context.Context, bike domain.Bike) (domain.Bike, Result, error) {
	var created domain.Bike
	res, err := s.run(ctx, "create_bike", func(tx Transaction) error {
		if err := validateBike(bike); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateBike(bike)
		return err
	})
	return created, res, err
}

// UpdateBike mutates a bike.
func (s *Service) UpdateBike(ctx context.Context, id int64, mutator func(*domain.Bike) error) (domain.Bike, Result, error) {
	var updated domain.Bike
	res, err := s.run(ctx, "update_bike", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateBike(id, func(b *domain.Bike) error {
			if err := mutator(b); err != nil {
				return err
			}
			return validateBike(*b)
		})
		return err
	})
	return updated, res, err
}

// DeleteBike removes a bike. Its services and reminders are kept.
func (s *Service) DeleteBike(ctx context.Context, id int64) (Result, error) {
	return s.run(ctx, "delete_bike", func(tx Transaction) error {
		return tx.DeleteBike(id)
	})
}

// GetBike returns a bike by id.
func (s *Service) GetBike(ctx context.Context, id int64) (domain.Bike, error) {
	var bike domain.Bike
	err := s.read(ctx, "get_bike", func(view TransactionView) error {
		b, ok := view.FindBike(id)
		if !ok {
			return domain.NotFound(domain.EntityBike, id)
		}
		bike = b
		return nil
	})
	return bike, err
}

// ListBikes returns every bike.
func (s *Service) ListBikes(ctx context.Context) ([]domain.Bike, error) {
	var out []domain.Bike
	err := s.read(ctx, "list_bikes", func(view TransactionView) error {
		out = view.ListBikes()
		return nil
	})
	return out, err
}

// ClientBikes returns the bikes owned by clientID.
func (s *Service) ClientBikes(ctx context.Context, clientID int64) ([]domain.Bike, error) {
	out := []domain.Bike{}
	err := s.read(ctx, "client_bikes", func(view TransactionView) error {
		for _, b := range view.ListBikes() {
			if b.ClientID == clientID {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}
