package core

import (
	"context"
	"fmt"
	"strings"

	"probikes/pkg/domain"
)

func validateClient(c *domain.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: client name is required", domain.ErrInvalidInput)
	}
	if c.UsageTier == "" {
		c.UsageTier = domain.TierCasual
	}
	if !c.UsageTier.Valid() {
		return fmt.Errorf("%w: unknown usage tier %q", domain.ErrInvalidInput, c.UsageTier)
	}
	return nil
}

// CreateClient persists a new client with a fresh id and display id.
func (s *Service) CreateClient(ctx context.Context, client domain.Client) (domain.Client, Result, error) {
	var created domain.Client
	res, err := s.run(ctx, "create_client", func(tx Transaction) error {
		if err := validateClient(&client); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateClient(client)
		return err
	})
	return created, res, err
}

// UpdateClient mutates a client using the provided mutator.
func (s *Service) UpdateClient(ctx context.Context, id int64, mutator func(*domain.Client) error) (domain.Client, Result, error) {
	var updated domain.Client
	res, err := s.run(ctx, "update_client", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateClient(id, func(c *domain.Client) error {
			if err := mutator(c); err != nil {
				return err
			}
			return validateClient(c)
		})
		return err
	})
	return updated, res, err
}

// DeleteClient soft deletes a client. Bikes, services and reminders stay.
func (s *Service) DeleteClient(ctx context.Context, id int64) (Result, error) {
	return s.run(ctx, "delete_client", func(tx Transaction) error {
		return tx.SoftDeleteClient(id)
	})
}

// GetClient returns a client, including soft-deleted ones.
func (s *Service) GetClient(ctx context.Context, id int64) (domain.Client, error) {
	var client domain.Client
	err := s.read(ctx, "get_client", func(view TransactionView) error {
		c, ok := view.FindClient(id)
		if !ok {
			return domain.NotFound(domain.EntityClient, id)
		}
		client = c
		return nil
	})
	return client, err
}

// ListClients returns the clients that are not soft deleted.
func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	out := []domain.Client{}
	err := s.read(ctx, "list_clients", func(view TransactionView) error {
		for _, c := range view.ListClients() {
			if !c.IsDeleted {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

// SearchClients matches query case-insensitively against the name and as a
// substring of the phone. An empty query matches nothing.
func (s *Service) SearchClients(ctx context.Context, query string) ([]domain.Client, error) {
	out := []domain.Client{}
	err := s.read(ctx, "search_clients", func(view TransactionView) error {
		out = SearchClients(view, query)
		return nil
	})
	return out, err
}

// SearchClients is the pure search over a view.
func SearchClients(view TransactionView, query string) []domain.Client {
	out := []domain.Client{}
	if query == "" {
		return out
	}
	lower := strings.ToLower(query)
	for _, c := range view.ListClients() {
		if c.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(c.Name), lower) || strings.Contains(c.Phone, query) {
			out = append(out, c)
		}
	}
	return out
}
