package core

import (
	"context"
	"time"

	"probikes/pkg/domain"
)

// ServiceFinalized is published after a finalize transaction commits for a
// service that sold parts.
type ServiceFinalized struct {
	Service     domain.ServiceRecord `json:"service"`
	Bike        domain.Bike          `json:"bike"`
	Client      domain.Client        `json:"client"`
	Parts       []domain.ExtraItem   `json:"parts"`
	FinalizedAt time.Time            `json:"finalized_at"`
}

// Publisher receives domain events. Implementations must not block the caller
// and report their own failures.
type Publisher interface {
	Publish(ctx context.Context, event ServiceFinalized)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event ServiceFinalized)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event ServiceFinalized) { f(ctx, event) }
