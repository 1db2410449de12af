package ports

import (
	"context"

	"github.com/reglet-dev/capkit/domain/entities"
)

// CatalogStore persists capability advertisements.
type CatalogStore interface {
	Put(ctx context.Context, def entities.CapabilityDefinition) error
	Get(ctx context.Context, id entities.CapabilityID) (entities.CapabilityDefinition, error)
	List(ctx context.Context) ([]entities.CapabilityDefinition, error)
	Delete(ctx context.Context, id entities.CapabilityID) error
}
