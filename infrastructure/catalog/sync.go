package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/ports"
	"golang.org/x/sync/errgroup"
)

// Describer produces the advertisement of a registered capability.
// *dispatch.Dispatcher satisfies it.
type Describer interface {
	Describe(ctx context.Context, id entities.CapabilityID) (entities.CapabilityDefinition, error)
}

type syncConfig struct {
	now         func() time.Time
	concurrency int
	prune       bool
}

func defaultSyncConfig() syncConfig {
	return syncConfig{
		now:         time.Now,
		concurrency: 4,
	}
}

// SyncOption configures Sync.
type SyncOption func(*syncConfig)

// WithPrune deletes stored definitions whose identifier is not in the synced set.
func WithPrune() SyncOption {
	return func(c *syncConfig) { c.prune = true }
}

// WithSyncConcurrency bounds how many capabilities are described at once.
func WithSyncConcurrency(n int) SyncOption {
	return func(c *syncConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock overrides the timestamp source for UpdatedAt.
func WithClock(now func() time.Time) SyncOption {
	return func(c *syncConfig) { c.now = now }
}

// Sync describes each capability in ids and stores the result. Describing may
// construct capabilities. Nothing is written unless every description succeeds.
func Sync(ctx context.Context, store ports.CatalogStore, d Describer, ids []entities.CapabilityID, opts ...SyncOption) error {
	cfg := defaultSyncConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	defs := make([]entities.CapabilityDefinition, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			def, err := d.Describe(gctx, id)
			if err != nil {
				return fmt.Errorf("describe %s: %w", id, err)
			}
			defs[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := cfg.now().UTC()
	keep := make(map[entities.CapabilityID]bool, len(defs))
	for _, def := range defs {
		def.UpdatedAt = now
		if err := store.Put(ctx, def); err != nil {
			return err
		}
		keep[def.ID] = true
	}

	if !cfg.prune {
		return nil
	}
	stored, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, def := range stored {
		if !keep[def.ID] {
			if err := store.Delete(ctx, def.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
