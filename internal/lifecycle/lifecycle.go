// Package lifecycle sequences a full client startup for one dataset:
// kill running clients, patch the executable, install add-ons, clear the
// cache, point the realmlist at the server, and spawn fresh instances.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mittelgard/clientforge/internal/client"
	"github.com/mittelgard/clientforge/internal/config"
	"github.com/mittelgard/clientforge/internal/patch"
	"github.com/mittelgard/clientforge/internal/process"
)

// Orchestrator owns the process registry and the patch engine and drives
// lifecycle operations per dataset. One orchestrator serves the whole
// process; datasets are independent of each other.
type Orchestrator struct {
	cfg      *config.Config
	engine   *patch.Engine
	registry *process.Registry
}

// New wires an orchestrator from loaded configuration and catalog.
func New(cfg *config.Config, catalog *patch.Catalog) *Orchestrator {
	return &Orchestrator{
		cfg: cfg,
		engine: patch.NewEngine(patch.Options{
			Catalog:    catalog,
			ModulePath: cfg.ExtensionModulePath(),
		}),
		registry: process.NewRegistry(&process.ClientLauncher{Wine: cfg.Wine}),
	}
}

// NewWith wires an orchestrator with explicit engine and registry.
// Used by tests to substitute fakes.
func NewWith(cfg *config.Config, engine *patch.Engine, registry *process.Registry) *Orchestrator {
	return &Orchestrator{cfg: cfg, engine: engine, registry: registry}
}

// Registry exposes the process registry for kill/count queries.
func (o *Orchestrator) Registry() *process.Registry {
	return o.registry
}

// Patch applies the dataset's patch selection to its executable.
func (o *Orchestrator) Patch(ds *config.Dataset) error {
	return o.engine.Apply(ds)
}

// Startup performs the full sequence for a dataset. Every step's failure
// aborts the remaining steps; there is no rollback of completed steps.
func (o *Orchestrator) Startup(ctx context.Context, ds *config.Dataset, count int, ip string) error {
	log.Info().
		Str("dataset", ds.Name).
		Int("count", count).
		Str("ip", ip).
		Msg("startup begin")

	o.registry.Adopt(ctx, ds)
	killed := o.registry.Kill(ctx, ds.Name)
	if killed > 0 {
		log.Info().Str("dataset", ds.Name).Int("killed", killed).Msg("previous clients stopped")
	}

	if err := o.engine.Apply(ds); err != nil {
		return fmt.Errorf("apply patches: %w", err)
	}

	if err := client.InstallAddons(o.cfg.AddonDistDir(), ds); err != nil {
		return fmt.Errorf("install addons: %w", err)
	}

	if err := client.ClearCache(ds); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	if err := client.WriteRealmlist(ds, ip); err != nil {
		return fmt.Errorf("write realmlist: %w", err)
	}

	if err := o.registry.Start(ctx, ds, count); err != nil {
		return fmt.Errorf("start clients: %w", err)
	}

	log.Info().Str("dataset", ds.Name).Msg("startup complete")
	return nil
}
