package appconfig

import (
	"context"
	"fmt"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
	configports "ytd.app/adminctl/internal/core/ports/config"
)

// Aggregator merges multiple loader snapshots, honoring priorities.
type Aggregator struct {
	loaders   []configports.Loader
	validator configports.Validator
}

func NewAggregator(validator configports.Validator, loaders ...configports.Loader) *Aggregator {
	return &Aggregator{loaders: loaders, validator: validator}
}

// LoadSnapshot returns the merged snapshot, including CLI overrides as priority 1.
// A failing loader fails the whole load.
func (a *Aggregator) LoadSnapshot(ctx context.Context, overrides map[string]interface{}) (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot)
	for field, v := range overrides {
		snap[field] = configdomain.Entry{Key: field, Value: v, Source: "cli", SourcePath: "command_line_flag", Priority: configdomain.PriorityFlag}
	}

	for _, l := range a.loaders {
		s, err := l.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s config: %w", l.Name(), err)
		}
		snap.Merge(s)
	}
	return snap, nil
}

// Load returns the validated effective configuration and the snapshot it was built from
func (a *Aggregator) Load(ctx context.Context, overrides map[string]interface{}) (configdomain.Config, configdomain.Snapshot, error) {
	snap, err := a.LoadSnapshot(ctx, overrides)
	if err != nil {
		return configdomain.Config{}, nil, err
	}

	cfg := configdomain.Default()
	if err := cfg.Apply(snap); err != nil {
		return configdomain.Config{}, snap, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if a.validator != nil {
		if err := a.validator.Validate(cfg); err != nil {
			return configdomain.Config{}, snap, err
		}
	}
	return cfg, snap, nil
}
