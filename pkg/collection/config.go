package collection

import (
	"github.com/hashicorp/go-hclog"

	"github.com/openviking/vikingdb/pkg/index"
	"github.com/openviking/vikingdb/pkg/schema"
)

// Config holds the operational knobs a Collection is built with. Values not
// set by the caller fall back to DefaultConfig.
type Config struct {
	// DimPolicy governs what happens when an upserted vector's length
	// disagrees with the schema's declared dimension. Off (DimReject) by
	// default, matching strict validation; opt into Truncate/Pad explicitly.
	DimPolicy schema.DimPolicy

	// RebuildConfig parameterizes when the lifecycle scheduler rebuilds an
	// index instead of mutating it in place.
	RebuildConfig index.RebuildConfig

	// DefaultSparseAlpha weights the sparse component of hybrid search
	// scores when a request does not specify one.
	DefaultSparseAlpha float32

	// TTLCleanupSeconds and IndexMaintenanceSeconds record intervals for the
	// lifecycle scheduler's two periodic tasks. The scheduler does not read
	// them; pkg/vikingdb registers collections with its own Config values.
	TTLCleanupSeconds        int
	IndexMaintenanceSeconds  int

	Logger hclog.Logger
}

// DefaultConfig returns the configuration the core documents as its
// defaults: strict dimension checking, a quarter-tombstoned rebuild
// threshold, 10s TTL sweeps and 30s index maintenance ticks.
func DefaultConfig() Config {
	return Config{
		DimPolicy:               schema.DimReject,
		RebuildConfig:           index.DefaultRebuildConfig(),
		DefaultSparseAlpha:      0.5,
		TTLCleanupSeconds:       10,
		IndexMaintenanceSeconds: 30,
		Logger:                  hclog.NewNullLogger(),
	}
}

// Option configures a Collection at construction time.
type Option func(*Config)

// WithDimPolicy opts into dimension auto-adaptation instead of strict
// rejection on a mismatched vector length.
func WithDimPolicy(p schema.DimPolicy) Option {
	return func(c *Config) { c.DimPolicy = p }
}

// WithRebuildConfig overrides the rebuild-on-need thresholds.
func WithRebuildConfig(rc index.RebuildConfig) Option {
	return func(c *Config) { c.RebuildConfig = rc }
}

// WithLogger attaches a logger; the zero value is a no-op logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
