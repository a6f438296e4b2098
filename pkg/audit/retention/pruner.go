// Package retention prunes aged audit records for backends without
// native TTL support.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain records.
	// 0 means keep records forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables scheduling.
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces the retention policy on an audit store.
type Pruner struct {
	storage   audit.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a retention pruner.
func NewPruner(storage audit.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	pruner := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.retention"),
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes records older than the retention period. Returns the
// number of records removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)

	deleted, err := p.storage.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("retention prune failed", "error", err)
		return 0, err
	}

	if deleted > 0 {
		p.logger.Info("pruned aged audit records",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return deleted, nil
}

// Start begins scheduled pruning per the configured cron expression.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop halts scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}
