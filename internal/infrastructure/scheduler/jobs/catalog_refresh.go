// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REFRESH JOB
// Reloads badge and rank definitions into the shared cache so catalog edits
// reach every worker without waiting for the cache TTL.
// ══════════════════════════════════════════════════════════════════════════════

// Refresher reloads a cached catalog.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogRefreshJob keeps the catalog cache warm.
type CatalogRefreshJob struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewCatalogRefreshJob creates the job.
func NewCatalogRefreshJob(refresher Refresher, logger *slog.Logger) *CatalogRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogRefreshJob{
		refresher: refresher,
		logger:    logger.With("job", "catalog_refresh"),
	}
}

// Name implements scheduler.Job.
func (j *CatalogRefreshJob) Name() string { return "catalog_refresh" }

// Description implements scheduler.Job.
func (j *CatalogRefreshJob) Description() string {
	return "Reload badge and rank definitions into the cache"
}

// Run implements scheduler.Job.
func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	return j.refresher.Refresh(ctx)
}
