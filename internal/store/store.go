// Package store persists merge runs, the crawl cache, and daily quota
// counters behind a driver-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fairscan/leadmerge-cli/internal/config"
	"github.com/fairscan/leadmerge-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the merge pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, scanPath, sheetPath string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID, outputPath string, stats *model.MergeStats) error
	FailRun(ctx context.Context, runID, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Site crawl cache
	GetCachedSite(ctx context.Context, url string) (*model.CachedSite, error)
	SetCachedSite(ctx context.Context, url, text string, ttl time.Duration) error
	DeleteExpiredSites(ctx context.Context) (int, error)

	// Daily quota, keyed by UTC day
	IncrQuota(ctx context.Context, day string, crawls, extractions int) (*model.QuotaUsage, error)
	GetQuota(ctx context.Context, day string) (*model.QuotaUsage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Day formats t as the UTC quota key.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// New opens the store named by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
