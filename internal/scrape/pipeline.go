// Package scrape drives the crawl-then-extract pipeline that produces
// scan-shaped lead records from a list of websites.
package scrape

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fairscan/leadmerge-cli/internal/config"
	"github.com/fairscan/leadmerge-cli/internal/extract"
	"github.com/fairscan/leadmerge-cli/internal/model"
)

// SiteFetcher fetches a site's plaintext.
type SiteFetcher interface {
	SiteText(ctx context.Context, root string) (string, error)
}

// FieldExtractor extracts lead fields from site text.
type FieldExtractor interface {
	Site(ctx context.Context, siteURL, text string) (model.Record, error)
}

// QuotaStore tracks daily upstream usage.
type QuotaStore interface {
	GetQuota(ctx context.Context, day string) (*model.QuotaUsage, error)
	IncrQuota(ctx context.Context, day string, crawls, extractions int) (*model.QuotaUsage, error)
}

// Pipeline crawls sites concurrently and extracts fields from each.
type Pipeline struct {
	Fetcher   SiteFetcher
	Extractor FieldExtractor
	Quota     QuotaStore
	Limits    config.QuotaConfig
	Workers   int

	// SnapshotPath, when set, receives the accumulated records as JSON
	// after every completed site so long runs survive interruption.
	SnapshotPath string
}

// Run processes the given site URLs and returns one record per site.
// Sites that fail crawling or extraction yield failure records rather
// than aborting the batch.
func (p *Pipeline) Run(ctx context.Context, urls []string) ([]model.Record, error) {
	urls = dedupe(urls)
	if len(urls) == 0 {
		return nil, eris.New("scrape: no site urls")
	}

	urls, err := p.capToQuota(ctx, urls)
	if err != nil {
		return nil, err
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 5
	}

	results := make([]model.Record, len(urls))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range urls {
		g.Go(func() error {
			rec := p.processSite(gctx, u)

			mu.Lock()
			results[i] = rec
			done++
			if p.SnapshotPath != "" {
				p.flushSnapshot(results)
			}
			n := done
			mu.Unlock()

			zap.L().Info("scrape: site processed",
				zap.String("url", u),
				zap.Int("done", n),
				zap.Int("total", len(urls)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scrape: pipeline")
	}
	return results, nil
}

func (p *Pipeline) processSite(ctx context.Context, siteURL string) model.Record {
	text, err := p.Fetcher.SiteText(ctx, siteURL)
	if err != nil {
		p.recordUsage(ctx, 1, 0)
		zap.L().Warn("scrape: crawl failed", zap.String("url", siteURL), zap.Error(err))
		return extract.FailureRecord(siteURL, err)
	}

	rec, err := p.Extractor.Site(ctx, siteURL, text)
	p.recordUsage(ctx, 1, 1)
	if err != nil {
		zap.L().Warn("scrape: extraction failed", zap.String("url", siteURL), zap.Error(err))
		return extract.FailureRecord(siteURL, err)
	}
	return rec
}

// recordUsage bumps today's counters as soon as the work happened, so an
// interrupted batch still accounts for the sites it finished. A failed
// crawl consumes no extraction quota.
func (p *Pipeline) recordUsage(ctx context.Context, crawls, extractions int) {
	if p.Quota == nil {
		return
	}
	if _, err := p.Quota.IncrQuota(ctx, day(), crawls, extractions); err != nil {
		zap.L().Warn("scrape: quota update failed", zap.Error(err))
	}
}

// capToQuota truncates the batch to what today's quota still allows.
func (p *Pipeline) capToQuota(ctx context.Context, urls []string) ([]string, error) {
	if p.Quota == nil {
		return urls, nil
	}
	usage, err := p.Quota.GetQuota(ctx, day())
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read quota")
	}

	remaining := p.Limits.DailyCrawls - usage.Crawls
	if r := p.Limits.DailyExtractions - usage.Extractions; r < remaining {
		remaining = r
	}
	if remaining <= 0 {
		return nil, eris.Errorf("scrape: daily quota exhausted (crawls %d/%d, extractions %d/%d)",
			usage.Crawls, p.Limits.DailyCrawls, usage.Extractions, p.Limits.DailyExtractions)
	}
	if len(urls) > remaining {
		zap.L().Warn("scrape: batch capped by daily quota",
			zap.Int("requested", len(urls)),
			zap.Int("allowed", remaining),
		)
		urls = urls[:remaining]
	}
	return urls, nil
}

// flushSnapshot writes the records gathered so far. Caller holds the lock.
func (p *Pipeline) flushSnapshot(results []model.Record) {
	var present []model.Record
	for _, r := range results {
		if r != nil {
			present = append(present, r)
		}
	}
	data, err := json.MarshalIndent(present, "", "  ")
	if err != nil {
		zap.L().Warn("scrape: snapshot marshal failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(p.SnapshotPath, data, 0o644); err != nil {
		zap.L().Warn("scrape: snapshot write failed", zap.Error(err))
	}
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func day() string {
	return time.Now().UTC().Format("2006-01-02")
}
