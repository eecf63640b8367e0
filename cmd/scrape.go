package main

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/crawl"
	"github.com/fairscan/leadmerge-cli/internal/export"
	"github.com/fairscan/leadmerge-cli/internal/extract"
	"github.com/fairscan/leadmerge-cli/internal/loader"
	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/scrape"
	"github.com/fairscan/leadmerge-cli/internal/table"
	anthropicpkg "github.com/fairscan/leadmerge-cli/pkg/anthropic"
	"github.com/fairscan/leadmerge-cli/pkg/gsheets"
)

var (
	scrapeIn       string
	scrapeURLsFile string
	scrapeOut      string
	scrapeSnapshot string
	scrapeToSheets bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url...]",
	Short: "Crawl company websites and extract lead fields",
	Long:  "Crawls each site, feeds the page text to Claude, and writes one record per site. With --in, reads site URLs from a spreadsheet and writes the sheet back enriched. Failed sites yield failure records so the batch always completes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		var (
			rows   []model.Record
			urlCol string
		)
		urls := args
		if scrapeIn != "" {
			var err error
			rows, err = loader.Workbook(scrapeIn)
			if err != nil {
				return err
			}
			urlCol, err = scrape.FindURLColumn(table.Materialize(rows).Columns)
			if err != nil {
				return err
			}
			urls = append(urls, scrape.RowURLs(rows, urlCol)...)
		}
		urls, err := collectURLs(urls, scrapeURLsFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if n, err := st.DeleteExpiredSites(ctx); err != nil {
			zap.L().Warn("site cache cleanup failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("expired site cache entries removed", zap.Int("count", n))
		}

		p := &scrape.Pipeline{
			Fetcher:      crawl.New(cfg.Crawl, st),
			Extractor:    extract.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Extract, cfg.Anthropic),
			Quota:        st,
			Limits:       cfg.Quota,
			Workers:      cfg.Crawl.Workers,
			SnapshotPath: scrapeSnapshot,
		}

		records, err := p.Run(ctx, urls)
		if err != nil {
			return err
		}

		if rows != nil {
			enriched, touched := scrape.Enrich(rows, urlCol, records)
			if err := export.WriteXLSX(scrapeOut, table.Materialize(enriched)); err != nil {
				return err
			}
			zap.L().Info("scrape complete",
				zap.Int("sites", len(records)),
				zap.Int("rows_enriched", touched),
				zap.String("output", scrapeOut),
			)
			return nil
		}

		if err := writeRecords(scrapeOut, records); err != nil {
			return err
		}
		zap.L().Info("scrape complete",
			zap.Int("sites", len(records)),
			zap.String("output", scrapeOut),
		)

		if scrapeToSheets {
			rows := make([]map[string]string, len(records))
			for i, rec := range records {
				rows[i] = map[string]string(rec)
			}
			client := gsheets.NewClient(cfg.Sheets.Token, gsheets.WithBaseURL(cfg.Sheets.BaseURL))
			n, err := gsheets.AppendTable(ctx, client, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, scrapeColumns(), rows)
			if err != nil {
				return eris.Wrap(err, "sheets append")
			}
			zap.L().Info("sheets append complete", zap.Int("rows", n))
		}

		return nil
	},
}

// collectURLs gathers site URLs from args and an optional file, one URL
// per line, '#' lines ignored.
func collectURLs(args []string, path string) ([]string, error) {
	urls := append([]string{}, args...)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open urls file %s", path)
		}
		defer f.Close() //nolint:errcheck

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			urls = append(urls, line)
		}
		if err := sc.Err(); err != nil {
			return nil, eris.Wrapf(err, "read urls file %s", path)
		}
	}

	if len(urls) == 0 {
		return nil, eris.New("no site urls: pass them as arguments or via --urls")
	}
	return urls, nil
}

func writeRecords(path string, records any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal records")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

// scrapeColumns is the sheet header for scraped records: the extraction
// fields plus the failure bookkeeping columns.
func scrapeColumns() []string {
	return append(append([]string{}, extract.Fields...), "status", "error")
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeIn, "in", "", "spreadsheet with a site URL column; output is the sheet enriched with scraped fields")
	scrapeCmd.Flags().StringVar(&scrapeURLsFile, "urls", "", "file with one site URL per line")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "scraped.json", "output path (.json, or .xlsx with --in)")
	scrapeCmd.Flags().StringVar(&scrapeSnapshot, "snapshot", "", "write partial results here after every site")
	scrapeCmd.Flags().BoolVar(&scrapeToSheets, "sheets", false, "append scraped records to the configured Google Sheet")
	rootCmd.AddCommand(scrapeCmd)
}
