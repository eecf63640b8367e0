package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/export"
	"github.com/fairscan/leadmerge-cli/internal/loader"
	"github.com/fairscan/leadmerge-cli/internal/merge"
	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/store"
	"github.com/fairscan/leadmerge-cli/internal/table"
	"github.com/fairscan/leadmerge-cli/pkg/gsheets"
	notionpkg "github.com/fairscan/leadmerge-cli/pkg/notion"
)

var (
	mergeScans    string
	mergeSheet    string
	mergeOut      string
	mergeToSheets bool
	mergeToFTP    bool
	mergeToSF     bool
	mergeToNotion bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge scanned lead records with a spreadsheet export",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("merge"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, tbl, err := runMerge(ctx, st, mergeScans, mergeSheet, mergeOut)
		if err != nil {
			return err
		}

		if failed := deliver(ctx, tbl); failed > 0 {
			zap.L().Warn("some sinks failed; merge output is unaffected", zap.Int("failed", failed))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// runMerge executes one full merge: load, merge, post-process, write the
// workbook, and record the run. Failures are recorded before returning.
func runMerge(ctx context.Context, st store.Store, scanPath, sheetPath, outPath string) (*model.Run, *table.Table, error) {
	run, err := st.CreateRun(ctx, scanPath, sheetPath)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create run")
	}

	fail := func(err error) (*model.Run, *table.Table, error) {
		if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			zap.L().Error("record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, nil, err
	}

	scans, err := loader.ScanJSON(scanPath)
	if err != nil {
		return fail(err)
	}

	var sheets []model.Record
	if sheetPath != "" {
		sheets, err = loader.Workbook(sheetPath)
		if err != nil {
			return fail(err)
		}
	}

	merged, stats, err := merge.NewEngine().Merge(scans, sheets)
	if err != nil {
		return fail(err)
	}

	rules, err := loadRules()
	if err != nil {
		return fail(err)
	}

	tbl := table.PostProcess(table.Materialize(merged), rules)
	stats.OutputRows = len(tbl.Rows)
	stats.OutputCols = len(tbl.Columns)

	if err := export.WriteXLSX(outPath, tbl); err != nil {
		return fail(err)
	}

	if err := st.CompleteRun(ctx, run.ID, outPath, &stats); err != nil {
		return nil, nil, eris.Wrap(err, "complete run")
	}

	run, err = st.GetRun(ctx, run.ID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "reload run")
	}

	zap.L().Info("merge complete",
		zap.String("run_id", run.ID),
		zap.Int("scan_records", stats.ScanRecords),
		zap.Int("sheet_records", stats.SheetRecords),
		zap.Int("fused", stats.Fused),
		zap.Int("output_rows", stats.OutputRows),
		zap.String("output", outPath),
	)
	return run, tbl, nil
}

// deliver pushes the merged table to whichever sinks were requested.
// A sink failure is logged and the remaining sinks still run; the merge
// itself is already recorded and written by the time sinks start.
// Returns the number of sinks that failed.
func deliver(ctx context.Context, tbl *table.Table) int {
	failed := 0
	push := func(sink string, fn func() error) {
		if err := fn(); err != nil {
			failed++
			zap.L().Error("sink failed", zap.String("sink", sink), zap.Error(err))
		}
	}

	if mergeToSheets {
		push("sheets", func() error {
			client := gsheets.NewClient(cfg.Sheets.Token, gsheets.WithBaseURL(cfg.Sheets.BaseURL))
			n, err := gsheets.AppendTable(ctx, client, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, tbl.Columns, tableRows(tbl))
			if err != nil {
				return err
			}
			zap.L().Info("sheets append complete", zap.Int("rows", n))
			return nil
		})
	}

	if mergeToFTP {
		push("ftp", func() error {
			return export.FTPUpload(ctx, cfg.FTP, mergeOut)
		})
	}

	if mergeToSF {
		push("salesforce", func() error {
			sf, err := initSalesforce()
			if err != nil {
				return err
			}
			sink := &export.SalesforceSink{Client: sf}
			_, err = sink.Push(ctx, tbl)
			return err
		})
	}

	if mergeToNotion {
		push("notion", func() error {
			sink := &export.NotionSink{
				Client:   notionpkg.NewClient(cfg.Notion.Token),
				ReviewDB: cfg.Notion.ReviewDB,
			}
			_, err := sink.PushConflicts(ctx, tbl)
			return err
		})
	}

	return failed
}

func init() {
	mergeCmd.Flags().StringVar(&mergeScans, "scans", "", "scan results JSON file (required)")
	mergeCmd.Flags().StringVar(&mergeSheet, "sheet", "", "spreadsheet export (.xlsx)")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "merged.xlsx", "output workbook path")
	mergeCmd.Flags().BoolVar(&mergeToSheets, "sheets", false, "append merged rows to the configured Google Sheet")
	mergeCmd.Flags().BoolVar(&mergeToFTP, "ftp", false, "upload the output workbook to the configured FTP server")
	mergeCmd.Flags().BoolVar(&mergeToSF, "salesforce", false, "insert merged rows as Salesforce Leads")
	mergeCmd.Flags().BoolVar(&mergeToNotion, "notion", false, "file conflicted rows into the Notion review database")
	_ = mergeCmd.MarkFlagRequired("scans")
	rootCmd.AddCommand(mergeCmd)
}
