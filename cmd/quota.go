package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fairscan/leadmerge-cli/internal/store"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's crawl and extraction quota usage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		day := store.Day(time.Now())
		usage, err := st.GetQuota(ctx, day)
		if err != nil {
			return eris.Wrap(err, "get quota")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Day:\t%s\n", day)
		_, _ = fmt.Fprintf(w, "Crawls:\t%d / %d\n", usage.Crawls, cfg.Quota.DailyCrawls)
		_, _ = fmt.Fprintf(w, "Extractions:\t%d / %d\n", usage.Extractions, cfg.Quota.DailyExtractions)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}
