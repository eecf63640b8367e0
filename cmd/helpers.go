package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/fairscan/leadmerge-cli/internal/registry"
	"github.com/fairscan/leadmerge-cli/internal/store"
	"github.com/fairscan/leadmerge-cli/internal/table"
	sfpkg "github.com/fairscan/leadmerge-cli/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (LEADMERGE_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

func loadRules() (*registry.Rules, error) {
	if cfg.Rules.Path != "" {
		return registry.LoadFile(cfg.Rules.Path)
	}
	return registry.Default()
}

// tableRows converts a table into the row maps the Sheets append helper
// takes, keeping only filled cells.
func tableRows(t *table.Table) []map[string]string {
	rows := make([]map[string]string, 0, len(t.Rows))
	for i := range t.Rows {
		row := make(map[string]string)
		for _, col := range t.Columns {
			if v := t.Cell(i, col); v != "" {
				row[col] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}
