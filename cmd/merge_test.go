package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairscan/leadmerge-cli/internal/config"
	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/table"
)

func TestDeliver_SinkFailuresDoNotAbortRemainingSinks(t *testing.T) {
	sheetsCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sheetsCalled = true
		http.Error(w, `{"error":{"message":"permission denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "merged.xlsx")
	require.NoError(t, os.WriteFile(out, []byte("workbook"), 0o644))

	cfg = &config.Config{}
	cfg.Sheets.Token = "tok"
	cfg.Sheets.BaseURL = srv.URL
	cfg.Sheets.SpreadsheetID = "sheet-id"
	cfg.Sheets.SheetName = "Leads"
	cfg.FTP.Host = "127.0.0.1:1"

	mergeToSheets = true
	mergeToFTP = true
	mergeOut = out
	defer func() {
		mergeToSheets = false
		mergeToFTP = false
		mergeOut = ""
	}()

	tbl := table.Materialize([]model.Record{{"Website": "acme.example"}})

	failed := deliver(context.Background(), tbl)
	assert.Equal(t, 2, failed, "both sinks failed, neither aborted delivery")
	assert.True(t, sheetsCalled)
}

func TestDeliver_NoSinksRequested(t *testing.T) {
	cfg = &config.Config{}
	tbl := table.Materialize([]model.Record{{"Website": "acme.example"}})
	assert.Zero(t, deliver(context.Background(), tbl))
}
