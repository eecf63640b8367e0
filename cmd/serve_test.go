package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/fairscan/leadmerge-cli/internal/config"
	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	cfg = &config.Config{}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(newRouter(st))
	t.Cleanup(srv.Close)
	return srv, st
}

func TestServeHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeListRuns(t *testing.T) {
	srv, st := newTestServer(t)

	run, err := st.CreateRun(t.Context(), "scans.json", "")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/runs?status=running")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, run.ID, body.Runs[0].ID)
}

func TestServeGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeQuota(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/quota")
	require.NoError(t, err)
	defer resp.Body.Close()

	var usage model.QuotaUsage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&usage))
	assert.Zero(t, usage.Crawls)
	assert.Zero(t, usage.Extractions)
}

func TestServeMerge(t *testing.T) {
	srv, _ := newTestServer(t)

	scans := `[
		{
			"file_id": "f1",
			"file_name": "badge.pdf",
			"result": [
				{"page": 1, "result": {"CompanyNameEN": "Acme Trading", "Website": "https://acme.example", "Phone1": "09121234567"}}
			]
		}
	]`

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("scans", "scans.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(scans))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/merge", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))

	runID := resp.Header.Get("X-Run-Id")
	require.NotEmpty(t, runID)

	// the response body is the merged workbook
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	wbPath := filepath.Join(t.TempDir(), "resp.xlsx")
	require.NoError(t, os.WriteFile(wbPath, body, 0o644))

	wb, err := xlsx.OpenFile(wbPath)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	require.Len(t, wb.Sheets[0].Rows, 2, "header plus one merged row")

	var header []string
	for _, c := range wb.Sheets[0].Rows[0].Cells {
		header = append(header, c.String())
	}
	assert.Contains(t, header, "CompanyNameEN")

	// the run record points at a workbook that survives the request
	runResp, err := http.Get(srv.URL + "/api/runs/" + runID)
	require.NoError(t, err)
	defer runResp.Body.Close()

	var run model.Run
	require.NoError(t, json.NewDecoder(runResp.Body).Decode(&run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Stats)
	assert.Equal(t, 1, run.Stats.ScanRecords)
	assert.Equal(t, 1, run.Stats.OutputRows)

	_, err = os.Stat(run.OutputPath)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(run.OutputPath) })
}

func TestServeMergeMissingScans(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/merge", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
