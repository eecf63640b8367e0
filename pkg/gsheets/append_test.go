package gsheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSheet serves the values API against an in-memory grid.
type fakeSheet struct {
	header []string
	rows   [][]string
}

func (f *fakeSheet) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(valueRange{Values: [][]string{f.header}})
		case r.Method == http.MethodPut:
			var vr valueRange
			require.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
			require.Len(t, vr.Values, 1)
			f.header = vr.Values[0]
			_ = json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, ":append"):
			var vr valueRange
			require.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
			f.rows = append(f.rows, vr.Values...)
			_ = json.NewEncoder(w).Encode(map[string]any{})
		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	})
}

func TestAppendTable_FreshSheetWritesHeader(t *testing.T) {
	sheet := &fakeSheet{}
	srv := httptest.NewServer(sheet.handler(t))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	n, err := AppendTable(context.Background(), c, "sheet-id", "Leads",
		[]string{"Website", "Phone1"},
		[]map[string]string{{"Website": "a.example", "Phone1": "0912"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Website", "Phone1"}, sheet.header)
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, []string{"a.example", "0912"}, sheet.rows[0])
}

func TestAppendTable_ReconcilesNewColumns(t *testing.T) {
	sheet := &fakeSheet{header: []string{"Website", "Email"}}
	srv := httptest.NewServer(sheet.handler(t))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	n, err := AppendTable(context.Background(), c, "sheet-id", "Leads",
		[]string{"Phone1", "Website"},
		[]map[string]string{{"Website": "b.example", "Phone1": "0911"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// existing columns keep their positions, Phone1 lands at the end
	assert.Equal(t, []string{"Website", "Email", "Phone1"}, sheet.header)
	assert.Equal(t, []string{"b.example", "", "0911"}, sheet.rows[0])
}

func TestAppendTable_MatchingHeaderSkipsUpdate(t *testing.T) {
	sheet := &fakeSheet{header: []string{"Website"}}
	updates := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			updates++
		}
		sheet.handler(t).ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	_, err := AppendTable(context.Background(), c, "sheet-id", "Leads",
		[]string{"Website"},
		[]map[string]string{{"Website": "c.example"}},
	)
	require.NoError(t, err)
	assert.Zero(t, updates)
}

func TestAppendTable_EmptyRowsNoCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no API call expected")
	}))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	n, err := AppendTable(context.Background(), c, "sheet-id", "Leads", []string{"Website"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetValues_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	_, err := c.GetValues(context.Background(), "sheet-id", "Leads!1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
