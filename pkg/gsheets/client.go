// Package gsheets is a small Google Sheets values-API client used to
// append merged lead tables to a shared spreadsheet.
package gsheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4"

// Client performs Google Sheets values operations.
type Client interface {
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]string) error
	AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]string) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Sheets client authenticating with a bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// valueRange mirrors the API's ValueRange body.
type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

func (c *httpClient) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s", c.baseURL, spreadsheetID, url.PathEscape(rng))
	respBody, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var vr valueRange
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return nil, eris.Wrap(err, "gsheets: unmarshal values")
	}
	return vr.Values, nil
}

func (c *httpClient) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]string) error {
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueInputOption=RAW", c.baseURL, spreadsheetID, url.PathEscape(rng))
	_, err := c.do(ctx, http.MethodPut, u, &valueRange{Values: values})
	return err
}

func (c *httpClient) AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]string) error {
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		c.baseURL, spreadsheetID, url.PathEscape(rng))
	_, err := c.do(ctx, http.MethodPost, u, &valueRange{Values: values})
	return err
}

func (c *httpClient) do(ctx context.Context, method, u string, body *valueRange) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "gsheets: marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, eris.Wrap(err, "gsheets: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "gsheets: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gsheets: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("gsheets: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
