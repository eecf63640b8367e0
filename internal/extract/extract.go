// Package extract turns crawled site text into structured lead fields via
// the Anthropic API.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/config"
	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/pkg/anthropic"
)

// Fields is the full set of lead attributes requested from the model.
var Fields = []string{
	"CompanyNameEN", "CompanyNameFA", "Logo", "Industry", "Certifications",
	"ContactName", "PositionEN", "PositionFA", "Department",
	"Phone1", "Phone2", "Fax", "WhatsApp", "Telegram", "Instagram", "LinkedIn",
	"Website", "Email", "OtherEmails",
	"AddressEN", "AddressFA", "Country", "City",
	"ProductName", "ProductCategory", "ProductDescription", "Applications",
	"Brands", "Description", "History", "Employees", "ClientsPartners", "Markets",
}

const systemPrompt = `You are a bilingual (Persian-English) company information extractor.
Extract the requested JSON fields from the provided website text.
Return ONLY a strict JSON object. If a field has no value, return empty string "".`

// Extractor runs field extraction against site text.
type Extractor struct {
	client  anthropic.Client
	cfg     config.ExtractConfig
	model   string
	tokens  int64
	backoff time.Duration
}

// New creates an Extractor.
func New(client anthropic.Client, extractCfg config.ExtractConfig, anthropicCfg config.AnthropicConfig) *Extractor {
	return &Extractor{
		client:  client,
		cfg:     extractCfg,
		model:   anthropicCfg.Model,
		tokens:  int64(anthropicCfg.MaxTokens),
		backoff: 2 * time.Second,
	}
}

// Site extracts lead fields for one site. The returned record carries the
// site URL plus every non-empty extracted field. Extraction failure is not
// fatal to the batch: the caller receives an error record via FailureRecord.
func (e *Extractor) Site(ctx context.Context, siteURL, text string) (model.Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.Errorf("extract: no text for %s", siteURL)
	}
	if len(text) > e.cfg.MaxTextChars {
		text = text[:e.cfg.MaxTextChars]
	}

	prompt := buildPrompt(text)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: e.tokens,
			System:    []anthropic.SystemBlock{{Text: systemPrompt}},
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			lastErr = err
		} else {
			rec, perr := parseFields(resp.Text())
			if perr == nil {
				resp.Usage.LogCost(e.model, "extract")
				rec["Website"] = siteURL
				return rec, nil
			}
			lastErr = perr
		}

		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: cancelled")
		}
		zap.L().Warn("extract: attempt failed",
			zap.String("url", siteURL),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt < e.cfg.MaxRetries {
			select {
			case <-time.After(time.Duration(attempt) * e.backoff):
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "extract: cancelled")
			}
		}
	}
	return nil, eris.Wrapf(lastErr, "extract: %s failed after %d attempts", siteURL, e.cfg.MaxRetries)
}

// FailureRecord builds the placeholder row written when a site could not
// be processed, so failures stay visible in the output.
func FailureRecord(siteURL string, err error) model.Record {
	return model.Record{
		"Website": siteURL,
		"status":  "failed",
		"error":   err.Error(),
	}
}

func buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Fields:\n")
	for _, f := range Fields {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nWebsite text (mixed FA/EN):\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}

// parseFields decodes the model's JSON reply into a record, tolerating
// markdown code fences around the object.
func parseFields(reply string) (model.Record, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return nil, eris.New("extract: reply contains no JSON object")
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, eris.Wrap(err, "extract: parse reply")
	}

	rec := model.Record{}
	for _, f := range Fields {
		if v := strings.TrimSpace(raw[f]); v != "" {
			rec[f] = v
		}
	}
	if len(rec) == 0 {
		return nil, eris.New("extract: reply has no field values")
	}
	return rec, nil
}
