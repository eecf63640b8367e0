package export

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/table"
	notionpkg "github.com/fairscan/leadmerge-cli/pkg/notion"
)

// NotionSink files rows that still carry conflicting field variants into
// a review database, so a human can pick the right value.
type NotionSink struct {
	Client   notionpkg.Client
	ReviewDB string
}

// PushConflicts creates one review page per row that has at least one
// [N] variant column filled. Returns the number of pages created.
func (s *NotionSink) PushConflicts(ctx context.Context, t *table.Table) (int, error) {
	created := 0
	for i := range t.Rows {
		conflicts := conflictSummary(t, i)
		if len(conflicts) == 0 {
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.ReviewDB),
			},
			Properties: notionapi.Properties{
				"Name": notionapi.TitleProperty{
					Title: []notionapi.RichText{{Text: &notionapi.Text{Content: rowTitle(t, i)}}},
				},
				"Conflicts": notionapi.RichTextProperty{
					RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: strings.Join(conflicts, "\n")}}},
				},
			},
		}
		if _, err := s.Client.CreatePage(ctx, req); err != nil {
			return created, err
		}
		created++
	}

	zap.L().Info("export: notion review pages created", zap.Int("pages", created))
	return created, nil
}

// conflictSummary lists "base: v1 | v2" lines for each conflicting field.
func conflictSummary(t *table.Table, row int) []string {
	bases := make(map[string]struct{})
	for _, col := range t.Columns {
		if model.IsVariant(col) && t.Cell(row, col) != "" {
			bases[model.BaseField(col)] = struct{}{}
		}
	}

	var lines []string
	for _, base := range t.Columns {
		if _, ok := bases[base]; !ok {
			continue
		}
		var values []string
		for _, col := range t.Columns {
			if model.BaseField(col) == base && t.Cell(row, col) != "" {
				values = append(values, t.Cell(row, col))
			}
		}
		lines = append(lines, base+": "+strings.Join(values, " | "))
	}
	return lines
}

// rowTitle picks the most identifying value available for the page name.
func rowTitle(t *table.Table, row int) string {
	for _, col := range []string{"CompanyNameEN", "CompanyNameFA", "Website", "Email", "Phone1"} {
		if v := t.Cell(row, col); v != "" {
			return v
		}
	}
	return "unidentified lead"
}
