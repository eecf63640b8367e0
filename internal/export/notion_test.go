package export

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/table"
)

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *mockNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestPushConflicts_OnlyConflictedRows(t *testing.T) {
	tbl := table.Materialize([]model.Record{
		{"CompanyNameEN": "Acme", "Phone1": "0912", "Phone1[2]": "0911"},
		{"CompanyNameEN": "Beta", "Phone1": "0920"},
	})

	n := &mockNotion{}
	n.On("CreatePage", mock.Anything, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		title := req.Properties["Name"].(notionapi.TitleProperty).Title[0].Text.Content
		body := req.Properties["Conflicts"].(notionapi.RichTextProperty).RichText[0].Text.Content
		return title == "Acme" && body == "Phone1: 0912 | 0911"
	})).Return(&notionapi.Page{}, nil).Once()

	sink := &NotionSink{Client: n, ReviewDB: "db-id"}
	created, err := sink.PushConflicts(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	n.AssertExpectations(t)
}

func TestPushConflicts_NoConflictsNoPages(t *testing.T) {
	tbl := table.Materialize([]model.Record{{"CompanyNameEN": "Clean", "Phone1": "0912"}})

	n := &mockNotion{}
	sink := &NotionSink{Client: n, ReviewDB: "db-id"}
	created, err := sink.PushConflicts(context.Background(), tbl)
	require.NoError(t, err)
	assert.Zero(t, created)
	n.AssertNotCalled(t, "CreatePage")
}

func TestPushConflicts_StopsOnError(t *testing.T) {
	tbl := table.Materialize([]model.Record{
		{"Website": "a.example", "Email": "x@a.example", "Email[2]": "y@a.example"},
	})

	n := &mockNotion{}
	n.On("CreatePage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	sink := &NotionSink{Client: n, ReviewDB: "db-id"}
	created, err := sink.PushConflicts(context.Background(), tbl)
	require.Error(t, err)
	assert.Zero(t, created)
}
