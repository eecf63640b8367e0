package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/table"
	sfpkg "github.com/fairscan/leadmerge-cli/pkg/salesforce"
)

type mockSF struct {
	mock.Mock
}

func (m *mockSF) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockSF) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]sfpkg.CollectionResult, error) {
	args := m.Called(ctx, sObjectName, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sfpkg.CollectionResult), args.Error(1)
}

func TestSalesforcePush_MapsLeadFields(t *testing.T) {
	tbl := table.Materialize([]model.Record{
		{"CompanyNameEN": "Acme Trading", "Website": "https://acme.example", "Phone1": "0912", "Email": "x@acme.example"},
	})

	sf := &mockSF{}
	sf.On("InsertCollection", mock.Anything, "Lead", mock.MatchedBy(func(recs []map[string]any) bool {
		return len(recs) == 1 &&
			recs[0]["Company"] == "Acme Trading" &&
			recs[0]["LastName"] == "Acme Trading" &&
			recs[0]["Phone"] == "0912"
	})).Return([]sfpkg.CollectionResult{{ID: "00Q1", Success: true}}, nil)

	sink := &SalesforceSink{Client: sf}
	n, err := sink.Push(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sf.AssertExpectations(t)
}

func TestSalesforcePush_SkipsUnidentifiedRows(t *testing.T) {
	tbl := table.Materialize([]model.Record{
		{"Phone1": "0912"},
		{"CompanyNameEN": "Beta"},
	})

	sf := &mockSF{}
	sf.On("InsertCollection", mock.Anything, "Lead", mock.MatchedBy(func(recs []map[string]any) bool {
		return len(recs) == 1 && recs[0]["Company"] == "Beta"
	})).Return([]sfpkg.CollectionResult{{ID: "00Q2", Success: true}}, nil)

	sink := &SalesforceSink{Client: sf}
	n, err := sink.Push(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSalesforcePush_NoEligibleRows(t *testing.T) {
	tbl := table.Materialize([]model.Record{{"Phone1": "0912"}})

	sf := &mockSF{}
	sink := &SalesforceSink{Client: sf}
	n, err := sink.Push(context.Background(), tbl)
	require.NoError(t, err)
	assert.Zero(t, n)
	sf.AssertNotCalled(t, "InsertCollection")
}

func TestSalesforcePush_CountsFailures(t *testing.T) {
	tbl := table.Materialize([]model.Record{
		{"CompanyNameEN": "A"},
		{"CompanyNameEN": "B"},
	})

	sf := &mockSF{}
	sf.On("InsertCollection", mock.Anything, "Lead", mock.Anything).Return([]sfpkg.CollectionResult{
		{ID: "00Q3", Success: true},
		{Success: false, Errors: []string{"DUPLICATES_DETECTED"}},
	}, nil)

	sink := &SalesforceSink{Client: sf}
	n, err := sink.Push(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
