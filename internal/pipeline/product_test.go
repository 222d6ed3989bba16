package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dealdesk/crm-report-cli/internal/config"
	"github.com/dealdesk/crm-report-cli/internal/model"
	"github.com/dealdesk/crm-report-cli/internal/store"
	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

func productTestConfig(t *testing.T) config.ProductConfig {
	t.Helper()
	return config.ProductConfig{
		OutputPath:    filepath.Join(t.TempDir(), "products.xlsx"),
		Products:      []string{"Tapix", "OpenData"},
		PropertyLabel: "deal products",
		Timezone:      "UTC",
	}
}

var productProperty = &hubspot.Property{
	Name:      "product__c",
	Label:     " Deal Products ",
	Type:      "enumeration",
	FieldType: "checkbox",
	Options: []hubspot.PropertyOption{
		{Label: "Tapix", Value: "tapix"},
		{Label: "", Value: "opendata"},
		{Label: "Retired", Value: ""},
	},
}

// productCRM returns a mock with the fixtures shared by the product run
// tests: property discovery by label, one pipeline, one owner, two deals
// linked to two companies.
func productCRM() *mockCRM {
	crm := &mockCRM{}
	crm.On("ListDealProperties", mock.Anything).Return([]hubspot.Property{
		{Name: "hs_other", Label: "Other"},
		*productProperty,
	}, nil)
	crm.On("ListPipelines", mock.Anything).Return([]hubspot.Pipeline{{
		ID:    "default",
		Label: "Sales",
		Stages: []hubspot.PipelineStage{
			{ID: "qualified", Label: "Qualified"},
		},
	}}, nil)
	crm.On("ListOwners", mock.Anything).Return([]hubspot.Owner{
		{ID: "9", FirstName: "Jana", LastName: "Novak", Email: "jana@dealdesk.example"},
	}, nil)
	crm.On("ListDeals", mock.Anything, mock.Anything).Return([]hubspot.Deal{
		{ID: "d1", Properties: map[string]string{
			"dealname":         "Alpha",
			"amount":           "1200.50",
			"pipeline":         "default",
			"dealstage":        "qualified",
			"hubspot_owner_id": "9",
			"product__c":       "tapix;opendata",
		}},
		{ID: "d2", Properties: map[string]string{
			"dealname":         "Beta",
			"amount":           "100",
			"pipeline":         "default",
			"dealstage":        "qualified",
			"hubspot_owner_id": "777",
			"product__c":       "tapix",
		}},
	}, nil)
	crm.On("BatchDealCompanies", mock.Anything, mock.Anything).
		Return(map[string]string{"d1": "c2", "d2": "c1"}, nil)
	crm.On("BatchCompanyNames", mock.Anything, mock.Anything).
		Return(map[string]string{"c1": "Acme", "c2": "Beta Corp"}, nil)
	return crm
}

func newTestProductReport(cfg config.ProductConfig, crm *mockCRM, st store.Store) *ProductReport {
	r := NewProductReport(cfg, crm, st)
	r.now = func() time.Time { return testNow }
	return r
}

func TestProductReport_Run(t *testing.T) {
	crm := productCRM()
	cfg := productTestConfig(t)
	r := newTestProductReport(cfg, crm, nil)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, snapshotWeekStart, res.Week)
	assert.Equal(t, 2, res.DealsFetched)
	assert.Equal(t, 2, res.CompaniesFound)
	assert.Equal(t, 3, res.Stats.RowsWritten)

	// The portal property rides along with the base deal properties.
	wantProps := append(append([]string{}, productDealProperties...), "product__c")
	crm.AssertCalled(t, "ListDeals", mock.Anything, wantProps)
	crm.AssertCalled(t, "BatchDealCompanies", mock.Anything, []string{"d1", "d2"})
	crm.AssertCalled(t, "BatchCompanyNames", mock.Anything, []string{"c1", "c2"})

	f, err := excelize.OpenFile(cfg.OutputPath)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	assert.Equal(t, []string{"Summary", "Tapix", "OpenData"}, f.GetSheetList())

	tapix, err := f.GetRows("Tapix")
	require.NoError(t, err)
	require.Len(t, tapix, 3)
	assert.Equal(t, snapshotWeekStart, tapix[1][0])
	assert.Equal(t, "d1", tapix[1][1])
	assert.Equal(t, "Beta Corp", tapix[1][4])
	assert.Equal(t, "Tapix", tapix[1][5])
	assert.Equal(t, "tapix;opendata", tapix[1][6])
	assert.Equal(t, "d2", tapix[2][1])
	assert.Equal(t, "Acme", tapix[2][4])

	open, err := f.GetRows("OpenData")
	require.NoError(t, err)
	require.Len(t, open, 2)
	// The unlabelled option falls back to its raw value but lands under
	// the configured spelling.
	assert.Equal(t, "OpenData", open[1][5])
}

func TestProductReport_Run_PropertyNameOverride(t *testing.T) {
	crm := productCRM()
	crm.On("GetDealProperty", mock.Anything, "product__c").Return(productProperty, nil)

	cfg := productTestConfig(t)
	cfg.PropertyName = "product__c"
	r := newTestProductReport(cfg, crm, nil)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.RowsWritten)
	crm.AssertCalled(t, "GetDealProperty", mock.Anything, "product__c")
	crm.AssertNotCalled(t, "ListDealProperties", mock.Anything)
}

func TestProductReport_Run_PropertyNotFound(t *testing.T) {
	crm := &mockCRM{}
	crm.On("ListDealProperties", mock.Anything).Return([]hubspot.Property{
		{Name: "hs_other", Label: "Other"},
	}, nil)

	r := newTestProductReport(productTestConfig(t), crm, nil)

	_, err := r.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deal property labelled")
}

func TestProductReport_Run_DryRun(t *testing.T) {
	crm := productCRM()
	cfg := productTestConfig(t)
	r := newTestProductReport(cfg, crm, nil)

	res, err := r.Run(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.DealsFetched)
	assert.Zero(t, res.Stats.RowsWritten)
	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProductReport_Run_WeekOverride(t *testing.T) {
	crm := productCRM()
	cfg := productTestConfig(t)
	cfg.WeekOverride = "2026-07-20"
	r := newTestProductReport(cfg, crm, nil)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-20", res.Week)

	f, err := excelize.OpenFile(cfg.OutputPath)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	tapix, err := f.GetRows("Tapix")
	require.NoError(t, err)
	require.Len(t, tapix, 3)
	assert.Equal(t, "2026-07-20", tapix[1][0])
}

func TestProductReport_Run_ListDealsError(t *testing.T) {
	crm := &mockCRM{}
	crm.On("ListDealProperties", mock.Anything).Return([]hubspot.Property{*productProperty}, nil)
	crm.On("ListPipelines", mock.Anything).Return([]hubspot.Pipeline{}, nil)
	crm.On("ListOwners", mock.Anything).Return([]hubspot.Owner{}, nil)
	crm.On("ListDeals", mock.Anything, mock.Anything).Return(nil, errors.New("deal list: 502 Bad Gateway"))

	r := newTestProductReport(productTestConfig(t), crm, nil)

	res, err := r.Run(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "list deals")
}

func TestProductReport_Run_RecordsRun(t *testing.T) {
	st := newTestStore(t)
	crm := productCRM()
	cfg := productTestConfig(t)
	r := newTestProductReport(cfg, crm, st)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportProduct, run.Report)
	assert.Equal(t, snapshotWeekStart, run.Week)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.DealsFetched)
	assert.Equal(t, 3, run.Result.RowsWritten)
	assert.Equal(t, cfg.OutputPath, run.Result.OutputPath)
}
