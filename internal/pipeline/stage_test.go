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
	"github.com/dealdesk/crm-report-cli/internal/resilience"
	"github.com/dealdesk/crm-report-cli/internal/store"
	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

func stageTestConfig(t *testing.T) config.StageConfig {
	t.Helper()
	return config.StageConfig{
		OutputPath:    filepath.Join(t.TempDir(), "stage.xlsx"),
		HorizonMonths: 18,
		Timezone:      "UTC",
	}
}

// stageCRM returns a mock with the pipeline and owner fixtures every stage
// run fetches first.
func stageCRM() *mockCRM {
	crm := &mockCRM{}
	crm.On("ListPipelines", mock.Anything).Return([]hubspot.Pipeline{{
		ID:    "default",
		Label: "Sales",
		Stages: []hubspot.PipelineStage{
			{ID: "qualified", Label: "Qualified"},
			{ID: "won", Label: "Won", DisplayOrder: 1},
		},
	}}, nil)
	crm.On("ListOwners", mock.Anything).Return([]hubspot.Owner{
		{ID: "9", FirstName: "Jana", LastName: "Novak", Email: "jana@dealdesk.example"},
	}, nil)
	return crm
}

func newTestStageReport(cfg config.StageConfig, crm *mockCRM, st store.Store) *StageReport {
	r := NewStageReport(cfg, crm, st)
	r.now = func() time.Time { return testNow }
	return r
}

func TestStageReport_Run(t *testing.T) {
	crm := stageCRM()
	var captured hubspot.SearchRequest
	crm.On("SearchDeals", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(hubspot.SearchRequest) }).
		Return([]hubspot.Deal{
			{ID: "d1", Properties: map[string]string{
				"dealstage": "qualified", "amount": "150.5", "hubspot_owner_id": "9", "pipeline": "default",
			}},
			{ID: "d2", Properties: map[string]string{
				"dealstage": "won", "amount": "75", "hubspot_owner_id": "777", "pipeline": "default",
			}},
		}, nil)

	cfg := stageTestConfig(t)
	r := newTestStageReport(cfg, crm, nil)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, previousWeekLabel, res.Week)
	assert.Equal(t, 2, res.DealsFetched)
	assert.Equal(t, 2, res.Owners)
	assert.Equal(t, 2, res.Stats.SheetsTouched)
	assert.Empty(t, res.RunID)
	assert.False(t, res.DryRun)

	// Horizon: midnight before the previous Sunday plus eighteen months.
	wantCutoff := time.Date(2028, time.February, 16, 0, 0, 0, 0, time.UTC).UnixMilli()
	require.Len(t, captured.FilterGroups, 1)
	require.Len(t, captured.FilterGroups[0].Filters, 1)
	filter := captured.FilterGroups[0].Filters[0]
	assert.Equal(t, "closedate", filter.PropertyName)
	assert.Equal(t, "LT", filter.Operator)
	assert.Equal(t, wantCutoff, filter.Value)
	assert.Equal(t, stageDealProperties, captured.Properties)
	require.Len(t, captured.Sorts, 1)
	assert.Equal(t, "closedate", captured.Sorts[0].PropertyName)
	assert.Equal(t, "DESCENDING", captured.Sorts[0].Direction)
	assert.Equal(t, 100, captured.Limit)

	f, err := excelize.OpenFile(cfg.OutputPath)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	assert.Equal(t, []string{"Jana Novak", "Unassigned"}, f.GetSheetList())
	rows, err := f.GetRows("Jana Novak")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Stage", previousWeekLabel}, rows[0])
}

func TestStageReport_Run_DryRun(t *testing.T) {
	st := newTestStore(t)
	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).Return([]hubspot.Deal{
		{ID: "d1", Properties: map[string]string{
			"dealstage": "qualified", "amount": "10", "hubspot_owner_id": "9", "pipeline": "default",
		}},
	}, nil)

	cfg := stageTestConfig(t)
	r := newTestStageReport(cfg, crm, st)

	res, err := r.Run(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.DealsFetched)
	assert.Zero(t, res.Stats.SheetsTouched)
	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))

	// Dry runs stay out of the ledger.
	assert.Empty(t, res.RunID)
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStageReport_Run_WeekOverride(t *testing.T) {
	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).Return([]hubspot.Deal{
		{ID: "d1", Properties: map[string]string{
			"dealstage": "won", "amount": "20", "hubspot_owner_id": "9", "pipeline": "default",
		}},
	}, nil)

	cfg := stageTestConfig(t)
	cfg.WeekOverride = "2026-W30 (2026-07-20—2026-07-26)"
	r := newTestStageReport(cfg, crm, nil)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, cfg.WeekOverride, res.Week)

	f, err := excelize.OpenFile(cfg.OutputPath)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	rows, err := f.GetRows("Jana Novak")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Stage", cfg.WeekOverride}, rows[0])
}

func TestStageReport_Run_SearchError(t *testing.T) {
	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).Return(nil, errors.New("deal search: 401 Unauthorized"))

	r := newTestStageReport(stageTestConfig(t), crm, nil)

	res, err := r.Run(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "search deals")
}

func TestStageReport_Run_BadTimezone(t *testing.T) {
	cfg := stageTestConfig(t)
	cfg.Timezone = "Neverland/Nowhere"
	r := newTestStageReport(cfg, &mockCRM{}, nil)

	_, err := r.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load timezone")
}

func TestStageReport_Run_RecordsRun(t *testing.T) {
	st := newTestStore(t)
	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).Return([]hubspot.Deal{
		{ID: "d1", Properties: map[string]string{
			"dealstage": "won", "amount": "75.25", "hubspot_owner_id": "9", "pipeline": "default",
		}},
	}, nil)

	cfg := stageTestConfig(t)
	r := newTestStageReport(cfg, crm, st)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStage, run.Report)
	assert.Equal(t, previousWeekLabel, run.Week)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 1, run.Result.DealsFetched)
	assert.Equal(t, cfg.OutputPath, run.Result.OutputPath)
}

func TestStageReport_Run_LedgerErrorsDoNotFail(t *testing.T) {
	st := &mockStore{}
	st.On("CreateRun", mock.Anything, model.ReportStage, previousWeekLabel).
		Return(&model.Run{ID: "r1", Report: model.ReportStage, Week: previousWeekLabel, Status: model.RunStatusRunning}, nil)
	st.On("CompleteRun", mock.Anything, "r1", mock.Anything).
		Return(errors.New("store: connection reset"))

	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).Return([]hubspot.Deal{
		{ID: "d1", Properties: map[string]string{
			"dealstage": "won", "amount": "50", "hubspot_owner_id": "9", "pipeline": "default",
		}},
	}, nil)

	cfg := stageTestConfig(t)
	r := newTestStageReport(cfg, crm, st)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RunID)

	// The saved workbook survives the failed ledger write.
	_, statErr := os.Stat(cfg.OutputPath)
	assert.NoError(t, statErr)
	st.AssertCalled(t, "CompleteRun", mock.Anything, "r1", mock.Anything)
}

func TestStageReport_Run_LedgerCreateError(t *testing.T) {
	st := &mockStore{}
	st.On("CreateRun", mock.Anything, model.ReportStage, previousWeekLabel).
		Return(nil, errors.New("store: database is locked"))

	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).Return([]hubspot.Deal{
		{ID: "d1", Properties: map[string]string{
			"dealstage": "won", "amount": "50", "hubspot_owner_id": "9", "pipeline": "default",
		}},
	}, nil)

	r := newTestStageReport(stageTestConfig(t), crm, st)

	res, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	st.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestStageReport_Run_RecordsFailure(t *testing.T) {
	st := newTestStore(t)
	crm := stageCRM()
	crm.On("SearchDeals", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("deal search: 503 Service Unavailable")))

	r := newTestStageReport(stageTestConfig(t), crm, st)

	_, err := r.Run(context.Background(), false)
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{Report: model.ReportStage})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "search deals")
	assert.Equal(t, "transient", runs[0].ErrorCategory)
}
