package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dealdesk/crm-report-cli/internal/config"
	"github.com/dealdesk/crm-report-cli/internal/model"
	"github.com/dealdesk/crm-report-cli/internal/report"
	"github.com/dealdesk/crm-report-cli/internal/store"
	"github.com/dealdesk/crm-report-cli/internal/workbook"
	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

// stageDealProperties are requested for every deal in the funnel search.
var stageDealProperties = []string{"dealstage", "amount", "hubspot_owner_id", "closedate", "pipeline"}

// StageReport builds the weekly owner-by-stage funnel snapshot.
type StageReport struct {
	cfg    config.StageConfig
	crm    hubspot.Client
	ledger ledger
	now    func() time.Time
}

// NewStageReport wires the stage pipeline. st may be nil to run without
// the ledger.
func NewStageReport(cfg config.StageConfig, crm hubspot.Client, st store.Store) *StageReport {
	return &StageReport{cfg: cfg, crm: crm, ledger: ledger{store: st}, now: time.Now}
}

// Run fetches deals closing before the horizon, aggregates amounts per
// owner and stage, and merges the week column into the stage workbook.
// With dryRun the workbook and the ledger are left untouched.
func (r *StageReport) Run(ctx context.Context, dryRun bool) (*Result, error) {
	loc, err := time.LoadLocation(r.cfg.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "stage report: load timezone %q", r.cfg.Timezone)
	}

	started := r.now()
	now := started.In(loc)
	week := report.PreviousWeek(now)
	if r.cfg.WeekOverride != "" {
		week = report.Week{Label: r.cfg.WeekOverride}
	}
	cutoff := report.Cutoff(now, r.cfg.HorizonMonths)

	log := zap.L().With(zap.String("report", string(model.ReportStage)), zap.String("week", week.Label))
	log.Info("starting run", zap.Time("cutoff", cutoff), zap.Bool("dry_run", dryRun))

	var run *model.Run
	if !dryRun {
		run = r.ledger.start(ctx, log, model.ReportStage, week.Label)
	}

	res, err := r.run(ctx, log, week, cutoff, dryRun)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		r.ledger.fail(ctx, log, run, err)
		return nil, err
	}

	res.DurationMS = time.Since(started).Milliseconds()
	if run != nil {
		res.RunID = run.ID
	}
	r.ledger.complete(ctx, log, run, res)

	log.Info("run complete",
		zap.Int("deals", res.DealsFetched),
		zap.Int("owners", res.Owners),
		zap.Int("sheets_touched", res.Stats.SheetsTouched),
		zap.Int("cells_written", res.Stats.CellsWritten),
		zap.Int64("duration_ms", res.DurationMS),
	)
	return res, nil
}

func (r *StageReport) run(ctx context.Context, log *zap.Logger, week report.Week, cutoff time.Time, dryRun bool) (*Result, error) {
	start := time.Now()
	owners, err := r.crm.ListOwners(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "stage report: list owners")
	}
	dir := report.NewOwnerDirectory(owners)
	log.Info("owners fetched",
		zap.Int("owners", len(owners)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	start = time.Now()
	pipelines, err := r.crm.ListPipelines(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "stage report: list pipelines")
	}
	catalog := report.NewStageCatalog(pipelines)
	log.Info("pipelines fetched",
		zap.Int("pipelines", len(pipelines)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	start = time.Now()
	deals, err := r.crm.SearchDeals(ctx, hubspot.SearchRequest{
		FilterGroups: []hubspot.FilterGroup{{Filters: []hubspot.Filter{{
			PropertyName: "closedate",
			Operator:     "LT",
			Value:        cutoff.UnixMilli(),
		}}}},
		Properties: stageDealProperties,
		Sorts:      []hubspot.SearchSort{{PropertyName: "closedate", Direction: "DESCENDING"}},
		Limit:      100,
	})
	if err != nil {
		return nil, eris.Wrap(err, "stage report: search deals")
	}
	log.Info("deals fetched",
		zap.Int("deals", len(deals)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	matrix := report.BuildStageMatrix(deals, dir, catalog)

	res := &Result{
		Week:         week.Label,
		DealsFetched: len(deals),
		Owners:       len(matrix.Owners()),
		OutputPath:   r.cfg.OutputPath,
		DryRun:       dryRun,
	}
	if dryRun {
		log.Info("dry run, skipping workbook write", zap.String("path", r.cfg.OutputPath))
		return res, nil
	}

	start = time.Now()
	stats, err := workbook.WriteStageSnapshot(r.cfg.OutputPath, week.Label, matrix, catalog.DefaultStageOrder())
	if err != nil {
		return nil, eris.Wrap(err, "stage report: write workbook")
	}
	res.Stats = stats
	log.Info("workbook updated",
		zap.String("path", r.cfg.OutputPath),
		zap.Int("sheets_touched", stats.SheetsTouched),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}
