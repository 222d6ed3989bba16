// Package pipeline orchestrates the weekly report runs end to end: it
// sequences the CRM fetch phases, hands the results to the report
// aggregators and workbook writers, and records each run in the ledger.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/dealdesk/crm-report-cli/internal/model"
	"github.com/dealdesk/crm-report-cli/internal/resilience"
	"github.com/dealdesk/crm-report-cli/internal/store"
	"github.com/dealdesk/crm-report-cli/internal/workbook"
)

// Result summarizes one report run.
type Result struct {
	RunID          string         `json:"run_id,omitempty"`
	Week           string         `json:"week"`
	DealsFetched   int            `json:"deals_fetched"`
	Owners         int            `json:"owners"`
	CompaniesFound int            `json:"companies_found,omitempty"`
	Stats          workbook.Stats `json:"stats"`
	OutputPath     string         `json:"output_path"`
	DurationMS     int64          `json:"duration_ms"`
	DryRun         bool           `json:"dry_run,omitempty"`
}

func (r *Result) runResult() *model.RunResult {
	return &model.RunResult{
		DealsFetched:  r.DealsFetched,
		RowsWritten:   r.Stats.RowsWritten,
		CellsWritten:  r.Stats.CellsWritten,
		SheetsTouched: r.Stats.SheetsTouched,
		OutputPath:    r.OutputPath,
		DurationMS:    r.DurationMS,
	}
}

// ledger records runs in an optional Store. A nil store records nothing,
// and ledger errors never fail a report run.
type ledger struct {
	store store.Store
}

func (l ledger) start(ctx context.Context, log *zap.Logger, report model.ReportKind, week string) *model.Run {
	if l.store == nil {
		return nil
	}
	run, err := l.store.CreateRun(ctx, report, week)
	if err != nil {
		log.Warn("ledger: create run failed", zap.Error(err))
		return nil
	}
	return run
}

func (l ledger) complete(ctx context.Context, log *zap.Logger, run *model.Run, res *Result) {
	if run == nil {
		return
	}
	if err := l.store.CompleteRun(ctx, run.ID, res.runResult()); err != nil {
		log.Warn("ledger: complete run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (l ledger) fail(ctx context.Context, log *zap.Logger, run *model.Run, runErr error) {
	if run == nil {
		return
	}
	if err := l.store.FailRun(ctx, run.ID, runErr.Error(), resilience.ErrorCategory(runErr)); err != nil {
		log.Warn("ledger: fail run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}
