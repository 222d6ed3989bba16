package pipeline

import (
	"context"
	"sort"
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

// productDealProperties are requested for every deal in the product
// export; the portal's product property is appended to them.
var productDealProperties = []string{
	"dealname",
	"amount",
	"closedate",
	"createdate",
	"hs_lastmodifieddate",
	"pipeline",
	"dealstage",
	"hubspot_owner_id",
}

// ProductReport builds the weekly per-product deal snapshot.
type ProductReport struct {
	cfg    config.ProductConfig
	crm    hubspot.Client
	ledger ledger
	now    func() time.Time
}

// NewProductReport wires the product pipeline. st may be nil to run
// without the ledger.
func NewProductReport(cfg config.ProductConfig, crm hubspot.Client, st store.Store) *ProductReport {
	return &ProductReport{cfg: cfg, crm: crm, ledger: ledger{store: st}, now: time.Now}
}

// Run exports all open and closed deals, splits them into per-product
// rows, and replaces the current week's rows in the product workbook.
// With dryRun the workbook and the ledger are left untouched.
func (r *ProductReport) Run(ctx context.Context, dryRun bool) (*Result, error) {
	loc, err := time.LoadLocation(r.cfg.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "product report: load timezone %q", r.cfg.Timezone)
	}

	started := r.now()
	snapshotWeek := report.SnapshotWeek(started.In(loc))
	if r.cfg.WeekOverride != "" {
		snapshotWeek = r.cfg.WeekOverride
	}

	log := zap.L().With(zap.String("report", string(model.ReportProduct)), zap.String("snapshot_week", snapshotWeek))
	log.Info("starting run", zap.Bool("dry_run", dryRun))

	var run *model.Run
	if !dryRun {
		run = r.ledger.start(ctx, log, model.ReportProduct, snapshotWeek)
	}

	res, err := r.run(ctx, log, snapshotWeek, dryRun)
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
		zap.Int("companies", res.CompaniesFound),
		zap.Int("rows_written", res.Stats.RowsWritten),
		zap.Int64("duration_ms", res.DurationMS),
	)
	return res, nil
}

func (r *ProductReport) run(ctx context.Context, log *zap.Logger, snapshotWeek string, dryRun bool) (*Result, error) {
	prop, err := r.resolveProperty(ctx, log)
	if err != nil {
		return nil, err
	}
	options := report.OptionLabels(prop)

	start := time.Now()
	pipelines, err := r.crm.ListPipelines(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "product report: list pipelines")
	}
	catalog := report.NewStageCatalog(pipelines)
	log.Info("pipelines fetched",
		zap.Int("pipelines", len(pipelines)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	start = time.Now()
	owners, err := r.crm.ListOwners(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "product report: list owners")
	}
	dir := report.NewOwnerDirectory(owners)
	log.Info("owners fetched",
		zap.Int("owners", len(owners)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	properties := append(append([]string{}, productDealProperties...), prop.Name)

	start = time.Now()
	deals, err := r.crm.ListDeals(ctx, properties)
	if err != nil {
		return nil, eris.Wrap(err, "product report: list deals")
	}
	log.Info("deals fetched",
		zap.Int("deals", len(deals)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	dealIDs := make([]string, 0, len(deals))
	for _, d := range deals {
		if d.ID != "" {
			dealIDs = append(dealIDs, d.ID)
		}
	}

	start = time.Now()
	companies, err := r.crm.BatchDealCompanies(ctx, dealIDs)
	if err != nil {
		return nil, eris.Wrap(err, "product report: deal companies")
	}
	companyIDs := sortedCompanyIDs(companies)
	names, err := r.crm.BatchCompanyNames(ctx, companyIDs)
	if err != nil {
		return nil, eris.Wrap(err, "product report: company names")
	}
	log.Info("companies resolved",
		zap.Int("deals_with_company", len(companies)),
		zap.Int("companies", len(companyIDs)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	filter := report.NewProductFilter(r.cfg.Products)
	rows := report.BuildProductRows(deals, report.ProductRowInput{
		SnapshotWeek: snapshotWeek,
		PropertyName: prop.Name,
		Options:      options,
		Filter:       filter,
		Companies:    companies,
		CompanyNames: names,
		Owners:       dir,
		Catalog:      catalog,
	})

	res := &Result{
		Week:           snapshotWeek,
		DealsFetched:   len(deals),
		Owners:         len(owners),
		CompaniesFound: len(companyIDs),
		OutputPath:     r.cfg.OutputPath,
		DryRun:         dryRun,
	}
	if dryRun {
		log.Info("dry run, skipping workbook write", zap.String("path", r.cfg.OutputPath))
		return res, nil
	}

	start = time.Now()
	stats, err := workbook.WriteProductSnapshot(r.cfg.OutputPath, snapshotWeek, filter.Products(), rows)
	if err != nil {
		return nil, eris.Wrap(err, "product report: write workbook")
	}
	res.Stats = stats
	log.Info("workbook updated",
		zap.String("path", r.cfg.OutputPath),
		zap.Int("rows_written", stats.RowsWritten),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

// resolveProperty returns the multi-checkbox deal property holding product
// assignments, preferring the configured internal name and falling back to
// discovery by label.
func (r *ProductReport) resolveProperty(ctx context.Context, log *zap.Logger) (*hubspot.Property, error) {
	if r.cfg.PropertyName != "" {
		prop, err := r.crm.GetDealProperty(ctx, r.cfg.PropertyName)
		if err != nil {
			return nil, eris.Wrapf(err, "product report: get property %q", r.cfg.PropertyName)
		}
		return prop, nil
	}

	props, err := r.crm.ListDealProperties(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "product report: list properties")
	}
	prop, ok := report.FindPropertyByLabel(props, r.cfg.PropertyLabel)
	if !ok {
		return nil, eris.Errorf("product report: no deal property labelled %q", r.cfg.PropertyLabel)
	}
	log.Info("product property discovered", zap.String("name", prop.Name), zap.String("label", prop.Label))
	return &prop, nil
}

// sortedCompanyIDs returns the distinct non-empty company ids in sorted
// order, giving the batch read a stable request shape.
func sortedCompanyIDs(byDeal map[string]string) []string {
	seen := make(map[string]struct{}, len(byDeal))
	ids := make([]string, 0, len(byDeal))
	for _, id := range byDeal {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
