package workbook

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/dealdesk/crm-report-cli/internal/report"
)

// summaryRow is the slice of a product sheet row the summary aggregates.
type summaryRow struct {
	week     string
	dealID   string
	product  string
	owner    string
	pipeline string
	stage    string
	amount   float64
}

// collectSummaryRows re-reads every configured product sheet so the
// summary reflects all accumulated weeks, not just the current run.
func collectSummaryRows(f *excelize.File, products []string) ([]summaryRow, error) {
	var out []summaryRow
	for _, product := range products {
		sheet := SanitizeSheetName(product)
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, eris.Wrapf(err, "workbook: read sheet %s", sheet)
		}
		for i := 1; i < len(rows); i++ {
			r := rows[i]
			if len(r) == 0 || r[0] == "" {
				continue
			}
			out = append(out, summaryRow{
				week:     r[0],
				dealID:   cellAt(r, 1),
				product:  cellAt(r, 5),
				pipeline: cellAt(r, 8),
				stage:    cellAt(r, 10),
				amount:   report.ParseAmount(cellAt(r, 11)),
				owner:    cellAt(r, 16),
			})
		}
	}
	return out, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// rebuildSummary clears the Summary sheet and rewrites its three tables:
// a deal-count pivot, an amount-sum pivot, and a tidy grouped table.
func rebuildSummary(f *excelize.File, products []string, styles styleSet) error {
	data, err := collectSummaryRows(f, products)
	if err != nil {
		return err
	}

	if err := clearSheet(f, summarySheet); err != nil {
		return err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Weekly HubSpot Deals by Product — Summary")
	_ = f.SetCellStyle(summarySheet, "A1", "A1", styles.title)
	hide := false
	_ = f.SetSheetView(summarySheet, 0, &excelize.ViewOptions{ShowGridLines: &hide})

	if len(data) == 0 {
		_ = f.SetCellValue(summarySheet, "A3", "No data yet. Run the script once to populate product sheets.")
		return nil
	}

	weeks := sortedWeeks(data)

	writeCountTable(f, styles, products, weeks, data)
	writeAmountTable(f, styles, products, weeks, data)
	writeTidyTable(f, styles, data)

	_ = f.SetPanes(summarySheet, &excelize.Panes{Freeze: true, YSplit: 4, TopLeftCell: "A5", ActivePane: "bottomLeft"})
	widths := []struct {
		col   string
		width float64
	}{{"A", 18}, {"B", 16}, {"C", 22}, {"D", 20}, {"E", 24}, {"F", 12}, {"G", 14}}
	for _, w := range widths {
		_ = f.SetColWidth(summarySheet, w.col, w.col, w.width)
	}
	return nil
}

func sortedWeeks(data []summaryRow) []string {
	seen := make(map[string]struct{})
	var weeks []string
	for _, r := range data {
		if _, ok := seen[r.week]; !ok {
			seen[r.week] = struct{}{}
			weeks = append(weeks, r.week)
		}
	}
	sort.Strings(weeks)
	return weeks
}

// writePivotHeader writes a "Product" plus one-column-per-week header row.
// Only the count table sizes the week columns; the final fixed widths for
// columns A through G overwrite those for the first six weeks.
func writePivotHeader(f *excelize.File, styles styleSet, row int, weeks []string, setWidths bool) {
	_ = f.SetCellValue(summarySheet, cellRef(1, row), "Product")
	for i, w := range weeks {
		_ = f.SetCellValue(summarySheet, cellRef(2+i, row), w)
		if setWidths {
			col, _ := excelize.ColumnNumberToName(2 + i)
			_ = f.SetColWidth(summarySheet, col, col, 14)
		}
	}
	_ = f.SetCellStyle(summarySheet, cellRef(1, row), cellRef(1+len(weeks), row), styles.header)
}

func writeCountTable(f *excelize.File, styles styleSet, products, weeks []string, data []summaryRow) {
	_ = f.SetCellValue(summarySheet, "A3", "Table 1: Deal count by product (weekly snapshots)")
	_ = f.SetCellStyle(summarySheet, "A3", "A3", styles.bold)

	const headerRow = 5
	writePivotHeader(f, styles, headerRow, weeks, true)

	// Distinct deal ids per (product, week).
	counts := make(map[[2]string]map[string]struct{})
	for _, r := range data {
		key := [2]string{r.product, r.week}
		if counts[key] == nil {
			counts[key] = make(map[string]struct{})
		}
		counts[key][r.dealID] = struct{}{}
	}

	for i, p := range products {
		row := headerRow + 1 + i
		_ = f.SetCellValue(summarySheet, cellRef(1, row), p)
		for j, w := range weeks {
			_ = f.SetCellValue(summarySheet, cellRef(2+j, row), len(counts[[2]string{p, w}]))
		}
	}
}

func writeAmountTable(f *excelize.File, styles styleSet, products, weeks []string, data []summaryRow) {
	_ = f.SetCellValue(summarySheet, "A20", "Table 2: Total amount by product (weekly snapshots)")
	_ = f.SetCellStyle(summarySheet, "A20", "A20", styles.bold)

	const headerRow = 22
	writePivotHeader(f, styles, headerRow, weeks, false)

	sums := make(map[[2]string]float64)
	for _, r := range data {
		sums[[2]string{r.product, r.week}] += r.amount
	}

	for i, p := range products {
		row := headerRow + 1 + i
		_ = f.SetCellValue(summarySheet, cellRef(1, row), p)
		for j, w := range weeks {
			cell := cellRef(2+j, row)
			_ = f.SetCellValue(summarySheet, cell, sums[[2]string{p, w}])
			_ = f.SetCellStyle(summarySheet, cell, cell, styles.money)
		}
	}
}

func writeTidyTable(f *excelize.File, styles styleSet, data []summaryRow) {
	_ = f.SetCellValue(summarySheet, "A37", "Table 3: Stage distribution incl. owner (tidy, good for Power BI)")
	_ = f.SetCellStyle(summarySheet, "A37", "A37", styles.bold)

	headers := []string{"snapshot_week_start", "product", "owner_name", "pipeline_label", "dealstage_label", "deal_count", "amount_sum"}
	const headerRow = 39
	for i, h := range headers {
		_ = f.SetCellValue(summarySheet, cellRef(i+1, headerRow), h)
	}
	_ = f.SetCellStyle(summarySheet, cellRef(1, headerRow), cellRef(len(headers), headerRow), styles.header)

	type tidyKey struct {
		week, product, owner, pipeline, stage string
	}
	type tidyAgg struct {
		dealIDs map[string]struct{}
		amount  float64
	}
	groups := make(map[tidyKey]*tidyAgg)
	for _, r := range data {
		k := tidyKey{r.week, r.product, r.owner, r.pipeline, r.stage}
		g := groups[k]
		if g == nil {
			g = &tidyAgg{dealIDs: make(map[string]struct{})}
			groups[k] = g
		}
		g.dealIDs[r.dealID] = struct{}{}
		g.amount += r.amount
	}

	keys := make([]tidyKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.week != b.week {
			return a.week < b.week
		}
		if a.product != b.product {
			return a.product < b.product
		}
		if a.owner != b.owner {
			return a.owner < b.owner
		}
		if a.pipeline != b.pipeline {
			return a.pipeline < b.pipeline
		}
		return a.stage < b.stage
	})

	row := headerRow + 1
	for _, k := range keys {
		g := groups[k]
		_ = f.SetCellValue(summarySheet, cellRef(1, row), k.week)
		_ = f.SetCellValue(summarySheet, cellRef(2, row), k.product)
		_ = f.SetCellValue(summarySheet, cellRef(3, row), k.owner)
		_ = f.SetCellValue(summarySheet, cellRef(4, row), k.pipeline)
		_ = f.SetCellValue(summarySheet, cellRef(5, row), k.stage)
		_ = f.SetCellValue(summarySheet, cellRef(6, row), len(g.dealIDs))
		amountCell := cellRef(7, row)
		_ = f.SetCellValue(summarySheet, amountCell, g.amount)
		_ = f.SetCellStyle(summarySheet, amountCell, amountCell, styles.money)
		row++
	}
}
