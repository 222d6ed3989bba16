package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/dealdesk/crm-report-cli/internal/report"
)

const summarySheet = "Summary"

// styleSet holds the reusable style ids for one workbook mutation.
type styleSet struct {
	header int
	title  int
	bold   int
	money  int
}

func newStyleSet(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	}); err != nil {
		return s, eris.Wrap(err, "workbook: header style")
	}
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, eris.Wrap(err, "workbook: title style")
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, eris.Wrap(err, "workbook: bold style")
	}
	moneyFmt := "#,##0.00"
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt}); err != nil {
		return s, eris.Wrap(err, "workbook: amount style")
	}
	return s, nil
}

// WriteProductSnapshot replaces one snapshot week's rows on every
// configured product sheet, prior weeks included untouched, and rebuilds
// the Summary sheet from all accumulated rows. Every configured product is
// processed even when it has no rows this week, so a rerun clears a
// product's stale rows for the week.
func WriteProductSnapshot(path, snapshotWeek string, products []string, rows map[string][]report.ProductRow) (Stats, error) {
	var stats Stats

	f, created, err := openOrCreate(path)
	if err != nil {
		return stats, err
	}
	defer func() { _ = f.Close() }()

	styles, err := newStyleSet(f)
	if err != nil {
		return stats, err
	}

	if created {
		// The default sheet becomes the Summary so it sits first.
		if err := f.SetSheetName(f.GetSheetList()[0], summarySheet); err != nil {
			return stats, eris.Wrap(err, "workbook: name summary sheet")
		}
	} else if idx, _ := f.GetSheetIndex(summarySheet); idx < 0 {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return stats, eris.Wrap(err, "workbook: create summary sheet")
		}
	}

	for _, product := range products {
		sheet := SanitizeSheetName(product)
		if err := ensureProductSheet(f, sheet, styles); err != nil {
			return stats, err
		}
		written, err := replaceSnapshotRows(f, sheet, snapshotWeek, rows[product])
		if err != nil {
			return stats, err
		}
		stats.SheetsTouched++
		stats.RowsWritten += written
	}

	if err := rebuildSummary(f, products, styles); err != nil {
		return stats, err
	}
	stats.SheetsTouched++

	if err := saveWorkbook(f, path); err != nil {
		return stats, err
	}
	return stats, nil
}

// ensureProductSheet creates the sheet when missing and re-asserts the
// header row, its styles, the column widths, the frozen header row, and
// hidden gridlines.
func ensureProductSheet(f *excelize.File, sheet string, styles styleSet) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return eris.Wrapf(err, "workbook: create sheet %s", sheet)
		}
	}

	for i, h := range report.ProductColumns {
		_ = f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	_ = f.SetCellStyle(sheet, "A1", cellRef(len(report.ProductColumns), 1), styles.header)

	endCol, _ := excelize.ColumnNumberToName(len(report.ProductColumns))
	_ = f.SetColWidth(sheet, "A", endCol, 18)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	hide := false
	_ = f.SetSheetView(sheet, 0, &excelize.ViewOptions{ShowGridLines: &hide})
	return nil
}

// replaceSnapshotRows deletes the sheet's rows keyed by the snapshot week
// and appends the new ones after the last remaining row.
func replaceSnapshotRows(f *excelize.File, sheet, snapshotWeek string, rows []report.ProductRow) (int, error) {
	existing, err := f.GetRows(sheet)
	if err != nil {
		return 0, eris.Wrapf(err, "workbook: read sheet %s", sheet)
	}

	var stale []int
	for i := 1; i < len(existing); i++ {
		if len(existing[i]) > 0 && existing[i][0] == snapshotWeek {
			stale = append(stale, i + 1)
		}
	}
	// Bottom up so the remaining indexes stay valid while deleting.
	for i := len(stale) - 1; i >= 0; i-- {
		if err := f.RemoveRow(sheet, stale[i]); err != nil {
			return 0, eris.Wrapf(err, "workbook: remove row %d from %s", stale[i], sheet)
		}
	}

	next := len(existing) - len(stale) + 1
	for _, row := range rows {
		for c, v := range row.Cells() {
			_ = f.SetCellValue(sheet, cellRef(c+1, next), v)
		}
		next++
	}
	return len(rows), nil
}
