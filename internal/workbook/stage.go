package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/dealdesk/crm-report-cli/internal/report"
)

// WriteStageSnapshot merges one week's owner-by-stage sums into the
// workbook at path, creating the file when missing. Each owner maps to a
// sheet with stage labels in column A and one column per week label.
// Re-running a week overwrites that week's column in place and never
// touches other weeks' columns.
func WriteStageSnapshot(path, weekLabel string, m *report.StageMatrix, defaultStageOrder []string) (Stats, error) {
	var stats Stats

	f, created, err := openOrCreate(path)
	if err != nil {
		return stats, err
	}
	defer func() { _ = f.Close() }()

	// On a fresh file the default sheet becomes the first owner's sheet
	// instead of lingering empty.
	pendingDefault := ""
	if created {
		pendingDefault = f.GetSheetList()[0]
	}

	for _, owner := range m.Owners() {
		sheet := SanitizeSheetName(owner)
		if sheet == pendingDefault {
			pendingDefault = ""
		}
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			if pendingDefault != "" {
				if err := f.SetSheetName(pendingDefault, sheet); err != nil {
					return stats, eris.Wrapf(err, "workbook: create sheet %s", sheet)
				}
				pendingDefault = ""
			} else if _, err := f.NewSheet(sheet); err != nil {
				return stats, eris.Wrapf(err, "workbook: create sheet %s", sheet)
			}
		}

		cells, err := mergeOwnerSheet(f, sheet, weekLabel, owner, m, defaultStageOrder)
		if err != nil {
			return stats, err
		}
		stats.SheetsTouched++
		stats.CellsWritten += cells
	}

	if err := saveWorkbook(f, path); err != nil {
		return stats, err
	}
	return stats, nil
}

func mergeOwnerSheet(f *excelize.File, sheet, weekLabel, owner string, m *report.StageMatrix, defaultOrder []string) (int, error) {
	if v, _ := f.GetCellValue(sheet, "A1"); v != "Stage" {
		_ = f.SetCellValue(sheet, "A1", "Stage")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, eris.Wrapf(err, "workbook: read sheet %s", sheet)
	}

	// Reuse the week's column on a rerun, otherwise append one past the
	// sheet's widest row.
	weekCol := 0
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if len(rows) > 0 {
		for i, h := range rows[0] {
			if h == weekLabel {
				weekCol = i + 1
				break
			}
		}
	}
	if weekCol == 0 {
		weekCol = max(width, 1) + 1
		_ = f.SetCellValue(sheet, cellRef(weekCol, 1), weekLabel)
	}

	rowByStage := make(map[string]int)
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && rows[i][0] != "" {
			rowByStage[rows[i][0]] = i + 1
		}
	}

	next := len(rows) + 1
	seed := func(stage string) {
		if _, ok := rowByStage[stage]; ok {
			return
		}
		_ = f.SetCellValue(sheet, cellRef(1, next), stage)
		rowByStage[stage] = next
		next++
	}
	for _, stage := range defaultOrder {
		seed(stage)
	}
	for _, stage := range m.Stages(owner) {
		seed(stage)
	}

	// Only stages with deals this week get a cell; seeded stages keep
	// their cells empty until a week produces data for them.
	cells := 0
	for _, stage := range m.Stages(owner) {
		_ = f.SetCellValue(sheet, cellRef(weekCol, rowByStage[stage]), m.Amount(owner, stage))
		cells++
	}
	return cells, nil
}
