// Package workbook renders weekly report snapshots into xlsx files. Each
// writer opens or creates the target workbook, merges one snapshot in
// memory, and saves the file once at the end, so a failed run never leaves
// a half-written file behind.
package workbook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

const headerFillColor = "D9E1F2"

// Stats reports what a snapshot merge changed.
type Stats struct {
	SheetsTouched int `json:"sheets_touched"`
	// CellsWritten counts data cells on the stage report, RowsWritten
	// counts appended rows on the product report.
	CellsWritten int `json:"cells_written"`
	RowsWritten  int `json:"rows_written"`
}

// SanitizeSheetName replaces the characters xlsx forbids in sheet names
// with spaces, substitutes "Unassigned" for blank results, and truncates
// to the 31-character limit. Lookups and creations both go through this,
// so a long or odd owner name always resolves to the same sheet.
func SanitizeSheetName(name string) string {
	safe := name
	for _, ch := range `\/?*[]:` {
		safe = strings.ReplaceAll(safe, string(ch), " ")
	}
	safe = strings.TrimSpace(safe)
	if safe == "" {
		safe = "Unassigned"
	}
	if r := []rune(safe); len(r) > 31 {
		safe = string(r[:31])
	}
	return safe
}

// cellRef builds an A1-style reference from 1-based coordinates.
func cellRef(col, row int) string {
	ref, _ := excelize.CoordinatesToCellName(col, row)
	return ref
}

func openOrCreate(path string) (f *excelize.File, created bool, err error) {
	f, err = excelize.OpenFile(path)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, eris.Wrapf(err, "workbook: open %s", path)
	}
	return excelize.NewFile(), true, nil
}

func saveWorkbook(f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "workbook: create directory %s", dir)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "workbook: save %s", path)
	}
	return nil
}

// clearSheet removes every row, bottom up so indexes stay valid.
func clearSheet(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return eris.Wrapf(err, "workbook: read sheet %s", sheet)
	}
	for i := len(rows); i >= 1; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return eris.Wrapf(err, "workbook: clear sheet %s", sheet)
		}
	}
	return nil
}
