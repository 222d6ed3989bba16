package workbook

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dealdesk/crm-report-cli/internal/report"
)

const (
	week33 = "2026-W33 (2026-08-10—2026-08-16)"
	week34 = "2026-W34 (2026-08-17—2026-08-23)"
)

func openSaved(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteStageSnapshot_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.xlsx")

	m := report.NewStageMatrix()
	m.Add("Jana Novak", "Qualified", 150.5)
	m.Add("Jana Novak", "Won", 75.25)
	m.Add("Unassigned", "Qualified", 10)

	stats, err := WriteStageSnapshot(path, week33, m, []string{"Qualified", "Won"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SheetsTouched)
	assert.Equal(t, 3, stats.CellsWritten)

	f := openSaved(t, path)

	// No leftover default sheet; one sheet per owner.
	assert.Equal(t, []string{"Jana Novak", "Unassigned"}, f.GetSheetList())

	rows, err := f.GetRows("Jana Novak")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Stage", week33}, rows[0])
	assert.Equal(t, []string{"Qualified", "150.5"}, rows[1])
	assert.Equal(t, []string{"Won", "75.25"}, rows[2])

	// Seeded default stages without data keep their cells empty.
	rows, err = f.GetRows("Unassigned")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Qualified", "10"}, rows[1])
	assert.Equal(t, []string{"Won"}, rows[2])
}

func TestWriteStageSnapshot_RerunOverwritesWeekColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.xlsx")

	m1 := report.NewStageMatrix()
	m1.Add("Jana Novak", "Qualified", 100)
	_, err := WriteStageSnapshot(path, week33, m1, nil)
	require.NoError(t, err)

	m2 := report.NewStageMatrix()
	m2.Add("Jana Novak", "Qualified", 250)
	stats, err := WriteStageSnapshot(path, week33, m2, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CellsWritten)

	f := openSaved(t, path)
	rows, err := f.GetRows("Jana Novak")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Exactly one column for the week, holding the second run's value.
	assert.Equal(t, []string{"Stage", week33}, rows[0])
	assert.Equal(t, []string{"Qualified", "250"}, rows[1])
}

func TestWriteStageSnapshot_AppendsNewWeekColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.xlsx")

	m1 := report.NewStageMatrix()
	m1.Add("Jana Novak", "Qualified", 100)
	_, err := WriteStageSnapshot(path, week33, m1, nil)
	require.NoError(t, err)

	m2 := report.NewStageMatrix()
	m2.Add("Jana Novak", "Qualified", 80)
	m2.Add("Jana Novak", "Won", 20)
	_, err = WriteStageSnapshot(path, week34, m2, nil)
	require.NoError(t, err)

	f := openSaved(t, path)
	rows, err := f.GetRows("Jana Novak")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Stage", week33, week34}, rows[0])
	assert.Equal(t, []string{"Qualified", "100", "80"}, rows[1])
	assert.Equal(t, []string{"Won", "", "20"}, rows[2])
}

func TestWriteStageSnapshot_LongOwnerNameStaysOneSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.xlsx")
	owner := strings.Repeat("A", 40)

	m1 := report.NewStageMatrix()
	m1.Add(owner, "Qualified", 1)
	_, err := WriteStageSnapshot(path, week33, m1, nil)
	require.NoError(t, err)

	m2 := report.NewStageMatrix()
	m2.Add(owner, "Qualified", 2)
	_, err = WriteStageSnapshot(path, week34, m2, nil)
	require.NoError(t, err)

	f := openSaved(t, path)
	require.Len(t, f.GetSheetList(), 1)

	rows, err := f.GetRows(SanitizeSheetName(owner))
	require.NoError(t, err)
	assert.Equal(t, []string{"Stage", week33, week34}, rows[0])
}

func TestWriteStageSnapshot_EmptyMatrixOnExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.xlsx")

	m := report.NewStageMatrix()
	m.Add("Jana Novak", "Qualified", 5)
	_, err := WriteStageSnapshot(path, week33, m, nil)
	require.NoError(t, err)

	stats, err := WriteStageSnapshot(path, week34, report.NewStageMatrix(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.SheetsTouched)

	f := openSaved(t, path)
	rows, err := f.GetRows("Jana Novak")
	require.NoError(t, err)
	assert.Equal(t, []string{"Qualified", "5"}, rows[1])
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "Jana Novak", SanitizeSheetName("Jana Novak"))
	assert.Equal(t, "A B C", SanitizeSheetName("A/B:C"))
	assert.Equal(t, "deal a b", SanitizeSheetName("deal[a]b"))
	assert.Equal(t, "Unassigned", SanitizeSheetName(""))
	assert.Equal(t, "Unassigned", SanitizeSheetName("   "))
	assert.Equal(t, "Unassigned", SanitizeSheetName(`\/?*`))
	assert.Len(t, SanitizeSheetName(strings.Repeat("x", 40)), 31)
}
