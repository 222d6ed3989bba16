package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dealdesk/crm-report-cli/internal/store"
)

// testNow pins runs to a Wednesday so the derived weeks stay stable.
var testNow = time.Date(2026, time.August, 19, 10, 0, 0, 0, time.UTC)

// previousWeekLabel is the stage column header derived from testNow.
const previousWeekLabel = "2026-W33 (2026-08-10—2026-08-16)"

// snapshotWeekStart is the product snapshot key derived from testNow.
const snapshotWeekStart = "2026-08-17"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.Migrate(context.Background()))
	return s
}
