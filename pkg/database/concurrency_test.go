package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/qcast/qcast/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// newTestConfig points at a file so every connection shares the same database,
// with retries and busy_timeout turned down so that lock errors would surface
// if writers were not serialized.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "test.db")
	cfg.DatabaseMaxRetries = 0
	cfg.DatabaseBusyTimeout = time.Millisecond
	return cfg
}

func TestNew_Pragmas(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

// TestConcurrentAppends runs many read-max-then-insert transactions at once,
// the same shape as appending a chapter to a sibling group. Every append has
// to land on a distinct position.
func TestConcurrentAppends(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE siblings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sort_order INTEGER NOT NULL UNIQUE
	)`)
	require.NoError(t, err)

	const workers = 10
	const appendsPerWorker = 20

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, workers*appendsPerWorker)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < appendsPerWorker; i++ {
				err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
					var next int
					err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), 0) + 1 FROM siblings").Scan(&next)
					if err != nil {
						return err
					}
					_, err = tx.ExecContext(ctx, "INSERT INTO siblings (sort_order) VALUES (?)", next)
					return err
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	var allErrors []error
	for err := range errs {
		allErrors = append(allErrors, err)
	}
	assert.Empty(t, allErrors)

	var count, maxOrder int
	require.NoError(t, db.QueryRow("SELECT COUNT(*), MAX(sort_order) FROM siblings").Scan(&count, &maxOrder))
	assert.Equal(t, workers*appendsPerWorker, count)
	assert.Equal(t, workers*appendsPerWorker, maxOrder)
}
