package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/picasync/internal/storage"
	"github.com/desertthunder/picasync/internal/tabsync"
)

var (
	_ storage.Engine = (*KVRepository)(nil)
	_ storage.Engine = (*BoltRepository)(nil)

	_ tabsync.Namespace = (*JournalRepository)(nil)
)

// CountRows returns the number of rows in table.
//
// Used by diagnostics and tests; table is never user input.
func CountRows(db *sql.DB, table string) (int, error) {
	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
