package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/projectdesk/internal/migrate"
	"github.com/target/projectdesk/internal/testutil"
)

// withMigratedDB runs fn against an isolated schema with all migrations applied.
func withMigratedDB(t *testing.T, fn func(*sql.DB)) {
	t.Helper()
	testutil.WithTestDB(t, func(db *sql.DB) {
		require.NoError(t, migrate.Run(context.Background(), db))
		fn(db)
	})
}
