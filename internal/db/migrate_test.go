package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsOrdered(t *testing.T) {
	versions, err := MigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "001_catalog_sales.sql", versions[0])
	for i := 1; i < len(versions); i++ {
		assert.Less(t, versions[i-1], versions[i])
	}
}

func TestMigrationsCreateLedgerTables(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/001_catalog_sales.sql")
	require.NoError(t, err)
	for _, table := range []string{"vendors", "products", "stock_events", "sales", "sale_lines", "sale_events"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, string(body), "CHECK (quantity >= 0)")
}

func TestPendingMigrationsSkipsApplied(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), 2)

	pending := pendingMigrations(all, map[string]bool{all[0].Version: true})
	require.Len(t, pending, len(all)-1)
	assert.Equal(t, all[1].Version, pending[0].Version)
	assert.NotEmpty(t, pending[0].SQL)

	everything := make(map[string]bool, len(all))
	for _, m := range all {
		everything[m.Version] = true
	}
	assert.Empty(t, pendingMigrations(all, everything))
}
