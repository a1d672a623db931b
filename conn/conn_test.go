package conn

import (
	"path/filepath"
	"strings"
	"testing"

	"viajeia-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryDriver(t *testing.T) {
	db, dialect, err := Open(&config.Config{DBDriver: "memory"})
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.Empty(t, dialect)
}

func TestOpenSQLiteCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "viajeia.db")
	db, dialect, err := Open(&config.Config{DBDriver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, SQLite, dialect)

	_, err = db.Exec("CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := Open(&config.Config{DBDriver: "postgres"})
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(&config.Config{DBUser: "viajeia", DBPassword: "secreto", DBHost: "db", DBPort: "3306"}, "viajeia")
	assert.True(t, strings.HasPrefix(dsn, "viajeia:secreto@tcp(db:3306)/viajeia?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
