// Package conn opens the SQL database selected by DB_DRIVER.
package conn

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"viajeia-backend/config"

	_ "modernc.org/sqlite"
)

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Open returns nil, "" and no error for the memory driver.
func Open(cfg *config.Config) (*sql.DB, Dialect, error) {
	switch cfg.DBDriver {
	case "memory", "":
		return nil, "", nil
	case "mysql":
		db, err := NewMySQL(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("conectando a MySQL: %w", err)
		}
		return db, MySQL, nil
	case "sqlite":
		db, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, "", fmt.Errorf("abriendo SQLite %s: %w", cfg.SQLitePath, err)
		}
		return db, SQLite, nil
	}
	return nil, "", fmt.Errorf("DB_DRIVER no soportado: %q", cfg.DBDriver)
}

// NewSQLite opens path, creating its directory. ":memory:" gives a private
// in-memory database limited to a single connection.
func NewSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
