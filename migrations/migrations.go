package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"viajeia-backend/conn"
)

type table struct {
	name   string
	mysql  string
	sqlite string
}

var tables = []table{
	{
		name: "conversation_sessions",
		mysql: `
	CREATE TABLE IF NOT EXISTS conversation_sessions (
		id VARCHAR(36) PRIMARY KEY,
		current_destination VARCHAR(200) NULL,
		pending_detected VARCHAR(200) NULL,
		pending_current VARCHAR(200) NULL,
		pending_question TEXT NULL,
		pending_created_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		sqlite: `
	CREATE TABLE IF NOT EXISTS conversation_sessions (
		id TEXT PRIMARY KEY,
		current_destination TEXT NULL,
		pending_detected TEXT NULL,
		pending_current TEXT NULL,
		pending_question TEXT NULL,
		pending_created_at DATETIME NULL,
		created_at DATETIME NOT NULL
	);`,
	},
	{
		name: "conversation_messages",
		mysql: `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL,
		role VARCHAR(16) NOT NULL,
		content MEDIUMTEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_messages_session (session_id, id),
		FOREIGN KEY (session_id) REFERENCES conversation_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		sqlite: `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES conversation_sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON conversation_messages (session_id, id);`,
	},
	{
		name: "favorites",
		mysql: `
	CREATE TABLE IF NOT EXISTS favorites (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL,
		destination VARCHAR(200) NOT NULL,
		departure_date VARCHAR(10) NOT NULL DEFAULT '',
		return_date VARCHAR(10) NOT NULL DEFAULT '',
		pdf LONGBLOB NOT NULL,
		pages INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_favorites_session (session_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		sqlite: `
	CREATE TABLE IF NOT EXISTS favorites (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		destination TEXT NOT NULL,
		departure_date TEXT NOT NULL DEFAULT '',
		return_date TEXT NOT NULL DEFAULT '',
		pdf BLOB NOT NULL,
		pages INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_favorites_session ON favorites (session_id, created_at);`,
	},
}

// Migrate creates required tables if they do not exist
func Migrate(ctx context.Context, db *sql.DB, dialect conn.Dialect) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	for _, t := range tables {
		ddl := t.mysql
		if dialect == conn.SQLite {
			ddl = t.sqlite
		}
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating %s: %w", t.name, err)
		}
	}
	return nil
}
