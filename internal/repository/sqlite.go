package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS step_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			step_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sleep_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			sleep_data TEXT NOT NULL
		)`,
	},
	upsertSteps: `
		INSERT INTO step_data (date, step_count)
		VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET
			step_count = excluded.step_count
	`,
	upsertSleep: `
		INSERT INTO sleep_data (date, sleep_data)
		VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET
			sleep_data = excluded.sleep_data
	`,
	selectSteps: `
		SELECT date, step_count FROM step_data
		WHERE date BETWEEN ? AND ?
		ORDER BY date
	`,
	selectSleep: `
		SELECT date, sleep_data FROM sleep_data
		WHERE date BETWEEN ? AND ?
		ORDER BY date
	`,
	isMissingTable: func(err error) bool {
		return strings.Contains(err.Error(), "no such table")
	},
}

type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (creating if needed) the database file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; serialize connections so concurrent
	// per-date upserts queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{
		sqlStore: &sqlStore{db: db, dialect: sqliteDialect},
	}, nil
}
