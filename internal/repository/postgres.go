package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS step_data (
			id SERIAL PRIMARY KEY,
			date TEXT NOT NULL UNIQUE,
			step_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sleep_data (
			id SERIAL PRIMARY KEY,
			date TEXT NOT NULL UNIQUE,
			sleep_data TEXT NOT NULL
		)`,
	},
	upsertSteps: `
		INSERT INTO step_data (date, step_count)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET
			step_count = EXCLUDED.step_count
	`,
	upsertSleep: `
		INSERT INTO sleep_data (date, sleep_data)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET
			sleep_data = EXCLUDED.sleep_data
	`,
	selectSteps: `
		SELECT date, step_count FROM step_data
		WHERE date BETWEEN $1 AND $2
		ORDER BY date
	`,
	selectSleep: `
		SELECT date, sleep_data FROM sleep_data
		WHERE date BETWEEN $1 AND $2
		ORDER BY date
	`,
	isMissingTable: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "42P01"
	},
}

type PostgresStore struct {
	*sqlStore
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newPostgresStore(db), nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore: &sqlStore{db: db, dialect: postgresDialect}}
}
