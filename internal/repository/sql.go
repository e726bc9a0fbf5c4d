package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nadmax/fitsync/internal/health"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name           string
	schema         []string
	upsertSteps    string
	upsertSleep    string
	selectSteps    string
	selectSleep    string
	isMissingTable func(error) bool
}

type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &health.PersistenceError{Op: "create " + s.dialect.name + " tables", Err: err}
		}
	}
	return nil
}

func (s *sqlStore) UpsertSteps(ctx context.Context, date health.Date, stepCount int) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertSteps, date.String(), stepCount); err != nil {
		return upsertError("steps", date, s.classify(err))
	}
	return nil
}

func (s *sqlStore) UpsertSleep(ctx context.Context, date health.Date, sessions []health.RawSession) error {
	encoded, err := health.EncodeSessions(sessions)
	if err != nil {
		return upsertError("sleep", date, err)
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsertSleep, date.String(), encoded); err != nil {
		return upsertError("sleep", date, s.classify(err))
	}
	return nil
}

func (s *sqlStore) StepsInRange(ctx context.Context, start, end health.Date) ([]health.StepRow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.selectSteps, start.String(), end.String())
	if err != nil {
		return nil, rangeError("step", start, end, s.classify(err))
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Warn("failed to close rows", "table", "step_data", "error", err)
		}
	}()

	var result []health.StepRow
	for rows.Next() {
		var r health.StepRow
		if err := rows.Scan(&r.Date, &r.StepCount); err != nil {
			return nil, rangeError("step", start, end, err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, rangeError("step", start, end, err)
	}
	return result, nil
}

func (s *sqlStore) SleepInRange(ctx context.Context, start, end health.Date) ([]health.SleepRow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.selectSleep, start.String(), end.String())
	if err != nil {
		return nil, rangeError("sleep", start, end, s.classify(err))
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Warn("failed to close rows", "table", "sleep_data", "error", err)
		}
	}()

	var result []health.SleepRow
	for rows.Next() {
		var r health.SleepRow
		if err := rows.Scan(&r.Date, &r.Sessions); err != nil {
			return nil, rangeError("sleep", start, end, err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, rangeError("sleep", start, end, err)
	}
	return result, nil
}

func (s *sqlStore) classify(err error) error {
	if s.dialect.isMissingTable != nil && s.dialect.isMissingTable(err) {
		return fmt.Errorf("%w: %w", health.ErrNoDataSource, err)
	}
	return err
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
