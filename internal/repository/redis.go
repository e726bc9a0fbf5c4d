package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nadmax/fitsync/internal/health"
	"github.com/redis/go-redis/v9"
)

const (
	redisSchemaKey = "fitsync:schema"
	redisStepsKey  = "fitsync:step_data"
	redisSleepKey  = "fitsync:sleep_data"
	schemaVersion  = 1
)

// RedisStore keeps each table in a hash whose fields are dates, so HSET is the upsert.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisAddr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) EnsureSchema(ctx context.Context) error {
	if err := s.client.SetNX(ctx, redisSchemaKey, schemaVersion, 0).Err(); err != nil {
		return &health.PersistenceError{Op: "create redis tables", Err: err}
	}
	return nil
}

func (s *RedisStore) UpsertSteps(ctx context.Context, date health.Date, stepCount int) error {
	if err := s.client.HSet(ctx, redisStepsKey, date.String(), stepCount).Err(); err != nil {
		return upsertError("steps", date, err)
	}
	return nil
}

func (s *RedisStore) UpsertSleep(ctx context.Context, date health.Date, sessions []health.RawSession) error {
	encoded, err := health.EncodeSessions(sessions)
	if err != nil {
		return upsertError("sleep", date, err)
	}

	if err := s.client.HSet(ctx, redisSleepKey, date.String(), encoded).Err(); err != nil {
		return upsertError("sleep", date, err)
	}
	return nil
}

func (s *RedisStore) StepsInRange(ctx context.Context, start, end health.Date) ([]health.StepRow, error) {
	dates, values, err := s.rangeValues(ctx, redisStepsKey, start, end)
	if err != nil {
		return nil, rangeError("step", start, end, err)
	}

	var rows []health.StepRow
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, rangeError("step", start, end, fmt.Errorf("invalid step count %q stored for %s: %w", raw, dates[i], err))
		}
		rows = append(rows, health.StepRow{Date: dates[i], StepCount: count})
	}

	return rows, nil
}

func (s *RedisStore) SleepInRange(ctx context.Context, start, end health.Date) ([]health.SleepRow, error) {
	dates, values, err := s.rangeValues(ctx, redisSleepKey, start, end)
	if err != nil {
		return nil, rangeError("sleep", start, end, err)
	}

	var rows []health.SleepRow
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rows = append(rows, health.SleepRow{Date: dates[i], Sessions: raw})
	}

	return rows, nil
}

// rangeValues fetches every date of the range in one HMGET; missing dates come back nil.
func (s *RedisStore) rangeValues(ctx context.Context, key string, start, end health.Date) ([]string, []any, error) {
	exists, err := s.client.Exists(ctx, redisSchemaKey).Result()
	if err != nil {
		return nil, nil, err
	}
	if exists == 0 {
		return nil, nil, health.ErrNoDataSource
	}

	days := health.NewDateRange(start, end).Dates()
	if len(days) == 0 {
		return nil, nil, nil
	}

	fields := make([]string, 0, len(days))
	for _, d := range days {
		fields = append(fields, d.String())
	}

	values, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, nil, err
	}
	return fields, values, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
