package usage

import (
	"context"
	"database/sql"
	"errors"
)

// PGStore keeps authenticated usage in the user_usage table.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed counter store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Load(ctx context.Context, id Identity) (UsageRecord, error) {
	rec := UsageRecord{UserID: id.UserID}
	row := s.DB.QueryRowContext(ctx, `
SELECT used_today, to_char(last_reset_date, 'YYYY-MM-DD')
FROM user_usage WHERE user_id = $1`, id.UserID)
	if err := row.Scan(&rec.Used, &rec.LastResetDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UsageRecord{}, ErrRecordNotFound
		}
		return UsageRecord{}, err
	}
	return rec, nil
}

func (s *PGStore) Save(ctx context.Context, id Identity, rec UsageRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO user_usage (user_id, used_today, last_reset_date)
VALUES ($1, $2, $3::date)
ON CONFLICT (user_id) DO UPDATE
SET used_today = EXCLUDED.used_today, last_reset_date = EXCLUDED.last_reset_date, updated_at = now()`,
		id.UserID, rec.Used, rec.LastResetDate)
	return err
}

// Increment bumps the counter in a single statement so concurrent API
// instances cannot lose an update.
func (s *PGStore) Increment(ctx context.Context, id Identity, today string) (UsageRecord, error) {
	rec := UsageRecord{UserID: id.UserID}
	row := s.DB.QueryRowContext(ctx, `
UPDATE user_usage
SET used_today = CASE WHEN last_reset_date = $2::date THEN used_today + 1 ELSE 1 END,
    last_reset_date = $2::date,
    updated_at = now()
WHERE user_id = $1
RETURNING used_today, to_char(last_reset_date, 'YYYY-MM-DD')`, id.UserID, today)
	if err := row.Scan(&rec.Used, &rec.LastResetDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UsageRecord{}, ErrRecordNotFound
		}
		return UsageRecord{}, err
	}
	return rec, nil
}
