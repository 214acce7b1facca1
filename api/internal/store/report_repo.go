package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = sql.ErrNoRows

// ReportRepo caches successful model answers.
// PK: (input_hash, kind).
type ReportRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db, now: time.Now} }

// Find returns the cached answer for (inputHash, kind). With maxAge > 0 an
// older row is reported as ErrNotFound so the model is called again.
func (r *ReportRepo) Find(ctx context.Context, inputHash, kind string, maxAge time.Duration) (string, string, error) {
	const q = `select model, report_text, created_at
	           from reports_cache
	           where input_hash=$1 and kind=$2`
	var (
		model, text string
		ts          time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, inputHash, kind).Scan(&model, &text, &ts); err != nil {
		return "", "", err
	}
	if maxAge > 0 && r.now().Sub(ts) > maxAge {
		return "", "", ErrNotFound
	}
	return model, text, nil
}

// Upsert stores or refreshes a model answer.
func (r *ReportRepo) Upsert(ctx context.Context, inputHash, kind, model, text string) error {
	const q = `
insert into reports_cache(input_hash, kind, model, report_text)
values ($1,$2,$3,$4)
on conflict (input_hash, kind)
do update set model=excluded.model, report_text=excluded.report_text, created_at=now()`
	_, err := r.DB.ExecContext(ctx, q, inputHash, kind, model, text)
	return err
}

// PurgeOlderThan deletes cache rows older than olderThan.
func (r *ReportRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := r.now().Add(-olderThan)
	const q = `delete from reports_cache where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
