package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jask/jasktasks/internal/database"
)

// RecordRepo handles the key/value records table.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo { return &RecordRepo{db: db} }

// Get returns the record stored under key, or nil if the key is absent.
func (r *RecordRepo) Get(ctx context.Context, key string) (*StoredRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM records WHERE key = ?`, key)
	var rec StoredRecord
	if err := row.Scan(&rec.Key, &rec.Value, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecordRepo) Put(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO records(key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
	`, key, value, database.Now())
	return err
}

func (r *RecordRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	return err
}

// Record binds a single key of the records table. It satisfies
// service.Persistence.
type Record struct {
	repo *RecordRepo
	key  string
}

func (r *RecordRepo) Record(key string) *Record { return &Record{repo: r, key: key} }

func (r *Record) Key() string { return r.key }

func (r *Record) Load(ctx context.Context) ([]byte, bool, error) {
	rec, err := r.repo.Get(ctx, r.key)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, nil
	}
	return []byte(rec.Value), true, nil
}

func (r *Record) Save(ctx context.Context, data []byte) error {
	return r.repo.Put(ctx, r.key, string(data))
}

func (r *Record) Delete(ctx context.Context) error {
	return r.repo.Delete(ctx, r.key)
}
