// Package postgres PostgreSQL 触发记录存储
//
// 适用于多人/CI 共享 provisioning 状态的场景。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"deploy-admin/internal/model"
	"deploy-admin/internal/triggerstore"
)

// Store PostgreSQL 触发记录存储
type Store struct {
	db *sql.DB
}

var _ triggerstore.Store = (*Store)(nil)

// schema 建表语句（幂等）
const schema = `
CREATE TABLE IF NOT EXISTS trigger_records (
    name VARCHAR(64) PRIMARY KEY,
    fingerprint VARCHAR(64) NOT NULL,
    image_ref TEXT,
    published_at TIMESTAMPTZ NOT NULL
)
`

// Open 打开 PostgreSQL 存储
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, name string) (*model.TriggerRecord, error) {
	query := `SELECT name, fingerprint, image_ref, published_at FROM trigger_records WHERE name = $1`

	var record model.TriggerRecord
	var fp string
	var imageRef sql.NullString
	err := s.db.QueryRowContext(ctx, query, name).Scan(&record.Name, &fp, &imageRef, &record.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, triggerstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger record %s: %w", name, err)
	}
	record.Fingerprint = model.Fingerprint(fp)
	record.ImageRef = imageRef.String
	return &record, nil
}

func (s *Store) Put(ctx context.Context, record *model.TriggerRecord) error {
	query := `
		INSERT INTO trigger_records (name, fingerprint, image_ref, published_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			image_ref = EXCLUDED.image_ref,
			published_at = EXCLUDED.published_at
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Name, string(record.Fingerprint), record.ImageRef, record.PublishedAt.UTC())
	if err != nil {
		return fmt.Errorf("put trigger record %s: %w", record.Name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*model.TriggerRecord, error) {
	query := `SELECT name, fingerprint, image_ref, published_at FROM trigger_records ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trigger records: %w", err)
	}
	defer rows.Close()

	var records []*model.TriggerRecord
	for rows.Next() {
		var record model.TriggerRecord
		var fp string
		var imageRef sql.NullString
		if err := rows.Scan(&record.Name, &fp, &imageRef, &record.PublishedAt); err != nil {
			return nil, err
		}
		record.Fingerprint = model.Fingerprint(fp)
		record.ImageRef = imageRef.String
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
