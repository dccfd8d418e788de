// Package sqlite SQLite 触发记录存储
//
// 适用于多个制品共享一份本机状态、又希望有事务语义的场景。
// 纯 Go 驱动（modernc.org/sqlite），无 cgo 依赖。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"deploy-admin/internal/model"
	"deploy-admin/internal/triggerstore"
)

// Store SQLite 触发记录存储
type Store struct {
	db *sql.DB
}

var _ triggerstore.Store = (*Store)(nil)

// schema 建表语句
const schema = `
CREATE TABLE IF NOT EXISTS trigger_records (
    name VARCHAR(64) PRIMARY KEY,
    fingerprint VARCHAR(64) NOT NULL,
    image_ref TEXT,
    published_at DATETIME NOT NULL
);
`

// Open 打开 SQLite 存储
// dsn 示例: "file:state/triggers.db" 或 ":memory:"
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, name string) (*model.TriggerRecord, error) {
	query := `SELECT name, fingerprint, image_ref, published_at FROM trigger_records WHERE name = ?`

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
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			image_ref = excluded.image_ref,
			published_at = excluded.published_at
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
		var publishedAt time.Time
		if err := rows.Scan(&record.Name, &fp, &imageRef, &publishedAt); err != nil {
			return nil, err
		}
		record.Fingerprint = model.Fingerprint(fp)
		record.ImageRef = imageRef.String
		record.PublishedAt = publishedAt
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
