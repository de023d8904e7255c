package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresStore keeps table metadata in one table and records as JSONB
// rows in another.
type PostgresStore struct {
	pool    *pgxpool.Pool
	tables  string
	records string
	logger  *slog.Logger
}

// PostgresOptions configures NewPostgresStore.
type PostgresOptions struct {
	DSN      string
	MaxConns int32
	// Schema defaults to public.
	Schema string
	Logger *slog.Logger
}

// NewPostgresStore connects and creates the backing tables when missing.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := NewPostgresStoreFromPool(pool, opts.Schema, opts.Logger)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.logger.InfoContext(ctx, "table store ready", slog.String("tables", s.tables), slog.Int("max_conns", int(cfg.MaxConns)))
	return s, nil
}

// NewPostgresStoreFromPool wraps an existing pool without migrating.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, schema string, logger *slog.Logger) *PostgresStore {
	if schema == "" {
		schema = "public"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		pool:    pool,
		tables:  qualified(schema, "mkbd_tables"),
		records: qualified(schema, "mkbd_records"),
		logger:  logger.With(slog.String("component", "store.postgres")),
	}
}

func qualified(schema, name string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name)
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.tables + ` (
			name         TEXT PRIMARY KEY,
			headers      TEXT[] NOT NULL DEFAULT '{}',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + s.records + ` (
			id          BIGSERIAL PRIMARY KEY,
			table_name  TEXT NOT NULL REFERENCES ` + s.tables + `(name) ON DELETE CASCADE,
			file_name   TEXT NOT NULL DEFAULT '',
			upload_date TEXT NOT NULL DEFAULT '',
			data        JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS mkbd_records_table_idx ON ` + s.records + ` (table_name, id)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateTableIfNotExists(ctx context.Context, name string, headers []string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO `+s.tables+` (name, headers) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET headers = EXCLUDED.headers, last_updated = now()`,
		name, pq.Array(headers))
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) AppendRecords(ctx context.Context, name string, records []Record) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+s.tables+` WHERE name = $1)`, name).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		data := clone(r)
		fileName, _ := data[FieldFileName].(string)
		uploaded, _ := data[FieldUploadDate].(string)
		delete(data, FieldID)
		delete(data, FieldFileName)
		delete(data, FieldUploadDate)

		payload, err := json.Marshal(data)
		if err != nil {
			return 0, fmt.Errorf("encode record: %w", err)
		}
		batch.Queue(`INSERT INTO `+s.records+` (table_name, file_name, upload_date, data) VALUES ($1, $2, $3, $4)`,
			name, fileName, uploaded, payload)
	}
	batch.Queue(`UPDATE `+s.tables+` SET last_updated = now() WHERE name = $1`, name)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("append to %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *PostgresStore) ListTables(ctx context.Context) ([]TableMeta, error) {
	rows, err := s.pool.Query(ctx, `SELECT t.name, t.headers, t.created_at, t.last_updated,
			(SELECT count(*) FROM `+s.records+` r WHERE r.table_name = t.name)
		FROM `+s.tables+` t ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TableMeta{}
	for rows.Next() {
		var (
			m     TableMeta
			count int64
		)
		if err := rows.Scan(&m.Name, &m.Headers, &m.CreatedAt, &m.LastUpdated, &count); err != nil {
			return nil, err
		}
		m.RecordCount = int(count)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TableData(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, file_name, upload_date, data FROM `+s.records+`
		WHERE table_name = $1 ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			id       int64
			fileName string
			uploaded string
			payload  []byte
		)
		if err := rows.Scan(&id, &fileName, &uploaded, &payload); err != nil {
			return nil, err
		}
		r := Record{}
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", id, err)
		}
		r[FieldID] = id
		r[FieldFileName] = fileName
		r[FieldUploadDate] = uploaded
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClearTable(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.records+` WHERE table_name = $1`, name); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `UPDATE `+s.tables+` SET last_updated = now() WHERE name = $1`, name)
	return err
}

func (s *PostgresStore) DeleteTable(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.tables+` WHERE name = $1`, name)
	return err
}

// DeleteTables removes several tables in one statement.
func (s *PostgresStore) DeleteTables(ctx context.Context, names []string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.tables+` WHERE name = ANY($1)`, pq.Array(names))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var tables, records int64
	err := s.pool.QueryRow(ctx, `SELECT (SELECT count(*) FROM `+s.tables+`), (SELECT count(*) FROM `+s.records+`)`).
		Scan(&tables, &records)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalTables: int(tables), TotalRecords: int(records)}, nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// IsNotFound reports whether err means the table is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}

var _ TableStore = (*PostgresStore)(nil)
