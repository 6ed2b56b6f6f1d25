package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"glassbank/pkg/sentinel"
)

// PostgresStore persists audit records durably. The attribute lists and
// snapshots are stored as JSONB so the schema survives attribute catalog
// changes without migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for the audit table, applied by deployment tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	operation      TEXT NOT NULL,
	query_text     TEXT NOT NULL DEFAULT '',
	data_snapshot  JSONB,
	queries_run    JSONB,
	model          TEXT NOT NULL DEFAULT '',
	raw_output     TEXT NOT NULL DEFAULT '',
	self_reported  JSONB NOT NULL DEFAULT '[]',
	accessed       JSONB NOT NULL DEFAULT '[]',
	validated      JSONB NOT NULL DEFAULT '[]',
	status         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	processing_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS audit_records_user_created_idx
	ON audit_records (user_id, created_at DESC);
`

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	selfReported, err := json.Marshal(record.SelfReported)
	if err != nil {
		return fmt.Errorf("marshal self reported: %w", err)
	}
	accessed, err := json.Marshal(record.Accessed)
	if err != nil {
		return fmt.Errorf("marshal accessed: %w", err)
	}
	validated, err := json.Marshal(record.Validated)
	if err != nil {
		return fmt.Errorf("marshal validated: %w", err)
	}

	query := `
		INSERT INTO audit_records
			(id, user_id, operation, query_text, data_snapshot, queries_run,
			 model, raw_output, self_reported, accessed, validated, status,
			 created_at, processing_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Operation,
		record.QueryText,
		nullableJSON(record.DataSnapshot),
		nullableJSON(record.QueriesRun),
		record.Model,
		record.RawOutput,
		selfReported,
		accessed,
		validated,
		record.Status,
		record.CreatedAt,
		record.ProcessingMS,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, limit, offset int) ([]Record, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	query := `
		SELECT id, user_id, operation, query_text, data_snapshot, queries_run,
		       model, raw_output, self_reported, accessed, validated, status,
		       created_at, processing_ms
		FROM audit_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, total, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, recordID string) (Record, error) {
	query := `
		SELECT id, user_id, operation, query_text, data_snapshot, queries_run,
		       model, raw_output, self_reported, accessed, validated, status,
		       created_at, processing_ms
		FROM audit_records
		WHERE user_id = $1 AND id = $2
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, userID, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("audit record %q: %w", recordID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		record       Record
		snapshot     sql.NullString
		queriesRun   sql.NullString
		selfReported []byte
		accessed     []byte
		validated    []byte
	)
	err := row.Scan(
		&record.ID, &record.UserID, &record.Operation, &record.QueryText,
		&snapshot, &queriesRun,
		&record.Model, &record.RawOutput,
		&selfReported, &accessed, &validated, &record.Status,
		&record.CreatedAt, &record.ProcessingMS,
	)
	if err != nil {
		return Record{}, err
	}
	if snapshot.Valid {
		record.DataSnapshot = json.RawMessage(snapshot.String)
	}
	if queriesRun.Valid {
		record.QueriesRun = json.RawMessage(queriesRun.String)
	}
	if err := json.Unmarshal(selfReported, &record.SelfReported); err != nil {
		return Record{}, fmt.Errorf("decode self reported: %w", err)
	}
	if err := json.Unmarshal(accessed, &record.Accessed); err != nil {
		return Record{}, fmt.Errorf("decode accessed: %w", err)
	}
	if err := json.Unmarshal(validated, &record.Validated); err != nil {
		return Record{}, fmt.Errorf("decode validated: %w", err)
	}
	return record, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
