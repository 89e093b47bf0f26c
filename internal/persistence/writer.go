package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RecordWriter writes ledger records to Postgres using multi-row INSERT.
// Switch to pgx CopyFrom if write throughput ever becomes the bottleneck.
type RecordWriter struct {
	db *sql.DB
}

func NewRecordWriter(db *sql.DB) *RecordWriter {
	return &RecordWriter{db: db}
}

// WriteRecordBatch inserts a batch of records inside the given transaction.
// Writes are idempotent on record_id, so a retried batch never duplicates.
func (w *RecordWriter) WriteRecordBatch(ctx context.Context, tx *sql.Tx, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO rain.records (record_id, kind, at, payload) VALUES `

	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*4)

	for i, r := range records {
		base := i * 4
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4,
		))
		args = append(args, r.RecordID, string(r.Kind), r.At, []byte(r.Payload))
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (record_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
