// Package projection maintains queryable Postgres tables derived from the
// engine's record stream. The projection channel is non-blocking with drop:
// if a worker falls behind, the tables are rebuilt from rain.records.
package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"RainLedger/internal/persistence"
)

// Worker consumes records and updates the rain.options and
// rain.reinsurance_draws projections.
type Worker struct {
	db        *sql.DB
	inputChan <-chan persistence.Record
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan persistence.Record, log zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		log:       log.With().Str("component", "projection").Logger(),
	}
}

// Run starts the projection loop. Failed updates are logged and skipped;
// projections are eventually consistent and rebuildable.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-w.inputChan:
			if !ok {
				return nil
			}
			if err := w.apply(ctx, rec); err != nil {
				w.log.Warn().Err(err).Str("kind", string(rec.Kind)).Msg("projection update failed")
			}
		}
	}
}

func (w *Worker) apply(ctx context.Context, rec persistence.Record) error {
	switch rec.Kind {
	case persistence.KindOptionCreated:
		var p persistence.OptionRecord
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return err
		}
		_, err := w.db.ExecContext(ctx, `
			INSERT INTO rain.options
				(option_id, holder, status, latitude, longitude, strike_mm, spread_mm, notional_per_mm, premium, start_at, expiry_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (option_id) DO NOTHING
		`, p.OptionID, p.Holder, p.Status, p.Latitude, p.Longitude,
			p.StrikeMM, p.SpreadMM, p.NotionalPerMM, p.Premium, p.Start, p.Expiry, rec.At)
		return err

	case persistence.KindSettlementRequested:
		var p persistence.SettlementRecord
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return err
		}
		_, err := w.db.ExecContext(ctx, `
			UPDATE rain.options SET status = 'settling', updated_at = $2 WHERE option_id = $1
		`, p.OptionID, rec.At)
		return err

	case persistence.KindOptionSettled:
		var p persistence.SettlementRecord
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return err
		}
		_, err := w.db.ExecContext(ctx, `
			UPDATE rain.options
			SET status = 'settled', measured_mm = $2, payout = $3, updated_at = $4
			WHERE option_id = $1
		`, p.OptionID, p.MeasuredMM, p.Payout, rec.At)
		return err

	case persistence.KindCertificateTransferred:
		var p persistence.TransferRecord
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return err
		}
		_, err := w.db.ExecContext(ctx, `
			UPDATE rain.options SET holder = $2, updated_at = $3 WHERE option_id = $1
		`, p.OptionID, p.To, rec.At)
		return err

	case persistence.KindReinsuranceDraw:
		var p persistence.DrawRecordRow
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return err
		}
		_, err := w.db.ExecContext(ctx, `
			INSERT INTO rain.reinsurance_draws (requested, transferred, trigger, reason, at)
			VALUES ($1, $2, $3, $4, $5)
		`, p.Requested, p.Transferred, p.Trigger, p.Reason, rec.At)
		return err

	default:
		// Record kinds without a projection are skipped.
		return nil
	}
}

// Rebuild repopulates the projections from rain.records after truncating
// them.
func Rebuild(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`TRUNCATE rain.options`,
		`TRUNCATE rain.reinsurance_draws`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT record_id, kind, at, payload FROM rain.records ORDER BY at, record_id
	`)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	w := &Worker{db: db, log: zerolog.Nop()}
	for rows.Next() {
		var rec persistence.Record
		var kind string
		if err := rows.Scan(&rec.RecordID, &kind, &rec.At, (*[]byte)(&rec.Payload)); err != nil {
			return err
		}
		rec.Kind = persistence.RecordKind(kind)
		if err := w.apply(ctx, rec); err != nil {
			return fmt.Errorf("replay %s: %w", rec.RecordID, err)
		}
	}
	return rows.Err()
}
