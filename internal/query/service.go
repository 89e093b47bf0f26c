// Package query provides read-only access to the Postgres projections. The
// in-memory engine answers live-state questions; this service answers
// history questions that outlive the process.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Service reads the rain schema.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// OptionRow mirrors one rain.options projection row.
type OptionRow struct {
	OptionID      int64     `json:"option_id"`
	Holder        string    `json:"holder"`
	Status        string    `json:"status"`
	Latitude      string    `json:"latitude"`
	Longitude     string    `json:"longitude"`
	StrikeMM      int64     `json:"strike_mm"`
	SpreadMM      int64     `json:"spread_mm"`
	NotionalPerMM int64     `json:"notional_per_mm"`
	Premium       int64     `json:"premium"`
	Start         time.Time `json:"start"`
	Expiry        time.Time `json:"expiry"`
	MeasuredMM    int64     `json:"measured_mm"`
	Payout        int64     `json:"payout"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RecordRow is one append-only log row.
type RecordRow struct {
	RecordID string          `json:"record_id"`
	Kind     string          `json:"kind"`
	At       time.Time       `json:"at"`
	Payload  json.RawMessage `json:"payload"`
}

// DrawRow is one reinsurance draw audit row.
type DrawRow struct {
	ID          int64     `json:"id"`
	Requested   int64     `json:"requested"`
	Transferred int64     `json:"transferred"`
	Trigger     string    `json:"trigger"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

const optionColumns = `option_id, holder, status, latitude, longitude,
	strike_mm, spread_mm, notional_per_mm, premium, start_at, expiry_at,
	measured_mm, payout, updated_at`

func scanOption(row interface{ Scan(...interface{}) error }) (OptionRow, error) {
	var o OptionRow
	err := row.Scan(&o.OptionID, &o.Holder, &o.Status, &o.Latitude, &o.Longitude,
		&o.StrikeMM, &o.SpreadMM, &o.NotionalPerMM, &o.Premium, &o.Start, &o.Expiry,
		&o.MeasuredMM, &o.Payout, &o.UpdatedAt)
	return o, err
}

// OptionByID fetches one option projection row.
func (s *Service) OptionByID(ctx context.Context, id int64) (*OptionRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+optionColumns+` FROM rain.options WHERE option_id = $1`, id)
	o, err := scanOption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query option %d: %w", id, err)
	}
	return &o, nil
}

// OptionsByHolder lists a holder's options, newest first.
func (s *Service) OptionsByHolder(ctx context.Context, holder string, limit int) ([]OptionRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+optionColumns+` FROM rain.options
		 WHERE holder = $1 ORDER BY option_id DESC LIMIT $2`, holder, limit)
	if err != nil {
		return nil, fmt.Errorf("query options for %s: %w", holder, err)
	}
	defer rows.Close()

	var out []OptionRow
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OptionsByStatus lists options in one lifecycle status.
func (s *Service) OptionsByStatus(ctx context.Context, status string, limit int) ([]OptionRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+optionColumns+` FROM rain.options
		 WHERE status = $1 ORDER BY option_id DESC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query options with status %s: %w", status, err)
	}
	defer rows.Close()

	var out []OptionRow
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Records lists log rows, optionally filtered by kind, newest first.
func (s *Service) Records(ctx context.Context, kind string, limit int) ([]RecordRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if kind == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT record_id, kind, at, payload FROM rain.records
			 ORDER BY at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT record_id, kind, at, payload FROM rain.records
			 WHERE kind = $1 ORDER BY at DESC LIMIT $2`, kind, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.RecordID, &r.Kind, &r.At, (*[]byte)(&r.Payload)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DrawHistory lists reinsurance draws, newest first.
func (s *Service) DrawHistory(ctx context.Context, limit int) ([]DrawRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requested, transferred, trigger, reason, at
		 FROM rain.reinsurance_draws ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()

	var out []DrawRow
	for rows.Next() {
		var d DrawRow
		if err := rows.Scan(&d.ID, &d.Requested, &d.Transferred, &d.Trigger, &d.Reason, &d.At); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
