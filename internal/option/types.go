// Package option owns the option records and the quote → create → settle →
// claim lifecycle. It drives the liquidity vault through its capability gate
// and consumes the split-phase oracle collaborators; it never blocks on an
// external result.
package option

import (
	"time"

	"github.com/google/uuid"

	"RainLedger/internal/funds"
)

// Direction says which side of the strike pays.
type Direction int

const (
	AboveStrike Direction = iota // pays when measurement exceeds the strike
	BelowStrike                  // pays when measurement falls short of the strike
)

func (d Direction) String() string {
	if d == BelowStrike {
		return "below_strike"
	}
	return "above_strike"
}

// ParseDirection maps the wire form back to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "above_strike":
		return AboveStrike, nil
	case "below_strike":
		return BelowStrike, nil
	default:
		return AboveStrike, ErrInvalidTerms
	}
}

// Status is the option lifecycle state.
type Status int

const (
	StatusActive Status = iota
	StatusSettling
	StatusSettled
	// StatusExpired is reserved in the status space but no transition ever
	// produces it; only Active → Settling → Settled is reachable. Kept for
	// wire compatibility with historic records.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSettling:
		return "settling"
	case StatusSettled:
		return "settled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terms are immutable once the option is created. Strike and spread are in
// millimeters of rainfall; notional is capital units paid per millimeter
// beyond the strike, capped at the spread.
type Terms struct {
	Direction     Direction `json:"direction"`
	Latitude      string    `json:"latitude"`
	Longitude     string    `json:"longitude"`
	Start         time.Time `json:"start"`
	Expiry        time.Time `json:"expiry"`
	StrikeMM      int64     `json:"strike_mm"`
	SpreadMM      int64     `json:"spread_mm"`
	NotionalPerMM int64     `json:"notional_per_mm"`
	Premium       int64     `json:"premium"`
}

// MaxPayout is the worst-case payout, which is exactly the collateral locked
// against the option.
func (t Terms) MaxPayout() int64 {
	return t.SpreadMM * t.NotionalPerMM
}

// Option is one underwritten contract.
type Option struct {
	ID    int64
	Terms Terms

	Status      Status
	Holder      funds.Account
	CreatedAt   time.Time
	LocationKey string

	// OracleRequest is the outstanding measurement request handle, set when
	// settlement is requested.
	OracleRequest *uuid.UUID

	// OwnerAtSettlement is snapshotted when settlement is requested and never
	// changes afterwards; it alone may claim.
	OwnerAtSettlement funds.Account

	MeasuredMM int64
	PayoutDue  int64
	SettledAt  time.Time
}

// PendingQuote is a priced-but-unfunded request. It may be consumed only by
// its requester, only once, and only within the validity window.
type PendingQuote struct {
	Handle      uuid.UUID
	Requester   funds.Account
	RequestedAt time.Time

	Direction     Direction
	Latitude      string
	Longitude     string
	Start         time.Time
	Expiry        time.Time
	StrikeMM      int64
	SpreadMM      int64
	NotionalPerMM int64
}
