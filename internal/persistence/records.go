package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RecordKind tags a ledger record row.
type RecordKind string

const (
	KindAccountCredit          RecordKind = "account_credit"
	KindAccountDebit           RecordKind = "account_debit"
	KindQuoteRequested         RecordKind = "quote_requested"
	KindOptionCreated          RecordKind = "option_created"
	KindSettlementRequested    RecordKind = "settlement_requested"
	KindOptionSettled          RecordKind = "option_settled"
	KindPayoutClaimed          RecordKind = "payout_claimed"
	KindCertificateTransferred RecordKind = "certificate_transferred"
	KindVaultDeposit           RecordKind = "vault_deposit"
	KindVaultWithdraw          RecordKind = "vault_withdraw"
	KindReinsuranceDeposit     RecordKind = "reinsurance_deposit"
	KindReinsuranceWithdraw    RecordKind = "reinsurance_withdraw"
	KindReinsuranceDraw        RecordKind = "reinsurance_draw"
	KindYieldClaimed           RecordKind = "yield_claimed"
	KindLimitsChanged          RecordKind = "limits_changed"
	KindFeesWithdrawn          RecordKind = "fees_withdrawn"
)

// Record is one append-only row destined for rain.records. The payload is
// one of the typed structs below, JSON-encoded.
type Record struct {
	RecordID uuid.UUID
	Kind     RecordKind
	At       time.Time
	Payload  json.RawMessage
}

// NewRecord encodes payload and stamps a fresh record ID.
func NewRecord(kind RecordKind, at time.Time, payload interface{}) (Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, err
	}
	return Record{
		RecordID: uuid.New(),
		Kind:     kind,
		At:       at,
		Payload:  data,
	}, nil
}

// AccountFlow covers credits, debits, deposits, withdrawals, and claims.
type AccountFlow struct {
	Account  string `json:"account"`
	Amount   int64  `json:"amount"`
	Shares   int64  `json:"shares,omitempty"`
	OptionID int64  `json:"option_id,omitempty"`
}

// QuoteRecord captures an opened premium quote.
type QuoteRecord struct {
	Handle        string `json:"handle"`
	Requester     string `json:"requester"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	StrikeMM      int64  `json:"strike_mm"`
	SpreadMM      int64  `json:"spread_mm"`
	NotionalPerMM int64  `json:"notional_per_mm"`
}

// OptionRecord captures an underwritten option at creation.
type OptionRecord struct {
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
}

// SettlementRecord covers both the settlement request and the settlement
// itself.
type SettlementRecord struct {
	OptionID     int64  `json:"option_id"`
	OracleHandle string `json:"oracle_handle,omitempty"`
	MeasuredMM   int64  `json:"measured_mm,omitempty"`
	Payout       int64  `json:"payout,omitempty"`
	Beneficiary  string `json:"beneficiary,omitempty"`
}

// TransferRecord captures a certificate changing hands.
type TransferRecord struct {
	OptionID int64  `json:"option_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// LimitsRecord captures a guardian retune of the vault ceilings.
type LimitsRecord struct {
	MaxUtilizationBps    int64 `json:"max_utilization_bps"`
	TargetUtilizationBps int64 `json:"target_utilization_bps"`
}

// DrawRecordRow captures a reinsurance draw into the vault.
type DrawRecordRow struct {
	Requested   int64  `json:"requested"`
	Transferred int64  `json:"transferred"`
	Trigger     string `json:"trigger"`
	Reason      string `json:"reason"`
}
