package option

import "github.com/google/uuid"

// DefaultSweepLimit bounds how many options one sweep pass examines.
const DefaultSweepLimit = 100

// SweepAction says what a sweep pass did to one option.
type SweepAction string

const (
	ActionSettlementRequested SweepAction = "settlement_requested"
	ActionSettled             SweepAction = "settled"
	ActionClaimed             SweepAction = "claimed"
	ActionSkipped             SweepAction = "skipped"
	ActionError               SweepAction = "error"
)

// SweepResult reports the outcome for one option touched by a sweep pass.
type SweepResult struct {
	OptionID int64       `json:"option_id"`
	Action   SweepAction `json:"action"`
	Payout   int64       `json:"payout,omitempty"`
	Err      string      `json:"error,omitempty"`
}

// Sweep advances settlement for up to limit active options: expired Active
// options get a settlement request, Settling options with a fulfilled
// measurement get settled, and with autoClaim the payout is pushed to the
// beneficiary in the same pass. One option failing never stops the pass.
func (l *Ledger) Sweep(limit int, autoClaim bool) []SweepResult {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	ids := l.ActiveOptions()
	if len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]SweepResult, 0, len(ids))
	now := l.now()
	for _, id := range ids {
		opt := l.options[id]
		switch opt.Status {
		case StatusActive:
			if now.Before(opt.Terms.Expiry) {
				results = append(results, SweepResult{OptionID: id, Action: ActionSkipped})
				continue
			}
			if _, err := l.RequestSettlement(id); err != nil {
				results = append(results, SweepResult{OptionID: id, Action: ActionError, Err: err.Error()})
				continue
			}
			results = append(results, SweepResult{OptionID: id, Action: ActionSettlementRequested})

		case StatusSettling:
			payout, err := l.Settle(id)
			if err == ErrOracleNotFulfilled {
				results = append(results, SweepResult{OptionID: id, Action: ActionSkipped})
				continue
			}
			if err != nil {
				results = append(results, SweepResult{OptionID: id, Action: ActionError, Err: err.Error()})
				continue
			}
			res := SweepResult{OptionID: id, Action: ActionSettled, Payout: payout}
			if autoClaim && payout > 0 {
				if _, err := l.ClaimPayout(opt.OwnerAtSettlement, id); err != nil {
					res.Err = err.Error()
				} else {
					res.Action = ActionClaimed
				}
			}
			results = append(results, res)

		default:
			results = append(results, SweepResult{OptionID: id, Action: ActionSkipped})
		}
	}
	return results
}

// OracleHandle returns the option's outstanding measurement request, if any.
func (l *Ledger) OracleHandle(id int64) (uuid.UUID, bool) {
	opt, ok := l.options[id]
	if !ok || opt.OracleRequest == nil {
		return uuid.Nil, false
	}
	return *opt.OracleRequest, true
}
