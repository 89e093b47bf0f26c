package option

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"RainLedger/internal/funds"
	"RainLedger/internal/oracle"
	"RainLedger/internal/vault"
)

const bpsScale = 10_000

// Config carries the ledger's operating parameters. Zero values get sane
// defaults from New.
type Config struct {
	// Account is the ledger's own funds account: fee revenue accumulates
	// here and released payouts land here until claimed.
	Account funds.Account

	// MinNotionalPerMM and MinPremium reject dust positions.
	MinNotionalPerMM int64
	MinPremium       int64

	// FeeBps is the protocol fee charged on top of the quoted premium.
	FeeBps int64

	// QuoteValidity is how long a fulfilled quote may be consumed.
	// Defaults to one hour.
	QuoteValidity time.Duration
}

// Ledger is the option book. All methods assume the caller holds the engine
// lock; the ledger itself does no locking.
type Ledger struct {
	cfg Config

	book     *funds.Book
	vault    *vault.Vault
	gate     *vault.LedgerGate
	premiums oracle.PremiumCalculator
	rainfall oracle.RainfallOracle

	now func() time.Time
	log zerolog.Logger

	nextID  int64
	options map[int64]*Option
	active  map[int64]struct{}
	quotes  map[uuid.UUID]*PendingQuote

	feeRevenue int64
}

// New wires the ledger to its collaborators. The vault gate must have been
// issued for cfg.Account so released payouts land in the ledger's book
// account.
func New(cfg Config, book *funds.Book, v *vault.Vault, gate *vault.LedgerGate,
	premiums oracle.PremiumCalculator, rainfall oracle.RainfallOracle,
	now func() time.Time, log zerolog.Logger) *Ledger {
	if cfg.QuoteValidity <= 0 {
		cfg.QuoteValidity = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		cfg:      cfg,
		book:     book,
		vault:    v,
		gate:     gate,
		premiums: premiums,
		rainfall: rainfall,
		now:      now,
		log:      log.With().Str("component", "option_ledger").Logger(),
		nextID:   1,
		options:  make(map[int64]*Option),
		active:   make(map[int64]struct{}),
		quotes:   make(map[uuid.UUID]*PendingQuote),
	}
}

// coverageDays rounds the coverage window up to whole days for the premium
// model.
func coverageDays(start, expiry time.Time) int64 {
	d := expiry.Sub(start)
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// RequestQuote validates draft terms and opens a premium request with the
// pricing oracle. The returned handle identifies the quote for
// CreateFromQuote.
func (l *Ledger) RequestQuote(requester funds.Account, direction Direction,
	lat, lon string, start, expiry time.Time, strikeMM, spreadMM, notionalPerMM int64) (uuid.UUID, error) {

	now := l.now()
	if !expiry.After(start) || start.Before(now) {
		return uuid.Nil, ErrInvalidTerms
	}
	if strikeMM < 0 || spreadMM <= 0 {
		return uuid.Nil, ErrInvalidTerms
	}
	if notionalPerMM < l.cfg.MinNotionalPerMM || notionalPerMM <= 0 {
		return uuid.Nil, ErrNotionalBelowMin
	}
	nlat, err := NormalizeCoordinate(lat)
	if err != nil {
		return uuid.Nil, err
	}
	nlon, err := NormalizeCoordinate(lon)
	if err != nil {
		return uuid.Nil, err
	}

	handle, err := l.premiums.RequestPremium(nlat, nlon, strikeMM, spreadMM, coverageDays(start, expiry), notionalPerMM)
	if err != nil {
		return uuid.Nil, err
	}

	l.quotes[handle] = &PendingQuote{
		Handle:        handle,
		Requester:     requester,
		RequestedAt:   now,
		Direction:     direction,
		Latitude:      nlat,
		Longitude:     nlon,
		Start:         start,
		Expiry:        expiry,
		StrikeMM:      strikeMM,
		SpreadMM:      spreadMM,
		NotionalPerMM: notionalPerMM,
	}

	l.log.Info().Str("handle", handle.String()).Str("requester", string(requester)).
		Str("lat", nlat).Str("lon", nlon).Msg("quote requested")
	return handle, nil
}

// Quote returns the pending quote for a handle, if any.
func (l *Ledger) Quote(handle uuid.UUID) (*PendingQuote, bool) {
	q, ok := l.quotes[handle]
	return q, ok
}

// QuotedPremium returns the oracle-fulfilled premium for a handle. The
// vault's utilization multiplier is an input to the pricing oracle, not a
// second scaling applied here.
func (l *Ledger) QuotedPremium(handle uuid.UUID) (int64, error) {
	if _, ok := l.quotes[handle]; !ok {
		return 0, ErrUnknownQuote
	}
	if !l.premiums.IsFulfilled(handle) {
		return 0, ErrQuoteNotFulfilled
	}
	premium, err := l.premiums.PremiumByRequest(handle)
	if err != nil {
		return 0, ErrQuoteNotFulfilled
	}
	return premium, nil
}

// CreateFromQuote consumes a fulfilled quote, collects premium and fee from
// the buyer, locks collateral in the vault, and mints the option. paid is
// the amount the buyer committed; anything beyond premium+fee stays with the
// buyer. Either every effect happens or none do.
func (l *Ledger) CreateFromQuote(caller funds.Account, handle uuid.UUID, paid int64) (int64, error) {
	q, ok := l.quotes[handle]
	if !ok {
		return 0, ErrUnknownQuote
	}
	if q.Requester != caller {
		return 0, ErrNotYourQuote
	}
	now := l.now()
	if now.Sub(q.RequestedAt) > l.cfg.QuoteValidity {
		return 0, ErrQuoteExpired
	}
	if q.Start.Before(now) {
		// Coverage window already started before the quote was consumed.
		return 0, ErrQuoteExpired
	}
	premium, err := l.QuotedPremium(handle)
	if err != nil {
		return 0, err
	}
	if premium <= 0 || premium < l.cfg.MinPremium {
		return 0, ErrPremiumBelowMin
	}
	fee := premium * l.cfg.FeeBps / bpsScale
	total := premium + fee
	if paid < total {
		return 0, ErrInsufficientPayment
	}
	if l.book.Balance(caller) < total {
		return 0, funds.ErrInsufficientBalance
	}

	locKey, err := LocationKey(q.Latitude, q.Longitude)
	if err != nil {
		return 0, err
	}
	maxPayout := q.SpreadMM * q.NotionalPerMM
	if !l.vault.CanUnderwrite(maxPayout, locKey) {
		return 0, ErrVaultCannotUnderwrite
	}

	id := l.nextID

	// Collateral first: if the vault rejects despite the pre-check, nothing
	// has been mutated yet.
	if err := l.gate.LockCollateral(maxPayout, id, locKey); err != nil {
		return 0, ErrVaultCannotUnderwrite
	}
	l.nextID++

	opt := &Option{
		ID: id,
		Terms: Terms{
			Direction:     q.Direction,
			Latitude:      q.Latitude,
			Longitude:     q.Longitude,
			Start:         q.Start,
			Expiry:        q.Expiry,
			StrikeMM:      q.StrikeMM,
			SpreadMM:      q.SpreadMM,
			NotionalPerMM: q.NotionalPerMM,
			Premium:       premium,
		},
		Status:      StatusActive,
		Holder:      caller,
		CreatedAt:   now,
		LocationKey: locKey,
	}
	l.options[id] = opt
	l.active[id] = struct{}{}
	delete(l.quotes, handle)

	// Balance was checked above, so the transfers cannot fail.
	if err := l.book.Transfer(caller, l.vault.Account(), premium); err != nil {
		return 0, err
	}
	if fee > 0 {
		if err := l.book.Transfer(caller, l.cfg.Account, fee); err != nil {
			return 0, err
		}
		l.feeRevenue += fee
	}
	if err := l.gate.ReceivePremium(premium, id); err != nil {
		return 0, err
	}

	l.log.Info().Int64("option_id", id).Str("holder", string(caller)).
		Int64("premium", premium).Int64("fee", fee).Int64("collateral", maxPayout).
		Msg("option created")
	return id, nil
}

// RequestSettlement moves an expired option into Settling: the holder at
// this moment is snapshotted as beneficiary, transfers lock, and a rainfall
// measurement request opens with the oracle. Anyone may call it.
func (l *Ledger) RequestSettlement(id int64) (uuid.UUID, error) {
	opt, ok := l.options[id]
	if !ok {
		return uuid.Nil, ErrUnknownOption
	}
	if opt.Status != StatusActive {
		return uuid.Nil, ErrInvalidOptionStatus
	}
	if l.now().Before(opt.Terms.Expiry) {
		return uuid.Nil, ErrOptionNotExpired
	}

	handle, err := l.rainfall.RequestMeasurement(opt.Terms.Latitude, opt.Terms.Longitude, opt.Terms.Start, opt.Terms.Expiry)
	if err != nil {
		return uuid.Nil, err
	}

	opt.Status = StatusSettling
	opt.OracleRequest = &handle
	opt.OwnerAtSettlement = opt.Holder

	l.log.Info().Int64("option_id", id).Str("handle", handle.String()).
		Str("beneficiary", string(opt.OwnerAtSettlement)).Msg("settlement requested")
	return handle, nil
}

// Settle consumes the fulfilled measurement, computes the payout, and
// releases the option's collateral: payout to the ledger's account for the
// beneficiary to claim, the remainder back to the vault's free liquidity.
func (l *Ledger) Settle(id int64) (int64, error) {
	opt, ok := l.options[id]
	if !ok {
		return 0, ErrUnknownOption
	}
	if opt.Status != StatusSettling {
		return 0, ErrInvalidOptionStatus
	}
	if opt.OracleRequest == nil {
		return 0, ErrSettlementNotRequested
	}
	if l.rainfall.RequestStatus(*opt.OracleRequest) != oracle.StatusFulfilled {
		return 0, ErrOracleNotFulfilled
	}
	measured, err := l.rainfall.MeasurementByRequest(*opt.OracleRequest)
	if err != nil {
		return 0, ErrOracleNotFulfilled
	}

	payout := ComputePayout(opt.Terms, measured)

	// A failed release leaves the option in Settling; the sweep retries.
	if err := l.gate.ReleaseCollateral(opt.Terms.MaxPayout(), payout, id, opt.LocationKey); err != nil {
		return 0, err
	}

	opt.Status = StatusSettled
	opt.MeasuredMM = measured
	opt.PayoutDue = payout
	opt.SettledAt = l.now()
	delete(l.active, id)

	l.log.Info().Int64("option_id", id).Int64("measured_mm", measured).
		Int64("payout", payout).Msg("option settled")
	return payout, nil
}

// ClaimPayout pays the settled option's payout to the beneficiary. The due
// amount is zeroed before the transfer so a replay finds nothing pending.
func (l *Ledger) ClaimPayout(caller funds.Account, id int64) (int64, error) {
	opt, ok := l.options[id]
	if !ok {
		return 0, ErrUnknownOption
	}
	if opt.Status != StatusSettled {
		return 0, ErrInvalidOptionStatus
	}
	if opt.PayoutDue == 0 {
		return 0, ErrNoPendingPayout
	}
	if caller != opt.OwnerAtSettlement {
		return 0, ErrNotBeneficiary
	}

	amount := opt.PayoutDue
	opt.PayoutDue = 0
	if err := l.book.Transfer(l.cfg.Account, caller, amount); err != nil {
		opt.PayoutDue = amount
		return 0, err
	}

	l.log.Info().Int64("option_id", id).Str("beneficiary", string(caller)).
		Int64("amount", amount).Msg("payout claimed")
	return amount, nil
}

// TransferCertificate reassigns the option's holder. Blocked while the
// option is settling, since the beneficiary snapshot has already been taken.
func (l *Ledger) TransferCertificate(caller, to funds.Account, id int64) error {
	opt, ok := l.options[id]
	if !ok {
		return ErrUnknownOption
	}
	if opt.Holder != caller {
		return ErrNotCertificateHolder
	}
	if opt.Status == StatusSettling {
		return ErrTransferLocked
	}
	if to == "" || to == caller {
		return ErrInvalidTerms
	}
	opt.Holder = to
	l.log.Info().Int64("option_id", id).Str("from", string(caller)).
		Str("to", string(to)).Msg("certificate transferred")
	return nil
}

// Get returns the option record.
func (l *Ledger) Get(id int64) (*Option, bool) {
	opt, ok := l.options[id]
	return opt, ok
}

// ActiveOptions returns the IDs of all not-yet-settled options in ascending
// order.
func (l *Ledger) ActiveOptions() []int64 {
	ids := make([]int64, 0, len(l.active))
	for id := range l.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SimulatePayout prices an option against a hypothetical measurement without
// touching state.
func (l *Ledger) SimulatePayout(id, measuredMM int64) (int64, error) {
	opt, ok := l.options[id]
	if !ok {
		return 0, ErrUnknownOption
	}
	return ComputePayout(opt.Terms, measuredMM), nil
}

// FeeRevenue is the cumulative protocol fee collected and not yet withdrawn.
func (l *Ledger) FeeRevenue() int64 { return l.feeRevenue }

// WithdrawFees moves collected fee revenue out of the ledger account. The
// engine restricts this to the guardian.
func (l *Ledger) WithdrawFees(to funds.Account, amount int64) error {
	if amount <= 0 {
		return funds.ErrZeroAmount
	}
	if amount > l.feeRevenue {
		return ErrInsufficientFeeRevenue
	}
	l.feeRevenue -= amount
	if err := l.book.Transfer(l.cfg.Account, to, amount); err != nil {
		l.feeRevenue += amount
		return err
	}
	return nil
}

// PruneExpiredQuotes drops quotes whose validity window has passed,
// returning how many were removed. The keeper calls this periodically so
// abandoned quotes do not accumulate.
func (l *Ledger) PruneExpiredQuotes(limit int) int {
	now := l.now()
	pruned := 0
	for handle, q := range l.quotes {
		if pruned >= limit {
			break
		}
		if now.Sub(q.RequestedAt) > l.cfg.QuoteValidity {
			delete(l.quotes, handle)
			pruned++
		}
	}
	return pruned
}
