package option

import "errors"

// Validation failures.
var (
	ErrInvalidTerms        = errors.New("option: invalid terms")
	ErrInvalidLocation     = errors.New("option: latitude or longitude is not a valid decimal")
	ErrNotionalBelowMin    = errors.New("option: notional per mm below minimum")
	ErrPremiumBelowMin     = errors.New("option: quoted premium below minimum")
	ErrInsufficientPayment = errors.New("option: payment does not cover premium plus fee")
)

// Authorization failures.
var (
	ErrNotYourQuote         = errors.New("option: quote belongs to a different requester")
	ErrNotBeneficiary       = errors.New("option: caller is not the settlement beneficiary")
	ErrNotCertificateHolder = errors.New("option: caller does not hold the certificate")
)

// Timing failures.
var (
	ErrQuoteExpired     = errors.New("option: quote validity window has passed")
	ErrOptionNotExpired = errors.New("option: coverage window has not ended")
)

// Capacity failures.
var ErrVaultCannotUnderwrite = errors.New("option: vault cannot underwrite the required collateral")

// External-dependency failures.
var (
	ErrQuoteNotFulfilled  = errors.New("option: premium request not yet fulfilled")
	ErrOracleNotFulfilled = errors.New("option: rainfall measurement not yet fulfilled")
)

// State failures.
var (
	ErrUnknownOption          = errors.New("option: no such option")
	ErrUnknownQuote           = errors.New("option: no such quote")
	ErrInvalidOptionStatus    = errors.New("option: operation not valid in current status")
	ErrSettlementNotRequested = errors.New("option: settlement has not been requested")
	ErrNoPendingPayout        = errors.New("option: no payout pending")
	ErrTransferLocked         = errors.New("option: certificate transfers are locked during settlement")
)

// Fee-revenue failures.
var ErrInsufficientFeeRevenue = errors.New("option: withdrawal exceeds collected fee revenue")
