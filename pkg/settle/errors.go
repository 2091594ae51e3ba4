package settle

import "errors"

// Validation errors (rejected at order creation).
var (
	ErrInstrumentNotWhitelisted = errors.New("settle: otoken not whitelisted")
	ErrSettleAmountNotZero      = errors.New("settle: amount must be 0 when creating settlement order")
	ErrRedeemAmountZero         = errors.New("settle: redeem amount must be positive")
	ErrSameSettlementToken      = errors.New("settle: target token equals settlement currency")
	ErrPairNotAllowed           = errors.New("settle: settlement token pair not allowed")
)

// Authorization errors.
var (
	ErrNotOrderOwner = errors.New("settle: sender is not order owner")
	ErrNotOwner      = errors.New("settle: caller is not the contract owner")
)

// State errors.
var (
	ErrOrderNotFound       = errors.New("settle: order does not exist")
	ErrOrderFinished       = errors.New("settle: order is already finished")
	ErrOrderNotProcessable = errors.New("settle: order should not be processed")
)

// Execution / batch errors.
var (
	ErrLengthMismatch  = errors.New("settle: order ids and swap params lengths must be same")
	ErrInvalidSwapPath = errors.New("settle: invalid swap path")
)

// Configuration errors.
var (
	ErrSlippageTooHigh         = errors.New("settle: max slippage above hard cap")
	ErrPairAlreadyAllowed      = errors.New("settle: pair already allowed")
	ErrPairAlreadyDisallowed   = errors.New("settle: pair already disallowed")
	ErrAutomatorAlreadyStarted = errors.New("settle: automator already started")
	ErrAutomatorAlreadyStopped = errors.New("settle: automator already stopped")
)
