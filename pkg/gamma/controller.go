package gamma

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Controller is the settlement protocol surface the keeper engine reads and
// settles against. All getters are pure reads; only Redeem and Settle mutate
// protocol state.
//
// Redeem and Settle take the calling engine's address explicitly: redemption
// consumes the owner's otoken allowance granted to the caller, and vault
// settlement requires the caller to be an operator of the owner. Payouts and
// proceeds are credited to the caller, which forwards them net of fees.
type Controller interface {
	// IsWhitelistedInstrument reports whether the otoken was issued through
	// the protocol's whitelist.
	IsWhitelistedInstrument(instrument common.Address) bool

	// IsInstrumentExpiredAndFinalized reports whether the instrument has
	// reached expiry and the oracle's dispute period is over for its
	// underlying, i.e. the settlement price can never change again.
	IsInstrumentExpiredAndFinalized(instrument common.Address) bool

	// GetPayout returns the settlement-currency amount owed for redeeming
	// the given otoken amount. Zero before price finality.
	GetPayout(instrument common.Address, amount *big.Int) *big.Int

	// GetProceed returns the excess collateral withdrawable by settling the
	// vault, or zero if the vault cannot be settled yet.
	GetProceed(owner common.Address, vaultID uint64) *big.Int

	// GetExcessCollateral returns the vault's net value after covering its
	// short obligation and whether that value is an excess (true) or a
	// shortfall (false).
	GetExcessCollateral(owner common.Address, vaultID uint64) (*big.Int, bool)

	// IsValidVault reports whether the vault id refers to an open vault of
	// the owner. Vault id 0 is never valid.
	IsValidVault(owner common.Address, vaultID uint64) bool

	// IsOperator reports whether owner has granted caller operator rights.
	IsOperator(owner, caller common.Address) bool

	// InstrumentCollateral returns the settlement currency of an instrument.
	InstrumentCollateral(instrument common.Address) (common.Address, error)

	// VaultInstrument returns the short otoken of a vault.
	VaultInstrument(owner common.Address, vaultID uint64) (common.Address, error)

	// Redeem burns up to amount of the owner's otokens (bounded by the
	// allowance granted to caller) and credits the payout to caller.
	Redeem(caller, owner, instrument common.Address, amount *big.Int) (*big.Int, error)

	// Settle closes the owner's vault and credits the excess collateral to
	// caller. Caller must be an operator of owner.
	Settle(caller, owner common.Address, vaultID uint64) (*big.Int, error)
}
