package gamma

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Amounts follow Opyn conventions: otokens carry 8 decimals, so a payout is
// intrinsic × amount / 1e8 in settlement-currency units.
const OtokenDecimals = 8

// OneOtoken is 10^OtokenDecimals, the amount representing a single option.
var OneOtoken = big.NewInt(100_000_000)

// Instrument is a tokenized option: fixed strike, fixed expiry, settled in
// the collateral asset against the underlying's finalized expiry price.
type Instrument struct {
	Token      common.Address `json:"token"`      // otoken contract address (also its ledger token)
	Underlying common.Address `json:"underlying"` // asset the expiry price is reported for
	Collateral common.Address `json:"collateral"` // settlement currency
	Strike     *big.Int       `json:"strike"`     // in collateral smallest units per whole option
	Expiry     int64          `json:"expiry"`     // unix seconds
	IsPut      bool           `json:"isPut"`
}

// IntrinsicValue returns the per-option cash value given a finalized expiry
// price, floored at zero.
//
//	put:  max(strike - price, 0)
//	call: max(price - strike, 0)
func (i *Instrument) IntrinsicValue(price *big.Int) *big.Int {
	v := new(big.Int)
	if i.IsPut {
		v.Sub(i.Strike, price)
	} else {
		v.Sub(price, i.Strike)
	}
	if v.Sign() < 0 {
		return big.NewInt(0)
	}
	return v
}

// Vault is a written (short) position: collateral locked against minted
// otokens. VaultIDs are per-owner and start at 1, matching the protocol's
// convention that vault id 0 is never valid.
type Vault struct {
	ID         uint64         `json:"id"`
	Owner      common.Address `json:"owner"`
	Instrument common.Address `json:"instrument"` // short otoken
	Collateral *big.Int       `json:"collateral"` // locked collateral amount
	Short      *big.Int       `json:"short"`      // minted otoken amount
	Settled    bool           `json:"settled"`
}
