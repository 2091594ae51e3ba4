package settle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OrderKind distinguishes buyer-side redemption from seller-side vault
// settlement. Exactly one variant's fields are meaningful on an Order.
type OrderKind uint8

const (
	// KindRedeem converts held otokens into their cash payout after expiry.
	KindRedeem OrderKind = iota
	// KindSettle withdraws excess collateral from a written vault after expiry.
	KindSettle
)

func (k OrderKind) String() string {
	switch k {
	case KindRedeem:
		return "redeem"
	case KindSettle:
		return "settle"
	default:
		return "unknown"
	}
}

// Order is a persistent settlement request. Orders are append-only: the only
// mutation ever applied is the one-way Finished transition, so the order list
// doubles as an audit history indexed by ID.
type Order struct {
	ID    uint64         `json:"id"`
	Owner common.Address `json:"owner"`
	Kind  OrderKind      `json:"kind"`

	// Redeem fields (zero for settle orders).
	Instrument common.Address `json:"instrument"`
	Amount     *big.Int       `json:"amount"`

	// Settle field (zero for redeem orders).
	VaultID uint64 `json:"vaultId"`

	// ToToken is the optional output currency. Zero address means proceeds
	// stay in the instrument's settlement currency.
	ToToken common.Address `json:"toToken"`

	// FeeBps is snapshotted from the matching fee register at creation time
	// and never re-read, so a fee change cannot affect pending orders.
	FeeBps uint64 `json:"feeBps"`

	Finished bool `json:"finished"`
}

// TypeKey is the batch-deduplication key: two orders with the same key would
// observe each other's post-settlement state if executed in one batch, so the
// resolver admits at most one order per key.
//
//	redeem: keccak256(abi.encode(owner, instrument))
//	settle: keccak256(abi.encode(owner, vaultId))
func (o *Order) TypeKey() common.Hash {
	if o.Kind == KindSettle {
		vault := new(big.Int).SetUint64(o.VaultID)
		return crypto.Keccak256Hash(
			common.LeftPadBytes(o.Owner.Bytes(), 32),
			common.LeftPadBytes(vault.Bytes(), 32),
		)
	}
	return crypto.Keccak256Hash(
		common.LeftPadBytes(o.Owner.Bytes(), 32),
		common.LeftPadBytes(o.Instrument.Bytes(), 32),
	)
}

// SwapParams is the per-order swap instruction attached by the resolver:
// a router path from the settlement currency to the order's ToToken, and the
// slippage-bounded minimum output the swap must realize.
type SwapParams struct {
	AmountOutMin *big.Int         `json:"amountOutMin"`
	Path         []common.Address `json:"path"`
}

// EmptySwap is the swap instruction for orders without a target token.
func EmptySwap() SwapParams {
	return SwapParams{AmountOutMin: big.NewInt(0)}
}
