package settle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
)

// Evaluator answers "can this be settled right now" questions against live
// protocol state. Every method is a pure read: safe to call arbitrarily
// often, in any order, by anyone.
//
// self is the engine's own address: redemption eligibility depends on the
// allowance owners granted to it, and vault eligibility on it holding
// operator rights.
type Evaluator struct {
	controller gamma.Controller
	bank       Bank
	store      *OrderStore
	self       common.Address
}

func NewEvaluator(controller gamma.Controller, bank Bank, store *OrderStore, self common.Address) *Evaluator {
	return &Evaluator{
		controller: controller,
		bank:       bank,
		store:      store,
		self:       self,
	}
}

// HasExpiredAndSettlementAllowed reports whether the instrument is past
// expiry with a finalized (dispute period over) settlement price. Once true
// this never becomes false again: finality is permanent.
func (e *Evaluator) HasExpiredAndSettlementAllowed(instrument common.Address) bool {
	return e.controller.IsInstrumentExpiredAndFinalized(instrument)
}

// RedeemableAmount is the portion of a requested redemption that can
// actually execute: min(amount, owner's balance, allowance granted to the
// engine).
func (e *Evaluator) RedeemableAmount(owner, instrument common.Address, amount *big.Int) *big.Int {
	redeemable := new(big.Int).Set(amount)
	if bal := e.bank.BalanceOf(instrument, owner); bal.Cmp(redeemable) < 0 {
		redeemable.Set(bal)
	}
	if allowance := e.bank.Allowance(instrument, owner, e.self); allowance.Cmp(redeemable) < 0 {
		redeemable.Set(allowance)
	}
	return redeemable
}

// ShouldRedeem reports whether redeeming (owner, instrument, amount) would
// pay out right now: price finalized, a positive redeemable amount, and a
// strictly positive payout on it.
func (e *Evaluator) ShouldRedeem(owner, instrument common.Address, amount *big.Int) bool {
	if !e.HasExpiredAndSettlementAllowed(instrument) {
		return false
	}
	redeemable := e.RedeemableAmount(owner, instrument, amount)
	if redeemable.Sign() <= 0 {
		return false
	}
	return e.controller.GetPayout(instrument, redeemable).Sign() > 0
}

// ShouldSettleVault reports whether settling the owner's vault would free
// collateral right now: valid vault, finalized price for its short
// instrument, and strictly positive excess collateral.
func (e *Evaluator) ShouldSettleVault(owner common.Address, vaultID uint64) bool {
	if !e.controller.IsValidVault(owner, vaultID) {
		return false
	}
	instrument, err := e.controller.VaultInstrument(owner, vaultID)
	if err != nil || !e.HasExpiredAndSettlementAllowed(instrument) {
		return false
	}
	excess, isExcess := e.controller.GetExcessCollateral(owner, vaultID)
	return isExcess && excess.Sign() > 0
}

// ShouldProcessOrder dispatches on order kind. Finished orders are never
// processable.
func (e *Evaluator) ShouldProcessOrder(id uint64) bool {
	order, err := e.store.Get(id)
	if err != nil || order.Finished {
		return false
	}
	return e.shouldProcess(&order)
}

func (e *Evaluator) shouldProcess(order *Order) bool {
	switch order.Kind {
	case KindSettle:
		return e.ShouldSettleVault(order.Owner, order.VaultID)
	default:
		return e.ShouldRedeem(order.Owner, order.Instrument, order.Amount)
	}
}

// OrderPayout returns the settlement currency and gross amount the order
// would realize if processed now (before fee deduction).
func (e *Evaluator) OrderPayout(order *Order) (common.Address, *big.Int, error) {
	switch order.Kind {
	case KindSettle:
		instrument, err := e.controller.VaultInstrument(order.Owner, order.VaultID)
		if err != nil {
			return common.Address{}, nil, err
		}
		currency, err := e.controller.InstrumentCollateral(instrument)
		if err != nil {
			return common.Address{}, nil, err
		}
		return currency, e.controller.GetProceed(order.Owner, order.VaultID), nil
	default:
		currency, err := e.controller.InstrumentCollateral(order.Instrument)
		if err != nil {
			return common.Address{}, nil, err
		}
		redeemable := e.RedeemableAmount(order.Owner, order.Instrument, order.Amount)
		return currency, e.controller.GetPayout(order.Instrument, redeemable), nil
	}
}
