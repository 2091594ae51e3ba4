package settle

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
)

func TestRedeemableAmount(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		balance   int64
		allowance int64
		want      int64
	}{
		{"amount is the floor", 100, 500, 500, 100},
		{"balance is the floor", 500, 200, 500, 200},
		{"allowance is the floor", 500, 500, 50, 50},
		{"no allowance", 500, 500, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			holder := tDAI // any address not seeded by the fixture
			f.bank.Mint(tPut, holder, big.NewInt(tt.balance))
			f.bank.Approve(tPut, holder, tSelf, big.NewInt(tt.allowance))

			got := f.eval.RedeemableAmount(holder, tPut, big.NewInt(tt.amount))
			wantBig(t, "RedeemableAmount", got, tt.want)
		})
	}
}

func TestShouldRedeemLifecycle(t *testing.T) {
	f := newFixture(t)

	// Before expiry: nothing to redeem.
	if f.eval.ShouldRedeem(tBuyer, tPut, gamma.OneOtoken) {
		t.Error("ShouldRedeem true before expiry")
	}

	// Past expiry but price not finalized.
	f.clock.Advance(2 * time.Hour)
	f.controller.SetExpiryPrice(tWETH, f.expiry, big.NewInt(200_000_000))
	if f.eval.ShouldRedeem(tBuyer, tPut, gamma.OneOtoken) {
		t.Error("ShouldRedeem true before dispute period ended")
	}

	// Finalized ITM: redeemable.
	f.controller.EndDisputePeriod(tWETH, f.expiry)
	if !f.eval.ShouldRedeem(tBuyer, tPut, gamma.OneOtoken) {
		t.Error("ShouldRedeem false for finalized ITM position")
	}

	// Eligibility is monotone: more time passing never revokes it.
	f.clock.Advance(24 * time.Hour)
	if !f.eval.ShouldRedeem(tBuyer, tPut, gamma.OneOtoken) {
		t.Error("ShouldRedeem flipped back to false after more time")
	}
}

func TestShouldRedeemOTM(t *testing.T) {
	f := newFixture(t)
	f.finalize(400_000_000) // above strike, the put expires worthless

	if f.eval.ShouldRedeem(tBuyer, tPut, gamma.OneOtoken) {
		t.Error("ShouldRedeem true for worthless position")
	}
}

func TestShouldSettleVault(t *testing.T) {
	f := newFixture(t)

	if f.eval.ShouldSettleVault(tSeller, 0) {
		t.Error("vault id 0 reported settleable")
	}
	if f.eval.ShouldSettleVault(tSeller, 99) {
		t.Error("unknown vault reported settleable")
	}
	if f.eval.ShouldSettleVault(tSeller, f.vaultID) {
		t.Error("vault settleable before expiry")
	}

	f.finalize(200_000_000)
	if !f.eval.ShouldSettleVault(tSeller, f.vaultID) {
		t.Error("vault not settleable after finalized ITM expiry")
	}

	if _, err := f.controller.Settle(tSelf, tSeller, f.vaultID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if f.eval.ShouldSettleVault(tSeller, f.vaultID) {
		t.Error("settled vault still reported settleable")
	}
}

func TestShouldProcessOrder(t *testing.T) {
	f := newFixture(t)
	redeemID := f.createRedeem(tBuyer, gamma.OneOtoken, common.Address{})
	settleID := f.createSettle(tSeller, f.vaultID, common.Address{})

	if f.eval.ShouldProcessOrder(redeemID) || f.eval.ShouldProcessOrder(settleID) {
		t.Error("orders processable before expiry")
	}

	f.finalize(200_000_000)
	if !f.eval.ShouldProcessOrder(redeemID) {
		t.Error("redeem order not processable after finality")
	}
	if !f.eval.ShouldProcessOrder(settleID) {
		t.Error("settle order not processable after finality")
	}

	if err := f.store.CancelOrder(tBuyer, redeemID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.eval.ShouldProcessOrder(redeemID) {
		t.Error("finished order reported processable")
	}
	if f.eval.ShouldProcessOrder(42) {
		t.Error("unknown order reported processable")
	}
}

func TestOrderPayout(t *testing.T) {
	f := newFixture(t)
	redeemID := f.createRedeem(tBuyer, gamma.OneOtoken, common.Address{})
	settleID := f.createSettle(tSeller, f.vaultID, common.Address{})
	f.finalize(200_000_000)

	redeem, _ := f.store.Get(redeemID)
	currency, payout, err := f.eval.OrderPayout(&redeem)
	if err != nil {
		t.Fatalf("OrderPayout(redeem): %v", err)
	}
	if currency != tUSDC {
		t.Errorf("redeem currency = %s, want USDC", currency.Hex())
	}
	// intrinsic (300-200) USDC on one 8-decimal option.
	wantBig(t, "redeem payout", payout, 100_000_000)

	settle, _ := f.store.Get(settleID)
	currency, payout, err = f.eval.OrderPayout(&settle)
	if err != nil {
		t.Fatalf("OrderPayout(settle): %v", err)
	}
	if currency != tUSDC {
		t.Errorf("settle currency = %s, want USDC", currency.Hex())
	}
	// 3000 USDC collateral minus 1000 USDC obligation on 10 short options.
	wantBig(t, "settle proceeds", payout, 2_000_000_000)
}
