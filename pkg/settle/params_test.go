package settle

import (
	"errors"
	"testing"
)

// fakeParamsDB captures the last persisted snapshot.
type fakeParamsDB struct {
	saved *ParamsState
}

func (db *fakeParamsDB) SaveParams(state ParamsState) error {
	db.saved = &state
	return nil
}

func TestPairAllowanceIsSymmetric(t *testing.T) {
	p, err := NewParams(tAdmin, ParamsState{}, nil)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	if err := p.AllowPair(tAdmin, tUSDC, tWETH); err != nil {
		t.Fatalf("AllowPair: %v", err)
	}
	if !p.IsPairAllowed(tUSDC, tWETH) || !p.IsPairAllowed(tWETH, tUSDC) {
		t.Error("pair allowance not symmetric")
	}

	if err := p.AllowPair(tAdmin, tWETH, tUSDC); !errors.Is(err, ErrPairAlreadyAllowed) {
		t.Fatalf("re-allow err = %v, want %v", err, ErrPairAlreadyAllowed)
	}

	if err := p.DisallowPair(tAdmin, tWETH, tUSDC); err != nil {
		t.Fatalf("DisallowPair: %v", err)
	}
	if p.IsPairAllowed(tUSDC, tWETH) {
		t.Error("pair still allowed after disallow")
	}
	if err := p.DisallowPair(tAdmin, tUSDC, tWETH); !errors.Is(err, ErrPairAlreadyDisallowed) {
		t.Fatalf("re-disallow err = %v, want %v", err, ErrPairAlreadyDisallowed)
	}
}

func TestSlippageHardCap(t *testing.T) {
	if _, err := NewParams(tAdmin, ParamsState{MaxSlippageBps: MaxSlippageCap + 1}, nil); !errors.Is(err, ErrSlippageTooHigh) {
		t.Fatalf("NewParams err = %v, want %v", err, ErrSlippageTooHigh)
	}

	p, err := NewParams(tAdmin, ParamsState{}, nil)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	if err := p.SetMaxSlippage(tAdmin, MaxSlippageCap); err != nil {
		t.Fatalf("SetMaxSlippage(cap): %v", err)
	}
	if err := p.SetMaxSlippage(tAdmin, MaxSlippageCap+1); !errors.Is(err, ErrSlippageTooHigh) {
		t.Fatalf("SetMaxSlippage(cap+1) err = %v, want %v", err, ErrSlippageTooHigh)
	}
	if got := p.MaxSlippageBps(); got != MaxSlippageCap {
		t.Errorf("MaxSlippageBps = %d, want %d", got, MaxSlippageCap)
	}
}

func TestMutationsAreAdminOnly(t *testing.T) {
	p, err := NewParams(tAdmin, ParamsState{AutomatorEnabled: true}, nil)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"SetRedeemFee", func() error { return p.SetRedeemFee(tBuyer, 1) }},
		{"SetSettleFee", func() error { return p.SetSettleFee(tBuyer, 1) }},
		{"SetMaxSlippage", func() error { return p.SetMaxSlippage(tBuyer, 1) }},
		{"AllowPair", func() error { return p.AllowPair(tBuyer, tUSDC, tWETH) }},
		{"DisallowPair", func() error { return p.DisallowPair(tBuyer, tUSDC, tWETH) }},
		{"SetAutomator", func() error { return p.SetAutomator(tBuyer, tBuyer) }},
		{"SetAutomatorTreasury", func() error { return p.SetAutomatorTreasury(tBuyer, tBuyer) }},
		{"StartAutomator", func() error { return p.StartAutomator(tBuyer) }},
		{"StopAutomator", func() error { return p.StopAutomator(tBuyer) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNotOwner) {
				t.Fatalf("err = %v, want %v", err, ErrNotOwner)
			}
		})
	}
}

func TestAutomatorToggle(t *testing.T) {
	p, err := NewParams(tAdmin, ParamsState{}, nil)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	if err := p.StopAutomator(tAdmin); !errors.Is(err, ErrAutomatorAlreadyStopped) {
		t.Fatalf("stop while stopped err = %v, want %v", err, ErrAutomatorAlreadyStopped)
	}
	if err := p.StartAutomator(tAdmin); err != nil {
		t.Fatalf("StartAutomator: %v", err)
	}
	if !p.AutomatorEnabled() {
		t.Error("automator not enabled after start")
	}
	if err := p.StartAutomator(tAdmin); !errors.Is(err, ErrAutomatorAlreadyStarted) {
		t.Fatalf("double start err = %v, want %v", err, ErrAutomatorAlreadyStarted)
	}
	if err := p.StopAutomator(tAdmin); err != nil {
		t.Fatalf("StopAutomator: %v", err)
	}
}

func TestMutationsPersist(t *testing.T) {
	db := &fakeParamsDB{}
	p, err := NewParams(tAdmin, ParamsState{RedeemFeeBps: 50}, db)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	if err := p.SetRedeemFee(tAdmin, 75); err != nil {
		t.Fatalf("SetRedeemFee: %v", err)
	}
	if db.saved == nil || db.saved.RedeemFeeBps != 75 {
		t.Fatalf("persisted state = %+v, want RedeemFeeBps 75", db.saved)
	}

	if err := p.AllowPair(tAdmin, tUSDC, tWETH); err != nil {
		t.Fatalf("AllowPair: %v", err)
	}
	if len(db.saved.AllowedPairs) != 1 {
		t.Fatalf("persisted pairs = %+v, want one entry", db.saved.AllowedPairs)
	}

	// Failed mutations must not persist anything new.
	db.saved = nil
	if err := p.SetMaxSlippage(tAdmin, MaxSlippageCap+1); err == nil {
		t.Fatal("SetMaxSlippage above cap succeeded")
	}
	if db.saved != nil {
		t.Errorf("failed mutation persisted state: %+v", db.saved)
	}
}
