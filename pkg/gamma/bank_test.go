package gamma

import (
	"math/big"
	"testing"
)

func TestBankTransfer(t *testing.T) {
	bank := NewBank()
	bank.Mint(usdc, alice, big.NewInt(100))

	if err := bank.Transfer(usdc, alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := bank.BalanceOf(usdc, alice); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("alice = %s, want 40", got)
	}
	if got := bank.BalanceOf(usdc, bob); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("bob = %s, want 60", got)
	}

	if err := bank.Transfer(usdc, alice, bob, big.NewInt(41)); err == nil {
		t.Fatal("overdraft transfer succeeded")
	}
	if err := bank.Transfer(usdc, alice, bob, big.NewInt(-1)); err == nil {
		t.Fatal("negative transfer succeeded")
	}
}

func TestBankTransferFromConsumesAllowance(t *testing.T) {
	bank := NewBank()
	bank.Mint(usdc, alice, big.NewInt(100))
	bank.Approve(usdc, alice, keeper, big.NewInt(50))

	if err := bank.TransferFrom(usdc, keeper, alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := bank.Allowance(usdc, alice, keeper); got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("allowance = %s, want 20", got)
	}

	// Remaining allowance is below the request even though the balance isn't.
	if err := bank.TransferFrom(usdc, keeper, alice, bob, big.NewInt(30)); err == nil {
		t.Fatal("TransferFrom exceeded allowance")
	}
}

func TestBankReturnedAmountsAreCopies(t *testing.T) {
	bank := NewBank()
	bank.Mint(usdc, alice, big.NewInt(100))

	bal := bank.BalanceOf(usdc, alice)
	bal.SetInt64(0)
	if got := bank.BalanceOf(usdc, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("ledger mutated through returned balance: %s", got)
	}
}

func TestBankBurn(t *testing.T) {
	bank := NewBank()
	bank.Mint(usdc, alice, big.NewInt(100))

	if err := bank.Burn(usdc, alice, big.NewInt(100)); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if got := bank.BalanceOf(usdc, alice); got.Sign() != 0 {
		t.Errorf("balance after burn = %s, want 0", got)
	}
	if err := bank.Burn(usdc, alice, big.NewInt(1)); err == nil {
		t.Fatal("burned more than balance")
	}
}
