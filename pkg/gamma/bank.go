package gamma

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank is an ERC20-style multi-token ledger: balances and allowances per
// token. It backs the in-memory protocol, the swap router and the engine's
// treasury in devnet and tests.
//
// All returned amounts are copies; callers cannot mutate ledger state through
// them.
type Bank struct {
	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]*big.Int                // token -> holder -> balance
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int // token -> owner -> spender
}

func NewBank() *Bank {
	return &Bank{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits freshly created tokens to a holder.
func (b *Bank) Mint(token, to common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(token, to, amount)
}

func (b *Bank) BalanceOf(token, holder common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[token][holder]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (b *Bank) Allowance(token, owner, spender common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if a, ok := b.allowances[token][owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// Approve sets (not adds to) the spender's allowance.
func (b *Bank) Approve(token, owner, spender common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allowances[token] == nil {
		b.allowances[token] = make(map[common.Address]map[common.Address]*big.Int)
	}
	if b.allowances[token][owner] == nil {
		b.allowances[token][owner] = make(map[common.Address]*big.Int)
	}
	b.allowances[token][owner][spender] = new(big.Int).Set(amount)
}

// Transfer moves tokens between holders, failing on insufficient balance.
func (b *Bank) Transfer(token, from, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer(token, from, to, amount)
}

// TransferFrom moves tokens on behalf of owner, consuming spender's allowance.
func (b *Bank) TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	allowed := b.allowances[token][owner][spender]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return fmt.Errorf("bank: allowance %s of %s for %s below %s",
			token.Hex(), owner.Hex(), spender.Hex(), amount)
	}
	if err := b.transfer(token, owner, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

// Burn destroys tokens held by a holder.
func (b *Bank) Burn(token, from common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balances[token][from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("bank: burn exceeds balance of %s", from.Hex())
	}
	bal.Sub(bal, amount)
	return nil
}

func (b *Bank) transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount %s", amount)
	}
	bal := b.balances[token][from]
	if bal == nil || bal.Cmp(amount) < 0 {
		have := "0"
		if bal != nil {
			have = bal.String()
		}
		return fmt.Errorf("bank: insufficient balance of %s for %s: have %s, need %s",
			token.Hex(), from.Hex(), have, amount)
	}
	bal.Sub(bal, amount)
	b.credit(token, to, amount)
	return nil
}

func (b *Bank) credit(token, to common.Address, amount *big.Int) {
	if b.balances[token] == nil {
		b.balances[token] = make(map[common.Address]*big.Int)
	}
	if b.balances[token][to] == nil {
		b.balances[token][to] = big.NewInt(0)
	}
	b.balances[token][to].Add(b.balances[token][to], amount)
}
