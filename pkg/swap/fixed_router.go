package swap

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
)

// FixedRateRouter is an in-memory Router for devnet and tests. Each directed
// token pair has a fixed rate expressed as a (numerator, denominator) pair:
// out = in × num / den. Swaps settle through the shared Bank, paying outputs
// from the router's own reserve address.
type FixedRateRouter struct {
	mu      sync.RWMutex
	bank    *gamma.Bank
	reserve common.Address
	rates   map[hop]rate
}

type hop struct {
	in  common.Address
	out common.Address
}

type rate struct {
	num *big.Int
	den *big.Int
}

func NewFixedRateRouter(bank *gamma.Bank, reserve common.Address) *FixedRateRouter {
	return &FixedRateRouter{
		bank:    bank,
		reserve: reserve,
		rates:   make(map[hop]rate),
	}
}

// SetRate fixes the conversion for the directed pair in -> out.
func (r *FixedRateRouter) SetRate(in, out common.Address, num, den *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[hop{in, out}] = rate{new(big.Int).Set(num), new(big.Int).Set(den)}
}

func (r *FixedRateRouter) GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.amountsOutLocked(amountIn, path)
}

func (r *FixedRateRouter) amountsOutLocked(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("swap: path needs at least 2 tokens, got %d", len(path))
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 1; i < len(path); i++ {
		rt, ok := r.rates[hop{path[i-1], path[i]}]
		if !ok {
			return nil, fmt.Errorf("swap: no liquidity for %s -> %s", path[i-1].Hex(), path[i].Hex())
		}
		out := new(big.Int).Mul(amounts[i-1], rt.num)
		amounts[i] = out.Div(out, rt.den)
	}
	return amounts, nil
}

func (r *FixedRateRouter) SwapExactIn(amountIn, amountOutMin *big.Int, path []common.Address, sender, recipient common.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	amounts, err := r.amountsOutLocked(amountIn, path)
	if err != nil {
		return nil, err
	}
	out := amounts[len(amounts)-1]
	if amountOutMin != nil && out.Cmp(amountOutMin) < 0 {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrInsufficientOutput, out, amountOutMin)
	}

	// The reserve must be able to pay before the sender is debited: a failed
	// swap moves nothing.
	outToken := path[len(path)-1]
	if r.bank.BalanceOf(outToken, r.reserve).Cmp(out) < 0 {
		return nil, fmt.Errorf("swap: reserve cannot cover %s of %s", out, outToken.Hex())
	}
	if err := r.bank.Transfer(path[0], sender, r.reserve, amountIn); err != nil {
		return nil, err
	}
	if err := r.bank.Transfer(outToken, r.reserve, recipient, out); err != nil {
		return nil, err
	}
	return new(big.Int).Set(out), nil
}

var _ Router = (*FixedRateRouter)(nil)
