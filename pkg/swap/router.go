package swap

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientOutput is returned when a swap's realized output falls
// below the caller's minimum, i.e. slippage exceeded the quoted bound.
var ErrInsufficientOutput = errors.New("swap: output amount below minimum")

// Router is the AMM surface the engine quotes and swaps through,
// UniswapV2-shaped: a path of token hops, exact-input swaps with a minimum
// output enforced by the router itself.
type Router interface {
	// GetAmountsOut quotes the output of swapping amountIn along path. The
	// returned slice has one amount per path element; the last entry is the
	// final output.
	GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	// SwapExactIn swaps amountIn from the sender along path, credits the
	// output to recipient and fails with ErrInsufficientOutput if the
	// realized output is below amountOutMin.
	SwapExactIn(amountIn, amountOutMin *big.Int, path []common.Address, sender, recipient common.Address) (*big.Int, error)
}
