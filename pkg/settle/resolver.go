package settle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
	"github.com/shenwilly/opyn-auto/pkg/swap"
)

// Batch is a ready-to-execute processing payload. OrderIDs and Swaps are
// always the same length; CanExec is true iff the batch is non-empty.
type Batch struct {
	CanExec  bool         `json:"canExec"`
	OrderIDs []uint64     `json:"orderIds"`
	Swaps    []SwapParams `json:"swapParams"`
}

// Resolver selects the largest safe batch of orders executable in a single
// processing call. It is a read-only view: keepers poll it every interval
// and submit its output to the processor, which re-validates everything.
type Resolver struct {
	store      *OrderStore
	eval       *Evaluator
	params     *Params
	router     swap.Router
	controller gamma.Controller
	self       common.Address
}

func NewResolver(store *OrderStore, eval *Evaluator, params *Params, router swap.Router, controller gamma.Controller, self common.Address) *Resolver {
	return &Resolver{
		store:      store,
		eval:       eval,
		params:     params,
		router:     router,
		controller: controller,
		self:       self,
	}
}

// CanProcessOrder layers the permission checks the evaluator does not own on
// top of eligibility: the engine must hold operator rights for settle
// orders, and a set target token's pair must currently be allow-listed.
func (r *Resolver) CanProcessOrder(id uint64) bool {
	order, err := r.store.Get(id)
	if err != nil || order.Finished {
		return false
	}
	return r.canProcess(&order)
}

func (r *Resolver) canProcess(order *Order) bool {
	if order.Kind == KindSettle && !r.controller.IsOperator(order.Owner, r.self) {
		return false
	}
	if !r.eval.shouldProcess(order) {
		return false
	}
	if order.ToToken != (common.Address{}) {
		currency, _, err := r.eval.OrderPayout(order)
		if err != nil {
			return false
		}
		if !r.params.IsPairAllowed(currency, order.ToToken) {
			return false
		}
	}
	return true
}

// ProcessableOrders scans the full order set in id order and assembles the
// batch: finished, ineligible and permission-failing orders are skipped,
// then duplicates by TypeKey are dropped so the batch never contains two
// orders that would settle the same (owner, instrument) or (owner, vault).
//
// For orders with a target token it attaches a swap instruction quoted at
// current AMM prices, with the minimum output reduced by the configured
// slippage bound:
//
//	minOut = quote - quote × maxSlippageBps / 10000
//
// The empty batch is well-formed (canExec false), never an error.
func (r *Resolver) ProcessableOrders() Batch {
	var (
		batch Batch
		seen  = make(map[common.Hash]struct{})
	)

	for _, order := range r.store.All() {
		if order.Finished {
			continue
		}
		if !r.canProcess(&order) {
			continue
		}
		key := order.TypeKey()
		if _, dup := seen[key]; dup {
			continue
		}

		sp := EmptySwap()
		if order.ToToken != (common.Address{}) {
			var err error
			sp, err = r.swapParamsFor(&order)
			if err != nil {
				// No usable quote: leave the order for a later pass.
				continue
			}
		}

		seen[key] = struct{}{}
		batch.OrderIDs = append(batch.OrderIDs, order.ID)
		batch.Swaps = append(batch.Swaps, sp)
	}

	batch.CanExec = len(batch.OrderIDs) > 0
	return batch
}

// swapParamsFor quotes the order's fee-net payout through the router and
// applies the slippage bound.
func (r *Resolver) swapParamsFor(order *Order) (SwapParams, error) {
	currency, payout, err := r.eval.OrderPayout(order)
	if err != nil {
		return SwapParams{}, err
	}
	net := applyFee(payout, order.FeeBps)

	path := []common.Address{currency, order.ToToken}
	amounts, err := r.router.GetAmountsOut(net, path)
	if err != nil {
		return SwapParams{}, err
	}

	quote := amounts[len(amounts)-1]
	slip := new(big.Int).Mul(quote, new(big.Int).SetUint64(r.params.MaxSlippageBps()))
	slip.Div(slip, big.NewInt(bpsDenominator))
	minOut := new(big.Int).Sub(quote, slip)

	return SwapParams{AmountOutMin: minOut, Path: path}, nil
}

// applyFee returns payout net of the snapshotted fee: payout - payout×bps/10000.
func applyFee(payout *big.Int, feeBps uint64) *big.Int {
	fee := new(big.Int).Mul(payout, new(big.Int).SetUint64(feeBps))
	fee.Div(fee, big.NewInt(bpsDenominator))
	return new(big.Int).Sub(payout, fee)
}
