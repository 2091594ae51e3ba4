package settle

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
	"github.com/shenwilly/opyn-auto/pkg/swap"
)

// Processor executes settlement orders: it re-validates eligibility,
// realizes the payout against the protocol, extracts the snapshotted fee
// into the treasury and forwards the remainder to the order owner, swapped
// into the target token when one is set.
//
// Processing is serialized by an internal mutex, mirroring the host ledger's
// single-threaded execution: concurrent keeper submissions queue up and the
// losers fail the finished check cleanly.
type Processor struct {
	mu         sync.Mutex
	store      *OrderStore
	eval       *Evaluator
	params     *Params
	controller gamma.Controller
	router     swap.Router
	bank       Bank
	self       common.Address
	log        *zap.SugaredLogger
}

func NewProcessor(store *OrderStore, eval *Evaluator, params *Params, controller gamma.Controller, router swap.Router, bank Bank, self common.Address, log *zap.SugaredLogger) *Processor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Processor{
		store:      store,
		eval:       eval,
		params:     params,
		controller: controller,
		router:     router,
		bank:       bank,
		self:       self,
		log:        log,
	}
}

// ProcessOrder settles a single order. The caller-supplied swap params are
// not trusted beyond the minimum-output bound: eligibility, pair allowance
// and path shape are all re-checked against current state.
func (p *Processor) ProcessOrder(id uint64, sp SwapParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processLocked(id, sp)
}

// ProcessOrders settles a batch atomically: every order is validated
// against current state before any order executes, so a batch containing a
// stale, duplicate or otherwise unprocessable entry fails with no balance
// movement at all.
func (p *Processor) ProcessOrders(ids []uint64, sps []SwapParams) error {
	if len(ids) != len(sps) {
		return fmt.Errorf("%w: %d ids, %d swap params", ErrLengthMismatch, len(ids), len(sps))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var preflight error
	seen := make(map[common.Hash]struct{})
	for i, id := range ids {
		if err := p.validate(id, sps[i], seen); err != nil {
			preflight = multierr.Append(preflight, fmt.Errorf("order %d: %w", id, err))
		}
	}
	if preflight != nil {
		return preflight
	}

	for i, id := range ids {
		if err := p.processLocked(id, sps[i]); err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
	}
	return nil
}

// validate is the preflight check for batch execution. seen carries the
// TypeKeys already admitted in this batch so duplicates are rejected up
// front instead of failing mid-execution.
func (p *Processor) validate(id uint64, sp SwapParams, seen map[common.Hash]struct{}) error {
	order, err := p.store.Get(id)
	if err != nil {
		return err
	}
	if order.Finished {
		return ErrOrderFinished
	}
	if !p.eval.shouldProcess(&order) {
		return ErrOrderNotProcessable
	}
	if order.Kind == KindSettle && !p.controller.IsOperator(order.Owner, p.self) {
		return ErrOrderNotProcessable
	}
	if order.ToToken != (common.Address{}) {
		currency, _, err := p.eval.OrderPayout(&order)
		if err != nil {
			return err
		}
		if err := p.checkSwap(&order, sp, currency); err != nil {
			return err
		}
	}
	key := order.TypeKey()
	if _, dup := seen[key]; dup {
		return fmt.Errorf("%w: duplicate order type in batch", ErrOrderNotProcessable)
	}
	seen[key] = struct{}{}
	return nil
}

func (p *Processor) processLocked(id uint64, sp SwapParams) error {
	order, err := p.store.Get(id)
	if err != nil {
		return err
	}
	if order.Finished {
		return fmt.Errorf("%w: order %d", ErrOrderFinished, id)
	}
	if !p.eval.shouldProcess(&order) {
		return fmt.Errorf("%w: order %d", ErrOrderNotProcessable, id)
	}

	// Finish before touching the protocol. A reentrant call from a
	// collaborator sees the order finished and fails the check above; this
	// ordering is the reentrancy guard and must stay first.
	finished, err := p.store.finish(id)
	if err != nil {
		return err
	}

	if err := p.execute(finished, sp); err != nil {
		// execute only fails while nothing irreversible has happened, so
		// rolling the finished mark back emulates the ledger's transactional
		// revert. The processor mutex is still held: no other submission can
		// observe the intermediate state.
		p.store.reopen(id)
		return err
	}

	if p.store.notifier != nil {
		p.store.notifier.OrderFinished(finished, false)
	}
	return nil
}

func (p *Processor) execute(order *Order, sp SwapParams) error {
	// Target-token orders check the swap bound against a fresh quote before
	// the protocol mutation: the payout is irreversible, so an unmeetable
	// minimum output must fail the order while nothing has moved yet.
	if order.ToToken != (common.Address{}) {
		currency, expected, err := p.eval.OrderPayout(order)
		if err != nil {
			return err
		}
		if err := p.checkSwap(order, sp, currency); err != nil {
			return err
		}
		quote, err := p.router.GetAmountsOut(applyFee(expected, order.FeeBps), sp.Path)
		if err != nil {
			return err
		}
		if out := quote[len(quote)-1]; sp.AmountOutMin != nil && out.Cmp(sp.AmountOutMin) < 0 {
			return fmt.Errorf("%w: quote %s below minimum %s", swap.ErrInsufficientOutput, out, sp.AmountOutMin)
		}
	}

	var (
		currency common.Address
		payout   *big.Int
		err      error
	)
	switch order.Kind {
	case KindSettle:
		instrument, ierr := p.controller.VaultInstrument(order.Owner, order.VaultID)
		if ierr != nil {
			return ierr
		}
		currency, err = p.controller.InstrumentCollateral(instrument)
		if err != nil {
			return err
		}
		payout, err = p.controller.Settle(p.self, order.Owner, order.VaultID)
	default:
		currency, err = p.controller.InstrumentCollateral(order.Instrument)
		if err != nil {
			return err
		}
		redeemable := p.eval.RedeemableAmount(order.Owner, order.Instrument, order.Amount)
		payout, err = p.controller.Redeem(p.self, order.Owner, order.Instrument, redeemable)
	}
	if err != nil {
		return err
	}

	// fee = payout × feeBps / 10000, using the creation-time snapshot. The
	// fee remains on the engine's own balance as treasury.
	net := applyFee(payout, order.FeeBps)

	// The payout is realized past this point: nothing below may return an
	// error, since that would unwind the finished mark after the protocol
	// already settled. A swap the router cannot deliver falls back to paying
	// the settlement currency, so the owner is paid either way.
	if order.ToToken != (common.Address{}) {
		_, swapErr := p.router.SwapExactIn(net, sp.AmountOutMin, sp.Path, p.self, order.Owner)
		if swapErr == nil {
			p.logProcessed(order, payout, net)
			return nil
		}
		p.log.Warnw("swap_failed_paying_settlement_currency",
			"id", order.ID,
			"to_token", order.ToToken.Hex(),
			"err", swapErr,
		)
	}

	if err := p.bank.Transfer(currency, p.self, order.Owner, net); err != nil {
		// The proceeds stay on the engine balance; the admin can remediate
		// via WithdrawFund. The order remains finished.
		p.log.Errorw("payout_forward_failed", "id", order.ID, "err", err)
	}
	p.logProcessed(order, payout, net)
	return nil
}

func (p *Processor) logProcessed(order *Order, payout, net *big.Int) {
	p.log.Infow("order_processed",
		"id", order.ID,
		"kind", order.Kind.String(),
		"owner", order.Owner.Hex(),
		"payout", payout.String(),
		"net", net.String(),
		"fee_bps", order.FeeBps,
	)
}

// checkSwap re-validates the pair allowance against current state and the
// supplied path shape: settlement currency in, target token out.
func (p *Processor) checkSwap(order *Order, sp SwapParams, currency common.Address) error {
	if !p.params.IsPairAllowed(currency, order.ToToken) {
		return ErrPairNotAllowed
	}
	if len(sp.Path) < 2 || sp.Path[0] != currency || sp.Path[len(sp.Path)-1] != order.ToToken {
		return ErrInvalidSwapPath
	}
	return nil
}

// WithdrawFund moves accumulated fees out of the engine's treasury balance
// to the admin. Admin-only.
func (p *Processor) WithdrawFund(caller, token common.Address, amount *big.Int) error {
	if caller != p.params.Admin() {
		return ErrNotOwner
	}
	if err := p.bank.Transfer(token, p.self, caller, amount); err != nil {
		return fmt.Errorf("settle: withdraw fund: %w", err)
	}
	p.log.Infow("fund_withdrawn", "token", token.Hex(), "amount", amount.String())
	return nil
}

// TreasuryBalance returns the accumulated fee balance for a token.
func (p *Processor) TreasuryBalance(token common.Address) *big.Int {
	return p.bank.BalanceOf(token, p.self)
}
