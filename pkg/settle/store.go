package settle

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
)

// Bank is the token ledger the engine moves funds through: payout
// forwarding, swap settlement and treasury withdrawals.
type Bank interface {
	BalanceOf(token, holder common.Address) *big.Int
	Allowance(token, owner, spender common.Address) *big.Int
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// OrderDB persists order records. The store is the single writer; records
// are written on creation and on the finished transition.
type OrderDB interface {
	SaveOrder(*Order) error
	LoadOrders() ([]*Order, error)
}

// Notifier receives order lifecycle events (the OrderCreated/OrderFinished
// event analog). Implementations must not call back into the store.
type Notifier interface {
	OrderCreated(*Order)
	OrderFinished(o *Order, cancelled bool)
}

// OrderStore is the append-only order registry. Order IDs are indices into
// the order list, assigned sequentially at creation; orders are never
// deleted, only marked finished.
type OrderStore struct {
	mu         sync.RWMutex
	orders     []*Order
	controller gamma.Controller
	params     *Params
	db         OrderDB  // optional
	notifier   Notifier // optional
	log        *zap.SugaredLogger
}

func NewOrderStore(controller gamma.Controller, params *Params, db OrderDB, notifier Notifier, log *zap.SugaredLogger) (*OrderStore, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &OrderStore{
		controller: controller,
		params:     params,
		db:         db,
		notifier:   notifier,
		log:        log,
	}
	if db != nil {
		orders, err := db.LoadOrders()
		if err != nil {
			return nil, fmt.Errorf("settle: load orders: %w", err)
		}
		sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
		for _, o := range orders {
			if o.ID != uint64(len(s.orders)) {
				return nil, fmt.Errorf("settle: order log has gap at id %d", o.ID)
			}
			s.orders = append(s.orders, o)
		}
	}
	return s, nil
}

// SetNotifier installs the lifecycle event sink. Call before the store is
// shared; not synchronized against concurrent order flow.
func (s *OrderStore) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateOrder validates and appends a new order, snapshotting the current
// fee register for its kind, and returns the assigned id.
//
// A zero instrument address creates a settle order for vaultID; otherwise a
// redeem order for (instrument, amount). Vault ownership is deliberately not
// checked here: it is re-validated at processing time.
func (s *OrderStore) CreateOrder(owner, instrument common.Address, amount *big.Int, vaultID uint64, toToken common.Address) (uint64, error) {
	if amount == nil {
		amount = big.NewInt(0)
	}

	kind := KindRedeem
	if instrument == (common.Address{}) {
		kind = KindSettle
	}

	switch kind {
	case KindRedeem:
		if !s.controller.IsWhitelistedInstrument(instrument) {
			return 0, ErrInstrumentNotWhitelisted
		}
		if amount.Sign() <= 0 {
			return 0, ErrRedeemAmountZero
		}
	case KindSettle:
		if amount.Sign() != 0 {
			return 0, ErrSettleAmountNotZero
		}
	}

	if toToken != (common.Address{}) {
		if err := s.validateTargetToken(kind, owner, instrument, vaultID, toToken); err != nil {
			return 0, err
		}
	}

	order := &Order{
		Owner:      owner,
		Kind:       kind,
		Instrument: instrument,
		Amount:     new(big.Int).Set(amount),
		VaultID:    vaultID,
		ToToken:    toToken,
		FeeBps:     s.params.FeeBpsFor(kind),
	}

	s.mu.Lock()
	order.ID = uint64(len(s.orders))
	s.orders = append(s.orders, order)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.SaveOrder(order); err != nil {
			return 0, fmt.Errorf("settle: persist order %d: %w", order.ID, err)
		}
	}

	s.log.Infow("order_created",
		"id", order.ID,
		"owner", order.Owner.Hex(),
		"kind", order.Kind.String(),
		"fee_bps", order.FeeBps,
	)
	if s.notifier != nil {
		s.notifier.OrderCreated(order)
	}
	return order.ID, nil
}

// validateTargetToken enforces the creation-time swap-target rules: the
// target must differ from the settlement currency and the pair must be
// allow-listed right now. For settle orders whose vault does not exist yet
// the settlement currency is unknown; the checks are deferred to processing,
// which re-validates the pair anyway.
func (s *OrderStore) validateTargetToken(kind OrderKind, owner, instrument common.Address, vaultID uint64, toToken common.Address) error {
	var currency common.Address
	switch kind {
	case KindRedeem:
		c, err := s.controller.InstrumentCollateral(instrument)
		if err != nil {
			return err
		}
		currency = c
	case KindSettle:
		inst, err := s.controller.VaultInstrument(owner, vaultID)
		if err != nil {
			return nil // unknown vault, defer to processing
		}
		c, err := s.controller.InstrumentCollateral(inst)
		if err != nil {
			return err
		}
		currency = c
	}

	if toToken == currency {
		return ErrSameSettlementToken
	}
	if !s.params.IsPairAllowed(currency, toToken) {
		return ErrPairNotAllowed
	}
	return nil
}

// CancelOrder marks the order finished. Only the order owner may cancel,
// and only before the order is finished.
func (s *OrderStore) CancelOrder(caller common.Address, id uint64) error {
	s.mu.Lock()
	order, err := s.getLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if order.Owner != caller {
		s.mu.Unlock()
		return ErrNotOrderOwner
	}
	if order.Finished {
		s.mu.Unlock()
		return ErrOrderFinished
	}
	order.Finished = true
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.SaveOrder(order); err != nil {
			return fmt.Errorf("settle: persist order %d: %w", id, err)
		}
	}

	s.log.Infow("order_cancelled", "id", id, "owner", caller.Hex())
	if s.notifier != nil {
		s.notifier.OrderFinished(order, true)
	}
	return nil
}

// finish applies the one-way finished transition on behalf of the
// processor. It fails on an already-finished order, which is the idempotency
// guard against double processing.
func (s *OrderStore) finish(id uint64) (*Order, error) {
	s.mu.Lock()
	order, err := s.getLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if order.Finished {
		s.mu.Unlock()
		return nil, ErrOrderFinished
	}
	order.Finished = true
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.SaveOrder(order); err != nil {
			return nil, fmt.Errorf("settle: persist order %d: %w", id, err)
		}
	}
	return order, nil
}

// reopen rolls back a finish transition whose external settlement never
// happened. Only the processor calls this, under its execution mutex, as the
// analog of a ledger transaction revert; it is the single exception to the
// one-way finished rule and is never visible to other callers.
func (s *OrderStore) reopen(id uint64) {
	s.mu.Lock()
	order, err := s.getLocked(id)
	if err != nil {
		s.mu.Unlock()
		return
	}
	order.Finished = false
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.SaveOrder(order); err != nil {
			s.log.Errorw("order_reopen_persist_failed", "id", id, "err", err)
		}
	}
}

// Get returns a copy of the order.
func (s *OrderStore) Get(id uint64) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, err := s.getLocked(id)
	if err != nil {
		return Order{}, err
	}
	cp := *order
	cp.Amount = new(big.Int).Set(order.Amount)
	return cp, nil
}

func (s *OrderStore) getLocked(id uint64) (*Order, error) {
	if id >= uint64(len(s.orders)) {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return s.orders[id], nil
}

// OrdersLength returns the total number of orders ever created. IDs range
// over [0, OrdersLength).
func (s *OrderStore) OrdersLength() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.orders))
}

// All returns copies of every order, in id order.
func (s *OrderStore) All() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = *o
		out[i].Amount = new(big.Int).Set(o.Amount)
	}
	return out
}
