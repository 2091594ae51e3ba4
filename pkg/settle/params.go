package settle

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MaxSlippageCap is the hard upper bound on the configurable slippage
// tolerance: 500 bps (5%).
const MaxSlippageCap = 500

const bpsDenominator = 10_000

// ParamsState is the persistable snapshot of runtime parameters.
type ParamsState struct {
	RedeemFeeBps      uint64           `json:"redeemFeeBps"`
	SettleFeeBps      uint64           `json:"settleFeeBps"`
	MaxSlippageBps    uint64           `json:"maxSlippageBps"`
	Automator         common.Address   `json:"automator"`
	AutomatorTreasury common.Address   `json:"automatorTreasury"`
	AutomatorEnabled  bool             `json:"automatorEnabled"`
	AllowedPairs      []AllowedPair    `json:"allowedPairs"`
}

// AllowedPair is a symmetric trading-pair allowance entry.
type AllowedPair struct {
	TokenA common.Address `json:"tokenA"`
	TokenB common.Address `json:"tokenB"`
}

// ParamsDB persists parameter mutations.
type ParamsDB interface {
	SaveParams(ParamsState) error
}

// Params holds the engine's mutable global parameters: fee registers, the
// slippage bound, the allow-listed pair set and automator wiring. Mutations
// are restricted to the configured admin (the "contract owner" analog);
// reads are unrestricted.
type Params struct {
	mu    sync.RWMutex
	admin common.Address
	db    ParamsDB // optional

	redeemFeeBps      uint64
	settleFeeBps      uint64
	maxSlippageBps    uint64
	automator         common.Address
	automatorTreasury common.Address
	automatorEnabled  bool
	pairs             map[pairKey]bool
}

type pairKey struct {
	lo common.Address
	hi common.Address
}

// normalizePair orders the two tokens so (A,B) and (B,A) map to one key.
func normalizePair(a, b common.Address) pairKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

func NewParams(admin common.Address, state ParamsState, db ParamsDB) (*Params, error) {
	if state.MaxSlippageBps > MaxSlippageCap {
		return nil, fmt.Errorf("%w: %d > %d", ErrSlippageTooHigh, state.MaxSlippageBps, MaxSlippageCap)
	}
	p := &Params{
		admin:             admin,
		db:                db,
		redeemFeeBps:      state.RedeemFeeBps,
		settleFeeBps:      state.SettleFeeBps,
		maxSlippageBps:    state.MaxSlippageBps,
		automator:         state.Automator,
		automatorTreasury: state.AutomatorTreasury,
		automatorEnabled:  state.AutomatorEnabled,
		pairs:             make(map[pairKey]bool),
	}
	for _, pair := range state.AllowedPairs {
		p.pairs[normalizePair(pair.TokenA, pair.TokenB)] = true
	}
	return p, nil
}

// ==============================
// Reads
// ==============================

func (p *Params) Admin() common.Address {
	return p.admin
}

func (p *Params) RedeemFeeBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.redeemFeeBps
}

func (p *Params) SettleFeeBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settleFeeBps
}

// FeeBpsFor returns the fee register matching the order kind.
func (p *Params) FeeBpsFor(kind OrderKind) uint64 {
	if kind == KindSettle {
		return p.SettleFeeBps()
	}
	return p.RedeemFeeBps()
}

func (p *Params) MaxSlippageBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxSlippageBps
}

// IsPairAllowed reports whether the (symmetric) pair is allow-listed.
func (p *Params) IsPairAllowed(a, b common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pairs[normalizePair(a, b)]
}

func (p *Params) Automator() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.automator
}

func (p *Params) AutomatorTreasury() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.automatorTreasury
}

func (p *Params) AutomatorEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.automatorEnabled
}

// State returns a snapshot of all parameters.
func (p *Params) State() ParamsState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *Params) stateLocked() ParamsState {
	st := ParamsState{
		RedeemFeeBps:      p.redeemFeeBps,
		SettleFeeBps:      p.settleFeeBps,
		MaxSlippageBps:    p.maxSlippageBps,
		Automator:         p.automator,
		AutomatorTreasury: p.automatorTreasury,
		AutomatorEnabled:  p.automatorEnabled,
	}
	for k, allowed := range p.pairs {
		if allowed {
			st.AllowedPairs = append(st.AllowedPairs, AllowedPair{TokenA: k.lo, TokenB: k.hi})
		}
	}
	return st
}

// ==============================
// Admin mutations
// ==============================

func (p *Params) SetRedeemFee(caller common.Address, bps uint64) error {
	return p.mutate(caller, func() error {
		p.redeemFeeBps = bps
		return nil
	})
}

func (p *Params) SetSettleFee(caller common.Address, bps uint64) error {
	return p.mutate(caller, func() error {
		p.settleFeeBps = bps
		return nil
	})
}

// SetMaxSlippage rejects values above MaxSlippageCap.
func (p *Params) SetMaxSlippage(caller common.Address, bps uint64) error {
	return p.mutate(caller, func() error {
		if bps > MaxSlippageCap {
			return fmt.Errorf("%w: %d > %d", ErrSlippageTooHigh, bps, MaxSlippageCap)
		}
		p.maxSlippageBps = bps
		return nil
	})
}

// AllowPair allow-lists a pair in both directions.
func (p *Params) AllowPair(caller common.Address, a, b common.Address) error {
	return p.mutate(caller, func() error {
		k := normalizePair(a, b)
		if p.pairs[k] {
			return ErrPairAlreadyAllowed
		}
		p.pairs[k] = true
		return nil
	})
}

// DisallowPair removes a pair allowance in both directions.
func (p *Params) DisallowPair(caller common.Address, a, b common.Address) error {
	return p.mutate(caller, func() error {
		k := normalizePair(a, b)
		if !p.pairs[k] {
			return ErrPairAlreadyDisallowed
		}
		delete(p.pairs, k)
		return nil
	})
}

func (p *Params) SetAutomator(caller, automator common.Address) error {
	return p.mutate(caller, func() error {
		p.automator = automator
		return nil
	})
}

func (p *Params) SetAutomatorTreasury(caller, treasury common.Address) error {
	return p.mutate(caller, func() error {
		p.automatorTreasury = treasury
		return nil
	})
}

func (p *Params) StartAutomator(caller common.Address) error {
	return p.mutate(caller, func() error {
		if p.automatorEnabled {
			return ErrAutomatorAlreadyStarted
		}
		p.automatorEnabled = true
		return nil
	})
}

func (p *Params) StopAutomator(caller common.Address) error {
	return p.mutate(caller, func() error {
		if !p.automatorEnabled {
			return ErrAutomatorAlreadyStopped
		}
		p.automatorEnabled = false
		return nil
	})
}

// mutate applies fn under the write lock after the admin check, then
// persists the new state if a DB is attached.
func (p *Params) mutate(caller common.Address, fn func() error) error {
	if caller != p.admin {
		return ErrNotOwner
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	if p.db != nil {
		if err := p.db.SaveParams(p.stateLocked()); err != nil {
			return fmt.Errorf("settle: persist params: %w", err)
		}
	}
	return nil
}
