package gamma

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/pkg/util"
)

// MemController is an in-memory settlement protocol used for devnet and
// tests. It implements the full Controller surface: instrument whitelist,
// oracle expiry prices with dispute finality, per-owner vaults and a shared
// margin pool holding vault collateral.
//
// Time comes from an injected Clock so tests can move past expiry without
// sleeping.
type MemController struct {
	mu    sync.RWMutex
	bank  *Bank
	clock util.Clock

	// Pool holds all locked vault collateral; redemption payouts and vault
	// proceeds are paid out of it.
	Pool common.Address

	instruments map[common.Address]*Instrument
	vaults      map[common.Address]map[uint64]*Vault // owner -> vaultID -> vault
	vaultSeq    map[common.Address]uint64
	operators   map[common.Address]map[common.Address]bool

	// expiry prices keyed by (underlying, expiry)
	prices    map[priceKey]*big.Int
	finalized map[priceKey]bool
}

type priceKey struct {
	underlying common.Address
	expiry     int64
}

func NewMemController(bank *Bank, clock util.Clock, pool common.Address) *MemController {
	return &MemController{
		bank:        bank,
		clock:       clock,
		Pool:        pool,
		instruments: make(map[common.Address]*Instrument),
		vaults:      make(map[common.Address]map[uint64]*Vault),
		vaultSeq:    make(map[common.Address]uint64),
		operators:   make(map[common.Address]map[common.Address]bool),
		prices:      make(map[priceKey]*big.Int),
		finalized:   make(map[priceKey]bool),
	}
}

// ==============================
// Protocol administration (test / devnet setup)
// ==============================

// WhitelistInstrument registers an otoken with the protocol.
func (c *MemController) WhitelistInstrument(inst Instrument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := inst
	cp.Strike = new(big.Int).Set(inst.Strike)
	c.instruments[inst.Token] = &cp
}

// SetExpiryPrice records the oracle's settlement price for (underlying,
// expiry). The price is not usable for settlement until the dispute period
// ends via EndDisputePeriod.
func (c *MemController) SetExpiryPrice(underlying common.Address, expiry int64, price *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[priceKey{underlying, expiry}] = new(big.Int).Set(price)
}

// EndDisputePeriod marks the recorded price final. Finality is permanent.
func (c *MemController) EndDisputePeriod(underlying common.Address, expiry int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalized[priceKey{underlying, expiry}] = true
}

// SetOperator grants or revokes operator rights over all of owner's vaults.
func (c *MemController) SetOperator(owner, operator common.Address, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.operators[owner] == nil {
		c.operators[owner] = make(map[common.Address]bool)
	}
	c.operators[owner][operator] = allowed
}

// OpenVault locks the owner's collateral in the pool and mints short otokens
// to the owner. Returns the new vault id (per-owner, starting at 1).
func (c *MemController) OpenVault(owner, instrument common.Address, collateral, short *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instruments[instrument]
	if !ok {
		return 0, fmt.Errorf("gamma: instrument %s not whitelisted", instrument.Hex())
	}
	if err := c.bank.Transfer(inst.Collateral, owner, c.Pool, collateral); err != nil {
		return 0, err
	}
	c.bank.Mint(instrument, owner, short)

	c.vaultSeq[owner]++
	id := c.vaultSeq[owner]
	if c.vaults[owner] == nil {
		c.vaults[owner] = make(map[uint64]*Vault)
	}
	c.vaults[owner][id] = &Vault{
		ID:         id,
		Owner:      owner,
		Instrument: instrument,
		Collateral: new(big.Int).Set(collateral),
		Short:      new(big.Int).Set(short),
	}
	return id, nil
}

// ==============================
// Controller reads
// ==============================

func (c *MemController) IsWhitelistedInstrument(instrument common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instruments[instrument]
	return ok
}

func (c *MemController) IsInstrumentExpiredAndFinalized(instrument common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[instrument]
	if !ok {
		return false
	}
	return c.expiredAndFinalizedLocked(inst)
}

func (c *MemController) expiredAndFinalizedLocked(inst *Instrument) bool {
	if c.clock.Now().Unix() < inst.Expiry {
		return false
	}
	return c.finalized[priceKey{inst.Underlying, inst.Expiry}]
}

func (c *MemController) GetPayout(instrument common.Address, amount *big.Int) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[instrument]
	if !ok {
		return big.NewInt(0)
	}
	return c.payoutLocked(inst, amount)
}

// payoutLocked computes intrinsic × amount / 1e8, zero before finality.
func (c *MemController) payoutLocked(inst *Instrument, amount *big.Int) *big.Int {
	if !c.expiredAndFinalizedLocked(inst) {
		return big.NewInt(0)
	}
	price := c.prices[priceKey{inst.Underlying, inst.Expiry}]
	if price == nil {
		return big.NewInt(0)
	}
	payout := new(big.Int).Mul(inst.IntrinsicValue(price), amount)
	return payout.Div(payout, OneOtoken)
}

func (c *MemController) GetProceed(owner common.Address, vaultID uint64) *big.Int {
	excess, isExcess := c.GetExcessCollateral(owner, vaultID)
	if !isExcess {
		return big.NewInt(0)
	}
	return excess
}

func (c *MemController) GetExcessCollateral(owner common.Address, vaultID uint64) (*big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := c.vaultLocked(owner, vaultID)
	if v == nil {
		return big.NewInt(0), false
	}
	inst := c.instruments[v.Instrument]
	if inst == nil || !c.expiredAndFinalizedLocked(inst) {
		return big.NewInt(0), false
	}
	obligation := c.payoutLocked(inst, v.Short)
	excess := new(big.Int).Sub(v.Collateral, obligation)
	if excess.Sign() < 0 {
		return excess.Neg(excess), false
	}
	return excess, true
}

func (c *MemController) IsValidVault(owner common.Address, vaultID uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vaultLocked(owner, vaultID) != nil
}

func (c *MemController) vaultLocked(owner common.Address, vaultID uint64) *Vault {
	if vaultID == 0 {
		return nil
	}
	v := c.vaults[owner][vaultID]
	if v == nil || v.Settled {
		return nil
	}
	return v
}

func (c *MemController) IsOperator(owner, caller common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operators[owner][caller]
}

func (c *MemController) InstrumentCollateral(instrument common.Address) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[instrument]
	if !ok {
		return common.Address{}, fmt.Errorf("gamma: unknown instrument %s", instrument.Hex())
	}
	return inst.Collateral, nil
}

func (c *MemController) VaultInstrument(owner common.Address, vaultID uint64) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vaultLocked(owner, vaultID)
	if v == nil {
		return common.Address{}, fmt.Errorf("gamma: no vault %d for %s", vaultID, owner.Hex())
	}
	return v.Instrument, nil
}

// ==============================
// Controller mutations
// ==============================

func (c *MemController) Redeem(caller, owner, instrument common.Address, amount *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instruments[instrument]
	if !ok {
		return nil, fmt.Errorf("gamma: instrument %s not whitelisted", instrument.Hex())
	}
	if !c.expiredAndFinalizedLocked(inst) {
		return nil, fmt.Errorf("gamma: instrument %s not expired and finalized", instrument.Hex())
	}

	// Pull otokens via the allowance owner granted to caller, then burn them.
	if err := c.bank.TransferFrom(instrument, caller, owner, caller, amount); err != nil {
		return nil, err
	}
	if err := c.bank.Burn(instrument, caller, amount); err != nil {
		return nil, err
	}

	payout := c.payoutLocked(inst, amount)
	if err := c.bank.Transfer(inst.Collateral, c.Pool, caller, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

func (c *MemController) Settle(caller, owner common.Address, vaultID uint64) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != owner && !c.operators[owner][caller] {
		return nil, fmt.Errorf("gamma: %s is not an operator of %s", caller.Hex(), owner.Hex())
	}
	v := c.vaultLocked(owner, vaultID)
	if v == nil {
		return nil, fmt.Errorf("gamma: no vault %d for %s", vaultID, owner.Hex())
	}
	inst := c.instruments[v.Instrument]
	if inst == nil || !c.expiredAndFinalizedLocked(inst) {
		return nil, fmt.Errorf("gamma: vault %d instrument not expired and finalized", vaultID)
	}

	obligation := c.payoutLocked(inst, v.Short)
	proceeds := new(big.Int).Sub(v.Collateral, obligation)
	if proceeds.Sign() < 0 {
		proceeds.SetInt64(0)
	}
	if err := c.bank.Transfer(inst.Collateral, c.Pool, caller, proceeds); err != nil {
		return nil, err
	}
	v.Settled = true
	return proceeds, nil
}

var _ Controller = (*MemController)(nil)
