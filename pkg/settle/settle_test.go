package settle

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/pkg/gamma"
	"github.com/shenwilly/opyn-auto/pkg/swap"
	"github.com/shenwilly/opyn-auto/pkg/util"
)

var (
	tUSDC    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tWETH    = common.HexToAddress("0x0000000000000000000000000000000000000002")
	tDAI     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	tPut     = common.HexToAddress("0x0000000000000000000000000000000000000010")
	tSelf    = common.HexToAddress("0x00000000000000000000000000000000000000A0")
	tAdmin   = common.HexToAddress("0x00000000000000000000000000000000000000Ad")
	tSeller  = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	tBuyer   = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	tPool    = common.HexToAddress("0x00000000000000000000000000000000000000FF")
	tReserve = common.HexToAddress("0x00000000000000000000000000000000000000FE")
)

// fixture wires the full engine against the in-memory protocol with one ITM
// ETH put market: strike 300 USDC, 10 options written against 3000 USDC
// collateral, otokens held by the buyer with allowance granted.
//
// After finalize(200 USDC): payout is 100 USDC per option, vault excess is
// 2000 USDC.
type fixture struct {
	t          *testing.T
	clock      *util.ManualClock
	bank       *gamma.Bank
	controller *gamma.MemController
	router     *swap.FixedRateRouter
	params     *Params
	store      *OrderStore
	eval       *Evaluator
	resolver   *Resolver
	processor  *Processor

	expiry  int64
	vaultID uint64
	short   *big.Int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	bank := gamma.NewBank()
	controller := gamma.NewMemController(bank, clock, tPool)
	router := swap.NewFixedRateRouter(bank, tReserve)

	expiry := clock.Now().Add(time.Hour).Unix()
	controller.WhitelistInstrument(gamma.Instrument{
		Token:      tPut,
		Underlying: tWETH,
		Collateral: tUSDC,
		Strike:     big.NewInt(300_000_000),
		Expiry:     expiry,
		IsPut:      true,
	})

	short := new(big.Int).Mul(gamma.OneOtoken, big.NewInt(10))
	bank.Mint(tUSDC, tSeller, big.NewInt(3_000_000_000))
	vaultID, err := controller.OpenVault(tSeller, tPut, big.NewInt(3_000_000_000), short)
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	if err := bank.Transfer(tPut, tSeller, tBuyer, short); err != nil {
		t.Fatalf("transfer otokens: %v", err)
	}
	bank.Approve(tPut, tBuyer, tSelf, short)
	controller.SetOperator(tSeller, tSelf, true)

	router.SetRate(tUSDC, tWETH, big.NewInt(1), big.NewInt(2000))
	bank.Mint(tWETH, tReserve, big.NewInt(1_000_000_000))

	params, err := NewParams(tAdmin, ParamsState{
		RedeemFeeBps:     50,
		SettleFeeBps:     10,
		MaxSlippageBps:   50,
		AutomatorEnabled: true,
		AllowedPairs:     []AllowedPair{{TokenA: tUSDC, TokenB: tWETH}},
	}, nil)
	if err != nil {
		t.Fatalf("params: %v", err)
	}

	store, err := NewOrderStore(controller, params, nil, nil, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	eval := NewEvaluator(controller, bank, store, tSelf)

	return &fixture{
		t:          t,
		clock:      clock,
		bank:       bank,
		controller: controller,
		router:     router,
		params:     params,
		store:      store,
		eval:       eval,
		resolver:   NewResolver(store, eval, params, router, controller, tSelf),
		processor:  NewProcessor(store, eval, params, controller, router, bank, tSelf, nil),
		expiry:     expiry,
		vaultID:    vaultID,
		short:      short,
	}
}

// finalize moves past expiry and finalizes the given USDC settlement price.
func (f *fixture) finalize(price int64) {
	f.t.Helper()
	f.clock.Advance(2 * time.Hour)
	f.controller.SetExpiryPrice(tWETH, f.expiry, big.NewInt(price))
	f.controller.EndDisputePeriod(tWETH, f.expiry)
}

func (f *fixture) createRedeem(owner common.Address, amount *big.Int, toToken common.Address) uint64 {
	f.t.Helper()
	id, err := f.store.CreateOrder(owner, tPut, amount, 0, toToken)
	if err != nil {
		f.t.Fatalf("create redeem order: %v", err)
	}
	return id
}

func (f *fixture) createSettle(owner common.Address, vaultID uint64, toToken common.Address) uint64 {
	f.t.Helper()
	id, err := f.store.CreateOrder(owner, common.Address{}, nil, vaultID, toToken)
	if err != nil {
		f.t.Fatalf("create settle order: %v", err)
	}
	return id
}

func (f *fixture) balance(token, holder common.Address) *big.Int {
	return f.bank.BalanceOf(token, holder)
}

func wantBig(t *testing.T, name string, got *big.Int, want int64) {
	t.Helper()
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Errorf("%s = %s, want %d", name, got, want)
	}
}
