package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shenwilly/opyn-auto/params"
	"github.com/shenwilly/opyn-auto/pkg/api"
	"github.com/shenwilly/opyn-auto/pkg/gamma"
	"github.com/shenwilly/opyn-auto/pkg/keeper"
	"github.com/shenwilly/opyn-auto/pkg/settle"
	"github.com/shenwilly/opyn-auto/pkg/storage"
	"github.com/shenwilly/opyn-auto/pkg/swap"
	"github.com/shenwilly/opyn-auto/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	self := common.HexToAddress(cfg.Engine.Address)
	admin := common.HexToAddress(cfg.Engine.Admin)

	// ---- Storage ----
	db, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_init_failed", "err", err)
	}
	defer db.Close()

	// ---- Protocol collaborators (in-memory devnet protocol) ----
	clock := util.RealClock{}
	bank := gamma.NewBank()
	pool := common.HexToAddress("0x00000000000000000000000000000000000000FF")
	controller := gamma.NewMemController(bank, clock, pool)
	routerReserve := common.HexToAddress("0x00000000000000000000000000000000000000FE")
	router := swap.NewFixedRateRouter(bank, routerReserve)

	// ---- Engine parameters: persisted state wins over env defaults ----
	state := settle.ParamsState{
		RedeemFeeBps:     cfg.Engine.RedeemFeeBps,
		SettleFeeBps:     cfg.Engine.SettleFeeBps,
		MaxSlippageBps:   cfg.Engine.MaxSlippageBps,
		AutomatorEnabled: cfg.Keeper.Enabled,
	}
	if saved, ok, err := db.LoadParams(); err != nil {
		sugar.Fatalw("params_load_failed", "err", err)
	} else if ok {
		state = saved
	}
	engineParams, err := settle.NewParams(admin, state, db)
	if err != nil {
		sugar.Fatalw("params_invalid", "err", err)
	}

	// ---- Core engine ----
	store, err := settle.NewOrderStore(controller, engineParams, db, nil, sugar)
	if err != nil {
		sugar.Fatalw("store_init_failed", "err", err)
	}
	eval := settle.NewEvaluator(controller, bank, store, self)
	resolver := settle.NewResolver(store, eval, engineParams, router, controller, self)
	processor := settle.NewProcessor(store, eval, engineParams, controller, router, bank, self, sugar)

	sugar.Infow("engine_initialized",
		"address", self.Hex(),
		"orders", store.OrdersLength(),
		"redeem_fee_bps", engineParams.RedeemFeeBps(),
		"settle_fee_bps", engineParams.SettleFeeBps(),
	)

	if os.Getenv("DEVNET_SEED") == "true" {
		seedDevnet(bank, controller, router, engineParams, store, self, admin)
		sugar.Info("devnet seeded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Keeper loop ----
	k := keeper.New(resolver, processor, engineParams, clock, cfg.Keeper.Interval, sugar)
	go k.Run(ctx)

	// ---- API ----
	server := api.NewServer(store, resolver, processor, engineParams)
	store.SetNotifier(server)
	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}

// seedDevnet sets up a small options market so the keeper has work: one ETH
// put past-dated to expire shortly, a funded seller vault, a buyer holding
// the otokens with allowance granted, and swap liquidity for WETH output.
func seedDevnet(bank *gamma.Bank, controller *gamma.MemController, router *swap.FixedRateRouter, p *settle.Params, store *settle.OrderStore, self, admin common.Address) {
	var (
		usdc   = common.HexToAddress("0x0000000000000000000000000000000000000001")
		weth   = common.HexToAddress("0x0000000000000000000000000000000000000002")
		ethPut = common.HexToAddress("0x0000000000000000000000000000000000000010")
		seller = common.HexToAddress("0x00000000000000000000000000000000000000B1")
		buyer  = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	)

	expiry := time.Now().Add(30 * time.Second).Unix()
	controller.WhitelistInstrument(gamma.Instrument{
		Token:      ethPut,
		Underlying: weth,
		Collateral: usdc,
		Strike:     big.NewInt(300_000_000), // 300 USDC (6 decimals) per option
		Expiry:     expiry,
		IsPut:      true,
	})

	collateral := big.NewInt(3_000_000_000) // 3000 USDC
	short := new(big.Int).Mul(gamma.OneOtoken, big.NewInt(10))
	bank.Mint(usdc, seller, collateral)
	vaultID, err := controller.OpenVault(seller, ethPut, collateral, short)
	if err != nil {
		log.Fatalf("devnet seed: %v", err)
	}

	// Hand the otokens to a buyer and authorize the engine on both sides.
	if err := bank.Transfer(ethPut, seller, buyer, short); err != nil {
		log.Fatalf("devnet seed: %v", err)
	}
	bank.Approve(ethPut, buyer, self, short)
	controller.SetOperator(seller, self, true)

	// Oracle: 200 USDC expiry price, finalized immediately at expiry.
	controller.SetExpiryPrice(weth, expiry, big.NewInt(200_000_000))
	controller.EndDisputePeriod(weth, expiry)

	// Swap liquidity: 1 WETH per 2000 USDC, reserve pre-funded.
	router.SetRate(usdc, weth, big.NewInt(1), big.NewInt(2000))
	bank.Mint(weth, common.HexToAddress("0x00000000000000000000000000000000000000FE"), big.NewInt(1_000_000_000))

	if err := p.AllowPair(admin, usdc, weth); err != nil {
		log.Fatalf("devnet seed: %v", err)
	}

	// Pending orders for the keeper to pick up once expiry passes.
	if _, err := store.CreateOrder(buyer, ethPut, short, 0, common.Address{}); err != nil {
		log.Fatalf("devnet seed: %v", err)
	}
	if _, err := store.CreateOrder(seller, common.Address{}, nil, vaultID, weth); err != nil {
		log.Fatalf("devnet seed: %v", err)
	}
}
