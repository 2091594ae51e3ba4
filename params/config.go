package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Engine struct {
	// Address is the engine's own identity: owners grant it otoken
	// allowances and vault operator rights.
	Address string
	// Admin may mutate fees, pairs and slippage, and withdraw treasury fees.
	Admin string

	RedeemFeeBps   uint64
	SettleFeeBps   uint64
	MaxSlippageBps uint64
}

type Keeper struct {
	// Interval throttles resolver polling.
	//
	// Recommended values:
	//   - Devnet:  1s (fast feedback, cheap reads)
	//   - Mainnet: 13s (roughly once per block)
	Interval time.Duration
	Enabled  bool
}

type Node struct {
	DBPath  string
	LogFile string
	APIAddr string
}

type Config struct {
	Engine Engine
	Keeper Keeper
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			Address:        "0x00000000000000000000000000000000000000A0",
			Admin:          "0x00000000000000000000000000000000000000Ad",
			RedeemFeeBps:   50,
			SettleFeeBps:   10,
			MaxSlippageBps: 50,
		},
		Keeper: Keeper{
			Interval: time.Second,
			Enabled:  true,
		},
		Node: Node{
			DBPath:  "data/orders.db",
			LogFile: "data/node.log",
			APIAddr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Engine.Address = getEnv("ENGINE_ADDRESS", cfg.Engine.Address)
	cfg.Engine.Admin = getEnv("ENGINE_ADMIN", cfg.Engine.Admin)
	cfg.Engine.RedeemFeeBps = getEnvUint("REDEEM_FEE_BPS", cfg.Engine.RedeemFeeBps)
	cfg.Engine.SettleFeeBps = getEnvUint("SETTLE_FEE_BPS", cfg.Engine.SettleFeeBps)
	cfg.Engine.MaxSlippageBps = getEnvUint("MAX_SLIPPAGE_BPS", cfg.Engine.MaxSlippageBps)

	if ms := os.Getenv("KEEPER_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Keeper.Interval = time.Duration(v) * time.Millisecond
		}
	}
	if enabled := os.Getenv("KEEPER_ENABLED"); enabled != "" {
		cfg.Keeper.Enabled = enabled == "true"
	}

	cfg.Node.DBPath = getEnv("DB_PATH", cfg.Node.DBPath)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)

	return cfg
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
