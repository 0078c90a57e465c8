package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	Solana     SolanaConfig
	Settlement SettlementConfig
	Redis      RedisConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env            string
	JWTSecret      string
	KeeperInterval time.Duration
}

// SolanaConfig holds chain access and program settings
type SolanaConfig struct {
	Network        string
	RPCURL         string
	ProgramID      string
	TruthProgramID string
	ServerKey      string
	TreasuryWallet string
	// OracleMode is "store" for the database oracle or "chain" for the
	// deployed Truth Network program.
	OracleMode string
}

// SettlementConfig holds the engine parameters
type SettlementConfig struct {
	RedemptionFeeBps      uint16
	ConsensusThresholdBps uint16
	SweepDelay            time.Duration
	KeepAliveReserve      uint64
	MintRentLamports      uint64
	HouseWallet           string
}

// RedisConfig enables the shared event lock when URL is set
type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var errs []error
	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "predictsol"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		App: AppConfig{
			Env:            getEnv("APP_ENV", "production"),
			JWTSecret:      getEnv("JWT_SECRET", ""),
			KeeperInterval: getDuration("KEEPER_INTERVAL", time.Minute, &errs),
		},
		Solana: SolanaConfig{
			Network:        getEnv("SOLANA_NETWORK", "devnet"),
			RPCURL:         getEnv("SOLANA_RPC_URL", ""),
			ProgramID:      getEnv("PROGRAM_ID", "BkNTEaYRntnPsgMZPKoh8AoQ5b7H75sweWivcUNxcm1V"),
			TruthProgramID: getEnv("TRUTH_PROGRAM_ID", "31wdq6EJgHKRjZotAjc6vkuJ7aRyQPauwmgadPiEm8EY"),
			ServerKey:      getEnv("SERVER_WALLET_PRIVATE_KEY", ""),
			TreasuryWallet: getEnv("TREASURY_WALLET", ""),
			OracleMode:     getEnv("ORACLE_MODE", "store"),
		},
		Settlement: SettlementConfig{
			RedemptionFeeBps:      getBps("REDEMPTION_FEE_BPS", 0, &errs),
			ConsensusThresholdBps: getBps("CONSENSUS_THRESHOLD_BPS", 8000, &errs),
			SweepDelay:            getDuration("SWEEP_DELAY", 30*24*time.Hour, &errs),
			KeepAliveReserve:      getUint("KEEP_ALIVE_RESERVE_LAMPORTS", 890_880, &errs),
			MintRentLamports:      getUint("MINT_RENT_LAMPORTS", 1_461_600, &errs),
			HouseWallet:           getEnv("HOUSE_WALLET", ""),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			LockTTL: getDuration("REDIS_LOCK_TTL", 30*time.Second, &errs),
		},
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if config.Settlement.HouseWallet == "" {
		return nil, fmt.Errorf("HOUSE_WALLET is required")
	}
	if config.Settlement.ConsensusThresholdBps == 0 {
		return nil, fmt.Errorf("CONSENSUS_THRESHOLD_BPS must be between 1 and 10000")
	}

	addresses := map[string]string{
		"HOUSE_WALLET":     config.Settlement.HouseWallet,
		"PROGRAM_ID":       config.Solana.ProgramID,
		"TRUTH_PROGRAM_ID": config.Solana.TruthProgramID,
		"TREASURY_WALLET":  config.Solana.TreasuryWallet,
	}
	for key, value := range addresses {
		if value == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return nil, fmt.Errorf("%s is not a valid address: %w", key, err)
		}
	}

	switch config.Solana.OracleMode {
	case "store":
	case "chain":
		if config.Solana.ServerKey == "" {
			return nil, fmt.Errorf("SERVER_WALLET_PRIVATE_KEY is required when ORACLE_MODE=chain")
		}
	default:
		return nil, fmt.Errorf("ORACLE_MODE must be store or chain, got %q", config.Solana.OracleMode)
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getUint(key string, defaultValue uint64, errs *[]error) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getBps(key string, defaultValue uint16, errs *[]error) uint16 {
	n := getUint(key, uint64(defaultValue), errs)
	if n > 10_000 {
		*errs = append(*errs, fmt.Errorf("%s must be at most 10000 bps, got %d", key, n))
		return defaultValue
	}
	return uint16(n)
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
