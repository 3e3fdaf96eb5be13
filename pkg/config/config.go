// Copyright 2025 Certen Protocol
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/certen/escrow-core/pkg/feebank"
	"github.com/certen/escrow-core/pkg/immutables"
)

// Config holds the deployment-wide settings the Factory and Order
// Integration layer need: rescue delays, the fee-bank access gate, and the
// limit-order-protocol address the factory trusts callbacks from.
type Config struct {
	// Network Configuration
	RPCURL  string
	ChainID int64

	// Factory
	FactoryID common.Address // fed into immutables.DeriveAddress for every escrow this node deploys

	// Rescue Configuration
	SrcRescueDelay uint32 // seconds after src escrow deployment
	DstRescueDelay uint32 // seconds after dst escrow deployment

	// Fee Bank / Access Gating
	FeeBankAddress        common.Address
	AccessTokenAddress    common.Address
	AccessTokenMinBalance uint64
	PerFillFee            uint64

	// Order Integration
	LimitOrderProtocolAddress common.Address

	// Safety
	SafetyMarginSeconds uint32 // minimum gap enforced between dst_cancellation and src_cancellation

	LogLevel string
}

// Load reads configuration from environment variables.
//
// CRITICAL: this service reads only these exact variable names (no aliases
// such as ETHEREUM_RPC_URL):
//   - ESCROW_RPC_URL, ESCROW_CHAIN_ID, ESCROW_FACTORY_ID
//   - ESCROW_SRC_RESCUE_DELAY / ESCROW_DST_RESCUE_DELAY
//   - ESCROW_FEE_BANK_ADDRESS, ESCROW_ACCESS_TOKEN_ADDRESS,
//     ESCROW_ACCESS_TOKEN_MIN_BALANCE, ESCROW_PER_FILL_FEE
//   - ESCROW_LOP_ADDRESS, ESCROW_SAFETY_MARGIN_SECONDS
//   - LOG_LEVEL
//
// SECURITY: required variables have no defaults and must be explicitly set.
// Call Validate() after Load() to ensure all required configuration is present.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:  getEnv("ESCROW_RPC_URL", ""),
		ChainID: getEnvInt64("ESCROW_CHAIN_ID", 1),

		FactoryID: common.HexToAddress(getEnv("ESCROW_FACTORY_ID", "")),

		SrcRescueDelay: uint32(getEnvInt("ESCROW_SRC_RESCUE_DELAY", 604800)), // 7 days
		DstRescueDelay: uint32(getEnvInt("ESCROW_DST_RESCUE_DELAY", 604800)),

		FeeBankAddress:        common.HexToAddress(getEnv("ESCROW_FEE_BANK_ADDRESS", "")),
		AccessTokenAddress:    common.HexToAddress(getEnv("ESCROW_ACCESS_TOKEN_ADDRESS", "")),
		AccessTokenMinBalance: uint64(getEnvInt("ESCROW_ACCESS_TOKEN_MIN_BALANCE", 0)),
		PerFillFee:            uint64(getEnvInt("ESCROW_PER_FILL_FEE", 0)),

		LimitOrderProtocolAddress: common.HexToAddress(getEnv("ESCROW_LOP_ADDRESS", "")),

		SafetyMarginSeconds: uint32(getEnvInt("ESCROW_SAFETY_MARGIN_SECONDS", 600)), // 10 minutes

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// fileConfig mirrors Config with plain strings for the address/hex fields,
// since common.Address has no yaml tag support of its own.
type fileConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`

	FactoryID string `yaml:"factory_id"`

	SrcRescueDelay uint32 `yaml:"src_rescue_delay"`
	DstRescueDelay uint32 `yaml:"dst_rescue_delay"`

	FeeBankAddress        string `yaml:"fee_bank_address"`
	AccessTokenAddress    string `yaml:"access_token_address"`
	AccessTokenMinBalance uint64 `yaml:"access_token_min_balance"`
	PerFillFee            uint64 `yaml:"per_fill_fee"`

	LimitOrderProtocolAddress string `yaml:"lop_address"`

	SafetyMarginSeconds uint32 `yaml:"safety_margin_seconds"`

	LogLevel string `yaml:"log_level"`
}

// LoadFile reads deployment configuration from a YAML file, for operators
// who prefer a checked-in config over the ESCROW_* environment variables
// Load reads. Fields left unset take the same defaults as Load.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	fc := fileConfig{
		ChainID:             1,
		SrcRescueDelay:      604800,
		DstRescueDelay:      604800,
		SafetyMarginSeconds: 600,
		LogLevel:            "info",
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &Config{
		RPCURL:                    fc.RPCURL,
		ChainID:                   fc.ChainID,
		FactoryID:                 common.HexToAddress(fc.FactoryID),
		SrcRescueDelay:            fc.SrcRescueDelay,
		DstRescueDelay:            fc.DstRescueDelay,
		FeeBankAddress:            common.HexToAddress(fc.FeeBankAddress),
		AccessTokenAddress:        common.HexToAddress(fc.AccessTokenAddress),
		AccessTokenMinBalance:     fc.AccessTokenMinBalance,
		PerFillFee:                fc.PerFillFee,
		LimitOrderProtocolAddress: common.HexToAddress(fc.LimitOrderProtocolAddress),
		SafetyMarginSeconds:       fc.SafetyMarginSeconds,
		LogLevel:                  fc.LogLevel,
	}, nil
}

// Validate checks that all required configuration is present and secure.
// This must be called after Load() before starting the service.
func (c *Config) Validate() error {
	var errs []string

	if c.RPCURL == "" {
		errs = append(errs, "ESCROW_RPC_URL is required but not set")
	}
	if (c.FeeBankAddress == common.Address{}) {
		errs = append(errs, "ESCROW_FEE_BANK_ADDRESS is required but not set")
	}
	if (c.LimitOrderProtocolAddress == common.Address{}) {
		errs = append(errs, "ESCROW_LOP_ADDRESS is required but not set")
	}
	if c.SrcRescueDelay == 0 || c.DstRescueDelay == 0 {
		errs = append(errs, "rescue delays must be non-zero")
	}
	if c.SafetyMarginSeconds == 0 {
		errs = append(errs, "ESCROW_SAFETY_MARGIN_SECONDS must be non-zero")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// AccessTokenConfig projects the access-gating fields into the shape
// feebank.ValidateAccess consumes.
func (c *Config) AccessTokenConfig() feebank.AccessTokenConfig {
	return feebank.AccessTokenConfig{
		Token:      immutables.TokenIDFromAddress(c.AccessTokenAddress),
		MinBalance: c.AccessTokenMinBalance,
	}
}

// FeeConfig projects the fee field into the shape feebank.ValidateAccess
// consumes.
func (c *Config) FeeConfig() feebank.FeeConfig {
	return feebank.FeeConfig{PerFillFee: c.PerFillFee}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
