package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testHouse = "31wdq6EJgHKRjZotAjc6vkuJ7aRyQPauwmgadPiEm8EY"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HOUSE_WALLET", testHouse)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, uint16(0), cfg.Settlement.RedemptionFeeBps)
	require.Equal(t, uint16(8000), cfg.Settlement.ConsensusThresholdBps)
	require.Equal(t, 30*24*time.Hour, cfg.Settlement.SweepDelay)
	require.Equal(t, uint64(890_880), cfg.Settlement.KeepAliveReserve)
	require.Equal(t, uint64(1_461_600), cfg.Settlement.MintRentLamports)
	require.Equal(t, "store", cfg.Solana.OracleMode)
	require.Equal(t, time.Minute, cfg.App.KeeperInterval)
	require.Contains(t, cfg.GetDSN(), "dbname=predictsol")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HOUSE_WALLET", testHouse)
	t.Setenv("REDEMPTION_FEE_BPS", "50")
	t.Setenv("SWEEP_DELAY", "2h")
	t.Setenv("KEEPER_INTERVAL", "15s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, uint16(50), cfg.Settlement.RedemptionFeeBps)
	require.Equal(t, 2*time.Hour, cfg.Settlement.SweepDelay)
	require.Equal(t, 15*time.Second, cfg.App.KeeperInterval)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": "", "HOUSE_WALLET": testHouse}},
		{"missing house", map[string]string{"JWT_SECRET": "s", "HOUSE_WALLET": ""}},
		{"bad house", map[string]string{"JWT_SECRET": "s", "HOUSE_WALLET": "not-base58-0OIl"}},
		{"fee too high", map[string]string{"JWT_SECRET": "s", "HOUSE_WALLET": testHouse, "REDEMPTION_FEE_BPS": "10001"}},
		{"bad delay", map[string]string{"JWT_SECRET": "s", "HOUSE_WALLET": testHouse, "SWEEP_DELAY": "soon"}},
		{"chain without key", map[string]string{"JWT_SECRET": "s", "HOUSE_WALLET": testHouse, "ORACLE_MODE": "chain"}},
		{"unknown oracle", map[string]string{"JWT_SECRET": "s", "HOUSE_WALLET": testHouse, "ORACLE_MODE": "magic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
