package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsim/config"
	"coinsim/node"
	"coinsim/store"
)

// The manual is compiled into the binary so the UI works no matter what the
// working directory is.
func TestUsageTextIsEmbedded(t *testing.T) {
	for _, cmd := range []string{
		"wallet", "transfer", "mine", "stop", "show", "pool", "balance", "save", "load",
	} {
		assert.True(t, strings.Contains(usageText, cmd), "manual is missing %q", cmd)
	}
}

func TestLoadCommandRestoresSavedChain(t *testing.T) {
	cfg := config.AppConfig{Difficulty: 8, CoinbaseReward: 50}
	st, err := store.Open(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	n, err := node.New(cfg)
	require.NoError(t, err)
	a := &app{node: n, store: st, cfg: cfg}

	// Nothing saved yet, the running node stays in place.
	a.load()
	assert.Same(t, n, a.node)

	_, err = n.Mine(context.Background(), "addr-miner")
	require.NoError(t, err)
	a.save()

	a.load()
	assert.NotSame(t, n, a.node)
	assert.NoError(t, a.node.ValidateChain())
	assert.Equal(t, int64(50), a.node.GetBalance("addr-miner"))
}
