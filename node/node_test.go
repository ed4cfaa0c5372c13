package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsim/config"
	"coinsim/model"
	"coinsim/wallet"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Difficulty:     8,
		CoinbaseReward: 50,
	}
}

func newTestWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.New()
	require.NoError(t, err)
	return w
}

// fund mines an empty block so the miner wallet receives one coinbase.
func fund(t *testing.T, n *Node, miner *wallet.Wallet) {
	t.Helper()
	_, err := n.Mine(context.Background(), miner.Address())
	require.NoError(t, err)
}

func TestMiningScenario(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a, b, c := newTestWallet(t), newTestWallet(t), newTestWallet(t)

	// A mines the first block and grants itself the 50-unit coinbase.
	fund(t, n, a)
	assert.Equal(t, int64(50), n.GetBalance(a.Address()))

	// A sends 20 to B; the 30 change returns to A.
	tx, err := a.BuildTransaction(b.Address(), 20, n.LedgerSnapshot())
	require.NoError(t, err)
	require.NoError(t, n.AddTransaction(tx))
	assert.Len(t, n.PendingTransactions(), 1)

	// C mines the transaction into block #2.
	block, err := n.Mine(context.Background(), c.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(2), block.Index)
	assert.Len(t, block.Txs, 1)

	assert.Equal(t, int64(30), n.GetBalance(a.Address()))
	assert.Equal(t, int64(20), n.GetBalance(b.Address()))
	assert.Equal(t, int64(50), n.GetBalance(c.Address()))
	assert.Empty(t, n.PendingTransactions())
	assert.NoError(t, n.ValidateChain())
}

func TestDoubleSpendRejectedAtAdmission(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a, b := newTestWallet(t), newTestWallet(t)
	fund(t, n, a)

	// Both transactions are built against the same snapshot, so they claim
	// the same coinbase output.
	snapshot := n.LedgerSnapshot()
	tx1, err := a.BuildTransaction(b.Address(), 20, snapshot)
	require.NoError(t, err)
	tx2, err := a.BuildTransaction(b.Address(), 30, snapshot)
	require.NoError(t, err)

	require.NoError(t, n.AddTransaction(tx1))
	// The confirmed ledger is still unmutated, the pool claims catch it.
	assert.ErrorIs(t, n.AddTransaction(tx2), model.ErrUnknownUTXO)
}

func TestConfirmedInputSetsAreDisjoint(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a, b := newTestWallet(t), newTestWallet(t)

	fund(t, n, a)
	fund(t, n, a)
	for _, amount := range []int64{20, 30} {
		tx, err := a.BuildTransaction(b.Address(), amount, n.LedgerSnapshot())
		require.NoError(t, err)
		require.NoError(t, n.AddTransaction(tx))
		_, err = n.Mine(context.Background(), b.Address())
		require.NoError(t, err)
	}
	require.NoError(t, n.ValidateChain())

	seen := make(map[model.UTXO]string)
	for _, block := range n.Blocks(0) {
		for _, tx := range block.Txs {
			for _, in := range tx.Inputs {
				utxo := model.UTXO{PrevTxHash: in.PrevTxHash, Index: in.Index}
				spender, dup := seen[utxo]
				assert.Falsef(t, dup, "utxo %v spent by both %s and %s", utxo, spender, tx.Hash)
				seen[utxo] = tx.Hash
			}
		}
	}
}

func TestTamperedTransactionNotAdmitted(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a, b := newTestWallet(t), newTestWallet(t)
	fund(t, n, a)

	tx, err := a.BuildTransaction(b.Address(), 20, n.LedgerSnapshot())
	require.NoError(t, err)
	tx.Signature[6] ^= 0x01
	assert.ErrorIs(t, n.AddTransaction(tx), model.ErrSignatureInvalid)

	tx2, err := a.BuildTransaction(b.Address(), 20, n.LedgerSnapshot())
	require.NoError(t, err)
	tx2.Outputs[0].Value = 45
	assert.ErrorIs(t, n.AddTransaction(tx2), model.ErrSignatureInvalid)

	// Neither tampered transaction ever reached the pool, so neither can be
	// mined into a block.
	assert.Empty(t, n.PendingTransactions())
}

func TestValidateChainDetectsTampering(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a, b := newTestWallet(t), newTestWallet(t)
	fund(t, n, a)

	tx, err := a.BuildTransaction(b.Address(), 20, n.LedgerSnapshot())
	require.NoError(t, err)
	require.NoError(t, n.AddTransaction(tx))
	_, err = n.Mine(context.Background(), a.Address())
	require.NoError(t, err)
	require.NoError(t, n.ValidateChain())

	// Rewrite history: bump the payout inside the confirmed block.
	blocks := n.Blocks(0)
	blocks[len(blocks)-1].Txs[0].Outputs[0].Value = 45
	assert.ErrorIs(t, n.ValidateChain(), model.ErrChainIntegrity)
}

func TestNothingToMineWithoutReward(t *testing.T) {
	cfg := testConfig()
	cfg.CoinbaseReward = 0
	n, err := New(cfg)
	require.NoError(t, err)
	a := newTestWallet(t)

	_, err = n.Mine(context.Background(), a.Address())
	assert.ErrorIs(t, err, model.ErrNothingToMine)
}

func TestMiningIsCancellable(t *testing.T) {
	cfg := testConfig()
	// A difficulty no hash can reach in this lifetime.
	cfg.Difficulty = 240
	n, err := New(cfg)
	require.NoError(t, err)
	a := newTestWallet(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := n.Mine(ctx, a.Address())
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("mining did not react to cancellation")
	}

	// Shared state is untouched by the discarded search.
	assert.Equal(t, int64(0), n.GetBalance(a.Address()))
	assert.Len(t, n.Blocks(0), 1)
}

func TestMaxBlockTxsCapsTheBatch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBlockTxs = 1
	n, err := New(cfg)
	require.NoError(t, err)
	a, b, c := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	fund(t, n, a)
	fund(t, n, c)

	for _, sender := range []*wallet.Wallet{a, c} {
		tx, err := sender.BuildTransaction(b.Address(), 10, n.LedgerSnapshot())
		require.NoError(t, err)
		require.NoError(t, n.AddTransaction(tx))
	}

	block, err := n.Mine(context.Background(), a.Address())
	require.NoError(t, err)
	assert.Len(t, block.Txs, 1)
	assert.Len(t, n.PendingTransactions(), 1)
	assert.NoError(t, n.ValidateChain())
}

func TestRestoreFromChain(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a, b := newTestWallet(t), newTestWallet(t)
	fund(t, n, a)
	tx, err := a.BuildTransaction(b.Address(), 20, n.LedgerSnapshot())
	require.NoError(t, err)
	require.NoError(t, n.AddTransaction(tx))

	blocks, pending := n.Export()
	restored, err := NewFromChain(testConfig(), blocks, pending)
	require.NoError(t, err)

	assert.Equal(t, n.GetBalance(a.Address()), restored.GetBalance(a.Address()))
	assert.Len(t, restored.PendingTransactions(), 1)
	assert.NoError(t, restored.ValidateChain())
}

func TestRestoreRejectsTamperedBlocks(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	a := newTestWallet(t)
	fund(t, n, a)

	blocks, _ := n.Export()
	blocks[1].Coinbase.Outputs[0].Value = 1000
	_, err = NewFromChain(testConfig(), blocks, nil)
	assert.ErrorIs(t, err, model.ErrChainIntegrity)
}
