package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsim/model"
)

// testDifficulty keeps the nonce search fast: one zero byte on average takes
// a few hundred attempts.
const testDifficulty = 8

func TestByteHasLeadingZeros(t *testing.T) {
	digest := []byte{2, 45, 40}
	assert.True(t, ByteHasLeadingZeros(digest, 6))
	assert.False(t, ByteHasLeadingZeros(digest, 9))
	assert.False(t, ByteHasLeadingZeros(digest, 25))

	assert.True(t, ByteHasLeadingZeros([]byte{0, 255}, 8))
	assert.False(t, ByteHasLeadingZeros([]byte{0, 255}, 9))
	assert.True(t, ByteHasLeadingZeros([]byte{0, 0}, 16))
	assert.False(t, ByteHasLeadingZeros([]byte{0, 0}, 17))
	assert.True(t, ByteHasLeadingZeros(digest, 0))
}

func TestMineBlockSatisfiesDifficulty(t *testing.T) {
	miner := newTestOwner(t)
	bc, err := NewBlockchain()
	require.NoError(t, err)

	block, err := CreateNewBlock(context.Background(), nil, bc.Tail(), 50, miner.address, bc.Ledger.Clone(), testDifficulty)
	require.NoError(t, err)

	matched, digest, err := MatchDifficulty(block, testDifficulty)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, digest, block.Hash)
	assert.NoError(t, VerifyBlock(block, bc.Tail(), testDifficulty))
}

func TestMineBlockCancellation(t *testing.T) {
	bc, err := NewBlockchain()
	require.NoError(t, err)
	block := &model.Block{
		Index:     1,
		PrevHash:  bc.Tail().Hash,
		Timestamp: time.Now().Unix(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		// A difficulty no hash can reach in this lifetime.
		done <- MineBlock(ctx, block, 240)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("mining did not react to cancellation")
	}
}

func TestVerifyBlockRejectsBrokenLink(t *testing.T) {
	miner := newTestOwner(t)
	bc, err := NewBlockchain()
	require.NoError(t, err)

	block, err := CreateNewBlock(context.Background(), nil, bc.Tail(), 50, miner.address, bc.Ledger.Clone(), testDifficulty)
	require.NoError(t, err)

	// Wrong predecessor.
	stranger := &model.Block{Index: 0, Hash: "ffff"}
	assert.ErrorIs(t, VerifyBlock(block, stranger, testDifficulty), model.ErrChainIntegrity)

	// Broken index continuity.
	skipped := *bc.Tail()
	skipped.Index = 5
	assert.ErrorIs(t, VerifyBlock(block, &skipped, testDifficulty), model.ErrChainIntegrity)
}

func TestVerifyBlockRejectsTamperedContent(t *testing.T) {
	miner, recipient := newTestOwner(t), newTestOwner(t)
	l, utxo := fundedLedger(miner.address)
	prev := &model.Block{Index: 4, Hash: "00cd"}

	tx := signedTransfer(t, miner,
		[]*model.Input{{PrevTxHash: utxo.PrevTxHash, Index: utxo.Index}},
		[]*model.Output{{Value: 50, Address: recipient.address}})

	block, err := CreateNewBlock(context.Background(), []*model.Transaction{tx}, prev, 50, miner.address, l, testDifficulty)
	require.NoError(t, err)
	require.NoError(t, VerifyBlock(block, prev, testDifficulty))

	// Any byte of transaction data flipped after sealing breaks the digest.
	block.Txs[0].Outputs[0].Value = 1
	assert.ErrorIs(t, VerifyBlock(block, prev, testDifficulty), model.ErrChainIntegrity)
}

func TestNewBlockchainGenesis(t *testing.T) {
	bc, err := NewBlockchain()
	require.NoError(t, err)

	require.Len(t, bc.Blocks, 1)
	genesis := bc.Tail()
	assert.Equal(t, int64(0), genesis.Index)
	assert.Equal(t, model.GenesisPrevHash, genesis.PrevHash)
	assert.NoError(t, VerifyGenesis(genesis))
	assert.Empty(t, bc.Ledger.Entries)

	genesis.PrevHash = "1"
	assert.ErrorIs(t, VerifyGenesis(genesis), model.ErrChainIntegrity)
}
