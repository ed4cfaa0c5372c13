package utils

import (
	"context"
	"fmt"
	"math"
	"time"

	"coinsim/model"
)

// GetBlockBytes returns the canonical byte encoding of a block: every field
// that participates in the hash, in a fixed order.
func GetBlockBytes(block *model.Block) ([]byte, error) {
	var rawBlock []byte
	rawBlock = append(rawBlock, Int64ToBytes(block.Index)...)
	rawBlock = append(rawBlock, Int64ToBytes(int64(len(block.PrevHash)))...)
	rawBlock = append(rawBlock, []byte(block.PrevHash)...)
	rawBlock = append(rawBlock, Int64ToBytes(block.Timestamp)...)
	rawBlock = append(rawBlock, Int64ToBytes(block.Nonce)...)

	rawBlock = append(rawBlock, Int64ToBytes(int64(len(block.Txs)))...)
	for _, tx := range block.Txs {
		txBytes, err := GetTransactionBytes(tx, true)
		if err != nil {
			return nil, err
		}
		rawBlock = append(rawBlock, txBytes...)
	}
	if block.Coinbase != nil {
		coinbaseBytes, err := GetTransactionBytes(block.Coinbase, true)
		if err != nil {
			return nil, err
		}
		rawBlock = append(rawBlock, coinbaseBytes...)
	}
	return rawBlock, nil
}

// HashBlock computes the hex digest of the block contents.
func HashBlock(block *model.Block) (string, error) {
	blockBytes, err := GetBlockBytes(block)
	if err != nil {
		return "", err
	}
	return BytesToHex(Hash(blockBytes)), nil
}

// ByteHasLeadingZeros reports whether the digest starts with at least
// difficulty zero bits.
func ByteHasLeadingZeros(digest []byte, difficulty int) bool {
	zeroBytes := difficulty / 8
	zeroBits := difficulty % 8

	if zeroBytes > len(digest) || (zeroBits > 0 && zeroBytes == len(digest)) {
		return false
	}
	for i := 0; i < zeroBytes; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	if zeroBits == 0 {
		return true
	}
	return digest[zeroBytes]>>(8-zeroBits) == 0
}

// MatchDifficulty recomputes the block digest and reports whether it
// satisfies the difficulty predicate, returning the digest in hex.
func MatchDifficulty(block *model.Block, difficulty int) (bool, string, error) {
	blockBytes, err := GetBlockBytes(block)
	if err != nil {
		return false, "", err
	}
	digest := Hash(blockBytes)
	return ByteHasLeadingZeros(digest, difficulty), BytesToHex(digest), nil
}

// MineBlock searches nonce values from 0 upward until the block digest
// satisfies the difficulty predicate, then fills in the winning hash. The
// search is unbounded in the worst case, so it watches ctx and returns
// ctx.Err() as soon as the caller cancels; partial search state is simply
// discarded.
func MineBlock(ctx context.Context, block *model.Block, difficulty int) error {
	for i := int64(0); i < math.MaxInt64; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		block.Nonce = i
		matched, digest, err := MatchDifficulty(block, difficulty)
		if err != nil {
			return err
		}
		if matched {
			block.Hash = digest
			return nil
		}
	}
	return fmt.Errorf("failed to find any nonce for difficulty %d", difficulty)
}

// VerifyBlock re-derives everything a consumer must not take on trust:
// the stored hash matches the contents, the hash satisfies the difficulty
// predicate, and the block extends prev by exactly one position.
func VerifyBlock(block *model.Block, prev *model.Block, difficulty int) error {
	matched, digest, err := MatchDifficulty(block, difficulty)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrChainIntegrity, err)
	}
	if digest != block.Hash {
		return fmt.Errorf("%w: block %d hash mismatch", model.ErrChainIntegrity, block.Index)
	}
	if !matched {
		return fmt.Errorf("%w: block %d does not satisfy difficulty %d", model.ErrChainIntegrity, block.Index, difficulty)
	}
	if block.PrevHash != prev.Hash {
		return fmt.Errorf("%w: block %d previous hash link broken", model.ErrChainIntegrity, block.Index)
	}
	if block.Index != prev.Index+1 {
		return fmt.Errorf("%w: block index %d does not follow %d", model.ErrChainIntegrity, block.Index, prev.Index)
	}
	return nil
}

// CreateNewBlock assembles a candidate on top of prev, executes the given
// transactions, mints the coinbase and mines until ctx is cancelled or a
// nonce is found. The input ledger must be a deep copy because it is changed
// permanently.
func CreateNewBlock(ctx context.Context, txs []*model.Transaction, prev *model.Block, reward int64, minerAddress string, l *model.Ledger, difficulty int) (*model.Block, error) {
	block := &model.Block{
		Index:     prev.Index + 1,
		PrevHash:  prev.Hash,
		Timestamp: time.Now().Unix(),
		Txs:       txs,
	}
	if reward > 0 {
		coinbase, err := CreateCoinbaseTx(reward, minerAddress, block.Index)
		if err != nil {
			return nil, err
		}
		block.Coinbase = coinbase
	}

	if err := ApplyBlockTransactions(block.Txs, block.Coinbase, l); err != nil {
		return nil, err
	}
	if err := MineBlock(ctx, block, difficulty); err != nil {
		return nil, err
	}
	return block, nil
}

// NewBlockchain creates a chain holding only the genesis block. Genesis is a
// fixed sentinel: index 0, previous hash "0", no transactions and no proof
// of work requirement, but its hash is still an honest digest of its
// contents.
func NewBlockchain() (*model.Blockchain, error) {
	genesis := &model.Block{
		Index:    0,
		PrevHash: model.GenesisPrevHash,
	}
	hash, err := HashBlock(genesis)
	if err != nil {
		return nil, err
	}
	genesis.Hash = hash
	return &model.Blockchain{
		Blocks: []*model.Block{genesis},
		Ledger: model.NewLedger(),
	}, nil
}

// VerifyGenesis checks the fixed shape of block 0.
func VerifyGenesis(genesis *model.Block) error {
	if genesis.Index != 0 || genesis.PrevHash != model.GenesisPrevHash ||
		len(genesis.Txs) != 0 || genesis.Coinbase != nil {
		return fmt.Errorf("%w: malformed genesis block", model.ErrChainIntegrity)
	}
	hash, err := HashBlock(genesis)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrChainIntegrity, err)
	}
	if hash != genesis.Hash {
		return fmt.Errorf("%w: genesis hash mismatch", model.ErrChainIntegrity)
	}
	return nil
}
