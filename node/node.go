// Package node orchestrates the chain: it owns the blockchain, the ledger
// and the transaction pool, and serializes every state change behind one
// mutex. The nonce search itself runs lock-free on snapshots.
package node

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"coinsim/config"
	"coinsim/model"
	"coinsim/utils"
)

// ErrStaleTip is returned when a sealed block loses the race against another
// mining attempt and no longer extends the tail. The block is discarded.
var ErrStaleTip = errors.New("chain advanced while mining, block discarded")

type Node struct {
	blockchain *model.Blockchain
	txPool     *model.TransactionPool
	cfg        config.AppConfig
	// A single mutex guarding blockchain, ledger and pool.
	mu sync.RWMutex
	// Unique identifier of this node, only used for logs and render files.
	id string
}

// New creates a node holding just the genesis block and an empty pool.
func New(cfg config.AppConfig) (*Node, error) {
	bc, err := utils.NewBlockchain()
	if err != nil {
		return nil, err
	}
	return &Node{
		blockchain: bc,
		txPool:     model.NewTransactionPool(),
		cfg:        cfg,
		id:         uuid.NewString(),
	}, nil
}

// NewFromChain rebuilds a node from persisted blocks and mempool
// transactions. Every block is re-verified and replayed, and every pending
// transaction re-admitted; any inconsistency fails loudly instead of
// silently starting from an empty chain.
func NewFromChain(cfg config.AppConfig, blocks []*model.Block, pending []*model.Transaction) (*Node, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks to restore", model.ErrChainIntegrity)
	}
	if err := utils.VerifyGenesis(blocks[0]); err != nil {
		return nil, err
	}
	ledger := model.NewLedger()
	for i := 1; i < len(blocks); i++ {
		if err := utils.VerifyBlock(blocks[i], blocks[i-1], cfg.Difficulty); err != nil {
			return nil, err
		}
		if cfg.CoinbaseReward > 0 {
			if err := utils.IsValidCoinbase(blocks[i].Coinbase, cfg.CoinbaseReward); err != nil {
				return nil, err
			}
		} else if blocks[i].Coinbase != nil {
			return nil, fmt.Errorf("%w: unexpected coinbase in block %d", model.ErrChainIntegrity, blocks[i].Index)
		}
		if err := utils.ApplyBlockTransactions(blocks[i].Txs, blocks[i].Coinbase, ledger); err != nil {
			return nil, err
		}
	}

	n := &Node{
		blockchain: &model.Blockchain{Blocks: blocks, Ledger: ledger},
		txPool:     model.NewTransactionPool(),
		cfg:        cfg,
		id:         uuid.NewString(),
	}
	for _, tx := range pending {
		if err := n.AddTransaction(tx); err != nil {
			return nil, fmt.Errorf("restoring mempool: %w", err)
		}
	}
	return n, nil
}

// AddTransaction validates tx against the confirmed ledger plus the pool's
// pending claims and, on success, queues it. The ledger is never mutated
// here. Failures surface the specific error kind, never a generic one.
func (n *Node) AddTransaction(tx *model.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exist := n.txPool.Pool[tx.Hash]; exist {
		return fmt.Errorf("transaction %s already pending", tx.Hash)
	}
	// Two pending transactions may race for the same output; the pool's
	// claims catch the second one even though the ledger is still unmutated.
	if n.txPool.Conflicts(tx) {
		return fmt.Errorf("%w: input already claimed by a pending transaction", model.ErrUnknownUTXO)
	}
	if err := utils.ValidateTransaction(tx, n.blockchain.Ledger); err != nil {
		return err
	}
	n.txPool.Add(tx)
	log.WithFields(log.Fields{"tx": tx.Hash, "node": n.id}).Info("transaction admitted to pool")
	return nil
}

// Mine seals the pending transactions into a new block on top of the current
// tail. Policy: the candidate takes every pending transaction (capped by
// MAX_BLOCK_TXS when set), and an empty pool is minable as long as a
// coinbase reward is minted; with a zero reward there is nothing to mine.
//
// The nonce search runs without holding the node lock, on a deep copy of the
// ledger and a snapshot of the pool, and is cancelled through ctx. Exclusive
// access is retaken only to commit: append the block, swap in the updated
// ledger and drop the included transactions, all or nothing.
func (n *Node) Mine(ctx context.Context, minerAddress string) (*model.Block, error) {
	n.mu.RLock()
	if len(n.txPool.Pool) == 0 && n.cfg.CoinbaseReward == 0 {
		n.mu.RUnlock()
		return nil, model.ErrNothingToMine
	}
	txs := n.pendingLocked()
	if n.cfg.MaxBlockTxs > 0 && len(txs) > n.cfg.MaxBlockTxs {
		txs = txs[:n.cfg.MaxBlockTxs]
	}
	ledger := n.blockchain.Ledger.Clone()
	tail := n.blockchain.Tail()
	n.mu.RUnlock()

	block, err := utils.CreateNewBlock(ctx, txs, tail, n.cfg.CoinbaseReward, minerAddress, ledger, n.cfg.Difficulty)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.blockchain.Tail().Hash != block.PrevHash {
		return nil, ErrStaleTip
	}
	n.blockchain.Blocks = append(n.blockchain.Blocks, block)
	n.blockchain.Ledger = ledger
	for _, tx := range block.Txs {
		n.txPool.Remove(tx.Hash)
	}
	log.WithFields(log.Fields{
		"height": block.Index,
		"hash":   block.Hash,
		"txs":    len(block.Txs),
		"nonce":  block.Nonce,
		"node":   n.id,
	}).Info("block mined")
	return block, nil
}

// ValidateChain walks the full chain from genesis, re-verifies every block
// against its predecessor and replays every transaction into a fresh ledger.
// The replay must be double-spend free and agree exactly with the maintained
// ledger. nil means the chain is intact.
func (n *Node) ValidateChain() error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	blocks := n.blockchain.Blocks
	if err := utils.VerifyGenesis(blocks[0]); err != nil {
		return err
	}
	replay := model.NewLedger()
	for i := 1; i < len(blocks); i++ {
		if err := utils.VerifyBlock(blocks[i], blocks[i-1], n.cfg.Difficulty); err != nil {
			return err
		}
		if n.cfg.CoinbaseReward > 0 {
			if err := utils.IsValidCoinbase(blocks[i].Coinbase, n.cfg.CoinbaseReward); err != nil {
				return err
			}
		} else if blocks[i].Coinbase != nil {
			return fmt.Errorf("%w: unexpected coinbase in block %d", model.ErrChainIntegrity, blocks[i].Index)
		}
		if err := utils.ApplyBlockTransactions(blocks[i].Txs, blocks[i].Coinbase, replay); err != nil {
			return fmt.Errorf("%w: replaying block %d: %v", model.ErrChainIntegrity, blocks[i].Index, err)
		}
	}
	if !replay.Equal(n.blockchain.Ledger) {
		return fmt.Errorf("%w: replayed ledger disagrees with maintained ledger", model.ErrChainIntegrity)
	}
	return nil
}

// GetBalance sums the live outputs owned by address. Pure read.
func (n *Node) GetBalance(address string) int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.blockchain.Ledger.Balance(address)
}

// LedgerSnapshot returns a deep copy of the confirmed ledger for wallets to
// build transactions against.
func (n *Node) LedgerSnapshot() *model.Ledger {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.blockchain.Ledger.Clone()
}

// PendingTransactions returns the pool contents in deterministic hash order.
func (n *Node) PendingTransactions() []*model.Transaction {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pendingLocked()
}

func (n *Node) pendingLocked() []*model.Transaction {
	txs := make([]*model.Transaction, 0, len(n.txPool.Pool))
	for _, tx := range n.txPool.Pool {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Hash < txs[j].Hash })
	return txs
}

// Blocks returns the last depth blocks, tail last. depth <= 0 returns the
// whole chain.
func (n *Node) Blocks(depth int) []*model.Block {
	n.mu.RLock()
	defer n.mu.RUnlock()
	blocks := n.blockchain.Blocks
	if depth > 0 && depth < len(blocks) {
		blocks = blocks[len(blocks)-depth:]
	}
	out := make([]*model.Block, len(blocks))
	copy(out, blocks)
	return out
}

// Export hands out the chain and pool for persistence.
func (n *Node) Export() ([]*model.Block, []*model.Transaction) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	blocks := make([]*model.Block, len(n.blockchain.Blocks))
	copy(blocks, n.blockchain.Blocks)
	return blocks, n.pendingLocked()
}

// ID returns the node's identifier for logs and render artifacts.
func (n *Node) ID() string {
	return n.id
}
