package model

// GenesisPrevHash is the previous-hash sentinel carried by the genesis block.
const GenesisPrevHash = "0"

type Block struct {
	// Position of this block in the chain, starting from 0 at genesis.
	Index int64
	// Hash of this entire block in the hex string format.
	Hash string
	// Hash of the previous block in the hex format, GenesisPrevHash at index 0.
	PrevHash string
	// Unix seconds at assembly time.
	Timestamp int64
	// Confirmed transactions for this block, executed in array order.
	Txs []*Transaction
	// Coinbase transaction minting the miner's reward. Nil only on genesis.
	Coinbase *Transaction
	// Nonce is the miner's challenge for computing the block.
	Nonce int64
}

// Blockchain is the linear chain of blocks plus the ledger derived from it.
// The ledger is maintained incrementally on commit and must always equal a
// full replay of the chain.
type Blockchain struct {
	Blocks []*Block
	Ledger *Ledger
}

// Tail returns the highest block. The chain always holds at least genesis.
func (bc *Blockchain) Tail() *Block {
	return bc.Blocks[len(bc.Blocks)-1]
}

// Height returns the index of the tail block.
func (bc *Blockchain) Height() int64 {
	return bc.Tail().Index
}
