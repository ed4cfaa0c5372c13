package model

type Input struct {
	// Hash of the transaction that created the output being spent.
	PrevTxHash string
	// The index of the output in that transaction. Together with PrevTxHash,
	// it identifies the unique output.
	Index int64
}

type Output struct {
	// How much value to transfer. Always non-negative.
	Value int64
	// Address of the receiver: hex of HASH160 over the compressed public key.
	Address string
}

type Transaction struct {
	// Hash of this transaction in hex. We use this to uniquely identify the
	// transaction. The signature is excluded from the digest so that signing
	// does not change the id.
	Hash string
	// All inputs of this transaction. Empty for a coinbase.
	Inputs []*Input
	// All outputs of this transaction.
	Outputs []*Output
	// Compressed public key of the sender. Every input must be owned by the
	// address derived from it. Empty for a coinbase.
	PublicKey []byte
	// DER-encoded signature over the canonical encoding of the transaction.
	Signature []byte
	// Block height, set on coinbase transactions only, so two coinbases with
	// identical outputs still hash differently.
	Height int64
}

// IsCoinbase reports whether the transaction mints new value.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 0
}

// TransactionPool holds all pending transactions that have been validated
// but not yet included in a block.
type TransactionPool struct {
	// Key is the hex of the transaction's hash.
	Pool map[string]*Transaction
	// Claimed maps every UTXO referenced by a pending transaction to the
	// hash of the transaction claiming it. Two pending transactions are
	// never allowed to claim the same output.
	Claimed map[UTXO]string
}

// NewTransactionPool creates a new transaction pool with no transaction at all.
func NewTransactionPool() *TransactionPool {
	return &TransactionPool{
		Pool:    make(map[string]*Transaction),
		Claimed: make(map[UTXO]string),
	}
}

// Conflicts reports whether any input of tx collides with an output already
// claimed by a transaction in the pool.
func (p *TransactionPool) Conflicts(tx *Transaction) bool {
	for _, in := range tx.Inputs {
		if _, taken := p.Claimed[UTXO{PrevTxHash: in.PrevTxHash, Index: in.Index}]; taken {
			return true
		}
	}
	return false
}

// Add inserts tx and records its input claims. The caller must have checked
// Conflicts first.
func (p *TransactionPool) Add(tx *Transaction) {
	p.Pool[tx.Hash] = tx
	for _, in := range tx.Inputs {
		p.Claimed[UTXO{PrevTxHash: in.PrevTxHash, Index: in.Index}] = tx.Hash
	}
}

// Remove deletes the transaction with the given hash and releases its claims.
func (p *TransactionPool) Remove(hash string) {
	tx, ok := p.Pool[hash]
	if !ok {
		return
	}
	for _, in := range tx.Inputs {
		delete(p.Claimed, UTXO{PrevTxHash: in.PrevTxHash, Index: in.Index})
	}
	delete(p.Pool, hash)
}
