package model

import (
	"sort"

	"github.com/jinzhu/copier"
)

// UTXO identifies one unspent transaction output. All UTXOs are aggregated
// into a Ledger owned by the blockchain.
type UTXO struct {
	// Hex string of the transaction that created the output.
	PrevTxHash string
	// The index of the output in that transaction. Together with PrevTxHash,
	// it identifies the unique output.
	Index int64
}

// Ledger is the authoritative pool of spendable outputs. An entry exists iff
// the output was created by a confirmed transaction and no confirmed
// transaction has spent it yet.
type Ledger struct {
	Entries map[UTXO]*Output
}

func NewLedger() *Ledger {
	return &Ledger{
		Entries: make(map[UTXO]*Output),
	}
}

// Clone returns a deep copy. Mining mutates a clone so the authoritative
// ledger stays untouched until the sealed block commits. A copy failure
// leaves nothing sane to continue with, so it panics.
func (l *Ledger) Clone() *Ledger {
	c := NewLedger()
	if err := copier.CopyWithOption(&c.Entries, &l.Entries, copier.Option{DeepCopy: true}); err != nil {
		panic(err)
	}
	return c
}

// Balance sums the value of every output owned by address.
func (l *Ledger) Balance(address string) int64 {
	var total int64
	for _, out := range l.Entries {
		if out.Address == address {
			total += out.Value
		}
	}
	return total
}

// OwnedUTXOs returns the UTXOs owned by address in sorted (PrevTxHash, Index)
// order, so coin selection is deterministic regardless of map iteration.
func (l *Ledger) OwnedUTXOs(address string) []UTXO {
	var owned []UTXO
	for utxo, out := range l.Entries {
		if out.Address == address {
			owned = append(owned, utxo)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].PrevTxHash != owned[j].PrevTxHash {
			return owned[i].PrevTxHash < owned[j].PrevTxHash
		}
		return owned[i].Index < owned[j].Index
	})
	return owned
}

// Equal reports whether both ledgers hold exactly the same entries.
func (l *Ledger) Equal(other *Ledger) bool {
	if len(l.Entries) != len(other.Entries) {
		return false
	}
	for utxo, out := range l.Entries {
		o, ok := other.Entries[utxo]
		if !ok || o.Value != out.Value || o.Address != out.Address {
			return false
		}
	}
	return true
}
