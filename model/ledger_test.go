package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerCloneIsDeep(t *testing.T) {
	l := NewLedger()
	utxo := UTXO{PrevTxHash: "00ab", Index: 0}
	l.Entries[utxo] = &Output{Value: 50, Address: "addr-a"}

	c := l.Clone()
	delete(c.Entries, utxo)
	c.Entries[UTXO{PrevTxHash: "00cd", Index: 1}] = &Output{Value: 7, Address: "addr-b"}

	// The original is untouched.
	assert.Len(t, l.Entries, 1)
	assert.Equal(t, int64(50), l.Entries[utxo].Value)
}

func TestLedgerCloneNeverYieldsNilEntries(t *testing.T) {
	c := NewLedger().Clone()
	assert.NotNil(t, c.Entries)
	assert.Empty(t, c.Entries)

	// A populated clone matches the source exactly.
	l := NewLedger()
	l.Entries[UTXO{PrevTxHash: "00ab", Index: 0}] = &Output{Value: 50, Address: "addr-a"}
	assert.True(t, l.Clone().Equal(l))
}

func TestLedgerBalance(t *testing.T) {
	l := NewLedger()
	l.Entries[UTXO{PrevTxHash: "00ab", Index: 0}] = &Output{Value: 50, Address: "addr-a"}
	l.Entries[UTXO{PrevTxHash: "00ab", Index: 1}] = &Output{Value: 20, Address: "addr-a"}
	l.Entries[UTXO{PrevTxHash: "00cd", Index: 0}] = &Output{Value: 9, Address: "addr-b"}

	assert.Equal(t, int64(70), l.Balance("addr-a"))
	assert.Equal(t, int64(9), l.Balance("addr-b"))
	assert.Equal(t, int64(0), l.Balance("nobody"))
}

func TestOwnedUTXOsSorted(t *testing.T) {
	l := NewLedger()
	l.Entries[UTXO{PrevTxHash: "00cd", Index: 0}] = &Output{Value: 1, Address: "addr-a"}
	l.Entries[UTXO{PrevTxHash: "00ab", Index: 1}] = &Output{Value: 2, Address: "addr-a"}
	l.Entries[UTXO{PrevTxHash: "00ab", Index: 0}] = &Output{Value: 3, Address: "addr-a"}
	l.Entries[UTXO{PrevTxHash: "00ef", Index: 0}] = &Output{Value: 4, Address: "addr-b"}

	owned := l.OwnedUTXOs("addr-a")
	assert.Equal(t, []UTXO{
		{PrevTxHash: "00ab", Index: 0},
		{PrevTxHash: "00ab", Index: 1},
		{PrevTxHash: "00cd", Index: 0},
	}, owned)
}

func TestLedgerEqual(t *testing.T) {
	l1, l2 := NewLedger(), NewLedger()
	utxo := UTXO{PrevTxHash: "00ab", Index: 0}
	l1.Entries[utxo] = &Output{Value: 50, Address: "addr-a"}
	l2.Entries[utxo] = &Output{Value: 50, Address: "addr-a"}
	assert.True(t, l1.Equal(l2))

	l2.Entries[utxo] = &Output{Value: 49, Address: "addr-a"}
	assert.False(t, l1.Equal(l2))

	l2.Entries[utxo] = &Output{Value: 50, Address: "addr-a"}
	l2.Entries[UTXO{PrevTxHash: "00cd", Index: 0}] = &Output{Value: 1, Address: "addr-b"}
	assert.False(t, l1.Equal(l2))
}

func TestTransactionPoolClaims(t *testing.T) {
	p := NewTransactionPool()
	utxo := UTXO{PrevTxHash: "00ab", Index: 0}

	tx1 := &Transaction{Hash: "1111", Inputs: []*Input{{PrevTxHash: utxo.PrevTxHash, Index: utxo.Index}}}
	tx2 := &Transaction{Hash: "2222", Inputs: []*Input{{PrevTxHash: utxo.PrevTxHash, Index: utxo.Index}}}

	assert.False(t, p.Conflicts(tx1))
	p.Add(tx1)
	// tx2 races for the same output and must be flagged.
	assert.True(t, p.Conflicts(tx2))

	p.Remove(tx1.Hash)
	assert.False(t, p.Conflicts(tx2))
	assert.Empty(t, p.Pool)
	assert.Empty(t, p.Claimed)
}
