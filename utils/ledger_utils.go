package utils

import (
	"fmt"

	"coinsim/model"
)

func CreateUtxoFromInput(input *model.Input) model.UTXO {
	return model.UTXO{
		PrevTxHash: input.PrevTxHash,
		Index:      input.Index,
	}
}

// ApplyTransaction validates tx against the ledger, then claims every input
// and stores every output. The ledger is changed permanently: callers that
// need to keep the original must pass a deep copy.
func ApplyTransaction(tx *model.Transaction, l *model.Ledger) error {
	if err := ValidateTransaction(tx, l); err != nil {
		return err
	}
	for _, input := range tx.Inputs {
		delete(l.Entries, CreateUtxoFromInput(input))
	}
	storeOutputs(tx, l)
	return nil
}

// ApplyBlockTransactions executes a block's transactions in array order
// against the ledger, then mints the coinbase outputs. Intra-block chaining
// is disallowed: no input may reference an output created inside the same
// block, only confirmed prior-block outputs are spendable. Intra-block
// double spends are caught because each applied transaction removes its
// inputs before the next one resolves.
func ApplyBlockTransactions(txs []*model.Transaction, coinbase *model.Transaction, l *model.Ledger) error {
	created := make(map[string]bool, len(txs))
	for _, tx := range txs {
		created[tx.Hash] = true
	}
	for _, tx := range txs {
		for _, input := range tx.Inputs {
			if created[input.PrevTxHash] {
				return fmt.Errorf("%w: input %s:%d created in the same block", model.ErrUnknownUTXO, input.PrevTxHash, input.Index)
			}
		}
		if err := ApplyTransaction(tx, l); err != nil {
			return err
		}
	}
	if coinbase != nil {
		storeOutputs(coinbase, l)
	}
	return nil
}

func storeOutputs(tx *model.Transaction, l *model.Ledger) {
	for i, output := range tx.Outputs {
		utxo := model.UTXO{
			PrevTxHash: tx.Hash,
			Index:      int64(i),
		}
		l.Entries[utxo] = &model.Output{Value: output.Value, Address: output.Address}
	}
}
