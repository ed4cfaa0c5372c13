package utils

import (
	"fmt"

	"coinsim/model"
)

// GetInputBytes converts an input to its canonical byte encoding.
func GetInputBytes(input *model.Input) ([]byte, error) {
	var data []byte
	prevHash, err := HexToBytes(input.PrevTxHash)
	if err != nil {
		return nil, err
	}
	data = append(data, prevHash...)
	data = append(data, Int64ToBytes(input.Index)...)
	return data, nil
}

// GetOutputBytes converts an output to its canonical byte encoding. The
// address is length-prefixed; it is a free-form string at the input boundary
// and must not be allowed to bleed into the next field.
func GetOutputBytes(output *model.Output) []byte {
	var data []byte
	data = append(data, Int64ToBytes(output.Value)...)
	data = append(data, Int64ToBytes(int64(len(output.Address)))...)
	data = append(data, []byte(output.Address)...)
	return data
}

// GetTransactionBytes concatenates the canonical encodings of all inputs,
// outputs, the sender public key and the coinbase height. Each list carries
// its element count and every variable-length field its length, so no two
// distinct transactions share an encoding. The signature is appended only
// when withSig is set: the transaction hash and the signed payload both
// exclude it, so signing never changes the id.
func GetTransactionBytes(t *model.Transaction, withSig bool) ([]byte, error) {
	var data []byte
	data = append(data, Int64ToBytes(int64(len(t.Inputs)))...)
	for _, input := range t.Inputs {
		inputData, err := GetInputBytes(input)
		if err != nil {
			return nil, err
		}
		data = append(data, inputData...)
	}
	data = append(data, Int64ToBytes(int64(len(t.Outputs)))...)
	for _, output := range t.Outputs {
		data = append(data, GetOutputBytes(output)...)
	}
	data = append(data, Int64ToBytes(int64(len(t.PublicKey)))...)
	data = append(data, t.PublicKey...)
	data = append(data, Int64ToBytes(t.Height)...)
	if withSig {
		data = append(data, Int64ToBytes(int64(len(t.Signature)))...)
		data = append(data, t.Signature...)
	}
	return data, nil
}

// HashTransaction computes the hex digest identifying the transaction.
func HashTransaction(t *model.Transaction) (string, error) {
	data, err := GetTransactionBytes(t, false)
	if err != nil {
		return "", err
	}
	return BytesToHex(Hash(data)), nil
}

// CreateCoinbaseTx mints the block reward to the miner's address. The block
// height is folded into the hash so every coinbase is unique.
func CreateCoinbaseTx(reward int64, minerAddress string, height int64) (*model.Transaction, error) {
	cb := &model.Transaction{
		Outputs: []*model.Output{
			{Value: reward, Address: minerAddress},
		},
		Height: height,
	}
	hash, err := HashTransaction(cb)
	if err != nil {
		return nil, err
	}
	cb.Hash = hash
	return cb, nil
}

// IsValidCoinbase checks the distinguished reward transaction: no inputs, no
// signature, a single output worth exactly the expected reward, and an
// honest hash.
func IsValidCoinbase(cb *model.Transaction, expectedReward int64) error {
	if cb == nil {
		return fmt.Errorf("%w: missing coinbase", model.ErrChainIntegrity)
	}
	if !cb.IsCoinbase() || len(cb.Signature) != 0 || len(cb.PublicKey) != 0 {
		return fmt.Errorf("%w: coinbase must have no inputs and no signature", model.ErrChainIntegrity)
	}
	if len(cb.Outputs) != 1 || cb.Outputs[0].Value != expectedReward {
		return fmt.Errorf("%w: coinbase must mint exactly %d", model.ErrChainIntegrity, expectedReward)
	}
	hash, err := HashTransaction(cb)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrChainIntegrity, err)
	}
	if hash != cb.Hash {
		return fmt.Errorf("%w: coinbase hash mismatch", model.ErrChainIntegrity)
	}
	return nil
}

// ValidateTransaction checks a spend against the ledger without mutating it:
//  1. Every input resolves to a live UTXO, and no UTXO is referenced twice
//     within the transaction itself.
//  2. Every resolved output is owned by the address derived from the
//     transaction's public key.
//  3. The stored hash and the signature match the transaction contents.
//  4. Outputs are non-negative and covered by the inputs.
//
// Mutation happens only at block confirmation, never here.
func ValidateTransaction(t *model.Transaction, ledger *model.Ledger) error {
	var totalInput, totalOutput int64

	owner := PublicKeyToAddress(t.PublicKey)
	seen := make(map[model.UTXO]bool)
	for _, input := range t.Inputs {
		utxo := model.UTXO{PrevTxHash: input.PrevTxHash, Index: input.Index}
		output, ok := ledger.Entries[utxo]
		if !ok {
			return fmt.Errorf("%w: input %s:%d", model.ErrUnknownUTXO, input.PrevTxHash, input.Index)
		}
		if seen[utxo] {
			return fmt.Errorf("%w: input %s:%d referenced twice", model.ErrUnknownUTXO, input.PrevTxHash, input.Index)
		}
		seen[utxo] = true
		if output.Address != owner {
			return fmt.Errorf("%w: input %s:%d not owned by signer", model.ErrSignatureInvalid, input.PrevTxHash, input.Index)
		}
		totalInput += output.Value
	}

	hash, err := HashTransaction(t)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrSignatureInvalid, err)
	}
	if hash != t.Hash {
		return fmt.Errorf("%w: transaction hash mismatch", model.ErrSignatureInvalid)
	}
	payload, err := GetTransactionBytes(t, false)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrSignatureInvalid, err)
	}
	if !Verify(payload, t.PublicKey, t.Signature) {
		return fmt.Errorf("%w: signature does not verify", model.ErrSignatureInvalid)
	}

	for _, output := range t.Outputs {
		if output.Value < 0 {
			return fmt.Errorf("%w: negative output", model.ErrInsufficientFunds)
		}
		totalOutput += output.Value
	}
	if totalInput < totalOutput {
		return fmt.Errorf("%w: inputs %d < outputs %d", model.ErrInsufficientFunds, totalInput, totalOutput)
	}
	return nil
}
