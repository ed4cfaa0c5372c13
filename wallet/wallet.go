package wallet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"coinsim/model"
	"coinsim/utils"
)

// Wallet owns a secp256k1 keypair. The private key never leaves the package
// except through Save, and is never logged.
type Wallet struct {
	keys    *btcec.PrivateKey
	address string
}

// New generates a wallet with a fresh keypair.
func New() (*Wallet, error) {
	keys, err := utils.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return fromKeys(keys), nil
}

// Load reads a wallet back from a key file written by Save.
func Load(path string) (*Wallet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := utils.HexToBytes(strings.TrimSpace(string(content)))
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("malformed key file %s", path)
	}
	keys, _ := btcec.PrivKeyFromBytes(raw)
	return fromKeys(keys), nil
}

// Save writes the private key to path in hex. The key is stored in
// plaintext: encryption at rest is a known gap, kept visible rather than
// papered over.
func (w *Wallet) Save(path string) error {
	return os.WriteFile(path, []byte(utils.BytesToHex(w.keys.Serialize())), 0600)
}

func fromKeys(keys *btcec.PrivateKey) *Wallet {
	return &Wallet{
		keys:    keys,
		address: utils.PublicKeyToAddress(keys.PubKey().SerializeCompressed()),
	}
}

// Address returns the owner identifier derived from the public key.
func (w *Wallet) Address() string {
	return w.address
}

// PublicKey returns the compressed public key bytes.
func (w *Wallet) PublicKey() []byte {
	return w.keys.PubKey().SerializeCompressed()
}

// Sign signs an arbitrary byte payload with the private key. It fails only
// on malformed internal key state.
func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	if w.keys == nil {
		return nil, errors.New("wallet has no key material")
	}
	return utils.Sign(msg, w.keys)
}

// BuildTransaction selects the sender's UTXOs first-fit in sorted
// (PrevTxHash, Index) order until they cover amount, pays amount to the
// recipient and, whenever the selection overshoots, returns the remainder to
// the sender as a mandatory change output so no value is ever burned. The
// ledger is read-only here; it should be a snapshot of the confirmed set.
func (w *Wallet) BuildTransaction(recipient string, amount int64, ledger *model.Ledger) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive, got %d", amount)
	}

	var inputs []*model.Input
	var selected int64
	for _, utxo := range ledger.OwnedUTXOs(w.address) {
		inputs = append(inputs, &model.Input{PrevTxHash: utxo.PrevTxHash, Index: utxo.Index})
		selected += ledger.Entries[utxo].Value
		if selected >= amount {
			break
		}
	}
	if selected < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientFunds, selected, amount)
	}

	outputs := []*model.Output{
		{Value: amount, Address: recipient},
	}
	if change := selected - amount; change > 0 {
		outputs = append(outputs, &model.Output{Value: change, Address: w.address})
	}

	tx := &model.Transaction{
		Inputs:    inputs,
		Outputs:   outputs,
		PublicKey: w.PublicKey(),
	}
	hash, err := utils.HashTransaction(tx)
	if err != nil {
		return nil, err
	}
	tx.Hash = hash

	payload, err := utils.GetTransactionBytes(tx, false)
	if err != nil {
		return nil, err
	}
	tx.Signature, err = w.Sign(payload)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
