package model

import "errors"

// Validation and chain errors. Callers discriminate with errors.Is; none of
// these are ever collapsed into a generic failure.
var (
	// ErrInsufficientFunds means the inputs cannot cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnknownUTXO means an input references an output that is missing,
	// already spent, or already claimed by a pending transaction.
	ErrUnknownUTXO = errors.New("unknown or spent utxo")
	// ErrSignatureInvalid means the signature does not verify against the
	// owner of the referenced outputs.
	ErrSignatureInvalid = errors.New("invalid signature")
	// ErrChainIntegrity means hash linkage, proof of work or index
	// continuity is violated somewhere in the chain.
	ErrChainIntegrity = errors.New("chain integrity violation")
	// ErrNothingToMine means mining was invoked with an empty mempool and
	// no coinbase reward to mint.
	ErrNothingToMine = errors.New("nothing to mine")
)
