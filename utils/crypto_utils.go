package utils

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// GenerateKeyPair generates a new secp256k1 private key.
func GenerateKeyPair() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// Hash is the content digest used for transactions and blocks: double
// SHA-256 over the canonical byte encoding.
func Hash(msg []byte) []byte {
	return chainhash.DoubleHashB(msg)
}

// PublicKeyToAddress derives the owner address from a compressed public key:
// hex of HASH160 (SHA-256 then RIPEMD-160) over the key bytes.
func PublicKeyToAddress(pub []byte) string {
	return BytesToHex(btcutil.Hash160(pub))
}

// Sign signs a message's digest with the provided private key and returns
// the DER-encoded signature.
func Sign(msg []byte, sk *btcec.PrivateKey) ([]byte, error) {
	digest := Hash(msg)
	sig := ecdsa.Sign(sk, digest)
	return sig.Serialize(), nil
}

// Verify reports whether signature matches the message under the given
// compressed public key. It never panics: any malformed key, signature or
// tampered message yields false.
func Verify(msg []byte, pub []byte, signature []byte) bool {
	pk, err := btcec.ParsePubKey(pub)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(Hash(msg), pk)
}
