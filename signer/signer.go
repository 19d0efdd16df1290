// Package signer wraps the secp256k1 key material the watcher uses to sign
// FailureNotifications. It is deliberately narrow: the watcher never signs
// updates (only the updater does), so the only capability exposed here is
// Sign.
package signer

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signer produces signatures over arbitrary messages. Implemented
// by KeySigner in production and by a fixed-output stub in tests.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() [33]byte
}

// KeySigner signs with a single secp256k1 private key held in memory for
// the lifetime of the process.
type KeySigner struct {
	priv *secp256k1.PrivateKey
}

// New constructs a KeySigner from raw private key bytes.
func New(privKeyBytes []byte) *KeySigner {
	priv := secp256k1.PrivKeyFromBytes(privKeyBytes)
	return &KeySigner{priv: priv}
}

// Sign returns a DER-encoded ECDSA signature over the SHA-256 digest of
// msg.
func (k *KeySigner) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig := ecdsa.Sign(k.priv, digest[:])
	return sig.Serialize(), nil
}

// PublicKey returns the compressed public key corresponding to the
// signer's private key.
func (k *KeySigner) PublicKey() [33]byte {
	var out [33]byte
	copy(out[:], k.priv.PubKey().SerializeCompressed())
	return out
}
