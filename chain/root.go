// Package chain defines the wire-level data model shared by every contract
// the watcher talks to: roots, updates, signed updates, and the double
// update witness produced when an updater signs two conflicting updates.
package chain

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Root is a 32-byte commitment value. The all-zero Root denotes the
// genesis/terminal of a contract's history chain.
type Root = chainhash.Hash

// ZeroRoot is the genesis/terminal root every history walk eventually
// reaches.
var ZeroRoot Root

// Address identifies the updater or the watcher's own signing key.
type Address [32]byte

// Update is an unsigned claim that a home's committed root has advanced
// from PreviousRoot to NewRoot. Two updates conflict iff they share
// HomeDomain and PreviousRoot but disagree on NewRoot.
type Update struct {
	HomeDomain   uint32
	PreviousRoot Root
	NewRoot      Root
}

// Conflicts reports whether u and other are a double update: the same
// home domain and previous root, but a different new root.
func (u Update) Conflicts(other Update) bool {
	return u.HomeDomain == other.HomeDomain &&
		u.PreviousRoot == other.PreviousRoot &&
		u.NewRoot != other.NewRoot
}

// SignedUpdate pairs an Update with the updater's signature over its wire
// encoding. Equality is over both fields.
type SignedUpdate struct {
	Update
	Signature []byte
}

// Equal reports whether two signed updates carry the same update and
// signature bytes.
func (s SignedUpdate) Equal(other SignedUpdate) bool {
	return s.Update == other.Update && bytes.Equal(s.Signature, other.Signature)
}

// DoubleUpdate is the fraud witness: two conflicting signed updates.
// Existing is the update that was already persisted in the store;
// Newcomer is the one that triggered detection. The pair is treated
// symmetrically by every contract call that consumes it, but the
// existing/newcomer ordering is preserved for logging (see SPEC_FULL.md
// §6, "Conflict direction in DoubleUpdate").
type DoubleUpdate struct {
	Existing SignedUpdate
	Newcomer SignedUpdate
}

// FailureNotification is signed by the watcher's own key (never the
// updater's) and accepted by connection managers as authority to
// unenroll a replica.
type FailureNotification struct {
	HomeDomain     uint32
	UpdaterAddress Address
}

// SignedFailureNotification pairs a FailureNotification with the
// watcher's signature over its wire encoding.
type SignedFailureNotification struct {
	FailureNotification
	Signature []byte
}

// Equal reports whether two signed failure notifications carry the same
// notification and signature bytes.
func (s SignedFailureNotification) Equal(other SignedFailureNotification) bool {
	return s.FailureNotification == other.FailureNotification &&
		bytes.Equal(s.Signature, other.Signature)
}

// TxOutcome reports the result of a submitted on-chain call.
type TxOutcome struct {
	TxID     Root
	Executed bool
}
