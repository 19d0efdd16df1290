package chain

import "context"

// Common is implemented by every contract the watcher polls: the home and
// every replica. It is intentionally a flat capability interface rather
// than a class hierarchy — Home and Replica differ only in the role they
// play in the protocol, not in the operations the watcher needs from them.
type Common interface {
	// Name returns the contract's configured name, used as the key into
	// the per-contract task registries and the persistent store.
	Name() string

	// LocalDomain returns the home domain this contract enforces
	// updates for.
	LocalDomain() uint32

	// Updater returns the address currently authorized to sign updates.
	Updater(ctx context.Context) (Address, error)

	// CommittedRoot returns the root this contract currently considers
	// canonical.
	CommittedRoot(ctx context.Context) (Root, error)

	// SignedUpdateByOldRoot returns the signed update whose previous
	// root equals old, if the contract knows of one yet.
	SignedUpdateByOldRoot(ctx context.Context, old Root) (*SignedUpdate, error)

	// SignedUpdateByNewRoot returns the signed update whose new root
	// equals new, if the contract knows of one.
	SignedUpdateByNewRoot(ctx context.Context, new Root) (*SignedUpdate, error)

	// Update submits a signed update to the contract. Best-effort:
	// callers may ignore a revert.
	Update(ctx context.Context, update *SignedUpdate) (TxOutcome, error)

	// DoubleUpdate submits a fraud proof to the contract.
	DoubleUpdate(ctx context.Context, double *DoubleUpdate) (TxOutcome, error)
}

// Home is the origin contract on which the updater commits a chain of
// roots. It carries no operations beyond Common; the distinct type exists
// so adapters and the supervisor can't accidentally pass a Replica where a
// Home is required.
type Home interface {
	Common
	isHome()
}

// Replica is a downstream contract that replays a home's roots.
type Replica interface {
	Common
	isReplica()
}

// ConnectionManager governs which replicas are enrolled against a home.
type ConnectionManager interface {
	// Name identifies the connection manager for logging.
	Name() string

	// UnenrollReplica quarantines the replica the signed failure
	// notification implicates.
	UnenrollReplica(ctx context.Context, failure *SignedFailureNotification) (TxOutcome, error)
}
