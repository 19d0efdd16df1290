// Package mock provides scriptable Home, Replica, and ConnectionManager
// fixtures for tests. It follows the teacher's mockServer convention
// (htlcswitch/mock.go): a mutex-guarded struct that implements a
// production interface directly, records every call it receives, and
// lets a test queue canned responses ahead of time rather than stubbing
// methods one at a time.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/crosslink-network/watcher/chain"
)

// Contract is the shared scaffolding behind MockHome and MockReplica. It
// holds a queue of updates keyed by both previous and new root, so a test
// can set up a chain of updates once and have both ContractWatcher and
// HistorySync walk it correctly.
type Contract struct {
	mu sync.Mutex

	name        string
	localDomain uint32

	updater       chain.Address
	updaterErr    error
	committedRoot chain.Root
	rootErr       error

	byOldRoot map[chain.Root]*chain.SignedUpdate
	byNewRoot map[chain.Root]*chain.SignedUpdate
	queued    []chain.SignedUpdate

	updateCalls       []*chain.SignedUpdate
	doubleUpdateCalls []*chain.DoubleUpdate

	updateErr       error
	doubleUpdateErr error
	lookupErr       error
}

// NewContract constructs a Contract starting at committedRoot with no
// queued updates.
func NewContract(name string, localDomain uint32, committedRoot chain.Root) *Contract {
	return &Contract{
		name:          name,
		localDomain:   localDomain,
		committedRoot: committedRoot,
		byOldRoot:     make(map[chain.Root]*chain.SignedUpdate),
		byNewRoot:     make(map[chain.Root]*chain.SignedUpdate),
	}
}

// QueueUpdate makes update visible to both SignedUpdateByOldRoot and
// SignedUpdateByNewRoot lookups.
func (c *Contract) QueueUpdate(update chain.SignedUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := update
	c.byOldRoot[update.PreviousRoot] = &u
	c.byNewRoot[update.NewRoot] = &u
	c.queued = append(c.queued, update)
}

// LatestBlock and EventsInRange let a Contract double as an
// indexer.BlockSource in tests and in the daemon, which runs on these
// fixtures: each
// queued update occupies the next block height, in queue order.
func (c *Contract) LatestBlock(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.queued)), nil
}

func (c *Contract) EventsInRange(ctx context.Context, from, to uint64) ([]chain.SignedUpdate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if from < 1 {
		from = 1
	}
	if to > uint64(len(c.queued)) {
		to = uint64(len(c.queued))
	}
	if from > to {
		return nil, nil
	}

	out := make([]chain.SignedUpdate, to-from+1)
	copy(out, c.queued[from-1:to])
	return out, nil
}

// SetUpdater fixes the address returned by Updater, or the error it
// fails with if err is non-nil.
func (c *Contract) SetUpdater(addr chain.Address, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updater = addr
	c.updaterErr = err
}

// SetCommittedRootErr makes CommittedRoot fail with err.
func (c *Contract) SetCommittedRootErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rootErr = err
}

// SetUpdateErr makes Update fail with err.
func (c *Contract) SetUpdateErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateErr = err
}

// SetDoubleUpdateErr makes DoubleUpdate fail with err.
func (c *Contract) SetDoubleUpdateErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doubleUpdateErr = err
}

// SetLookupErr makes both SignedUpdateByOldRoot and SignedUpdateByNewRoot
// fail with err, simulating an adapter outage that kills every poller
// reading this contract.
func (c *Contract) SetLookupErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookupErr = err
}

// UpdateCalls returns every SignedUpdate submitted via Update, in call
// order.
func (c *Contract) UpdateCalls() []*chain.SignedUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chain.SignedUpdate, len(c.updateCalls))
	copy(out, c.updateCalls)
	return out
}

// DoubleUpdateCalls returns every DoubleUpdate submitted via
// DoubleUpdate, in call order.
func (c *Contract) DoubleUpdateCalls() []*chain.DoubleUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chain.DoubleUpdate, len(c.doubleUpdateCalls))
	copy(out, c.doubleUpdateCalls)
	return out
}

func (c *Contract) Name() string { return c.name }

func (c *Contract) LocalDomain() uint32 { return c.localDomain }

func (c *Contract) Updater(ctx context.Context) (chain.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updater, c.updaterErr
}

func (c *Contract) CommittedRoot(ctx context.Context) (chain.Root, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committedRoot, c.rootErr
}

func (c *Contract) SignedUpdateByOldRoot(ctx context.Context, old chain.Root) (*chain.SignedUpdate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	return c.byOldRoot[old], nil
}

func (c *Contract) SignedUpdateByNewRoot(ctx context.Context, new chain.Root) (*chain.SignedUpdate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	return c.byNewRoot[new], nil
}

func (c *Contract) Update(ctx context.Context, update *chain.SignedUpdate) (chain.TxOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalls = append(c.updateCalls, update)
	if c.updateErr != nil {
		return chain.TxOutcome{}, c.updateErr
	}
	return chain.TxOutcome{TxID: update.NewRoot, Executed: true}, nil
}

func (c *Contract) DoubleUpdate(ctx context.Context, double *chain.DoubleUpdate) (chain.TxOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doubleUpdateCalls = append(c.doubleUpdateCalls, double)
	if c.doubleUpdateErr != nil {
		return chain.TxOutcome{}, c.doubleUpdateErr
	}
	return chain.TxOutcome{TxID: double.Newcomer.NewRoot, Executed: true}, nil
}

// Home wraps a Contract as a chain.Home.
type Home struct {
	*Contract
}

func NewHome(name string, localDomain uint32, committedRoot chain.Root) *Home {
	return &Home{Contract: NewContract(name, localDomain, committedRoot)}
}

func (*Home) isHome() {}

var _ chain.Home = (*Home)(nil)

// Replica wraps a Contract as a chain.Replica.
type Replica struct {
	*Contract
}

func NewReplica(name string, localDomain uint32, committedRoot chain.Root) *Replica {
	return &Replica{Contract: NewContract(name, localDomain, committedRoot)}
}

func (*Replica) isReplica() {}

var _ chain.Replica = (*Replica)(nil)

// ConnectionManager is a scriptable chain.ConnectionManager.
type ConnectionManager struct {
	mu sync.Mutex

	name string
	err  error

	calls []*chain.SignedFailureNotification
}

func NewConnectionManager(name string) *ConnectionManager {
	return &ConnectionManager{name: name}
}

// SetUnenrollErr makes UnenrollReplica fail with err.
func (c *ConnectionManager) SetUnenrollErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns every SignedFailureNotification submitted via
// UnenrollReplica, in call order.
func (c *ConnectionManager) Calls() []*chain.SignedFailureNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chain.SignedFailureNotification, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *ConnectionManager) Name() string { return c.name }

func (c *ConnectionManager) UnenrollReplica(ctx context.Context, failure *chain.SignedFailureNotification) (chain.TxOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, failure)
	if c.err != nil {
		return chain.TxOutcome{}, c.err
	}
	return chain.TxOutcome{TxID: chain.DomainHash(failure.HomeDomain), Executed: true}, nil
}

var _ chain.ConnectionManager = (*ConnectionManager)(nil)

// Signer is a fixed-output signer.Signer stub: Sign always returns a
// deterministic, non-empty signature derived from the message length so
// tests can assert Sign was called without depending on real key
// material.
type Signer struct {
	Fail error
}

func (s *Signer) Sign(msg []byte) ([]byte, error) {
	if s.Fail != nil {
		return nil, s.Fail
	}
	return []byte(fmt.Sprintf("sig:%d", len(msg))), nil
}

func (s *Signer) PublicKey() [33]byte {
	return [33]byte{}
}
