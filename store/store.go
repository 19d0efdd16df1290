// Package store implements the PersistentUpdateStore described by the
// watcher spec: a mapping keyed by (home_name, previous_root) -> SignedUpdate,
// content-addressed by previous root, with a secondary index for lookup by
// new root. It is backed by lnd/kvdb the same way channeldb backs itself
// by a raw bolt.DB in the teacher repo, and breacharbiter.go's
// retributionStore scopes itself to a single bolt bucket.
package store

import (
	"fmt"

	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/log"
)

var storeLog = log.NewSubsystem(log.TagStore)

var (
	// homesBucket is the top-level bucket; each home gets a nested
	// bucket keyed by its name.
	homesBucket = []byte("homes")

	// byPrevRootKey / byNewRootKey name the two nested buckets inside
	// each home's bucket.
	byPrevRootKey = []byte("by-prev-root")
	byNewRootKey  = []byte("by-new-root")
)

// Store wraps a kvdb backend and exposes per-home scoped views. It holds
// no in-memory state of its own; every operation is a bolt transaction.
type Store struct {
	db kvdb.Backend
}

// Open creates or opens a kvdb-backed store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := kvdb.Create(kvdb.BoltBackendName, dbPath, true, kvdb.DefaultDBTimeout)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	storeLog.Infof("opened store at %s", dbPath)
	return &Store{db: db}, nil
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	storeLog.Info("closing store")
	return s.db.Close()
}

// Scope returns a ScopedStore bound to homeName. Every key the returned
// handle touches lives under homeName's own nested bucket, so the
// single-writer-per-home invariant the UpdateHandler depends on is
// enforced by construction: nothing outside this package can reach
// another home's keyspace through a ScopedStore.
func (s *Store) Scope(homeName string) *ScopedStore {
	return &ScopedStore{db: s.db, homeName: homeName}
}

// ScopedStore is the handle passed to an UpdateHandler. All reads and
// writes are confined to one home's keyspace.
type ScopedStore struct {
	db       kvdb.Backend
	homeName string
}

func (s *ScopedStore) homeBucket(tx kvdb.RwTx) (kvdb.RwBucket, error) {
	top, err := tx.CreateTopLevelBucket(homesBucket)
	if err != nil {
		return nil, err
	}
	return top.CreateBucketIfNotExists([]byte(s.homeName))
}

func (s *ScopedStore) homeBucketRO(tx kvdb.RTx) kvdb.RBucket {
	top := tx.ReadBucket(homesBucket)
	if top == nil {
		return nil
	}
	return top.NestedReadBucket([]byte(s.homeName))
}

// UpdateByPreviousRoot returns the update persisted under previousRoot, if
// any.
func (s *ScopedStore) UpdateByPreviousRoot(previousRoot chain.Root) (*chain.SignedUpdate, error) {
	var found *chain.SignedUpdate

	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		home := s.homeBucketRO(tx)
		if home == nil {
			return nil
		}
		byPrev := home.NestedReadBucket(byPrevRootKey)
		if byPrev == nil {
			return nil
		}
		raw := byPrev.Get(previousRoot[:])
		if raw == nil {
			return nil
		}
		su, err := decodeSignedUpdate(raw)
		if err != nil {
			return err
		}
		found = su
		return nil
	}, func() { found = nil })
	if err != nil {
		return nil, err
	}

	return found, nil
}

// UpdateByNewRoot returns the update persisted under newRoot, if any. Used
// by adapters and the indexer for backward traversal, not by the
// UpdateHandler itself (spec.md §6).
func (s *ScopedStore) UpdateByNewRoot(newRoot chain.Root) (*chain.SignedUpdate, error) {
	var found *chain.SignedUpdate

	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		home := s.homeBucketRO(tx)
		if home == nil {
			return nil
		}
		byNew := home.NestedReadBucket(byNewRootKey)
		if byNew == nil {
			return nil
		}
		raw := byNew.Get(newRoot[:])
		if raw == nil {
			return nil
		}
		su, err := decodeSignedUpdate(raw)
		if err != nil {
			return err
		}
		found = su
		return nil
	}, func() { found = nil })
	if err != nil {
		return nil, err
	}

	return found, nil
}

// ForEach walks every update persisted under this home's previous-root
// index, in bolt's key order (ascending by previous root), calling fn
// once per update. Grounded on breacharbiter.go's retributionStore.ForAll
// read-only bucket-walk convention. Stopping early: returning an error
// from fn aborts the walk and ForEach returns that error.
func (s *ScopedStore) ForEach(fn func(update *chain.SignedUpdate) error) error {
	return kvdb.View(s.db, func(tx kvdb.RTx) error {
		home := s.homeBucketRO(tx)
		if home == nil {
			return nil
		}
		byPrev := home.NestedReadBucket(byPrevRootKey)
		if byPrev == nil {
			return nil
		}
		return byPrev.ForEach(func(k, v []byte) error {
			su, err := decodeSignedUpdate(v)
			if err != nil {
				return err
			}
			return fn(su)
		})
	}, func() {})
}

// StoreLatestUpdate writes update under its previous root, and indexes it
// by new root. Persistence is monotone: if a value is already present
// under update.PreviousRoot, it is left untouched and the existing value
// is returned instead so the caller (the UpdateHandler) can decide whether
// this is a duplicate or a double update.
func (s *ScopedStore) StoreLatestUpdate(update *chain.SignedUpdate) (existing *chain.SignedUpdate, err error) {
	err = kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		home, err := s.homeBucket(tx)
		if err != nil {
			return err
		}
		byPrev, err := home.CreateBucketIfNotExists(byPrevRootKey)
		if err != nil {
			return err
		}
		byNew, err := home.CreateBucketIfNotExists(byNewRootKey)
		if err != nil {
			return err
		}

		if raw := byPrev.Get(update.PreviousRoot[:]); raw != nil {
			existing, err = decodeSignedUpdate(raw)
			return err
		}

		encoded, err := encodeSignedUpdate(update)
		if err != nil {
			return err
		}
		if err := byPrev.Put(update.PreviousRoot[:], encoded); err != nil {
			return err
		}
		return byNew.Put(update.NewRoot[:], encoded)
	}, func() { existing = nil })

	return existing, err
}
