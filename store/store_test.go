package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/store"
)

func mkRoot(b byte) chain.Root {
	var r chain.Root
	r[0] = b
	return r
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "watcher.db")
	db, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreLatestUpdateFirstWriteWins(t *testing.T) {
	db := openTestStore(t)
	scoped := db.Scope("home")

	first := &chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)},
		Signature: []byte{0x01},
	}
	existing, err := scoped.StoreLatestUpdate(first)
	require.NoError(t, err)
	require.Nil(t, existing)

	fromPrev, err := scoped.UpdateByPreviousRoot(mkRoot(1))
	require.NoError(t, err)
	require.True(t, first.Equal(*fromPrev))

	fromNew, err := scoped.UpdateByNewRoot(mkRoot(2))
	require.NoError(t, err)
	require.True(t, first.Equal(*fromNew))
}

func TestStoreLatestUpdateDetectsConflict(t *testing.T) {
	db := openTestStore(t)
	scoped := db.Scope("home")

	first := &chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)},
		Signature: []byte{0x01},
	}
	_, err := scoped.StoreLatestUpdate(first)
	require.NoError(t, err)

	conflicting := &chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(3)},
		Signature: []byte{0x02},
	}
	existing, err := scoped.StoreLatestUpdate(conflicting)
	require.NoError(t, err)
	require.NotNil(t, existing)
	require.True(t, first.Equal(*existing))

	// the conflicting update was never written: the previous root still
	// resolves to the first update.
	fromPrev, err := scoped.UpdateByPreviousRoot(mkRoot(1))
	require.NoError(t, err)
	require.True(t, first.Equal(*fromPrev))
}

func TestStoreLatestUpdateDuplicateIsNotAConflict(t *testing.T) {
	db := openTestStore(t)
	scoped := db.Scope("home")

	update := &chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)},
		Signature: []byte{0x01},
	}
	_, err := scoped.StoreLatestUpdate(update)
	require.NoError(t, err)

	existing, err := scoped.StoreLatestUpdate(update)
	require.NoError(t, err)
	require.NotNil(t, existing)
	require.True(t, update.Equal(*existing))
}

func TestScopesAreIsolatedPerHome(t *testing.T) {
	db := openTestStore(t)

	homeA := db.Scope("home-a")
	homeB := db.Scope("home-b")

	update := &chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)},
		Signature: []byte{0x01},
	}
	_, err := homeA.StoreLatestUpdate(update)
	require.NoError(t, err)

	fromB, err := homeB.UpdateByPreviousRoot(mkRoot(1))
	require.NoError(t, err)
	require.Nil(t, fromB)
}

func TestForEachWalksEveryUpdate(t *testing.T) {
	db := openTestStore(t)
	scoped := db.Scope("home")

	for i := byte(1); i <= 3; i++ {
		u := &chain.SignedUpdate{
			Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(i), NewRoot: mkRoot(i + 1)},
			Signature: []byte{i},
		}
		_, err := scoped.StoreLatestUpdate(u)
		require.NoError(t, err)
	}

	seen := 0
	err := scoped.ForEach(func(update *chain.SignedUpdate) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, seen)
}
