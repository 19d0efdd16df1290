package watcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crosslink-network/watcher/adapter/mock"
	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/store"
)

func openTestStoreForWatcher(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "watcher.db")
	db, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func openTestScoped(t *testing.T) *store.ScopedStore {
	t.Helper()
	return openTestStoreForWatcher(t).Scope("home")
}

func TestUpdateHandlerRelaysWhenCurrent(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(0))
	scoped := openTestScoped(t)

	rx := make(chan chain.SignedUpdate, 1)
	h := NewUpdateHandler(rx, home, scoped)

	update := chain.SignedUpdate{Update: chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(0), NewRoot: mkRoot(1)}}
	rx <- update

	ctx, cancel := context.WithCancel(context.Background())
	doubleCh, errCh := h.spawn(ctx)

	select {
	case <-doubleCh:
		t.Fatal("did not expect a double update")
	case <-errCh:
		t.Fatal("handler should still be draining")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	<-errCh

	calls := home.UpdateCalls()
	require.Len(t, calls, 1)
	require.Equal(t, update.Update, calls[0].Update)
}

func TestUpdateHandlerDetectsDoubleUpdate(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(9)) // not current, so no relay noise
	scoped := openTestScoped(t)

	rx := make(chan chain.SignedUpdate, 2)
	h := NewUpdateHandler(rx, home, scoped)

	existing := chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)},
		Signature: []byte{0x01},
	}
	newcomer := chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(3)},
		Signature: []byte{0x02},
	}
	rx <- existing
	rx <- newcomer

	ctx := context.Background()
	doubleCh, errCh := h.spawn(ctx)

	select {
	case double := <-doubleCh:
		require.True(t, existing.Equal(double.Existing))
		require.True(t, newcomer.Equal(double.Newcomer))
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("expected a double update")
	}
}

func TestUpdateHandlerDuplicateIsNotADoubleUpdate(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(9))
	scoped := openTestScoped(t)

	rx := make(chan chain.SignedUpdate, 2)
	h := NewUpdateHandler(rx, home, scoped)

	update := chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)},
		Signature: []byte{0x01},
	}
	rx <- update
	rx <- update

	ctx, cancel := context.WithCancel(context.Background())
	doubleCh, errCh := h.spawn(ctx)

	select {
	case <-doubleCh:
		t.Fatal("duplicate observation should not be a double update")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	<-errCh
}

func TestUpdateHandlerReportsChannelClosed(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(9))
	scoped := openTestScoped(t)

	rx := make(chan chain.SignedUpdate)
	h := NewUpdateHandler(rx, home, scoped)

	doubleCh, errCh := h.spawn(context.Background())
	close(rx)

	select {
	case <-doubleCh:
		t.Fatal("did not expect a double update")
	case err := <-errCh:
		require.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("expected ErrChannelClosed")
	}
}
