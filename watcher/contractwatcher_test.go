package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crosslink-network/watcher/adapter/mock"
	"github.com/crosslink-network/watcher/chain"
)

func mkRoot(b byte) chain.Root {
	var r chain.Root
	r[0] = b
	return r
}

func TestContractWatcherMonotoneForwardWalk(t *testing.T) {
	replica := mock.NewReplica("replica-a", 1, mkRoot(0))

	u1 := chain.SignedUpdate{Update: chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(0), NewRoot: mkRoot(1)}}
	u2 := chain.SignedUpdate{Update: chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)}}
	replica.QueueUpdate(u1)
	replica.QueueUpdate(u2)

	tx := make(chan chain.SignedUpdate, 10)
	w := NewContractWatcher(5, mkRoot(0), tx, replica)

	ctx := context.Background()
	require.NoError(t, w.pollAndSendUpdate(ctx))
	require.Equal(t, mkRoot(1), w.CommittedRoot())

	require.NoError(t, w.pollAndSendUpdate(ctx))
	require.Equal(t, mkRoot(2), w.CommittedRoot())

	// no successor queued past mkRoot(2): committed root holds steady.
	require.NoError(t, w.pollAndSendUpdate(ctx))
	require.Equal(t, mkRoot(2), w.CommittedRoot())

	select {
	case got := <-tx:
		require.Equal(t, u1.Update, got.Update)
	case <-time.After(time.Second):
		t.Fatal("expected first update on channel")
	}
	select {
	case got := <-tx:
		require.Equal(t, u2.Update, got.Update)
	case <-time.After(time.Second):
		t.Fatal("expected second update on channel")
	}
}

func TestContractWatcherSpawnStopsOnCancel(t *testing.T) {
	replica := mock.NewReplica("replica-a", 1, mkRoot(0))
	tx := make(chan chain.SignedUpdate, 10)
	w := NewContractWatcher(3600, mkRoot(0), tx, replica)

	ctx, cancel := context.WithCancel(context.Background())
	task := w.spawn(ctx)
	cancel()

	select {
	case <-task.done:
		require.NoError(t, task.err)
	case <-time.After(time.Second):
		t.Fatal("task did not stop after cancel")
	}
}
