package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosslink-network/watcher/adapter/mock"
	"github.com/crosslink-network/watcher/chain"
)

func TestHistorySyncWalksBackwardToZeroRoot(t *testing.T) {
	replica := mock.NewReplica("replica-a", 1, mkRoot(0))

	u1 := chain.SignedUpdate{Update: chain.Update{HomeDomain: 1, PreviousRoot: chain.ZeroRoot, NewRoot: mkRoot(1)}}
	u2 := chain.SignedUpdate{Update: chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(1), NewRoot: mkRoot(2)}}
	replica.QueueUpdate(u1)
	replica.QueueUpdate(u2)

	tx := make(chan chain.SignedUpdate, 10)
	h := NewHistorySync(5, mkRoot(2), tx, replica)

	ctx := context.Background()

	require.NoError(t, h.updateHistory(ctx))
	require.Equal(t, mkRoot(1), h.CommittedRoot())

	err := h.updateHistory(ctx)
	require.ErrorIs(t, err, errSyncingFinished)
	require.Equal(t, chain.ZeroRoot, h.CommittedRoot())
}

func TestHistorySyncFinishesWhenNoPredecessor(t *testing.T) {
	replica := mock.NewReplica("replica-a", 1, mkRoot(5))
	tx := make(chan chain.SignedUpdate, 10)
	h := NewHistorySync(5, mkRoot(5), tx, replica)

	err := h.updateHistory(context.Background())
	require.ErrorIs(t, err, errSyncingFinished)
}
