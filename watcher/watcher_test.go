package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/crosslink-network/watcher/adapter/mock"
	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/metrics"
)

// blockingIndexer stands in for a real indexer.BlockIndexer: it does
// nothing until its context is cancelled, so tests can control exactly
// which half of RunAll's race (indexer vs handler) wins.
type blockingIndexer struct{}

func (blockingIndexer) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestCore(t *testing.T, home *mock.Home, replicas map[string]chain.Replica) AgentCore {
	t.Helper()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	return AgentCore{
		Home:     home,
		Replicas: replicas,
		Store:    openTestStoreForWatcher(t),
		Indexer:  blockingIndexer{},
		Metrics:  m,
	}
}

func TestRunAllDetectsDoubleUpdateAndFansOut(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(0))
	home.SetUpdater(chain.Address{0xAA}, nil)
	homeUpdate := chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(0), NewRoot: mkRoot(1)},
		Signature: []byte{0x01},
	}
	home.QueueUpdate(homeUpdate)

	replica := mock.NewReplica("replica-a", 1, mkRoot(0))
	replicaUpdate := chain.SignedUpdate{
		Update:    chain.Update{HomeDomain: 1, PreviousRoot: mkRoot(0), NewRoot: mkRoot(2)},
		Signature: []byte{0x02},
	}
	replica.QueueUpdate(replicaUpdate)

	replicas := map[string]chain.Replica{"replica-a": replica}
	core := newTestCore(t, home, replicas)

	connMgr := mock.NewConnectionManager("cm-1")
	sgnr := &mock.Signer{}

	w := New(sgnr, 1, []chain.ConnectionManager{connMgr}, core)

	type runResult struct {
		fanOut *FanOutResult
		err    error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		fanOut, err := w.RunAll(context.Background())
		resultCh <- runResult{fanOut, err}
	}()

	select {
	case r := <-resultCh:
		require.ErrorIs(t, r.err, ErrFraudDetected)
		require.NotNil(t, r.fanOut)
		require.Len(t, r.fanOut.DoubleUpdateOutcomes, 2) // home + 1 replica
		require.Len(t, r.fanOut.UnenrollOutcomes, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("RunAll did not resolve with a double update")
	}

	require.Len(t, home.DoubleUpdateCalls(), 1)
	require.Len(t, replica.DoubleUpdateCalls(), 1)
	require.Len(t, connMgr.Calls(), 1)
	require.Equal(t, uint32(1), connMgr.Calls()[0].HomeDomain)
}

func TestRunAllCleanExitWithNoUpdates(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(0))
	core := newTestCore(t, home, map[string]chain.Replica{})
	sgnr := &mock.Signer{}

	w := New(sgnr, 1, nil, core)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	fanOut, err := w.RunAll(ctx)
	require.Nil(t, fanOut)
	require.NoError(t, err)
}

// TestRunAllPropagatesChannelClosedWhenPollersExhausted exercises the
// case that matters for closing updateCh automatically: nothing ever
// cancels the run, but every poller reading the home independently dies
// because the adapter call itself starts failing. Without the pollers
// draining into a WaitGroup that closes updateCh, the handler would block
// on the channel forever and RunAll would hang.
func TestRunAllPropagatesChannelClosedWhenPollersExhausted(t *testing.T) {
	home := mock.NewHome("home", 1, mkRoot(0))
	home.SetLookupErr(errors.New("adapter unreachable"))
	core := newTestCore(t, home, map[string]chain.Replica{})
	sgnr := &mock.Signer{}

	w := New(sgnr, 1, nil, core)

	type runResult struct {
		fanOut *FanOutResult
		err    error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		fanOut, err := w.RunAll(context.Background())
		resultCh <- runResult{fanOut, err}
	}()

	select {
	case r := <-resultCh:
		require.Nil(t, r.fanOut)
		require.ErrorIs(t, r.err, ErrChannelClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("RunAll hung instead of observing updateCh closing")
	}
}
