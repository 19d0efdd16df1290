// Package watcher implements the supervisor and its three worker
// components: ContractWatcher, HistorySync, and UpdateHandler. The
// supervisor (Watcher) is the Go rendition of breacharbiter.go's
// contractObserver: it spawns a fixed set of long-lived goroutines,
// tracks them in a registry, and reacts to exactly one terminal signal by
// running a concurrent fan-out of remedial contract calls.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/log"
	"github.com/crosslink-network/watcher/metrics"
	"github.com/crosslink-network/watcher/signer"
	"github.com/crosslink-network/watcher/store"
)

var wtchLog = log.NewSubsystem(log.TagWatcher)

// ErrFraudDetected is the sentinel RunAll returns when the agent's
// terminal exit is a confirmed double update that fraud fan-out has
// already been run against. Its accompanying *FanOutResult carries what
// happened.
var ErrFraudDetected = errors.New("watcher: double update confirmed, fraud fan-out executed")

// ErrUpdaterUnavailable is returned from the failure fan-out when the
// home's current updater address can't be queried. The double_update
// calls still run before this is returned; without an updater address no
// FailureNotification can be built, so the unenroll calls are skipped.
var ErrUpdaterUnavailable = errors.New("watcher: home updater address unavailable")

// Indexer is the external collaborator that keeps the store populated
// from raw chain events independently of the three polling components.
// It is supervised the same way the pollers are: cancelled on shutdown,
// raced against the handler's resolution.
type Indexer interface {
	Run(ctx context.Context) error
}

// AgentCore bundles the collaborators a Watcher needs but does not own
// the lifecycle of on its own: the home, the keyed replica set, the
// persistent store, the indexer, and the metrics registry.
type AgentCore struct {
	Home     chain.Home
	Replicas map[string]chain.Replica
	Store    *store.Store
	Indexer  Indexer
	Metrics  *metrics.Metrics
}

// FanOutResult is the report produced by a confirmed double update: the
// outcome of every double_update call (home first, then replicas in
// sorted-name order), followed by the outcome of every unenroll_replica
// call, in configured connection-manager order.
type FanOutResult struct {
	DoubleUpdateOutcomes []chain.TxOutcome
	UnenrollOutcomes     []chain.TxOutcome
}

// Watcher supervises one home and its replicas for a single double-update
// detection run.
type Watcher struct {
	signer   signer.Signer
	interval int64
	connMgrs []chain.ConnectionManager
	core     AgentCore
}

// New constructs a Watcher. interval is the polling period, in seconds,
// shared by every ContractWatcher and HistorySync this supervisor spawns.
func New(sgnr signer.Signer, intervalSeconds int64, connMgrs []chain.ConnectionManager, core AgentCore) *Watcher {
	return &Watcher{
		signer:   sgnr,
		interval: intervalSeconds,
		connMgrs: connMgrs,
		core:     core,
	}
}

type handlerOutcome struct {
	double *chain.DoubleUpdate
	err    error
}

// RunAll spawns the indexer, the home and replica pollers, and the
// UpdateHandler; waits for the first terminal signal; and, if that
// signal was a confirmed double update, runs the failure fan-out and
// returns (result, ErrFraudDetected). If the fan-out itself fails (the
// updater address is unavailable or signing fails), it returns the
// partial result with that error instead. Any other outcome returns (nil,
// nil) on a clean stop or (nil, err) if something failed outside the
// fraud-detection path itself.
func (w *Watcher) RunAll(ctx context.Context) (*FanOutResult, error) {
	// Step 1: register this home's block height gauge.
	w.core.Metrics.For(w.core.Home.Name())

	// Step 2: start the indexer's block-scanning task.
	indexerTask := spawn(ctx, w.core.Indexer.Run)

	// Step 3: the shared update channel and the handler's result channels.
	updateCh := make(chan chain.SignedUpdate, 200)

	// Step 4: spawn the UpdateHandler on the channel receiver, against a
	// context this supervisor can cancel independently if the indexer
	// finishes the race first.
	handlerCtx, handlerCancel := context.WithCancel(ctx)
	defer handlerCancel()
	handler := NewUpdateHandler(updateCh, w.core.Home, w.core.Store.Scope(w.core.Home.Name()))
	doubleCh, errCh := handler.spawn(handlerCtx)

	watchTasks := newTaskRegistry()
	syncTasks := newTaskRegistry()

	// Step 5: spawn pollers for every replica.
	for name, replica := range w.core.Replicas {
		from, err := replica.CommittedRoot(ctx)
		if err != nil {
			handlerCancel()
			indexerTask.Cancel()
			return nil, fmt.Errorf("watcher: committed root for replica %s: %w", name, err)
		}
		watchTasks.Insert(name, NewContractWatcher(w.interval, from, updateCh, replica).spawn(ctx))
		syncTasks.Insert(name, NewHistorySync(w.interval, from, updateCh, replica).spawn(ctx))
	}

	// Step 6: spawn the home's two pollers, held locally.
	homeFrom, err := w.core.Home.CommittedRoot(ctx)
	if err != nil {
		handlerCancel()
		indexerTask.Cancel()
		watchTasks.CancelAll()
		syncTasks.CancelAll()
		return nil, fmt.Errorf("watcher: committed root for home: %w", err)
	}
	homeWatcher := NewContractWatcher(w.interval, homeFrom, updateCh, w.core.Home).spawn(ctx)
	homeSync := NewHistorySync(w.interval, homeFrom, updateCh, w.core.Home).spawn(ctx)

	// updateCh has exactly one sender per poller spawned above: the home's
	// two and two per replica. Unlike a Rust mpsc::Sender, a Go channel
	// does not close itself once every sender's goroutine has exited, so
	// that has to be done explicitly here — otherwise a run where every
	// poller dies on its own (adapter outage) leaves updateCh open forever
	// and the handler blocks on it indefinitely instead of observing
	// ErrChannelClosed. Closing only happens once every sender task has
	// actually returned, so there is no send-after-close race.
	senders := append([]*task{homeWatcher, homeSync}, watchTasks.All()...)
	senders = append(senders, syncTasks.All()...)
	go func() {
		var wg sync.WaitGroup
		for _, t := range senders {
			t := t
			wg.Add(1)
			go func() {
				defer wg.Done()
				t.Wait()
			}()
		}
		wg.Wait()
		close(updateCh)
	}()

	// The handler resolving, for any reason, cancels the home's own
	// pollers immediately: there is no point walking the home forward or
	// backward once the handler that consumes its output has stopped.
	handlerResultCh := make(chan handlerOutcome, 1)
	go func() {
		select {
		case d := <-doubleCh:
			homeWatcher.Cancel()
			homeSync.Cancel()
			handlerResultCh <- handlerOutcome{double: d}
		case e := <-errCh:
			homeWatcher.Cancel()
			homeSync.Cancel()
			handlerResultCh <- handlerOutcome{err: e}
		}
	}()

	indexerDone := make(chan struct{})
	var indexerErr error
	go func() {
		indexerErr = indexerTask.Wait()
		close(indexerDone)
	}()

	// Step 7: race the indexer against the handler's resolution; cancel
	// the loser.
	var result handlerOutcome
	select {
	case <-indexerDone:
		handlerCancel()
		result = <-handlerResultCh
	case result = <-handlerResultCh:
		indexerTask.Cancel()
		<-indexerDone
	}

	watchTasks.CancelAll()
	syncTasks.CancelAll()
	_ = homeWatcher.Wait()
	_ = homeSync.Wait()

	if indexerErr != nil && !errors.Is(indexerErr, context.Canceled) {
		wtchLog.Errorf("indexer for %s: %v", w.core.Home.Name(), indexerErr)
	}

	// Step 8.
	if result.double != nil {
		fanOut, err := w.handleFailure(ctx, result.double)
		if err != nil {
			wtchLog.Errorf("failure fan-out for %s: %v", w.core.Home.Name(), err)
			return fanOut, err
		}
		return fanOut, ErrFraudDetected
	}

	// Channel closure is an operational failure, not a clean exit (spec.md
	// §7): only a cancelled/expired context is a clean stop.
	cleanShutdown := errors.Is(result.err, context.Canceled) || errors.Is(result.err, context.DeadlineExceeded)
	if result.err != nil && !cleanShutdown {
		return nil, fmt.Errorf("watcher: %w", result.err)
	}

	return nil, nil
}

// handleFailure runs the §4.5 fan-out against a confirmed double update:
// double_update against every contract, a signed FailureNotification
// built from the home's current updater, and unenroll_replica against
// every configured connection manager.
func (w *Watcher) handleFailure(ctx context.Context, double *chain.DoubleUpdate) (*FanOutResult, error) {
	doubleOutcomes := w.invokeDoubleUpdateCalls(ctx, double)

	updaterAddr, err := w.core.Home.Updater(ctx)
	if err != nil {
		return &FanOutResult{DoubleUpdateOutcomes: doubleOutcomes}, fmt.Errorf("%w: %v", ErrUpdaterUnavailable, err)
	}

	notification := chain.FailureNotification{
		HomeDomain:     w.core.Home.LocalDomain(),
		UpdaterAddress: updaterAddr,
	}
	sig, err := w.signer.Sign(notification.Bytes())
	if err != nil {
		return &FanOutResult{DoubleUpdateOutcomes: doubleOutcomes}, fmt.Errorf("watcher: sign failure notification: %w", err)
	}
	signed := &chain.SignedFailureNotification{FailureNotification: notification, Signature: sig}

	unenrollOutcomes := w.invokeUnenrollCalls(ctx, signed)

	return &FanOutResult{
		DoubleUpdateOutcomes: doubleOutcomes,
		UnenrollOutcomes:     unenrollOutcomes,
	}, nil
}

// invokeDoubleUpdateCalls submits double to the home and every replica
// concurrently, home first, then replicas ordered by name for
// determinism. Every target is contacted regardless of any other
// target's outcome: each goroutine always returns a nil error to the
// group so one contract's failure never cancels the others' in-flight
// calls.
func (w *Watcher) invokeDoubleUpdateCalls(ctx context.Context, double *chain.DoubleUpdate) []chain.TxOutcome {
	names := make([]string, 0, len(w.core.Replicas))
	for name := range w.core.Replicas {
		names = append(names, name)
	}
	sort.Strings(names)

	outcomes := make([]chain.TxOutcome, 1+len(names))

	var g errgroup.Group
	g.Go(func() error {
		outcome, err := w.core.Home.DoubleUpdate(ctx, double)
		if err != nil {
			wtchLog.Errorf("double_update against home %s: %v", w.core.Home.Name(), err)
		}
		outcomes[0] = outcome
		return nil
	})
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			outcome, err := w.core.Replicas[name].DoubleUpdate(ctx, double)
			if err != nil {
				wtchLog.Errorf("double_update against replica %s: %v", name, err)
			}
			outcomes[1+i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// invokeUnenrollCalls submits signed to every configured connection
// manager concurrently, in configured order.
func (w *Watcher) invokeUnenrollCalls(ctx context.Context, signed *chain.SignedFailureNotification) []chain.TxOutcome {
	outcomes := make([]chain.TxOutcome, len(w.connMgrs))

	var g errgroup.Group
	for i, cm := range w.connMgrs {
		i, cm := i, cm
		g.Go(func() error {
			outcome, err := cm.UnenrollReplica(ctx, signed)
			if err != nil {
				wtchLog.Errorf("unenroll_replica against %s: %v", cm.Name(), err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
