package watcher

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/log"
)

var wtchPollLog = log.NewSubsystem(log.TagPoll)

// ContractWatcher walks a single contract forward from a known committed
// root, asking at each step for the signed update that extends it. Each
// discovered update is pushed downstream exactly once, in chain order;
// there is no retry around the send, so a closed channel is fatal to the
// task (spec.md §4.1).
type ContractWatcher struct {
	interval     int64
	committedRoot chain.Root
	tx            chan<- chain.SignedUpdate
	contract      chain.Common
}

// NewContractWatcher constructs a ContractWatcher that begins walking
// forward from the given root.
func NewContractWatcher(intervalSeconds int64, from chain.Root, tx chan<- chain.SignedUpdate, contract chain.Common) *ContractWatcher {
	return &ContractWatcher{
		interval:      intervalSeconds,
		committedRoot: from,
		tx:            tx,
		contract:      contract,
	}
}

// CommittedRoot reports the watcher's current position, for tests.
func (w *ContractWatcher) CommittedRoot() chain.Root {
	return w.committedRoot
}

// pollAndSendUpdate performs one forward lookup. A nil result leaves the
// committed root unchanged; a found update advances it and is sent
// downstream.
func (w *ContractWatcher) pollAndSendUpdate(ctx context.Context) error {
	update, err := w.contract.SignedUpdateByOldRoot(ctx, w.committedRoot)
	if errors.Is(err, chain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if update == nil {
		return nil
	}

	w.committedRoot = update.NewRoot

	select {
	case w.tx <- *update:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// spawn starts the poller as a task, returning a handle the supervisor can
// cancel and await. Polling happens on a fixed interval ticker so the
// behavior is easy to drive deterministically from tests (see
// contractwatcher_test.go).
func (w *ContractWatcher) spawn(ctx context.Context) *task {
	return spawn(ctx, func(ctx context.Context) error {
		t := ticker.New(secondsToDuration(w.interval))
		t.Resume()
		defer t.Stop()

		for {
			if err := w.pollAndSendUpdate(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				wtchPollLog.Errorf("contract watcher for %s: %v", w.contract.Name(), err)
				return err
			}

			select {
			case <-t.Ticks():
			case <-ctx.Done():
				return nil
			}
		}
	})
}
