package watcher

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/log"
)

var hsyncLog = log.NewSubsystem(log.TagSync)

// errSyncingFinished is HistorySync's internal "clean break" signal: no
// predecessor exists, or the walk has reached the zero root. Per spec.md
// §7, this is not an error in any sense the supervisor cares about — it's
// surfaced only to unwind updateHistory's wrapping loop.
var errSyncingFinished = errors.New("history sync: syncing finished")

// HistorySync walks a single contract backward from a known committed
// root, asking at each step for the signed update that precedes it. It
// populates the persistent store with history the watcher didn't observe
// live, so double-update detection works against updates signed before
// this process started (spec.md §4.2).
type HistorySync struct {
	interval      int64
	committedRoot chain.Root
	tx            chan<- chain.SignedUpdate
	contract      chain.Common
}

// NewHistorySync constructs a HistorySync that begins walking backward
// from the given root.
func NewHistorySync(intervalSeconds int64, from chain.Root, tx chan<- chain.SignedUpdate, contract chain.Common) *HistorySync {
	return &HistorySync{
		interval:      intervalSeconds,
		committedRoot: from,
		tx:            tx,
		contract:      contract,
	}
}

// CommittedRoot reports the sync's current position, for tests.
func (h *HistorySync) CommittedRoot() chain.Root {
	return h.committedRoot
}

// updateHistory performs one backward lookup.
func (h *HistorySync) updateHistory(ctx context.Context) error {
	previous, err := h.contract.SignedUpdateByNewRoot(ctx, h.committedRoot)
	if errors.Is(err, chain.ErrNotFound) {
		return errSyncingFinished
	}
	if err != nil {
		return err
	}
	if previous == nil {
		return errSyncingFinished
	}

	h.committedRoot = previous.PreviousRoot

	select {
	case h.tx <- *previous:
	case <-ctx.Done():
		return ctx.Err()
	}

	if h.committedRoot == chain.ZeroRoot {
		return errSyncingFinished
	}

	return nil
}

// spawn starts the backward walk as a task. Reaching errSyncingFinished
// ends the task with a nil error: that is a normal, successful exit, not a
// failure the supervisor should propagate (spec.md §7).
func (h *HistorySync) spawn(ctx context.Context) *task {
	return spawn(ctx, func(ctx context.Context) error {
		t := ticker.New(secondsToDuration(h.interval))
		t.Resume()
		defer t.Stop()

		for {
			err := h.updateHistory(ctx)
			if err != nil {
				if errors.Is(err, errSyncingFinished) {
					hsyncLog.Debugf("history sync for %s finished at root %v",
						h.contract.Name(), h.committedRoot)
					return nil
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				hsyncLog.Errorf("history sync for %s: %v", h.contract.Name(), err)
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
