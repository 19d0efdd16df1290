package watcher

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/log"
	"github.com/crosslink-network/watcher/store"
)

var uphdLog = log.NewSubsystem(log.TagHandler)

// ErrChannelClosed is returned when the shared update channel closes
// (every poller feeding it has exited) before a double update was ever
// observed. The supervisor treats this as an operational failure, not a
// clean shutdown (spec.md §4.3, §7).
var ErrChannelClosed = fmt.Errorf("update handler: channel closed before a double update was observed")

// UpdateHandler is the single consumer of the shared update channel. It
// persists newly observed updates keyed by previous root, relays updates
// that extend the home's current committed root, and detects conflicts
// against the persistent record. It terminates with exactly one of: a
// DoubleUpdate witness, or an error (ErrChannelClosed, the context's
// error on cancellation, or a store failure).
type UpdateHandler struct {
	rx    <-chan chain.SignedUpdate
	store *store.ScopedStore
	home  chain.Home
}

// NewUpdateHandler constructs an UpdateHandler draining rx against home's
// scoped store view.
func NewUpdateHandler(rx <-chan chain.SignedUpdate, home chain.Home, scoped *store.ScopedStore) *UpdateHandler {
	return &UpdateHandler{rx: rx, store: scoped, home: home}
}

// checkDoubleUpdate persists update if its previous root is unseen, or
// returns the conflicting pair if the store already holds a different
// update under the same previous root (spec.md §4.3 step 3).
func (h *UpdateHandler) checkDoubleUpdate(update *chain.SignedUpdate) (*chain.DoubleUpdate, error) {
	existing, err := h.store.StoreLatestUpdate(update)
	if err != nil {
		// StoreError is fatal: the handler's invariants depend on the
		// store, and a broken store isn't recoverable by retrying at
		// this layer (spec.md §7). Panicking here, caught at the
		// goroutine boundary in spawn, reproduces "the supervisor
		// will observe termination" without leaking a bare panic out
		// of the package.
		panic(fmt.Sprintf("update store: %v", err))
	}

	if existing == nil {
		// First time this previous root has been seen; StoreLatestUpdate
		// already wrote it.
		return nil, nil
	}

	if existing.NewRoot == update.NewRoot {
		// Duplicate observation of an update we've already recorded.
		return nil, nil
	}

	return &chain.DoubleUpdate{Existing: *existing, Newcomer: *update}, nil
}

// spawn drains rx until either a double update is found or rx closes.
// Exactly one value is sent, on one of the two returned channels; neither
// channel is closed.
func (h *UpdateHandler) spawn(ctx context.Context) (<-chan *chain.DoubleUpdate, <-chan error) {
	doubleCh := make(chan *chain.DoubleUpdate, 1)
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("update handler: %v", r)
			}
		}()

		for {
			select {
			case update, ok := <-h.rx:
				if !ok {
					errCh <- ErrChannelClosed
					return
				}

				if err := h.relayIfCurrent(ctx, &update); err != nil {
					uphdLog.Debugf("best-effort relay to home failed (ignored): %v", err)
				}

				double, err := h.checkDoubleUpdate(&update)
				if err != nil {
					errCh <- err
					return
				}
				if double != nil {
					uphdLog.Warnf("double update detected: %s", spew.Sdump(double))
					doubleCh <- double
					return
				}

			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return doubleCh, errCh
}

// relayIfCurrent submits update to the home if its previous root matches
// the home's freshly-queried committed root. Any error, including a
// revert, is swallowed: this relay exists purely so a watcher holding a
// not-yet-submitted valid update can help the home move forward. It is
// never part of fraud detection (spec.md §4.3 step 2).
func (h *UpdateHandler) relayIfCurrent(ctx context.Context, update *chain.SignedUpdate) error {
	committed, err := h.home.CommittedRoot(ctx)
	if err != nil {
		return err
	}
	if committed != update.PreviousRoot {
		return nil
	}

	_, err = h.home.Update(ctx, update)
	return err
}
