package watcher

import (
	"context"
	"sync"
)

// task is a uniform cancel/await handle for a spawned goroutine, the Go
// rendition of the teacher's Instrumented<JoinHandle<...>> pattern
// (contractcourt's resolver handles, server.go's wg+quit convention).
// Cancellation is cooperative and idempotent: Cancel may be called any
// number of times, including after the task has already finished.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func spawn(ctx context.Context, fn func(context.Context) error) *task {
	ctx, cancel := context.WithCancel(ctx)
	t := &task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		t.err = fn(ctx)
	}()

	return t
}

// Cancel requests the task stop. It does not block for the task to
// observe cancellation.
func (t *task) Cancel() {
	t.cancel()
}

// Wait blocks until the task has finished and returns its terminal error,
// or nil on a clean exit.
func (t *task) Wait() error {
	<-t.done
	return t.err
}

// TaskRegistry tracks the cancellable pollers the supervisor has spawned
// for each contract, keyed by contract name. Ownership is exclusive to the
// Watcher supervisor: per spec.md §3, no other component reads or writes
// it.
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*task
}

func newTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]*task)}
}

// Insert records t under name, replacing and cancelling any task already
// registered there.
func (r *TaskRegistry) Insert(name string, t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.tasks[name]; ok {
		old.Cancel()
	}
	r.tasks[name] = t
}

// All returns a snapshot of every task currently registered.
func (r *TaskRegistry) All() []*task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*task, 0, len(r.tasks))
	for _, t := range r.tasks {
		all = append(all, t)
	}
	return all
}

// CancelAll cancels and forgets every registered task. It does not wait
// for them to finish; callers that need that should Wait on the tasks
// they hold directly before calling CancelAll.
func (r *TaskRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, t := range r.tasks {
		t.Cancel()
		delete(r.tasks, name)
	}
}
