package chain

import "errors"

// ErrNotFound is returned by adapter lookups that have no successor,
// predecessor, or committed state yet. Pollers treat it the same as a nil
// result: a polite "nothing new" rather than a failure.
var ErrNotFound = errors.New("chain: not found")

// ErrUnavailable wraps a transient adapter failure (RPC timeout, dropped
// connection, and the like). Pollers treat it as fatal to their own task;
// the supervisor is responsible for deciding whether the agent as a whole
// should exit.
var ErrUnavailable = errors.New("chain: adapter unavailable")
