package core

import "context"

// Agent is a long-running unit with a lifecycle, a subscription list and
// publish capability. Concrete agents supply the run loop; Start launches it
// as an independently scheduled goroutine and returns immediately, Stop
// cancels it best-effort.
type Agent interface {
	// Name returns the stable identity stamped on published messages.
	Name() string

	// Start transitions the agent to running and launches its run loop.
	// Calling Start on a running agent is an error.
	Start(ctx context.Context) error

	// Stop cancels the run loop. In-flight workflow instances spawned from
	// the loop are not joined; writes already issued are not undone.
	Stop() error

	// Run is the agent's liveness loop. It returns when ctx is cancelled.
	Run(ctx context.Context) error
}
