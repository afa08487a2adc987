package core

import "context"

// Handler consumes one message. A handler's error is contained by the bus
// (logged, never propagated to the publisher or to other subscribers), so the
// return value is diagnostic only.
type Handler func(ctx context.Context, msg Message) error

// Bus decouples publishers from subscribers within a single process.
//
// Contract:
//   - Publish enqueues and returns; it blocks only on bounded queueing and
//     fails only during shutdown or payload validation.
//   - Subscribe registers a handler for future messages on a topic; past
//     messages are not redelivered. Registration order equals delivery order
//     for that topic.
//   - Run drives dispatch until ctx is cancelled. Within one topic messages
//     are delivered to each subscriber in publish order; across topics no
//     ordering is guaranteed and dispatch proceeds concurrently.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(topic Topic, h Handler)
	Run(ctx context.Context) error
}
