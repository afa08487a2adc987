// Package bus implements the in-process publish/subscribe router that
// decouples MineWatch agents from each other. Dispatch is ordered within a
// topic and concurrent across topics; a failing or panicking subscriber is
// logged and never stalls delivery to the others.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
)

// ErrShuttingDown is returned by Publish while the bus is draining its
// queues during shutdown.
var ErrShuttingDown = errors.New("bus: shutting down")

// Options tune queue depths for the bus.
type Options struct {
	// QueueSize is the buffer of the central intake queue. Publish blocks
	// once the buffer is full, which is the only backpressure signal
	// producers receive.
	QueueSize int
	// TopicQueueSize is the buffer of each per-topic dispatch queue.
	TopicQueueSize int
	// Logger receives subscriber failures and dispatch diagnostics.
	Logger logging.Logger
}

// InProc is the single-process Bus implementation. A central intake queue
// feeds one dispatcher goroutine per topic, so messages of one topic reach
// every subscriber in publish order while unrelated topics never wait on each
// other's slow handlers.
type InProc struct {
	mu      sync.Mutex
	subs    map[core.Topic][]core.Handler
	queues  map[core.Topic]chan core.Message
	intake  chan core.Message
	closed  bool
	started bool
	wg      sync.WaitGroup
	logger  logging.Logger
	opts    Options
}

var _ core.Bus = (*InProc)(nil)

// New constructs an InProc bus with optional overrides.
func New(optFns ...func(o *Options)) *InProc {
	opts := Options{QueueSize: 1024, TopicQueueSize: 256, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InProc{
		subs:   make(map[core.Topic][]core.Handler),
		queues: make(map[core.Topic]chan core.Message),
		intake: make(chan core.Message, opts.QueueSize),
		logger: opts.Logger,
		opts:   opts,
	}
}

// Publish validates the payload against its topic and enqueues the message.
// It blocks only while the intake buffer is full and fails only on validation
// errors, shutdown, or context cancellation.
func (b *InProc) Publish(ctx context.Context, msg core.Message) error {
	if err := core.ValidatePayload(msg.Topic, msg.Payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrShuttingDown
	}
	select {
	case b.intake <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for future messages on topic. Handlers for a
// topic are invoked in registration order; past messages are not redelivered.
func (b *InProc) Subscribe(topic core.Topic, h core.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Run routes intake messages to per-topic dispatchers until ctx is cancelled,
// then hands any queued messages to their dispatchers, waits for them to exit
// and resets the bus so a later Run starts clean.
func (b *InProc) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("bus: already running")
	}
	b.started = true
	b.closed = false
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			b.shutdown(ctx)
			return ctx.Err()
		case msg := <-b.intake:
			b.topicQueue(ctx, msg.Topic) <- msg
		}
	}
}

// topicQueue returns the dispatch queue for a topic, starting its dispatcher
// goroutine on first use.
func (b *InProc) topicQueue(ctx context.Context, topic core.Topic) chan core.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[topic]
	if ok {
		return q
	}
	q = make(chan core.Message, b.opts.TopicQueueSize)
	b.queues[topic] = q
	b.wg.Add(1)
	go b.dispatchLoop(ctx, topic, q)
	return q
}

func (b *InProc) dispatchLoop(ctx context.Context, topic core.Topic, q chan core.Message) {
	defer b.wg.Done()
	for msg := range q {
		b.mu.Lock()
		handlers := make([]core.Handler, len(b.subs[topic]))
		copy(handlers, b.subs[topic])
		b.mu.Unlock()
		for _, h := range handlers {
			b.invoke(ctx, h, msg)
		}
	}
}

// invoke runs one handler to completion, containing errors and panics so a
// misbehaving subscriber cannot stall the topic's dispatch loop.
func (b *InProc) invoke(ctx context.Context, h core.Handler, msg core.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus.handler.panic", "topic", string(msg.Topic), "origin", msg.Origin, "panic", fmt.Sprintf("%v", r))
		}
	}()
	if err := h(ctx, msg); err != nil {
		b.logger.Warn("bus.handler.error", "topic", string(msg.Topic), "origin", msg.Origin, "error", err.Error())
	}
}

// shutdown stops intake, drains messages already accepted into their topic
// queues, waits for the dispatchers and leaves the bus restartable. Once the
// drain completes Publish buffers again; queued messages are delivered by the
// next Run.
func (b *InProc) shutdown(ctx context.Context) {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

drain:
	for {
		select {
		case msg := <-b.intake:
			b.topicQueue(ctx, msg.Topic) <- msg
		default:
			break drain
		}
	}

	b.mu.Lock()
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()
	b.wg.Wait()

	b.mu.Lock()
	b.queues = make(map[core.Topic]chan core.Message)
	b.started = false
	b.closed = false
	b.mu.Unlock()
}
