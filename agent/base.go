package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
)

// Base bundles the shared lifecycle and bus plumbing for concrete agents.
// Embed it and supply a Run method; Start then launches Run on a derived
// context that Stop cancels. All exported methods are goroutine-safe.
type Base struct {
	name    string
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}

	bus    core.Bus
	logger *logging.MineWatchLogger
}

// NewBase constructs a Base bound to the given bus.
func NewBase(name string, bus core.Bus, logger *logging.MineWatchLogger) Base {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	return Base{name: name, bus: bus, logger: logger.WithAgent(name)}
}

// Name returns the agent's name.
func (b *Base) Name() string { return b.name }

// launch transitions to running and executes run on a derived context. Only
// the first call changes state; launching while running is an error.
func (b *Base) launch(ctx context.Context, run func(context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errors.New("agent is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		if err := run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("agent run loop ended: %s", err.Error())
		}
	}()
	return nil
}

// Stop cancels the run loop and waits for it to return. Stopping an agent
// that is not running is an error.
func (b *Base) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return errors.New("agent is not running")
	}
	b.cancel()
	b.running = false
	done := b.done
	b.mu.Unlock()

	<-done
	return nil
}

// Subscribe forwards to the bus.
func (b *Base) Subscribe(topic core.Topic, h core.Handler) {
	b.bus.Subscribe(topic, h)
}

// Publish sends a payload stamped with this agent's identity.
func (b *Base) Publish(ctx context.Context, topic core.Topic, payload any) error {
	return b.bus.Publish(ctx, core.NewMessage(b.name, topic, payload))
}

// PublishCorrelated sends a payload carrying the given correlation id.
func (b *Base) PublishCorrelated(ctx context.Context, topic core.Topic, correlationID string, payload any) error {
	msg := core.NewMessage(b.name, topic, payload)
	msg.CorrelationID = correlationID
	return b.bus.Publish(ctx, msg)
}
