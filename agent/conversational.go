package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/logging"
)

// Conversational relays external callers into the bus: Ask publishes the
// question and blocks until the correlated answer arrives.
type Conversational struct {
	Base
	pending *waiters[core.QueryAnswer]
}

var _ core.Agent = (*Conversational)(nil)

// NewConversational builds the agent and registers its answer subscription.
func NewConversational(bus core.Bus, logger *logging.MineWatchLogger) *Conversational {
	a := &Conversational{
		Base:    NewBase("conversational", bus, logger),
		pending: newWaiters[core.QueryAnswer](),
	}
	a.Subscribe(core.TopicQueryAnswered, a.handleAnswer)
	return a
}

// Start launches the idle run loop; the agent is purely reactive.
func (a *Conversational) Start(ctx context.Context) error { return a.launch(ctx, a.Run) }

// Run blocks until the context is cancelled.
func (a *Conversational) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Ask publishes the query and waits for its answer or the context's end.
func (a *Conversational) Ask(ctx context.Context, query string) (string, error) {
	corrID := uuid.NewString()
	wait := a.pending.register(corrID)

	err := a.PublishCorrelated(ctx, core.TopicQuerySubmitted, corrID, core.UserQuery{
		CorrelationID: corrID,
		Query:         query,
	})
	if err != nil {
		a.pending.cancel(corrID)
		return "", fmt.Errorf("ask: %w", err)
	}

	select {
	case ans := <-wait:
		return ans.Answer, nil
	case <-ctx.Done():
		a.pending.cancel(corrID)
		return "", ctx.Err()
	}
}

func (a *Conversational) handleAnswer(_ context.Context, msg core.Message) error {
	ans, ok := msg.Payload.(core.QueryAnswer)
	if !ok {
		return fmt.Errorf("query answer: unexpected payload %T", msg.Payload)
	}
	if !a.pending.fulfill(ans.CorrelationID, ans) {
		a.logger.Debug("dropping answer with no waiter: %s", ans.CorrelationID)
	}
	return nil
}
