package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/minewatch/minewatch/analysis"
	"github.com/minewatch/minewatch/core"
	"github.com/minewatch/minewatch/retrieval"
)

const contextualizeSystem = "Given a chat history and the latest user question which might reference context in the chat history, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is."

const qaSystem = "You are an assistant for question-answering tasks about mine safety incidents in India. Use the retrieved context to answer the question. If you don't know the answer, say that you don't know. Keep the answer concise."

const fallbackAnswer = "I'm sorry, I ran into a problem while answering that. Please try again."

// retrievalK is how many context blocks each retriever contributes.
const retrievalK = 4

func (a *IncidentAnalysis) handleQuery(ctx context.Context, msg core.Message) error {
	q, ok := msg.Payload.(core.UserQuery)
	if !ok {
		return fmt.Errorf("user query: unexpected payload %T", msg.Payload)
	}
	a.handlers.Add(1)
	go func() {
		defer a.handlers.Done()
		a.answerQuery(ctx, q)
	}()
	return nil
}

// answerQuery runs the retrieval-augmented answer path. Any unrecoverable
// failure publishes the apologetic fallback on the same correlation id.
func (a *IncidentAnalysis) answerQuery(ctx context.Context, q core.UserQuery) {
	standalone := a.contextualize(ctx, q.Query)

	blocks, err := a.gatherContext(ctx, standalone)
	if err != nil {
		a.logger.Warn("retrieval failed for query: %s", err.Error())
		a.publishAnswer(ctx, q.CorrelationID, fallbackAnswer, true)
		return
	}

	prompt := "Context:\n" + strings.Join(blocks, "\n\n---\n\n") + "\n\nQuestion: " + standalone
	if len(blocks) == 0 {
		prompt = "No stored incidents matched the question.\n\nQuestion: " + standalone
	}
	answer, err := a.gen.GenerateText(ctx, qaSystem, prompt)
	if err != nil {
		a.logger.Warn("answer generation failed: %s", err.Error())
		a.publishAnswer(ctx, q.CorrelationID, fallbackAnswer, true)
		return
	}

	a.appendHistory(q.Query, answer)
	a.publishAnswer(ctx, q.CorrelationID, answer, false)
}

// contextualize rewrites the question to standalone form using the chat
// history. An empty history means no rewrite; a rewrite failure falls back
// to the raw question.
func (a *IncidentAnalysis) contextualize(ctx context.Context, query string) string {
	hist := a.historySnapshot()
	if len(hist) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString("Chat history:\n")
	for _, turn := range hist {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	b.WriteString("\nLatest question: " + query)

	rewritten, err := a.gen.GenerateText(ctx, contextualizeSystem, b.String())
	if err != nil || strings.TrimSpace(rewritten) == "" {
		if err != nil {
			a.logger.Warn("query rewrite failed, using raw question: %s", err.Error())
		}
		return query
	}
	return strings.TrimSpace(rewritten)
}

// gatherContext fans out semantic and keyword retrieval in parallel, then
// appends any cause-code definitions the question touches.
func (a *IncidentAnalysis) gatherContext(ctx context.Context, query string) ([]string, error) {
	combined := &retrieval.Combined{Semantic: a.opts.Semantic, Keyword: a.opts.Keyword}
	blocks, err := combined.Gather(ctx, query, retrievalK)
	if err != nil {
		return nil, err
	}
	return append(blocks, analysis.LookupCauseCodes(query)...), nil
}

func (a *IncidentAnalysis) publishAnswer(ctx context.Context, correlationID, answer string, fallback bool) {
	err := a.PublishCorrelated(ctx, core.TopicQueryAnswered, correlationID, core.QueryAnswer{
		CorrelationID: correlationID,
		Answer:        answer,
		Fallback:      fallback,
	})
	if err != nil {
		a.logger.Error("publish answer failed: %s", err.Error())
	}
}

func (a *IncidentAnalysis) historySnapshot() []chatTurn {
	a.histMu.Lock()
	defer a.histMu.Unlock()
	return append([]chatTurn(nil), a.history...)
}

// appendHistory records exactly one user/assistant pair and trims the buffer
// to the configured limit, oldest first.
func (a *IncidentAnalysis) appendHistory(query, answer string) {
	a.histMu.Lock()
	defer a.histMu.Unlock()
	a.history = append(a.history,
		chatTurn{Role: "user", Content: query},
		chatTurn{Role: "assistant", Content: answer},
	)
	if limit := a.opts.HistoryLimit; limit > 0 && len(a.history) > limit {
		a.history = append([]chatTurn(nil), a.history[len(a.history)-limit:]...)
	}
}
