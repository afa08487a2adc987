package retrieval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/minewatch/minewatch/core"
)

// Combined gathers context blocks from a semantic retriever and a keyword
// retriever in parallel and merges them, semantic hits first, deduplicated by
// exact block text.
type Combined struct {
	Semantic core.SemanticRetriever
	Keyword  core.KeywordRetriever
}

// Gather runs both retrievers concurrently. Either side may be nil, in which
// case only the other contributes. A failure on either side fails the gather.
func (c *Combined) Gather(ctx context.Context, query string, k int) ([]string, error) {
	var semantic []core.ScoredChunk
	var keyword []string

	g, gctx := errgroup.WithContext(ctx)
	if c.Semantic != nil {
		g.Go(func() error {
			var err error
			semantic, err = c.Semantic.RetrieveSemantic(gctx, query, k)
			return err
		})
	}
	if c.Keyword != nil {
		g.Go(func() error {
			var err error
			keyword, err = c.Keyword.RetrieveKeyword(gctx, query, k)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	blocks := make([]string, 0, len(semantic)+len(keyword))
	for _, ch := range semantic {
		if ch.Content != "" && !seen[ch.Content] {
			seen[ch.Content] = true
			blocks = append(blocks, ch.Content)
		}
	}
	for _, b := range keyword {
		if b != "" && !seen[b] {
			seen[b] = true
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}
