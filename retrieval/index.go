// Package retrieval provides semantic retrieval over an in-process vector
// index and a combiner that gathers semantic and keyword context in parallel.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/minewatch/minewatch/core"
)

// Index is an in-memory cosine-similarity vector index. Safe for concurrent
// use. Vectors come from the configured Embedder at Add time.
type Index struct {
	mu       sync.RWMutex
	embedder core.Embedder
	entries  []entry
}

type entry struct {
	id       string
	content  string
	vector   []float64
	metadata map[string]any
}

var _ core.SemanticRetriever = (*Index)(nil)

// NewIndex builds an empty index over the given embedder.
func NewIndex(embedder core.Embedder) *Index {
	return &Index{embedder: embedder}
}

// Add embeds and stores one chunk. An existing chunk with the same id is
// replaced.
func (i *Index) Add(ctx context.Context, id, content string, metadata map[string]any) error {
	vectors, err := i.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("index add %s: %w", id, err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("index add %s: embedder returned %d vectors", id, len(vectors))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for n := range i.entries {
		if i.entries[n].id == id {
			i.entries[n] = entry{id: id, content: content, vector: vectors[0], metadata: metadata}
			return nil
		}
	}
	i.entries = append(i.entries, entry{id: id, content: content, vector: vectors[0], metadata: metadata})
	return nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// RetrieveSemantic implements core.SemanticRetriever. Results are ordered by
// descending cosine similarity.
func (i *Index) RetrieveSemantic(ctx context.Context, query string, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("retrieve: embedder returned no vector")
	}
	qv := vectors[0]

	i.mu.RLock()
	scored := make([]core.ScoredChunk, 0, len(i.entries))
	for _, e := range i.entries {
		scored = append(scored, core.ScoredChunk{
			ID:       e.id,
			Content:  e.content,
			Score:    cosine(qv, e.vector),
			Metadata: e.metadata,
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
