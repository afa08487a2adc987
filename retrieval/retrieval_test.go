package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/minewatch/core"
)

// hashEmbedder maps texts to deterministic letter-frequency vectors so that
// texts sharing vocabulary score closer.
type hashEmbedder struct{ err error }

func (h hashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestIndex_RetrieveRanksBySimilarity(t *testing.T) {
	idx := NewIndex(hashEmbedder{})
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, "a", "roof fall underground coal", map[string]any{"report_id": "SA-1-2024"}))
	require.NoError(t, idx.Add(ctx, "b", "zzz qqq xxx", nil))

	hits, err := idx.RetrieveSemantic(ctx, "roof fall coal", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "SA-1-2024", hits[0].Metadata["report_id"])
}

func TestIndex_AddReplacesSameID(t *testing.T) {
	idx := NewIndex(hashEmbedder{})
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, "a", "first", nil))
	require.NoError(t, idx.Add(ctx, "a", "second", nil))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.RetrieveSemantic(ctx, "second", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "second", hits[0].Content)
}

func TestIndex_EmbedderFailure(t *testing.T) {
	idx := NewIndex(hashEmbedder{err: errors.New("down")})
	err := idx.Add(context.Background(), "a", "x", nil)
	assert.Error(t, err)
}

type stubKeyword struct {
	blocks []string
	err    error
}

func (s stubKeyword) RetrieveKeyword(context.Context, string, int) ([]string, error) {
	return s.blocks, s.err
}

func TestCombined_MergesAndDeduplicates(t *testing.T) {
	idx := NewIndex(hashEmbedder{})
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, "a", "roof fall at putki", nil))

	c := &Combined{Semantic: idx, Keyword: stubKeyword{blocks: []string{"roof fall at putki", "gas leak at jharia"}}}
	blocks, err := c.Gather(ctx, "roof fall", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"roof fall at putki", "gas leak at jharia"}, blocks)
}

func TestCombined_KeywordFailureFailsGather(t *testing.T) {
	c := &Combined{Keyword: stubKeyword{err: errors.New("fts down")}}
	_, err := c.Gather(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestCombined_NilSidesTolerated(t *testing.T) {
	c := &Combined{}
	blocks, err := c.Gather(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

var _ core.SemanticRetriever = (*Index)(nil)
