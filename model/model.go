// Package model contains provider-neutral model metadata and a mock
// generator for tests and examples. Concrete providers live in subpackages.
package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minewatch/minewatch/core"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Mock is a deterministic in-memory generator and embedder useful for tests
// and examples. Canned replies are matched by substring of the prompt.
type Mock struct {
	mu       sync.Mutex
	replies  map[string]string
	fallback string
	calls    []string
}

var (
	_ core.Generator = (*Mock)(nil)
	_ core.Embedder  = (*Mock)(nil)
)

// NewMock constructs a Mock with an echo fallback.
func NewMock() *Mock {
	return &Mock{replies: map[string]string{}}
}

// AddReply registers a canned reply returned when the prompt contains match.
func (m *Mock) AddReply(match, reply string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[match] = reply
	return m
}

// SetFallback sets the reply used when no canned match applies.
func (m *Mock) SetFallback(reply string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = reply
	return m
}

// Calls returns the prompts seen so far, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// GenerateText implements core.Generator.
func (m *Mock) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)
	for match, reply := range m.replies {
		if match != "" && strings.Contains(prompt, match) {
			return reply, nil
		}
	}
	if m.fallback != "" {
		return m.fallback, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}

// Embed implements core.Embedder with stable byte-frequency vectors.
func (m *Mock) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, 64)
		for _, b := range []byte(t) {
			v[int(b)%64]++
		}
		out[i] = v
	}
	return out, nil
}
