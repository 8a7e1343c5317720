package embedding

import (
	"context"
	"fmt"

	"clone-llm/internal/domain"
	"clone-llm/internal/llm"
)

// kindPrefix frames the same raw text differently per vector kind so a
// single embedding model produces six distinguishable views of one turn
// (SPEC_FULL.md Open Question 2: one model, kind-prefixed text, instead of
// six separately-trained models).
var kindPrefix = map[string]string{
	domain.VectorKindContent:      "content: ",
	domain.VectorKindEmotion:      "emotional tone: ",
	domain.VectorKindSemantic:     "topic and meaning: ",
	domain.VectorKindRelationship: "relational dynamic: ",
	domain.VectorKindContext:      "situational context: ",
	domain.VectorKindPersonality:  "personality expression: ",
}

// Provider produces the named embedding vectors a memory record carries,
// reusing one underlying EmbeddingClient connection (mirrors the teacher's
// llmClientWithEmbedding composition in narrative_service.go).
type Provider struct {
	client llm.EmbeddingClient
}

func NewProvider(client llm.EmbeddingClient) *Provider {
	return &Provider{client: client}
}

// Embed produces a single named vector for text under the given kind.
func (p *Provider) Embed(ctx context.Context, text, kind string) ([]float32, error) {
	prefix, ok := kindPrefix[kind]
	if !ok {
		return nil, fmt.Errorf("embedding: unknown vector kind %q", kind)
	}
	vec, err := p.client.CreateEmbedding(ctx, prefix+text)
	if err != nil {
		return nil, fmt.Errorf("embedding: create %s vector: %w", kind, err)
	}
	return vec, nil
}

// EmbedAll produces every named vector for a single piece of text, stopping
// at the first failure. Callers needing partial-failure tolerance across
// kinds should call Embed directly per kind instead (as the pipeline
// orchestrator's scatter-gather branches do).
func (p *Provider) EmbedAll(ctx context.Context, text string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(domain.AllVectorKinds))
	for _, kind := range domain.AllVectorKinds {
		vec, err := p.Embed(ctx, text, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = vec
	}
	return out, nil
}
