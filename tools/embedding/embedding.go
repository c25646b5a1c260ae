package embedding

import (
	"context"
)

// Embedder is the slice of the LLM provider the retriever needs.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type Embedding struct {
	embedder Embedder
}

// EmbedVec pairs a document ID with its vector.
type EmbedVec struct {
	DocID string
	Vec   []float32
}

func NewEmbedding(embedder Embedder) *Embedding {
	return &Embedding{embedder: embedder}
}

func (e Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embedder.CreateEmbedding(ctx, texts)
}
