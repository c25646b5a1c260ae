package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Asul0/belg-agent/config"
	"github.com/Asul0/belg-agent/models"
	"github.com/Asul0/belg-agent/session"
	"github.com/Asul0/belg-agent/session/inmemory"
	redis_session "github.com/Asul0/belg-agent/session/redis"
	"github.com/Asul0/belg-agent/session/session_models"
	"github.com/Asul0/belg-agent/tools/embedding"
)

// NewSessionStore builds the retrieval session store for the
// configured backend.
func NewSessionStore(storeType session.StoreType, redisCfg config.RedisConfig) (session.Store, error) {
	switch storeType {
	case session.InMemoryStore:
		return inmemory.NewInMemorySessionStore(), nil
	case session.RedisStore:
		return redis_session.NewRedisSessionStore(
			fmt.Sprintf("%s:%s", redisCfg.Host, redisCfg.Port),
			redisCfg.Pass,
			redisCfg.DB,
		), nil
	default:
		return nil, fmt.Errorf("unsupported session store type %q", storeType)
	}
}

// Retriever indexes the chunk corpus of one search and returns the
// top-K chunks most relevant to the criteria, fusing BM25 and vector
// ranks. Embedding and indexing never run on the dialogue path; the
// orchestrator calls Retrieve from the pipeline goroutine.
type Retriever struct {
	Embedding *embedding.Embedding
	Store     session.Store
	TopK      int
	TTL       time.Duration
	Logger    *log.Logger
}

// Retrieve embeds every chunk plus the criteria string into the same
// vector space and ranks the corpus against it. Any embedding or
// indexing failure is returned as an error; the pipeline must not
// proceed to classification with a broken corpus.
func (r *Retriever) Retrieve(ctx context.Context, chunks []session_models.DocChunk, query string) ([]models.RetrievedChunk, error) {
	sess, err := r.Store.EnsureSession("", r.TTL)
	if err != nil {
		return nil, fmt.Errorf("create retrieval session: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := sess.AddChunk(chunk); err != nil {
			return nil, fmt.Errorf("index chunk %s: %w", chunk.DocID, err)
		}
		texts[i] = chunk.Text
	}

	vecs, err := r.Embedding.EmbedMany(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(chunks), len(vecs))
	}
	for i, v := range vecs {
		sess.SetVector(chunks[i].DocID, v)
	}

	qvecs, err := r.Embedding.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed criteria: %w", err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("criteria embedding missing")
	}

	vectorHits := sess.VectorSearch(qvecs[0], r.TopK)
	bm25Hits, err := sess.Bm25Search(query, r.TopK)
	if err != nil {
		r.Logger.Printf("bm25 search failed, using vector ranks only: %v", err)
		bm25Hits = nil
	}
	hits := sess.FuseRRF(vectorHits, bm25Hits, r.TopK)

	out := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := sess.Chunk(hit.DocID)
		if !ok {
			continue
		}
		out = append(out, models.RetrievedChunk{Text: chunk.Text, Source: chunk.URL})
	}
	r.Logger.Printf("retrieved %d of %d chunks for criteria query", len(out), len(chunks))
	return out, nil
}
