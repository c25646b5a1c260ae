package session

import (
	"time"

	"github.com/Asul0/belg-agent/session/session_models"
)

// Store manages retrieval sessions. A session lives for the duration
// of one search (plus a short TTL) and holds the chunk corpus built
// from the scraped pages.
type Store interface {
	EnsureSession(id string, ttl time.Duration) (Session, error)
	GetSession(id string) (Session, error)
}

// Session is one search's chunk corpus: a BM25 index plus in-memory
// vectors over the same documents.
type Session interface {
	ID() string
	Expire(ttl time.Duration)
	AddChunk(chunk session_models.DocChunk) error
	Chunk(docID string) (session_models.DocChunk, bool)
	Count() int
	SetVector(docID string, v []float32)
	Bm25Search(q string, k int) ([]session_models.SearchHit, error)
	VectorSearch(q []float32, k int) []session_models.SearchHit
	FuseRRF(a, b []session_models.SearchHit, k int) []session_models.SearchHit
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)
