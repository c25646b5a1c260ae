package session_object

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/Asul0/belg-agent/session/session_models"
	"github.com/Asul0/belg-agent/tools/embedding"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Session keeps one search's chunks in a memory-only bleve index plus
// a flat vector list, which is plenty for corpora of a few thousand
// chunks.
type Session struct {
	id        string
	expiresAt time.Time
	bleve     bleve.Index
	meta      map[string]session_models.DocChunk
	vectors   []embedding.EmbedVec
	mu        sync.RWMutex
}

func NewSession(id string, ttl time.Duration) (*Session, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Session{
		id:        id,
		expiresAt: time.Now().Add(ttl),
		bleve:     index,
		meta:      make(map[string]session_models.DocChunk),
	}, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Expire(ttl time.Duration) { s.expiresAt = time.Now().Add(ttl) }
func (s *Session) Expired() bool            { return time.Now().After(s.expiresAt) }

func (s *Session) AddChunk(chunk session_models.DocChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[chunk.DocID] = chunk
	return s.bleve.Index(chunk.DocID, chunk)
}

func (s *Session) Chunk(docID string) (session_models.DocChunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.meta[docID]
	return c, ok
}

func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meta)
}

func (s *Session) SetVector(docID string, v []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, embedding.EmbedVec{DocID: docID, Vec: v})
}

func (s *Session) Bm25Search(q string, k int) ([]session_models.SearchHit, error) {
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := s.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []session_models.SearchHit
	for i, hit := range res.Hits {
		doc := s.meta[hit.ID]
		out = append(out, session_models.SearchHit{
			DocID: hit.ID, URL: doc.URL, Score: hit.Score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (s *Session) VectorSearch(q []float32, k int) []session_models.SearchHit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	var scoreds []scored
	for _, v := range s.vectors {
		scoreds = append(scoreds, scored{id: v.DocID, score: cosine(q, v.Vec)})
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []session_models.SearchHit
	for i, sc := range scoreds {
		doc := s.meta[sc.id]
		out = append(out, session_models.SearchHit{
			DocID: sc.id, URL: doc.URL, Score: sc.score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out
}

func (s *Session) FuseRRF(a, b []session_models.SearchHit, k int) []session_models.SearchHit {
	type agg struct {
		item  session_models.SearchHit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []session_models.SearchHit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				m[h.DocID] = &agg{item: h}
				x = m[h.DocID]
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	fused := make([]*agg, 0, len(m))
	for _, v := range m {
		fused = append(fused, v)
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].score > fused[j].score })

	var out []session_models.SearchHit
	for i, f := range fused {
		if i >= k {
			break
		}
		hit := f.item
		hit.Score = f.score
		hit.Rank = i + 1
		out = append(out, hit)
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
