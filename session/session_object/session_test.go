package session_object

import (
	"testing"
	"time"

	"github.com/Asul0/belg-agent/session/session_models"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("test", time.Hour)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func addChunk(t *testing.T, s *Session, id, text string) {
	t.Helper()
	err := s.AddChunk(session_models.DocChunk{DocID: id, URL: "https://example.com/" + id, Text: text})
	if err != nil {
		t.Fatalf("AddChunk %s: %v", id, err)
	}
}

func TestVectorSearchRanking(t *testing.T) {
	s := newTestSession(t)
	addChunk(t, s, "a", "первый")
	addChunk(t, s, "b", "второй")
	addChunk(t, s, "c", "третий")
	s.SetVector("a", []float32{1, 0, 0})
	s.SetVector("b", []float32{0.9, 0.1, 0})
	s.SetVector("c", []float32{0, 0, 1})

	hits := s.VectorSearch([]float32{1, 0, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].DocID != "a" || hits[1].DocID != "b" {
		t.Errorf("unexpected ranking: %v", hits)
	}
	if hits[0].Rank != 1 || hits[1].Rank != 2 {
		t.Errorf("ranks not assigned: %v", hits)
	}
}

func TestBm25Search(t *testing.T) {
	s := newTestSession(t)
	addChunk(t, s, "food", "выставка пищевой промышленности мороженое")
	addChunk(t, s, "metal", "конференция металлургия сталь прокат")

	hits, err := s.Bm25Search("мороженое", 5)
	if err != nil {
		t.Fatalf("Bm25Search: %v", err)
	}
	if len(hits) == 0 || hits[0].DocID != "food" {
		t.Fatalf("expected the food chunk first, got %v", hits)
	}
}

func TestFuseRRFPrefersSharedHits(t *testing.T) {
	s := newTestSession(t)
	a := []session_models.SearchHit{{DocID: "x", Rank: 1}, {DocID: "y", Rank: 2}}
	b := []session_models.SearchHit{{DocID: "y", Rank: 1}, {DocID: "z", Rank: 2}}

	fused := s.FuseRRF(a, b, 10)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused hits, got %d", len(fused))
	}
	if fused[0].DocID != "y" {
		t.Errorf("a document present in both lists must rank first, got %v", fused)
	}
	if fused[0].Rank != 1 {
		t.Errorf("fused ranks must be reassigned, got %v", fused)
	}
}

func TestFuseRRFHonorsK(t *testing.T) {
	s := newTestSession(t)
	var a []session_models.SearchHit
	for i := 1; i <= 5; i++ {
		a = append(a, session_models.SearchHit{DocID: string(rune('a' + i)), Rank: i})
	}
	if fused := s.FuseRRF(a, nil, 3); len(fused) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(fused))
	}
}

func TestChunkRoundTrip(t *testing.T) {
	s := newTestSession(t)
	addChunk(t, s, "a", "текст")
	chunk, ok := s.Chunk("a")
	if !ok || chunk.URL != "https://example.com/a" {
		t.Fatalf("chunk lookup failed: %v %v", chunk, ok)
	}
	if _, ok := s.Chunk("missing"); ok {
		t.Fatal("missing chunk must not be found")
	}
	if s.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.Count())
	}
}

func TestExpire(t *testing.T) {
	s, err := NewSession("short", -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Expired() {
		t.Fatal("session with negative ttl must be expired")
	}
	s.Expire(time.Hour)
	if s.Expired() {
		t.Fatal("session must survive after extension")
	}
}
