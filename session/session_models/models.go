package session_models

import "time"

// DocChunk is one indexed slice of a scraped page.
type DocChunk struct {
	DocID      string
	URL        string
	Title      string
	Text       string
	ChunkIndex int
	IngestedAt time.Time
}

// SearchHit is one ranked retrieval result.
type SearchHit struct {
	DocID string  `json:"doc_id"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
