package search

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Asul0/belg-agent/session/session_models"
)

// Chunker splits page text into overlapping segments sized for the
// retrieval index. The overlap preserves continuity across segment
// boundaries.
type Chunker struct {
	Size    int
	Overlap int
}

// Split builds the indexable chunks for one page. Each chunk carries
// its source URL both in metadata and inline in the text, so the
// classifier can cite it.
func (c Chunker) Split(url, title, text string) []session_models.DocChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	hash := sha1Hex(text)
	parts := makeChunks(text, c.Size, c.Overlap)
	chunks := make([]session_models.DocChunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, session_models.DocChunk{
			DocID:      fmt.Sprintf("%s#%03d", hash, i),
			URL:        url,
			Title:      title,
			Text:       fmt.Sprintf("ИСТОЧНИК: %s\n\nТЕКСТ: %s", url, part),
			ChunkIndex: i,
		})
	}
	return chunks
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// makeChunks slices on rune boundaries: the pages are mostly Cyrillic,
// so byte offsets would split characters and halve the effective size.
func makeChunks(text string, approx, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= approx {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + approx
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
