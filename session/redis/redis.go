package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Asul0/belg-agent/session"
	"github.com/Asul0/belg-agent/session/session_models"
	"github.com/Asul0/belg-agent/session/session_object"
)

// Store keeps chunk metadata in redis so several bot replicas can
// share one scrape corpus; the bleve index and vectors stay in
// process, since they are rebuilt per search anyway.
type Store struct {
	client *redis.Client
}

func NewRedisSessionStore(addr, password string, db int) session.Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb}
}

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	ctx := context.Background()
	if id != "" {
		key := chunksKey(id)
		exists, err := store.client.Exists(ctx, key).Result()
		if err == nil && exists == 1 {
			sess, err := newRedisSession(store.client, id, ttl)
			if err != nil {
				return nil, err
			}
			_ = store.client.Expire(ctx, key, ttl).Err()
			if err := sess.rebuild(ctx); err != nil {
				return nil, err
			}
			return sess, nil
		}
	}

	sess, err := newRedisSession(store.client, uuid.NewString(), ttl)
	if err != nil {
		return nil, err
	}
	if err := store.client.HSet(ctx, chunksKey(sess.id), "_init", "1").Err(); err != nil {
		return nil, fmt.Errorf("init redis session: %w", err)
	}
	_ = store.client.Expire(ctx, chunksKey(sess.id), ttl).Err()
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	ctx := context.Background()
	exists, err := store.client.Exists(ctx, chunksKey(id)).Result()
	if err != nil || exists == 0 {
		return nil, nil
	}
	sess, err := newRedisSession(store.client, id, 0)
	if err != nil {
		return nil, err
	}
	if err := sess.rebuild(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func chunksKey(id string) string { return fmt.Sprintf("session:%s:chunks", id) }

// Session mirrors the in-memory session but persists chunk metadata
// through redis. The local session object is the index/vector side.
type Session struct {
	client *redis.Client
	id     string
	ttl    time.Duration
	local  *session_object.Session
}

func newRedisSession(client *redis.Client, id string, ttl time.Duration) (*Session, error) {
	local, err := session_object.NewSession(id, ttl)
	if err != nil {
		return nil, err
	}
	return &Session{client: client, id: id, ttl: ttl, local: local}, nil
}

// rebuild re-indexes chunks found in redis into the local bleve index.
func (s *Session) rebuild(ctx context.Context) error {
	entries, err := s.client.HGetAll(ctx, chunksKey(s.id)).Result()
	if err != nil {
		return fmt.Errorf("load redis session %s: %w", s.id, err)
	}
	for field, raw := range entries {
		if field == "_init" {
			continue
		}
		var chunk session_models.DocChunk
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			continue
		}
		if err := s.local.AddChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Expire(ttl time.Duration) {
	s.ttl = ttl
	s.local.Expire(ttl)
	_ = s.client.Expire(context.Background(), chunksKey(s.id), ttl).Err()
}

func (s *Session) AddChunk(chunk session_models.DocChunk) error {
	raw, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if err := s.client.HSet(context.Background(), chunksKey(s.id), chunk.DocID, raw).Err(); err != nil {
		return fmt.Errorf("store chunk: %w", err)
	}
	return s.local.AddChunk(chunk)
}

func (s *Session) Chunk(docID string) (session_models.DocChunk, bool) {
	if c, ok := s.local.Chunk(docID); ok {
		return c, true
	}
	raw, err := s.client.HGet(context.Background(), chunksKey(s.id), docID).Result()
	if err != nil {
		return session_models.DocChunk{}, false
	}
	var chunk session_models.DocChunk
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
		return session_models.DocChunk{}, false
	}
	return chunk, true
}

func (s *Session) Count() int { return s.local.Count() }

func (s *Session) SetVector(docID string, v []float32) { s.local.SetVector(docID, v) }

func (s *Session) Bm25Search(q string, k int) ([]session_models.SearchHit, error) {
	return s.local.Bm25Search(q, k)
}

func (s *Session) VectorSearch(q []float32, k int) []session_models.SearchHit {
	return s.local.VectorSearch(q, k)
}

func (s *Session) FuseRRF(a, b []session_models.SearchHit, k int) []session_models.SearchHit {
	return s.local.FuseRRF(a, b, k)
}
