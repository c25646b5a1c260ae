package inmemory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Asul0/belg-agent/session"
	"github.com/Asul0/belg-agent/session/session_object"
)

type Store struct {
	sessions map[string]*session_object.Session
	mu       sync.Mutex
}

func NewInMemorySessionStore() session.Store {
	return &Store{sessions: make(map[string]*session_object.Session)}
}

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if id != "" {
		if sess, ok := store.sessions[id]; ok {
			sess.Expire(ttl)
			return sess, nil
		}
	}

	sess, err := session_object.NewSession(uuid.NewString(), ttl)
	if err != nil {
		return nil, err
	}
	store.sessions[sess.ID()] = sess

	// Expired sessions are collected opportunistically on creation.
	for sid, s := range store.sessions {
		if s != sess && s.Expired() {
			delete(store.sessions, sid)
		}
	}
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	sess, ok := store.sessions[id]
	if !ok {
		return nil, nil
	}
	return sess, nil
}
