package dialogue

import (
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/Asul0/belg-agent/internal/telemetry"
)

// Store keeps per-chat conversation state in memory and expires
// abandoned dialogues on a cron schedule.
type Store struct {
	mu     sync.Mutex
	states map[int64]*State

	ttl     time.Duration
	metrics *telemetry.Metrics
	logger  *log.Logger
}

func NewStore(ttl time.Duration, metrics *telemetry.Metrics, logger *log.Logger) *Store {
	return &Store{
		states:  make(map[int64]*State),
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the state for a chat, creating a fresh one at the INN
// stage when the chat is new.
func (s *Store) Get(chatID int64) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[chatID]
	if !ok {
		st = &State{ChatID: chatID, Stage: StageAwaitingINN}
		s.states[chatID] = st
		s.metrics.SetActiveDialogues(len(s.states))
	}
	st.UpdatedAt = time.Now()
	return st
}

// Reset drops every collected field and restarts from the INN stage.
// The generation counter survives so stale search replies are still
// recognized.
func (s *Store) Reset(chatID int64) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := 0
	if old, ok := s.states[chatID]; ok {
		gen = old.Generation + 1
	}
	st := &State{ChatID: chatID, Stage: StageAwaitingINN, Generation: gen, UpdatedAt: time.Now()}
	s.states[chatID] = st
	s.metrics.SetActiveDialogues(len(s.states))
	return st
}

// ResetPreservingIdentity restarts criteria collection while keeping
// who the client is. A known tax ID resumes at the country question,
// an anonymous chat starts over from the INN question.
func (s *Store) ResetPreservingIdentity(chatID int64) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.states[chatID]
	if !ok {
		old = &State{ChatID: chatID}
	}
	st := &State{
		ChatID:     chatID,
		Stage:      StageAwaitingINN,
		INN:        old.INN,
		ClientName: old.ClientName,
		Industry:   old.Industry,
		Generation: old.Generation + 1,
		UpdatedAt:  time.Now(),
	}
	if st.INN != "" {
		st.Stage = StageAwaitingCountry
	}
	s.states[chatID] = st
	return st
}

// Snapshot copies the current states for inspection over the ops API.
func (s *Store) Snapshot() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *st)
	}
	return out
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for id, st := range s.states {
		if st.UpdatedAt.Before(cutoff) {
			delete(s.states, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Printf("swept %d expired dialogues", removed)
	}
	s.metrics.SetActiveDialogues(len(s.states))
}

// RunSweeper expires idle dialogues on the given cron schedule until
// the context is canceled.
func (s *Store) RunSweeper(done <-chan struct{}, schedule string) error {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return err
	}
	go func() {
		for {
			next := expr.Next(time.Now())
			if next.IsZero() {
				return
			}
			select {
			case <-done:
				return
			case <-time.After(time.Until(next)):
				s.sweep()
			}
		}
	}()
	return nil
}
