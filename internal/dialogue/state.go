// Package dialogue implements the multi-turn conversation that
// collects search criteria, launches the search and serves follow-up
// questions over the delivered results.
package dialogue

import (
	"strings"
	"time"

	"github.com/Asul0/belg-agent/models"
)

// Stage is the current step of the criteria-collection conversation.
type Stage string

const (
	StageAwaitingINN          Stage = "awaiting_inn"
	StageAwaitingIndustry     Stage = "awaiting_industry"
	StageAwaitingCountry      Stage = "awaiting_country"
	StageAwaitingPeriod       Stage = "awaiting_period"
	StageAwaitingEventType    Stage = "awaiting_event_type"
	StageAwaitingFormat       Stage = "awaiting_format"
	StageAwaitingConfirmation Stage = "awaiting_confirmation"
	StagePostSearch           Stage = "post_search"
	StageAwaitingNewCountry   Stage = "awaiting_new_country"
)

// State is everything remembered about one chat between messages.
type State struct {
	ChatID     int64
	Stage      Stage
	INN        string
	ClientName string
	Industry   string
	Country    string
	Period     string
	EventType  string
	ExtraInfo  []string

	// LastResults keeps the events already delivered to the user so
	// follow-up questions can be answered without a new search.
	LastResults []models.Event

	// Generation increments on every reset so replies of an abandoned
	// search can be recognized and dropped.
	Generation int

	UpdatedAt time.Time
}

func (s *State) Criteria() models.SearchCriteria {
	return models.SearchCriteria{
		Industry:  s.Industry,
		Country:   s.Country,
		Period:    s.Period,
		EventType: s.EventType,
		ExtraInfo: strings.Join(s.ExtraInfo, ", "),
	}
}

// AddExtraInfo appends a free-form hint, keeping insertion order and
// skipping duplicates.
func (s *State) AddExtraInfo(info string) {
	info = strings.TrimSpace(info)
	if info == "" {
		return
	}
	for _, existing := range s.ExtraInfo {
		if existing == info {
			return
		}
	}
	s.ExtraInfo = append(s.ExtraInfo, info)
}
