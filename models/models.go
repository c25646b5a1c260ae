package models

import "strings"

// Event is a single business event as extracted and categorized by the
// LLM. The pipeline never constructs events itself; it only transports
// what the classifier returned.
type Event struct {
	Name           string `json:"name"`
	Dates          string `json:"dates"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	Source         string `json:"source,omitempty"`
	MismatchReason string `json:"mismatch_reason,omitempty"`
}

// SearchCriteria is an immutable snapshot of what the user asked for,
// taken at the moment a search is launched.
type SearchCriteria struct {
	Industry  string `json:"industry,omitempty"`
	Country   string `json:"country,omitempty"`
	Period    string `json:"period,omitempty"`
	EventType string `json:"event_type,omitempty"`
	ExtraInfo string `json:"extra_info,omitempty"`
}

// QueryString joins the non-empty criteria fields into a single string
// used as the retrieval query.
func (c SearchCriteria) QueryString() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.EventType, c.Industry, c.Country, c.Period} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Empty reports whether no criteria field is set at all.
func (c SearchCriteria) Empty() bool {
	return c.Industry == "" && c.Country == "" && c.Period == "" && c.EventType == ""
}

// SearchResult is the uniform envelope every pipeline invocation
// returns. Exactly one of two shapes holds: ErrorMessage is set, or the
// three match slices are well-formed (possibly all empty).
type SearchResult struct {
	PerfectMatches     []Event `json:"perfect_matches"`
	NearDateMatches    []Event `json:"near_date_matches"`
	OtherMismatches    []Event `json:"other_mismatches"`
	TotalLinksAnalyzed int     `json:"total_links_analyzed"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// Failed reports whether the envelope carries an error instead of
// match lists.
func (r SearchResult) Failed() bool { return r.ErrorMessage != "" }

// RetrievedChunk is an ephemeral slice of scraped page text that lives
// only within one pipeline invocation.
type RetrievedChunk struct {
	Text   string
	Source string
}

// ClientRecord is what the client lookup collaborator returns for a
// known tax identifier.
type ClientRecord struct {
	Name     string
	Industry string
}
