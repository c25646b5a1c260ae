package models

// Result is one organic search hit. Sponsored entries are never
// returned by a searcher.
type Result struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}
