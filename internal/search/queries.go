package search

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Asul0/belg-agent/models"
)

var yearRe = regexp.MustCompile(`\b(20\d{2})\b`)

// englishTerms is the minimal transliteration the English-variant
// query needs; search engines fill the rest from context.
var englishTerms = strings.NewReplacer(
	"промышленность", "industry",
	"пищевая", "food",
	"Пищевая", "food",
)

// QueryGenerator derives a diverse set of search queries from the
// criteria: a fully specific one, a relaxed one, an English variant,
// site-restricted queries against known aggregators, and a generic
// calendar query keyed by country and year.
type QueryGenerator struct {
	AggregatorSites []string
	// Now lets tests pin the current-year fallback.
	Now func() time.Time
}

// Generate returns a sorted, duplicate-free query list. An empty
// result means no criteria field was usable and the caller must stop.
func (g QueryGenerator) Generate(c models.SearchCriteria) []string {
	industry := strings.TrimSpace(c.Industry)
	country := strings.TrimSpace(c.Country)
	period := strings.TrimSpace(c.Period)
	eventType := strings.TrimSpace(c.EventType)
	if eventType == "" {
		eventType = "мероприятия"
	}

	year := g.yearFrom(period)

	var queries []string

	if industry != "" && country != "" && period != "" {
		queries = append(queries, strings.Join([]string{eventType, industry, country, period}, " "))
		queries = append(queries, strings.Join([]string{"бизнес мероприятия", industry, country, period}, " "))
	}
	if industry != "" && country != "" {
		industryEN := englishTerms.Replace(industry)
		queries = append(queries, strings.Join([]string{industryEN, "exhibition conference", country, year}, " "))
		for _, site := range g.AggregatorSites {
			queries = append(queries, strings.Join([]string{"site:" + site, industry, country, year}, " "))
		}
	}
	if country != "" {
		queries = append(queries, strings.Join([]string{"календарь выставок", country, year}, " "))
	}

	seen := make(map[string]struct{}, len(queries))
	unique := queries[:0]
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		unique = append(unique, q)
	}
	sort.Strings(unique)
	return unique
}

// yearFrom extracts a 20xx year from the period, defaulting to the
// current year.
func (g QueryGenerator) yearFrom(period string) string {
	if m := yearRe.FindStringSubmatch(period); m != nil {
		return m[1]
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return strconv.Itoa(now().Year())
}
