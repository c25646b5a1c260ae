package search

import (
	"context"
	"log"
	"time"

	"github.com/Asul0/belg-agent/internal/telemetry"
	"github.com/Asul0/belg-agent/models"
	"github.com/Asul0/belg-agent/session/session_models"
)

// Pipeline wires the full search flow: query generation, web
// discovery, scraping, chunking, hybrid retrieval and LLM
// classification.
type Pipeline struct {
	Queries    QueryGenerator
	Collector  *Collector
	Chunker    Chunker
	Retriever  *Retriever
	Classifier *Classifier
	Metrics    *telemetry.Metrics
	Logger     *log.Logger
}

// FindAndSummarizeEvents runs the pipeline end to end. The returned
// envelope always carries either an ErrorMessage or the three event
// arrays, never both. TotalLinksAnalyzed is filled as soon as link
// collection has happened, including on later-stage failures.
func (p *Pipeline) FindAndSummarizeEvents(ctx context.Context, criteria models.SearchCriteria) models.SearchResult {
	started := time.Now()
	p.Logger.Printf("starting search for criteria: %+v", criteria)

	queries := p.Queries.Generate(criteria)
	if len(queries) == 0 {
		p.Metrics.IncStageFailure("query_generation")
		return models.SearchResult{ErrorMessage: "Не удалось сформировать поисковые запросы."}
	}
	p.Logger.Printf("generated %d search queries", len(queries))

	links, pages := p.Collector.Collect(ctx, queries)
	if len(links) == 0 {
		p.Metrics.IncStageFailure("web_search")
		return models.SearchResult{ErrorMessage: "К сожалению, по вашим критериям не удалось найти релевантных страниц в поиске."}
	}
	total := len(links)

	if len(pages) == 0 {
		p.Metrics.IncStageFailure("scrape")
		return models.SearchResult{
			ErrorMessage:       "Не удалось извлечь текстовое содержимое с найденных страниц.",
			TotalLinksAnalyzed: total,
		}
	}
	p.Logger.Printf("scraped %d/%d pages with text", len(pages), total)

	var chunks []session_models.DocChunk
	for url, text := range pages {
		chunks = append(chunks, p.Chunker.Split(url, "", text)...)
	}

	retrieved, err := p.Retriever.Retrieve(ctx, chunks, criteria.QueryString())
	if err != nil {
		p.Metrics.IncStageFailure("retrieval")
		p.Logger.Printf("retrieval failed: %v", err)
		return models.SearchResult{
			ErrorMessage:       "Произошла ошибка на этапе анализа текста.",
			TotalLinksAnalyzed: total,
		}
	}
	if len(retrieved) == 0 {
		p.Metrics.IncStageFailure("retrieval")
		return models.SearchResult{
			ErrorMessage:       "Анализ текста не выявил релевантных фрагментов.",
			TotalLinksAnalyzed: total,
		}
	}
	p.Logger.Printf("retrieved %d chunks for classification", len(retrieved))

	perfect, nearDate, mismatched := p.Classifier.ExtractAndCategorize(ctx, retrieved, criteria)

	p.Metrics.ObserveSearch(time.Since(started), total)
	p.Logger.Printf("search finished in %s, links analyzed: %d", time.Since(started).Round(time.Millisecond), total)
	return models.SearchResult{
		PerfectMatches:     perfect,
		NearDateMatches:    nearDate,
		OtherMismatches:    mismatched,
		TotalLinksAnalyzed: total,
	}
}
