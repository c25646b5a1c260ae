package search

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/Asul0/belg-agent/internal/telemetry"
	"github.com/Asul0/belg-agent/models"
)

// Chatter is the slice of the LLM provider the classifier needs.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Classifier delegates event extraction and categorization to the LLM
// in a single combined call and validates the structured reply.
type Classifier struct {
	LLM     Chatter
	Logger  *log.Logger
	Metrics *telemetry.Metrics
}

// categorized is the exact reply shape the model is instructed to
// return.
type categorized struct {
	PerfectMatches  []models.Event `json:"perfect_matches"`
	NearDateMatches []models.Event `json:"near_date_matches"`
	OtherMismatches []models.Event `json:"other_mismatches"`
}

const classifySystemPrompt = `Ты — ведущий аналитик по бизнес-мероприятиям. Твоя задача — выполнить полный цикл анализа предоставленных текстов по заданным критериям и вернуть готовый результат в виде ОДНОГО JSON-объекта.

ТВОЙ АЛГОРИТМ ДЕЙСТВИЙ:
1. ИЗВЛЕЧЕНИЕ: внимательно прочитай ВСЕ фрагменты текста и найди упоминания всех бизнес-мероприятий. Для каждого извлеки: name, dates, location, description.
2. КАТЕГОРИЗАЦИЯ: сравни каждое мероприятие с критериями поиска, используя семантическое понимание (например, "мороженое" относится к "пищевой промышленности").
   - Полное совпадение (отрасль, страна И ТОЧНОЕ СОВПАДЕНИЕ МЕСЯЦА в периоде) — массив perfect_matches.
   - Страна и отрасль подходят, но дата в пределах ±3 месяцев от запрошенной (не в том же месяце) — массив near_date_matches.
   - Все остальные найденные мероприятия — массив other_mismatches.
3. ОБОСНОВАНИЕ: для каждого мероприятия в near_date_matches и other_mismatches ОБЯЗАТЕЛЬНО добавь ключ mismatch_reason с кратким объяснением.

ПРАВИЛА ФОРМАТА ОТВЕТА:
- Ответ — ТОЛЬКО ОДИН JSON-объект, больше ничего.
- Ровно три ключа: perfect_matches, near_date_matches, other_mismatches; значения — массивы объектов мероприятий.
- В description включай только суть (1-2 предложения).
- Если во фрагменте есть ссылка на источник, добавь её в ключ source.`

// ExtractAndCategorize runs the combined extract-and-classify call.
// A malformed or unparseable reply degrades to the empty three-array
// result: classification failure means "nothing found", never a crash.
func (c *Classifier) ExtractAndCategorize(ctx context.Context, chunks []models.RetrievedChunk, criteria models.SearchCriteria) (perfect, nearDate, mismatched []models.Event) {
	perfect = []models.Event{}
	nearDate = []models.Event{}
	mismatched = []models.Event{}
	if len(chunks) == 0 {
		return
	}

	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		c.Logger.Printf("marshal criteria: %v", err)
		return
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	userPrompt := strings.Join([]string{
		"Вот критерии поиска от клиента и фрагменты текста для анализа. Выполни задачу согласно твоему алгоритму.",
		"Критерии поиска:\n" + string(criteriaJSON),
		"Фрагменты текста для анализа:\n" + strings.Join(texts, "\n\n--- ФРАГМЕНТ ТЕКСТА ---\n\n"),
	}, "\n\n")

	reply, err := c.LLM.Chat(ctx, classifySystemPrompt, userPrompt)
	if err != nil {
		c.Logger.Printf("classification call failed: %v", err)
		return
	}

	parsed, ok := parseCategorized(reply)
	if !ok {
		c.Metrics.IncClassifierParseFailure()
		c.Logger.Printf("classification reply was not the expected structure, raw payload: %s", reply)
		return
	}
	c.Logger.Printf("classified events: perfect=%d near=%d other=%d",
		len(parsed.PerfectMatches), len(parsed.NearDateMatches), len(parsed.OtherMismatches))
	return orEmpty(parsed.PerfectMatches), orEmpty(parsed.NearDateMatches), orEmpty(parsed.OtherMismatches)
}

// parseCategorized strips optional code-fence wrapping and requires
// all three keys to be present in the object.
func parseCategorized(reply string) (categorized, bool) {
	clean := strings.TrimSpace(reply)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &keys); err != nil {
		return categorized{}, false
	}
	for _, k := range []string{"perfect_matches", "near_date_matches", "other_mismatches"} {
		if _, ok := keys[k]; !ok {
			return categorized{}, false
		}
	}
	var out categorized
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return categorized{}, false
	}
	return out, true
}

func orEmpty(events []models.Event) []models.Event {
	if events == nil {
		return []models.Event{}
	}
	return events
}
