// Package nlu covers the small language-understanding calls around
// the main pipeline: answering follow-up questions about delivered
// results and spotting change-of-criteria requests in free text.
package nlu

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/Asul0/belg-agent/models"
)

type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

type Assistant struct {
	LLM    Chatter
	Logger *log.Logger
}

// ChangeRequest is a partial update to the search criteria detected in
// a free-text message. Nil fields mean "unchanged".
type ChangeRequest struct {
	Country   string `json:"country"`
	EventType string `json:"event_type"`
}

func (r *ChangeRequest) Empty() bool {
	return r == nil || (r.Country == "" && r.EventType == "")
}

const answerSystemPrompt = `Ты — вежливый ассистент по бизнес-мероприятиям. Пользователь уже получил результаты поиска и задаёт уточняющий вопрос. Отвечай кратко и ТОЛЬКО на основе переданного контекста с найденными мероприятиями. Если в контексте нет ответа, честно скажи, что такой информации в найденных результатах нет.`

// ContextualAnswer answers a follow-up question strictly against the
// already delivered events.
func (a *Assistant) ContextualAnswer(ctx context.Context, question string, results []models.Event) (string, error) {
	contextJSON, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	user := "Контекст (найденные мероприятия в формате JSON):\n" + string(contextJSON) +
		"\n\nВопрос пользователя: " + question
	answer, err := a.LLM.Chat(ctx, answerSystemPrompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

const changeSystemPrompt = `Ты — классификатор намерений. Определи, просит ли пользователь изменить параметры уже выполненного поиска мероприятий: другую страну и/или другой тип мероприятия.

Ответь ТОЛЬКО JSON-объектом вида {"country": "...", "event_type": "..."}.
- Если пользователь называет новую страну, заполни "country", иначе оставь пустую строку.
- Если пользователь называет новый тип мероприятия (выставка, конференция, форум и т.п.), заполни "event_type", иначе оставь пустую строку.
- Если сообщение не является просьбой изменить параметры поиска, верни {"country": "", "event_type": ""}.`

// DetectChangeRequest looks for a change-of-criteria intent in a
// free-text message. It returns nil when no change was requested or
// when the model reply could not be interpreted.
func (a *Assistant) DetectChangeRequest(ctx context.Context, text string) *ChangeRequest {
	reply, err := a.LLM.Chat(ctx, changeSystemPrompt, text)
	if err != nil {
		a.Logger.Printf("change detection call failed: %v", err)
		return nil
	}
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil
	}
	var req ChangeRequest
	if err := json.Unmarshal([]byte(reply[start:end+1]), &req); err != nil {
		a.Logger.Printf("change detection reply not parseable: %v", err)
		return nil
	}
	req.Country = strings.TrimSpace(req.Country)
	req.EventType = strings.TrimSpace(req.EventType)
	if req.Empty() {
		return nil
	}
	return &req
}
