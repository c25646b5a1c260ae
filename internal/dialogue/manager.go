package dialogue

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/Asul0/belg-agent/internal/nlu"
	"github.com/Asul0/belg-agent/models"
)

// SearchPipeline runs the full search for confirmed criteria.
type SearchPipeline interface {
	FindAndSummarizeEvents(ctx context.Context, criteria models.SearchCriteria) models.SearchResult
}

// Assistant serves the post-search language-understanding calls.
type Assistant interface {
	ContextualAnswer(ctx context.Context, question string, results []models.Event) (string, error)
	DetectChangeRequest(ctx context.Context, text string) *nlu.ChangeRequest
}

// ClientLookup resolves a client record by INN.
type ClientLookup interface {
	FindByINN(inn string) (models.ClientRecord, bool, error)
}

// Outbound is one message to deliver back to the chat.
type Outbound struct {
	Text     string
	Keyboard Keyboard
}

// Manager drives the conversation state machine.
type Manager struct {
	Store        *Store
	Pipeline     SearchPipeline
	Assistant    Assistant
	Clients      ClientLookup
	MessageLimit int
	Logger       *log.Logger
}

var (
	innRe        = regexp.MustCompile(`^\d{10,12}$`)
	wholeYearRe  = regexp.MustCompile(`(?i)^весь\s+(20\d{2})\s+год$`)
	periodYearRe = regexp.MustCompile(`\b(20\d{2})\b`)
)

// StartDialogue resets the chat and begins criteria collection.
func (m *Manager) StartDialogue(chatID int64) []Outbound {
	m.Store.Reset(chatID)
	return m.outbound(Outbound{
		Text: "Здравствуйте! Я помогу подобрать бизнес-мероприятия: выставки, конференции и форумы по вашей отрасли.\n\nДля начала введите, пожалуйста, ИНН вашей компании (10-12 цифр).",
	})
}

// HandleText processes a plain text message according to the current
// stage.
func (m *Manager) HandleText(ctx context.Context, chatID int64, text string) []Outbound {
	text = strings.TrimSpace(text)
	st := m.Store.Get(chatID)

	switch st.Stage {
	case StageAwaitingINN:
		return m.handleINN(st, text)
	case StageAwaitingIndustry:
		st.Industry = text
		st.Stage = StageAwaitingCountry
		return m.outbound(Outbound{Text: "Принято. В какой стране искать мероприятия?"})
	case StageAwaitingCountry:
		st.Country = text
		st.Stage = StageAwaitingPeriod
		return m.outbound(Outbound{Text: "За какой период искать? Например: «март 2026» или «весь 2026 год»."})
	case StageAwaitingPeriod:
		st.Period = normalizePeriod(text)
		st.Stage = StageAwaitingEventType
		return m.outbound(Outbound{
			Text:     "Какие мероприятия вас интересуют?",
			Keyboard: eventTypeKeyboard(),
		})
	case StageAwaitingEventType:
		// Free-text answer instead of a button press.
		st.EventType = text
		st.Stage = StageAwaitingFormat
		return m.outbound(Outbound{
			Text:     "В каком формате?",
			Keyboard: formatKeyboard(),
		})
	case StageAwaitingFormat, StageAwaitingConfirmation:
		// Anything typed here is a refinement of the request.
		st.AddExtraInfo(text)
		st.Stage = StageAwaitingConfirmation
		return m.confirmation(st)
	case StageAwaitingNewCountry:
		// The new country goes through the usual summary: nothing is
		// searched until the user confirms.
		st.Country = text
		st.Stage = StageAwaitingConfirmation
		return m.confirmation(st)
	case StagePostSearch:
		return m.handlePostSearchText(ctx, st, text)
	default:
		return m.StartDialogue(chatID)
	}
}

// HandleCallback processes an inline button press.
func (m *Manager) HandleCallback(ctx context.Context, chatID int64, payload string) []Outbound {
	st := m.Store.Get(chatID)

	if value, ok := eventTypeByPayload[payload]; ok && st.Stage == StageAwaitingEventType {
		st.EventType = value
		st.Stage = StageAwaitingFormat
		return m.outbound(Outbound{Text: "В каком формате?", Keyboard: formatKeyboard()})
	}

	switch payload {
	case PayloadFormatOnline, PayloadFormatOffline, PayloadFormatPaid, PayloadFormatFree:
		if st.Stage != StageAwaitingFormat {
			return nil
		}
		st.AddExtraInfo(formatChoices[payload])
		return m.outbound(Outbound{
			Text:     fmt.Sprintf("Выбрано: %s. Можно выбрать ещё или нажать «В любом формате», чтобы продолжить.", strings.Join(st.ExtraInfo, ", ")),
			Keyboard: formatKeyboard(),
		})

	case PayloadFormatAny:
		if st.Stage != StageAwaitingFormat {
			return nil
		}
		st.Stage = StageAwaitingConfirmation
		return m.confirmation(st)

	case PayloadConfirmSearch:
		if st.Stage != StageAwaitingConfirmation {
			return nil
		}
		st.Stage = StagePostSearch
		return m.runSearch(ctx, st)

	case PayloadEditParams:
		if st.Stage != StageAwaitingConfirmation {
			return nil
		}
		st = m.Store.ResetPreservingIdentity(chatID)
		msg := "Давайте начнем заново. "
		if st.Stage == StageAwaitingCountry {
			msg += "В какой стране искать мероприятия?"
		} else {
			msg += "Введите ИНН вашей компании."
		}
		return m.outbound(Outbound{Text: msg})

	case PayloadCancelSearch:
		if st.Stage != StageAwaitingConfirmation {
			return nil
		}
		m.Store.Reset(chatID)
		return m.outbound(Outbound{Text: "Поиск отменён. Чтобы начать заново, отправьте /start."})

	case PayloadAltExpandPeriod:
		if st.Stage != StagePostSearch {
			return nil
		}
		st.Period = expandPeriodToYear(st.Period)
		return append(
			m.outbound(Outbound{Text: "Расширяю период поиска до всего года и ищу снова..."}),
			m.runSearch(ctx, st)...,
		)

	case PayloadAltNewCountry:
		if st.Stage != StagePostSearch {
			return nil
		}
		st.Stage = StageAwaitingNewCountry
		return m.outbound(Outbound{Text: "В какой стране поискать мероприятия с теми же остальными параметрами?"})

	case PayloadAltStartOver:
		return m.StartDialogue(chatID)
	}
	m.Logger.Printf("unknown callback payload %q at stage %s", payload, st.Stage)
	return nil
}

func (m *Manager) handleINN(st *State, text string) []Outbound {
	if !innRe.MatchString(text) {
		return m.outbound(Outbound{Text: "Пожалуйста, введите корректный ИНН: от 10 до 12 цифр без пробелов."})
	}
	rec, found, err := m.Clients.FindByINN(text)
	if err != nil {
		m.Logger.Printf("client lookup failed for inn %s: %v", text, err)
	}
	st.INN = text
	if found {
		st.ClientName = rec.Name
		st.Industry = rec.Industry
		st.Stage = StageAwaitingCountry
		return m.outbound(Outbound{
			Text: fmt.Sprintf("Рад снова видеть, %s! Отрасль вашей компании: %s.\n\nВ какой стране искать мероприятия?", rec.Name, rec.Industry),
		})
	}
	st.Stage = StageAwaitingIndustry
	return m.outbound(Outbound{Text: "Клиент с таким ИНН не найден в базе. Укажите, пожалуйста, отрасль вашей компании."})
}

func (m *Manager) handlePostSearchText(ctx context.Context, st *State, text string) []Outbound {
	if change := m.Assistant.DetectChangeRequest(ctx, text); !change.Empty() {
		if change.Country != "" {
			st.Country = change.Country
		}
		if change.EventType != "" {
			st.EventType = change.EventType
		}
		return append(
			m.outbound(Outbound{Text: "Понял, запускаю поиск с обновлёнными параметрами..."}),
			m.runSearch(ctx, st)...,
		)
	}
	if len(st.LastResults) == 0 {
		// Nothing was delivered, so there is nothing to answer about.
		return m.outbound(Outbound{Text: "Если хотите начать новый поиск, воспользуйтесь командой /start."})
	}
	answer, err := m.Assistant.ContextualAnswer(ctx, text, st.LastResults)
	if err != nil {
		m.Logger.Printf("contextual answer failed: %v", err)
		return m.outbound(Outbound{Text: "Не получилось обработать вопрос, попробуйте переформулировать."})
	}
	return m.outbound(Outbound{Text: escapeMarkdown(answer)})
}

func (m *Manager) confirmation(st *State) []Outbound {
	c := st.Criteria()
	var b strings.Builder
	b.WriteString("Проверьте параметры поиска:\n")
	if st.ClientName != "" {
		fmt.Fprintf(&b, "\n🏢 Компания: %s (ИНН: %s)", st.ClientName, st.INN)
	}
	fmt.Fprintf(&b, "\n🏭 Отрасль: %s", orDash(c.Industry))
	fmt.Fprintf(&b, "\n🌍 Страна: %s", orDash(c.Country))
	fmt.Fprintf(&b, "\n🗓️ Период: %s", orDash(c.Period))
	fmt.Fprintf(&b, "\n🎪 Тип: %s", orDash(nonEmpty(c.EventType, "любой")))
	if c.ExtraInfo != "" {
		fmt.Fprintf(&b, "\nℹ️ Дополнительно: %s", c.ExtraInfo)
	}
	b.WriteString("\n\nВсё верно?")
	return m.outbound(Outbound{Text: escapeMarkdown(b.String()), Keyboard: confirmationKeyboard()})
}

// runSearch executes the pipeline and renders the outcome. A reply
// whose dialogue was reset while the search ran is silently dropped.
func (m *Manager) runSearch(ctx context.Context, st *State) []Outbound {
	generation := st.Generation
	chatID := st.ChatID
	result := m.Pipeline.FindAndSummarizeEvents(ctx, st.Criteria())

	current := m.Store.Get(chatID)
	if current.Generation != generation {
		m.Logger.Printf("dropping stale search reply for chat %d (generation %d, current %d)",
			chatID, generation, current.Generation)
		return nil
	}

	if result.Failed() {
		text := result.ErrorMessage
		if result.TotalLinksAnalyzed > 0 {
			text += fmt.Sprintf("\n\nПроанализировано источников: %d", result.TotalLinksAnalyzed)
		}
		current.Stage = StagePostSearch
		current.LastResults = nil
		return m.outbound(Outbound{Text: escapeMarkdown(text), Keyboard: alternativesKeyboard()})
	}

	current.Stage = StagePostSearch
	current.LastResults = append(append([]models.Event{}, result.PerfectMatches...), result.NearDateMatches...)
	return m.renderResult(result)
}

func (m *Manager) renderResult(result models.SearchResult) []Outbound {
	var out []Outbound

	switch {
	case len(result.PerfectMatches) > 0:
		rendered := make([]string, 0, len(result.PerfectMatches))
		for _, e := range result.PerfectMatches {
			rendered = append(rendered, formatEventFull(e))
		}
		out = append(out, Outbound{Text: "🎯 Нашёл мероприятия, полностью соответствующие вашим критериям:\n\n" + joinEvents(rendered)})

		if len(result.NearDateMatches) > 0 {
			near := result.NearDateMatches
			if len(near) > 2 {
				near = near[:2]
			}
			short := make([]string, 0, len(near))
			for _, e := range near {
				short = append(short, formatEventShort(e))
			}
			out = append(out, Outbound{Text: "Также обратите внимание на близкие по датам варианты:\n\n" + joinEvents(short)})
		}

	case len(result.NearDateMatches) > 0:
		rendered := make([]string, 0, len(result.NearDateMatches))
		for _, e := range result.NearDateMatches {
			rendered = append(rendered, formatEventFull(e))
		}
		out = append(out, Outbound{Text: "📅 Точных совпадений по датам не нашлось, но есть близкие варианты:\n\n" + joinEvents(rendered)})

	default:
		text := "😔 К сожалению, по вашим критериям ничего не нашлось."
		if len(result.OtherMismatches) > 0 {
			other := result.OtherMismatches
			if len(other) > 3 {
				other = other[:3]
			}
			short := make([]string, 0, len(other))
			for _, e := range other {
				short = append(short, formatEventShort(e))
			}
			text += "\n\nВот что ещё удалось найти:\n\n" + joinEvents(short)
		}
		out = append(out, Outbound{Text: text, Keyboard: alternativesKeyboard()})
		return m.expand(out)
	}

	out = append(out, Outbound{
		Text: fmt.Sprintf("Проанализировано источников: %d.\n\nМогу ответить на вопросы по найденным мероприятиям или поискать с другими параметрами.", result.TotalLinksAnalyzed),
		Keyboard: alternativesKeyboard(),
	})
	return m.expand(out)
}

// outbound applies the transport size limit to a single message.
func (m *Manager) outbound(msg Outbound) []Outbound {
	return m.expand([]Outbound{msg})
}

// expand splits oversized messages, keeping each keyboard on the last
// piece of its message.
func (m *Manager) expand(msgs []Outbound) []Outbound {
	var out []Outbound
	for _, msg := range msgs {
		pieces := splitMessage(msg.Text, m.MessageLimit)
		for i, piece := range pieces {
			o := Outbound{Text: piece}
			if i == len(pieces)-1 {
				o.Keyboard = msg.Keyboard
			}
			out = append(out, o)
		}
	}
	return out
}

// expandPeriodToYear broadens a month-specific period to its whole
// year, falling back to the current year when none was named.
func expandPeriodToYear(period string) string {
	if m := periodYearRe.FindStringSubmatch(period); m != nil {
		return "весь " + m[1] + " год"
	}
	return fmt.Sprintf("весь %d год", time.Now().Year())
}

// normalizePeriod canonicalizes the spelling of a whole-year period
// without losing the "весь" qualifier.
func normalizePeriod(period string) string {
	if match := wholeYearRe.FindStringSubmatch(period); match != nil {
		return "весь " + match[1] + " год"
	}
	return period
}

func orDash(s string) string {
	return nonEmpty(s, "—")
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
