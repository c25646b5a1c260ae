package dialogue

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/Asul0/belg-agent/internal/nlu"
	"github.com/Asul0/belg-agent/models"
)

type fakePipeline struct {
	result models.SearchResult
	during func()
	calls  []models.SearchCriteria
}

func (f *fakePipeline) FindAndSummarizeEvents(_ context.Context, c models.SearchCriteria) models.SearchResult {
	f.calls = append(f.calls, c)
	if f.during != nil {
		f.during()
	}
	return f.result
}

type fakeAssistant struct {
	answer    string
	change    *nlu.ChangeRequest
	questions []string
}

func (f *fakeAssistant) ContextualAnswer(_ context.Context, q string, _ []models.Event) (string, error) {
	f.questions = append(f.questions, q)
	return f.answer, nil
}

func (f *fakeAssistant) DetectChangeRequest(_ context.Context, _ string) *nlu.ChangeRequest {
	return f.change
}

type fakeLookup struct {
	recs map[string]models.ClientRecord
}

func (f *fakeLookup) FindByINN(inn string) (models.ClientRecord, bool, error) {
	rec, ok := f.recs[inn]
	return rec, ok, nil
}

func okResult() models.SearchResult {
	return models.SearchResult{
		PerfectMatches: []models.Event{
			{Name: "Food Expo Delhi", Dates: "март 2026", Location: "Дели", Source: "https://expo.example.com"},
		},
		NearDateMatches:    []models.Event{},
		OtherMismatches:    []models.Event{},
		TotalLinksAnalyzed: 12,
	}
}

func newTestManager(pipeline *fakePipeline, assistant *fakeAssistant, lookup *fakeLookup) *Manager {
	logger := log.New(io.Discard, "", 0)
	if lookup == nil {
		lookup = &fakeLookup{}
	}
	if assistant == nil {
		assistant = &fakeAssistant{answer: "ответ"}
	}
	return &Manager{
		Store:        NewStore(24*time.Hour, nil, logger),
		Pipeline:     pipeline,
		Assistant:    assistant,
		Clients:      lookup,
		MessageLimit: 4096,
		Logger:       logger,
	}
}

func lastText(t *testing.T, msgs []Outbound) string {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("expected at least one outbound message")
	}
	return msgs[len(msgs)-1].Text
}

func TestFullDialogueFlow(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: okResult()}
	lookup := &fakeLookup{recs: map[string]models.ClientRecord{
		"7707083893": {Name: "ООО Ромашка", Industry: "пищевая промышленность"},
	}}
	m := newTestManager(pipeline, nil, lookup)
	chatID := int64(42)

	m.StartDialogue(chatID)

	// Known INN skips the industry question.
	reply := lastText(t, m.HandleText(ctx, chatID, "7707083893"))
	if !strings.Contains(reply, "ООО Ромашка") || !strings.Contains(reply, "стране") {
		t.Fatalf("unexpected greeting: %q", reply)
	}

	m.HandleText(ctx, chatID, "Индия")
	m.HandleText(ctx, chatID, "март 2026")

	msgs := m.HandleCallback(ctx, chatID, PayloadEventTypeExhibition)
	if msgs[len(msgs)-1].Keyboard == nil {
		t.Fatal("format question must carry a keyboard")
	}

	picked := m.HandleCallback(ctx, chatID, PayloadFormatOffline)
	if picked[len(picked)-1].Keyboard == nil {
		t.Fatal("format keyboard must stay up until the user is done picking")
	}
	if !strings.Contains(picked[len(picked)-1].Text, "офлайн") {
		t.Fatalf("picked format not echoed back: %q", picked[len(picked)-1].Text)
	}

	confirm := m.HandleCallback(ctx, chatID, PayloadFormatAny)
	text := lastText(t, confirm)
	for _, want := range []string{"ООО Ромашка", "7707083893", "Индия", "март 2026", "выставка", "офлайн"} {
		if !strings.Contains(text, want) {
			t.Errorf("confirmation is missing %q: %q", want, text)
		}
	}

	results := m.HandleCallback(ctx, chatID, PayloadConfirmSearch)
	if len(pipeline.calls) != 1 {
		t.Fatalf("expected one search, got %d", len(pipeline.calls))
	}
	got := pipeline.calls[0]
	if got.Industry != "пищевая промышленность" || got.Country != "Индия" || got.EventType != "выставка" {
		t.Fatalf("criteria not carried into the search: %+v", got)
	}
	if !strings.Contains(got.ExtraInfo, "офлайн") {
		t.Fatalf("format lost from extra info: %+v", got)
	}
	joined := ""
	for _, msg := range results {
		joined += msg.Text + "\n"
	}
	if !strings.Contains(joined, "Food Expo Delhi") {
		t.Fatalf("result message is missing the event: %q", joined)
	}
	if !strings.Contains(joined, "12") {
		t.Errorf("analyzed link count missing: %q", joined)
	}

	// Post-search free text goes to the assistant.
	answer := lastText(t, m.HandleText(ctx, chatID, "а когда начало?"))
	if !strings.Contains(answer, "ответ") {
		t.Errorf("expected the assistant answer, got %q", answer)
	}
}

func TestINNValidation(t *testing.T) {
	m := newTestManager(&fakePipeline{}, nil, nil)
	ctx := context.Background()
	chatID := int64(1)
	m.StartDialogue(chatID)

	for _, bad := range []string{"123", "12345678901234", "77070abc93", "77 07083893"} {
		reply := lastText(t, m.HandleText(ctx, chatID, bad))
		if !strings.Contains(reply, "корректный ИНН") {
			t.Errorf("input %q should be rejected, got %q", bad, reply)
		}
		if st := m.Store.Get(chatID); st.Stage != StageAwaitingINN {
			t.Errorf("stage must not advance on invalid INN, got %s", st.Stage)
		}
	}

	// Unknown but well-formed INN advances to the industry question.
	reply := lastText(t, m.HandleText(ctx, chatID, "770708389312"))
	if !strings.Contains(reply, "отрасль") {
		t.Errorf("unknown INN should ask for the industry, got %q", reply)
	}
}

func TestExtraInfoIdempotent(t *testing.T) {
	st := &State{}
	st.AddExtraInfo("формат: онлайн")
	st.AddExtraInfo("только крупные")
	st.AddExtraInfo("формат: онлайн")
	st.AddExtraInfo("  ")
	if len(st.ExtraInfo) != 2 {
		t.Fatalf("expected 2 entries, got %v", st.ExtraInfo)
	}
	if st.Criteria().ExtraInfo != "формат: онлайн, только крупные" {
		t.Fatalf("order lost: %q", st.Criteria().ExtraInfo)
	}
}

func TestStaleSearchReplyDropped(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: okResult()}
	m := newTestManager(pipeline, nil, nil)
	chatID := int64(7)

	// The dialogue restarts while the search is in flight.
	pipeline.during = func() { m.Store.Reset(chatID) }

	st := m.Store.Get(chatID)
	st.Stage = StageAwaitingConfirmation
	st.Industry = "IT"
	st.Country = "Турция"
	st.Period = "май 2026"

	msgs := m.HandleCallback(ctx, chatID, PayloadConfirmSearch)
	if len(msgs) != 0 {
		t.Fatalf("stale search reply must be dropped, got %v", msgs)
	}
}

func TestCancelResetsDialogue(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(&fakePipeline{}, nil, nil)
	chatID := int64(9)
	st := m.Store.Get(chatID)
	st.Stage = StageAwaitingConfirmation
	st.Country = "Индия"

	m.HandleCallback(ctx, chatID, PayloadCancelSearch)
	after := m.Store.Get(chatID)
	if after.Stage != StageAwaitingINN || after.Country != "" {
		t.Fatalf("cancel must reset the state, got %+v", after)
	}
}

func TestAlternativeCountrySearch(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: okResult()}
	m := newTestManager(pipeline, nil, nil)
	chatID := int64(11)

	st := m.Store.Get(chatID)
	st.Stage = StagePostSearch
	st.Industry = "пищевая промышленность"
	st.Country = "Индия"
	st.Period = "март 2026"

	m.HandleCallback(ctx, chatID, PayloadAltNewCountry)
	if m.Store.Get(chatID).Stage != StageAwaitingNewCountry {
		t.Fatal("alt-country button must move to the new-country stage")
	}

	// The new country only updates the summary; the search waits for
	// an explicit confirmation.
	summary := lastText(t, m.HandleText(ctx, chatID, "Вьетнам"))
	if len(pipeline.calls) != 0 {
		t.Fatalf("no search may run before confirmation, got %d calls", len(pipeline.calls))
	}
	if m.Store.Get(chatID).Stage != StageAwaitingConfirmation {
		t.Fatalf("expected the confirmation stage, got %s", m.Store.Get(chatID).Stage)
	}
	if !strings.Contains(summary, "Вьетнам") {
		t.Fatalf("summary must show the new country: %q", summary)
	}

	m.HandleCallback(ctx, chatID, PayloadConfirmSearch)
	if len(pipeline.calls) != 1 {
		t.Fatalf("expected one search after confirmation, got %d calls", len(pipeline.calls))
	}
	if pipeline.calls[0].Country != "Вьетнам" || pipeline.calls[0].Industry != "пищевая промышленность" {
		t.Fatalf("new country search lost criteria: %+v", pipeline.calls[0])
	}
}

func TestExpandPeriodSearch(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: okResult()}
	m := newTestManager(pipeline, nil, nil)
	chatID := int64(12)

	st := m.Store.Get(chatID)
	st.Stage = StagePostSearch
	st.Industry = "пищевая промышленность"
	st.Country = "Индия"
	st.Period = "март 2026"

	m.HandleCallback(ctx, chatID, PayloadAltExpandPeriod)
	if len(pipeline.calls) != 1 {
		t.Fatalf("expected an immediate search, got %d calls", len(pipeline.calls))
	}
	if pipeline.calls[0].Period != "весь 2026 год" {
		t.Fatalf("period not expanded to the year: %q", pipeline.calls[0].Period)
	}
}

func TestStartOverResets(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(&fakePipeline{}, nil, nil)
	chatID := int64(14)

	st := m.Store.Get(chatID)
	st.Stage = StagePostSearch
	st.Country = "Индия"

	reply := lastText(t, m.HandleCallback(ctx, chatID, PayloadAltStartOver))
	if !strings.Contains(reply, "ИНН") {
		t.Fatalf("start-over must restart from the INN question, got %q", reply)
	}
	after := m.Store.Get(chatID)
	if after.Stage != StageAwaitingINN || after.Country != "" {
		t.Fatalf("start-over must reset the state: %+v", after)
	}
}

func TestPostSearchWithoutResultsPromptsRestart(t *testing.T) {
	ctx := context.Background()
	assistant := &fakeAssistant{answer: "llm-answer"}
	m := newTestManager(&fakePipeline{}, assistant, nil)
	chatID := int64(19)

	st := m.Store.Get(chatID)
	st.Stage = StagePostSearch
	st.LastResults = nil

	reply := lastText(t, m.HandleText(ctx, chatID, "а что в Китае?"))
	if len(assistant.questions) != 0 {
		t.Fatalf("no contextual answer may be attempted without delivered results, got %v", assistant.questions)
	}
	if !strings.Contains(reply, "/start") {
		t.Fatalf("expected a restart prompt, got %q", reply)
	}
}

func TestEditParamsResumesPerIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("known client resumes at the country question", func(t *testing.T) {
		m := newTestManager(&fakePipeline{}, nil, nil)
		chatID := int64(21)
		st := m.Store.Get(chatID)
		st.Stage = StageAwaitingConfirmation
		st.INN = "7707083893"
		st.ClientName = "ООО Ромашка"
		st.Industry = "пищевая промышленность"
		st.Country = "Индия"

		reply := lastText(t, m.HandleCallback(ctx, chatID, PayloadEditParams))
		after := m.Store.Get(chatID)
		if after.Stage != StageAwaitingCountry {
			t.Fatalf("expected the country stage, got %s", after.Stage)
		}
		if after.INN != "7707083893" || after.Industry != "пищевая промышленность" {
			t.Fatalf("identity lost on edit: %+v", after)
		}
		if after.Country != "" {
			t.Fatalf("collected criteria must be dropped: %+v", after)
		}
		if !strings.Contains(reply, "стране") {
			t.Fatalf("expected the country question, got %q", reply)
		}
	})

	t.Run("anonymous chat starts over from the INN question", func(t *testing.T) {
		m := newTestManager(&fakePipeline{}, nil, nil)
		chatID := int64(22)
		st := m.Store.Get(chatID)
		st.Stage = StageAwaitingConfirmation
		st.Country = "Индия"

		reply := lastText(t, m.HandleCallback(ctx, chatID, PayloadEditParams))
		if m.Store.Get(chatID).Stage != StageAwaitingINN {
			t.Fatalf("expected the INN stage, got %s", m.Store.Get(chatID).Stage)
		}
		if !strings.Contains(reply, "ИНН") {
			t.Fatalf("expected the INN question, got %q", reply)
		}
	})
}

func TestStaleKeyboardPressIgnored(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(&fakePipeline{}, nil, nil)
	chatID := int64(23)

	st := m.Store.Get(chatID)
	st.Stage = StageAwaitingCountry
	st.Country = "Индия"

	for _, payload := range []string{PayloadEditParams, PayloadCancelSearch, PayloadAltNewCountry, PayloadAltExpandPeriod, PayloadConfirmSearch} {
		if msgs := m.HandleCallback(ctx, chatID, payload); msgs != nil {
			t.Errorf("payload %q pressed out of stage must be ignored, got %v", payload, msgs)
		}
		after := m.Store.Get(chatID)
		if after.Stage != StageAwaitingCountry || after.Country != "Индия" {
			t.Fatalf("payload %q mutated state from a stale keyboard: %+v", payload, after)
		}
	}
}

func TestNormalizePeriodKeepsWholeYearPhrase(t *testing.T) {
	for input, want := range map[string]string{
		"весь 2026 год": "весь 2026 год",
		"ВЕСЬ 2026 ГОД": "весь 2026 год",
		"март 2026":     "март 2026",
	} {
		if got := normalizePeriod(input); got != want {
			t.Errorf("normalizePeriod(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestChangeRequestTriggersSearch(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: okResult()}
	assistant := &fakeAssistant{change: &nlu.ChangeRequest{Country: "Китай"}}
	m := newTestManager(pipeline, assistant, nil)
	chatID := int64(13)

	st := m.Store.Get(chatID)
	st.Stage = StagePostSearch
	st.Industry = "металлургия"
	st.Country = "Индия"
	st.Period = "2026"

	m.HandleText(ctx, chatID, "а можно в Китае посмотреть?")
	if len(pipeline.calls) != 1 {
		t.Fatalf("expected a re-search, got %d calls", len(pipeline.calls))
	}
	if pipeline.calls[0].Country != "Китай" {
		t.Fatalf("country not updated: %+v", pipeline.calls[0])
	}
}

func TestFailedSearchShowsAlternatives(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: models.SearchResult{
		ErrorMessage:       "К сожалению, по вашим критериям не удалось найти релевантных страниц в поиске.",
		TotalLinksAnalyzed: 0,
	}}
	m := newTestManager(pipeline, nil, nil)
	chatID := int64(15)

	st := m.Store.Get(chatID)
	st.Stage = StageAwaitingConfirmation
	st.Industry = "IT"
	st.Country = "Куба"
	st.Period = "2026"

	msgs := m.HandleCallback(ctx, chatID, PayloadConfirmSearch)
	if msgs[len(msgs)-1].Keyboard == nil {
		t.Fatal("a failed search must offer the alternatives keyboard")
	}
	if m.Store.Get(chatID).Stage != StagePostSearch {
		t.Fatal("failed search still ends in the post-search stage")
	}
}

func TestNothingFoundShowsMismatches(t *testing.T) {
	ctx := context.Background()
	pipeline := &fakePipeline{result: models.SearchResult{
		PerfectMatches:  []models.Event{},
		NearDateMatches: []models.Event{},
		OtherMismatches: []models.Event{
			{Name: "Metal Expo", MismatchReason: "другая отрасль"},
			{Name: "Auto Show", MismatchReason: "другая отрасль"},
			{Name: "Tech Forum", MismatchReason: "другая отрасль"},
			{Name: "Extra One", MismatchReason: "другая отрасль"},
		},
		TotalLinksAnalyzed: 5,
	}}
	m := newTestManager(pipeline, nil, nil)
	chatID := int64(17)

	st := m.Store.Get(chatID)
	st.Stage = StageAwaitingConfirmation
	st.Industry = "пищевая промышленность"
	st.Country = "Индия"
	st.Period = "март 2026"

	msgs := m.HandleCallback(ctx, chatID, PayloadConfirmSearch)
	text := lastText(t, msgs)
	if !strings.Contains(text, "Metal Expo") {
		t.Errorf("mismatches must be listed: %q", text)
	}
	if strings.Contains(text, "Extra One") {
		t.Errorf("at most three mismatches may be shown: %q", text)
	}
	if msgs[len(msgs)-1].Keyboard == nil {
		t.Error("empty result must offer the alternatives keyboard")
	}
}
