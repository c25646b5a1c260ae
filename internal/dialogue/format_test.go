package dialogue

import (
	"strings"
	"testing"

	"github.com/Asul0/belg-agent/models"
)

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("a*b_c`d[e")
	want := `a\*b\_c\` + "`" + `d\[e`
	if got != want {
		t.Fatalf("escapeMarkdown = %q, want %q", got, want)
	}
}

func TestFormatEventFull(t *testing.T) {
	e := models.Event{
		Name:        `"Продэкспо_2026"`,
		Dates:       "9-13 февраля 2026",
		Location:    "Москва",
		Description: strings.Repeat("х", 300),
		Source:      "https://expocentre.ru/prod",
	}
	out := formatEventFull(e)

	if !strings.Contains(out, `*Продэкспо\_2026*`) {
		t.Errorf("name not cleaned and escaped: %q", out)
	}
	if !strings.Contains(out, "[Источник](https://expocentre.ru/prod)") {
		t.Errorf("source link missing: %q", out)
	}
	if !strings.Contains(out, strings.Repeat("х", 250)+"...") {
		t.Errorf("description not truncated at 250 runes")
	}
	if strings.Contains(out, strings.Repeat("х", 251)) {
		t.Errorf("description exceeds the truncation limit")
	}
}

func TestFormatEventShortWithReason(t *testing.T) {
	e := models.Event{Name: "Metal Expo", Dates: "май 2026", MismatchReason: "другая отрасль"}
	out := formatEventShort(e)
	if !strings.Contains(out, "Metal Expo") || !strings.Contains(out, "другая отрасль") {
		t.Fatalf("short format lost fields: %q", out)
	}
}

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("короткое сообщение", 4096)
	if len(parts) != 1 || parts[0] != "короткое сообщение" {
		t.Fatalf("short message must pass through unchanged: %v", parts)
	}
}

func TestSplitMessageOnEventBoundary(t *testing.T) {
	events := []string{
		strings.Repeat("a", 50),
		strings.Repeat("b", 50),
		strings.Repeat("c", 50),
	}
	text := joinEvents(events)
	parts := splitMessage(text, 70)

	if len(parts) < 2 {
		t.Fatalf("expected a split, got %d parts", len(parts))
	}
	for _, part := range parts {
		if len([]rune(part)) > 70 {
			t.Errorf("part exceeds limit: %d runes", len([]rune(part)))
		}
		for _, ch := range []string{"ab", "bc"} {
			if strings.Contains(part, ch) {
				t.Errorf("an event was cut mid-body: %q", part)
			}
		}
	}
}

func TestSplitMessageOversizedEvent(t *testing.T) {
	text := strings.Repeat("x", 150)
	parts := splitMessage(text, 60)
	if len(parts) != 3 {
		t.Fatalf("expected 3 hard-cut parts, got %d", len(parts))
	}
	var total int
	for _, part := range parts {
		total += len(part)
	}
	if total != 150 {
		t.Errorf("content lost during hard cut: %d of 150", total)
	}
}
