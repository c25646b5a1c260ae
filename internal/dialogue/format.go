package dialogue

import (
	"fmt"
	"strings"

	"github.com/Asul0/belg-agent/models"
)

// eventSeparator joins rendered events inside one message and is the
// only place a long reply may be split for the transport.
const eventSeparator = "\n\n---\n\n"

const maxDescriptionChars = 250

// escapeMarkdown protects the characters significant in legacy
// Telegram Markdown. Values coming from scraped pages and the LLM
// would otherwise break the whole message.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
		"[", "\\[",
	)
	return replacer.Replace(s)
}

func cleanName(name string) string {
	return strings.Trim(strings.TrimSpace(name), `"«»'`)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// formatEventFull renders one event with every known field.
func formatEventFull(e models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 *%s*", escapeMarkdown(cleanName(e.Name)))
	if e.Dates != "" {
		fmt.Fprintf(&b, "\n🗓️ Даты: %s", escapeMarkdown(e.Dates))
	}
	if e.Location != "" {
		fmt.Fprintf(&b, "\n📍 Место: %s", escapeMarkdown(e.Location))
	}
	if e.Description != "" {
		fmt.Fprintf(&b, "\n📝 %s", escapeMarkdown(truncate(e.Description, maxDescriptionChars)))
	}
	if e.Source != "" {
		fmt.Fprintf(&b, "\n🔗 [Источник](%s)", e.Source)
	}
	return b.String()
}

// formatEventShort renders one line per event, with the reason it did
// not fully match when known.
func formatEventShort(e models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔸 *%s*", escapeMarkdown(cleanName(e.Name)))
	if e.Dates != "" {
		fmt.Fprintf(&b, " (%s)", escapeMarkdown(e.Dates))
	}
	if e.MismatchReason != "" {
		fmt.Fprintf(&b, "\n   ⚠️ %s", escapeMarkdown(e.MismatchReason))
	}
	return b.String()
}

func joinEvents(rendered []string) string {
	return strings.Join(rendered, eventSeparator)
}

// splitMessage breaks a long reply into transport-sized pieces,
// cutting only on event boundaries. A single oversized event is the
// one case where a hard cut inside it is unavoidable.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}
	parts := strings.Split(text, eventSeparator)
	var out []string
	var current string
	flush := func() {
		if current != "" {
			out = append(out, current)
			current = ""
		}
	}
	for _, part := range parts {
		for len([]rune(part)) > limit {
			flush()
			runes := []rune(part)
			out = append(out, string(runes[:limit]))
			part = string(runes[limit:])
		}
		candidate := part
		if current != "" {
			candidate = current + eventSeparator + part
		}
		if len([]rune(candidate)) > limit {
			flush()
			current = part
		} else {
			current = candidate
		}
	}
	flush()
	return out
}
