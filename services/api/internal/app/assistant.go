package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"turfhub/pkg/domain"
)

// AssistantFallback is returned whenever the assistant cannot answer.
const AssistantFallback = "Sorry, I couldn't reach the venue assistant right now. Please try again in a moment."

const (
	assistantTimeout  = 30 * time.Second
	maxAssistantHubs  = 40
	maxQuestionLength = 1000
)

const assistantSystemPrompt = `You are the booking assistant for a marketplace of sports turfs and gaming cafes.
Answer using only the venues listed in the context. Mention venue names and prices in INR.
If nothing matches, say so and suggest the closest option. Keep answers under 120 words.`

// Ask answers a question about the current venues. It never returns an
// error: any failure yields AssistantFallback.
func (a *App) Ask(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	if question == "" || a.generator == nil {
		return AssistantFallback
	}
	if runes := []rune(question); len(runes) > maxQuestionLength {
		question = string(runes[:maxQuestionLength])
	}
	hubs, err := a.store.ListHubs(ctx)
	if err != nil {
		slog.Warn("assistant hub listing failed", "err", err)
		hubs = nil
	}
	ctx, cancel := context.WithTimeout(ctx, assistantTimeout)
	defer cancel()
	prompt := fmt.Sprintf("Venues:\n%s\n\nQuestion: %s", HubSummaries(hubs), question)
	reply, err := a.generator.GenerateText(ctx, assistantSystemPrompt, prompt)
	if err != nil {
		slog.Warn("assistant generation failed", "err", err)
		return AssistantFallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return AssistantFallback
	}
	return reply
}

// HubSummaries renders one line per venue for the assistant context.
func HubSummaries(hubs []domain.Hub) string {
	if len(hubs) == 0 {
		return "(no venues listed)"
	}
	var b strings.Builder
	for i, h := range hubs {
		if i == maxAssistantHubs {
			break
		}
		kind := "Turf"
		if h.Category == domain.CategoryGamingCafe {
			kind = "Gaming cafe"
		}
		fmt.Fprintf(&b, "- %s (%s) in %s, from %d INR, rating %.1f", h.Name, kind, h.Location, h.PriceStart, h.Rating)
		if h.IsSoldOut {
			b.WriteString(", sold out")
		}
		if len(h.Amenities) > 0 {
			fmt.Fprintf(&b, ", amenities: %s", strings.Join(h.Amenities, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
