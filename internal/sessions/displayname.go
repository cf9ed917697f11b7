package sessions

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// SynthesizeTitle produces a 10-to-20-word session title from the first
// user message and a short answer preview via one low-temperature,
// small-budget model call (spec §4.9). On any failure it falls back to a
// truncation of the user message.
func SynthesizeTitle(ctx context.Context, provider providers.LLMProvider, userMessage, assistantPreview string) string {
	fallback := truncateTitle(userMessage)
	if provider == nil {
		return fallback
	}

	preview := assistantPreview
	if len(preview) > 200 {
		preview = preview[:200]
	}
	prompt := fmt.Sprintf(`Generate a concise, clear title (10-20 words) for this chat conversation.
The title should capture the main topic or question being discussed.

User's first message: %s
Assistant preview: %s

Requirements:
- 10-20 words
- Clear and descriptive
- No quotes or special formatting
- Capitalize like a title

Title:`, userMessage, preview)

	resp, err := provider.Chat(ctx, providers.ChatRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   60,
	})
	if err != nil {
		return fallback
	}
	title := strings.TrimSpace(resp.Content)
	if len(title) < 3 {
		return fallback
	}
	return title
}

func truncateTitle(msg string) string {
	if len(msg) > 80 {
		return msg[:80] + "..."
	}
	return msg
}
