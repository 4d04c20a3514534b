package reasoning

import (
	"context"
	"strings"

	"synthesistalk/internal/models"
)

const (
	newConversationTitle = "New Conversation"
	fallbackTitle        = "Research Discussion"
	maxTitleLength       = 50
	shortTitleWords      = 4
)

// GenerateTopicTitle names a conversation in a few words. The result is never
// stored in history.
func (e *Engine) GenerateTopicTitle(ctx context.Context, conversationText string) string {
	if strings.TrimSpace(conversationText) == "" {
		return newConversationTitle
	}
	bundle := models.ContextBundle{
		{
			Role: models.RoleSystem,
			Content: "You are a topic summarizer. Generate a concise 3-5 word title " +
				"that captures the main research topic or question being discussed. " +
				"Return only the title, no quotes, no extra text.",
		},
		{
			Role:    models.RoleUser,
			Content: "Generate a topic title for this conversation:\n\n" + conversationText,
		},
	}
	reply, err := e.complete(ctx, "topic title", bundle)
	if err != nil {
		return fallbackTitle
	}
	title := strings.NewReplacer(`"`, "", "'", "", "Title:", "").Replace(reply)
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLength {
		words := strings.Fields(title)
		if len(words) > shortTitleWords {
			words = words[:shortTitleWords]
		}
		title = strings.Join(words, " ")
	}
	if title == "" {
		return fallbackTitle
	}
	return title
}
