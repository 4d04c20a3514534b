package prompt

import "synthesistalk/internal/models"

// alternating builds a history whose roles alternate user/assistant.
func alternating(texts ...string) []models.Message {
	out := make([]models.Message, 0, len(texts))
	for i, text := range texts {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out = append(out, models.Message{Role: role, Content: text})
	}
	return out
}

// untagged builds a history with no stored roles.
func untagged(texts ...string) []models.Message {
	out := make([]models.Message, 0, len(texts))
	for _, text := range texts {
		out = append(out, models.Message{Content: text})
	}
	return out
}
