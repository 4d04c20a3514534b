package prompt

import (
	"strings"
	"unicode"

	"synthesistalk/internal/models"
)

var topicKeywords = []string{"about", "explain", "what", "how", "why", "tell me"}

var stopWords = toSet(
	"what", "how", "why", "is", "are", "the", "a", "an", "and", "or", "but",
	"in", "on", "at", "to", "for", "of", "with", "by", "about", "can", "could",
	"would", "should", "tell", "me", "you", "i", "we", "they",
)

var questionWords = toSet(
	"what", "how", "why", "when", "where", "would", "could", "should", "about", "explain", "tell",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// isTopicEstablishing reports whether a message is substantial enough to anchor
// a search topic.
func isTopicEstablishing(msg string) bool {
	msg = strings.TrimSpace(msg)
	if len(strings.Fields(msg)) <= 3 {
		return false
	}
	if strings.HasSuffix(msg, "?") || len(msg) > 20 {
		return true
	}
	lower := strings.ToLower(msg)
	for _, kw := range topicKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// lettersOnly lower-cases word and drops every non-letter rune.
func lettersOnly(word string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, word)
}

// ExtractTopic returns up to four meaningful keywords from the most recent user
// message with more than three words, or "" when there is none.
func ExtractTopic(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !isUserTurn(history, i) {
			continue
		}
		msg := strings.TrimSpace(history[i].Content)
		if len(strings.Fields(msg)) <= 3 {
			continue
		}
		var keywords []string
		for _, word := range strings.Fields(msg) {
			word = lettersOnly(word)
			if word == "" {
				continue
			}
			if _, stop := stopWords[word]; stop {
				continue
			}
			keywords = append(keywords, word)
			if len(keywords) == 4 {
				break
			}
		}
		if len(keywords) > 0 {
			return strings.Join(keywords, " ")
		}
	}
	return ""
}

// ConversationSummary gives a short description of what the user has been
// asking about, used to anchor search summaries.
func ConversationSummary(history []models.Message) string {
	if len(history) == 0 {
		return "No previous conversation"
	}
	var topics []string
	for i := range history {
		if !isUserTurn(history, i) {
			continue
		}
		msg := strings.TrimSpace(history[i].Content)
		if len(strings.Fields(msg)) <= 3 {
			continue
		}
		if terms := keyTerms(msg); terms != "" {
			topics = append(topics, terms)
		}
		if len(topics) == 3 {
			break
		}
	}
	if len(topics) == 0 {
		return "General conversation"
	}
	return "Discussing: " + strings.Join(topics, ", ")
}

func keyTerms(text string) string {
	var important []string
	for _, word := range strings.Fields(text) {
		word = lettersOnly(word)
		if len(word) <= 3 {
			continue
		}
		if _, skip := questionWords[word]; skip {
			continue
		}
		important = append(important, word)
		if len(important) == 2 {
			break
		}
	}
	return strings.Join(important, " ")
}
