package reasoning

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"synthesistalk/internal/models"
)

const (
	maxVisualItems    = 6
	maxLabelRunes     = 25
	parseErrorLabel   = "Error parsing data"
	noTopicsLabel     = "No topics found"
	visualPromptStart = "Extract between 4 and 6 key topics from the text below and weight each one by how much it is discussed. " +
		"Respond with only a JSON array of objects in the form [{\"label\": \"Topic\", \"count\": 3}]. " +
		"Labels must be at most 25 characters and counts must be positive integers.\n\nText:\n"
)

var (
	visualArrayRe  = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
	visualObjectRe = regexp.MustCompile(`\{[^{}]*\}`)
)

// GenerateVisualData asks the model for weighted topics and returns at most
// six clean chart items. Parse failures yield a single placeholder item.
func (e *Engine) GenerateVisualData(ctx context.Context, text string) []models.VisualDatum {
	reply, err := e.ask(ctx, "visualize", visualPromptStart+text)
	if err != nil {
		return placeholder(parseErrorLabel)
	}
	return parseVisualData(reply)
}

func parseVisualData(reply string) []models.VisualDatum {
	items := extractVisualItems(reply)
	if items == nil {
		return placeholder(parseErrorLabel)
	}
	data := make([]models.VisualDatum, 0, maxVisualItems)
	for _, item := range items {
		datum, ok := cleanDatum(item)
		if !ok {
			continue
		}
		data = append(data, datum)
		if len(data) == maxVisualItems {
			break
		}
	}
	if len(data) == 0 {
		return placeholder(noTopicsLabel)
	}
	return data
}

// extractVisualItems tries the whole bracketed list first, then recombines
// individual objects carrying both keys. Nil means nothing was recognized.
func extractVisualItems(reply string) []gjson.Result {
	if match := visualArrayRe.FindString(reply); match != "" && gjson.Valid(match) {
		return gjson.Parse(match).Array()
	}
	var items []gjson.Result
	for _, obj := range visualObjectRe.FindAllString(reply, -1) {
		if !gjson.Valid(obj) {
			continue
		}
		parsed := gjson.Parse(obj)
		if parsed.Get("label").Exists() && parsed.Get("count").Exists() {
			items = append(items, parsed)
		}
	}
	return items
}

func cleanDatum(item gjson.Result) (models.VisualDatum, bool) {
	if !item.IsObject() {
		return models.VisualDatum{}, false
	}
	label := strings.TrimSpace(item.Get("label").String())
	if label == "" {
		return models.VisualDatum{}, false
	}
	if runes := []rune(label); len(runes) > maxLabelRunes {
		label = string(runes[:maxLabelRunes-3]) + "..."
	}
	return models.VisualDatum{Label: label, Count: coerceCount(item.Get("count"))}, true
}

func coerceCount(v gjson.Result) int {
	count := 1
	switch v.Type {
	case gjson.Number:
		count = int(math.Round(v.Num))
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if n, err := strconv.Atoi(s); err == nil {
			count = n
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			count = int(math.Round(f))
		}
	}
	if count < 1 {
		return 1
	}
	return count
}

func placeholder(label string) []models.VisualDatum {
	return []models.VisualDatum{{Label: label, Count: 1}}
}
