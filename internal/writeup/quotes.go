package writeup

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxQuotes = 3

	minQuoteSourceLength = 20
	minQuoteLineLength   = 25
	maxQuoteLineLength   = 150
	maxAuthorDistance    = 8

	defaultQuoteAuthor = "Project Client"
	defaultQuoteTitle  = "Client Representative"
)

// Quote is a piece of client feedback with its attribution.
type Quote struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Title  string `json:"title"`
}

var authorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(engineer|manager|director|president|CEO|supervisor|coordinator|specialist)`),
	regexp.MustCompile(`(?i)([A-Z][a-z]+ [A-Z][a-z]+),?\s*(engineer|manager|director|president|CEO)`),
	regexp.MustCompile(`(?i)(Best regards?|Sincerely|Thank you),?\s*([A-Z][a-z]+ [A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)([A-Z][a-z]+ [A-Z][a-z]+)\s*[-–]\s*(engineer|manager|director)`),
}

var positivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)excellent.*work`),
	regexp.MustCompile(`(?i)outstanding.*job`),
	regexp.MustCompile(`(?i)professional.*service`),
	regexp.MustCompile(`(?i)quality.*work`),
	regexp.MustCompile(`(?i)satisfied.*with`),
	regexp.MustCompile(`(?i)impressed.*with`),
	regexp.MustCompile(`(?i)recommend.*highly`),
	regexp.MustCompile(`(?i)great.*job`),
	regexp.MustCompile(`(?i)thank.*you.*for.*work`),
	regexp.MustCompile(`(?i)pleased.*with.*work`),
	regexp.MustCompile(`(?i)exceeded.*expectations`),
	regexp.MustCompile(`(?i)well.*done`),
	regexp.MustCompile(`(?i)appreciate.*your.*work`),
}

type author struct {
	name  string
	title string
}

// SearchQuotes finds positive feedback lines by pattern matching and attributes
// each to the nearest signature line. It is the fallback when the generator
// returns nothing usable.
func SearchQuotes(text string) []Quote {
	if len(strings.TrimSpace(text)) < minQuoteSourceLength {
		return nil
	}

	lines := strings.Split(text, "\n")

	authors := make(map[int]author)
	for i, line := range lines {
		if a, ok := matchAuthor(strings.TrimSpace(line)); ok {
			authors[i] = a
		}
	}

	var quotes []Quote
	seen := make(map[string]bool)

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if n := len([]rune(line)); n < minQuoteLineLength || n > maxQuoteLineLength {
			continue
		}
		if !matchesAny(positivePatterns, line) {
			continue
		}

		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true

		q := Quote{Quote: line, Author: defaultQuoteAuthor, Title: defaultQuoteTitle}
		if a, ok := nearestAuthor(authors, i); ok {
			q.Author = a.name
			q.Title = a.title
		}

		quotes = append(quotes, q)
		if len(quotes) >= MaxQuotes {
			break
		}
	}

	return quotes
}

func matchAuthor(line string) (author, bool) {
	for _, re := range authorPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		groups := m[1:]
		switch {
		case len(groups) >= 2 && groups[1] != "":
			title := "Client"
			if strings.Contains(strings.ToLower(groups[0]), "engineer") {
				title = groups[0]
			}
			return author{name: groups[1], title: title}, true
		case len(groups) >= 1 && groups[0] != "":
			return author{name: groups[0], title: defaultQuoteTitle}, true
		}
	}
	return author{}, false
}

// nearestAuthor returns the closest author line within maxAuthorDistance,
// preferring the earlier line on ties.
func nearestAuthor(authors map[int]author, line int) (author, bool) {
	for d := 0; d <= maxAuthorDistance; d++ {
		if a, ok := authors[line-d]; ok {
			return a, true
		}
		if a, ok := authors[line+d]; ok {
			return a, true
		}
	}
	return author{}, false
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// SanitizeQuotes keeps well formed quotes supplied by a client: quote and
// author must be strings and quote must not be blank. At most MaxQuotes are kept.
func SanitizeQuotes(raw json.RawMessage) []Quote {
	if len(raw) == 0 {
		return nil
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var quotes []Quote
	for _, item := range items {
		text, ok := item["quote"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		name, ok := item["author"].(string)
		if !ok {
			continue
		}
		title, _ := item["title"].(string)

		quotes = append(quotes, Quote{
			Quote:  strings.TrimSpace(text),
			Author: strings.TrimSpace(name),
			Title:  strings.TrimSpace(title),
		})
		if len(quotes) >= MaxQuotes {
			break
		}
	}

	return quotes
}

// FilterSelected keeps the raw quotes whose text is one of selected. An empty
// selection keeps everything.
func FilterSelected(raw json.RawMessage, selected []string) json.RawMessage {
	if len(selected) == 0 || len(raw) == 0 {
		return raw
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}

	kept := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var q struct {
			Quote any `json:"quote"`
		}
		if err := json.Unmarshal(item, &q); err != nil {
			continue
		}
		if text, ok := q.Quote.(string); ok && want[text] {
			kept = append(kept, item)
		}
	}

	out, _ := json.Marshal(kept)
	return out
}

var errNotJSON = errors.New("response is not json")

// ParseQuotes decodes a generator response into quotes. Markdown fences are
// stripped and refusals or non-JSON replies are rejected.
func ParseQuotes(content string) ([]Quote, error) {
	content = stripCodeFence(strings.TrimSpace(content))

	if IsRefusal(content) {
		return nil, fmt.Errorf("%w: %s", ErrRefused, truncate(content, 100))
	}
	if !strings.HasPrefix(content, "[") && !strings.HasPrefix(content, "{") {
		return nil, errNotJSON
	}

	var items []struct {
		Quote  any `json:"quote"`
		Author any `json:"author"`
		Title  any `json:"title"`
	}
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}

	var quotes []Quote
	for _, item := range items {
		text := stringify(item.Quote)
		name := stringify(item.Author)
		if text == "" || name == "" {
			continue
		}
		quotes = append(quotes, Quote{Quote: text, Author: name, Title: stringify(item.Title)})
		if len(quotes) >= MaxQuotes {
			break
		}
	}

	return quotes, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	return strings.TrimSpace(content)
}
