package writeup

import (
	"fmt"
	"strings"
)

const (
	maxQuoteInputChars       = 3000
	maxDescriptionInputChars = 12000

	DefaultMaxWords      = 200
	DefaultNumParagraphs = 2
	DefaultTense         = "past"
)

const quoteSystemInstruction = "You extract quotes from business documents. You ONLY return valid JSON arrays. Never include explanations or markdown."

const descriptionSystemInstruction = "You are a professional business writer who specializes in creating project descriptions for engineering firms. " +
	"You write clear, detailed, and professional content for business portfolios and client presentations. " +
	"You always complete the writing tasks as requested."

var tenseInstructions = map[string]string{
	"present": "present",
	"past":    "past",
	"future":  "future",
}

var refusalPrefixes = []string{"an error", "error", "i cannot", "i apologize", "sorry"}

// DescriptionOptions controls the generated project description.
type DescriptionOptions struct {
	DocumentsText   string
	MaxWords        int
	NumParagraphs   int
	ParagraphTitles []string
	Keywords        []string
	Tense           string
	UserPrompt      string
	Quotes          []Quote
}

// ApplyDefaults fills unset options.
func (o *DescriptionOptions) ApplyDefaults() {
	if o.MaxWords <= 0 {
		o.MaxWords = DefaultMaxWords
	}
	if o.NumParagraphs <= 0 {
		o.NumParagraphs = DefaultNumParagraphs
	}
	if _, ok := tenseInstructions[strings.ToLower(o.Tense)]; !ok {
		o.Tense = DefaultTense
	}
	o.Tense = strings.ToLower(o.Tense)
}

// QuotePrompt builds the quote extraction request for text.
func QuotePrompt(text string) string {
	var sb strings.Builder

	sb.WriteString("Extract 1-3 professional quotes from this business correspondence.\n\n")
	sb.WriteString("CRITICAL: Respond with ONLY a JSON array. No explanations, no markdown, no extra text.\n\n")
	sb.WriteString("Text to analyze:\n")
	sb.WriteString(truncate(text, maxQuoteInputChars))
	sb.WriteString("\n\nReturn format (ONLY this JSON, nothing else):\n")
	sb.WriteString(`[{"quote": "quote text", "author": "name", "title": "title"}]`)
	sb.WriteString("\n\nIf no quotes found, return: []\n")

	return sb.String()
}

// DescriptionPrompt builds the project description request.
func DescriptionPrompt(o DescriptionOptions) string {
	o.ApplyDefaults()

	titles := "Use appropriate engineering-focused titles"
	if len(o.ParagraphTitles) > 0 {
		titles = strings.Join(o.ParagraphTitles, ", ")
	}

	keywords := "Use relevant civil engineering terminology"
	if len(o.Keywords) > 0 {
		keywords = strings.Join(o.Keywords, ", ")
	}

	var sb strings.Builder

	sb.WriteString("You are writing a professional project description for MSMM Engineering's portfolio. ")
	sb.WriteString("This is a standard business writing task for a civil engineering firm.\n\n")
	sb.WriteString("TASK: Create a professional project brief description for a civil engineering project.\n\n")

	sb.WriteString("WRITING REQUIREMENTS:\n")
	fmt.Fprintf(&sb, "- Write approximately %d words (target word count - please write close to this number)\n", o.MaxWords)
	fmt.Fprintf(&sb, "- Create %d well-structured paragraphs\n", o.NumParagraphs)
	sb.WriteString("- Use professional, technical language appropriate for civil engineering\n")
	fmt.Fprintf(&sb, "- Write in %s tense\n", tenseInstructions[o.Tense])
	sb.WriteString("- Focus on engineering methodologies, technical scope, and project outcomes\n\n")

	sb.WriteString("CONTENT STRUCTURE:\n")
	fmt.Fprintf(&sb, "- Paragraph titles: %s\n", titles)
	fmt.Fprintf(&sb, "- Include these technical terms: %s\n", keywords)
	sb.WriteString("- Highlight technical expertise and project deliverables\n")
	sb.WriteString("- Describe engineering challenges and solutions\n\n")

	sb.WriteString("PROJECT INFORMATION TO USE:\n")
	sb.WriteString(truncate(o.DocumentsText, maxDescriptionInputChars))
	sb.WriteString("\n\n")

	if len(o.Quotes) > 0 {
		sb.WriteString("CLIENT FEEDBACK AVAILABLE:\n")
		for _, q := range o.Quotes {
			name := q.Author
			if name == "" {
				name = "Unknown"
			}
			fmt.Fprintf(&sb, "%q - %s", q.Quote, name)
			if q.Title != "" {
				sb.WriteString(", " + q.Title)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Please write a comprehensive project description that showcases MSMM Engineering's technical capabilities. ")
	sb.WriteString("This description will be used in project portfolios and client presentations. ")
	sb.WriteString("Focus on the engineering work performed, methodologies used, and value delivered.\n\n")

	if strings.TrimSpace(o.UserPrompt) != "" {
		fmt.Fprintf(&sb, "Additional requirements: %s\n\n", strings.TrimSpace(o.UserPrompt))
	}

	fmt.Fprintf(&sb, "Remember: Write approximately %d words as requested. ", o.MaxWords)
	sb.WriteString("This is a legitimate business writing task for an engineering firm's project portfolio.\n")

	return sb.String()
}

// IsRefusal reports whether a generated reply is an error or refusal message
// rather than the requested content.
func IsRefusal(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
