package glossary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
)

// Suggester asks a provider to extract proper nouns and recurring terms from
// a chapter and propose translations for them.
type Suggester struct {
	provider provider.Provider
}

func NewSuggester(p provider.Provider) *Suggester {
	return &Suggester{provider: p}
}

// Suggest returns proposed entries for text that are not already in existing.
func (s *Suggester) Suggest(ctx context.Context, text, sourceLang, targetLang string, existing Entries) (Entries, error) {
	prompt := buildSuggestPrompt(sourceLang, targetLang)
	content, err := s.provider.Translate(ctx, text, prompt, nil)
	if err != nil {
		return nil, err
	}

	parsed, err := parseEntriesResponse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suggested terms: %w", err)
	}

	fresh := make(Entries)
	for key, value := range parsed {
		if _, exists := existing[key]; exists {
			continue
		}
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		fresh[key] = value
	}
	return fresh, nil
}

func buildSuggestPrompt(sourceLang, targetLang string) string {
	var prompt strings.Builder
	prompt.WriteString("You are a terminology extractor. Read the text and output ONLY a flat JSON object, no markdown and no prose.\n\n")
	prompt.WriteString("=== TASK ===\n")
	prompt.WriteString("Find character names, place names and recurring terminology in the " + sourceLang + " text and give the " + targetLang + " translation a translator should use consistently.\n\n")
	prompt.WriteString("=== RESPONSE FORMAT (MANDATORY) ===\n")
	prompt.WriteString("{\"" + sourceLang + " term\": \"" + targetLang + " term\", ...}\n")
	prompt.WriteString("- One value per key.\n")
	prompt.WriteString("- The response must start with { and end with }.\n")
	return prompt.String()
}

// parseEntriesResponse accepts clean JSON, JSON inside a markdown fence, or
// a JSON object embedded in prose.
func parseEntriesResponse(content string) (Entries, error) {
	content = strings.TrimSpace(content)

	var entries Entries
	if err := json.Unmarshal([]byte(content), &entries); err == nil {
		return entries, nil
	}

	if idx := strings.Index(content, "```"); idx >= 0 {
		inner := content[idx+3:]
		// skip the language tag, e.g. ```json
		if nl := strings.Index(inner, "\n"); nl >= 0 {
			inner = inner[nl+1:]
		}
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &entries); err == nil {
			return entries, nil
		}
	}

	if extracted := extractJSONObject(content); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &entries); err == nil {
			return entries, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON object found")
}

// extractJSONObject finds the first balanced { ... } block in s.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
