package glossary

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
)

const (
	DefaultSynonymCacheSize = 512
	maxSynonyms             = 10
)

type synonymKey struct {
	word, left, right, lang string
}

// Thesaurus proposes synonyms for a word as it is used in its sentence.
// Answers are cached by word, surrounding context and language, so asking
// again for the same spot never reaches the provider.
type Thesaurus struct {
	cache *lru.Cache[synonymKey, []string]
}

func NewThesaurus(size int) *Thesaurus {
	if size <= 0 {
		size = DefaultSynonymCacheSize
	}
	// New only fails for a non-positive size.
	cache, _ := lru.New[synonymKey, []string](size)
	return &Thesaurus{cache: cache}
}

// Synonyms returns up to ten alternatives for word in lang, given the text
// to its left and right.
func (t *Thesaurus) Synonyms(ctx context.Context, p provider.Provider, word, left, right, lang string) ([]string, error) {
	word = strings.TrimSpace(word)
	if word == "" || strings.ContainsAny(word, " \t\n") {
		return nil, errs.Newf(errs.ErrValidation, "synonyms need a single word, got %q", word)
	}

	key := synonymKey{word: word, left: left, right: right, lang: lang}
	if cached, ok := t.cache.Get(key); ok {
		return append([]string(nil), cached...), nil
	}

	content, err := p.Translate(ctx, synonymContext(word, left, right), buildSynonymPrompt(lang), nil)
	if err != nil {
		return nil, err
	}
	found := parseSynonyms(content, word)
	t.cache.Add(key, found)
	return append([]string(nil), found...), nil
}

func (t *Thesaurus) Len() int { return t.cache.Len() }

func synonymContext(word, left, right string) string {
	return "..." + left + " [ " + word + " ] " + right + "..."
}

func buildSynonymPrompt(lang string) string {
	var prompt strings.Builder
	prompt.WriteString("Give 5 to 10 synonyms of the " + lang + " word in square brackets, as it is used in this context.\n")
	prompt.WriteString("Format: word;word;word. No other text.\n")
	return prompt.String()
}

// parseSynonyms splits on semicolons and newlines, strips list markers and
// drops the word itself and repeats.
func parseSynonyms(content, word string) []string {
	fields := strings.FieldsFunc(content, func(r rune) bool { return r == ';' || r == '\n' })
	seen := map[string]bool{strings.ToLower(word): true}
	out := make([]string, 0, maxSynonyms)
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), "-*•.\"")
		f = strings.TrimSpace(f)
		if f == "" || seen[strings.ToLower(f)] {
			continue
		}
		seen[strings.ToLower(f)] = true
		out = append(out, f)
		if len(out) == maxSynonyms {
			break
		}
	}
	return out
}
